package hash

// Mix64 is the splitmix64 finalizer. It spreads packed block coordinates,
// whose low bits are highly regular, across the whole 64-bit range.
func Mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

package testutil

import (
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Fill fills buf with pseudo-random bytes.
func (r *RNG) Fill(buf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.rand.Read(buf)
}

// Tile returns size pseudo-random bytes.
func (r *RNG) Tile(size int) []byte {
	buf := make([]byte, size)
	r.Fill(buf)
	return buf
}

// Coords returns n distinct block offsets in [0, maxX) x [0, maxY).
func (r *RNG) Coords(n, maxX, maxY int) [][2]int {
	seen := make(map[[2]int]struct{}, n)
	out := make([][2]int, 0, n)
	for len(out) < n {
		c := [2]int{r.Intn(maxX), r.Intn(maxY)}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Pattern returns a deterministic buffer of size bytes derived from (x, y),
// so tests can tell blocks apart without storing expected contents.
func Pattern(x, y, size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(x*31 + y*17 + i)
	}
	return buf
}

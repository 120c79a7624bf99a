//go:build !linux

package tilecache

func physicalMemory() (int64, bool) {
	return 0, false
}

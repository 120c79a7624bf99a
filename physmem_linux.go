//go:build linux

package tilecache

import "golang.org/x/sys/unix"

// physicalMemory reports the total RAM of the host.
func physicalMemory() (int64, bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, false
	}
	total := uint64(info.Totalram) * uint64(info.Unit)
	if total == 0 || total > 1<<62 {
		return 0, false
	}
	return int64(total), true
}

//go:build linux

package memmgr

import "golang.org/x/sys/unix"

// querySystemMemory returns the currently available system memory in bytes
// on Linux, via the sysinfo(2) syscall (golang.org/x/sys/unix.Sysinfo).
// Sysinfo reports free+buffer RAM rather than true "available" memory, but
// needs no /proc parsing and no privileges, and it is grounded in the same
// x/sys package the reference pack's emulator project depends on.
func querySystemMemory() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return fallbackAvailableBytes
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
}

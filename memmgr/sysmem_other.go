//go:build !linux

package memmgr

// querySystemMemory falls back to a conservative fixed assumption on
// platforms where golang.org/x/sys does not expose a cheap "available
// memory" syscall (e.g. sysinfo(2) is Linux-only). Hosts on these platforms
// should prefer NewWithLimit with an explicit byte ceiling.
func querySystemMemory() uint64 {
	return fallbackAvailableBytes
}

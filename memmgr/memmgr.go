// Package memmgr implements the process-wide memory ceiling and the epoch
// counter that drives cancellation of stale background work.
package memmgr

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Manager tracks bytes currently held by the global frame cache against a
// fixed ceiling, and hands out a monotonically increasing epoch used to
// cancel outstanding worker-pool jobs on every scrub-like event.
//
// All fields are accessed through atomics; Manager has no mutex and is safe
// for concurrent use by the cache, the worker pool, and the playback clock.
type Manager struct {
	bytesInUse atomic.Int64
	limitBytes atomic.Int64
	epoch      atomic.Uint64
	log        *logrus.Entry
}

// New computes limit_bytes = max(0, (available - reserveGB) * memFraction)
// from the current system memory, as reported by querySystemMemory (see
// sysmem_linux.go / sysmem_other.go).
func New(memFraction float64, reserveGB float64, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	available := querySystemMemory()
	reserve := uint64(reserveGB * float64(gigabyte))
	var limit uint64
	if available > reserve {
		limit = uint64(float64(available-reserve) * memFraction)
	}
	m := &Manager{log: log.WithField("component", "memmgr")}
	m.limitBytes.Store(int64(limit))
	m.log.WithFields(logrus.Fields{
		"available_bytes": available,
		"reserve_bytes":   reserve,
		"limit_bytes":     limit,
	}).Info("memory manager initialized")
	return m
}

// NewWithLimit builds a Manager with an explicit byte ceiling, bypassing
// system memory detection. Used by tests that need an exact, reproducible
// budget.
func NewWithLimit(limitBytes int64, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Manager{log: log.WithField("component", "memmgr")}
	m.limitBytes.Store(limitBytes)
	return m
}

const gigabyte = 1 << 30

// Add accounts for n newly-resident bytes.
func (m *Manager) Add(n int64) int64 {
	return m.bytesInUse.Add(n)
}

// Free accounts for n bytes being released (typically on cache eviction).
func (m *Manager) Free(n int64) int64 {
	return m.bytesInUse.Add(-n)
}

// BytesInUse returns the current accounted byte count.
func (m *Manager) BytesInUse() int64 { return m.bytesInUse.Load() }

// LimitBytes returns the configured ceiling.
func (m *Manager) LimitBytes() int64 { return m.limitBytes.Load() }

// SetLimitBytes overrides the ceiling, e.g. when the user changes
// cache_memory_percent at runtime.
func (m *Manager) SetLimitBytes(n int64) { m.limitBytes.Store(n) }

// OverLimit reports whether accounted usage exceeds the ceiling.
func (m *Manager) OverLimit() bool {
	return m.bytesInUse.Load() > m.limitBytes.Load()
}

// BumpEpoch advances the epoch and returns the new value. Every job tagged
// with a prior epoch is implicitly cancelled: the worker pool checks
// CurrentEpoch() against the epoch it was submitted with and aborts on
// mismatch.
func (m *Manager) BumpEpoch() uint64 {
	next := m.epoch.Add(1)
	m.log.WithField("epoch", next).Debug("epoch bumped")
	return next
}

// CurrentEpoch returns the epoch in effect right now.
func (m *Manager) CurrentEpoch() uint64 {
	return m.epoch.Load()
}

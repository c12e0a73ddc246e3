package reel

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/memmgr"
	"github.com/reelengine/reel/workerpool"
)

// Metrics exposes the engine's cache, memory, and worker activity as
// Prometheus collectors. Registration is observational only: nothing in
// the cache/epoch protocol depends on it.
type Metrics struct {
	collectors []prometheus.Collector
}

// NewMetrics builds collectors over c, mem, and pool and registers them
// with reg (prometheus.DefaultRegisterer if nil).
func NewMetrics(reg prometheus.Registerer, c *cache.Cache, mem *memmgr.Manager, pool *workerpool.Pool) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{collectors: []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "reel", Subsystem: "cache", Name: "entries",
			Help: "Number of frames resident in the global frame cache.",
		}, func() float64 { return float64(c.Statistics().Entries) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "reel", Subsystem: "cache", Name: "bytes",
			Help: "Bytes of pixel data resident in the global frame cache.",
		}, func() float64 { return float64(c.Statistics().Bytes) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "reel", Subsystem: "cache", Name: "hits_total",
			Help: "Cache lookups served from a resident frame.",
		}, func() float64 { return float64(c.Statistics().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "reel", Subsystem: "cache", Name: "misses_total",
			Help: "Cache lookups that found no resident frame.",
		}, func() float64 { return float64(c.Statistics().Misses) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "reel", Subsystem: "memory", Name: "limit_bytes",
			Help: "Configured process-wide frame memory ceiling.",
		}, func() float64 { return float64(mem.LimitBytes()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "reel", Subsystem: "memory", Name: "epoch",
			Help: "Current cancellation epoch.",
		}, func() float64 { return float64(mem.CurrentEpoch()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "reel", Subsystem: "workers", Name: "queue_depth",
			Help: "Jobs waiting for a worker slot.",
		}, func() float64 { return float64(pool.QueueDepth()) }),
	}}

	for _, col := range m.collectors {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Unregister removes the collectors from reg.
func (m *Metrics) Unregister(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, col := range m.collectors {
		reg.Unregister(col)
	}
}

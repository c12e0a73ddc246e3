// Package preload implements the preload scheduler: on a frame-changed or
// attribute-changed trigger it bumps the epoch, synchronously enqueues the
// current frame, then debounces a full-radius background preload so fast
// scrubbing doesn't thrash the worker pool.
package preload

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/memmgr"
	"github.com/reelengine/reel/workerpool"
)

// RadiusStrategy orders the frames a debounced preload visits around the
// playhead.
type RadiusStrategy uint8

const (
	// Spiral alternates forward and backward: 0, +1, -1, +2, -2, ...
	// matching how an editor scrubbing through an image sequence benefits
	// from loading both directions.
	Spiral RadiusStrategy = iota
	// Forward loads center, center+1, center+2, ... only, matching how a
	// video decoder can only seek cheaply forward from its last position.
	Forward
)

// ComputeJob produces the frame for (node, frameIndex) and inserts it into
// the cache under epoch, matching workerpool.Job's "check valid() first"
// contract. Callers (the root reel package) supply this so preload stays
// decoupled from the node graph's compute dispatch.
type ComputeJob func(node uuid.UUID, frameIndex int64, epoch uint64) workerpool.Job

// Scheduler drives the worker pool to keep frames around the playhead
// resident in the cache.
type Scheduler struct {
	mem      *memmgr.Manager
	c        *cache.Cache
	pool     *workerpool.Pool
	compute  ComputeJob
	log      *logrus.Entry
	strategy RadiusStrategy
	radius   int
	debounce time.Duration

	mu      sync.Mutex
	pending *time.Timer
}

// New creates a Scheduler. radius is clamped to [1, 256]; debounce is the
// quiet period before a full-radius preload fires (~100ms).
func New(mem *memmgr.Manager, c *cache.Cache, pool *workerpool.Pool, compute ComputeJob, radius int, strategy RadiusStrategy, log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if radius < 1 {
		radius = 1
	}
	if radius > 256 {
		radius = 256
	}
	return &Scheduler{
		mem:      mem,
		c:        c,
		pool:     pool,
		compute:  compute,
		log:      log.WithField("component", "preload"),
		strategy: strategy,
		radius:   radius,
		debounce: 100 * time.Millisecond,
	}
}

// SetRadius updates the preload radius for future triggers.
func (s *Scheduler) SetRadius(r int) {
	if r < 1 {
		r = 1
	}
	if r > 256 {
		r = 256
	}
	s.mu.Lock()
	s.radius = r
	s.mu.Unlock()
}

// Trigger runs the four-step protocol from a frame-changed, attribute-
// changed, or explicit preload request for node at frameIndex:
//  1. bump epoch, cancelling all outstanding loads from prior triggers;
//  2. synchronously enqueue the current frame as a single job;
//  3. (re)start a debounced timer for a full-radius preload;
//  4. when the timer fires, enqueue every uncached frame in the radius,
//     in strategy order (preloadRadius).
func (s *Scheduler) Trigger(node uuid.UUID, frameIndex int64) {
	epoch := s.mem.BumpEpoch()
	s.log.WithFields(logrus.Fields{"node": node, "frame": frameIndex, "epoch": epoch}).Debug("preload triggered")

	s.pool.ExecuteWithEpoch(epoch, s.compute(node, frameIndex, epoch))

	s.mu.Lock()
	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = time.AfterFunc(s.debounce, func() {
		s.preloadRadius(node, frameIndex, epoch)
	})
	s.mu.Unlock()
}

// preloadRadius submits one job per frame in the configured radius around
// frameIndex, in strategy order, skipping frames already cached.
func (s *Scheduler) preloadRadius(node uuid.UUID, frameIndex int64, epoch uint64) {
	s.mu.Lock()
	radius, strategy := s.radius, s.strategy
	s.mu.Unlock()

	for _, offset := range radiusOffsets(radius, strategy) {
		f := frameIndex + offset
		key := cache.Key{Node: node, Frame: f}
		if s.c.Contains(key) {
			continue
		}
		s.pool.ExecuteWithEpoch(epoch, s.compute(node, f, epoch))
	}
}

// radiusOffsets enumerates the frame offsets to visit, in the order the
// strategy prescribes. Offset 0 is omitted: the current frame was already
// submitted synchronously by Trigger.
func radiusOffsets(radius int, strategy RadiusStrategy) []int64 {
	offsets := make([]int64, 0, radius*2)
	switch strategy {
	case Forward:
		for i := 1; i <= radius; i++ {
			offsets = append(offsets, int64(i))
		}
	default: // Spiral
		for i := 1; i <= radius; i++ {
			offsets = append(offsets, int64(i), int64(-i))
		}
	}
	return offsets
}

// Close cancels any pending debounced preload.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.Stop()
	}
}

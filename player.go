package reel

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/compositor"
	"github.com/reelengine/reel/decode"
	"github.com/reelengine/reel/event"
	"github.com/reelengine/reel/frame"
	"github.com/reelengine/reel/playback"
	"github.com/reelengine/reel/preload"
	"github.com/reelengine/reel/workerpool"
)

// BackendKind selects which compositor backend composites on the main
// thread. Workers always blend on the CPU; the GPU backend shares its
// graphics context with the host UI and therefore only runs there.
type BackendKind uint8

const (
	BackendCPU BackendKind = iota
	BackendGPU
)

// Options configures a Player. The zero value picks the documented
// defaults: CPU compositing, spiral preload with radius 10, 24 fps.
type Options struct {
	PoolSize        int
	PreloadRadius   int
	PreloadStrategy preload.RadiusStrategy
	FPSBase         float64
	Backend         BackendKind
	Logger          *logrus.Logger
}

// Player is the engine's host-facing facade: it owns the event bus, the
// playback clock, the worker pool, and the preload scheduler, and wires
// them to a Project. Hosts read via CurrentFrame and write via events
// (SetFrame, Play, ...); AttrsChanged is the single canonical
// invalidation path.
type Player struct {
	project *Project
	bus     *event.Bus
	clock   *playback.Clock
	pool    *workerpool.Pool
	sched   *preload.Scheduler
	decoder *decode.Decoder

	cpu     compositor.Backend
	gpu     compositor.Backend
	backend BackendKind
	watcher *decode.DirWatcher

	lastUpdate time.Time
	log        *logrus.Entry
}

// NewPlayer wires a Player around project. The project's active
// composition drives playback and preloading.
func NewPlayer(project *Project, opts Options) *Player {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logrus.NewEntry(logger)

	if opts.FPSBase == 0 {
		opts.FPSBase = 24
	}
	if opts.PreloadRadius == 0 {
		opts.PreloadRadius = 10
	}

	p := &Player{
		project: project,
		bus:     event.New(1024),
		decoder: decode.New(),
		cpu:     compositor.NewCPUBackend(),
		backend: opts.Backend,
		log:     log.WithField("component", "player"),
	}
	if opts.Backend == BackendGPU {
		p.gpu = compositor.NewGPUBackend(log)
	}

	p.pool = workerpool.New(opts.PoolSize, project.Mem(), log)
	p.sched = preload.New(project.Mem(), project.Cache(), p.pool, p.computeJob, opts.PreloadRadius, opts.PreloadStrategy, log)
	p.clock = playback.New(p.bus, project.Active(), opts.FPSBase, log)

	event.Subscribe(p.bus, func(e event.FrameChanged) {
		active := p.project.Active()
		if active == uuid.Nil {
			return
		}
		p.sched.Trigger(active, int64(e.Frame))
	})
	event.Subscribe(p.bus, func(e event.SetFrame) { p.clock.SetFrame(e.Frame) })
	event.Subscribe(p.bus, func(event.Play) { p.clock.Play() })
	event.Subscribe(p.bus, func(event.Pause) { p.clock.Pause() })
	event.Subscribe(p.bus, func(event.Stop) { p.clock.Stop() })
	event.Subscribe(p.bus, func(e event.AttrsChanged) { p.onAttrsChanged(e.Node) })
	event.Subscribe(p.bus, func(e event.AddLayer) {
		comp, ok := p.project.Node(e.Comp)
		if !ok {
			return
		}
		_, out := comp.PlayRange()
		if _, err := p.project.AddLayer(e.Comp, e.Source, e.InFrame, out, 1); err != nil {
			p.log.WithError(err).Warn("add layer rejected")
			return
		}
		p.refreshWorkArea()
		p.bus.EmitImmediate(event.AttrsChanged{Node: e.Comp})
	})

	p.refreshWorkArea()
	return p
}

// Bus returns the player's event bus for host subscriptions (CacheDirty,
// ViewportRefresh) and writes (SetFrame, Play, ...).
func (p *Player) Bus() *event.Bus { return p.bus }

// Clock returns the playback clock for direct transport control.
func (p *Player) Clock() *playback.Clock { return p.clock }

// Project returns the project this player drives.
func (p *Player) Project() *Project { return p.project }

// Pool returns the worker pool, exposed for observability.
func (p *Player) Pool() *workerpool.Pool { return p.pool }

// Update advances the engine by one host tick: the playback clock first,
// then camera easing, then queued event delivery. Call from the main
// thread, once per frame.
func (p *Player) Update(now time.Time) {
	var dt float32
	if !p.lastUpdate.IsZero() {
		dt = float32(now.Sub(p.lastUpdate).Seconds())
	}
	p.lastUpdate = now

	p.clock.Update(now)

	for _, n := range p.project.Nodes() {
		if n.Kind == KindCamera && n.UpdateCamera(dt) {
			p.bus.Emit(event.ViewportRefresh{})
		}
	}

	p.bus.Poll()
}

// CurrentFrame returns the cached frame for the active composition at the
// clock's current position, if it has been composited yet. It never
// computes: a miss means workers are still resolving and the host should
// repaint on the next CacheDirty.
func (p *Player) CurrentFrame() (frame.Frame, bool) {
	active := p.project.Active()
	if active == uuid.Nil {
		return frame.Frame{}, false
	}
	return p.project.Cache().Get(cache.Key{Node: active, Frame: int64(p.clock.CurrentFrame())})
}

// CompositeActive composites the active composition at frameIndex on the
// calling thread, using the GPU backend when configured and falling back
// to the CPU transparently on any GPU failure. Source frames still
// missing from the cache are skipped, not decoded; call this for
// immediate-mode viewport paints, not for background filling.
func (p *Player) CompositeActive(frameIndex int64) (frame.Frame, error) {
	active, ok := p.project.Node(p.project.Active())
	if !ok {
		return frame.Frame{}, nil
	}
	epoch := p.project.Mem().CurrentEpoch()
	if p.backend == BackendGPU && p.gpu != nil {
		ctx := p.project.computeContext(epoch, false, nil, p.gpu)
		out, err := active.Compute(frameIndex, ctx)
		if err == nil {
			return out, nil
		}
		p.log.WithError(err).Warn("GPU compositor unavailable; falling back to CPU")
	}
	ctx := p.project.computeContext(epoch, false, nil, p.cpu)
	return active.Compute(frameIndex, ctx)
}

// WatchSequenceDirs starts a filesystem watcher over every file source's
// sequence directory. When a file appears, the affected sources rescan
// and re-enter the canonical invalidation path, so a decode that
// previously failed with FileNotFound is retried once the file shows up.
func (p *Player) WatchSequenceDirs() error {
	if p.watcher != nil {
		return nil
	}
	dw, err := decode.NewDirWatcher(func(dir string) {
		for _, n := range p.project.Nodes() {
			if n.Kind != KindFileSource {
				continue
			}
			if maskDir(n) == dir {
				n.rescanFileSource()
				p.bus.Emit(event.AttrsChanged{Node: n.ID})
			}
		}
	}, p.log)
	if err != nil {
		return err
	}
	p.watcher = dw
	for _, n := range p.project.Nodes() {
		if n.Kind != KindFileSource {
			continue
		}
		v, _ := n.Bag.Get("file_mask")
		mask, _ := v.String_()
		if err := dw.Watch(mask); err != nil {
			p.log.WithError(err).WithField("node", n.ID).Warn("cannot watch sequence directory")
		}
	}
	return nil
}

func maskDir(n *Node) string {
	v, _ := n.Bag.Get("file_mask")
	mask, _ := v.String_()
	return filepath.Dir(mask)
}

// Preload explicitly schedules loading around frameIndex of the active
// composition, equivalent to the frame-changed trigger path.
func (p *Player) Preload(frameIndex int64) {
	active := p.project.Active()
	if active == uuid.Nil {
		return
	}
	p.sched.Trigger(active, frameIndex)
}

// SetActive switches the composition playback drives, refreshing the
// clock's work area and edge list.
func (p *Player) SetActive(id uuid.UUID) error {
	if err := p.project.SetActive(id); err != nil {
		return err
	}
	p.refreshWorkArea()
	return nil
}

// onAttrsChanged is the canonical invalidation path: clear the node's and
// its ancestors' stale cache entries, bump the epoch and reschedule
// loading around the playhead (Trigger does both), and ask the host to
// repaint.
func (p *Player) onAttrsChanged(id uuid.UUID) {
	n, ok := p.project.Node(id)
	if !ok {
		return
	}
	p.project.invalidateUpward(n)
	p.refreshWorkArea()

	active := p.project.Active()
	if active != uuid.Nil {
		p.sched.Trigger(active, int64(p.clock.CurrentFrame()))
	}
	p.bus.Emit(event.ViewportRefresh{})
}

// computeJob adapts the node graph's compute dispatch to the preload
// scheduler's job shape. Workers compute with the CPU backend only; the
// GPU backend is main-thread-bound.
func (p *Player) computeJob(node uuid.UUID, frameIndex int64, epoch uint64) workerpool.Job {
	return func(valid func() bool) error {
		if !valid() {
			return nil
		}
		n, ok := p.project.Node(node)
		if !ok {
			return nil // DirtyRace: node removed while the job was queued
		}
		ctx := p.project.computeContext(epoch, true, p.decoder, p.cpu)
		_, err := n.Compute(frameIndex, ctx)
		p.bus.Emit(event.CacheDirty{})
		return err
	}
}

// refreshWorkArea pushes the active composition's full range, work area,
// and layer edit points into the clock.
func (p *Player) refreshWorkArea() {
	comp, ok := p.project.Node(p.project.Active())
	if !ok || comp.Kind != KindComposition {
		return
	}
	in, out := comp.PlayRange()
	waIn, waOut := in, out
	if v, ok := comp.Bag.Get("work_area_in"); ok {
		if i, ok := v.Int32(); ok {
			waIn = i
		}
	}
	if v, ok := comp.Bag.Get("work_area_out"); ok {
		if o, ok := v.Int32(); ok {
			waOut = o
		}
	}
	p.clock.SetWorkArea(playback.WorkArea{In: waIn, Out: waOut, FullIn: in, FullOut: out})
	p.clock.SetEdges(layerEdges(comp))
}

// layerEdges collects the sorted, deduplicated set of frame positions the
// jump-to-edge operations stop at: the composition bounds plus every
// layer's in and out point.
func layerEdges(comp *Node) []int32 {
	in, out := comp.PlayRange()
	seen := map[int32]bool{in: true, out: true}
	for _, c := range comp.Children() {
		cin, cout := c.inOut()
		seen[cin] = true
		seen[cout] = true
	}
	edges := make([]int32, 0, len(seen))
	for e := range seen {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i] < edges[j] })
	return edges
}

// Close shuts down the watcher, scheduler, and worker pool, waiting for
// in-flight jobs.
func (p *Player) Close() {
	if p.watcher != nil {
		_ = p.watcher.Close()
	}
	p.sched.Close()
	p.pool.Close()
}

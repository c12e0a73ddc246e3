// Package workerpool implements the fixed-size parallel worker pool with
// epoch-gated cancellation. Jobs are dispatched in
// FIFO submission order but execute concurrently, bounded by a
// golang.org/x/sync/semaphore; golang.org/x/sync/errgroup tracks in-flight
// jobs for graceful shutdown.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// EpochSource reports the epoch currently in effect. *memmgr.Manager
// satisfies this.
type EpochSource interface {
	CurrentEpoch() uint64
}

// Job is a unit of background work. valid reports whether the epoch the
// job was submitted under is still current; a cooperative job calls it
// between decode steps and returns early if it goes false. Checking only
// at entry, without a mid-decode abort, is also conformant.
type Job func(valid func() bool) error

// Pool runs Jobs against a fixed concurrency budget.
type Pool struct {
	size  int
	sem   *semaphore.Weighted
	mem   EpochSource
	log   *logrus.Entry
	queue chan submission
	group *errgroup.Group
	gctx  context.Context
	stop  context.CancelFunc
}

type submission struct {
	epoch uint64
	job   Job
}

// DefaultSize returns ~75% of logical cores, at least 1.
func DefaultSize() int {
	n := runtime.NumCPU() * 3 / 4
	if n < 1 {
		n = 1
	}
	return n
}

// New starts a pool of the given size (DefaultSize() if size <= 0) that
// checks mem for epoch validity and abandons jobs whose epoch has been
// superseded.
func New(size int, mem EpochSource, log *logrus.Entry) *Pool {
	if size <= 0 {
		size = DefaultSize()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		size:  size,
		sem:   semaphore.NewWeighted(int64(size)),
		mem:   mem,
		log:   log.WithField("component", "workerpool"),
		queue: make(chan submission, 4096),
		group: group,
		gctx:  gctx,
		stop:  cancel,
	}
	go p.dispatch()
	return p
}

// Size returns the pool's concurrency budget.
func (p *Pool) Size() int { return p.size }

// QueueDepth reports how many submitted jobs are waiting for dispatch,
// exposed as a metric for host observability.
func (p *Pool) QueueDepth() int { return len(p.queue) }

// ExecuteWithEpoch enqueues job, tagged with epoch, for execution. Queueing
// is FIFO; actual execution may run out of submission order once multiple
// workers are active, since only the first self-check gate matters. Never
// blocks on the main thread beyond the bounded queue: if the queue is full, the job is dropped and
// logs a warning rather than stalling the caller, since a dropped preload
// job is always re-derivable on the next fetch.
func (p *Pool) ExecuteWithEpoch(epoch uint64, job Job) {
	select {
	case p.queue <- submission{epoch: epoch, job: job}:
	default:
		p.log.WithField("epoch", epoch).Warn("job queue full; dropping job")
	}
}

// dispatch pulls jobs off the FIFO queue and hands each to a goroutine once
// a semaphore slot is free, preserving submission order for *dispatch*
// while letting up to Size() jobs run concurrently.
func (p *Pool) dispatch() {
	for sub := range p.queue {
		if err := p.sem.Acquire(p.gctx, 1); err != nil {
			return // pool is shutting down
		}
		sub := sub
		p.group.Go(func() error {
			defer p.sem.Release(1)
			p.runOne(sub)
			return nil
		})
	}
}

// runOne executes a single job, gating on epoch at entry, recovering any
// panic, and reporting failures through logging and Sentry without
// propagating them out of the pool: no exceptional control flow escapes
// the engine boundary.
func (p *Pool) runOne(sub submission) {
	valid := func() bool { return p.mem.CurrentEpoch() == sub.epoch }
	if !valid() {
		p.log.WithField("epoch", sub.epoch).Debug("job skipped: epoch superseded before start")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker job panicked: %v", r)
			p.log.WithFields(logrus.Fields{"epoch": sub.epoch, "stack": string(debug.Stack())}).Error(err)
			sentry.CaptureException(err)
		}
	}()

	if err := sub.job(valid); err != nil {
		p.log.WithField("epoch", sub.epoch).WithError(err).Warn("worker job failed")
		sentry.CaptureException(err)
	}
}

// Close stops accepting new jobs and waits for in-flight jobs to finish.
func (p *Pool) Close() {
	close(p.queue)
	p.stop()
	_ = p.group.Wait()
}

// Package event implements the engine's type-erased pub/sub event bus: a
// queued mode for main-thread delivery and an immediate mode for
// synchronous, within-frame derived events.
package event

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// MaxCascadeDepth bounds how many rounds of derived events Poll (queued
// mode) or nested Immediate calls (immediate mode) will process before
// giving up, preventing a handler bug from cascading forever.
const MaxCascadeDepth = 10

// --- Event payloads ---

// FrameChanged is emitted whenever the current frame changes, from any
// cause (playback, step, scrub).
type FrameChanged struct{ Frame int32 }

// AttrsChanged is emitted after a node's attribute bag is mutated.
type AttrsChanged struct{ Node uuid.UUID }

// CacheDirty signals that cache contents changed in a way the UI's load
// indicators should refresh for.
type CacheDirty struct{}

// ViewportRefresh requests the viewport repaint.
type ViewportRefresh struct{}

// SetFrame is a UI-issued request to scrub to Frame.
type SetFrame struct{ Frame int32 }

// Play, Pause, and Stop are UI-issued playback transport requests.
type (
	Play  struct{}
	Pause struct{}
	Stop  struct{}
)

// AddLayer is a UI-issued request to insert Source as a new child layer of
// Comp at InFrame.
type AddLayer struct {
	Comp, Source uuid.UUID
	InFrame      int32
}

// Handler receives one event value. It must not block.
type Handler func(event any)

// Bus is a type-erased publish/subscribe event bus. Subscribers register
// by concrete event type; Emit enqueues for later delivery via Poll (main
// thread), EmitImmediate invokes subscribers synchronously on the calling
// goroutine.
type Bus struct {
	mu   sync.RWMutex
	subs map[reflect.Type][]Handler

	queue chan any

	immediateDepth atomic.Int32
}

// New creates a Bus with the given queue capacity.
func New(queueCapacity int) *Bus {
	if queueCapacity <= 0 {
		queueCapacity = 1024
	}
	return &Bus{
		subs:  make(map[reflect.Type][]Handler),
		queue: make(chan any, queueCapacity),
	}
}

// Subscribe registers handler for every event of type T.
func Subscribe[T any](b *Bus, handler func(T)) {
	t := reflect.TypeOf(*new(T))
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], func(e any) { handler(e.(T)) })
}

// Emit enqueues ev for delivery on the next Poll. Safe to call from any
// goroutine; never blocks the caller on subscriber logic.
func (b *Bus) Emit(ev any) {
	select {
	case b.queue <- ev:
	default:
		// Queue saturated: drop rather than block the emitter. A full
		// queue means Poll has fallen far behind; dropping one event is
		// preferable to stalling whichever thread is producing it.
	}
}

// EmitImmediate invokes subscribers for ev synchronously on the calling
// goroutine, used for derived events that must be visible within the same
// frame. Nested EmitImmediate calls beyond MaxCascadeDepth are
// dropped rather than recursing forever.
func (b *Bus) EmitImmediate(ev any) {
	depth := b.immediateDepth.Add(1)
	defer b.immediateDepth.Add(-1)
	if depth > MaxCascadeDepth {
		return
	}
	b.dispatch(ev)
}

// Poll drains the queue, delivering events to subscribers. Events a
// handler emits during this call are delivered within the same Poll, up
// to MaxCascadeDepth rounds; anything still queued after that is left for
// the next Poll call.
func (b *Bus) Poll() {
	for depth := 0; depth < MaxCascadeDepth; depth++ {
		n := len(b.queue)
		if n == 0 {
			return
		}
		for i := 0; i < n; i++ {
			ev := <-b.queue
			b.dispatch(ev)
		}
	}
}

func (b *Bus) dispatch(ev any) {
	t := reflect.TypeOf(ev)
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subs[t]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

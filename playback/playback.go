// Package playback implements the playback clock: play/pause/step/loop
// frame advancement driven by wall-clock time, bounded by a composition's
// work area, emitting FrameChanged events through the shared event bus.
package playback

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reelengine/reel/event"
)

// Direction is the playback heading: forward or reverse.
type Direction int8

const (
	Forward Direction = 1
	Reverse Direction = -1
)

// WorkArea is the subrange playback loops or pauses against, and the full
// range a scrub (SetFrame) clamps to instead.
type WorkArea struct {
	In, Out         int32 // honored by free-running playback
	FullIn, FullOut int32 // honored by scrubs
}

// Clock advances a single composition's current frame in real time. It
// holds no reference to the node graph; callers read CurrentFrame() and
// drive their own compute/preload calls in response to FrameChanged.
type Clock struct {
	bus *event.Bus
	log *logrus.Entry

	playing      bool
	loopEnabled  bool
	direction    Direction
	fpsBase      float64
	fpsCurrent   float64
	lastWallTime time.Time
	currentFrame int32
	activeComp   uuid.UUID
	workArea     WorkArea
	edges        []int32

	actualFPSWindowStart time.Time
	actualFPSFrameCount  int
	actualFPS            float64
}

// New creates a Clock for activeComp, reporting frame changes on bus.
// fpsBase must be in [1, 120]; values outside that range are clamped.
func New(bus *event.Bus, activeComp uuid.UUID, fpsBase float64, log *logrus.Entry) *Clock {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	fpsBase = clampFPS(fpsBase)
	return &Clock{
		bus:        bus,
		log:        log.WithField("component", "playback"),
		direction:  Forward,
		fpsBase:    fpsBase,
		fpsCurrent: fpsBase,
		activeComp: activeComp,
	}
}

func clampFPS(v float64) float64 {
	if v < 1 {
		return 1
	}
	if v > 120 {
		return 120
	}
	return v
}

// SetWorkArea installs the range free-running playback loops/pauses
// against, and the full range scrubs clamp to.
func (c *Clock) SetWorkArea(w WorkArea) { c.workArea = w }

// CurrentFrame returns the frame currently selected.
func (c *Clock) CurrentFrame() int32 { return c.currentFrame }

// IsPlaying reports whether free-running playback is active.
func (c *Clock) IsPlaying() bool { return c.playing }

// ActualFPS reports the measured playback rate, updated roughly every
// second, as distinct from the configured target rate.
func (c *Clock) ActualFPS() float64 { return c.actualFPS }

// Play starts free-running playback in the clock's current direction.
func (c *Clock) Play() {
	c.playing = true
	c.lastWallTime = time.Now()
	c.actualFPSWindowStart = c.lastWallTime
	c.actualFPSFrameCount = 0
}

// Pause stops free-running playback; the current frame is unchanged.
func (c *Clock) Pause() { c.playing = false }

// Stop pauses and returns to the work area's in point.
func (c *Clock) Stop() {
	c.playing = false
	c.setFrame(c.workArea.In, true)
}

// SetLoopEnabled toggles whether playback wraps at the work area bounds
// instead of pausing there.
func (c *Clock) SetLoopEnabled(v bool) { c.loopEnabled = v }

// SetDirection sets the heading free-running playback advances in.
func (c *Clock) SetDirection(d Direction) { c.direction = d }

// SetFPS overrides the playback rate within [1, 120].
func (c *Clock) SetFPS(fps float64) { c.fpsCurrent = clampFPS(fps) }

// SetFrame scrubs directly to f, clamped to the composition's full range
// rather than the work area — scrubs are never constrained by the work
// area, only free-running playback is.
func (c *Clock) SetFrame(f int32) {
	if f < c.workArea.FullIn {
		f = c.workArea.FullIn
	}
	if f > c.workArea.FullOut {
		f = c.workArea.FullOut
	}
	c.setFrame(f, true)
}

// Step advances (or rewinds, for negative n) by n frames, clamped to the
// full range, and always emits FrameChanged even if playing.
func (c *Clock) Step(n int32) { c.SetFrame(c.currentFrame + n) }

// ToStart jumps to the work area's in point.
func (c *Clock) ToStart() { c.SetFrame(c.workArea.In) }

// ToEnd jumps to the work area's out point.
func (c *Clock) ToEnd() { c.SetFrame(c.workArea.Out) }

// SetEdges installs the sorted frame positions JumpPrevEdge/JumpNextEdge
// stop at (layer in/out points plus composition bounds).
func (c *Clock) SetEdges(edges []int32) { c.edges = edges }

// JumpPrevEdge scrubs to the nearest edge strictly before the current
// frame, if any.
func (c *Clock) JumpPrevEdge() {
	for i := len(c.edges) - 1; i >= 0; i-- {
		if c.edges[i] < c.currentFrame {
			c.SetFrame(c.edges[i])
			return
		}
	}
}

// JumpNextEdge scrubs to the nearest edge strictly after the current
// frame, if any.
func (c *Clock) JumpNextEdge() {
	for _, e := range c.edges {
		if e > c.currentFrame {
			c.SetFrame(e)
			return
		}
	}
}

// Update is called once per UI tick with the wall-clock now; it advances
// the current frame by at most one step per call, rather than catching up
// multiple frames after a stall.
func (c *Clock) Update(now time.Time) {
	if !c.playing {
		return
	}
	if c.lastWallTime.IsZero() {
		c.lastWallTime = now
	}
	interval := time.Duration(float64(time.Second) / c.fpsCurrent)
	if now.Sub(c.lastWallTime) < interval {
		return
	}
	c.lastWallTime = c.lastWallTime.Add(interval)

	next := c.currentFrame + int32(c.direction)
	atEnd := c.direction == Forward && next > c.workArea.Out
	atStart := c.direction == Reverse && next < c.workArea.In
	if atEnd || atStart {
		if c.loopEnabled {
			if c.direction == Forward {
				next = c.workArea.In
			} else {
				next = c.workArea.Out
			}
		} else {
			c.playing = false
			return
		}
	}
	c.setFrame(next, false)
	c.trackActualFPS(now)
}

func (c *Clock) trackActualFPS(now time.Time) {
	c.actualFPSFrameCount++
	elapsed := now.Sub(c.actualFPSWindowStart)
	if elapsed >= time.Second {
		c.actualFPS = float64(c.actualFPSFrameCount) / elapsed.Seconds()
		c.actualFPSFrameCount = 0
		c.actualFPSWindowStart = now
	}
}

// setFrame records f and reports the change. Scrub-style operations
// (immediate) always emit FrameChanged, even when the clamped target
// equals the current frame, so a host's repaint path never misses a
// user-initiated jump; free-running advancement only emits on a real
// change.
func (c *Clock) setFrame(f int32, immediate bool) {
	if f == c.currentFrame && !immediate {
		return
	}
	c.currentFrame = f
	c.log.WithFields(logrus.Fields{"comp": c.activeComp, "frame": f}).Debug("frame changed")
	if immediate {
		c.bus.EmitImmediate(event.FrameChanged{Frame: f})
	} else {
		c.bus.Emit(event.FrameChanged{Frame: f})
	}
}

package playback

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/reelengine/reel/event"
)

func newTestClock(t *testing.T) (*Clock, *event.Bus) {
	t.Helper()
	bus := event.New(64)
	c := New(bus, uuid.New(), 24, nil)
	c.SetWorkArea(WorkArea{In: 10, Out: 69, FullIn: 0, FullOut: 100})
	c.SetFrame(10)
	c.SetLoopEnabled(true)
	return c, bus
}

// TestLoopWrapsAtWorkAreaBoundary drives the clock one frame interval at a
// time for exactly one full loop period (Out-In+1 frames) and asserts it
// lands back on the starting frame, then one interval further lands on the
// next frame past it.
func TestLoopWrapsAtWorkAreaBoundary(t *testing.T) {
	c, _ := newTestClock(t)
	c.Play()

	base := c.lastWallTime
	interval := time.Second / 24
	period := int(c.workArea.Out-c.workArea.In) + 1

	now := base
	for i := 0; i < period; i++ {
		now = now.Add(interval)
		c.Update(now)
	}
	if c.CurrentFrame() != 10 {
		t.Fatalf("after one full loop period, frame = %d, want 10", c.CurrentFrame())
	}

	now = now.Add(interval)
	c.Update(now)
	if c.CurrentFrame() != 11 {
		t.Fatalf("after one more interval, frame = %d, want 11", c.CurrentFrame())
	}
}

func TestNonLoopingPlaybackPausesAtWorkAreaEnd(t *testing.T) {
	c, _ := newTestClock(t)
	c.SetLoopEnabled(false)
	c.SetFrame(c.workArea.Out - 1)
	c.Play()

	now := c.lastWallTime
	interval := time.Second / 24
	for i := 0; i < 5; i++ {
		now = now.Add(interval)
		c.Update(now)
	}
	if c.CurrentFrame() != c.workArea.Out {
		t.Errorf("frame = %d, want to stop at work area out %d", c.CurrentFrame(), c.workArea.Out)
	}
	if c.IsPlaying() {
		t.Error("playback should have paused at the work area end")
	}
}

func TestSetFrameClampsToFullRangeNotWorkArea(t *testing.T) {
	c, _ := newTestClock(t)
	c.SetFrame(5) // below work area In, but within full range
	if c.CurrentFrame() != 5 {
		t.Errorf("scrub below work area should not clamp to work area, got %d", c.CurrentFrame())
	}
	c.SetFrame(-10)
	if c.CurrentFrame() != c.workArea.FullIn {
		t.Errorf("scrub below full range should clamp to FullIn, got %d", c.CurrentFrame())
	}
	c.SetFrame(1000)
	if c.CurrentFrame() != c.workArea.FullOut {
		t.Errorf("scrub above full range should clamp to FullOut, got %d", c.CurrentFrame())
	}
}

func TestStepAlwaysEmitsFrameChanged(t *testing.T) {
	c, bus := newTestClock(t)
	var got int32 = -1
	event.Subscribe(bus, func(e event.FrameChanged) { got = e.Frame })

	c.Step(1)
	if got != 11 {
		t.Errorf("Step should emit FrameChanged immediately, got %d", got)
	}
}

package reel

import (
	"math"
	"testing"

	"github.com/tanema/gween/ease"
)

func TestScrollToEasesTowardTarget(t *testing.T) {
	cam := NewCamera()
	cam.ScrollTo(100, 50, 2, 1.0, ease.Linear)

	// Destination attributes land immediately.
	v, _ := cam.Bag.Get("look_at")
	target, _ := v.Vec3_()
	if target.X != 100 || target.Y != 50 {
		t.Fatalf("look_at = %+v, want destination (100, 50)", target)
	}

	if cam.UpdateCamera(0.5) != true {
		t.Fatal("easing should still be in progress at t=0.5s")
	}
	x, y, _ := cam.cameraView()
	if x <= 0 || x >= 100 || y <= 0 || y >= 50 {
		t.Errorf("mid-ease position = (%v, %v), want strictly between origin and target", x, y)
	}

	for i := 0; i < 10 && cam.UpdateCamera(0.25); i++ {
	}
	x, y, zoom := cam.cameraView()
	if math.Abs(x-100) > 0.5 || math.Abs(y-50) > 0.5 || math.Abs(zoom-2) > 0.01 {
		t.Errorf("final view = (%v, %v, %v), want (100, 50, 2)", x, y, zoom)
	}
}

func TestJumpToCancelsEasing(t *testing.T) {
	cam := NewCamera()
	cam.ScrollTo(100, 0, 1, 5, ease.Linear)
	cam.JumpTo(-10, -20, 3)

	if cam.UpdateCamera(0.1) {
		t.Error("JumpTo must cancel active tweens")
	}
	x, y, zoom := cam.cameraView()
	if x != -10 || y != -20 || zoom != 3 {
		t.Errorf("view = (%v, %v, %v), want the jump target", x, y, zoom)
	}
}

func TestViewProjectionCentersOnLookAt(t *testing.T) {
	cam := NewCamera()
	cam.JumpTo(10, 20, 1)

	vp := cam.ViewProjection(200, 100)
	// The look-at point must land at clip-space origin.
	x, y := mat4TransformPoint(vp, 10, 20)
	if math.Abs(x) > 1e-9 || math.Abs(y) > 1e-9 {
		t.Errorf("look-at maps to (%v, %v), want clip origin", x, y)
	}
	// A point half a canvas to the right of the look-at maps to clip x=1.
	x, _ = mat4TransformPoint(vp, 10+100, 20)
	if math.Abs(x-1) > 1e-9 {
		t.Errorf("right edge maps to x=%v, want 1", x)
	}
}

func TestCameraComputeProducesNoFrame(t *testing.T) {
	p := testProject(t)
	cam := NewCamera()
	if err := p.AddNode(cam); err != nil {
		t.Fatal(err)
	}
	out, err := cam.Compute(0, mainThreadCtx(p))
	if err != nil {
		t.Fatal(err)
	}
	if out.HasPixels() {
		t.Error("camera compute must not produce pixels")
	}
}

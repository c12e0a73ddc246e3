package reel

import (
	"math"
	"testing"
)

func TestMat4MulIdentity(t *testing.T) {
	m := mat4Mul(mat4Translate(3, -2, 0), mat4Identity)
	if m != mat4Translate(3, -2, 0) {
		t.Error("multiplying by identity must be a no-op")
	}
}

func TestMat4ComposeOrder(t *testing.T) {
	// Translate-then-scale differs from scale-then-translate.
	ts := mat4Mul(mat4Scale(2, 2, 1), mat4Translate(1, 0, 0))
	st := mat4Mul(mat4Translate(1, 0, 0), mat4Scale(2, 2, 1))

	x1, _ := mat4TransformPoint(ts, 0, 0)
	x2, _ := mat4TransformPoint(st, 0, 0)
	if x1 != 2 || x2 != 1 {
		t.Errorf("compose order broken: scale*translate origin -> %v (want 2), translate*scale -> %v (want 1)", x1, x2)
	}
}

func TestMat4RotateZQuarterTurn(t *testing.T) {
	m := mat4RotateZ(math.Pi / 2)
	x, y := mat4TransformPoint(m, 1, 0)
	if math.Abs(x) > 1e-12 || math.Abs(y-1) > 1e-12 {
		t.Errorf("quarter turn of (1,0) = (%v, %v), want (0, 1)", x, y)
	}
}

func TestMat4OrthoMapsCanvasCorners(t *testing.T) {
	m := mat4Ortho(640, 360)
	x, y := mat4TransformPoint(m, 320, 180)
	if x != 1 || y != 1 {
		t.Errorf("top-right corner -> (%v, %v), want (1, 1)", x, y)
	}
	x, y = mat4TransformPoint(m, -320, -180)
	if x != -1 || y != -1 {
		t.Errorf("bottom-left corner -> (%v, %v), want (-1, -1)", x, y)
	}
}

// Package compositor implements the CPU and GPU blend backends: both
// expose Blend(layers, canvasW, canvasH) -> Frame over the same ordered
// layer list, transform model, and blend-mode set.
package compositor

import "github.com/reelengine/reel/frame"

// BlendMode selects a per-layer compositing operation.
type BlendMode uint8

const (
	Normal BlendMode = iota
	Screen
	Add
	Subtract
	Multiply
	Divide
	Difference
)

func (b BlendMode) String() string {
	switch b {
	case Normal:
		return "Normal"
	case Screen:
		return "Screen"
	case Add:
		return "Add"
	case Subtract:
		return "Subtract"
	case Multiply:
		return "Multiply"
	case Divide:
		return "Divide"
	case Difference:
		return "Difference"
	default:
		return "BlendMode(?)"
	}
}

// Transform is a layer's position/rotation/scale/pivot in frame space
// (origin at canvas center, Y-up).
type Transform struct {
	X, Y           float64
	Rotation       float64 // radians, about Z
	ScaleX, ScaleY float64
	PivotX, PivotY float64
}

// Identity is the no-op transform: centered, unrotated, unscaled.
var Identity = Transform{ScaleX: 1, ScaleY: 1}

// Layer is one ordered input to a blend call.
type Layer struct {
	Frame     frame.Frame
	Transform Transform
	BlendMode BlendMode
	Opacity   float64
}

// Backend is satisfied by both the CPU and GPU compositors.
type Backend interface {
	// Blend composites layers, bottom-to-top, into a freshly allocated
	// Frame sized to canvasW x canvasH. Inputs are never mutated.
	Blend(layers []Layer, canvasW, canvasH int) (frame.Frame, error)
}

// blendChannel applies mode to one straight-alpha channel pair, used by the
// CPU backend's per-pixel loop.
func blendChannel(mode BlendMode, src, dst float64) float64 {
	switch mode {
	case Screen:
		return 1 - (1-src)*(1-dst)
	case Add:
		return clamp01(src + dst)
	case Subtract:
		return clamp01(dst - src)
	case Multiply:
		return src * dst
	case Divide:
		if src == 0 {
			return 1
		}
		return clamp01(dst / src)
	case Difference:
		return abs(src - dst)
	default: // Normal: src-over handled by the caller via alpha compositing
		return src
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

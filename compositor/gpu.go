package compositor

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"

	"github.com/reelengine/reel/frame"
)

// GPUBackend composites layers on an offscreen ebiten.Image render
// target, using ebiten's GPU-backed blend
// equations instead of a per-pixel Go loop. Construction never fails: a
// missing or lost graphics context is detected lazily, on the first Blend
// call, since ebiten only stands up its context once the game loop starts.
type GPUBackend struct {
	log *logrus.Entry
}

// NewGPUBackend returns a GPU backend that logs through log (or a default
// logger if nil).
func NewGPUBackend(log *logrus.Entry) *GPUBackend {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &GPUBackend{log: log.WithField("component", "compositor.gpu")}
}

// Blend implements Backend. On any failure to allocate or draw into the
// offscreen target it logs a warning and returns an error so the caller can
// fall back to the CPU backend, per the CompositorUnavailable error kind.
func (g *GPUBackend) Blend(layers []Layer, canvasW, canvasH int) (out frame.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.WithField("panic", r).Warn("GPU compositor unavailable, falling back to CPU")
			err = fmt.Errorf("compositor: GPU backend unavailable: %v", r)
		}
	}()

	if canvasW <= 0 || canvasH <= 0 {
		return frame.Frame{}, fmt.Errorf("compositor: invalid canvas dimensions %dx%d", canvasW, canvasH)
	}

	target := ebiten.NewImage(canvasW, canvasH)
	defer target.Deallocate()

	for _, layer := range layers {
		if !layer.Frame.HasPixels() {
			continue
		}
		src, err := frameToEbitenImage(layer.Frame)
		if err != nil {
			return frame.Frame{}, err
		}

		opts := &ebiten.DrawImageOptions{Blend: gpuBlend(layer.BlendMode)}
		lw, lh := layer.Frame.Width(), layer.Frame.Height()
		// Same model as the CPU sampler: the layer is centered on the
		// canvas, pivot offsets the scale/rotate origin, Y is up, and
		// ebiten's screen-space rotation runs opposite the frame-space
		// convention.
		opts.GeoM.Translate(-float64(lw)/2-layer.Transform.PivotX, -float64(lh)/2+layer.Transform.PivotY)
		opts.GeoM.Scale(nonZero(layer.Transform.ScaleX), nonZero(layer.Transform.ScaleY))
		opts.GeoM.Rotate(-layer.Transform.Rotation)
		opts.GeoM.Translate(float64(canvasW)/2+layer.Transform.X, float64(canvasH)/2-layer.Transform.Y)

		if layer.BlendMode != Add {
			opts.ColorScale.ScaleAlpha(float32(clamp01(layer.Opacity)))
		}
		target.DrawImage(src, opts)
		src.Deallocate()
	}

	return ebitenImageToFrame(target, canvasW, canvasH), nil
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// gpuBlend maps a BlendMode to the ebiten.Blend equation that reproduces
// it, using custom blend factors where no predefined ebiten.Blend
// matches.
func gpuBlend(mode BlendMode) ebiten.Blend {
	switch mode {
	case Normal:
		return ebiten.BlendSourceOver
	case Add:
		return ebiten.BlendLighter
	case Screen:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorOne,
			BlendFactorSourceAlpha:      ebiten.BlendFactorOne,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceColor,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case Multiply:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorDestinationColor,
			BlendFactorSourceAlpha:      ebiten.BlendFactorDestinationAlpha,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceAlpha,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case Subtract:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorOne,
			BlendFactorSourceAlpha:      ebiten.BlendFactorOne,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOne,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOne,
			BlendOperationRGB:           ebiten.BlendOperationReverseSubtract,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case Difference:
		// Ebiten has no dedicated abs-difference operation; this biases
		// toward the Subtract direction, which matches the CPU backend
		// only when src <= dst. The CPU backend remains the reference for
		// exact Difference results.
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorOne,
			BlendFactorSourceAlpha:      ebiten.BlendFactorOne,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOne,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOne,
			BlendOperationRGB:           ebiten.BlendOperationReverseSubtract,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case Divide:
		// No GPU blend-equation factor expresses division; callers needing
		// an exact Divide result should request the CPU backend.
		return ebiten.BlendSourceOver
	default:
		return ebiten.BlendSourceOver
	}
}

func frameToEbitenImage(f frame.Frame) (*ebiten.Image, error) {
	w, h := f.Width(), f.Height()
	img := ebiten.NewImage(w, h)
	rgba := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := f.At(x, y)
			off := (y*w + x) * 4
			rgba[off] = clampByte(c.R)
			rgba[off+1] = clampByte(c.G)
			rgba[off+2] = clampByte(c.B)
			rgba[off+3] = clampByte(c.A)
		}
	}
	img.WritePixels(rgba)
	return img, nil
}

func ebitenImageToFrame(img *ebiten.Image, w, h int) frame.Frame {
	rgba := make([]byte, w*h*4)
	img.ReadPixels(rgba)
	return frame.NewFromBytes("", w, h, w*4, frame.RGBA8, rgba)
}

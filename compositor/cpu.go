package compositor

import (
	"github.com/reelengine/reel/frame"
)

// CPUBackend blends layers with a per-pixel loop over Go slices: plain,
// portable, and the fallback when no GPU context is available.
type CPUBackend struct{}

// NewCPUBackend returns a ready-to-use CPU backend. It holds no state.
func NewCPUBackend() *CPUBackend { return &CPUBackend{} }

// Blend implements Backend. Layers are composited bottom-to-top; each
// destination pixel's source sample is found by mapping canvas space back
// into the layer's local pixel space through the inverse of its affine
// transform, then bilinear-sampled. Samples landing outside the layer
// contribute nothing (transparent black).
func (CPUBackend) Blend(layers []Layer, canvasW, canvasH int) (frame.Frame, error) {
	pix := make([]frame.Color, canvasW*canvasH)

	for _, layer := range layers {
		if !layer.Frame.HasPixels() {
			continue
		}
		inv := forward(layer.Transform).invert()
		lw, lh := float64(layer.Frame.Width()), float64(layer.Frame.Height())
		opacity := layer.Opacity

		for y := 0; y < canvasH; y++ {
			// canvas pixel space (Y-down, origin top-left) -> centered,
			// Y-up layer space used by Transform.
			cy := float64(canvasH)/2 - float64(y) - 0.5
			for x := 0; x < canvasW; x++ {
				cx := float64(x) - float64(canvasW)/2 + 0.5
				lx, ly := inv.apply(cx, cy)
				// layer-local centered coords -> layer pixel coords
				px := lx + lw/2 - 0.5
				py := lh/2 - ly - 0.5
				if px < -0.5 || py < -0.5 || px > lw-0.5 || py > lh-0.5 {
					continue
				}
				src := layer.Frame.SampleBilinear(px, py)
				dst := &pix[y*canvasW+x]
				*dst = blendOver(layer.BlendMode, src, *dst, opacity)
			}
		}
	}

	rawPix := make([]byte, canvasW*canvasH*frame.RGBA8.BytesPerPixel())
	for i, c := range pix {
		off := i * 4
		rawPix[off] = clampByte(c.R)
		rawPix[off+1] = clampByte(c.G)
		rawPix[off+2] = clampByte(c.B)
		rawPix[off+3] = clampByte(c.A)
	}
	return frame.NewFromBytes("", canvasW, canvasH, canvasW*4, frame.RGBA8, rawPix), nil
}

// blendOver composites src over dst under mode at opacity. Add is the one
// exception to opacity-weighted mixing: it is treated as pure unweighted
// addition (matching the GPU backend's ebiten.BlendLighter equation,
// whose factors are One/One with no alpha term), so a half-opacity
// additive layer still contributes its full color.
func blendOver(mode BlendMode, src, dst frame.Color, opacity float64) frame.Color {
	if mode == Add {
		return frame.Color{
			R: clamp01(dst.R + src.R*src.A),
			G: clamp01(dst.G + src.G*src.A),
			B: clamp01(dst.B + src.B*src.A),
			A: clamp01(dst.A + src.A),
		}
	}

	effAlpha := clamp01(src.A * opacity)
	blended := frame.Color{
		R: blendChannel(mode, src.R, dst.R),
		G: blendChannel(mode, src.G, dst.G),
		B: blendChannel(mode, src.B, dst.B),
	}
	mix := func(d, b float64) float64 { return d*(1-effAlpha) + b*effAlpha }
	return frame.Color{
		R: mix(dst.R, blended.R),
		G: mix(dst.G, blended.G),
		B: mix(dst.B, blended.B),
		A: effAlpha + dst.A*(1-effAlpha),
	}
}

func clampByte(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

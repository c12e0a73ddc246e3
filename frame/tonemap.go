package frame

import "math"

// TonemapOperator selects the HDR-to-LDR curve used by Tonemap.
type TonemapOperator uint8

const (
	Reinhard TonemapOperator = iota
	ACES
)

// Tonemap returns a NEW 8-bit RGBA frame derived from an HDR input. LDR
// (RGBA8) inputs are passed through as a plain copy — no curve is applied,
// since there is nothing to compress into range.
func (f Frame) Tonemap(exposure, gamma float64, op TonemapOperator) Frame {
	if f.buf == nil || f.status != Loaded {
		return NewUnloaded(f.path, f.width, f.height)
	}
	if !f.format.IsHDR() {
		return f.copyAs(RGBA8)
	}
	if gamma <= 0 {
		gamma = 1
	}
	if exposure <= 0 {
		exposure = 1
	}

	out := make([]byte, f.width*f.height*4)
	stride := f.width * 4
	invGamma := 1 / gamma
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			c := f.At(x, y)
			r := tonemapChannel(c.R*exposure, op)
			g := tonemapChannel(c.G*exposure, op)
			b := tonemapChannel(c.B*exposure, op)
			r = math.Pow(clamp01(r), invGamma)
			g = math.Pow(clamp01(g), invGamma)
			b = math.Pow(clamp01(b), invGamma)
			setAt(out, stride, RGBA8, x, y, Color{r, g, b, clamp01(c.A)})
		}
	}
	return Frame{format: RGBA8, width: f.width, height: f.height, stride: stride, path: f.path, status: Loaded, buf: &buffer{pix: out}}
}

func tonemapChannel(v float64, op TonemapOperator) float64 {
	switch op {
	case ACES:
		// Narkowicz ACES filmic fit.
		const a, b, c, d, e = 2.51, 0.03, 2.43, 0.59, 0.14
		return (v * (a*v + b)) / (v*(c*v+d) + e)
	default: // Reinhard
		return v / (1 + v)
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

// copyAs returns a detached copy of f re-encoded into format, with no
// tonemapping curve applied (used for the LDR pass-through case).
func (f Frame) copyAs(format Format) Frame {
	if f.format == format {
		pix := f.detach()
		return Frame{format: f.format, width: f.width, height: f.height, stride: f.stride, path: f.path, status: f.status, buf: &buffer{pix: pix}}
	}
	bpp := format.BytesPerPixel()
	stride := f.width * bpp
	out := make([]byte, f.height*stride)
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			setAt(out, stride, format, x, y, f.At(x, y))
		}
	}
	return Frame{format: format, width: f.width, height: f.height, stride: stride, path: f.path, status: Loaded, buf: &buffer{pix: out}}
}

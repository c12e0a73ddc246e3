package frame

// At returns the color at pixel (x, y) in straight-alpha [0,1]-ish floats
// (HDR formats may exceed 1). Out-of-bounds coordinates return transparent
// black, matching the compositor's "out-of-range samples contribute fully
// transparent" rule.
func (f Frame) At(x, y int) Color {
	if x < 0 || y < 0 || x >= f.width || y >= f.height || f.buf == nil {
		return Color{}
	}
	bpp := f.format.BytesPerPixel()
	off := y*f.stride + x*bpp
	pix := f.buf.pix
	if off+bpp > len(pix) {
		return Color{}
	}
	switch f.format {
	case RGBA16F:
		return Color{getF16(pix[off : off+2]), getF16(pix[off+2 : off+4]), getF16(pix[off+4 : off+6]), getF16(pix[off+6 : off+8])}
	case RGBA32F:
		return Color{getF32(pix[off : off+4]), getF32(pix[off+4 : off+8]), getF32(pix[off+8 : off+12]), getF32(pix[off+12 : off+16])}
	default:
		return Color{float64(pix[off]) / 255, float64(pix[off+1]) / 255, float64(pix[off+2]) / 255, float64(pix[off+3]) / 255}
	}
}

// setAt writes c at (x, y) into a private (detached) pixel buffer. Never
// call this on a Frame's own f.buf directly from exported code paths.
func setAt(pix []byte, stride int, format Format, x, y int, c Color) {
	bpp := format.BytesPerPixel()
	off := y*stride + x*bpp
	if off+bpp > len(pix) {
		return
	}
	switch format {
	case RGBA16F:
		putF16(pix[off:off+2], c.R)
		putF16(pix[off+2:off+4], c.G)
		putF16(pix[off+4:off+6], c.B)
		putF16(pix[off+6:off+8], c.A)
	case RGBA32F:
		putF32(pix[off:off+4], c.R)
		putF32(pix[off+4:off+8], c.G)
		putF32(pix[off+8:off+12], c.B)
		putF32(pix[off+12:off+16], c.A)
	default:
		pix[off] = u8(c.R)
		pix[off+1] = u8(c.G)
		pix[off+2] = u8(c.B)
		pix[off+3] = u8(c.A)
	}
}

// sampleBilinear samples f at fractional coordinates using bilinear
// filtering, matching the compositor's sampler. Out-of-range contributions
// are transparent black, so edges fade rather than clamp.
func (f Frame) sampleBilinear(x, y float64) Color {
	x0 := int(floor(x))
	y0 := int(floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	c00 := f.At(x0, y0)
	c10 := f.At(x0+1, y0)
	c01 := f.At(x0, y0+1)
	c11 := f.At(x0+1, y0+1)

	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	mix := func(a, b, c, d Color) Color {
		top := Color{lerp(a.R, b.R, fx), lerp(a.G, b.G, fx), lerp(a.B, b.B, fx), lerp(a.A, b.A, fx)}
		bot := Color{lerp(c.R, d.R, fx), lerp(c.G, d.G, fx), lerp(c.B, d.B, fx), lerp(c.A, d.A, fx)}
		return Color{lerp(top.R, bot.R, fy), lerp(top.G, bot.G, fy), lerp(top.B, bot.B, fy), lerp(top.A, bot.A, fy)}
	}
	return mix(c00, c10, c01, c11)
}

// SampleBilinear exposes sampleBilinear for the compositor package.
func (f Frame) SampleBilinear(x, y float64) Color { return f.sampleBilinear(x, y) }

func floor(v float64) float64 {
	i := int(v)
	if v < 0 && float64(i) != v {
		i--
	}
	return float64(i)
}

package frame

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Alignment controls where the source frame is anchored within the
// destination bounds when CropCopy changes aspect ratio.
type Alignment uint8

const (
	AlignCenter  Alignment = iota // center the source, crop evenly
	AlignTopLeft                  // anchor at (0,0)
	AlignTopRight
	AlignBottomLeft
	AlignBottomRight
)

// CropCopy returns a NEW frame resized/cropped to (newW, newH); the
// receiver is never modified. Scaling uses bilinear resampling
// (golang.org/x/image/draw.BiLinear). When the aspect ratio changes the
// source is cropped to the destination aspect, anchored by alignment; it
// is never padded.
func (f Frame) CropCopy(newW, newH int, alignment Alignment) Frame {
	if newW <= 0 || newH <= 0 {
		return NewUnloaded(f.path, newW, newH)
	}
	if f.buf == nil || f.status != Loaded {
		return NewUnloaded(f.path, newW, newH)
	}

	src := f.toGoImage()
	dstRect, srcRect := alignedRects(f.width, f.height, newW, newH, alignment)

	dst := image.NewNRGBA(image.Rect(0, 0, newW, newH))
	draw.BiLinear.Scale(dst, dstRect, src, srcRect, draw.Over, nil)

	pix := goImageToFormat(dst, f.format)
	return Frame{
		format: f.format,
		width:  newW,
		height: newH,
		stride: newW * f.format.BytesPerPixel(),
		path:   f.path,
		status: Loaded,
		buf:    &buffer{pix: pix},
	}
}

// alignedRects computes the destination sub-rectangle that receives the
// scaled source, and the source rectangle that feeds it, so that aspect
// ratio mismatches crop rather than stretch.
func alignedRects(sw, sh, dw, dh int, alignment Alignment) (dstRect, srcRect image.Rectangle) {
	srcAspect := float64(sw) / float64(sh)
	dstAspect := float64(dw) / float64(dh)

	if srcAspect > dstAspect {
		// source is wider than destination: crop source width.
		cropW := int(float64(sh) * dstAspect)
		offX := alignOffset(sw-cropW, alignment, true)
		return image.Rect(0, 0, dw, dh), image.Rect(offX, 0, offX+cropW, sh)
	}
	if srcAspect < dstAspect {
		cropH := int(float64(sw) / dstAspect)
		offY := alignOffset(sh-cropH, alignment, false)
		return image.Rect(0, 0, dw, dh), image.Rect(0, offY, sw, offY+cropH)
	}
	return image.Rect(0, 0, dw, dh), image.Rect(0, 0, sw, sh)
}

func alignOffset(slack int, alignment Alignment, horizontal bool) int {
	if slack <= 0 {
		return 0
	}
	switch alignment {
	case AlignTopLeft, AlignBottomLeft:
		if horizontal {
			return 0
		}
	case AlignTopRight, AlignBottomRight:
		if horizontal {
			return slack
		}
	}
	switch alignment {
	case AlignTopLeft, AlignTopRight:
		if !horizontal {
			return 0
		}
	case AlignBottomLeft, AlignBottomRight:
		if !horizontal {
			return slack
		}
	}
	return slack / 2
}

// toGoImage adapts a Loaded Frame to a standard library image.Image for use
// with golang.org/x/image/draw, converting straight-alpha float channels to
// NRGBA as needed.
func (f Frame) toGoImage() image.Image {
	if f.format == RGBA8 {
		return &image.NRGBA{Pix: f.buf.pix, Stride: f.stride, Rect: image.Rect(0, 0, f.width, f.height)}
	}
	img := image.NewNRGBA(image.Rect(0, 0, f.width, f.height))
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			c := f.At(x, y)
			img.SetNRGBA(x, y, color.NRGBA{R: u8(c.R), G: u8(c.G), B: u8(c.B), A: u8(c.A)})
		}
	}
	return img
}

// goImageToFormat re-encodes an NRGBA image into the target pixel format.
func goImageToFormat(img *image.NRGBA, format Format) []byte {
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	if format == RGBA8 {
		pix := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			copy(pix[y*w*4:(y+1)*w*4], img.Pix[y*img.Stride:y*img.Stride+w*4])
		}
		return pix
	}
	bpp := format.BytesPerPixel()
	pix := make([]byte, w*h*bpp)
	stride := w * bpp
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.NRGBAAt(x, y)
			col := Color{float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255, float64(c.A) / 255}
			setAt(pix, stride, format, x, y, col)
		}
	}
	return pix
}

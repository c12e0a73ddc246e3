package reel

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reelengine/reel/frame"
)

// SaveFramePNG writes f as a labeled, timestamped PNG under dir, creating
// the directory if needed. HDR frames are tonemapped to 8-bit with the
// Reinhard operator first. Returns the written path.
func SaveFramePNG(f frame.Frame, dir, label string) (string, error) {
	if !f.HasPixels() {
		return "", fmt.Errorf("reel: frame has no pixels to save")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("screenshot: mkdir %s: %w", dir, err)
	}

	if f.Format().IsHDR() {
		f = f.Tonemap(0, 2.2, frame.Reinhard)
	}

	img := image.NewNRGBA(image.Rect(0, 0, f.Width(), f.Height()))
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			c := f.At(x, y)
			i := y*img.Stride + x*4
			img.Pix[i] = u8FromUnit(c.R)
			img.Pix[i+1] = u8FromUnit(c.G)
			img.Pix[i+2] = u8FromUnit(c.B)
			img.Pix[i+3] = u8FromUnit(c.A)
		}
	}

	stamp := time.Now().Format("20060102_150405")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", stamp, sanitizeLabel(label)))
	if err := writePNG(path, img); err != nil {
		return "", err
	}
	return path, nil
}

// writePNG encodes an image to a PNG file at the given path.
func writePNG(path string, img *image.NRGBA) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return out.Close()
}

// sanitizeLabel replaces characters that are unsafe in file names with
// underscores and falls back to "unlabeled" for empty strings.
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

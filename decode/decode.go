// Package decode provides a concrete Decoder satisfying the engine's opaque
// decode(path) -> (Frame, DecodeError) collaborator contract: PNG and JPEG
// via the standard library, NIE via github.com/google/wuffs/lib/nie, and an
// injectable VideoDecoder for the `movie.ext@N` path convention.
package decode

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"regexp"
	"strconv"

	_ "github.com/google/wuffs/lib/nie"

	"github.com/reelengine/reel/frame"
)

// VideoDecoder is supplied by a host application to decode frame N of a
// video container, since demuxing is deliberately out of this package's
// scope.
type VideoDecoder interface {
	DecodeFrame(path string, frameNumber int) (frame.Frame, error)
}

var videoPathPattern = regexp.MustCompile(`^(.+)@(\d+)$`)

// Decoder resolves a path to a Frame using the standard library's
// image.Decode registry (PNG, JPEG, and NIE once this package is imported)
// plus an optional VideoDecoder for `movie.ext@N` paths.
type Decoder struct {
	Video VideoDecoder
}

// New returns a Decoder with no video support installed; assign Video to
// enable `movie.ext@N` paths.
func New() *Decoder { return &Decoder{} }

// Decode reads path and returns a Loaded Frame, or a Frame with
// status=Error wrapping a *frame.DecodeError on failure. It never returns a
// Go error directly: callers insert the result into the cache either way,
// per the "surfaced as an Error-status Frame" policy.
func (d *Decoder) Decode(path string) frame.Frame {
	if m := videoPathPattern.FindStringSubmatch(path); m != nil {
		return d.decodeVideo(path, m[1], m[2])
	}
	return decodeStillImage(path)
}

func (d *Decoder) decodeVideo(path, container, frameStr string) frame.Frame {
	if d.Video == nil {
		return frame.NewError(path, 0, 0, &frame.DecodeError{
			Kind: frame.UnsupportedFormat,
			Path: path,
			Err:  fmt.Errorf("decode: no VideoDecoder installed for %q", container),
		})
	}
	n, err := strconv.Atoi(frameStr)
	if err != nil {
		return frame.NewError(path, 0, 0, &frame.DecodeError{Kind: frame.UnsupportedFormat, Path: path, Err: err})
	}
	f, err := d.Video.DecodeFrame(container, n)
	if err != nil {
		return frame.NewError(path, 0, 0, &frame.DecodeError{Kind: frame.DecodeFailed, Path: path, Err: err})
	}
	return f
}

func decodeStillImage(path string) frame.Frame {
	file, err := os.Open(path)
	if err != nil {
		kind := frame.IoError
		if errors.Is(err, os.ErrNotExist) {
			kind = frame.FileNotFound
		}
		return frame.NewError(path, 0, 0, &frame.DecodeError{Kind: kind, Path: path, Err: err})
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		kind := frame.DecodeFailed
		if errors.Is(err, image.ErrFormat) {
			kind = frame.UnsupportedFormat
		}
		return frame.NewError(path, 0, 0, &frame.DecodeError{Kind: kind, Path: path, Err: err})
	}
	_ = format

	return imageToFrame(path, img)
}

func imageToFrame(path string, img image.Image) frame.Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			off := (y*w + x) * 4
			if a == 0 {
				continue
			}
			// image.Color.RGBA is alpha-premultiplied; frame.Frame stores
			// straight alpha, so undo the premultiplication here.
			pix[off] = byte((r * 0xffff / a) >> 8)
			pix[off+1] = byte((g * 0xffff / a) >> 8)
			pix[off+2] = byte((b * 0xffff / a) >> 8)
			pix[off+3] = byte(a >> 8)
		}
	}
	return frame.NewFromBytes(path, w, h, w*4, frame.RGBA8, pix)
}

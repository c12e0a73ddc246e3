package reel

import (
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/frame"
)

// fontRegistry maps a font_family attribute value to a parsed font. The
// Go regular face is always present under "" and "go" so a Text node
// renders something sensible before a host registers its own fonts.
var fontRegistry = struct {
	mu    sync.RWMutex
	fonts map[string]*sfnt.Font
}{fonts: map[string]*sfnt.Font{}}

func init() {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		panic("reel: parsing embedded fallback font: " + err.Error())
	}
	fontRegistry.fonts[""] = f
	fontRegistry.fonts["go"] = f
}

// RegisterFont parses TTF/OTF data and makes it available to Text nodes
// under family. Registering the same family again replaces the font.
func RegisterFont(family string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return err
	}
	fontRegistry.mu.Lock()
	fontRegistry.fonts[family] = f
	fontRegistry.mu.Unlock()
	return nil
}

func lookupFont(family string) *sfnt.Font {
	fontRegistry.mu.RLock()
	defer fontRegistry.mu.RUnlock()
	if f, ok := fontRegistry.fonts[family]; ok {
		return f
	}
	return fontRegistry.fonts[""]
}

// computeText rasterizes the node's string at its current attribute values
// into an RGBA8 Frame. Text does not vary with the frame index, but the
// result is still cached per requested frame key so a composition's
// painter loop treats Text sources exactly like any other layer input.
func (n *Node) computeText(frameIndex int64, ctx *ComputeContext) (frame.Frame, error) {
	key := cache.Key{Node: n.ID, Frame: frameIndex}
	if f, ok := n.Cache.Get(key); ok {
		return f, nil
	}

	textV, _ := n.Bag.Get("text")
	str, _ := textV.String_()
	famV, _ := n.Bag.Get("font_family")
	family, _ := famV.String_()
	sizeV, _ := n.Bag.Get("font_size")
	size, _ := sizeV.Float32()
	colV, _ := n.Bag.Get("color")
	col, _ := colV.Vec4_()

	if size <= 0 {
		size = 12
	}

	face, err := opentype.NewFace(lookupFont(family), &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return frame.NewError("", 0, 0, err), nil
	}
	defer face.Close()

	out := rasterizeText(str, face, color.NRGBA{
		R: u8FromUnit(col.X),
		G: u8FromUnit(col.Y),
		B: u8FromUnit(col.Z),
		A: u8FromUnit(col.W),
	})

	n.Cache.Insert(key, out, ctx.Epoch)
	n.Bag.ClearDirty()
	return out, nil
}

// rasterizeText draws str in a tight bounding box and returns it as an
// RGBA8 frame with straight alpha.
func rasterizeText(str string, face font.Face, col color.NRGBA) frame.Frame {
	if str == "" {
		return frame.NewFilled(1, 1, frame.RGBA8, frame.Color{})
	}

	metrics := face.Metrics()
	width := font.MeasureString(face, str).Ceil()
	ascent := metrics.Ascent.Ceil()
	height := ascent + metrics.Descent.Ceil()
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(str)

	return frame.NewFromBytes("", width, height, img.Stride, frame.RGBA8, img.Pix)
}

func u8FromUnit(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

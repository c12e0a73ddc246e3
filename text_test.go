package reel

import (
	"testing"

	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/frame"
)

func TestTextComputeRasterizesAndCaches(t *testing.T) {
	p := testProject(t)
	txt := NewText("Hello", "", 24)
	if err := p.AddNode(txt); err != nil {
		t.Fatal(err)
	}

	out, err := txt.Compute(0, mainThreadCtx(p))
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsLoaded() || out.Width() < 1 || out.Height() < 1 {
		t.Fatalf("rasterized frame = %v, want loaded with nonzero bounds", out)
	}
	if !p.Cache().Contains(cache.Key{Node: txt.ID, Frame: 0}) {
		t.Error("text compute must cache its result")
	}

	// Some pixel must carry ink.
	covered := false
	for y := 0; y < out.Height() && !covered; y++ {
		for x := 0; x < out.Width(); x++ {
			if out.At(x, y).A > 0.5 {
				covered = true
				break
			}
		}
	}
	if !covered {
		t.Error("no opaque pixels in rasterized text")
	}
}

func TestTextComputeUsesColorAttribute(t *testing.T) {
	p := testProject(t)
	txt := NewText("X", "", 32)
	txt.Bag.Set("color", Vec4Value(Vec4{X: 1, Y: 0, Z: 0, W: 1}))
	if err := p.AddNode(txt); err != nil {
		t.Fatal(err)
	}

	out, err := txt.Compute(0, mainThreadCtx(p))
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < out.Height(); y++ {
		for x := 0; x < out.Width(); x++ {
			if c := out.At(x, y); c.A > 0.9 {
				if c.R < 0.9 || c.G > 0.1 || c.B > 0.1 {
					t.Fatalf("ink pixel = %+v, want red", c)
				}
				return
			}
		}
	}
	t.Fatal("no fully opaque ink pixel found")
}

func TestTextComputeEmptyString(t *testing.T) {
	p := testProject(t)
	txt := NewText("", "", 24)
	if err := p.AddNode(txt); err != nil {
		t.Fatal(err)
	}
	out, err := txt.Compute(0, mainThreadCtx(p))
	if err != nil {
		t.Fatal(err)
	}
	if !out.HasPixels() {
		t.Fatal("empty text must still produce a (transparent) frame")
	}
	if out.At(0, 0).A != 0 {
		t.Error("empty text frame must be transparent")
	}
}

func TestRegisterFontRejectsGarbage(t *testing.T) {
	if err := RegisterFont("broken", []byte("not a font")); err == nil {
		t.Error("RegisterFont must reject unparseable data")
	}
}

func TestRasterizeTextUnknownFamilyFallsBack(t *testing.T) {
	p := testProject(t)
	txt := NewText("fallback", "no-such-family", 16)
	if err := p.AddNode(txt); err != nil {
		t.Fatal(err)
	}
	out, err := txt.Compute(0, mainThreadCtx(p))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status() != frame.Loaded {
		t.Errorf("status = %v, want Loaded via fallback font", out.Status())
	}
}

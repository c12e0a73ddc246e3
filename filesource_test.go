package reel

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/compositor"
	"github.com/reelengine/reel/decode"
	"github.com/reelengine/reel/frame"
)

func TestResolveFileMask(t *testing.T) {
	cases := []struct {
		mask string
		seq  int64
		want string
	}{
		{"shot_####.png", 42, "shot_0042.png"},
		{"shot_####.png", 12345, "shot_12345.png"},
		{"f#.png", 7, "f7.png"},
		{"plain.png", 3, "plain.png"},
		{"a_##_b_##.png", 5, "a_05_b_##.png"}, // only the first run substitutes
	}
	for _, tc := range cases {
		if got := resolveFileMask(tc.mask, tc.seq); got != tc.want {
			t.Errorf("resolveFileMask(%q, %d) = %q, want %q", tc.mask, tc.seq, got, tc.want)
		}
	}
}

func writeTestPNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFileSourceComputeOutOfRange(t *testing.T) {
	p := testProject(t)
	src := NewFileSource("seq_####.png", 10, 20, 0, 10)
	if err := p.AddNode(src); err != nil {
		t.Fatal(err)
	}

	out, err := src.Compute(99, mainThreadCtx(p))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status() != frame.Unloaded || out.Path() != "" {
		t.Errorf("out-of-range compute = %v, want pathless Unloaded placeholder", out)
	}
}

func TestFileSourceMainThreadComputeNeverDecodes(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "seq_0010.png"), color.NRGBA{R: 255, A: 255})

	p := testProject(t)
	src := NewFileSource(filepath.Join(dir, "seq_####.png"), 10, 20, 0, 10)
	if err := p.AddNode(src); err != nil {
		t.Fatal(err)
	}

	out, err := src.Compute(0, mainThreadCtx(p))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status() != frame.Unloaded {
		t.Errorf("status = %v, want Unloaded placeholder on the main thread", out.Status())
	}
	if out.Path() != filepath.Join(dir, "seq_0010.png") {
		t.Errorf("path = %q, want resolved sequence path", out.Path())
	}
	if p.Cache().Contains(cache.Key{Node: src.ID, Frame: 0}) {
		t.Error("main-thread compute must not populate the cache")
	}
}

func TestFileSourceWorkerComputeDecodesAndCaches(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "seq_0012.png"), color.NRGBA{G: 255, A: 255})

	p := testProject(t)
	src := NewFileSource(filepath.Join(dir, "seq_####.png"), 10, 20, 0, 10)
	if err := p.AddNode(src); err != nil {
		t.Fatal(err)
	}

	ctx := p.computeContext(p.Mem().CurrentEpoch(), true, decode.New(), compositor.NewCPUBackend())
	out, err := src.Compute(2, ctx) // frame 2 -> sequence 12
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsLoaded() {
		t.Fatalf("worker compute status = %v, want Loaded", out.Status())
	}
	if c := out.At(0, 0); c.G < 0.9 {
		t.Errorf("decoded pixel = %+v, want green", c)
	}
	if got, ok := p.Cache().Get(cache.Key{Node: src.ID, Frame: 2}); !ok || !got.IsLoaded() {
		t.Error("worker compute must cache the decoded frame")
	}
}

func TestFileSourceWorkerComputeCachesDecodeError(t *testing.T) {
	p := testProject(t)
	src := NewFileSource(filepath.Join(t.TempDir(), "missing_####.png"), 0, 10, 0, 10)
	if err := p.AddNode(src); err != nil {
		t.Fatal(err)
	}

	ctx := p.computeContext(p.Mem().CurrentEpoch(), true, decode.New(), compositor.NewCPUBackend())
	out, err := src.Compute(3, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status() != frame.Error {
		t.Fatalf("status = %v, want Error placeholder for a missing file", out.Status())
	}
	if st := p.Cache().Status(cache.Key{Node: src.ID, Frame: 3}); st != cache.ErrorStatus {
		t.Errorf("cache status = %v, want ErrorStatus", st)
	}
}

func TestFileSourceOutOfRangePlaceholderCarriesBounds(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "seq_0010.png"), color.NRGBA{B: 255, A: 255})

	p := testProject(t)
	src := NewFileSource(filepath.Join(dir, "seq_####.png"), 10, 10, 0, 0)
	if err := p.AddNode(src); err != nil {
		t.Fatal(err)
	}

	ctx := p.computeContext(p.Mem().CurrentEpoch(), true, decode.New(), compositor.NewCPUBackend())
	if _, err := src.Compute(0, ctx); err != nil {
		t.Fatal(err)
	}
	if w, h := src.Bounds(); w != 2 || h != 2 {
		t.Fatalf("Bounds after decode = %dx%d, want 2x2", w, h)
	}

	out, err := src.Compute(50, ctx) // outside [file_start, file_end]
	if err != nil {
		t.Fatal(err)
	}
	if out.Status() != frame.Unloaded {
		t.Fatalf("status = %v, want Unloaded placeholder", out.Status())
	}
	if out.Width() != 2 || out.Height() != 2 {
		t.Errorf("placeholder dims = %dx%d, want sized to source bounds 2x2", out.Width(), out.Height())
	}
}

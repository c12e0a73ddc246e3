package reel

import (
	"testing"

	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/frame"
)

func TestAddNodeInstallsRuntimeHandles(t *testing.T) {
	p := testProject(t)
	n := NewFileSource("a_####.png", 0, 10, 0, 10)
	if n.Cache != nil || n.Mem != nil {
		t.Fatal("fresh node must have no runtime handles")
	}
	if err := p.AddNode(n); err != nil {
		t.Fatal(err)
	}
	if n.Cache != p.Cache() || n.Mem != p.Mem() {
		t.Error("AddNode must install the project's cache and memory handles")
	}
	if err := p.AddNode(n); err == nil {
		t.Error("re-adding the same node must be rejected")
	}
}

func TestFirstCompositionBecomesActive(t *testing.T) {
	p := testProject(t)
	src := NewFileSource("a_####.png", 0, 10, 0, 10)
	comp := NewComposition(64, 64, 0, 10, 24)
	if err := p.AddNode(src); err != nil {
		t.Fatal(err)
	}
	if err := p.AddNode(comp); err != nil {
		t.Fatal(err)
	}
	if p.Active() != comp.ID {
		t.Errorf("active = %s, want first composition %s", p.Active(), comp.ID)
	}
	if order := p.CompsOrder(); len(order) != 1 || order[0] != comp.ID {
		t.Errorf("comps order = %v, want [%s]", order, comp.ID)
	}
}

func TestRemoveNodeClearsCacheAndLayers(t *testing.T) {
	p := testProject(t)
	comp := NewComposition(4, 4, 0, 10, 24)
	src := NewComposition(4, 4, 0, 10, 24)
	if err := p.AddNode(comp); err != nil {
		t.Fatal(err)
	}
	if err := p.AddNode(src); err != nil {
		t.Fatal(err)
	}
	if _, err := p.AddLayer(comp.ID, src.ID, 0, 10, 1); err != nil {
		t.Fatal(err)
	}

	key := cache.Key{Node: src.ID, Frame: 0}
	p.Cache().Insert(key, frame.NewFilled(4, 4, frame.RGBA8, frame.Color{R: 1, A: 1}), 1)

	if !p.RemoveNode(src.ID) {
		t.Fatal("RemoveNode reported the node missing")
	}
	if p.Cache().Contains(key) {
		t.Error("removed node's cache entries must be cleared")
	}
	if got := comp.Children(); len(got) != 0 {
		t.Errorf("comp still has %d layers referencing the removed node", len(got))
	}
	if !comp.Dirty() {
		t.Error("composition must be dirtied when its layer is removed")
	}
	if _, ok := p.Node(src.ID); ok {
		t.Error("node still resolvable after removal")
	}
}

// TestCascadeInvalidation covers the opacity-change scenario: modifying a
// layer attribute on the parent comp invalidates the comp's cached frame
// but leaves the untouched source's entry alone.
func TestCascadeInvalidation(t *testing.T) {
	p := testProject(t)
	comp := NewComposition(4, 4, 0, 100, 24)
	srcFrame := frame.NewFilled(4, 4, frame.RGBA8, frame.Color{R: 1, A: 1})
	src := NewComposition(4, 4, 0, 100, 24)
	if err := p.AddNode(comp); err != nil {
		t.Fatal(err)
	}
	if err := p.AddNode(src); err != nil {
		t.Fatal(err)
	}
	entry, err := p.AddLayer(comp.ID, src.ID, 0, 100, 1)
	if err != nil {
		t.Fatal(err)
	}

	ctx := mainThreadCtx(p)
	ctx.Cache.Insert(cache.Key{Node: src.ID, Frame: 42}, srcFrame, ctx.Epoch)
	before, err := comp.Compute(42, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Cache().Contains(cache.Key{Node: comp.ID, Frame: 42}) {
		t.Fatal("compute must cache the composited frame")
	}

	if err := p.ModifyNode(comp.ID, func(*Node) {
		if err := entry.SetAttr("opacity", Float32Value(0.5)); err != nil {
			t.Fatal(err)
		}
	}); err != nil {
		t.Fatal(err)
	}

	if p.Cache().Contains(cache.Key{Node: comp.ID, Frame: 42}) {
		t.Error("comp cache entry must be invalidated after the layer change")
	}
	if !p.Cache().Contains(cache.Key{Node: src.ID, Frame: 42}) {
		t.Error("source cache entry must survive: its own attrs did not change")
	}

	after, err := comp.Compute(42, mainThreadCtx(p))
	if err != nil {
		t.Fatal(err)
	}
	if before.At(2, 2) == after.At(2, 2) {
		t.Error("recomposited frame must differ after the opacity change")
	}
	if got := after.At(2, 2); got.R < 0.4 || got.R > 0.6 {
		t.Errorf("half-opacity red over transparent = %+v, want R near 0.5", got)
	}
}

func TestModifyNodeNonDAGLeavesCacheAlone(t *testing.T) {
	p := testProject(t)
	comp := NewComposition(4, 4, 0, 10, 24)
	if err := p.AddNode(comp); err != nil {
		t.Fatal(err)
	}
	key := cache.Key{Node: comp.ID, Frame: 0}
	p.Cache().Insert(key, frame.NewFilled(4, 4, frame.RGBA8, frame.Color{A: 1}), 1)

	if err := p.ModifyNode(comp.ID, func(n *Node) {
		n.Bag.Set("name", StringValue("renamed")) // non-DAG
	}); err != nil {
		t.Fatal(err)
	}
	if !p.Cache().Contains(key) {
		t.Error("non-DAG modification must not invalidate the cache")
	}

	if err := p.ModifyNode(comp.ID, func(n *Node) {
		n.Bag.Set("width", Int32Value(8)) // DAG
	}); err != nil {
		t.Fatal(err)
	}
	if p.Cache().Contains(key) {
		t.Error("DAG modification must invalidate the node's cache entries")
	}
}

func TestInvalidateUpwardReachesGrandparents(t *testing.T) {
	p := testProject(t)
	leaf := NewComposition(4, 4, 0, 10, 24)
	mid := NewComposition(4, 4, 0, 10, 24)
	root := NewComposition(4, 4, 0, 10, 24)
	for _, n := range []*Node{leaf, mid, root} {
		if err := p.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.AddLayer(mid.ID, leaf.ID, 0, 10, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := p.AddLayer(root.ID, mid.ID, 0, 10, 1); err != nil {
		t.Fatal(err)
	}

	for _, n := range []*Node{leaf, mid, root} {
		p.Cache().Insert(cache.Key{Node: n.ID, Frame: 0}, frame.NewFilled(4, 4, frame.RGBA8, frame.Color{A: 1}), 1)
		n.Bag.ClearDirty()
	}

	if err := p.ModifyNode(leaf.ID, func(n *Node) {
		n.Bag.Set("width", Int32Value(8))
	}); err != nil {
		t.Fatal(err)
	}

	for _, n := range []*Node{leaf, mid, root} {
		if p.Cache().Contains(cache.Key{Node: n.ID, Frame: 0}) {
			t.Errorf("%s cache entry survived a leaf DAG change", n.ID)
		}
		if !n.Dirty() {
			t.Errorf("%s not marked dirty by the cascade", n.ID)
		}
	}
}

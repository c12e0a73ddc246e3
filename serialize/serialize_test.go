package serialize

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/reelengine/reel"
	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/memmgr"
)

func newEmptyProject() *reel.Project {
	mem := memmgr.NewWithLimit(1<<24, nil)
	return reel.NewProject(mem, cache.New(mem, cache.KeepAll, nil), nil)
}

// buildProject constructs a project with a source nested two compositions
// deep and non-default attributes on every node.
func buildProject(t *testing.T) (*reel.Project, uuid.UUID) {
	t.Helper()
	p := newEmptyProject()

	src := reel.NewFileSource("shots/a_####.png", 1, 100, 0, 99)
	src.Bag.Set("name", reel.StringValue("plate A"))
	inner := reel.NewComposition(640, 360, 0, 99, 24)
	inner.Bag.Set("name", reel.StringValue("inner"))
	outer := reel.NewComposition(1920, 1080, 0, 199, 30)
	outer.Bag.Set("name", reel.StringValue("outer"))

	for _, n := range []*reel.Node{src, inner, outer} {
		if err := p.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.AddLayer(inner.ID, src.ID, 0, 99, 1); err != nil {
		t.Fatal(err)
	}
	entry, err := p.AddLayer(outer.ID, inner.ID, 10, 109, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := entry.SetAttr("opacity", reel.Float32Value(0.5)); err != nil {
		t.Fatal(err)
	}
	if err := p.SetActive(outer.ID); err != nil {
		t.Fatal(err)
	}
	return p, outer.ID
}

func TestRoundTrip(t *testing.T) {
	p, activeID := buildProject(t)

	data, err := Save(p)
	if err != nil {
		t.Fatal(err)
	}

	loaded := newEmptyProject()
	if err := Load(data, loaded); err != nil {
		t.Fatal(err)
	}

	if got := loaded.Active(); got != activeID {
		t.Errorf("active = %s, want %s", got, activeID)
	}
	if len(loaded.Nodes()) != 3 {
		t.Fatalf("loaded %d nodes, want 3", len(loaded.Nodes()))
	}
	if len(loaded.CompsOrder()) != 2 {
		t.Fatalf("loaded %d comps in order, want 2", len(loaded.CompsOrder()))
	}

	// Every node's DAG-flagged state must survive: compare stable hashes
	// pairwise by id.
	for _, orig := range p.Nodes() {
		got, ok := loaded.Node(orig.ID)
		if !ok {
			t.Fatalf("node %s missing after load", orig.ID)
		}
		if got.Kind != orig.Kind {
			t.Errorf("node %s kind = %s, want %s", orig.ID, got.Kind, orig.Kind)
		}
		if got.Bag.HashStable() != orig.Bag.HashStable() {
			t.Errorf("node %s attribute hash changed across round-trip", orig.ID)
		}
		origChildren := orig.Children()
		gotChildren := got.Children()
		if len(gotChildren) != len(origChildren) {
			t.Fatalf("node %s has %d children, want %d", orig.ID, len(gotChildren), len(origChildren))
		}
		for i := range origChildren {
			if gotChildren[i].InstanceID != origChildren[i].InstanceID {
				t.Errorf("child %d instance id changed", i)
			}
			if gotChildren[i].Bag.HashStable() != origChildren[i].Bag.HashStable() {
				t.Errorf("child %d attribute hash changed across round-trip", i)
			}
		}
	}
}

func TestSaveIsStableAcrossRoundTrip(t *testing.T) {
	p, _ := buildProject(t)

	first, err := Save(p)
	if err != nil {
		t.Fatal(err)
	}
	loaded := newEmptyProject()
	if err := Load(first, loaded); err != nil {
		t.Fatal(err)
	}
	second, err := Save(loaded)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("save(load(save(p))) differs from save(p)")
	}
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	p, _ := buildProject(t)
	data, err := Save(p)
	if err != nil {
		t.Fatal(err)
	}

	// A newer writer added a top-level key and nothing else.
	augmented := "future_feature = \"yes\"\n" + string(data)

	loaded := newEmptyProject()
	if err := Load([]byte(augmented), loaded); err != nil {
		t.Fatalf("load with unknown key failed: %v", err)
	}
	if len(loaded.Nodes()) != 3 {
		t.Errorf("loaded %d nodes, want 3", len(loaded.Nodes()))
	}
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	doc := `
[media.00000000-0000-0000-0000-000000000001]
id = "00000000-0000-0000-0000-000000000001"
kind = "Hologram"
`
	err := Load([]byte(doc), newEmptyProject())
	if err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Fatalf("err = %v, want unknown kind error", err)
	}
}

func TestValueEncodingCoversAggregates(t *testing.T) {
	id := uuid.New()
	cases := []reel.Value{
		reel.UUIDValue(id),
		reel.Vec3Value(reel.Vec3{X: 1, Y: 2, Z: 3}),
		reel.Vec4Value(reel.Vec4{X: 1, Y: 2, Z: 3, W: 4}),
		reel.Mat3Value(reel.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9}),
		reel.ListValue([]reel.Value{reel.Int32Value(7), reel.StringValue("x")}),
		reel.JSONValue(`{"a":1}`),
	}
	for _, v := range cases {
		got, err := decodeValue(encodeValue(v))
		if err != nil {
			t.Fatalf("%s: %v", v.Kind(), err)
		}
		if got.Kind() != v.Kind() {
			t.Errorf("kind changed: %s -> %s", v.Kind(), got.Kind())
		}
	}
}

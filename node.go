package reel

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/compositor"
	"github.com/reelengine/reel/decode"
	"github.com/reelengine/reel/memmgr"
)

// Kind tags which variant a Node is. The Node contract is implemented
// through a switch on Kind inside each operation rather than through an
// interface per variant: one concrete type, static dispatch.
type Kind uint8

const (
	KindFileSource Kind = iota
	KindComposition
	KindCamera
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindFileSource:
		return "FileSource"
	case KindComposition:
		return "Composition"
	case KindCamera:
		return "Camera"
	case KindText:
		return "Text"
	default:
		return "Kind(?)"
	}
}

// ComputeContext threads the collaborators a node's compute() needs without
// every node holding its own copies: the cache and memory manager it was
// installed with by add_node, the decoder for FileSource, and the epoch a
// recursive compute chain was issued under.
type ComputeContext struct {
	Cache   *cache.Cache
	Mem     *memmgr.Manager
	Decoder *decode.Decoder
	Blend   compositor.Backend
	Epoch   uint64

	// Synchronous marks a compute chain running on a worker: FileSource
	// decodes cache misses inline instead of handing back Unloaded
	// placeholders. Main-thread chains leave it false so the UI never
	// blocks on a decode.
	Synchronous bool

	// lookup resolves a source id to its Node, installed by Project so
	// Composition.compute can recurse into child sources by id, never by
	// pointer (mirrors the "layers reference sources by id" rule).
	lookup func(uuid.UUID) (*Node, bool)
}

// Node is the single concrete type backing every FileSource, Composition,
// Camera, and Text in a Project. Only the fields for its own Kind are
// meaningful; the rest sit at their zero value. Runtime handles (Cache,
// Mem) are nil until add_node installs them — that is the only path that
// populates them, per the Project Container's single-entry-point
// invariant.
type Node struct {
	ID   uuid.UUID
	Kind Kind
	Bag  *Bag

	Cache *cache.Cache
	Mem   *memmgr.Manager
	Log   *logrus.Entry

	mu      sync.RWMutex
	parents map[uuid.UUID]struct{} // compositions that reference this node via a child entry

	// Composition-only.
	children []*ChildEntry

	// Camera-only.
	camera cameraRuntime

	// FileSource-only: dimensions of the most recent decode, backing
	// Bounds() and the sized placeholders returned outside the sequence
	// range. Zero until the first frame decodes.
	srcW, srcH int

	disposed bool
}

func newNode(kind Kind) *Node {
	return &Node{
		ID:      uuid.New(),
		Kind:    kind,
		Bag:     NewBag(schemaForKind(kind)),
		parents: make(map[uuid.UUID]struct{}),
	}
}

// ParseKind maps a serialized kind name back to its Kind, reporting
// whether the name is known.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "FileSource":
		return KindFileSource, true
	case "Composition":
		return KindComposition, true
	case "Camera":
		return KindCamera, true
	case "Text":
		return KindText, true
	default:
		return 0, false
	}
}

// RebuildNode constructs a bare node of the given kind carrying a
// previously assigned id, used by project loading. The caller restores
// attributes and children, then funnels the node through Project.AddNode
// like any other — loading has no private installation path.
func RebuildNode(id uuid.UUID, kind Kind) *Node {
	n := newNode(kind)
	n.ID = id
	if kind == KindCamera {
		n.camera.zoom = 1
	}
	return n
}

// NewFileSource constructs a FileSource node. It is not yet part of any
// Project; call Project.AddNode to install its runtime handles.
func NewFileSource(fileMask string, fileStart, fileEnd, in, out int32) *Node {
	n := newNode(KindFileSource)
	n.Bag.Set("file_mask", StringValue(fileMask))
	n.Bag.Set("file_start", Int32Value(fileStart))
	n.Bag.Set("file_end", Int32Value(fileEnd))
	n.Bag.Set("in", Int32Value(in))
	n.Bag.Set("out", Int32Value(out))
	return n
}

// NewComposition constructs an empty Composition node sized to width x
// height, addressable over [in, out], with no child entries.
func NewComposition(width, height int32, in, out int32, frameRate float32) *Node {
	n := newNode(KindComposition)
	n.Bag.Set("width", Int32Value(width))
	n.Bag.Set("height", Int32Value(height))
	n.Bag.Set("in", Int32Value(in))
	n.Bag.Set("out", Int32Value(out))
	n.Bag.Set("work_area_in", Int32Value(in))
	n.Bag.Set("work_area_out", Int32Value(out))
	n.Bag.Set("frame_rate", Float32Value(frameRate))
	return n
}

// NewCamera constructs a Camera node belonging to some composition.
func NewCamera() *Node {
	n := newNode(KindCamera)
	n.Bag.Set("zoom", Float32Value(1))
	n.Bag.Set("is_active", BoolValue(true))
	n.camera.zoom = 1
	return n
}

// NewText constructs a Text node that rasterizes text into a Frame.
func NewText(text string, fontFamily string, fontSize float32) *Node {
	n := newNode(KindText)
	n.Bag.Set("text", StringValue(text))
	n.Bag.Set("font_family", StringValue(fontFamily))
	n.Bag.Set("font_size", Float32Value(fontSize))
	n.Bag.Set("color", Vec4Value(Vec4{X: 1, Y: 1, Z: 1, W: 1}))
	return n
}

// Dirty reports whether this node's DAG-flagged attributes have changed
// since the last ClearDirty, per the Node contract's dirty()/mark_dirty().
func (n *Node) Dirty() bool { return n.Bag.Dirty() }

// MarkDirty force-marks this node dirty, used by the cascade-invalidation
// path when an ancestor composition needs to recompute even though its
// own bag did not change.
func (n *Node) MarkDirty() { n.Bag.MarkDirty() }

// Parents returns the set of composition ids that currently reference
// this node via a child entry, used to walk the dirty cascade upward.
func (n *Node) Parents() []uuid.UUID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(n.parents))
	for id := range n.parents {
		out = append(out, id)
	}
	return out
}

func (n *Node) addParent(comp uuid.UUID) {
	n.mu.Lock()
	n.parents[comp] = struct{}{}
	n.mu.Unlock()
}

func (n *Node) removeParent(comp uuid.UUID) {
	n.mu.Lock()
	delete(n.parents, comp)
	n.mu.Unlock()
}

// PlayRange returns the node's visible range after trims: (in, out) for
// FileSource and Composition, and a degenerate zero range for Camera and
// Text, which have no intrinsic timeline of their own.
func (n *Node) PlayRange() (int32, int32) {
	switch n.Kind {
	case KindFileSource, KindComposition:
		in, _ := n.Bag.Get("in")
		out, _ := n.Bag.Get("out")
		i, _ := in.Int32()
		o, _ := out.Int32()
		return i, o
	default:
		return 0, 0
	}
}

// Bounds returns the node's pixel dimensions: the composition canvas size
// for Composition, the last decoded frame's size for FileSource (zero
// before anything has decoded), or zero for variants with no intrinsic
// canvas.
func (n *Node) Bounds() (int, int) {
	switch n.Kind {
	case KindComposition:
		w, _ := n.Bag.Get("width")
		h, _ := n.Bag.Get("height")
		wi, _ := w.Int32()
		hi, _ := h.Int32()
		return int(wi), int(hi)
	case KindFileSource:
		n.mu.RLock()
		defer n.mu.RUnlock()
		return n.srcW, n.srcH
	default:
		return 0, 0
	}
}

func (n *Node) setSourceBounds(w, h int) {
	n.mu.Lock()
	n.srcW, n.srcH = w, h
	n.mu.Unlock()
}

// Dispose releases this node's runtime handles. It does not remove the
// node from any Project; Project.RemoveNode calls this after clearing
// cache entries and child-entry references.
func (n *Node) Dispose() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disposed {
		return
	}
	n.disposed = true
	n.Cache = nil
	n.Mem = nil
	n.children = nil
	n.parents = nil
}

func (n *Node) isDisposed() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.disposed
}

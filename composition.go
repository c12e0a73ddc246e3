package reel

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/compositor"
	"github.com/reelengine/reel/frame"
)

// childEntrySchema is the per-layer Attribute Bag every Composition Child
// Entry carries: which source it points at, its placement in the parent
// timeline, its trim/speed mapping to the source's own timeline, and its
// own transform and compositing settings.
var childEntrySchema = Schema{
	"source":     {Kind: KindUUID, Flags: FlagDAG},
	"in":         {Kind: KindInt32, Flags: FlagDAG | FlagDisplay | FlagKey},
	"out":        {Kind: KindInt32, Flags: FlagDAG | FlagDisplay | FlagKey},
	"trim_in":    {Kind: KindInt32, Flags: FlagDAG | FlagDisplay | FlagKey},
	"trim_out":   {Kind: KindInt32, Flags: FlagDAG | FlagDisplay | FlagKey},
	"speed":      {Kind: KindFloat32, Flags: FlagDAG | FlagDisplay | FlagKey},
	"opacity":    {Kind: KindFloat32, Flags: FlagDAG | FlagDisplay | FlagKey},
	"blend_mode": {Kind: KindUInt32, Flags: FlagDAG | FlagDisplay},
	"visible":    {Kind: KindBool, Flags: FlagDAG | FlagDisplay},
	"solo":       {Kind: KindBool, Flags: FlagDAG | FlagDisplay},
	"position":   {Kind: KindVec3, Flags: FlagDAG | FlagDisplay | FlagKey},
	"rotation":   {Kind: KindFloat32, Flags: FlagDAG | FlagDisplay | FlagKey},
	"scale":      {Kind: KindVec3, Flags: FlagDAG | FlagDisplay | FlagKey},
	"pivot":      {Kind: KindVec3, Flags: FlagDAG | FlagDisplay},
}

// ChildEntry is one layer of a Composition: a per-instance bag attaching a
// source node to a parent at a timeline position. InstanceID is distinct
// from Source so the same source may appear as more than one layer.
type ChildEntry struct {
	InstanceID uuid.UUID
	Bag        *Bag
}

func newChildEntry(source uuid.UUID, in, out int32) *ChildEntry {
	e := &ChildEntry{InstanceID: uuid.New(), Bag: NewBag(childEntrySchema)}
	e.Bag.Set("source", UUIDValue(source))
	e.Bag.Set("in", Int32Value(in))
	e.Bag.Set("out", Int32Value(out))
	e.Bag.Set("trim_in", Int32Value(0))
	e.Bag.Set("trim_out", Int32Value(out-in))
	e.Bag.Set("speed", Float32Value(1))
	e.Bag.Set("opacity", Float32Value(1))
	e.Bag.Set("blend_mode", UInt32Value(uint32(compositor.Normal)))
	e.Bag.Set("visible", BoolValue(true))
	e.Bag.Set("solo", BoolValue(false))
	e.Bag.Set("position", Vec3Value(Vec3{}))
	e.Bag.Set("rotation", Float32Value(0))
	e.Bag.Set("scale", Vec3Value(Vec3{X: 1, Y: 1, Z: 1}))
	e.Bag.Set("pivot", Vec3Value(Vec3{}))
	return e
}

func (e *ChildEntry) sourceID() uuid.UUID {
	v, _ := e.Bag.Get("source")
	id, _ := v.UUID()
	return id
}

func (e *ChildEntry) inOut() (int32, int32) {
	inV, _ := e.Bag.Get("in")
	outV, _ := e.Bag.Get("out")
	in, _ := inV.Int32()
	out, _ := outV.Int32()
	return in, out
}

func (e *ChildEntry) speed() float32 {
	v, _ := e.Bag.Get("speed")
	s, _ := v.Float32()
	return s
}

func (e *ChildEntry) trimIn() int32 {
	v, _ := e.Bag.Get("trim_in")
	t, _ := v.Int32()
	return t
}

func (e *ChildEntry) trimOut() int32 {
	v, _ := e.Bag.Get("trim_out")
	t, _ := v.Int32()
	return t
}

func (e *ChildEntry) visible() bool {
	v, _ := e.Bag.Get("visible")
	b, _ := v.Bool()
	return b
}

func (e *ChildEntry) solo() bool {
	v, _ := e.Bag.Get("solo")
	b, _ := v.Bool()
	return b
}

// ParentToLocal maps a frame index on the parent composition's timeline
// into the child source's own timeline, applying the entry's placement,
// speed, and trim: local = (f - in) * speed + trim_in.
func (e *ChildEntry) ParentToLocal(f int64) int64 {
	in, _ := e.inOut()
	local := float64(f-int64(in))*float64(e.speed()) + float64(e.trimIn())
	return int64(roundHalfAway(local))
}

// LocalToParent is the inverse of ParentToLocal. For every parent frame x,
// LocalToParent(ParentToLocal(x)) == x within rounding, and
// LocalToParent(trim_in) == in.
func (e *ChildEntry) LocalToParent(local int64) int64 {
	in, _ := e.inOut()
	parent := float64(local-int64(e.trimIn()))/float64(e.speed()) + float64(int64(in))
	return int64(roundHalfAway(parent))
}

func roundHalfAway(v float64) float64 {
	if v < 0 {
		return -float64(int64(-v + 0.5))
	}
	return float64(int64(v + 0.5))
}

// SetAttr validates and stores one attribute on this child entry,
// rejecting mutations that would violate an entry invariant: out < in,
// trim_out < trim_in, or a zero speed. On rejection the bag is unchanged.
func (e *ChildEntry) SetAttr(name string, v Value) error {
	switch name {
	case "in", "out":
		in, out := e.inOut()
		nv, ok := v.Int32()
		if !ok {
			return &ErrInvalidChildEntry{Reason: name + " must be Int32"}
		}
		if name == "in" {
			in = nv
		} else {
			out = nv
		}
		if out < in {
			return &ErrInvalidChildEntry{Reason: "out < in"}
		}
	case "trim_in", "trim_out":
		nv, ok := v.Int32()
		if !ok {
			return &ErrInvalidChildEntry{Reason: name + " must be Int32"}
		}
		trimIn, trimOut := e.trimIn(), e.trimOut()
		if name == "trim_in" {
			trimIn = nv
		} else {
			trimOut = nv
		}
		if trimOut < trimIn {
			return &ErrInvalidChildEntry{Reason: "trim_out < trim_in"}
		}
	case "speed":
		s, ok := v.Float32()
		if !ok {
			return &ErrInvalidChildEntry{Reason: "speed must be Float32"}
		}
		if s == 0 {
			return &ErrInvalidChildEntry{Reason: "speed must be nonzero"}
		}
	}
	e.Bag.Set(name, v)
	return nil
}

// ErrCyclicGraph is returned by AddLayer when installing the entry would
// make a Composition reachable from itself through child references.
var ErrCyclicGraph = errors.New("reel: adding this layer would create a cyclic composition graph")

// ErrInvalidChildEntry is returned by AddLayer when the requested in/out
// or speed would violate a Composition Child Entry invariant.
type ErrInvalidChildEntry struct{ Reason string }

func (e *ErrInvalidChildEntry) Error() string { return "reel: invalid child entry: " + e.Reason }

// AddLayer is the sole mutating entry point for inserting a child into a
// Composition. It rejects speed == 0, out < in, and any insertion that
// would create a cycle in the composition graph, mirroring the
// isAncestor-guarded AddChild discipline used elsewhere for tree mutation.
// resolve looks up any node by id, used to walk source's subtree for the
// cycle check.
func (n *Node) AddLayer(source uuid.UUID, in, out int32, speed float32, resolve func(uuid.UUID) (*Node, bool)) (*ChildEntry, error) {
	if n.Kind != KindComposition {
		return nil, fmt.Errorf("reel: AddLayer on non-Composition node %s", n.ID)
	}
	if out < in {
		return nil, &ErrInvalidChildEntry{Reason: "out < in"}
	}
	if speed == 0 {
		return nil, &ErrInvalidChildEntry{Reason: "speed must be nonzero"}
	}
	if source == n.ID || wouldCycle(n.ID, source, resolve) {
		return nil, ErrCyclicGraph
	}

	entry := newChildEntry(source, in, out)
	entry.Bag.Set("speed", Float32Value(speed))

	n.mu.Lock()
	n.children = append(n.children, entry)
	n.mu.Unlock()

	if src, ok := resolve(source); ok {
		src.addParent(n.ID)
	}
	n.MarkDirty()
	return entry, nil
}

// wouldCycle reports whether n (the parent about to gain a layer) is
// already reachable from source — i.e. source is n itself or a
// Composition that transitively contains n as one of its own layers.
// Installing source as a child of n in that case would close a cycle.
func wouldCycle(parent, source uuid.UUID, resolve func(uuid.UUID) (*Node, bool)) bool {
	visited := map[uuid.UUID]bool{}
	var walk func(id uuid.UUID) bool
	walk = func(id uuid.UUID) bool {
		if id == parent {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		node, ok := resolve(id)
		if !ok || node.Kind != KindComposition {
			return false
		}
		node.mu.RLock()
		children := append([]*ChildEntry(nil), node.children...)
		node.mu.RUnlock()
		for _, c := range children {
			if walk(c.sourceID()) {
				return true
			}
		}
		return false
	}
	return walk(source)
}

// RestoreLayer reinstalls a serialized child entry under its original
// instance id, re-running the cycle check against the loaded graph.
// Attribute values land through Bag.Set, so unknown serialized keys are
// dropped the same way they are everywhere else.
func (n *Node) RestoreLayer(instanceID uuid.UUID, attrs map[string]Value, resolve func(uuid.UUID) (*Node, bool)) error {
	if n.Kind != KindComposition {
		return fmt.Errorf("reel: RestoreLayer on non-Composition node %s", n.ID)
	}
	entry := &ChildEntry{InstanceID: instanceID, Bag: NewBag(childEntrySchema)}
	for k, v := range attrs {
		entry.Bag.Set(k, v)
	}
	source := entry.sourceID()
	if source == n.ID || wouldCycle(n.ID, source, resolve) {
		return ErrCyclicGraph
	}

	n.mu.Lock()
	n.children = append(n.children, entry)
	n.mu.Unlock()

	if src, ok := resolve(source); ok {
		src.addParent(n.ID)
	}
	n.MarkDirty()
	return nil
}

// RemoveLayer removes the child entry identified by instanceID, detaching
// it from the source's parent set. Reports whether an entry was found.
func (n *Node) RemoveLayer(instanceID uuid.UUID, resolve func(uuid.UUID) (*Node, bool)) bool {
	n.mu.Lock()
	idx := -1
	for i, c := range n.children {
		if c.InstanceID == instanceID {
			idx = i
			break
		}
	}
	var removed *ChildEntry
	if idx >= 0 {
		removed = n.children[idx]
		n.children = append(n.children[:idx], n.children[idx+1:]...)
	}
	n.mu.Unlock()
	if removed == nil {
		return false
	}
	if src, ok := resolve(removed.sourceID()); ok {
		src.removeParent(n.ID)
	}
	n.MarkDirty()
	return true
}

// Children returns a snapshot of the composition's current layers, in
// presentation (top-to-bottom) order.
func (n *Node) Children() []*ChildEntry {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*ChildEntry(nil), n.children...)
}

// dagHash combines the node's own stable bag hash with each child
// entry's, in layer order, so a layer attribute change registers as a DAG
// change of the owning composition even though it lives in the entry's
// bag rather than the node's.
func (n *Node) dagHash() uint64 {
	h := n.Bag.HashStable()
	for _, c := range n.Children() {
		h = h*31 + c.Bag.HashStable()
	}
	return h
}

// computeComposition implements the Composition contract: serve a cache
// hit, otherwise blend every visible, in-range child (bottom layer first,
// so later painter's-algorithm passes land on top) into a base canvas
// sized to the composition, then cache and clear dirty.
func (n *Node) computeComposition(frameIndex int64, ctx *ComputeContext) (frame.Frame, error) {
	key := cache.Key{Node: n.ID, Frame: frameIndex}
	if f, ok := n.Cache.Get(key); ok {
		return f, nil
	}

	w, h := n.Bounds()
	if w <= 0 || h <= 0 {
		return frame.NewUnloaded("", 0, 0), nil
	}

	children := n.Children()
	anySolo := false
	for _, c := range children {
		if c.solo() {
			anySolo = true
			break
		}
	}

	var layers []compositor.Layer
	var camX, camY float64
	camZoom := 1.0
	complete := true
	// Reverse z-order (bottom-first): children[len-1] is the bottom of the
	// stack, children[0] the top. Iterating back-to-front and letting each
	// later layer paint over the accumulator yields standard painter's
	// algorithm where a lower index wins.
	for i := len(children) - 1; i >= 0; i-- {
		c := children[i]
		if !c.visible() {
			continue
		}
		if anySolo && !c.solo() {
			continue
		}
		in, out := c.inOut()
		if frameIndex < int64(in) || frameIndex > int64(out) {
			continue
		}
		local := c.ParentToLocal(frameIndex)

		src, ok := ctx.lookup(c.sourceID())
		if !ok {
			continue // DirtyRace: source removed while this compute was in flight
		}
		if src.Kind == KindCamera {
			if src.isActiveCamera() {
				camX, camY, camZoom = src.cameraView()
			}
			continue
		}
		srcFrame, err := src.Compute(local, ctx)
		if err != nil {
			return frame.Frame{}, err
		}
		if !srcFrame.HasPixels() {
			// A pathed Unloaded frame is a decode still in flight; the
			// composite without it must not be cached, or the finished
			// decode would never be picked up. Pathless placeholders
			// (out-of-range) and Error frames contribute nothing
			// permanently, so they don't block caching.
			if srcFrame.Status() == frame.Unloaded && srcFrame.Path() != "" {
				complete = false
			}
			continue
		}
		// A nested composition that declined to cache its own result is
		// still waiting on a decode somewhere below; treat this level as
		// partial too so it re-renders once the subtree settles.
		if src.Kind == KindComposition && !ctx.Cache.Contains(cache.Key{Node: src.ID, Frame: local}) {
			complete = false
		}

		opV, _ := c.Bag.Get("opacity")
		opacity, _ := opV.Float32()
		blendV, _ := c.Bag.Get("blend_mode")
		blendU, _ := blendV.UInt32()
		posV, _ := c.Bag.Get("position")
		pos, _ := posV.Vec3_()
		rotV, _ := c.Bag.Get("rotation")
		rot, _ := rotV.Float32()
		scaleV, _ := c.Bag.Get("scale")
		scale, _ := scaleV.Vec3_()
		pivotV, _ := c.Bag.Get("pivot")
		pivot, _ := pivotV.Vec3_()

		layers = append(layers, compositor.Layer{
			Frame: srcFrame,
			Transform: compositor.Transform{
				X: pos.X, Y: pos.Y,
				Rotation: float64(rot),
				ScaleX:   scale.X, ScaleY: scale.Y,
				PivotX: pivot.X, PivotY: pivot.Y,
			},
			BlendMode: compositor.BlendMode(blendU),
			Opacity:   float64(opacity),
		})
	}

	// An active camera child shifts and zooms every pictorial layer about
	// the canvas center; its matrix form is available to hosts through
	// Node.ViewProjection for GPU viewports.
	if camX != 0 || camY != 0 || camZoom != 1 {
		for i := range layers {
			t := &layers[i].Transform
			t.X = (t.X - camX) * camZoom
			t.Y = (t.Y - camY) * camZoom
			t.ScaleX *= camZoom
			t.ScaleY *= camZoom
		}
	}

	result, err := ctx.Blend.Blend(layers, w, h)
	if err != nil {
		return frame.Frame{}, err
	}

	if complete {
		n.Cache.Insert(key, result, ctx.Epoch)
		n.Bag.ClearDirty()
	}
	return result, nil
}

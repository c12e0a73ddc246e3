// Package serialize implements the project file format — a TOML tree of
// node records with type-tagged attribute values — and the engine's
// configuration file. Round-trips are stable: loading a saved project and
// saving it again yields the same document, and unknown keys from newer
// writers are ignored on load.
package serialize

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/reelengine/reel"
)

// valueRecord is the serialized form of one attribute value: a type tag
// plus the one field the tag selects. Unknown tags are rejected on load;
// unknown record keys are ignored, so newer writers can add fields.
type valueRecord struct {
	Type  string        `toml:"type"`
	Bool  *bool         `toml:"bool,omitempty"`
	Int   *int64        `toml:"int,omitempty"`
	Float *float64      `toml:"float,omitempty"`
	Str   *string       `toml:"str,omitempty"`
	Vec   []float64     `toml:"vec,omitempty"`
	List  []valueRecord `toml:"list,omitempty"`
}

// childRecord is one serialized composition layer.
type childRecord struct {
	Instance string                 `toml:"instance"`
	Attrs    map[string]valueRecord `toml:"attrs"`
}

// nodeRecord is one serialized node: id, kind, attribute bag, and, for
// compositions, the ordered child layer list.
type nodeRecord struct {
	ID       string                 `toml:"id"`
	Kind     string                 `toml:"kind"`
	Attrs    map[string]valueRecord `toml:"attrs"`
	Children []childRecord          `toml:"children,omitempty"`
}

// document is the top-level project file schema.
type document struct {
	Media      map[string]nodeRecord `toml:"media"`
	CompsOrder []string              `toml:"comps_order"`
	Active     string                `toml:"active,omitempty"`
}

// Save serializes project to its TOML text form. Runtime fields (cache
// and memory handles, dirty flags, camera easing) never persist.
func Save(project *reel.Project) ([]byte, error) {
	doc := document{Media: make(map[string]nodeRecord)}

	for _, n := range project.Nodes() {
		rec := nodeRecord{
			ID:    n.ID.String(),
			Kind:  n.Kind.String(),
			Attrs: encodeAttrs(n.Bag.Snapshot()),
		}
		for _, c := range n.Children() {
			rec.Children = append(rec.Children, childRecord{
				Instance: c.InstanceID.String(),
				Attrs:    encodeAttrs(c.Bag.Snapshot()),
			})
		}
		doc.Media[rec.ID] = rec
	}

	for _, id := range project.CompsOrder() {
		doc.CompsOrder = append(doc.CompsOrder, id.String())
	}
	if active := project.Active(); active != uuid.Nil {
		doc.Active = active.String()
	}

	return toml.Marshal(doc)
}

// Load reconstitutes a project from data into the empty project dst.
// Every node funnels through Project.AddNode so runtime handles are
// installed the same way they are for freshly created nodes; children are
// restored after all nodes exist so source references resolve.
func Load(data []byte, dst *reel.Project) error {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("serialize: parse project: %w", err)
	}

	// Deterministic order keeps AddNode side effects (fallback comp
	// order, default active) stable across loads of the same document.
	ids := make([]string, 0, len(doc.Media))
	for id := range doc.Media {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, idStr := range ids {
		rec := doc.Media[idStr]
		id, err := uuid.Parse(rec.ID)
		if err != nil {
			return fmt.Errorf("serialize: node id %q: %w", rec.ID, err)
		}
		kind, ok := reel.ParseKind(rec.Kind)
		if !ok {
			return fmt.Errorf("serialize: node %s has unknown kind %q", rec.ID, rec.Kind)
		}
		n := reel.RebuildNode(id, kind)
		for name, vr := range rec.Attrs {
			v, err := decodeValue(vr)
			if err != nil {
				return fmt.Errorf("serialize: node %s attr %q: %w", rec.ID, name, err)
			}
			n.Bag.Set(name, v)
		}
		if err := dst.AddNode(n); err != nil {
			return err
		}
	}

	for _, idStr := range ids {
		rec := doc.Media[idStr]
		if len(rec.Children) == 0 {
			continue
		}
		id, _ := uuid.Parse(rec.ID)
		comp, _ := dst.Node(id)
		for _, cr := range rec.Children {
			instance, err := uuid.Parse(cr.Instance)
			if err != nil {
				return fmt.Errorf("serialize: layer instance %q: %w", cr.Instance, err)
			}
			attrs := make(map[string]reel.Value, len(cr.Attrs))
			for name, vr := range cr.Attrs {
				v, err := decodeValue(vr)
				if err != nil {
					return fmt.Errorf("serialize: layer %s attr %q: %w", cr.Instance, name, err)
				}
				attrs[name] = v
			}
			if err := comp.RestoreLayer(instance, attrs, dst.Node); err != nil {
				return fmt.Errorf("serialize: comp %s: %w", rec.ID, err)
			}
		}
	}

	order := make([]uuid.UUID, 0, len(doc.CompsOrder))
	for _, idStr := range doc.CompsOrder {
		if id, err := uuid.Parse(idStr); err == nil {
			order = append(order, id)
		}
	}
	dst.RestoreCompsOrder(order)

	if doc.Active != "" {
		if id, err := uuid.Parse(doc.Active); err == nil {
			if err := dst.SetActive(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeAttrs(attrs map[string]reel.Value) map[string]valueRecord {
	out := make(map[string]valueRecord, len(attrs))
	for name, v := range attrs {
		out[name] = encodeValue(v)
	}
	return out
}

func encodeValue(v reel.Value) valueRecord {
	rec := valueRecord{Type: v.Kind().String()}
	switch v.Kind() {
	case reel.KindBool:
		b, _ := v.Bool()
		rec.Bool = &b
	case reel.KindInt32:
		i, _ := v.Int32()
		n := int64(i)
		rec.Int = &n
	case reel.KindUInt32:
		u, _ := v.UInt32()
		n := int64(u)
		rec.Int = &n
	case reel.KindFloat32:
		f, _ := v.Float32()
		n := float64(f)
		rec.Float = &n
	case reel.KindString:
		s, _ := v.String_()
		rec.Str = &s
	case reel.KindJSON:
		s, _ := v.JSON()
		rec.Str = &s
	case reel.KindUUID:
		id, _ := v.UUID()
		s := id.String()
		rec.Str = &s
	case reel.KindVec3:
		vec, _ := v.Vec3_()
		rec.Vec = []float64{vec.X, vec.Y, vec.Z}
	case reel.KindVec4:
		vec, _ := v.Vec4_()
		rec.Vec = []float64{vec.X, vec.Y, vec.Z, vec.W}
	case reel.KindMat3:
		m, _ := v.Mat3_()
		rec.Vec = append([]float64(nil), m[:]...)
	case reel.KindMat4:
		m, _ := v.Mat4_()
		rec.Vec = append([]float64(nil), m[:]...)
	case reel.KindList:
		list, _ := v.List()
		for _, e := range list {
			rec.List = append(rec.List, encodeValue(e))
		}
	}
	return rec
}

func decodeValue(rec valueRecord) (reel.Value, error) {
	switch rec.Type {
	case "Bool":
		if rec.Bool == nil {
			return reel.Value{}, fmt.Errorf("Bool record missing bool field")
		}
		return reel.BoolValue(*rec.Bool), nil
	case "Int32":
		if rec.Int == nil {
			return reel.Value{}, fmt.Errorf("Int32 record missing int field")
		}
		return reel.Int32Value(int32(*rec.Int)), nil
	case "UInt32":
		if rec.Int == nil {
			return reel.Value{}, fmt.Errorf("UInt32 record missing int field")
		}
		return reel.UInt32Value(uint32(*rec.Int)), nil
	case "Float32":
		if rec.Float == nil {
			return reel.Value{}, fmt.Errorf("Float32 record missing float field")
		}
		return reel.Float32Value(float32(*rec.Float)), nil
	case "String":
		if rec.Str == nil {
			return reel.Value{}, fmt.Errorf("String record missing str field")
		}
		return reel.StringValue(*rec.Str), nil
	case "Json":
		if rec.Str == nil {
			return reel.Value{}, fmt.Errorf("Json record missing str field")
		}
		return reel.JSONValue(*rec.Str), nil
	case "Uuid":
		if rec.Str == nil {
			return reel.Value{}, fmt.Errorf("Uuid record missing str field")
		}
		id, err := uuid.Parse(*rec.Str)
		if err != nil {
			return reel.Value{}, err
		}
		return reel.UUIDValue(id), nil
	case "Vec3":
		if len(rec.Vec) != 3 {
			return reel.Value{}, fmt.Errorf("Vec3 record needs 3 components, got %d", len(rec.Vec))
		}
		return reel.Vec3Value(reel.Vec3{X: rec.Vec[0], Y: rec.Vec[1], Z: rec.Vec[2]}), nil
	case "Vec4":
		if len(rec.Vec) != 4 {
			return reel.Value{}, fmt.Errorf("Vec4 record needs 4 components, got %d", len(rec.Vec))
		}
		return reel.Vec4Value(reel.Vec4{X: rec.Vec[0], Y: rec.Vec[1], Z: rec.Vec[2], W: rec.Vec[3]}), nil
	case "Mat3":
		if len(rec.Vec) != 9 {
			return reel.Value{}, fmt.Errorf("Mat3 record needs 9 components, got %d", len(rec.Vec))
		}
		var m reel.Mat3
		copy(m[:], rec.Vec)
		return reel.Mat3Value(m), nil
	case "Mat4":
		if len(rec.Vec) != 16 {
			return reel.Value{}, fmt.Errorf("Mat4 record needs 16 components, got %d", len(rec.Vec))
		}
		var m reel.Mat4
		copy(m[:], rec.Vec)
		return reel.Mat4Value(m), nil
	case "List":
		list := make([]reel.Value, 0, len(rec.List))
		for _, e := range rec.List {
			v, err := decodeValue(e)
			if err != nil {
				return reel.Value{}, err
			}
			list = append(list, v)
		}
		return reel.ListValue(list), nil
	default:
		return reel.Value{}, fmt.Errorf("unknown value type %q", rec.Type)
	}
}

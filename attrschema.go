package reel

// AttrFlag marks how a schema entry participates in dependency tracking,
// UI exposure, and keyframe addressing.
type AttrFlag uint8

const (
	// FlagDAG marks an attribute as participating in hash_stable: changing
	// it changes the hash, which marks the node's cached compute() results
	// for invalidation.
	FlagDAG AttrFlag = 1 << iota
	// FlagDisplay marks an attribute as host-UI visible (inspector panels).
	FlagDisplay
	// FlagKey marks an attribute as keyframeable by a host animation system.
	FlagKey
)

func (f AttrFlag) has(bit AttrFlag) bool { return f&bit != 0 }

// SchemaEntry describes one named attribute slot: its expected Value kind
// and its DAG/Display/Key participation.
type SchemaEntry struct {
	Kind  ValueKind
	Flags AttrFlag
}

// Schema is an ordered set of named attribute slots shared by every node of
// a given kind. Order matters only for hash_stable's canonical key
// iteration, which always sorts by name regardless, so a plain map keyed by
// name is sufficient here.
type Schema map[string]SchemaEntry

// DAGKeys returns the schema's FlagDAG-marked attribute names, used by
// hash_stable to select which bag entries participate in the hash.
func (s Schema) DAGKeys() []string {
	keys := make([]string, 0, len(s))
	for name, entry := range s {
		if entry.Flags.has(FlagDAG) {
			keys = append(keys, name)
		}
	}
	return keys
}

// baseSchema holds the attributes every node kind carries regardless of its
// FileSource/Composition/Camera/Text variant: transform and visibility.
var baseSchema = Schema{
	"position": {Kind: KindVec3, Flags: FlagDAG | FlagDisplay | FlagKey},
	"rotation": {Kind: KindFloat32, Flags: FlagDAG | FlagDisplay | FlagKey},
	"scale":    {Kind: KindVec3, Flags: FlagDAG | FlagDisplay | FlagKey},
	"pivot":    {Kind: KindVec3, Flags: FlagDAG | FlagDisplay},
	"opacity":  {Kind: KindFloat32, Flags: FlagDAG | FlagDisplay | FlagKey},
	"visible":  {Kind: KindBool, Flags: FlagDAG | FlagDisplay},
	"blend":    {Kind: KindUInt32, Flags: FlagDAG | FlagDisplay},
	"name":     {Kind: KindString, Flags: FlagDisplay},
}

// fileSourceSchema extends baseSchema with the attributes a FileSource node
// needs to resolve a frame index to a path and cache decoded frames. Names
// follow the FileSource contract directly: file_mask holds a `#`
// frame-placeholder pattern, file_start/file_end bound the sequence on
// disk, and in/out are the node's own play_range.
var fileSourceSchema = mergeSchema(baseSchema, Schema{
	"file_mask":  {Kind: KindString, Flags: FlagDAG | FlagDisplay},
	"file_start": {Kind: KindInt32, Flags: FlagDAG | FlagDisplay},
	"file_end":   {Kind: KindInt32, Flags: FlagDAG | FlagDisplay},
	"in":         {Kind: KindInt32, Flags: FlagDAG | FlagDisplay | FlagKey},
	"out":        {Kind: KindInt32, Flags: FlagDAG | FlagDisplay | FlagKey},
})

// compositionSchema extends baseSchema with the attributes a Composition
// node needs to define its own canvas, full range, and work area. `in`/
// `out` is the composition's full addressable range; work_area_in/out is
// the playback-loop subrange nested inside it.
var compositionSchema = mergeSchema(baseSchema, Schema{
	"width":         {Kind: KindInt32, Flags: FlagDAG | FlagDisplay},
	"height":        {Kind: KindInt32, Flags: FlagDAG | FlagDisplay},
	"frame_rate":    {Kind: KindFloat32, Flags: FlagDAG | FlagDisplay},
	"in":            {Kind: KindInt32, Flags: FlagDAG | FlagDisplay},
	"out":           {Kind: KindInt32, Flags: FlagDAG | FlagDisplay},
	"work_area_in":  {Kind: KindInt32, Flags: FlagDisplay},
	"work_area_out": {Kind: KindInt32, Flags: FlagDisplay},
})

// cameraSchema extends baseSchema with the attributes a Camera node needs
// to produce a view-projection matrix and support eased moves.
var cameraSchema = mergeSchema(baseSchema, Schema{
	"zoom":          {Kind: KindFloat32, Flags: FlagDAG | FlagDisplay | FlagKey},
	"look_at":       {Kind: KindVec3, Flags: FlagDAG | FlagDisplay | FlagKey},
	"is_active":     {Kind: KindBool, Flags: FlagDAG | FlagDisplay},
	"ease_duration": {Kind: KindFloat32, Flags: FlagDisplay},
	"ease_type":     {Kind: KindString, Flags: FlagDisplay},
})

// textSchema extends baseSchema with the attributes a Text node needs to
// rasterize a string into the frame cache.
var textSchema = mergeSchema(baseSchema, Schema{
	"text":        {Kind: KindString, Flags: FlagDAG | FlagDisplay | FlagKey},
	"font_family": {Kind: KindString, Flags: FlagDAG | FlagDisplay},
	"font_size":   {Kind: KindFloat32, Flags: FlagDAG | FlagDisplay | FlagKey},
	"color":       {Kind: KindVec4, Flags: FlagDAG | FlagDisplay | FlagKey},
	"align":       {Kind: KindString, Flags: FlagDAG | FlagDisplay},
})

func mergeSchema(base Schema, extra Schema) Schema {
	out := make(Schema, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// schemaForKind returns the canonical Schema for a node Kind.
func schemaForKind(k Kind) Schema {
	switch k {
	case KindFileSource:
		return fileSourceSchema
	case KindComposition:
		return compositionSchema
	case KindCamera:
		return cameraSchema
	case KindText:
		return textSchema
	default:
		return baseSchema
	}
}

package reel

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Bag is a typed-value store for one node's attributes. It tracks a dirty
// flag that any caller holding a *Bag can clear, mirroring the interior
// mutability the cache and memory manager already rely on elsewhere in this
// module (see memmgr.Manager's atomic bookkeeping).
type Bag struct {
	schema Schema
	mu     sync.RWMutex
	values map[string]Value
	dirty  atomic.Bool
}

// NewBag returns a Bag seeded with schema's zero values and marked dirty.
func NewBag(schema Schema) *Bag {
	b := &Bag{schema: schema, values: make(map[string]Value, len(schema))}
	for name, entry := range schema {
		b.values[name] = zeroValue(entry.Kind)
	}
	b.dirty.Store(true)
	return b
}

func zeroValue(k ValueKind) Value {
	switch k {
	case KindBool:
		return BoolValue(false)
	case KindInt32:
		return Int32Value(0)
	case KindUInt32:
		return UInt32Value(0)
	case KindFloat32:
		return Float32Value(0)
	case KindString:
		return StringValue("")
	case KindVec3:
		return Vec3Value(Vec3{})
	case KindVec4:
		return Vec4Value(Vec4{})
	case KindMat3:
		return Mat3Value(Mat3{})
	case KindMat4:
		return Mat4Value(Mat4{})
	case KindUUID:
		return UUIDValue(uuid.Nil)
	case KindJSON:
		return JSONValue("")
	case KindList:
		return ListValue(nil)
	default:
		return Value{}
	}
}

// Get returns the value stored at name, and whether name is a known
// schema slot.
func (b *Bag) Get(name string) (Value, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[name]
	return v, ok
}

// Set stores v at name and marks the bag dirty. Every mutation dirties
// the bag, including writes of a value equal to the current one
// (idempotency is the caller's concern) and writes to non-DAG slots —
// non-DAG slots simply contribute nothing to HashStable, so they never
// invalidate cached renders. Set on a name absent from the schema is a
// no-op: callers should add the attribute to the node's schema rather
// than growing the bag ad hoc.
func (b *Bag) Set(name string, v Value) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.schema[name]; !ok {
		return
	}
	b.values[name] = v
	b.dirty.Store(true)
}

// Remove resets name back to its schema zero value and marks the bag
// dirty. Removing an unknown name is a no-op.
func (b *Bag) Remove(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.schema[name]
	if !ok {
		return
	}
	b.values[name] = zeroValue(entry.Kind)
	b.dirty.Store(true)
}

// Snapshot returns a copy of the bag's current values, used by
// serialization to walk every slot without holding the bag lock across
// encoding.
func (b *Bag) Snapshot() map[string]Value {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]Value, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Dirty reports whether any attribute has been mutated since the last
// ClearDirty.
func (b *Bag) Dirty() bool { return b.dirty.Load() }

// ClearDirty resets the dirty flag. Callers invoke this after a compute()
// pass has consumed the current attribute values and cached the result.
func (b *Bag) ClearDirty() { b.dirty.Store(false) }

// MarkDirty force-sets the dirty flag, used when a node's dirtiness derives
// from something other than its own bag (an upstream dependency changed, or
// a decoded source frame became available after being missing).
func (b *Bag) MarkDirty() { b.dirty.Store(true) }

// HashStable returns a fixed-seed, non-cryptographic hash over the
// canonical encoding of every FlagDAG-marked attribute, sorted by name so
// the result is independent of map iteration order. Two bags with
// identical DAG-flagged values hash identically; DAG-change detection
// compares this hash before and after a mutation.
func (b *Bag) HashStable() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := b.schema.DAGKeys()
	sort.Strings(keys)
	h := xxhash.New()
	var buf []byte
	for _, k := range keys {
		buf = buf[:0]
		buf = append(buf, k...)
		buf = append(buf, 0)
		buf = b.values[k].appendCanonicalBytes(buf)
		h.Write(buf)
	}
	return h.Sum64()
}

// Schema returns the schema this bag was created with.
func (b *Bag) Schema() Schema { return b.schema }

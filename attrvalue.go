package reel

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindBool ValueKind = iota
	KindInt32
	KindUInt32
	KindFloat32
	KindString
	KindVec3
	KindVec4
	KindMat3
	KindMat4
	KindUUID
	KindJSON
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindInt32:
		return "Int32"
	case KindUInt32:
		return "UInt32"
	case KindFloat32:
		return "Float32"
	case KindString:
		return "String"
	case KindVec3:
		return "Vec3"
	case KindVec4:
		return "Vec4"
	case KindMat3:
		return "Mat3"
	case KindMat4:
		return "Mat4"
	case KindUUID:
		return "Uuid"
	case KindJSON:
		return "Json"
	case KindList:
		return "List"
	default:
		return "ValueKind(?)"
	}
}

// Vec3 and Vec4 back the Vec3/Vec4 attribute variants (e.g. layer
// position/scale/pivot, which each pack into a Vec3).
type Vec3 struct{ X, Y, Z float64 }
type Vec4 struct{ X, Y, Z, W float64 }

// Mat3 and Mat4 are row-major fixed-size matrices, backing the Mat3/Mat4
// attribute variants (Camera's view-projection matrix uses Mat4).
type Mat3 [9]float64
type Mat4 [16]float64

// Value is a tagged union over the Attribute Bag's supported scalar and
// aggregate types. The zero Value is KindBool(false).
type Value struct {
	kind ValueKind
	b    bool
	i32  int32
	u32  uint32
	f32  float32
	str  string
	vec3 Vec3
	vec4 Vec4
	mat3 Mat3
	mat4 Mat4
	uid  uuid.UUID
	list []Value
}

func BoolValue(v bool) Value       { return Value{kind: KindBool, b: v} }
func Int32Value(v int32) Value     { return Value{kind: KindInt32, i32: v} }
func UInt32Value(v uint32) Value   { return Value{kind: KindUInt32, u32: v} }
func Float32Value(v float32) Value { return Value{kind: KindFloat32, f32: v} }
func StringValue(v string) Value   { return Value{kind: KindString, str: v} }
func Vec3Value(v Vec3) Value       { return Value{kind: KindVec3, vec3: v} }
func Vec4Value(v Vec4) Value       { return Value{kind: KindVec4, vec4: v} }
func Mat3Value(v Mat3) Value       { return Value{kind: KindMat3, mat3: v} }
func Mat4Value(v Mat4) Value       { return Value{kind: KindMat4, mat4: v} }
func UUIDValue(v uuid.UUID) Value  { return Value{kind: KindUUID, uid: v} }
func JSONValue(v string) Value     { return Value{kind: KindJSON, str: v} }
func ListValue(v []Value) Value    { return Value{kind: KindList, list: v} }

// Kind reports the variant this Value holds.
func (v Value) Kind() ValueKind { return v.kind }

func (v Value) Bool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) Int32() (int32, bool)     { return v.i32, v.kind == KindInt32 }
func (v Value) UInt32() (uint32, bool)   { return v.u32, v.kind == KindUInt32 }
func (v Value) Float32() (float32, bool) { return v.f32, v.kind == KindFloat32 }
func (v Value) String_() (string, bool)  { return v.str, v.kind == KindString }
func (v Value) Vec3_() (Vec3, bool)      { return v.vec3, v.kind == KindVec3 }
func (v Value) Vec4_() (Vec4, bool)      { return v.vec4, v.kind == KindVec4 }
func (v Value) Mat3_() (Mat3, bool)      { return v.mat3, v.kind == KindMat3 }
func (v Value) Mat4_() (Mat4, bool)      { return v.mat4, v.kind == KindMat4 }
func (v Value) UUID() (uuid.UUID, bool)  { return v.uid, v.kind == KindUUID }
func (v Value) JSON() (string, bool)     { return v.str, v.kind == KindJSON }
func (v Value) List() ([]Value, bool)    { return v.list, v.kind == KindList }

// appendCanonicalBytes writes a deterministic, type-tagged encoding of v
// into buf, used by hash_stable so the same logical value always hashes
// identically regardless of process or platform.
func (v Value) appendCanonicalBytes(buf []byte) []byte {
	buf = append(buf, byte(v.kind))
	switch v.kind {
	case KindBool:
		if v.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindInt32:
		buf = appendUint32(buf, uint32(v.i32))
	case KindUInt32:
		buf = appendUint32(buf, v.u32)
	case KindFloat32:
		buf = appendUint32(buf, math.Float32bits(v.f32))
	case KindString, KindJSON:
		buf = appendUint32(buf, uint32(len(v.str)))
		buf = append(buf, v.str...)
	case KindVec3:
		buf = appendFloat64(buf, v.vec3.X, v.vec3.Y, v.vec3.Z)
	case KindVec4:
		buf = appendFloat64(buf, v.vec4.X, v.vec4.Y, v.vec4.Z, v.vec4.W)
	case KindMat3:
		buf = appendFloat64(buf, v.mat3[:]...)
	case KindMat4:
		buf = appendFloat64(buf, v.mat4[:]...)
	case KindUUID:
		buf = append(buf, v.uid[:]...)
	case KindList:
		buf = appendUint32(buf, uint32(len(v.list)))
		for _, e := range v.list {
			buf = e.appendCanonicalBytes(buf)
		}
	}
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendFloat64(buf []byte, vs ...float64) []byte {
	for _, v := range vs {
		bits := math.Float64bits(v)
		buf = append(buf, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24),
			byte(bits>>32), byte(bits>>40), byte(bits>>48), byte(bits>>56))
	}
	return buf
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt32:
		return fmt.Sprintf("%d", v.i32)
	case KindUInt32:
		return fmt.Sprintf("%d", v.u32)
	case KindFloat32:
		return fmt.Sprintf("%g", v.f32)
	case KindString:
		return v.str
	case KindJSON:
		return v.str
	case KindUUID:
		return v.uid.String()
	default:
		return fmt.Sprintf("%s(...)", v.kind)
	}
}

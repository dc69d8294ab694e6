package bsoncore

import (
	"fmt"

	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/bson/primitive"
)

// Value is a BSON value in its raw wire representation: a type tag plus
// the bytes that encode it (not including any element key).
type Value struct {
	Type bsontype.Type
	Data []byte
}

// readValue reads a single value of type t from the front of src.
func readValue(t bsontype.Type, src []byte) (Value, []byte, bool) {
	length, ok := valueLength(t, src)
	if !ok || length > len(src) {
		return Value{}, src, false
	}
	return Value{Type: t, Data: src[:length]}, src[length:], true
}

// valueLength computes how many bytes of src are occupied by a value of
// type t, without allocating.
func valueLength(t bsontype.Type, src []byte) (int, bool) {
	switch t {
	case bsontype.Double, bsontype.DateTime, bsontype.Timestamp, bsontype.Int64:
		return 8, len(src) >= 8
	case bsontype.Int32:
		return 4, len(src) >= 4
	case bsontype.Boolean:
		return 1, len(src) >= 1
	case bsontype.ObjectID:
		return 12, len(src) >= 12
	case bsontype.Decimal128:
		return 16, len(src) >= 16
	case bsontype.Null, bsontype.Undefined, bsontype.MinKey, bsontype.MaxKey:
		return 0, true
	case bsontype.String, bsontype.JavaScript, bsontype.Symbol:
		l, _, ok := ReadLength(src)
		return int(4 + l), ok
	case bsontype.EmbeddedDocument, bsontype.Array, bsontype.CodeWithScope:
		l, _, ok := ReadLength(src)
		return int(l), ok
	case bsontype.Binary:
		l, _, ok := ReadLength(src)
		return int(4 + 1 + l), ok
	case bsontype.Regex:
		idx1 := indexNull(src)
		if idx1 < 0 {
			return 0, false
		}
		idx2 := indexNull(src[idx1+1:])
		if idx2 < 0 {
			return 0, false
		}
		return idx1 + 1 + idx2 + 1, true
	case bsontype.DBPointer:
		l, rem, ok := ReadLength(src)
		if !ok || len(rem) < int(l)+12 {
			return 0, false
		}
		return int(4+l) + 12, true
	default:
		return 0, false
	}
}

// IsNumber reports whether v holds a numeric BSON type.
func (v Value) IsNumber() bool {
	switch v.Type {
	case bsontype.Double, bsontype.Int32, bsontype.Int64, bsontype.Decimal128:
		return true
	}
	return false
}

// Double returns the value as a float64. It does not check v.Type: if v is
// not a Double, the result is 0 or meaningless rather than a panic.
func (v Value) Double() float64 {
	f, _, _ := ReadDouble(v.Data)
	return f
}

// StringValue returns the value as a string.
func (v Value) StringValue() string {
	s, _, _ := ReadString(v.Data)
	return s
}

// Document returns the value as a raw Document.
func (v Value) Document() Document {
	return Document(v.Data)
}

// Array returns the value as a raw Array.
func (v Value) Array() Array {
	return Array(v.Data)
}

// Binary returns the binary subtype and payload.
func (v Value) Binary() (subtype byte, data []byte) {
	l, rem, _ := ReadLength(v.Data)
	subtype = rem[0]
	data = rem[1 : 1+int(l)]
	return subtype, data
}

// ObjectID returns the value as a primitive.ObjectID.
func (v Value) ObjectID() primitive.ObjectID {
	var id primitive.ObjectID
	copy(id[:], v.Data)
	return id
}

// Boolean returns the value as a bool.
func (v Value) Boolean() bool {
	return v.Data[0] != 0x00
}

// DateTime returns the raw millisecond count, clamped to the representable
// range on decode as the wire spec requires.
func (v Value) DateTime() int64 {
	i, _, _ := ReadInt64(v.Data)
	return primitive.ClampDateTime(i)
}

// Regex returns the pattern and options strings.
func (v Value) Regex() (pattern, options string) {
	pattern, rem, _ := ReadCString(v.Data)
	options, _, _ = ReadCString(rem)
	return pattern, options
}

// DBPointer returns the namespace and pointed-to ObjectID.
func (v Value) DBPointer() (ns string, id primitive.ObjectID) {
	ns, rem, _ := ReadString(v.Data)
	copy(id[:], rem)
	return ns, id
}

// JavaScript returns the code string.
func (v Value) JavaScript() string {
	s, _, _ := ReadString(v.Data)
	return s
}

// Symbol returns the symbol's backing string.
func (v Value) Symbol() string {
	s, _, _ := ReadString(v.Data)
	return s
}

// CodeWithScope returns the code string and the raw scope document.
func (v Value) CodeWithScope() (code string, scope Document) {
	rem := v.Data[4:] // skip the overall int32 length
	code, rem, _ = ReadString(rem)
	return code, Document(rem)
}

// Int32 returns the value as an int32.
func (v Value) Int32() int32 {
	i, _, _ := ReadInt32(v.Data)
	return i
}

// Timestamp returns the (T, I) pair: ordinal then seconds, matching the
// wire's <uint32 increment><uint32 seconds> layout low-word-first.
func (v Value) Timestamp() (t, i uint32) {
	i, rem, _ := ReadUint32(v.Data)
	t, _, _ = ReadUint32(rem)
	return t, i
}

// Int64 returns the value as an int64.
func (v Value) Int64() int64 {
	i, _, _ := ReadInt64(v.Data)
	return i
}

// Decimal128 returns the value as a primitive.Decimal128.
func (v Value) Decimal128() primitive.Decimal128 {
	low, rem, _ := ReadUint64(v.Data)
	high, _, _ := ReadUint64(rem)
	return primitive.NewDecimal128(high, low)
}

// Validate checks that v's Data is exactly the size its type requires and,
// for container types, recursively validates the contents.
func (v Value) Validate() error {
	length, ok := valueLength(v.Type, v.Data)
	if !ok || length != len(v.Data) {
		return fmt.Errorf("%s: %w", v.Type, ErrMissingNull)
	}
	switch v.Type {
	case bsontype.EmbeddedDocument:
		return v.Document().Validate()
	case bsontype.Array:
		return v.Array().Validate()
	}
	return nil
}

// String renders v as a fragment of extended JSON, best-effort.
func (v Value) String() string {
	switch v.Type {
	case bsontype.String:
		return fmt.Sprintf("%q", v.StringValue())
	case bsontype.EmbeddedDocument:
		return v.Document().String()
	case bsontype.Array:
		return v.Array().String()
	case bsontype.Int32:
		return fmt.Sprintf("%d", v.Int32())
	case bsontype.Int64:
		return fmt.Sprintf("%d", v.Int64())
	case bsontype.Double:
		return fmt.Sprintf("%v", v.Double())
	case bsontype.Boolean:
		return fmt.Sprintf("%v", v.Boolean())
	case bsontype.ObjectID:
		return v.ObjectID().String()
	case bsontype.Null:
		return "null"
	default:
		return fmt.Sprintf("<%s>", v.Type)
	}
}

// DebugString is an alias for String used by container debug dumps.
func (v Value) DebugString() string { return v.String() }

// Equal reports whether v and v2 have the same type and identical raw
// bytes.
func (v Value) Equal(v2 Value) bool {
	if v.Type != v2.Type || len(v.Data) != len(v2.Data) {
		return false
	}
	for i := range v.Data {
		if v.Data[i] != v2.Data[i] {
			return false
		}
	}
	return true
}

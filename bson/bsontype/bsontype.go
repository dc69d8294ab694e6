// Package bsontype defines the BSON type byte constants used on the wire
// and by the codec to dispatch encode/decode behavior.
package bsontype

import "fmt"

// Type represents the BSON value type, i.e. the single byte that precedes
// every element's key on the wire.
type Type byte

// Constants uniquely identifying each BSON type, matching the byte values
// from the BSON specification at bsonspec.org.
const (
	Double           Type = 0x01
	String           Type = 0x02
	EmbeddedDocument Type = 0x03
	Array            Type = 0x04
	Binary           Type = 0x05
	Undefined        Type = 0x06
	ObjectID         Type = 0x07
	Boolean          Type = 0x08
	DateTime         Type = 0x09
	Null             Type = 0x0A
	Regex            Type = 0x0B
	DBPointer        Type = 0x0C
	JavaScript       Type = 0x0D
	Symbol           Type = 0x0E
	CodeWithScope    Type = 0x0F
	Int32            Type = 0x10
	Timestamp        Type = 0x11
	Int64            Type = 0x12
	Decimal128       Type = 0x13
	MinKey           Type = 0xFF
	MaxKey           Type = 0x7F
)

// String returns a human readable name for t, used in error messages and
// debug dumps.
func (t Type) String() string {
	switch t {
	case Double:
		return "double"
	case String:
		return "string"
	case EmbeddedDocument:
		return "embedded document"
	case Array:
		return "array"
	case Binary:
		return "binary"
	case Undefined:
		return "undefined"
	case ObjectID:
		return "objectID"
	case Boolean:
		return "bool"
	case DateTime:
		return "UTC datetime"
	case Null:
		return "null"
	case Regex:
		return "regex"
	case DBPointer:
		return "dbPointer"
	case JavaScript:
		return "javascript"
	case Symbol:
		return "symbol"
	case CodeWithScope:
		return "code with scope"
	case Int32:
		return "32-bit integer"
	case Timestamp:
		return "timestamp"
	case Int64:
		return "64-bit integer"
	case Decimal128:
		return "128-bit decimal"
	case MinKey:
		return "min key"
	case MaxKey:
		return "max key"
	default:
		return fmt.Sprintf("<unknown type 0x%02X>", byte(t))
	}
}

// BinarySubtype identifies the one-byte subtype that follows a Binary
// value's length prefix.
type BinarySubtype byte

// Recognized binary subtypes. Values in [0x80, 0xFF] are reserved for
// user-defined subtypes and are accepted on decode without interpretation.
const (
	BinaryGeneric    BinarySubtype = 0x00
	BinaryFunction   BinarySubtype = 0x01
	BinaryOld        BinarySubtype = 0x02
	BinaryUUIDOld    BinarySubtype = 0x03
	BinaryUUID       BinarySubtype = 0x04
	BinaryMD5        BinarySubtype = 0x05
	BinaryEncrypted  BinarySubtype = 0x06
	BinaryUserDefLow BinarySubtype = 0x80
)

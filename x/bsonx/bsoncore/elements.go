package bsoncore

import (
	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/bson/primitive"
)

// These Append*Element helpers pair a header (type + key) with its value
// in one call, the shorthand command-building code reaches for constantly
// instead of the two-step AppendHeader/AppendXxx.

func AppendInt32Element(dst []byte, key string, i32 int32) []byte {
	return AppendInt32(AppendHeader(dst, bsontype.Int32, key), i32)
}

func AppendInt64Element(dst []byte, key string, i64 int64) []byte {
	return AppendInt64(AppendHeader(dst, bsontype.Int64, key), i64)
}

func AppendStringElement(dst []byte, key, val string) []byte {
	return AppendString(AppendHeader(dst, bsontype.String, key), val)
}

func AppendBooleanElement(dst []byte, key string, b bool) []byte {
	return AppendBoolean(AppendHeader(dst, bsontype.Boolean, key), b)
}

func AppendDoubleElement(dst []byte, key string, f float64) []byte {
	return AppendDouble(AppendHeader(dst, bsontype.Double, key), f)
}

func AppendObjectIDElement(dst []byte, key string, id primitive.ObjectID) []byte {
	return append(AppendHeader(dst, bsontype.ObjectID, key), id[:]...)
}

func AppendDocumentElement(dst []byte, key string, doc []byte) []byte {
	return append(AppendHeader(dst, bsontype.EmbeddedDocument, key), doc...)
}

// AppendArrayElement writes a complete, already-built array as an element.
func AppendArrayElement(dst []byte, key string, arr []byte) []byte {
	return append(AppendHeader(dst, bsontype.Array, key), arr...)
}

// AppendDocumentElementStart writes the header for an embedded document
// and opens it, returning the length-prefix index AppendDocumentEnd needs.
func AppendDocumentElementStart(dst []byte, key string) (int32, []byte) {
	return AppendDocumentStart(AppendHeader(dst, bsontype.EmbeddedDocument, key))
}

// AppendArrayElementStart writes the header for an array and opens it the
// same way a document opens (arrays and documents share wire layout).
func AppendArrayElementStart(dst []byte, key string) (int32, []byte) {
	return AppendDocumentStart(AppendHeader(dst, bsontype.Array, key))
}

// AppendArrayEnd closes an array opened with AppendArrayElementStart.
func AppendArrayEnd(dst []byte, idx int32) []byte {
	return AppendDocumentEnd(dst, idx)
}

// Package bson implements encoding and decoding of BSON documents,
// mirroring the conventions of go.mongodb.org/mongo-driver/v2/bson: an
// ordered D, an unordered M, a positional A, and a Registry-driven codec
// that dispatches on Go type via reflection.
package bson

import (
	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
)

// D is an ordered BSON document: a sequence of keyed elements. Use D
// whenever element order matters, e.g. sort specifications and aggregation
// pipeline stages — the codec never reorders a D's elements.
type D []E

// E represents a BSON document element: a key paired with a value of any
// type the registry can encode.
type E struct {
	Key   string
	Value interface{}
}

// M is an unordered BSON document, implemented as a Go map. Because map
// iteration order is randomized, the codec makes no order guarantee when
// encoding an M; use D when order matters.
type M map[string]interface{}

// A is a BSON array: a positional sequence of values of any type the
// registry can encode.
type A []interface{}

// Map converts d to an M, discarding order information. Duplicate keys
// (which D permits but M cannot represent) keep the last occurrence.
func (d D) Map() M {
	m := make(M, len(d))
	for _, e := range d {
		m[e.Key] = e.Value
	}
	return m
}

// Raw is an undecoded BSON document: the raw bytes plus enough structure
// to support lazy field lookup without fully unmarshaling.
type Raw []byte

// Lookup returns the value of the first top-level element with the given
// key.
func (r Raw) Lookup(key string) (RawValue, error) {
	v, ok := bsoncore.Document(r).Lookup(key)
	if !ok {
		return RawValue{}, ErrElementNotFound
	}
	return RawValue{Type: v.Type, Value: v.Data}, nil
}

// AsValue converts back to a bsoncore.Value, e.g. to feed a typed accessor
// such as (bsoncore.Value).ObjectID.
func (v RawValue) AsValue() bsoncore.Value {
	return bsoncore.Value{Type: v.Type, Data: v.Value}
}

// Validate checks that r is a structurally well-formed BSON document.
func (r Raw) Validate() error {
	return bsoncore.Document(r).Validate()
}

// String renders r as extended-JSON-like text, best-effort, for debugging.
func (r Raw) String() string {
	return bsoncore.Document(r).String()
}

// Elements returns the raw elements of r in document order.
func (r Raw) Elements() ([]RawElement, error) {
	elems, err := bsoncore.Document(r).Elements()
	if err != nil {
		return nil, err
	}
	out := make([]RawElement, len(elems))
	for i, e := range elems {
		out[i] = RawElement(e)
	}
	return out, nil
}

// RawElement is a single undecoded element within a Raw document.
type RawElement bsoncore.Element

// Key returns the element's key.
func (e RawElement) Key() string { return bsoncore.Element(e).Key() }

// Value returns the element's RawValue.
func (e RawElement) Value() RawValue {
	v := bsoncore.Element(e).Value()
	return RawValue{Type: v.Type, Value: v.Data}
}

// ErrElementNotFound is returned by Raw.Lookup when the key is absent.
var ErrElementNotFound = errElementNotFound{}

type errElementNotFound struct{}

func (errElementNotFound) Error() string { return "element not found" }

// RawValue is an undecoded BSON value: its type tag plus the raw bytes
// that encode it.
type RawValue struct {
	Type  bsontype.Type
	Value []byte
}

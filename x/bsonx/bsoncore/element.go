package bsoncore

import (
	"fmt"

	"github.com/brinkdb/mongowire/bson/bsontype"
)

// Element is a single raw BSON element: <type byte><cstring key><value>.
type Element []byte

// ReadElement reads a single element from the front of src.
func ReadElement(src []byte) (Element, []byte, bool) {
	if len(src) < 1 {
		return nil, src, false
	}
	t := bsontype.Type(src[0])
	_, rem, ok := ReadCString(src[1:])
	if !ok {
		return nil, src, false
	}
	_, rem2, ok := readValue(t, rem)
	if !ok {
		return nil, src, false
	}
	total := len(src) - len(rem2)
	return Element(src[:total]), rem2, true
}

// Type returns the element's BSON type.
func (e Element) Type() bsontype.Type {
	if len(e) == 0 {
		return 0
	}
	return bsontype.Type(e[0])
}

// Key returns the element's key. Panics if e is malformed.
func (e Element) Key() string {
	k, _, ok := e.KeyErr()
	if !ok {
		panic("invalid element: cannot read key")
	}
	return k
}

// KeyErr returns the element's key without panicking.
func (e Element) KeyErr() (string, []byte, bool) {
	if len(e) < 1 {
		return "", nil, false
	}
	return ReadCString(e[1:])
}

// Value returns the element's value. Panics if e is malformed.
func (e Element) Value() Value {
	v, ok := e.ValueErr()
	if !ok {
		panic("invalid element: cannot read value")
	}
	return v
}

// ValueErr returns the element's value without panicking.
func (e Element) ValueErr() (Value, bool) {
	_, rem, ok := e.KeyErr()
	if !ok {
		return Value{}, false
	}
	v, _, ok := readValue(e.Type(), rem)
	return v, ok
}

// Validate checks that e is well-formed: a valid type byte, a NUL
// terminated key, and a value whose length matches.
func (e Element) Validate() error {
	_, rem, ok := e.KeyErr()
	if !ok {
		return fmt.Errorf("element: invalid key")
	}
	v, _, ok := readValue(e.Type(), rem)
	if !ok {
		return fmt.Errorf("element %s: invalid value", e.Type())
	}
	return v.Validate()
}

// String renders e as a fragment of extended JSON: "key": value.
func (e Element) String() string {
	k, _, ok := e.KeyErr()
	if !ok {
		return "<malformed>"
	}
	v, ok := e.ValueErr()
	if !ok {
		return fmt.Sprintf("%q: <malformed>", k)
	}
	return fmt.Sprintf("%q: %s", k, v.String())
}

// DebugString is an alias for String used by container debug dumps.
func (e Element) DebugString() string { return e.String() }

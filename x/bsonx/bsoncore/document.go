// Package bsoncore provides allocation-light functions for encoding and
// decoding the raw BSON wire format directly as byte slices, without an
// intermediate streaming reader/writer. The bson package's Registry-driven
// codec builds on top of these primitives.
package bsoncore

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/brinkdb/mongowire/bson/bsontype"
)

// Document is a raw BSON document: <int32 length><element>*<0x00>.
type Document []byte

// NewDocumentBuilder starts building a new Document, reserving space for
// the length prefix.
func NewDocumentBuilder() *DocumentBuilder {
	return &DocumentBuilder{buf: AppendInt32(nil, 0)}
}

// DocumentBuilder incrementally assembles a Document.
type DocumentBuilder struct {
	buf []byte
}

// AppendValue appends a keyed element of the given type and raw value
// bytes.
func (b *DocumentBuilder) AppendValue(key string, t bsontype.Type, value []byte) *DocumentBuilder {
	b.buf = AppendHeader(b.buf, t, key)
	b.buf = append(b.buf, value...)
	return b
}

// AppendDocument appends a keyed embedded-document element.
func (b *DocumentBuilder) AppendDocument(key string, doc Document) *DocumentBuilder {
	return b.AppendValue(key, bsontype.EmbeddedDocument, doc)
}

// Build finalizes the document: writes the length prefix and trailing NUL.
func (b *DocumentBuilder) Build() Document {
	b.buf = append(b.buf, 0x00)
	AppendLengthInPlace(b.buf)
	return Document(b.buf)
}

// AppendLengthInPlace overwrites the first four bytes of dst with its own
// length, as the BSON length prefix requires.
func AppendLengthInPlace(dst []byte) []byte {
	length := int32(len(dst))
	dst[0] = byte(length)
	dst[1] = byte(length >> 8)
	dst[2] = byte(length >> 16)
	dst[3] = byte(length >> 24)
	return dst
}

// BuildDocument wraps elements (each a complete <type><key><value> run,
// e.g. produced by AppendHeader+value bytes) into a length-prefixed,
// NUL-terminated document, appending to dst.
func BuildDocument(dst []byte, elements []byte) []byte {
	idx := len(dst)
	dst = AppendInt32(dst, 0)
	dst = append(dst, elements...)
	dst = append(dst, 0x00)
	AppendLengthInPlace(dst[idx:])
	return dst
}

// AppendDocumentStart reserves the length prefix of a document being built
// in place inside dst, returning the index of the reservation and the
// extended slice.
func AppendDocumentStart(dst []byte) (int32, []byte) {
	return int32(len(dst)), AppendInt32(dst, 0)
}

// AppendDocumentEnd writes the trailing NUL and backpatches the length
// prefix reserved at index idx.
func AppendDocumentEnd(dst []byte, idx int32) []byte {
	dst = append(dst, 0x00)
	AppendLengthInPlace(dst[idx:])
	return dst
}

// NewDocumentFromReader reads a length-prefixed document from r.
func NewDocumentFromReader(r io.Reader) (Document, error) {
	return newBufferFromReader(r)
}

func newBufferFromReader(r io.Reader) ([]byte, error) {
	length, err := ReaderLen(r)
	if err != nil {
		return nil, err
	}
	if length < 4 {
		return nil, lengthError("document", int(length), 0)
	}
	buf := make([]byte, length)
	buf[0], buf[1], buf[2], buf[3] = byte(length), byte(length>>8), byte(length>>16), byte(length>>24)
	if _, err := io.ReadFull(r, buf[4:]); err != nil {
		return nil, err
	}
	return buf, nil
}

// Index retrieves the element at the given zero-based index, panicking on
// a malformed document or an out-of-bounds index.
func (d Document) Index(index uint) Element {
	elem, err := indexErr(d, index)
	if err != nil {
		panic(err)
	}
	return elem
}

// IndexErr retrieves the element at the given zero-based index.
func (d Document) IndexErr(index uint) (Element, error) {
	return indexErr(d, index)
}

func indexErr(buf []byte, index uint) (Element, error) {
	length, rem, ok := ReadLength(buf)
	if !ok {
		return nil, NewInsufficientBytesError(buf, rem)
	}
	_ = length
	var elem Element
	var i uint
	for {
		if len(rem) <= 1 {
			return nil, fmt.Errorf("index %d out of bounds", index)
		}
		if rem[0] == 0x00 {
			return nil, fmt.Errorf("index %d out of bounds", index)
		}
		var ok2 bool
		elem, rem, ok2 = ReadElement(rem)
		if !ok2 {
			return nil, NewInsufficientBytesError(buf, rem)
		}
		if i == index {
			return elem, nil
		}
		i++
	}
}

// Elements returns every element in d, in document order.
func (d Document) Elements() ([]Element, error) {
	length, rem, ok := ReadLength(d)
	if !ok {
		return nil, NewInsufficientBytesError(d, rem)
	}
	if int(length) > len(d) {
		return nil, lengthError("document", int(length), len(d))
	}
	var elems []Element
	for len(rem) > 1 && rem[0] != 0x00 {
		var elem Element
		var ok2 bool
		elem, rem, ok2 = ReadElement(rem)
		if !ok2 {
			return elems, NewInsufficientBytesError(d, rem)
		}
		elems = append(elems, elem)
	}
	return elems, nil
}

// Values returns every element's Value, in document order.
func (d Document) Values() ([]Value, error) {
	elems, err := d.Elements()
	if err != nil {
		return nil, err
	}
	vals := make([]Value, 0, len(elems))
	for _, e := range elems {
		v, ok := e.ValueErr()
		if !ok {
			return vals, fmt.Errorf("invalid value for key %q", e.Key())
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// values parses buf (a Document or Array) into its Values, in order.
func values(buf []byte) ([]Value, error) {
	length, rem, ok := ReadLength(buf)
	if !ok {
		return nil, NewInsufficientBytesError(buf, rem)
	}
	if int(length) > len(buf) {
		return nil, lengthError("array", int(length), len(buf))
	}
	var vals []Value
	for len(rem) > 1 && rem[0] != 0x00 {
		elem, next, ok2 := ReadElement(rem)
		if !ok2 {
			return vals, NewInsufficientBytesError(buf, rem)
		}
		v, ok3 := elem.ValueErr()
		if !ok3 {
			return vals, fmt.Errorf("invalid array element")
		}
		vals = append(vals, v)
		rem = next
	}
	return vals, nil
}

// Lookup returns the value of the first top-level element with the given
// key, or ok=false if no such key exists.
func (d Document) Lookup(key string) (Value, bool) {
	elems, err := d.Elements()
	if err != nil {
		return Value{}, false
	}
	for _, e := range elems {
		if k, _, ok := e.KeyErr(); ok && k == key {
			v, ok := e.ValueErr()
			return v, ok
		}
	}
	return Value{}, false
}

// Len returns the document's own length prefix, or -1 if it can't be read.
func (d Document) Len() int32 {
	l, _, ok := ReadLength(d)
	if !ok {
		return -1
	}
	return l
}

// Validate walks d, checking the length prefix, every element, and the
// trailing NUL.
func (d Document) Validate() error {
	length, rem, ok := ReadLength(d)
	if !ok {
		return NewInsufficientBytesError(d, rem)
	}
	if int(length) > len(d) || length < 5 {
		return lengthError("document", int(length), len(d))
	}
	if d[length-1] != 0x00 {
		return ErrMissingNull
	}
	for len(rem) > 1 && rem[0] != 0x00 {
		var elem Element
		var ok2 bool
		elem, rem, ok2 = ReadElement(rem)
		if !ok2 {
			return NewInsufficientBytesError(d, rem)
		}
		if err := elem.Validate(); err != nil {
			return err
		}
	}
	if len(rem) < 1 || rem[0] != 0x00 {
		return ErrMissingNull
	}
	return nil
}

// String renders d as extended JSON, best-effort.
func (d Document) String() string {
	elems, err := d.Elements()
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(e.String())
	}
	buf.WriteByte('}')
	return buf.String()
}

// DebugString renders d with explicit length and malformed-element markers,
// used for debugging rather than machine consumption.
func (d Document) DebugString() string {
	var buf bytes.Buffer
	buf.WriteString("Document")
	length, rem, ok := ReadLength(d)
	if !ok {
		return "<malformed>"
	}
	buf.WriteByte('(')
	buf.WriteString(strconv.Itoa(int(length)))
	buf.WriteString(")[")
	for len(rem) > 1 && rem[0] != 0x00 {
		elem, next, ok2 := ReadElement(rem)
		if !ok2 {
			buf.WriteString("<malformed>")
			break
		}
		buf.WriteString(elem.DebugString())
		buf.WriteByte(' ')
		rem = next
	}
	buf.WriteByte(']')
	return buf.String()
}

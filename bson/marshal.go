package bson

import (
	"fmt"
	"reflect"

	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/bson/primitive"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
)

// Marshal encodes v as a complete BSON document using DefaultRegistry. v
// must encode to a document (a struct, map, D, or a Marshaler) — encoding
// a bare scalar returns InvalidValue.
func Marshal(v interface{}) ([]byte, error) {
	return MarshalWithRegistry(DefaultRegistry, v)
}

// MarshalWithRegistry is Marshal using an explicit Registry, e.g. one a
// caller extended with RegisterTypeEncoder for an application type.
func MarshalWithRegistry(r *Registry, v interface{}) ([]byte, error) {
	val, err := encodeAny(EncodeContext{Registry: r}, v)
	if err != nil {
		return nil, err
	}
	if val.Type != bsontype.EmbeddedDocument {
		return nil, InvalidValueError{Value: v, Reason: "does not encode to a document"}
	}
	return val.Data, nil
}

// Unmarshal decodes a complete BSON document src into v, which must be a
// non-nil pointer, using DefaultRegistry.
func Unmarshal(src []byte, v interface{}) error {
	return UnmarshalWithRegistry(DefaultRegistry, src, v)
}

// UnmarshalWithRegistry is Unmarshal using an explicit Registry.
func UnmarshalWithRegistry(r *Registry, src []byte, v interface{}) error {
	if err := Raw(src).Validate(); err != nil {
		return CorruptDocumentError{Err: err}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("Unmarshal target must be a non-nil pointer, got %T", v)
	}
	dc := DecodeContext{Registry: r}
	return decodeReflectValue(dc, bsoncore.Value{Type: bsontype.EmbeddedDocument, Data: src}, rv.Elem())
}

// UnmarshalOrdered decodes src the same way as Unmarshal, but any nested
// document that lands on an interface{}-typed field decodes to D (ordered)
// rather than M, preserving field order throughout the tree.
func UnmarshalOrdered(src []byte, v interface{}) error {
	if err := Raw(src).Validate(); err != nil {
		return CorruptDocumentError{Err: err}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("UnmarshalOrdered target must be a non-nil pointer, got %T", v)
	}
	dc := DecodeContext{Registry: DefaultRegistry, Ordered: true}
	return decodeReflectValue(dc, bsoncore.Value{Type: bsontype.EmbeddedDocument, Data: src}, rv.Elem())
}

// InvalidValueError is returned when a value cannot be represented in
// BSON, e.g. a channel, a function, or an unmodeled language-specific
// object with no registered codec.
type InvalidValueError struct {
	Value  interface{}
	Reason string
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("cannot encode %T as BSON: %s", e.Value, e.Reason)
}

// InvalidDocumentError is returned when a document's shape is ambiguous or
// self-contradictory, e.g. mixed key representations from a source that
// cannot guarantee a stable key set.
type InvalidDocumentError struct {
	Reason string
}

func (e InvalidDocumentError) Error() string {
	return "invalid document: " + e.Reason
}

// CorruptDocumentError wraps a decode-time structural failure: a malformed
// length prefix, a missing trailing NUL, or an unknown type byte.
type CorruptDocumentError struct {
	Err error
}

func (e CorruptDocumentError) Error() string {
	return fmt.Sprintf("corrupt BSON document: %v", e.Err)
}

func (e CorruptDocumentError) Unwrap() error { return e.Err }

// encodeAny dispatches encoding for an arbitrary Go value, including nil
// and the bson.D/M/A aliases which reflect.ValueOf handles natively.
func encodeAny(ec EncodeContext, v interface{}) (bsoncore.Value, error) {
	if v == nil {
		return bsoncore.Value{Type: bsontype.Null}, nil
	}
	if d, ok := v.(D); ok {
		return encodeReflectValue(ec, reflect.ValueOf(d))
	}
	return encodeReflectValue(ec, reflect.ValueOf(v))
}

// encodeReflectValue is the single recursive entry point every codec calls
// to encode a nested value: it resolves rv's codec from the registry and
// invokes it.
func encodeReflectValue(ec EncodeContext, rv reflect.Value) (bsoncore.Value, error) {
	if !rv.IsValid() {
		return bsoncore.Value{Type: bsontype.Null}, nil
	}
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return bsoncore.Value{Type: bsontype.Null}, nil
		}
		rv = rv.Elem()
	}

	codec, err := ec.Registry.LookupCodec(rv.Type())
	if err != nil {
		return bsoncore.Value{}, InvalidValueError{Value: rv.Interface(), Reason: err.Error()}
	}
	t, data, err := codec.EncodeValue(ec, rv)
	if err != nil {
		return bsoncore.Value{}, err
	}
	return bsoncore.Value{Type: t, Data: data}, nil
}

// decodeReflectValue is the recursive entry point every codec calls to
// decode a nested value into a settable reflect.Value.
func decodeReflectValue(dc DecodeContext, val bsoncore.Value, rv reflect.Value) error {
	if rv.Kind() == reflect.Interface && rv.NumMethod() == 0 {
		iv, err := decodeToEmpty(dc, val)
		if err != nil {
			return err
		}
		if iv == nil {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		rv.Set(reflect.ValueOf(iv))
		return nil
	}

	codec, err := dc.Registry.LookupCodec(rv.Type())
	if err != nil {
		return err
	}
	return codec.DecodeValue(dc, val.Type, val.Data, rv)
}

// decodeToEmpty decodes val into the default Go representation for its
// BSON type, used for interface{}-typed targets (bson.D/M/A elements, and
// any caller-supplied `interface{}` field).
func decodeToEmpty(dc DecodeContext, val bsoncore.Value) (interface{}, error) {
	switch val.Type {
	case bsontype.Double:
		return val.Double(), nil
	case bsontype.String:
		return val.StringValue(), nil
	case bsontype.EmbeddedDocument:
		if dc.Ordered {
			var d D
			if err := decodeReflectValue(dc, val, reflect.ValueOf(&d).Elem()); err != nil {
				return nil, err
			}
			return d, nil
		}
		m := make(M)
		if err := decodeReflectValue(dc, val, reflect.ValueOf(&m).Elem()); err != nil {
			return nil, err
		}
		return m, nil
	case bsontype.Array:
		var a A
		if err := decodeReflectValue(dc, val, reflect.ValueOf(&a).Elem()); err != nil {
			return nil, err
		}
		return a, nil
	case bsontype.Binary:
		subtype, data := val.Binary()
		return primitive.Binary{Subtype: subtype, Data: append([]byte(nil), data...)}, nil
	case bsontype.Undefined:
		return primitive.Undefined{}, nil
	case bsontype.ObjectID:
		return val.ObjectID(), nil
	case bsontype.Boolean:
		return val.Boolean(), nil
	case bsontype.DateTime:
		return primitive.DateTime(val.DateTime()), nil
	case bsontype.Null:
		return nil, nil
	case bsontype.Regex:
		pattern, options := val.Regex()
		return primitive.Regex{Pattern: pattern, Options: options}, nil
	case bsontype.DBPointer:
		ns, id := val.DBPointer()
		return primitive.DBPointer{DB: ns, Pointer: id}, nil
	case bsontype.JavaScript:
		return primitive.JavaScript(val.JavaScript()), nil
	case bsontype.Symbol:
		return val.Symbol(), nil
	case bsontype.CodeWithScope:
		code, scope := val.CodeWithScope()
		scopeVal, err := decodeToEmpty(dc, bsoncore.Value{Type: bsontype.EmbeddedDocument, Data: scope})
		if err != nil {
			return nil, err
		}
		return primitive.CodeWithScope{Code: primitive.JavaScript(code), Scope: scopeVal}, nil
	case bsontype.Int32:
		return val.Int32(), nil
	case bsontype.Timestamp:
		t, i := val.Timestamp()
		return primitive.Timestamp{T: t, I: i}, nil
	case bsontype.Int64:
		return val.Int64(), nil
	case bsontype.Decimal128:
		return val.Decimal128(), nil
	case bsontype.MinKey:
		return primitive.MinKey{}, nil
	case bsontype.MaxKey:
		return primitive.MaxKey{}, nil
	default:
		return nil, fmt.Errorf("cannot decode unknown BSON type 0x%02X", byte(val.Type))
	}
}

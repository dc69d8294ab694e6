package bson

import (
	"fmt"
	"reflect"

	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/bson/primitive"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
)

// registerPrimitiveCodecs wires a dedicated codec for each BSON type that
// has no natural Go kind: ObjectID, Decimal128, Regex, Timestamp, Binary,
// JavaScript, Symbol, CodeWithScope, DBPointer, MinKey, MaxKey, Null,
// Undefined, plus the generic interface{} fallback used by A, M, and any
// caller-supplied interface{} tree.
func registerPrimitiveCodecs(rb *RegistryBuilder) {
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.ObjectID{}), objectIDCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.Decimal128{}), decimal128Codec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.Regex{}), regexCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.Timestamp{}), timestampCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.Binary{}), binaryCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.JavaScript("")), javascriptCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.Symbol("")), symbolCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.CodeWithScope{}), codeWithScopeCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.DBPointer{}), dbPointerCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.MinKey{}), minKeyCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.MaxKey{}), maxKeyCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.Null{}), nullCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(primitive.Undefined{}), undefinedCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(D(nil)), dCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(A(nil)), sliceCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(M(nil)), mapCodec{})
	rb.RegisterTypeEncoder(emptyInterfaceType, emptyInterfaceCodec{})
}

var emptyInterfaceType = reflect.TypeOf((*interface{})(nil)).Elem()

type objectIDCodec struct{}

func (objectIDCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	id := v.Interface().(primitive.ObjectID)
	return bsontype.ObjectID, append([]byte(nil), id[:]...), nil
}

func (objectIDCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t != bsontype.ObjectID {
		return fmt.Errorf("cannot decode %s into an ObjectID", t)
	}
	v.Set(reflect.ValueOf(bsoncore.Value{Type: t, Data: data}.ObjectID()))
	return nil
}

type decimal128Codec struct{}

func (decimal128Codec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	d := v.Interface().(primitive.Decimal128)
	high, low := d.GetBytes()
	dst := bsoncore.AppendUint64(nil, low)
	dst = bsoncore.AppendUint64(dst, high)
	return bsontype.Decimal128, dst, nil
}

func (decimal128Codec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t != bsontype.Decimal128 {
		return fmt.Errorf("cannot decode %s into a Decimal128", t)
	}
	v.Set(reflect.ValueOf(bsoncore.Value{Type: t, Data: data}.Decimal128()))
	return nil
}

type regexCodec struct{}

func (regexCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	r := v.Interface().(primitive.Regex)
	dst := bsoncore.AppendCString(nil, r.Pattern)
	dst = bsoncore.AppendCString(dst, r.Options)
	return bsontype.Regex, dst, nil
}

func (regexCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t != bsontype.Regex {
		return fmt.Errorf("cannot decode %s into a Regex", t)
	}
	pattern, options := bsoncore.Value{Type: t, Data: data}.Regex()
	v.Set(reflect.ValueOf(primitive.Regex{Pattern: pattern, Options: options}))
	return nil
}

type timestampCodec struct{}

func (timestampCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	ts := v.Interface().(primitive.Timestamp)
	dst := bsoncore.AppendUint32(nil, ts.I)
	dst = bsoncore.AppendUint32(dst, ts.T)
	return bsontype.Timestamp, dst, nil
}

func (timestampCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t != bsontype.Timestamp {
		return fmt.Errorf("cannot decode %s into a Timestamp", t)
	}
	tt, i := bsoncore.Value{Type: t, Data: data}.Timestamp()
	v.Set(reflect.ValueOf(primitive.Timestamp{T: tt, I: i}))
	return nil
}

type binaryCodec struct{}

func (binaryCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	b := v.Interface().(primitive.Binary)
	dst := bsoncore.AppendInt32(nil, int32(len(b.Data)))
	dst = append(dst, b.Subtype)
	dst = append(dst, b.Data...)
	return bsontype.Binary, dst, nil
}

func (binaryCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t != bsontype.Binary {
		return fmt.Errorf("cannot decode %s into Binary", t)
	}
	subtype, bin := bsoncore.Value{Type: t, Data: data}.Binary()
	v.Set(reflect.ValueOf(primitive.Binary{Subtype: subtype, Data: append([]byte(nil), bin...)}))
	return nil
}

type javascriptCodec struct{}

func (javascriptCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	return bsontype.JavaScript, bsoncore.AppendString(nil, string(v.Interface().(primitive.JavaScript))), nil
}

func (javascriptCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t != bsontype.JavaScript {
		return fmt.Errorf("cannot decode %s into JavaScript", t)
	}
	v.Set(reflect.ValueOf(primitive.JavaScript(bsoncore.Value{Type: t, Data: data}.JavaScript())))
	return nil
}

type symbolCodec struct{}

func (symbolCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	return bsontype.Symbol, bsoncore.AppendString(nil, string(v.Interface().(primitive.Symbol))), nil
}

func (symbolCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	switch t {
	case bsontype.Symbol:
		v.Set(reflect.ValueOf(primitive.Symbol(bsoncore.Value{Type: t, Data: data}.Symbol())))
	case bsontype.String:
		v.Set(reflect.ValueOf(primitive.Symbol(bsoncore.Value{Type: t, Data: data}.StringValue())))
	default:
		return fmt.Errorf("cannot decode %s into Symbol", t)
	}
	return nil
}

type codeWithScopeCodec struct{}

func (codeWithScopeCodec) EncodeValue(ec EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	cws := v.Interface().(primitive.CodeWithScope)
	scopeVal, err := encodeAny(ec, cws.Scope)
	if err != nil {
		return 0, nil, err
	}
	body := bsoncore.AppendString(nil, string(cws.Code))
	body = append(body, scopeVal.Data...)
	dst := bsoncore.AppendInt32(nil, int32(len(body)+4))
	dst = append(dst, body...)
	return bsontype.CodeWithScope, dst, nil
}

func (codeWithScopeCodec) DecodeValue(dc DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t != bsontype.CodeWithScope {
		return fmt.Errorf("cannot decode %s into CodeWithScope", t)
	}
	code, scope := bsoncore.Value{Type: t, Data: data}.CodeWithScope()
	scopeD, err := decodeToEmpty(dc, bsoncore.Value{Type: bsontype.EmbeddedDocument, Data: scope})
	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(primitive.CodeWithScope{Code: primitive.JavaScript(code), Scope: scopeD}))
	return nil
}

type dbPointerCodec struct{}

func (dbPointerCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	d := v.Interface().(primitive.DBPointer)
	dst := bsoncore.AppendString(nil, d.DB)
	dst = append(dst, d.Pointer[:]...)
	return bsontype.DBPointer, dst, nil
}

func (dbPointerCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t != bsontype.DBPointer {
		return fmt.Errorf("cannot decode %s into DBPointer", t)
	}
	ns, id := bsoncore.Value{Type: t, Data: data}.DBPointer()
	v.Set(reflect.ValueOf(primitive.DBPointer{DB: ns, Pointer: id}))
	return nil
}

type minKeyCodec struct{}

func (minKeyCodec) EncodeValue(_ EncodeContext, _ reflect.Value) (bsontype.Type, []byte, error) {
	return bsontype.MinKey, nil, nil
}
func (minKeyCodec) DecodeValue(_ DecodeContext, t bsontype.Type, _ []byte, v reflect.Value) error {
	if t != bsontype.MinKey {
		return fmt.Errorf("cannot decode %s into MinKey", t)
	}
	v.Set(reflect.ValueOf(primitive.MinKey{}))
	return nil
}

type maxKeyCodec struct{}

func (maxKeyCodec) EncodeValue(_ EncodeContext, _ reflect.Value) (bsontype.Type, []byte, error) {
	return bsontype.MaxKey, nil, nil
}
func (maxKeyCodec) DecodeValue(_ DecodeContext, t bsontype.Type, _ []byte, v reflect.Value) error {
	if t != bsontype.MaxKey {
		return fmt.Errorf("cannot decode %s into MaxKey", t)
	}
	v.Set(reflect.ValueOf(primitive.MaxKey{}))
	return nil
}

type nullCodec struct{}

func (nullCodec) EncodeValue(_ EncodeContext, _ reflect.Value) (bsontype.Type, []byte, error) {
	return bsontype.Null, nil, nil
}
func (nullCodec) DecodeValue(_ DecodeContext, t bsontype.Type, _ []byte, v reflect.Value) error {
	v.Set(reflect.ValueOf(primitive.Null{}))
	return nil
}

type undefinedCodec struct{}

func (undefinedCodec) EncodeValue(_ EncodeContext, _ reflect.Value) (bsontype.Type, []byte, error) {
	return bsontype.Undefined, nil, nil
}
func (undefinedCodec) DecodeValue(_ DecodeContext, t bsontype.Type, _ []byte, v reflect.Value) error {
	v.Set(reflect.ValueOf(primitive.Undefined{}))
	return nil
}

// emptyInterfaceCodec handles interface{}-typed fields: on encode it
// re-dispatches on the value's concrete type; on decode it picks the
// default Go representation for the wire type (matching the teacher's
// EmptyInterfaceCodec: documents decode to D when order was requested,
// otherwise M; arrays decode to A).
type emptyInterfaceCodec struct{}

func (emptyInterfaceCodec) EncodeValue(ec EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	if v.IsNil() {
		return bsontype.Null, nil, nil
	}
	val, err := encodeReflectValue(ec, v.Elem())
	return val.Type, val.Data, err
}

func (emptyInterfaceCodec) DecodeValue(dc DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	iv, err := decodeToEmpty(dc, bsoncore.Value{Type: t, Data: data})
	if err != nil {
		return err
	}
	if iv == nil {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}
	v.Set(reflect.ValueOf(iv))
	return nil
}

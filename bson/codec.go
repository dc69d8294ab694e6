package bson

import (
	"fmt"
	"reflect"
	"time"

	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/bson/primitive"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
)

// Marshaler is implemented by types that know how to encode themselves as
// a complete BSON document. This is the spec's "to document" hook: it is
// invoked once at encode time and the returned bytes are embedded verbatim
// (after validation) wherever the value appears.
type Marshaler interface {
	MarshalBSON() ([]byte, error)
}

// Unmarshaler is the decode-side counterpart of Marshaler.
type Unmarshaler interface {
	UnmarshalBSON([]byte) error
}

// ValueMarshaler is implemented by types that encode to a single BSON
// value rather than a whole document, e.g. a custom scalar wrapper.
type ValueMarshaler interface {
	MarshalBSONValue() (bsontype.Type, []byte, error)
}

// ValueUnmarshaler is the decode-side counterpart of ValueMarshaler.
type ValueUnmarshaler interface {
	UnmarshalBSONValue(bsontype.Type, []byte) error
}

var (
	tMarshaler      = reflect.TypeOf((*Marshaler)(nil)).Elem()
	tValueMarshaler = reflect.TypeOf((*ValueMarshaler)(nil)).Elem()
)

// --- primitive kind codecs ---------------------------------------------

type booleanCodec struct{}

func (booleanCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	if v.Kind() != reflect.Bool {
		return 0, nil, fmt.Errorf("booleanCodec cannot encode %s", v.Kind())
	}
	return bsontype.Boolean, bsoncore.AppendBoolean(nil, v.Bool()), nil
}

func (booleanCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	b, err := decodeBool(t, data)
	if err != nil {
		return err
	}
	v.SetBool(b)
	return nil
}

func decodeBool(t bsontype.Type, data []byte) (bool, error) {
	val := bsoncore.Value{Type: t, Data: data}
	switch t {
	case bsontype.Boolean:
		return val.Boolean(), nil
	case bsontype.Int32:
		return val.Int32() != 0, nil
	case bsontype.Int64:
		return val.Int64() != 0, nil
	case bsontype.Double:
		return val.Double() != 0, nil
	case bsontype.Null:
		return false, nil
	}
	return false, fmt.Errorf("cannot decode %s into a bool", t)
}

type intCodec struct{}

func (intCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	i := v.Int()
	if i >= -1<<31 && i <= 1<<31-1 {
		return bsontype.Int32, bsoncore.AppendInt32(nil, int32(i)), nil
	}
	return bsontype.Int64, bsoncore.AppendInt64(nil, i), nil
}

func (intCodec) DecodeValue(dc DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	i, err := decodeInt64(dc, t, data)
	if err != nil {
		return err
	}
	if v.OverflowInt(i) {
		return fmt.Errorf("%d overflows %s", i, v.Type())
	}
	v.SetInt(i)
	return nil
}

func decodeInt64(dc DecodeContext, t bsontype.Type, data []byte) (int64, error) {
	val := bsoncore.Value{Type: t, Data: data}
	switch t {
	case bsontype.Int32:
		return int64(val.Int32()), nil
	case bsontype.Int64:
		return val.Int64(), nil
	case bsontype.Double:
		f := val.Double()
		if f != float64(int64(f)) && !dc.Truncate {
			return 0, fmt.Errorf("cannot decode double %v into an integer without truncation", f)
		}
		return int64(f), nil
	case bsontype.Boolean:
		if val.Boolean() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot decode %s into an integer", t)
}

type uintCodec struct{}

func (uintCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	u := v.Uint()
	if u <= 1<<31-1 {
		return bsontype.Int32, bsoncore.AppendInt32(nil, int32(u)), nil
	}
	return bsontype.Int64, bsoncore.AppendInt64(nil, int64(u)), nil
}

func (uintCodec) DecodeValue(dc DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	i, err := decodeInt64(dc, t, data)
	if err != nil {
		return err
	}
	if i < 0 || v.OverflowUint(uint64(i)) {
		return fmt.Errorf("%d overflows %s", i, v.Type())
	}
	v.SetUint(uint64(i))
	return nil
}

type floatCodec struct{}

func (floatCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	return bsontype.Double, bsoncore.AppendDouble(nil, v.Float()), nil
}

func (floatCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	val := bsoncore.Value{Type: t, Data: data}
	var f float64
	switch t {
	case bsontype.Double:
		f = val.Double()
	case bsontype.Int32:
		f = float64(val.Int32())
	case bsontype.Int64:
		f = float64(val.Int64())
	default:
		return fmt.Errorf("cannot decode %s into a float", t)
	}
	if v.OverflowFloat(f) {
		return fmt.Errorf("%v overflows %s", f, v.Type())
	}
	v.SetFloat(f)
	return nil
}

type stringCodec struct{}

func (stringCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	return bsontype.String, bsoncore.AppendString(nil, v.String()), nil
}

func (stringCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	val := bsoncore.Value{Type: t, Data: data}
	switch t {
	case bsontype.String:
		v.SetString(val.StringValue())
	case bsontype.Symbol:
		v.SetString(val.Symbol())
	case bsontype.JavaScript:
		v.SetString(val.JavaScript())
	default:
		return fmt.Errorf("cannot decode %s into a string", t)
	}
	return nil
}

// --- time.Time <-> DateTime ----------------------------------------------

type timeCodec struct{}

func (timeCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	t, ok := v.Interface().(time.Time)
	if !ok {
		return 0, nil, fmt.Errorf("timeCodec cannot encode %s", v.Type())
	}
	dt := primitive.NewDateTimeFromTime(t)
	return bsontype.DateTime, bsoncore.AppendInt64(nil, int64(dt)), nil
}

func (timeCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t != bsontype.DateTime {
		return fmt.Errorf("cannot decode %s into time.Time", t)
	}
	ms := bsoncore.Value{Type: t, Data: data}.DateTime()
	v.Set(reflect.ValueOf(primitive.DateTime(ms).Time()))
	return nil
}

// --- slice / array ---------------------------------------------------------

type sliceCodec struct{}

func (sliceCodec) EncodeValue(ec EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
		return encodeBinary(v.Bytes())
	}
	builder := bsoncore.NewArrayBuilder()
	for i := 0; i < v.Len(); i++ {
		val, err := encodeReflectValue(ec, v.Index(i))
		if err != nil {
			return 0, nil, err
		}
		builder.AppendValue(val)
	}
	return bsontype.Array, builder.Build(), nil
}

func encodeBinary(b []byte) (bsontype.Type, []byte, error) {
	dst := bsoncore.AppendInt32(nil, int32(len(b)))
	dst = append(dst, 0x00) // generic subtype
	dst = append(dst, b...)
	return bsontype.Binary, dst, nil
}

func (sliceCodec) DecodeValue(dc DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t == bsontype.Binary && v.Type().Elem().Kind() == reflect.Uint8 {
		_, bin := bsoncore.Value{Type: t, Data: data}.Binary()
		v.SetBytes(append([]byte(nil), bin...))
		return nil
	}
	if t != bsontype.Array {
		return fmt.Errorf("cannot decode %s into a slice", t)
	}
	vals, err := bsoncore.Array(data).Values()
	if err != nil {
		return err
	}
	elemType := v.Type().Elem()
	out := reflect.MakeSlice(v.Type(), len(vals), len(vals))
	for i, val := range vals {
		elem := reflect.New(elemType).Elem()
		if err := decodeReflectValue(dc, val, elem); err != nil {
			return err
		}
		out.Index(i).Set(elem)
	}
	v.Set(out)
	return nil
}

// --- map ---------------------------------------------------------------------

type mapCodec struct{}

func (mapCodec) EncodeValue(ec EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	if v.Type().Key().Kind() != reflect.String {
		return 0, nil, fmt.Errorf("mapCodec cannot encode map with non-string key %s", v.Type().Key())
	}
	b := bsoncore.NewDocumentBuilder()
	iter := v.MapRange()
	for iter.Next() {
		val, err := encodeReflectValue(ec, iter.Value())
		if err != nil {
			return 0, nil, err
		}
		b.AppendValue(iter.Key().String(), val.Type, val.Data)
	}
	return bsontype.EmbeddedDocument, b.Build(), nil
}

func (mapCodec) DecodeValue(dc DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t != bsontype.EmbeddedDocument {
		return fmt.Errorf("cannot decode %s into a map", t)
	}
	if v.IsNil() {
		v.Set(reflect.MakeMap(v.Type()))
	}
	elems, err := bsoncore.Document(data).Elements()
	if err != nil {
		return err
	}
	elemType := v.Type().Elem()
	for _, e := range elems {
		val, ok := e.ValueErr()
		if !ok {
			return fmt.Errorf("invalid map value for key %q", e.Key())
		}
		elem := reflect.New(elemType).Elem()
		if err := decodeReflectValue(dc, val, elem); err != nil {
			return err
		}
		v.SetMapIndex(reflect.ValueOf(e.Key()), elem)
	}
	return nil
}

// --- bson.D (ordered document) ----------------------------------------------

type dCodec struct{}

func (dCodec) EncodeValue(ec EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	d, ok := v.Interface().(D)
	if !ok {
		return 0, nil, fmt.Errorf("dCodec cannot encode %s", v.Type())
	}
	b := bsoncore.NewDocumentBuilder()
	for _, e := range d {
		val, err := encodeAny(ec, e.Value)
		if err != nil {
			return 0, nil, err
		}
		b.AppendValue(e.Key, val.Type, val.Data)
	}
	return bsontype.EmbeddedDocument, b.Build(), nil
}

func (dCodec) DecodeValue(dc DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t != bsontype.EmbeddedDocument {
		return fmt.Errorf("cannot decode %s into a D", t)
	}
	elems, err := bsoncore.Document(data).Elements()
	if err != nil {
		return err
	}
	out := make(D, 0, len(elems))
	for _, e := range elems {
		val, ok := e.ValueErr()
		if !ok {
			return fmt.Errorf("invalid value for key %q", e.Key())
		}
		iv, err := decodeToEmpty(dc, val)
		if err != nil {
			return err
		}
		out = append(out, E{Key: e.Key(), Value: iv})
	}
	v.Set(reflect.ValueOf(out))
	return nil
}

// --- pointer -----------------------------------------------------------------

type pointerCodec struct{}

func (pointerCodec) EncodeValue(ec EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	if v.IsNil() {
		return bsontype.Null, nil, nil
	}
	val, err := encodeReflectValue(ec, v.Elem())
	return val.Type, val.Data, err
}

func (pointerCodec) DecodeValue(dc DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t == bsontype.Null {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}
	if v.IsNil() {
		v.Set(reflect.New(v.Type().Elem()))
	}
	return decodeReflectValue(dc, bsoncore.Value{Type: t, Data: data}, v.Elem())
}

// --- struct ------------------------------------------------------------------

type structCodec struct{}

func (structCodec) EncodeValue(ec EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	fields, err := structFieldsFor(v.Type())
	if err != nil {
		return 0, nil, err
	}
	b := bsoncore.NewDocumentBuilder()
	for _, f := range fields {
		fv := v.FieldByIndex(f.index)
		if f.omitEmpty && isEmptyValue(fv) {
			continue
		}
		val, err := encodeReflectValue(ec, fv)
		if err != nil {
			return 0, nil, fmt.Errorf("field %s: %w", f.name, err)
		}
		b.AppendValue(f.name, val.Type, val.Data)
	}
	return bsontype.EmbeddedDocument, b.Build(), nil
}

func (structCodec) DecodeValue(dc DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if t != bsontype.EmbeddedDocument {
		return fmt.Errorf("cannot decode %s into a struct", t)
	}
	fields, err := structFieldsFor(v.Type())
	if err != nil {
		return err
	}
	byName := make(map[string]structField, len(fields))
	for _, f := range fields {
		byName[f.name] = f
	}
	elems, err := bsoncore.Document(data).Elements()
	if err != nil {
		return err
	}
	for _, e := range elems {
		f, ok := byName[e.Key()]
		if !ok {
			continue
		}
		val, ok := e.ValueErr()
		if !ok {
			return fmt.Errorf("invalid value for field %q", f.name)
		}
		fv := v.FieldByIndex(f.index)
		if fv.Kind() == reflect.Ptr && fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		if err := decodeReflectValue(dc, val, fv); err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
	}
	return nil
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return false
}

// registerDefaultCodecs wires every built-in kind codec plus the BSON
// primitive type codecs into a fresh builder.
func registerDefaultCodecs(rb *RegistryBuilder) {
	rb.RegisterKindEncoder(reflect.Bool, booleanCodec{})
	ic := intCodec{}
	for _, k := range []reflect.Kind{reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64} {
		rb.RegisterKindEncoder(k, ic)
	}
	uc := uintCodec{}
	for _, k := range []reflect.Kind{reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64} {
		rb.RegisterKindEncoder(k, uc)
	}
	fc := floatCodec{}
	rb.RegisterKindEncoder(reflect.Float32, fc)
	rb.RegisterKindEncoder(reflect.Float64, fc)
	rb.RegisterKindEncoder(reflect.String, stringCodec{})
	rb.RegisterKindEncoder(reflect.Slice, sliceCodec{})
	rb.RegisterKindEncoder(reflect.Array, sliceCodec{})
	rb.RegisterKindEncoder(reflect.Map, mapCodec{})
	rb.RegisterKindEncoder(reflect.Struct, structCodec{})
	rb.RegisterKindEncoder(reflect.Ptr, pointerCodec{})

	rb.RegisterTypeEncoder(reflect.TypeOf(D{}), dCodec{})
	rb.RegisterTypeEncoder(reflect.TypeOf(time.Time{}), timeCodec{})

	registerPrimitiveCodecs(rb)

	rb.RegisterInterfaceEncoder(tValueMarshaler, valueMarshalerCodec{})
	rb.RegisterInterfaceEncoder(tMarshaler, marshalerCodec{})
}

// marshalerCodec adapts the document-level Marshaler/Unmarshaler hook.
type marshalerCodec struct{}

func (marshalerCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	m, ok := asInterface(v, tMarshaler).(Marshaler)
	if !ok {
		return 0, nil, fmt.Errorf("value does not implement Marshaler")
	}
	doc, err := m.MarshalBSON()
	if err != nil {
		return 0, nil, err
	}
	if err := bsoncore.Document(doc).Validate(); err != nil {
		return 0, nil, err
	}
	return bsontype.EmbeddedDocument, doc, nil
}

func (marshalerCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if v.Kind() == reflect.Ptr && v.IsNil() {
		v.Set(reflect.New(v.Type().Elem()))
	}
	target := v
	if v.Kind() != reflect.Ptr && v.CanAddr() {
		target = v.Addr()
	}
	u, ok := target.Interface().(Unmarshaler)
	if !ok {
		return fmt.Errorf("value does not implement Unmarshaler")
	}
	if t != bsontype.EmbeddedDocument {
		return fmt.Errorf("cannot decode %s into a Marshaler type", t)
	}
	return u.UnmarshalBSON(data)
}

// valueMarshalerCodec adapts the scalar-value Marshaler/Unmarshaler hook.
type valueMarshalerCodec struct{}

func (valueMarshalerCodec) EncodeValue(_ EncodeContext, v reflect.Value) (bsontype.Type, []byte, error) {
	m, ok := asInterface(v, tValueMarshaler).(ValueMarshaler)
	if !ok {
		return 0, nil, fmt.Errorf("value does not implement ValueMarshaler")
	}
	return m.MarshalBSONValue()
}

func (valueMarshalerCodec) DecodeValue(_ DecodeContext, t bsontype.Type, data []byte, v reflect.Value) error {
	if v.Kind() == reflect.Ptr && v.IsNil() {
		v.Set(reflect.New(v.Type().Elem()))
	}
	target := v
	if v.Kind() != reflect.Ptr && v.CanAddr() {
		target = v.Addr()
	}
	u, ok := target.Interface().(ValueUnmarshaler)
	if !ok {
		return fmt.Errorf("value does not implement ValueUnmarshaler")
	}
	return u.UnmarshalBSONValue(t, data)
}

func asInterface(v reflect.Value, iface reflect.Type) interface{} {
	if v.Type().Implements(iface) {
		return v.Interface()
	}
	if v.CanAddr() && v.Addr().Type().Implements(iface) {
		return v.Addr().Interface()
	}
	return nil
}

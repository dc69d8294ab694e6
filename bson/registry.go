package bson

import (
	"reflect"
	"sync"

	"github.com/brinkdb/mongowire/bson/bsontype"
)

// ValueEncoder encodes a reflect.Value of a registered type into its BSON
// wire representation.
type ValueEncoder interface {
	EncodeValue(EncodeContext, reflect.Value) (bsontype.Type, []byte, error)
}

// ValueDecoder decodes a BSON value of type t and raw bytes data into a
// settable reflect.Value.
type ValueDecoder interface {
	DecodeValue(DecodeContext, bsontype.Type, []byte, reflect.Value) error
}

// Codec implementations handle both directions for a type or kind. Most
// built-in and user codecs implement both methods on the same type.
type Codec interface {
	ValueEncoder
	ValueDecoder
}

// EncodeContext carries the registry and per-call encode options down to
// nested codec invocations.
type EncodeContext struct {
	Registry *Registry
	MinSize  bool
}

// DecodeContext carries the registry and per-call decode options down to
// nested codec invocations.
type DecodeContext struct {
	Registry *Registry
	// Truncate permits decoding a float64 into an integer field when the
	// value has no fractional part.
	Truncate bool
	// Ordered routes nested documents landing on an interface{} target to
	// D instead of M, preserving field order through the whole tree.
	Ordered bool
}

// ErrNoCodec is returned by Registry.LookupCodec when no codec is
// registered for a type.
type ErrNoCodec struct {
	Type reflect.Type
}

func (e ErrNoCodec) Error() string {
	return "no codec found for " + e.Type.String()
}

// Registry resolves Go types to the Codec that should encode/decode them,
// checking concrete types first, then registered interfaces, then a
// fallback by reflect.Kind.
type Registry struct {
	mu         sync.RWMutex
	typeCodecs map[reflect.Type]Codec
	kindCodecs map[reflect.Kind]Codec
	ifaces     []interfacePair
	ifaceCache sync.Map // reflect.Type -> Codec
}

type interfacePair struct {
	iface reflect.Type
	codec Codec
}

// RegistryBuilder assembles a Registry via chained Register calls. Not
// goroutine safe; build once at startup and share the resulting Registry.
type RegistryBuilder struct {
	typeCodecs map[reflect.Type]Codec
	kindCodecs map[reflect.Kind]Codec
	ifaces     []interfacePair
}

// NewRegistryBuilder returns a builder seeded with codecs for every
// built-in Go kind and the BSON primitive types.
func NewRegistryBuilder() *RegistryBuilder {
	rb := &RegistryBuilder{
		typeCodecs: make(map[reflect.Type]Codec),
		kindCodecs: make(map[reflect.Kind]Codec),
	}
	registerDefaultCodecs(rb)
	return rb
}

// RegisterTypeEncoder registers codec for the exact type t.
func (rb *RegistryBuilder) RegisterTypeEncoder(t reflect.Type, codec Codec) *RegistryBuilder {
	rb.typeCodecs[t] = codec
	return rb
}

// RegisterKindEncoder registers codec as the fallback for reflect.Kind k.
func (rb *RegistryBuilder) RegisterKindEncoder(k reflect.Kind, codec Codec) *RegistryBuilder {
	rb.kindCodecs[k] = codec
	return rb
}

// RegisterInterfaceEncoder registers codec for any type implementing the
// interface iface (which must itself be an interface type).
func (rb *RegistryBuilder) RegisterInterfaceEncoder(iface reflect.Type, codec Codec) *RegistryBuilder {
	rb.ifaces = append(rb.ifaces, interfacePair{iface: iface, codec: codec})
	return rb
}

// Build freezes the builder into an immutable Registry.
func (rb *RegistryBuilder) Build() *Registry {
	r := &Registry{
		typeCodecs: make(map[reflect.Type]Codec, len(rb.typeCodecs)),
		kindCodecs: make(map[reflect.Kind]Codec, len(rb.kindCodecs)),
		ifaces:     append([]interfacePair(nil), rb.ifaces...),
	}
	for t, c := range rb.typeCodecs {
		r.typeCodecs[t] = c
	}
	for k, c := range rb.kindCodecs {
		r.kindCodecs[k] = c
	}
	return r
}

// DefaultRegistry is used by Marshal/Unmarshal when no explicit Registry is
// supplied.
var DefaultRegistry = NewRegistryBuilder().Build()

// LookupCodec resolves the codec to use for t: exact type match, then
// registered interface match, then kind fallback.
func (r *Registry) LookupCodec(t reflect.Type) (Codec, error) {
	r.mu.RLock()
	if c, ok := r.typeCodecs[t]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	if c, ok := r.ifaceCache.Load(t); ok {
		return c.(Codec), nil
	}
	for _, ip := range r.ifaces {
		if t.Implements(ip.iface) || (t.Kind() != reflect.Ptr && reflect.PtrTo(t).Implements(ip.iface)) {
			r.ifaceCache.Store(t, ip.codec)
			return ip.codec, nil
		}
	}

	kind := t.Kind()
	r.mu.RLock()
	c, ok := r.kindCodecs[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNoCodec{Type: t}
	}
	return c, nil
}

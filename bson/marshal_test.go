package bson

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/brinkdb/mongowire/bson/primitive"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name    string `bson:"name"`
	Age     int32  `bson:"age"`
	Hidden  string `bson:"-"`
	Nick    string `bson:"nick,omitempty"`
	private string
}

func TestMarshalUnmarshalStruct(t *testing.T) {
	in := person{Name: "ada", Age: 36, Hidden: "secret"}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out person
	require.NoError(t, Unmarshal(data, &out))
	require.Equal(t, "ada", out.Name)
	require.Equal(t, int32(36), out.Age)
	require.Empty(t, out.Hidden)
	require.Empty(t, out.Nick)
}

func TestMarshalOmitEmpty(t *testing.T) {
	data, err := Marshal(person{Name: "grace", Age: 0})
	require.NoError(t, err)

	var m M
	require.NoError(t, Unmarshal(data, &m))
	_, ok := m["nick"]
	require.False(t, ok)
}

func TestObjectIDRoundTrip(t *testing.T) {
	id := primitive.NewObjectID()

	type doc struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	data, err := Marshal(doc{ID: id})
	require.NoError(t, err)

	var out doc
	require.NoError(t, Unmarshal(data, &out))
	require.Equal(t, id, out.ID)

	hex := id.Hex()
	require.Len(t, hex, 24)
	parsed, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestDecimal128RoundTrip(t *testing.T) {
	d, err := primitive.NewDecimal128FromString("1.50")
	require.NoError(t, err)

	type doc struct {
		Price primitive.Decimal128 `bson:"price"`
	}
	data, err := Marshal(doc{Price: d})
	require.NoError(t, err)

	var out doc
	require.NoError(t, Unmarshal(data, &out))
	require.Equal(t, d.String(), out.Price.String())
}

func TestDOrderPreserved(t *testing.T) {
	d := D{{Key: "z", Value: 1}, {Key: "a", Value: 2}, {Key: "m", Value: 3}}
	data, err := Marshal(d)
	require.NoError(t, err)

	var out D
	require.NoError(t, Unmarshal(data, &out))
	require.Len(t, out, 3)
	require.Equal(t, "z", out[0].Key)
	require.Equal(t, "a", out[1].Key)
	require.Equal(t, "m", out[2].Key)
}

func TestUnmarshalOrderedNestedPreservesOrder(t *testing.T) {
	outer := D{{Key: "inner", Value: D{{Key: "z", Value: 1}, {Key: "a", Value: 2}}}}
	data, err := Marshal(outer)
	require.NoError(t, err)

	var m M
	require.NoError(t, Unmarshal(data, &m))
	_, isD := m["inner"].(M)
	require.True(t, isD)

	var ordered D
	require.NoError(t, UnmarshalOrdered(data, &ordered))
	inner, ok := ordered[0].Value.(D)
	require.True(t, ok)
	require.Equal(t, "z", inner[0].Key)
}

func TestDoubleNaNCanonicalization(t *testing.T) {
	type doc struct {
		V float64 `bson:"v"`
	}
	data, err := Marshal(doc{V: math.NaN()})
	require.NoError(t, err)

	var out doc
	require.NoError(t, Unmarshal(data, &out))
	require.True(t, math.IsNaN(out.V))

	var m M
	require.NoError(t, Unmarshal(data, &m))
	bits := math.Float64bits(m["v"].(float64))
	require.Equal(t, uint64(0x7FF8000000000000), bits)
}

func TestDateTimeRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	type doc struct {
		At time.Time `bson:"at"`
	}
	data, err := Marshal(doc{At: now})
	require.NoError(t, err)

	var out doc
	require.NoError(t, Unmarshal(data, &out))
	require.True(t, now.Equal(out.At))
}

func TestBinaryRoundTrip(t *testing.T) {
	type doc struct {
		Raw []byte `bson:"raw"`
	}
	in := doc{Raw: []byte{1, 2, 3, 4}}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out doc
	require.NoError(t, Unmarshal(data, &out))
	require.Equal(t, in.Raw, out.Raw)
}

func TestArrayRoundTrip(t *testing.T) {
	type doc struct {
		Tags []string `bson:"tags"`
	}
	in := doc{Tags: []string{"x", "y", "z"}}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out doc
	require.NoError(t, Unmarshal(data, &out))
	require.Equal(t, in.Tags, out.Tags)
}

func TestMapRoundTrip(t *testing.T) {
	in := M{"a": int32(1), "b": "two"}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out M
	require.NoError(t, Unmarshal(data, &out))
	require.Equal(t, int32(1), out["a"])
	require.Equal(t, "two", out["b"])
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := primitive.Timestamp{T: 100, I: 7}
	type doc struct {
		TS primitive.Timestamp `bson:"ts"`
	}
	data, err := Marshal(doc{TS: ts})
	require.NoError(t, err)

	var out doc
	require.NoError(t, Unmarshal(data, &out))
	require.Equal(t, ts, out.TS)
}

func TestNullAndPointer(t *testing.T) {
	type doc struct {
		P *int32 `bson:"p"`
	}
	data, err := Marshal(doc{P: nil})
	require.NoError(t, err)

	var out doc
	require.NoError(t, Unmarshal(data, &out))
	require.Nil(t, out.P)

	v := int32(42)
	data, err = Marshal(doc{P: &v})
	require.NoError(t, err)
	require.NoError(t, Unmarshal(data, &out))
	require.NotNil(t, out.P)
	require.Equal(t, int32(42), *out.P)
}

func TestUnmarshalRejectsNonPointer(t *testing.T) {
	var out person
	err := Unmarshal([]byte{5, 0, 0, 0, 0}, out)
	require.Error(t, err)
}

func TestNestedDocumentRoundTrip(t *testing.T) {
	type address struct {
		City string `bson:"city"`
		Zip  string `bson:"zip"`
	}
	type doc struct {
		Name      string    `bson:"name"`
		Addresses []address `bson:"addresses"`
	}

	in := doc{
		Name: "ada",
		Addresses: []address{
			{City: "London", Zip: "SW1"},
			{City: "Paris", Zip: "75001"},
		},
	}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out doc
	require.NoError(t, Unmarshal(data, &out))
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round-trip mismatch\nin:  %s\nout: %s", spew.Sdump(in), spew.Sdump(out))
	}
}

func TestUnmarshalRejectsCorruptDocument(t *testing.T) {
	var out M
	err := Unmarshal([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00}, &out)
	require.Error(t, err)
	var cerr CorruptDocumentError
	require.ErrorAs(t, err, &cerr)
}

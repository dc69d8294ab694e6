package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver/address"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
)

func TestHelloCommandIncludesHelloOkAndClientMetadata(t *testing.T) {
	h := &Hello{AppName: "myapp", Compressors: []string{"snappy", "zstd"}}

	dst, err := h.command(nil, description.SelectedServer{})
	require.NoError(t, err)

	elems, err := parseTestElements(dst)
	require.NoError(t, err)

	assert.Contains(t, elems, "hello")
	assert.Contains(t, elems, "helloOk")
	assert.Contains(t, elems, "compression")
	assert.Contains(t, elems, "client")
}

// parseTestElements walks a (not yet length-prefixed) element stream built
// by command, collecting top-level keys, for tests that only care which
// fields were written.
func parseTestElements(buf []byte) (map[string]bool, error) {
	out := map[string]bool{}
	for len(buf) > 0 {
		elem, rest, ok := bsoncore.ReadElement(buf)
		if !ok {
			break
		}
		out[elem.Key()] = true
		buf = rest
	}
	return out, nil
}

func TestParseHelloResponseStandalone(t *testing.T) {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendDoubleElement(dst, "ok", 1)
	dst = bsoncore.AppendInt32Element(dst, "maxWireVersion", 17)
	dst = bsoncore.AppendInt32Element(dst, "minWireVersion", 0)
	doc := bsoncore.Document(bsoncore.AppendDocumentEnd(dst, idx))

	desc := parseHelloResponse(address.Address("localhost:27017"), doc)
	assert.Equal(t, description.Standalone, desc.Kind)
	assert.Equal(t, int32(17), desc.MaxWireVersion)
}

func TestParseHelloResponseReplicaSetPrimary(t *testing.T) {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendDoubleElement(dst, "ok", 1)
	dst = bsoncore.AppendStringElement(dst, "setName", "rs0")
	dst = bsoncore.AppendBooleanElement(dst, "ismaster", true)
	hIdx, hdst := bsoncore.AppendArrayElementStart(dst, "hosts")
	hdst = bsoncore.AppendStringElement(hdst, "0", "a:27017")
	hdst = bsoncore.AppendStringElement(hdst, "1", "b:27017")
	dst = bsoncore.AppendArrayEnd(hdst, hIdx)
	doc := bsoncore.Document(bsoncore.AppendDocumentEnd(dst, idx))

	desc := parseHelloResponse(address.Address("a:27017"), doc)
	assert.Equal(t, description.RSPrimary, desc.Kind)
	assert.Equal(t, "rs0", desc.SetName)
	assert.ElementsMatch(t, []string{"a:27017", "b:27017"}, desc.Hosts)
}

func TestParseHelloResponseMongos(t *testing.T) {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendDoubleElement(dst, "ok", 1)
	dst = bsoncore.AppendStringElement(dst, "msg", "isdbgrid")
	doc := bsoncore.Document(bsoncore.AppendDocumentEnd(dst, idx))

	desc := parseHelloResponse(address.Address("router:27017"), doc)
	assert.Equal(t, description.Mongos, desc.Kind)
}

func TestItoa(t *testing.T) {
	cases := map[int]string{0: "0", 7: "7", 42: "42", -5: "-5"}
	for in, want := range cases {
		assert.Equal(t, want, itoa(in))
	}
}

package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver/address"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/wiremessage"
)

// scriptedConn replies to each WriteWireMessage with the next document in
// replies, wrapped as a minimal OP_MSG body section.
type scriptedConn struct {
	replies [][]byte
	sent    int
}

func (c *scriptedConn) WriteWireMessage(context.Context, []byte) error {
	c.sent++
	return nil
}

func (c *scriptedConn) ReadWireMessage(context.Context) ([]byte, error) {
	idx := c.sent - 1
	body := c.replies[idx]
	return wiremessage.AppendMsg(nil, wiremessage.NextRequestID(), 0, []wiremessage.Section{
		{Kind: wiremessage.SectionKindBody, Documents: [][]byte{body}},
	}), nil
}

func (c *scriptedConn) Description() description.Server { return description.Server{} }
func (c *scriptedConn) Close() error                    { return nil }
func (c *scriptedConn) ID() string                       { return "scripted" }
func (c *scriptedConn) Address() address.Address         { return address.Address("localhost:27017") }

type fakeServer struct{ conn Connection }

func (s fakeServer) Connection(context.Context) (Connection, error) { return s.conn, nil }

func okDoc(cursorElems func(dst []byte) []byte) []byte {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendDoubleElement(dst, "ok", 1)
	cIdx, cdst := bsoncore.AppendDocumentElementStart(dst, "cursor")
	cdst = cursorElems(cdst)
	dst = bsoncore.AppendDocumentEnd(cdst, cIdx)
	return bsoncore.AppendDocumentEnd(dst, idx)
}

func TestNewCursorResponse(t *testing.T) {
	resp := okDoc(func(dst []byte) []byte {
		dst = bsoncore.AppendInt64Element(dst, "id", 123)
		dst = bsoncore.AppendStringElement(dst, "ns", "db.coll")
		aIdx, adst := bsoncore.AppendArrayElementStart(dst, "firstBatch")
		adst = bsoncore.AppendDocumentElement(adst, "0", okDoc(func(d []byte) []byte { return d }))
		dst = bsoncore.AppendArrayEnd(adst, aIdx)
		return dst
	})

	cr, err := NewCursorResponse(bsoncore.Document(resp), fakeServer{})
	require.NoError(t, err)
	assert.Equal(t, int64(123), cr.ID)
	assert.Equal(t, "db.coll", cr.Namespace)
	assert.Len(t, cr.FirstBatch, 1)
}

func TestNewCursorResponseMissingCursor(t *testing.T) {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendDoubleElement(dst, "ok", 1)
	doc := bsoncore.AppendDocumentEnd(dst, idx)

	_, err := NewCursorResponse(bsoncore.Document(doc), fakeServer{})
	assert.Error(t, err)
}

func TestBatchCursorNextConsumesFirstBatchWithoutNetwork(t *testing.T) {
	cr := CursorResponse{
		ID:         42,
		Namespace:  "db.coll",
		FirstBatch: []bsoncore.Document{bsoncore.Document(okDoc(func(d []byte) []byte { return d }))},
	}
	bc, err := NewBatchCursor(cr, nil, nil, CursorOptions{})
	require.NoError(t, err)

	more, err := bc.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, more)
	assert.Len(t, bc.Batch(), 1)
}

func TestBatchCursorNextFetchesGetMore(t *testing.T) {
	getMoreReply := okDoc(func(dst []byte) []byte {
		dst = bsoncore.AppendInt64Element(dst, "id", 0)
		dst = bsoncore.AppendStringElement(dst, "ns", "db.coll")
		aIdx, adst := bsoncore.AppendArrayElementStart(dst, "nextBatch")
		adst = bsoncore.AppendDocumentElement(adst, "0", okDoc(func(d []byte) []byte { return d }))
		dst = bsoncore.AppendArrayEnd(adst, aIdx)
		return dst
	})
	conn := &scriptedConn{replies: [][]byte{getMoreReply}}

	cr := CursorResponse{ID: 42, Namespace: "db.coll", Server: fakeServer{conn: conn}}
	bc, err := NewBatchCursor(cr, nil, nil, CursorOptions{})
	require.NoError(t, err)

	more, err := bc.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, int64(0), bc.ID())
	assert.Len(t, bc.Batch(), 1)

	more, err = bc.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, more)
}

func TestBatchCursorCloseKillsLiveCursor(t *testing.T) {
	killReply := okDoc(func(d []byte) []byte { return d })
	conn := &scriptedConn{replies: [][]byte{killReply}}

	cr := CursorResponse{ID: 7, Namespace: "db.coll", Server: fakeServer{conn: conn}}
	bc, err := NewBatchCursor(cr, nil, nil, CursorOptions{})
	require.NoError(t, err)

	require.NoError(t, bc.Close(context.Background()))
	assert.Equal(t, 1, conn.sent)

	// closing again must not issue a second killCursors
	require.NoError(t, bc.Close(context.Background()))
	assert.Equal(t, 1, conn.sent)
}

func TestBatchCursorCloseNoopWhenExhausted(t *testing.T) {
	cr := CursorResponse{ID: 0, Namespace: "db.coll"}
	bc, err := NewBatchCursor(cr, nil, nil, CursorOptions{})
	require.NoError(t, err)

	require.NoError(t, bc.Close(context.Background()))
}

func TestDbFromNamespace(t *testing.T) {
	assert.Equal(t, "db", dbFromNamespace("db.coll"))
	assert.Equal(t, "db", dbFromNamespace("db.nested.coll"))
	assert.Equal(t, "nodb", dbFromNamespace("nodb"))
}

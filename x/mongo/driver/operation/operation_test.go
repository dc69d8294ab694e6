package operation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/address"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/wiremessage"
)

// fakeConn replies with a single fixed command response document.
type fakeConn struct {
	reply []byte
}

func (c *fakeConn) WriteWireMessage(context.Context, []byte) error { return nil }

func (c *fakeConn) ReadWireMessage(context.Context) ([]byte, error) {
	return wiremessage.AppendMsg(nil, wiremessage.NextRequestID(), 0, []wiremessage.Section{
		{Kind: wiremessage.SectionKindBody, Documents: [][]byte{c.reply}},
	}), nil
}

func (c *fakeConn) Description() description.Server { return description.Server{} }
func (c *fakeConn) Close() error                    { return nil }
func (c *fakeConn) ID() string                       { return "fake" }
func (c *fakeConn) Address() address.Address         { return address.Address("localhost:27017") }

func okDocument(elems func(dst []byte) []byte) bsoncore.Document {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendDoubleElement(dst, "ok", 1)
	dst = elems(dst)
	return bsoncore.Document(bsoncore.AppendDocumentEnd(dst, idx))
}

func TestDropDatabaseExecute(t *testing.T) {
	reply := okDocument(func(dst []byte) []byte {
		return bsoncore.AppendStringElement(dst, "dropped", "mydb")
	})
	conn := &fakeConn{reply: reply}

	dd := NewDropDatabase().Database("mydb").Deployment(driver.SingleConnectionDeployment{C: conn})
	require.NoError(t, dd.Execute(context.Background()))
	assert.Equal(t, "mydb", dd.Result().Dropped)
}

func TestDropDatabaseRequiresDeployment(t *testing.T) {
	dd := NewDropDatabase()
	assert.Error(t, dd.Execute(context.Background()))
}

func TestListCollectionsExecuteBuildsCursor(t *testing.T) {
	reply := okDocument(func(dst []byte) []byte {
		cIdx, cdst := bsoncore.AppendDocumentElementStart(dst, "cursor")
		cdst = bsoncore.AppendInt64Element(cdst, "id", 0)
		cdst = bsoncore.AppendStringElement(cdst, "ns", "mydb.$cmd.listCollections")
		aIdx, adst := bsoncore.AppendArrayElementStart(cdst, "firstBatch")
		adst = bsoncore.AppendDocumentElement(adst, "0", okDocument(func(d []byte) []byte {
			return bsoncore.AppendStringElement(d, "name", "coll1")
		}))
		cdst = bsoncore.AppendArrayEnd(adst, aIdx)
		return bsoncore.AppendDocumentEnd(cdst, cIdx)
	})
	conn := &fakeConn{reply: reply}

	lc := NewListCollections(nil).Database("mydb").Deployment(driver.SingleConnectionDeployment{C: conn})
	require.NoError(t, lc.Execute(context.Background()))

	cursor, err := lc.Result(driver.CursorOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor.ID())
	assert.Len(t, cursor.Batch(), 1)
}

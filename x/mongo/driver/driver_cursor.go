package driver

import (
	"context"
	"errors"
	"strings"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// CursorResponse is the parsed "cursor" subdocument of a find/aggregate/
// listCollections reply: the ID to getMore against, the namespace, and the
// first batch already fetched.
type CursorResponse struct {
	ID         int64
	Namespace  string
	FirstBatch []bsoncore.Document
	Server     Server
}

// NewCursorResponse parses a command reply's "cursor" field.
func NewCursorResponse(response bsoncore.Document, srvr Server) (CursorResponse, error) {
	cursorVal, ok := response.Lookup("cursor")
	if !ok {
		return CursorResponse{}, errors.New("driver: response missing cursor field")
	}
	cursorDoc := cursorVal.Document()

	cr := CursorResponse{Server: srvr}
	if v, ok := cursorDoc.Lookup("id"); ok {
		cr.ID = v.Int64()
	}
	if v, ok := cursorDoc.Lookup("ns"); ok {
		cr.Namespace = v.StringValue()
	}

	batchKey := "firstBatch"
	if _, ok := cursorDoc.Lookup("nextBatch"); ok {
		batchKey = "nextBatch"
	}
	if v, ok := cursorDoc.Lookup(batchKey); ok {
		vals, _ := v.Array().Values()
		for _, val := range vals {
			cr.FirstBatch = append(cr.FirstBatch, val.Document())
		}
	}
	return cr, nil
}

// BatchCursor fetches successive batches of documents via getMore,
// against the same server the originating command selected, until the
// server reports cursor ID zero (exhausted).
type BatchCursor struct {
	id         int64
	ns         string
	srvr       Server
	session    *session.Client
	clock      *session.ClusterClock
	currentBatch []bsoncore.Document
	batchSize  int32
	closed     bool
}

// CursorOptions configures a BatchCursor's getMore behavior.
type CursorOptions struct {
	BatchSize int32
}

// NewBatchCursor constructs a BatchCursor from an initial CursorResponse.
func NewBatchCursor(cr CursorResponse, sess *session.Client, clock *session.ClusterClock, opts CursorOptions) (*BatchCursor, error) {
	return &BatchCursor{
		id:           cr.ID,
		ns:           cr.Namespace,
		srvr:         cr.Server,
		session:      sess,
		clock:        clock,
		currentBatch: cr.FirstBatch,
		batchSize:    opts.BatchSize,
	}, nil
}

// Batch returns the batch most recently fetched, consuming it: the next
// call to Next must fetch a new one via getMore.
func (bc *BatchCursor) Batch() []bsoncore.Document {
	batch := bc.currentBatch
	bc.currentBatch = nil
	return batch
}

// ID returns the server-side cursor ID, or 0 if exhausted.
func (bc *BatchCursor) ID() int64 { return bc.id }

// Next fetches the next batch via getMore if the current one is
// exhausted and the cursor isn't already closed, returning false once
// there is nothing left.
func (bc *BatchCursor) Next(ctx context.Context) (bool, error) {
	if len(bc.currentBatch) > 0 {
		return true, nil
	}
	if bc.id == 0 || bc.closed {
		return false, nil
	}

	conn, err := bc.srvr.Connection(ctx)
	if err != nil {
		return false, err
	}

	_, collName := splitNamespace(bc.ns)

	op := Operation{
		Database:   dbFromNamespace(bc.ns),
		Deployment: SingleConnectionDeployment{C: conn},
		Session:    bc.session,
		Clock:      bc.clock,
		CommandFn: func(dst []byte, _ description.SelectedServer) ([]byte, error) {
			dst = bsoncore.AppendInt64Element(dst, "getMore", bc.id)
			dst = bsoncore.AppendStringElement(dst, "collection", collName)
			if bc.batchSize > 0 {
				dst = bsoncore.AppendInt32Element(dst, "batchSize", bc.batchSize)
			}
			return dst, nil
		},
	}

	var result CursorResponse
	op.ProcessResponseFn = func(info ResponseInfo) error {
		var err error
		result, err = NewCursorResponse(info.ServerResponse, bc.srvr)
		return err
	}

	if err := op.Execute(ctx); err != nil {
		return false, err
	}

	bc.id = result.ID
	bc.currentBatch = result.FirstBatch
	return len(bc.currentBatch) > 0, nil
}

// Close kills the server-side cursor if it is still open.
func (bc *BatchCursor) Close(ctx context.Context) error {
	if bc.closed || bc.id == 0 {
		bc.closed = true
		return nil
	}
	bc.closed = true

	conn, err := bc.srvr.Connection(ctx)
	if err != nil {
		return err
	}

	_, collName := splitNamespace(bc.ns)

	op := Operation{
		Database:   dbFromNamespace(bc.ns),
		Deployment: SingleConnectionDeployment{C: conn},
		CommandFn: func(dst []byte, _ description.SelectedServer) ([]byte, error) {
			dst = bsoncore.AppendStringElement(dst, "killCursors", collName)
			idx, d := bsoncore.AppendArrayElementStart(dst, "cursors")
			d = bsoncore.AppendInt64Element(d, "0", bc.id)
			dst = bsoncore.AppendArrayEnd(d, idx)
			return dst, nil
		},
	}
	return op.Execute(ctx)
}

func dbFromNamespace(ns string) string {
	db, _ := splitNamespace(ns)
	return db
}

// splitNamespace splits a "db.coll" or "db.nested.coll" namespace into its
// database and collection parts, the collection being everything after the
// first dot.
func splitNamespace(ns string) (db, coll string) {
	db, coll, ok := strings.Cut(ns, ".")
	if !ok {
		return ns, ""
	}
	return db, coll
}

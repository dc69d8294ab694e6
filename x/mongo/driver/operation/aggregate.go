package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// Aggregate performs an aggregate operation.
type Aggregate struct {
	pipeline   bsoncore.Array
	batchSize  *int32
	collection string
	session    *session.Client
	clock      *session.ClusterClock
	database   string
	deployment driver.Deployment
	readPreference description.ReadPreference
	selector   driver.ServerSelector

	result driver.CursorResponse
}

// NewAggregate constructs and returns a new Aggregate. An empty collection
// name runs the pipeline against the database (db.aggregate, e.g. $currentOp).
func NewAggregate(pipeline bsoncore.Array) *Aggregate {
	return &Aggregate{pipeline: pipeline}
}

// Result builds the cursor over this operation's first batch, pinned to
// the server it ran against.
func (a *Aggregate) Result(opts driver.CursorOptions) (*driver.BatchCursor, error) {
	return driver.NewBatchCursor(a.result, a.session, a.clock, opts)
}

// Execute runs this operation and returns an error if it did not execute successfully.
func (a *Aggregate) Execute(ctx context.Context) error {
	if a.deployment == nil {
		return errors.New("operation: Aggregate requires a Deployment")
	}

	op := driver.Operation{
		CommandFn:      a.command,
		Session:        a.session,
		Clock:          a.clock,
		Database:       a.database,
		Deployment:     a.deployment,
		ReadPreference: a.readPreference,
		Selector:       a.selector,
	}
	op.ProcessResponseFn = func(info driver.ResponseInfo) error {
		var err error
		a.result, err = driver.NewCursorResponse(info.ServerResponse, driver.ServerFromConnection(info.Connection))
		return err
	}
	return op.Execute(ctx)
}

func (a *Aggregate) command(dst []byte, _ description.SelectedServer) ([]byte, error) {
	if a.collection == "" {
		dst = bsoncore.AppendInt32Element(dst, "aggregate", 1)
	} else {
		dst = bsoncore.AppendStringElement(dst, "aggregate", a.collection)
	}
	dst = bsoncore.AppendArrayElement(dst, "pipeline", a.pipeline)
	idx, cursorDst := bsoncore.AppendDocumentElementStart(dst, "cursor")
	if a.batchSize != nil {
		cursorDst = bsoncore.AppendInt32Element(cursorDst, "batchSize", *a.batchSize)
	}
	dst = bsoncore.AppendDocumentEnd(cursorDst, idx)
	return dst, nil
}

// BatchSize sets the number of documents to return in each batch.
func (a *Aggregate) BatchSize(batchSize int32) *Aggregate {
	a.batchSize = &batchSize
	return a
}

// Collection sets the collection that this command will run against. An
// empty value targets the database itself.
func (a *Aggregate) Collection(collection string) *Aggregate {
	a.collection = collection
	return a
}

// Session sets the session for this operation.
func (a *Aggregate) Session(session *session.Client) *Aggregate {
	a.session = session
	return a
}

// ClusterClock sets the cluster clock for this operation.
func (a *Aggregate) ClusterClock(clock *session.ClusterClock) *Aggregate {
	a.clock = clock
	return a
}

// Database sets the database to run this operation against.
func (a *Aggregate) Database(database string) *Aggregate {
	a.database = database
	return a
}

// Deployment sets the deployment to use for this operation.
func (a *Aggregate) Deployment(deployment driver.Deployment) *Aggregate {
	a.deployment = deployment
	return a
}

// ReadPreference sets the read preference used with this operation.
func (a *Aggregate) ReadPreference(readPreference description.ReadPreference) *Aggregate {
	a.readPreference = readPreference
	return a
}

// ServerSelector sets the selector used to retrieve a server.
func (a *Aggregate) ServerSelector(selector driver.ServerSelector) *Aggregate {
	a.selector = selector
	return a
}

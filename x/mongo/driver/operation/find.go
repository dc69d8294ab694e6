package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// Find performs a find operation.
type Find struct {
	filter         bsoncore.Document
	sort           bsoncore.Document
	projection     bsoncore.Document
	limit          *int64
	skip           *int64
	batchSize      *int32
	collection     string
	session        *session.Client
	clock          *session.ClusterClock
	database       string
	deployment     driver.Deployment
	readPreference description.ReadPreference
	selector       driver.ServerSelector

	result driver.CursorResponse
}

// NewFind constructs and returns a new Find.
func NewFind(filter bsoncore.Document) *Find {
	return &Find{filter: filter}
}

// Result builds the cursor over this operation's first batch, pinned to
// the server it ran against.
func (f *Find) Result(opts driver.CursorOptions) (*driver.BatchCursor, error) {
	return driver.NewBatchCursor(f.result, f.session, f.clock, opts)
}

// Execute runs this operation and returns an error if it did not execute successfully.
func (f *Find) Execute(ctx context.Context) error {
	if f.deployment == nil {
		return errors.New("operation: Find requires a Deployment")
	}

	op := driver.Operation{
		CommandFn:      f.command,
		Session:        f.session,
		Clock:          f.clock,
		Database:       f.database,
		Deployment:     f.deployment,
		ReadPreference: f.readPreference,
		Selector:       f.selector,
	}
	op.ProcessResponseFn = func(info driver.ResponseInfo) error {
		var err error
		f.result, err = driver.NewCursorResponse(info.ServerResponse, driver.ServerFromConnection(info.Connection))
		return err
	}
	return op.Execute(ctx)
}

func (f *Find) command(dst []byte, _ description.SelectedServer) ([]byte, error) {
	dst = bsoncore.AppendStringElement(dst, "find", f.collection)
	if f.filter != nil {
		dst = bsoncore.AppendDocumentElement(dst, "filter", f.filter)
	}
	if f.sort != nil {
		dst = bsoncore.AppendDocumentElement(dst, "sort", f.sort)
	}
	if f.projection != nil {
		dst = bsoncore.AppendDocumentElement(dst, "projection", f.projection)
	}
	if f.limit != nil {
		dst = bsoncore.AppendInt64Element(dst, "limit", *f.limit)
	}
	if f.skip != nil {
		dst = bsoncore.AppendInt64Element(dst, "skip", *f.skip)
	}
	if f.batchSize != nil {
		dst = bsoncore.AppendInt32Element(dst, "batchSize", *f.batchSize)
	}
	return dst, nil
}

// Filter determines what results are returned from the find.
func (f *Find) Filter(filter bsoncore.Document) *Find {
	f.filter = filter
	return f
}

// Sort determines the order in which results are returned.
func (f *Find) Sort(sort bsoncore.Document) *Find {
	f.sort = sort
	return f
}

// Projection limits the fields returned for matching documents.
func (f *Find) Projection(projection bsoncore.Document) *Find {
	f.projection = projection
	return f
}

// Limit sets a limit on the number of results returned.
func (f *Find) Limit(limit int64) *Find {
	f.limit = &limit
	return f
}

// Skip sets the number of documents to skip before returning results.
func (f *Find) Skip(skip int64) *Find {
	f.skip = &skip
	return f
}

// BatchSize sets the number of documents to return in each batch.
func (f *Find) BatchSize(batchSize int32) *Find {
	f.batchSize = &batchSize
	return f
}

// Collection sets the collection that this command will run against.
func (f *Find) Collection(collection string) *Find {
	f.collection = collection
	return f
}

// Session sets the session for this operation.
func (f *Find) Session(session *session.Client) *Find {
	f.session = session
	return f
}

// ClusterClock sets the cluster clock for this operation.
func (f *Find) ClusterClock(clock *session.ClusterClock) *Find {
	f.clock = clock
	return f
}

// Database sets the database to run this operation against.
func (f *Find) Database(database string) *Find {
	f.database = database
	return f
}

// Deployment sets the deployment to use for this operation.
func (f *Find) Deployment(deployment driver.Deployment) *Find {
	f.deployment = deployment
	return f
}

// ReadPreference sets the read preference used with this operation.
func (f *Find) ReadPreference(readPreference description.ReadPreference) *Find {
	f.readPreference = readPreference
	return f
}

// ServerSelector sets the selector used to retrieve a server.
func (f *Find) ServerSelector(selector driver.ServerSelector) *Find {
	f.selector = selector
	return f
}

package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// ListCollections performs a listCollections operation.
type ListCollections struct {
	filter         bsoncore.Document
	nameOnly       *bool
	session        *session.Client
	clock          *session.ClusterClock
	database       string
	deployment     driver.Deployment
	readPreference description.ReadPreference
	selector       driver.ServerSelector

	result driver.CursorResponse
}

// NewListCollections constructs and returns a new ListCollections.
func NewListCollections(filter bsoncore.Document) *ListCollections {
	return &ListCollections{filter: filter}
}

// Result builds the cursor over this operation's first batch, pinned to
// the server it ran against.
func (lc *ListCollections) Result(opts driver.CursorOptions) (*driver.BatchCursor, error) {
	return driver.NewBatchCursor(lc.result, lc.session, lc.clock, opts)
}

// Execute runs this operation and returns an error if it did not execute successfully.
func (lc *ListCollections) Execute(ctx context.Context) error {
	if lc.deployment == nil {
		return errors.New("operation: ListCollections requires a Deployment")
	}

	op := driver.Operation{
		CommandFn:      lc.command,
		Session:        lc.session,
		Clock:          lc.clock,
		Database:       lc.database,
		Deployment:     lc.deployment,
		ReadPreference: lc.readPreference,
		Selector:       lc.selector,
	}
	op.ProcessResponseFn = func(info driver.ResponseInfo) error {
		var err error
		lc.result, err = driver.NewCursorResponse(info.ServerResponse, driver.ServerFromConnection(info.Connection))
		return err
	}
	return op.Execute(ctx)
}

func (lc *ListCollections) command(dst []byte, _ description.SelectedServer) ([]byte, error) {
	dst = bsoncore.AppendInt32Element(dst, "listCollections", 1)
	if lc.filter != nil {
		dst = bsoncore.AppendDocumentElement(dst, "filter", lc.filter)
	}
	if lc.nameOnly != nil {
		dst = bsoncore.AppendBooleanElement(dst, "nameOnly", *lc.nameOnly)
	}
	return dst, nil
}

// Filter determines what results are returned from listCollections.
func (lc *ListCollections) Filter(filter bsoncore.Document) *ListCollections {
	lc.filter = filter
	return lc
}

// NameOnly specifies whether to only return collection names.
func (lc *ListCollections) NameOnly(nameOnly bool) *ListCollections {
	lc.nameOnly = &nameOnly
	return lc
}

// Session sets the session for this operation.
func (lc *ListCollections) Session(session *session.Client) *ListCollections {
	lc.session = session
	return lc
}

// ClusterClock sets the cluster clock for this operation.
func (lc *ListCollections) ClusterClock(clock *session.ClusterClock) *ListCollections {
	lc.clock = clock
	return lc
}

// Database sets the database to run this operation against.
func (lc *ListCollections) Database(database string) *ListCollections {
	lc.database = database
	return lc
}

// Deployment sets the deployment to use for this operation.
func (lc *ListCollections) Deployment(deployment driver.Deployment) *ListCollections {
	lc.deployment = deployment
	return lc
}

// ReadPreference sets the read preference used with this operation.
func (lc *ListCollections) ReadPreference(readPreference description.ReadPreference) *ListCollections {
	lc.readPreference = readPreference
	return lc
}

// ServerSelector sets the selector used to retrieve a server.
func (lc *ListCollections) ServerSelector(selector driver.ServerSelector) *ListCollections {
	lc.selector = selector
	return lc
}

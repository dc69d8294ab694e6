package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// UpdateResult is the result of an update operation.
type UpdateResult struct {
	N         int32
	NModified int32
	Upserted  []bsoncore.Value
}

// Update performs an update operation.
type Update struct {
	updates    []bsoncore.Document
	ordered    *bool
	collection string
	session    *session.Client
	clock      *session.ClusterClock
	database   string
	deployment driver.Deployment
	retry      driver.RetryMode
	selector   driver.ServerSelector

	result UpdateResult
}

// NewUpdate constructs and returns a new Update. Each update document has
// the shape {q, u, multi, upsert}.
func NewUpdate(updates ...bsoncore.Document) *Update {
	return &Update{updates: updates}
}

// Result returns the result of executing this operation.
func (u *Update) Result() UpdateResult { return u.result }

// Execute runs this operation and returns an error if it did not execute successfully.
func (u *Update) Execute(ctx context.Context) error {
	if u.deployment == nil {
		return errors.New("operation: Update requires a Deployment")
	}

	op := driver.Operation{
		CommandFn: u.command,
		Batches: &driver.Batches{
			Identifier: "updates",
			Documents:  documentsToBytes(u.updates),
		},
		Session:    u.session,
		Clock:      u.clock,
		Database:   u.database,
		Deployment: u.deployment,
		RetryMode:  u.retry,
		Selector:   u.selector,
	}
	op.ProcessResponseFn = func(info driver.ResponseInfo) error {
		elements, err := info.ServerResponse.Elements()
		if err != nil {
			return err
		}
		for _, element := range elements {
			switch element.Key() {
			case "n":
				u.result.N = element.Value().Int32()
			case "nModified":
				u.result.NModified = element.Value().Int32()
			case "upserted":
				vals, err := element.Value().Array().Values()
				if err != nil {
					return err
				}
				u.result.Upserted = vals
			}
		}
		return nil
	}
	return op.Execute(ctx)
}

func (u *Update) command(dst []byte, _ description.SelectedServer) ([]byte, error) {
	dst = bsoncore.AppendStringElement(dst, "update", u.collection)
	if u.ordered != nil {
		dst = bsoncore.AppendBooleanElement(dst, "ordered", *u.ordered)
	}
	return dst, nil
}

// Ordered sets whether the server should stop processing after the first error.
func (u *Update) Ordered(ordered bool) *Update {
	u.ordered = &ordered
	return u
}

// Collection sets the collection that this command will run against.
func (u *Update) Collection(collection string) *Update {
	u.collection = collection
	return u
}

// Session sets the session for this operation.
func (u *Update) Session(session *session.Client) *Update {
	u.session = session
	return u
}

// ClusterClock sets the cluster clock for this operation.
func (u *Update) ClusterClock(clock *session.ClusterClock) *Update {
	u.clock = clock
	return u
}

// Database sets the database to run this operation against.
func (u *Update) Database(database string) *Update {
	u.database = database
	return u
}

// Deployment sets the deployment to use for this operation.
func (u *Update) Deployment(deployment driver.Deployment) *Update {
	u.deployment = deployment
	return u
}

// Retry enables retryable-writes behavior for this operation.
func (u *Update) Retry(retry driver.RetryMode) *Update {
	u.retry = retry
	return u
}

// ServerSelector sets the selector used to retrieve a server.
func (u *Update) ServerSelector(selector driver.ServerSelector) *Update {
	u.selector = selector
	return u
}

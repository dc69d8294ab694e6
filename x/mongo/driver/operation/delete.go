package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// DeleteResult is the result of a delete operation.
type DeleteResult struct {
	N int32
}

// Delete performs a delete operation.
type Delete struct {
	deletes    []bsoncore.Document
	ordered    *bool
	collection string
	session    *session.Client
	clock      *session.ClusterClock
	database   string
	deployment driver.Deployment
	retry      driver.RetryMode
	selector   driver.ServerSelector

	result DeleteResult
}

// NewDelete constructs and returns a new Delete. Each delete document has
// the shape {q, limit}.
func NewDelete(deletes ...bsoncore.Document) *Delete {
	return &Delete{deletes: deletes}
}

// Result returns the result of executing this operation.
func (d *Delete) Result() DeleteResult { return d.result }

// Execute runs this operation and returns an error if it did not execute successfully.
func (d *Delete) Execute(ctx context.Context) error {
	if d.deployment == nil {
		return errors.New("operation: Delete requires a Deployment")
	}

	op := driver.Operation{
		CommandFn: d.command,
		Batches: &driver.Batches{
			Identifier: "deletes",
			Documents:  documentsToBytes(d.deletes),
		},
		Session:    d.session,
		Clock:      d.clock,
		Database:   d.database,
		Deployment: d.deployment,
		RetryMode:  d.retry,
		Selector:   d.selector,
	}
	op.ProcessResponseFn = func(info driver.ResponseInfo) error {
		elements, err := info.ServerResponse.Elements()
		if err != nil {
			return err
		}
		for _, element := range elements {
			if element.Key() == "n" {
				d.result.N = element.Value().Int32()
			}
		}
		return nil
	}
	return op.Execute(ctx)
}

func (d *Delete) command(dst []byte, _ description.SelectedServer) ([]byte, error) {
	dst = bsoncore.AppendStringElement(dst, "delete", d.collection)
	if d.ordered != nil {
		dst = bsoncore.AppendBooleanElement(dst, "ordered", *d.ordered)
	}
	return dst, nil
}

// Ordered sets whether the server should stop processing after the first error.
func (d *Delete) Ordered(ordered bool) *Delete {
	d.ordered = &ordered
	return d
}

// Collection sets the collection that this command will run against.
func (d *Delete) Collection(collection string) *Delete {
	d.collection = collection
	return d
}

// Session sets the session for this operation.
func (d *Delete) Session(session *session.Client) *Delete {
	d.session = session
	return d
}

// ClusterClock sets the cluster clock for this operation.
func (d *Delete) ClusterClock(clock *session.ClusterClock) *Delete {
	d.clock = clock
	return d
}

// Database sets the database to run this operation against.
func (d *Delete) Database(database string) *Delete {
	d.database = database
	return d
}

// Deployment sets the deployment to use for this operation.
func (d *Delete) Deployment(deployment driver.Deployment) *Delete {
	d.deployment = deployment
	return d
}

// Retry enables retryable-writes behavior for this operation.
func (d *Delete) Retry(retry driver.RetryMode) *Delete {
	d.retry = retry
	return d
}

// ServerSelector sets the selector used to retrieve a server.
func (d *Delete) ServerSelector(selector driver.ServerSelector) *Delete {
	d.selector = selector
	return d
}

package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// InsertResult is the result of an insert operation.
type InsertResult struct {
	N int32
}

// Insert performs an insert operation.
type Insert struct {
	documents                []bsoncore.Document
	ordered                  *bool
	bypassDocumentValidation *bool
	collection               string
	session                  *session.Client
	clock                    *session.ClusterClock
	database                 string
	deployment               driver.Deployment
	retry                    driver.RetryMode
	selector                 driver.ServerSelector

	result InsertResult
}

// NewInsert constructs and returns a new Insert.
func NewInsert(documents ...bsoncore.Document) *Insert {
	return &Insert{documents: documents}
}

// Result returns the result of executing this operation.
func (i *Insert) Result() InsertResult { return i.result }

// Execute runs this operation and returns an error if it did not execute successfully.
func (i *Insert) Execute(ctx context.Context) error {
	if i.deployment == nil {
		return errors.New("operation: Insert requires a Deployment")
	}

	op := driver.Operation{
		CommandFn: i.command,
		Batches: &driver.Batches{
			Identifier: "documents",
			Documents:  documentsToBytes(i.documents),
		},
		Session:    i.session,
		Clock:      i.clock,
		Database:   i.database,
		Deployment: i.deployment,
		RetryMode:  i.retry,
		Selector:   i.selector,
	}
	op.ProcessResponseFn = func(info driver.ResponseInfo) error {
		elements, err := info.ServerResponse.Elements()
		if err != nil {
			return err
		}
		for _, element := range elements {
			if element.Key() == "n" {
				i.result.N = element.Value().Int32()
			}
		}
		return nil
	}
	return op.Execute(ctx)
}

func (i *Insert) command(dst []byte, _ description.SelectedServer) ([]byte, error) {
	dst = bsoncore.AppendStringElement(dst, "insert", i.collection)
	if i.ordered != nil {
		dst = bsoncore.AppendBooleanElement(dst, "ordered", *i.ordered)
	}
	if i.bypassDocumentValidation != nil && *i.bypassDocumentValidation {
		dst = bsoncore.AppendBooleanElement(dst, "bypassDocumentValidation", true)
	}
	return dst, nil
}

func documentsToBytes(docs []bsoncore.Document) [][]byte {
	out := make([][]byte, len(docs))
	for idx, d := range docs {
		out[idx] = d
	}
	return out
}

// Ordered sets whether the server should stop processing after the first error.
func (i *Insert) Ordered(ordered bool) *Insert {
	i.ordered = &ordered
	return i
}

// BypassDocumentValidation sets whether document-level validation is bypassed.
func (i *Insert) BypassDocumentValidation(bypass bool) *Insert {
	i.bypassDocumentValidation = &bypass
	return i
}

// Collection sets the collection that this command will run against.
func (i *Insert) Collection(collection string) *Insert {
	i.collection = collection
	return i
}

// Session sets the session for this operation.
func (i *Insert) Session(session *session.Client) *Insert {
	i.session = session
	return i
}

// ClusterClock sets the cluster clock for this operation.
func (i *Insert) ClusterClock(clock *session.ClusterClock) *Insert {
	i.clock = clock
	return i
}

// Database sets the database to run this operation against.
func (i *Insert) Database(database string) *Insert {
	i.database = database
	return i
}

// Deployment sets the deployment to use for this operation.
func (i *Insert) Deployment(deployment driver.Deployment) *Insert {
	i.deployment = deployment
	return i
}

// Retry enables retryable-writes behavior for this operation.
func (i *Insert) Retry(retry driver.RetryMode) *Insert {
	i.retry = retry
	return i
}

// ServerSelector sets the selector used to retrieve a server.
func (i *Insert) ServerSelector(selector driver.ServerSelector) *Insert {
	i.selector = selector
	return i
}

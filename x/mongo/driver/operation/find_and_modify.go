package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// FindAndModify performs a findAndModify operation.
type FindAndModify struct {
	query      bsoncore.Document
	sort       bsoncore.Document
	update     bsoncore.Document
	projection bsoncore.Document
	remove     *bool
	upsert     *bool
	newResult  *bool
	collection string
	session    *session.Client
	clock      *session.ClusterClock
	database   string
	deployment driver.Deployment
	retry      driver.RetryMode
	selector   driver.ServerSelector

	result bsoncore.Document
}

// NewFindAndModify constructs and returns a new FindAndModify.
func NewFindAndModify(query bsoncore.Document) *FindAndModify {
	return &FindAndModify{query: query}
}

// Result returns the matched-and-modified document, or nil if nothing matched.
func (fam *FindAndModify) Result() bsoncore.Document { return fam.result }

// Execute runs this operation and returns an error if it did not execute successfully.
func (fam *FindAndModify) Execute(ctx context.Context) error {
	if fam.deployment == nil {
		return errors.New("operation: FindAndModify requires a Deployment")
	}

	op := driver.Operation{
		CommandFn:  fam.command,
		Session:    fam.session,
		Clock:      fam.clock,
		Database:   fam.database,
		Deployment: fam.deployment,
		RetryMode:  fam.retry,
		Selector:   fam.selector,
	}
	op.ProcessResponseFn = func(info driver.ResponseInfo) error {
		v, ok := info.ServerResponse.Lookup("value")
		if !ok {
			return nil
		}
		fam.result = v.Document()
		return nil
	}
	return op.Execute(ctx)
}

func (fam *FindAndModify) command(dst []byte, _ description.SelectedServer) ([]byte, error) {
	dst = bsoncore.AppendStringElement(dst, "findAndModify", fam.collection)
	dst = bsoncore.AppendDocumentElement(dst, "query", fam.query)
	if fam.sort != nil {
		dst = bsoncore.AppendDocumentElement(dst, "sort", fam.sort)
	}
	if fam.update != nil {
		dst = bsoncore.AppendDocumentElement(dst, "update", fam.update)
	}
	if fam.projection != nil {
		dst = bsoncore.AppendDocumentElement(dst, "fields", fam.projection)
	}
	if fam.remove != nil && *fam.remove {
		dst = bsoncore.AppendBooleanElement(dst, "remove", true)
	}
	if fam.upsert != nil {
		dst = bsoncore.AppendBooleanElement(dst, "upsert", *fam.upsert)
	}
	if fam.newResult != nil {
		dst = bsoncore.AppendBooleanElement(dst, "new", *fam.newResult)
	}
	return dst, nil
}

// Sort sets the sort order used to pick which document to modify among matches.
func (fam *FindAndModify) Sort(sort bsoncore.Document) *FindAndModify {
	fam.sort = sort
	return fam
}

// Update sets the modification (or replacement) to apply to the matched document.
func (fam *FindAndModify) Update(update bsoncore.Document) *FindAndModify {
	fam.update = update
	return fam
}

// Projection limits the fields returned in the result document.
func (fam *FindAndModify) Projection(projection bsoncore.Document) *FindAndModify {
	fam.projection = projection
	return fam
}

// Remove marks this as a findAndModify that deletes the matched document.
func (fam *FindAndModify) Remove(remove bool) *FindAndModify {
	fam.remove = &remove
	return fam
}

// Upsert sets whether a new document is inserted if nothing matches.
func (fam *FindAndModify) Upsert(upsert bool) *FindAndModify {
	fam.upsert = &upsert
	return fam
}

// NewResult sets whether the post-modification document is returned instead
// of the pre-modification one.
func (fam *FindAndModify) NewResult(newResult bool) *FindAndModify {
	fam.newResult = &newResult
	return fam
}

// Collection sets the collection that this command will run against.
func (fam *FindAndModify) Collection(collection string) *FindAndModify {
	fam.collection = collection
	return fam
}

// Session sets the session for this operation.
func (fam *FindAndModify) Session(session *session.Client) *FindAndModify {
	fam.session = session
	return fam
}

// ClusterClock sets the cluster clock for this operation.
func (fam *FindAndModify) ClusterClock(clock *session.ClusterClock) *FindAndModify {
	fam.clock = clock
	return fam
}

// Database sets the database to run this operation against.
func (fam *FindAndModify) Database(database string) *FindAndModify {
	fam.database = database
	return fam
}

// Deployment sets the deployment to use for this operation.
func (fam *FindAndModify) Deployment(deployment driver.Deployment) *FindAndModify {
	fam.deployment = deployment
	return fam
}

// Retry enables retryable-writes behavior for this operation.
func (fam *FindAndModify) Retry(retry driver.RetryMode) *FindAndModify {
	fam.retry = retry
	return fam
}

// ServerSelector sets the selector used to retrieve a server.
func (fam *FindAndModify) ServerSelector(selector driver.ServerSelector) *FindAndModify {
	fam.selector = selector
	return fam
}

package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// AbortTransaction performs an abortTransaction operation.
type AbortTransaction struct {
	session    *session.Client
	clock      *session.ClusterClock
	database   string
	deployment driver.Deployment
	retry      driver.RetryMode
	selector   driver.ServerSelector
}

// NewAbortTransaction constructs and returns a new AbortTransaction.
func NewAbortTransaction() *AbortTransaction {
	return &AbortTransaction{}
}

// Execute runs this operation and returns an error if it did not execute successfully.
func (at *AbortTransaction) Execute(ctx context.Context) error {
	if at.deployment == nil {
		return errors.New("operation: AbortTransaction requires a Deployment")
	}
	if at.session == nil || !at.session.TransactionInProgress() {
		return errors.New("operation: AbortTransaction requires an in-progress transaction")
	}

	op := driver.Operation{
		CommandFn:  at.command,
		Session:    at.session,
		Clock:      at.clock,
		Database:   at.database,
		Deployment: at.deployment,
		RetryMode:  at.retry,
		Selector:   at.selector,
	}
	// abortTransaction is best-effort: a failure here still ends the
	// session's view of the transaction.
	err := op.Execute(ctx)
	at.session.AbortTransaction()
	return err
}

func (at *AbortTransaction) command(dst []byte, _ description.SelectedServer) ([]byte, error) {
	dst = bsoncore.AppendInt32Element(dst, "abortTransaction", 1)
	return dst, nil
}

// Session sets the session for this operation.
func (at *AbortTransaction) Session(session *session.Client) *AbortTransaction {
	at.session = session
	return at
}

// ClusterClock sets the cluster clock for this operation.
func (at *AbortTransaction) ClusterClock(clock *session.ClusterClock) *AbortTransaction {
	at.clock = clock
	return at
}

// Database sets the database to run this operation against.
func (at *AbortTransaction) Database(database string) *AbortTransaction {
	at.database = database
	return at
}

// Deployment sets the deployment to use for this operation.
func (at *AbortTransaction) Deployment(deployment driver.Deployment) *AbortTransaction {
	at.deployment = deployment
	return at
}

// Retry enables retryable-writes behavior for this operation.
func (at *AbortTransaction) Retry(retry driver.RetryMode) *AbortTransaction {
	at.retry = retry
	return at
}

// ServerSelector sets the selector used to retrieve a server.
func (at *AbortTransaction) ServerSelector(selector driver.ServerSelector) *AbortTransaction {
	at.selector = selector
	return at
}

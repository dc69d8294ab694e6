package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// CommitTransaction performs a commitTransaction operation.
type CommitTransaction struct {
	session    *session.Client
	clock      *session.ClusterClock
	database   string
	deployment driver.Deployment
	retry      driver.RetryMode
	selector   driver.ServerSelector
}

// NewCommitTransaction constructs and returns a new CommitTransaction.
func NewCommitTransaction() *CommitTransaction {
	return &CommitTransaction{}
}

// Execute runs this operation and returns an error if it did not execute successfully.
func (ct *CommitTransaction) Execute(ctx context.Context) error {
	if ct.deployment == nil {
		return errors.New("operation: CommitTransaction requires a Deployment")
	}
	if ct.session == nil || !ct.session.TransactionInProgress() {
		return errors.New("operation: CommitTransaction requires an in-progress transaction")
	}

	op := driver.Operation{
		CommandFn:  ct.command,
		Session:    ct.session,
		Clock:      ct.clock,
		Database:   ct.database,
		Deployment: ct.deployment,
		RetryMode:  ct.retry,
		Selector:   ct.selector,
	}
	if err := op.Execute(ctx); err != nil {
		return err
	}
	ct.session.CommitTransaction()
	return nil
}

func (ct *CommitTransaction) command(dst []byte, _ description.SelectedServer) ([]byte, error) {
	dst = bsoncore.AppendInt32Element(dst, "commitTransaction", 1)
	return dst, nil
}

// Session sets the session for this operation.
func (ct *CommitTransaction) Session(session *session.Client) *CommitTransaction {
	ct.session = session
	return ct
}

// ClusterClock sets the cluster clock for this operation.
func (ct *CommitTransaction) ClusterClock(clock *session.ClusterClock) *CommitTransaction {
	ct.clock = clock
	return ct
}

// Database sets the database to run this operation against.
func (ct *CommitTransaction) Database(database string) *CommitTransaction {
	ct.database = database
	return ct
}

// Deployment sets the deployment to use for this operation.
func (ct *CommitTransaction) Deployment(deployment driver.Deployment) *CommitTransaction {
	ct.deployment = deployment
	return ct
}

// Retry enables retryable-writes behavior for this operation; commitTransaction
// is itself always considered retryable by the server.
func (ct *CommitTransaction) Retry(retry driver.RetryMode) *CommitTransaction {
	ct.retry = retry
	return ct
}

// ServerSelector sets the selector used to retrieve a server.
func (ct *CommitTransaction) ServerSelector(selector driver.ServerSelector) *CommitTransaction {
	ct.selector = selector
	return ct
}

package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// DropDatabase performs a dropDatabase operation.
type DropDatabase struct {
	session    *session.Client
	clock      *session.ClusterClock
	database   string
	deployment driver.Deployment
	selector   driver.ServerSelector
	result     DropDatabaseResult
}

type DropDatabaseResult struct {
	Dropped string
}

func buildDropDatabaseResult(response bsoncore.Document) (DropDatabaseResult, error) {
	elements, err := response.Elements()
	if err != nil {
		return DropDatabaseResult{}, err
	}
	ddr := DropDatabaseResult{}
	for _, element := range elements {
		if element.Key() == "dropped" {
			ddr.Dropped = element.Value().StringValue()
		}
	}
	return ddr, nil
}

// NewDropDatabase constructs and returns a new DropDatabase.
func NewDropDatabase() *DropDatabase {
	return &DropDatabase{}
}

// Result returns the result of executing this operation.
func (dd *DropDatabase) Result() DropDatabaseResult { return dd.result }

// Execute runs this operation and returns an error if it did not execute successfully.
func (dd *DropDatabase) Execute(ctx context.Context) error {
	if dd.deployment == nil {
		return errors.New("operation: DropDatabase requires a Deployment")
	}

	op := driver.Operation{
		CommandFn:  dd.command,
		Session:    dd.session,
		Clock:      dd.clock,
		Database:   dd.database,
		Deployment: dd.deployment,
		Selector:   dd.selector,
	}
	op.ProcessResponseFn = func(info driver.ResponseInfo) error {
		var err error
		dd.result, err = buildDropDatabaseResult(info.ServerResponse)
		return err
	}
	return op.Execute(ctx)
}

func (dd *DropDatabase) command(dst []byte, _ description.SelectedServer) ([]byte, error) {
	dst = bsoncore.AppendInt32Element(dst, "dropDatabase", 1)
	return dst, nil
}

// Session sets the session for this operation.
func (dd *DropDatabase) Session(session *session.Client) *DropDatabase {
	dd.session = session
	return dd
}

// ClusterClock sets the cluster clock for this operation.
func (dd *DropDatabase) ClusterClock(clock *session.ClusterClock) *DropDatabase {
	dd.clock = clock
	return dd
}

// Database sets the database to run this operation against.
func (dd *DropDatabase) Database(database string) *DropDatabase {
	dd.database = database
	return dd
}

// Deployment sets the deployment to use for this operation.
func (dd *DropDatabase) Deployment(deployment driver.Deployment) *DropDatabase {
	dd.deployment = deployment
	return dd
}

// ServerSelector sets the selector used to retrieve a server.
func (dd *DropDatabase) ServerSelector(selector driver.ServerSelector) *DropDatabase {
	dd.selector = selector
	return dd
}

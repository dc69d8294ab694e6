package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// RunCommand runs an arbitrary, already-encoded command document, the
// escape hatch every typed operation in this package could instead have
// been built on top of.
type RunCommand struct {
	command        bsoncore.Document
	session        *session.Client
	clock          *session.ClusterClock
	database       string
	deployment     driver.Deployment
	readPreference description.ReadPreference
	selector       driver.ServerSelector

	result driver.CursorResponse
	raw    bsoncore.Document
}

// NewRunCommand constructs and returns a new RunCommand. cmd must have
// exactly one top-level element naming the command, e.g. {ping: 1}.
func NewRunCommand(cmd bsoncore.Document) *RunCommand {
	return &RunCommand{command: cmd}
}

// Result returns the raw command reply.
func (rc *RunCommand) Result() bsoncore.Document { return rc.raw }

// Cursor builds a cursor over the reply's "cursor" field, for commands like
// aggregate/listIndexes issued through the generic escape hatch.
func (rc *RunCommand) Cursor(opts driver.CursorOptions) (*driver.BatchCursor, error) {
	return driver.NewBatchCursor(rc.result, rc.session, rc.clock, opts)
}

// Execute runs this operation and returns an error if it did not execute successfully.
func (rc *RunCommand) Execute(ctx context.Context) error {
	if rc.deployment == nil {
		return errors.New("operation: RunCommand requires a Deployment")
	}

	op := driver.Operation{
		CommandFn: func(dst []byte, _ description.SelectedServer) ([]byte, error) {
			elements, err := rc.command.Elements()
			if err != nil {
				return dst, err
			}
			for _, element := range elements {
				dst = append(dst, element...)
			}
			return dst, nil
		},
		Session:        rc.session,
		Clock:          rc.clock,
		Database:       rc.database,
		Deployment:     rc.deployment,
		ReadPreference: rc.readPreference,
		Selector:       rc.selector,
	}
	op.ProcessResponseFn = func(info driver.ResponseInfo) error {
		rc.raw = info.ServerResponse
		if _, ok := rc.raw.Lookup("cursor"); ok {
			var err error
			rc.result, err = driver.NewCursorResponse(rc.raw, driver.ServerFromConnection(info.Connection))
			return err
		}
		return nil
	}
	return op.Execute(ctx)
}

// Session sets the session for this operation.
func (rc *RunCommand) Session(session *session.Client) *RunCommand {
	rc.session = session
	return rc
}

// ClusterClock sets the cluster clock for this operation.
func (rc *RunCommand) ClusterClock(clock *session.ClusterClock) *RunCommand {
	rc.clock = clock
	return rc
}

// Database sets the database to run this operation against.
func (rc *RunCommand) Database(database string) *RunCommand {
	rc.database = database
	return rc
}

// Deployment sets the deployment to use for this operation.
func (rc *RunCommand) Deployment(deployment driver.Deployment) *RunCommand {
	rc.deployment = deployment
	return rc
}

// ReadPreference sets the read preference used with this operation.
func (rc *RunCommand) ReadPreference(readPreference description.ReadPreference) *RunCommand {
	rc.readPreference = readPreference
	return rc
}

// ServerSelector sets the selector used to retrieve a server.
func (rc *RunCommand) ServerSelector(selector driver.ServerSelector) *RunCommand {
	rc.selector = selector
	return rc
}

package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/bson/bsontype"
	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
	"github.com/brinkdb/mongowire/x/mongo/driver/session"
)

// CountDocuments runs a count through an aggregate pipeline ($match + $count),
// the server-recommended replacement for the deprecated count command.
type CountDocuments struct {
	pipeline   bsoncore.Array
	collection string
	session    *session.Client
	clock      *session.ClusterClock
	database   string
	deployment driver.Deployment
	readPreference description.ReadPreference
	selector   driver.ServerSelector

	result int64
}

// NewCountDocuments constructs and returns a new CountDocuments. pipeline
// is a full aggregation pipeline array, conventionally ending in a $match
// stage followed by a $count stage.
func NewCountDocuments(pipeline bsoncore.Array) *CountDocuments {
	return &CountDocuments{pipeline: pipeline}
}

// Result returns the computed count.
func (cd *CountDocuments) Result() int64 { return cd.result }

// Execute runs this operation and returns an error if it did not execute successfully.
func (cd *CountDocuments) Execute(ctx context.Context) error {
	if cd.deployment == nil {
		return errors.New("operation: CountDocuments requires a Deployment")
	}

	op := driver.Operation{
		CommandFn:      cd.command,
		Session:        cd.session,
		Clock:          cd.clock,
		Database:       cd.database,
		Deployment:     cd.deployment,
		ReadPreference: cd.readPreference,
		Selector:       cd.selector,
	}
	op.ProcessResponseFn = func(info driver.ResponseInfo) error {
		cursorVal, ok := info.ServerResponse.Lookup("cursor")
		if !ok {
			return errors.New("operation: countDocuments response missing cursor field")
		}
		batch, ok := cursorVal.Document().Lookup("firstBatch")
		if !ok {
			return nil
		}
		vals, err := batch.Array().Values()
		if err != nil {
			return err
		}
		if len(vals) == 0 {
			cd.result = 0
			return nil
		}
		v, ok := vals[0].Document().Lookup("n")
		if ok {
			if v.Type == bsontype.Int32 {
				cd.result = int64(v.Int32())
			} else {
				cd.result = v.Int64()
			}
		}
		return nil
	}
	return op.Execute(ctx)
}

func (cd *CountDocuments) command(dst []byte, _ description.SelectedServer) ([]byte, error) {
	dst = bsoncore.AppendStringElement(dst, "aggregate", cd.collection)
	dst = bsoncore.AppendArrayElement(dst, "pipeline", cd.pipeline)
	idx, cursorDst := bsoncore.AppendDocumentElementStart(dst, "cursor")
	dst = bsoncore.AppendDocumentEnd(cursorDst, idx)
	return dst, nil
}

// Collection sets the collection that this command will run against.
func (cd *CountDocuments) Collection(collection string) *CountDocuments {
	cd.collection = collection
	return cd
}

// Session sets the session for this operation.
func (cd *CountDocuments) Session(session *session.Client) *CountDocuments {
	cd.session = session
	return cd
}

// ClusterClock sets the cluster clock for this operation.
func (cd *CountDocuments) ClusterClock(clock *session.ClusterClock) *CountDocuments {
	cd.clock = clock
	return cd
}

// Database sets the database to run this operation against.
func (cd *CountDocuments) Database(database string) *CountDocuments {
	cd.database = database
	return cd
}

// Deployment sets the deployment to use for this operation.
func (cd *CountDocuments) Deployment(deployment driver.Deployment) *CountDocuments {
	cd.deployment = deployment
	return cd
}

// ReadPreference sets the read preference used with this operation.
func (cd *CountDocuments) ReadPreference(readPreference description.ReadPreference) *CountDocuments {
	cd.readPreference = readPreference
	return cd
}

// ServerSelector sets the selector used to retrieve a server.
func (cd *CountDocuments) ServerSelector(selector driver.ServerSelector) *CountDocuments {
	cd.selector = selector
	return cd
}

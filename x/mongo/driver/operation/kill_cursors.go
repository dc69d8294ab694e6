package operation

import (
	"context"
	"errors"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
	"github.com/brinkdb/mongowire/x/mongo/driver"
	"github.com/brinkdb/mongowire/x/mongo/driver/description"
)

// KillCursors performs a standalone killCursors operation, used when a
// caller discards a cursor without draining it (e.g. Cursor.Close never
// being called) and batches cleanup for more than one ID at once.
type KillCursors struct {
	ids        []int64
	collection string
	database   string
	deployment driver.Deployment
	selector   driver.ServerSelector
}

// NewKillCursors constructs and returns a new KillCursors.
func NewKillCursors(ids ...int64) *KillCursors {
	return &KillCursors{ids: ids}
}

// Execute runs this operation and returns an error if it did not execute successfully.
func (kc *KillCursors) Execute(ctx context.Context) error {
	if kc.deployment == nil {
		return errors.New("operation: KillCursors requires a Deployment")
	}
	if len(kc.ids) == 0 {
		return nil
	}

	op := driver.Operation{
		CommandFn:  kc.command,
		Database:   kc.database,
		Deployment: kc.deployment,
		Selector:   kc.selector,
	}
	return op.Execute(ctx)
}

func (kc *KillCursors) command(dst []byte, _ description.SelectedServer) ([]byte, error) {
	dst = bsoncore.AppendStringElement(dst, "killCursors", kc.collection)
	idx, arr := bsoncore.AppendArrayElementStart(dst, "cursors")
	for i, id := range kc.ids {
		arr = bsoncore.AppendInt64Element(arr, itoa(i), id)
	}
	dst = bsoncore.AppendArrayEnd(arr, idx)
	return dst, nil
}

// Collection sets the collection that this command will run against.
func (kc *KillCursors) Collection(collection string) *KillCursors {
	kc.collection = collection
	return kc
}

// Database sets the database to run this operation against.
func (kc *KillCursors) Database(database string) *KillCursors {
	kc.database = database
	return kc
}

// Deployment sets the deployment to use for this operation.
func (kc *KillCursors) Deployment(deployment driver.Deployment) *KillCursors {
	kc.deployment = deployment
	return kc
}

// ServerSelector sets the selector used to retrieve a server.
func (kc *KillCursors) ServerSelector(selector driver.ServerSelector) *KillCursors {
	kc.selector = selector
	return kc
}

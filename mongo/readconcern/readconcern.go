// Package readconcern defines the read concern levels a client can request,
// controlling the consistency and isolation properties of data read back
// from a replica set.
package readconcern

import "github.com/brinkdb/mongowire/x/bsonx/bsoncore"

// ReadConcern specifies the level of isolation for read operations.
type ReadConcern struct {
	level string
}

// Local requests that the server return the instance's most recent data
// without guaranteeing it has been acknowledged by a majority of the set.
func Local() *ReadConcern { return &ReadConcern{level: "local"} }

// Available is like Local but, for a sharded cluster, does not wait for
// orphaned documents to be filtered out.
func Available() *ReadConcern { return &ReadConcern{level: "available"} }

// Majority requests data that has been acknowledged by a majority of the
// replica set members.
func Majority() *ReadConcern { return &ReadConcern{level: "majority"} }

// Linearizable guarantees the read reflects all successful majority-
// acknowledged writes that completed before the read began.
func Linearizable() *ReadConcern { return &ReadConcern{level: "linearizable"} }

// Snapshot requests data from a snapshot of majority-committed data,
// only valid inside a multi-document transaction.
func Snapshot() *ReadConcern { return &ReadConcern{level: "snapshot"} }

// Level returns the concern's level string, e.g. "majority".
func (rc *ReadConcern) Level() string {
	if rc == nil {
		return ""
	}
	return rc.level
}

// AppendToCommand appends this concern as a "readConcern" subdocument onto
// an in-progress command document, a no-op for a nil or empty concern.
func AppendToCommand(dst []byte, rc *ReadConcern) []byte {
	if rc == nil || rc.level == "" {
		return dst
	}
	idx, rcDst := bsoncore.AppendDocumentElementStart(dst, "readConcern")
	rcDst = bsoncore.AppendStringElement(rcDst, "level", rc.level)
	return bsoncore.AppendDocumentEnd(rcDst, idx)
}

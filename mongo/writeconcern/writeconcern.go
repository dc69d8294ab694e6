// Package writeconcern defines the acknowledgment level a client requests
// for write operations: how many replica set members must apply a write
// before the server reports it as successful.
package writeconcern

import (
	"errors"
	"time"

	"github.com/brinkdb/mongowire/x/bsonx/bsoncore"
)

// WriteConcern describes the acknowledgment requested from the server.
type WriteConcern struct {
	w        interface{} // nil, int, or string (e.g. "majority")
	journal  *bool
	wtimeout time.Duration
}

// Majority requests acknowledgment from a majority of voting members.
func Majority() *WriteConcern { return &WriteConcern{w: "majority"} }

// W requests acknowledgment from n members (n=0 requests no acknowledgment).
func W(n int) *WriteConcern { return &WriteConcern{w: n} }

// Custom requests acknowledgment from members matching a custom write
// concern tag, as configured on the replica set.
func Custom(tag string) *WriteConcern { return &WriteConcern{w: tag} }

// WithJournal reports acknowledgment only once the write is written to the
// on-disk journal.
func (wc *WriteConcern) WithJournal(j bool) *WriteConcern {
	if wc == nil {
		wc = &WriteConcern{}
	}
	cp := *wc
	cp.journal = &j
	return &cp
}

// WithTimeout bounds how long the server waits for acknowledgment before
// returning a write-concern error (the write itself is not rolled back).
func (wc *WriteConcern) WithTimeout(d time.Duration) *WriteConcern {
	if wc == nil {
		wc = &WriteConcern{}
	}
	cp := *wc
	cp.wtimeout = d
	return &cp
}

// ErrNegativeW is returned when validating a WriteConcern with w < 0.
var ErrNegativeW = errors.New("writeconcern: w cannot be negative")

// Validate reports whether wc is internally consistent.
func (wc *WriteConcern) Validate() error {
	if wc == nil {
		return nil
	}
	if n, ok := wc.w.(int); ok && n < 0 {
		return ErrNegativeW
	}
	return nil
}

// Acknowledged reports whether wc requests any acknowledgment at all.
func (wc *WriteConcern) Acknowledged() bool {
	if wc == nil {
		return true
	}
	if n, ok := wc.w.(int); ok {
		return n != 0
	}
	return true
}

// AppendToCommand appends this concern as a "writeConcern" subdocument onto
// an in-progress command document, a no-op for a nil concern.
func AppendToCommand(dst []byte, wc *WriteConcern) []byte {
	if wc == nil {
		return dst
	}
	idx, wcDst := bsoncore.AppendDocumentElementStart(dst, "writeConcern")
	switch w := wc.w.(type) {
	case int:
		wcDst = bsoncore.AppendInt32Element(wcDst, "w", int32(w))
	case string:
		wcDst = bsoncore.AppendStringElement(wcDst, "w", w)
	}
	if wc.journal != nil {
		wcDst = bsoncore.AppendBooleanElement(wcDst, "j", *wc.journal)
	}
	if wc.wtimeout > 0 {
		wcDst = bsoncore.AppendInt64Element(wcDst, "wtimeout", wc.wtimeout.Milliseconds())
	}
	return bsoncore.AppendDocumentEnd(wcDst, idx)
}

// Package primitive holds the Go representations of BSON types that don't
// map onto a native Go type: ObjectID, Decimal128, DateTime, Regex,
// Timestamp, Binary, JavaScript code, DBPointer, Symbol, and the MinKey/
// MaxKey/Undefined/Null sentinels.
package primitive

import (
	"fmt"
	"time"
)

// minBSONDateTime and maxBSONDateTime are the Unix millisecond bounds the
// decoder clamps an out-of-range UTC datetime to, corresponding to
// -9999-01-01T00:00:00Z and 9999-12-31T23:59:59Z as the driver defines them.
const (
	minBSONDateTime int64 = -377705116800000
	maxBSONDateTime int64 = 253402300799000
)

// DateTime represents the BSON UTC datetime type: signed milliseconds
// since the Unix epoch.
type DateTime int64

// NewDateTimeFromTime converts a time.Time to a DateTime, truncating to
// millisecond resolution.
func NewDateTimeFromTime(t time.Time) DateTime {
	return DateTime(t.Unix()*1000 + int64(t.Nanosecond())/1_000_000)
}

// Time converts d back to a time.Time in UTC.
func (d DateTime) Time() time.Time {
	return time.Unix(int64(d)/1000, int64(d)%1000*1_000_000).UTC()
}

// ClampDateTime clamps ms to the representable range, per the decode
// contract in the wire spec.
func ClampDateTime(ms int64) int64 {
	if ms < minBSONDateTime {
		return minBSONDateTime
	}
	if ms > maxBSONDateTime {
		return maxBSONDateTime
	}
	return ms
}

// Regex represents a BSON regular expression value: a pattern plus option
// flag characters (e.g. "ims").
type Regex struct {
	Pattern string
	Options string
}

func (r Regex) String() string {
	return fmt.Sprintf("/%s/%s", r.Pattern, r.Options)
}

// Equal reports whether r and r2 have the same pattern and options.
func (r Regex) Equal(r2 Regex) bool {
	return r.Pattern == r2.Pattern && r.Options == r2.Options
}

// Timestamp represents the BSON internal timestamp type: a monotonic
// ordinal paired with a seconds-since-epoch value, used internally by
// replication (oplog entries, $clusterTime).
type Timestamp struct {
	T uint32
	I uint32
}

// CompareTimestamp returns -1, 0, or 1 if t1 is less than, equal to, or
// greater than t2, comparing seconds first and then the ordinal — the
// ordering $clusterTime monotonicity relies on.
func CompareTimestamp(t1, t2 Timestamp) int {
	switch {
	case t1.T < t2.T:
		return -1
	case t1.T > t2.T:
		return 1
	case t1.I < t2.I:
		return -1
	case t1.I > t2.I:
		return 1
	default:
		return 0
	}
}

// Binary represents a BSON binary value: a one-byte subtype and the raw
// payload.
type Binary struct {
	Subtype byte
	Data    []byte
}

// Equal reports whether b and b2 have the same subtype and bytes.
func (b Binary) Equal(b2 Binary) bool {
	if b.Subtype != b2.Subtype || len(b.Data) != len(b2.Data) {
		return false
	}
	for i := range b.Data {
		if b.Data[i] != b2.Data[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether b is the zero Binary.
func (b Binary) IsZero() bool {
	return b.Subtype == 0 && len(b.Data) == 0
}

// Undefined represents the BSON undefined type. It is decode-only; the
// codec never produces it on encode.
type Undefined struct{}

// Null represents the BSON null type.
type Null struct{}

// MinKey represents the BSON min-key type, which compares less than any
// other BSON value.
type MinKey struct{}

// MaxKey represents the BSON max-key type, which compares greater than any
// other BSON value.
type MaxKey struct{}

// JavaScript represents the BSON JavaScript code type (without scope).
type JavaScript string

// Symbol represents the BSON symbol type. The decoder always converts it
// to a Go string; this type exists only so the encoder can round-trip a
// document that a caller explicitly tagged as symbol-typed.
type Symbol string

// CodeWithScope represents the BSON JavaScript-code-with-scope type: code
// plus the variable bindings document it closed over.
type CodeWithScope struct {
	Code  JavaScript
	Scope interface{}
}

// DBPointer represents the (deprecated, decode-only) BSON DBPointer type.
type DBPointer struct {
	DB      string
	Pointer ObjectID
}

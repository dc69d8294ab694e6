package primitive

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// ObjectID is the 12-byte BSON identifier: 4-byte big-endian seconds since
// the Unix epoch, 5 bytes of per-process randomness, and a 3-byte counter
// that is unique within a (process, second) pair.
type ObjectID [12]byte

// NilObjectID is the zero-value ObjectID.
var NilObjectID ObjectID

var processUnique = readProcessUnique()
var objectIDCounter = readRandomUint32()

func readProcessUnique() [5]byte {
	var b [5]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic(fmt.Errorf("cannot initialize ObjectID process-unique bytes: %w", err))
	}
	return b
}

func readRandomUint32() uint32 {
	var b [4]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic(fmt.Errorf("cannot initialize ObjectID counter: %w", err))
	}
	return binary.BigEndian.Uint32(b[:]) & 0x00FFFFFF
}

// NewObjectID generates a new ObjectID using the current time, this
// process's random component, and an atomically incremented counter. It is
// safe for concurrent use and never returns the same value twice.
func NewObjectID() ObjectID {
	return NewObjectIDFromTimestamp(time.Now())
}

// NewObjectIDFromTimestamp generates a new ObjectID whose embedded
// timestamp is ts, truncated to one-second resolution.
func NewObjectIDFromTimestamp(ts time.Time) ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(ts.Unix()))
	copy(id[4:9], processUnique[:])
	c := atomic.AddUint32(&objectIDCounter, 1) & 0x00FFFFFF
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)
	return id
}

// Timestamp extracts the embedded creation time, truncated to seconds.
func (id ObjectID) Timestamp() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(id[0:4])), 0).UTC()
}

// IsZero reports whether id is the NilObjectID.
func (id ObjectID) IsZero() bool {
	return id == NilObjectID
}

const hexChars = "0123456789abcdef"

// Hex encodes id as a 24 character lower-case hex string, one nibble at a
// time via a precomputed table so the cost per character is constant.
func (id ObjectID) Hex() string {
	var buf [24]byte
	for i, b := range id {
		buf[i*2] = hexChars[b>>4]
		buf[i*2+1] = hexChars[b&0x0F]
	}
	return string(buf[:])
}

// String implements fmt.Stringer as ObjectID("<hex>"), matching the
// teacher's debug representation.
func (id ObjectID) String() string {
	return "ObjectID(\"" + id.Hex() + "\")"
}

// MarshalText implements encoding.TextMarshaler.
func (id ObjectID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ObjectID) UnmarshalText(b []byte) error {
	oid, err := ObjectIDFromHex(string(b))
	if err != nil {
		return err
	}
	*id = oid
	return nil
}

// ErrInvalidHex is returned by ObjectIDFromHex when the input isn't a
// 24-character hex string.
var ErrInvalidHex = fmt.Errorf("the provided hex string is not a valid ObjectID")

// ObjectIDFromHex parses s, accepting both upper and lower case hex
// characters, and returns the corresponding ObjectID.
func ObjectIDFromHex(s string) (ObjectID, error) {
	if len(s) != 24 {
		return NilObjectID, ErrInvalidHex
	}
	var id ObjectID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return NilObjectID, ErrInvalidHex
	}
	return id, nil
}

// IsValidObjectID reports whether s can be parsed by ObjectIDFromHex.
func IsValidObjectID(s string) bool {
	_, err := ObjectIDFromHex(s)
	return err == nil
}

package bsoncore

import "fmt"

// InsufficientBytesError is returned when there aren't enough bytes
// remaining in a buffer to read a length-prefixed or fixed-width value.
type InsufficientBytesError struct {
	Src      []byte
	Remaining []byte
}

func (ibe InsufficientBytesError) Error() string {
	return "too few bytes to read the next element"
}

// NewInsufficientBytesError constructs an InsufficientBytesError.
func NewInsufficientBytesError(src, remaining []byte) InsufficientBytesError {
	return InsufficientBytesError{Src: src, Remaining: remaining}
}

// ErrMissingNull is returned when a document or array's trailing NUL byte
// is absent or doesn't appear at the length-prescribed offset.
var ErrMissingNull = fmt.Errorf("document or array is missing the trailing null byte")

// LengthError is returned when a length prefix disagrees with the number
// of bytes actually available.
type LengthError struct {
	Source   string
	Length   int
	Received int
}

func (le LengthError) Error() string {
	return fmt.Sprintf("length read for %s was %d but only %d bytes available", le.Source, le.Length, le.Received)
}

func lengthError(source string, length, received int) error {
	return LengthError{Source: source, Length: length, Received: received}
}

// ErrNilReader is returned when a reader-consuming function receives nil.
var ErrNilReader = fmt.Errorf("cannot read from a nil reader")

package bsoncore

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/brinkdb/mongowire/bson/bsontype"
)

// ReadLength reads a little-endian int32 length prefix from the front of
// src, returning the value, the remaining bytes, and whether enough bytes
// were present.
func ReadLength(src []byte) (int32, []byte, bool) {
	return ReadInt32(src)
}

// ReadInt32 reads a little-endian int32 from the front of src.
func ReadInt32(src []byte) (int32, []byte, bool) {
	if len(src) < 4 {
		return 0, src, false
	}
	return int32(binary.LittleEndian.Uint32(src)), src[4:], true
}

// ReadInt64 reads a little-endian int64 from the front of src.
func ReadInt64(src []byte) (int64, []byte, bool) {
	if len(src) < 8 {
		return 0, src, false
	}
	return int64(binary.LittleEndian.Uint64(src)), src[8:], true
}

// ReadUint32 reads a little-endian uint32 from the front of src.
func ReadUint32(src []byte) (uint32, []byte, bool) {
	if len(src) < 4 {
		return 0, src, false
	}
	return binary.LittleEndian.Uint32(src), src[4:], true
}

// ReadUint64 reads a little-endian uint64 from the front of src.
func ReadUint64(src []byte) (uint64, []byte, bool) {
	if len(src) < 8 {
		return 0, src, false
	}
	return binary.LittleEndian.Uint64(src), src[8:], true
}

// ReadByte reads a single byte from the front of src.
func ReadByte(src []byte) (byte, []byte, bool) {
	if len(src) < 1 {
		return 0, src, false
	}
	return src[0], src[1:], true
}

// ReadCString reads a NUL-terminated UTF-8 string from the front of src,
// returning the string without the terminator.
func ReadCString(src []byte) (string, []byte, bool) {
	idx := indexNull(src)
	if idx < 0 {
		return "", src, false
	}
	return string(src[:idx]), src[idx+1:], true
}

func indexNull(src []byte) int {
	for i, b := range src {
		if b == 0x00 {
			return i
		}
	}
	return -1
}

// ReadString reads a BSON-encoded string: an int32 byte-length (including
// the trailing NUL) followed by that many bytes.
func ReadString(src []byte) (string, []byte, bool) {
	length, rem, ok := ReadLength(src)
	if !ok || length < 1 || int(length) > len(rem) {
		return "", src, false
	}
	b := rem[:length]
	if b[length-1] != 0x00 {
		return "", src, false
	}
	return string(b[:length-1]), rem[length:], true
}

// ReadDouble reads a little-endian IEEE 754 double.
func ReadDouble(src []byte) (float64, []byte, bool) {
	bits, rem, ok := ReadUint64(src)
	if !ok {
		return 0, src, false
	}
	return math.Float64frombits(bits), rem, true
}

// ------------------------------------------------------------------
// Append helpers. Each returns dst with the encoded bytes appended.
// ------------------------------------------------------------------

// AppendInt32 appends a little-endian int32.
func AppendInt32(dst []byte, i32 int32) []byte {
	return append(dst, byte(i32), byte(i32>>8), byte(i32>>16), byte(i32>>24))
}

// AppendInt64 appends a little-endian int64.
func AppendInt64(dst []byte, i64 int64) []byte {
	return append(dst,
		byte(i64), byte(i64>>8), byte(i64>>16), byte(i64>>24),
		byte(i64>>32), byte(i64>>40), byte(i64>>48), byte(i64>>56),
	)
}

// AppendUint32 appends a little-endian uint32.
func AppendUint32(dst []byte, u32 uint32) []byte {
	return AppendInt32(dst, int32(u32))
}

// AppendUint64 appends a little-endian uint64.
func AppendUint64(dst []byte, u64 uint64) []byte {
	return AppendInt64(dst, int64(u64))
}

// AppendByte appends a single byte.
func AppendByte(dst []byte, b byte) []byte {
	return append(dst, b)
}

// AppendCString appends s followed by a NUL terminator. s must not itself
// contain a NUL byte; callers are responsible for key validation.
func AppendCString(dst []byte, s string) []byte {
	return append(append(dst, s...), 0x00)
}

// AppendString appends a BSON string: int32 length (including terminator)
// followed by the UTF-8 bytes and a NUL.
func AppendString(dst []byte, s string) []byte {
	dst = AppendInt32(dst, int32(len(s)+1))
	dst = append(dst, s...)
	return append(dst, 0x00)
}

// AppendDouble appends a little-endian IEEE 754 double. NaN is normalized
// to the canonical quiet-NaN bit pattern so that encoding is deterministic.
func AppendDouble(dst []byte, f float64) []byte {
	bits := math.Float64bits(f)
	if math.IsNaN(f) {
		bits = 0x7FF8000000000000
	}
	return AppendUint64(dst, bits)
}

// AppendBoolean appends a BSON boolean byte.
func AppendBoolean(dst []byte, b bool) []byte {
	if b {
		return append(dst, 0x01)
	}
	return append(dst, 0x00)
}

// ReadBoolean reads a BSON boolean byte. Any non-zero byte decodes true.
func ReadBoolean(src []byte) (bool, []byte, bool) {
	b, rem, ok := ReadByte(src)
	if !ok {
		return false, src, false
	}
	return b != 0x00, rem, true
}

// AppendHeader writes the element's type byte and NUL-terminated key.
func AppendHeader(dst []byte, t bsontype.Type, key string) []byte {
	dst = append(dst, byte(t))
	return AppendCString(dst, key)
}

// ReaderLen returns how many bytes r claims (via its length prefix) to
// occupy, without validating the rest of the buffer.
func ReaderLen(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

package topology

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/brinkdb/mongowire/x/mongo/driver/wiremessage"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// SnappyCompressor implements Compressor using google's snappy codec, the
// default wire compressor for the community server builds.
type SnappyCompressor struct{}

func (SnappyCompressor) Name() string                    { return "snappy" }
func (SnappyCompressor) ID() wiremessage.CompressorID     { return wiremessage.CompressorSnappy }

func (SnappyCompressor) CompressBytes(src, dst []byte) ([]byte, error) {
	return snappy.Encode(dst, src), nil
}

func (SnappyCompressor) UncompressBytes(src []byte, uncompressedSize int32) ([]byte, error) {
	dst := make([]byte, uncompressedSize)
	return snappy.Decode(dst, src)
}

// ZstdCompressor implements Compressor using klauspost/compress's zstd,
// the highest-ratio wire compressor MongoDB supports.
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor builds a reusable encoder/decoder pair.
func NewZstdCompressor() (*ZstdCompressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &ZstdCompressor{encoder: enc, decoder: dec}, nil
}

func (z *ZstdCompressor) Name() string                { return "zstd" }
func (z *ZstdCompressor) ID() wiremessage.CompressorID { return wiremessage.CompressorZstd }

func (z *ZstdCompressor) CompressBytes(src, dst []byte) ([]byte, error) {
	return z.encoder.EncodeAll(src, dst), nil
}

func (z *ZstdCompressor) UncompressBytes(src []byte, uncompressedSize int32) ([]byte, error) {
	dst := make([]byte, 0, uncompressedSize)
	return z.decoder.DecodeAll(src, dst)
}

// ZlibCompressor implements Compressor using the standard library's zlib,
// matching the wire protocol's "zlib" compressor ID.
type ZlibCompressor struct {
	Level int
}

func (ZlibCompressor) Name() string                { return "zlib" }
func (ZlibCompressor) ID() wiremessage.CompressorID { return wiremessage.CompressorZLib }

func (z ZlibCompressor) CompressBytes(src, dst []byte) ([]byte, error) {
	level := z.Level
	if level == 0 {
		level = zlib.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return append(dst, buf.Bytes()...), nil
}

func (ZlibCompressor) UncompressBytes(src []byte, uncompressedSize int32) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	dst := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(r, dst); err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return dst, nil
}

package compress

import (
	"fmt"

	"github.com/arloliu/columnfile/errs"
	"github.com/arloliu/columnfile/format"
)

// Compressor compresses one field block.
type Compressor interface {
	// Compress compresses the input data and returns the compressed result.
	//
	// Memory management:
	//   - Returned slice is newly allocated and owned by the caller
	//     (except for the identity codec, which returns the input)
	//   - Input slice is not modified
	//   - Internal buffers may be reused for efficiency
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores one field block to its encoded form.
type Decompressor interface {
	// Decompress decompresses data previously produced by the matching
	// Compressor and returns the original bytes. It returns an error if
	// the data is corrupted or was compressed with a different algorithm.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions. A Codec must be a pure function of its
// input bytes: decompressing its own compressed output yields the exact
// original, and implementations must be safe for concurrent use.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone:   NewNoOpCompressor(),
	format.CompressionSnappy: NewSnappyCompressor(),
	format.CompressionLZ4:    NewLZ4Compressor(),
	format.CompressionLZMA:   NewLZMACompressor(),
	format.CompressionZlib:   NewZlibCompressor(),
	format.CompressionZstd:   NewZstdCompressor(),
}

// GetCodec retrieves the built-in Codec for the specified compression tag.
//
// Returns errs.ErrUnknownCompression for tags this library does not
// implement; readers treat that as fatal for the enclosing segment.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: %d", errs.ErrUnknownCompression, uint32(compressionType))
}

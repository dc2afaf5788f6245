package format

// CompressionType identifies the block compressor applied to every field
// block of a segment. The numeric values are part of the on-disk format:
// each segment header stores its compression tag as a varint.
type CompressionType uint32

const (
	CompressionNone   CompressionType = 0 // CompressionNone stores field blocks verbatim.
	CompressionSnappy CompressionType = 1 // CompressionSnappy uses the Snappy block format.
	CompressionLZ4    CompressionType = 2 // CompressionLZ4 uses the LZ4 block format.
	CompressionLZMA   CompressionType = 3 // CompressionLZMA uses the LZMA stream format.
	CompressionZlib   CompressionType = 4 // CompressionZlib uses the zlib stream format.
	CompressionZstd   CompressionType = 5 // CompressionZstd uses the Zstandard frame format.
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionSnappy:
		return "Snappy"
	case CompressionLZ4:
		return "LZ4"
	case CompressionLZMA:
		return "LZMA"
	case CompressionZlib:
		return "Zlib"
	case CompressionZstd:
		return "Zstd"
	default:
		return "Unknown"
	}
}

// Valid reports whether c is one of the defined compression tags.
func (c CompressionType) Valid() bool {
	return c <= CompressionZstd
}

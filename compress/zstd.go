package compress

// ZstdCompressor is the codec for format.CompressionZstd.
//
// Zstd favors compression ratio over speed, making it a good fit for:
//   - Cold storage and archival segments
//   - Network transmission where bandwidth is limited
//   - Files that are scanned infrequently
//
// Two implementations exist behind build tags: a pure-Go one based on
// klauspost/compress (default) and a cgo one based on valyala/gozstd.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd codec with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}

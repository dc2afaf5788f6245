// Package compress provides the block compression codecs used for
// columnfile field blocks.
//
// Compression is the outer of the format's two stages:
//
//  1. Encoding: run-length + shared-prefix encoding of each column
//  2. Compression: general-purpose block compression of the encoded stream
//
// Every field block of a segment is compressed independently with the
// codec declared in the segment header. The package defines the Codec
// interface and one implementation per compression tag:
//   - None: identity (fastest, largest)
//   - Snappy: fast, moderate compression
//   - LZ4: fast decompression, moderate compression (writer default)
//   - LZMA: slow, best compression
//   - Zlib: widely portable, moderate compression
//   - Zstd: excellent ratio, moderate speed
//
// All codecs are stateless from the caller's perspective and safe for
// concurrent use; implementations may pool internal encoder state.
package compress

package columnfile

import (
	"fmt"

	"github.com/arloliu/columnfile/errs"
	"github.com/arloliu/columnfile/format"
	"github.com/arloliu/columnfile/internal/options"
)

// WriterOption configures a Writer at construction time.
type WriterOption = options.Option[*Writer]

// WithCompression selects the block compressor applied to every field
// block of the segments this writer emits. The default is LZ4.
func WithCompression(compression format.CompressionType) WriterOption {
	return options.New(func(w *Writer) error {
		if !compression.Valid() {
			return fmt.Errorf("%w: %d", errs.ErrUnknownCompression, uint32(compression))
		}
		w.compression = compression

		return nil
	})
}

// WithFlushInterval makes the writer flush a segment automatically
// after every n calls to PutRow. Zero (the default) disables
// auto-flushing; callers then decide using PendingSize.
func WithFlushInterval(n int) WriterOption {
	return options.New(func(w *Writer) error {
		if n < 0 {
			return fmt.Errorf("flush interval must not be negative: %d", n)
		}
		w.flushInterval = n

		return nil
	})
}

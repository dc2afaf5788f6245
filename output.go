package columnfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/arloliu/columnfile/format"
	"github.com/arloliu/columnfile/internal/pool"
)

// segmentMagic starts every segment header.
var segmentMagic = [4]byte{'c', 'f', '1', '\n'}

// FieldBlock is one column's compressed payload within a segment.
type FieldBlock struct {
	Column uint32
	Data   []byte
}

// Output is the sink a Writer emits segments to. Implementations other
// than the built-in ones can redirect segments to arbitrary storage.
//
// An Output is owned by a single Writer.
type Output interface {
	// Flush writes one segment. Blocks arrive in ascending column id
	// order, already compressed with the given compression tag.
	Flush(blocks []FieldBlock, compression format.CompressionType) error

	// Finalize finishes writing the file. It returns the backing file
	// handle if the sink has one; ownership of the handle moves to the
	// caller.
	Finalize() (*os.File, error)
}

// streamOutput writes segments to an io.Writer using the on-disk
// layout: magic, varint compression tag, varint column count, column
// descriptors, then the field blocks in descriptor order.
type streamOutput struct {
	w io.Writer
	f *os.File // non-nil when the sink is backed by a file
}

// NewStreamOutput wraps an io.Writer as a segment sink. If w is an
// *os.File, Finalize yields it as the backing handle.
func NewStreamOutput(w io.Writer) Output {
	f, _ := w.(*os.File)
	return &streamOutput{w: w, f: f}
}

func (o *streamOutput) Flush(blocks []FieldBlock, compression format.CompressionType) error {
	hdr := pool.GetSegmentBuffer()
	defer pool.PutSegmentBuffer(hdr)

	hdr.MustWrite(segmentMagic[:])
	hdr.B = binary.AppendUvarint(hdr.B, uint64(compression))
	hdr.B = binary.AppendUvarint(hdr.B, uint64(len(blocks)))

	for _, blk := range blocks {
		hdr.B = binary.AppendUvarint(hdr.B, uint64(blk.Column))
		hdr.B = binary.AppendUvarint(hdr.B, uint64(len(blk.Data)))
	}

	if _, err := o.w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("write segment header: %w", err)
	}

	for _, blk := range blocks {
		if len(blk.Data) == 0 {
			continue
		}
		if _, err := o.w.Write(blk.Data); err != nil {
			return fmt.Errorf("write field block: %w", err)
		}
	}

	return nil
}

func (o *streamOutput) Finalize() (*os.File, error) {
	if o.f != nil {
		if err := o.f.Sync(); err != nil {
			return nil, fmt.Errorf("sync output: %w", err)
		}
	}

	return o.f, nil
}

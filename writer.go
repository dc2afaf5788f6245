package columnfile

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/arloliu/columnfile/compress"
	"github.com/arloliu/columnfile/encoding"
	"github.com/arloliu/columnfile/errs"
	"github.com/arloliu/columnfile/format"
	"github.com/arloliu/columnfile/internal/options"
)

// Writer buffers rows column by column and emits one segment per Flush.
//
// A segment is the unit of compression and of cursor repositioning on
// the read side: within a segment, every column stream has the same
// logical length, and new columns discovered mid-segment are backfilled
// with nulls by PutRow.
//
// Note: The Writer is NOT thread-safe. Each writer owns its Output.
type Writer struct {
	output      Output
	compression format.CompressionType

	fields   map[uint32]*encoding.FieldEncoder
	rowCount int // rows appended via PutRow in the current segment

	pendingSize   int
	flushInterval int
	unflushed     int // PutRow calls since the last flush

	finalized bool
	handle    *os.File // yielded by Finalize, closed by Close
}

// NewWriter creates a writer that streams segments to w. If w is an
// *os.File, Finalize yields it as the backing handle.
func NewWriter(w io.Writer, opts ...WriterOption) (*Writer, error) {
	return NewOutputWriter(NewStreamOutput(w), opts...)
}

// NewOutputWriter creates a writer over a caller-provided segment sink.
func NewOutputWriter(output Output, opts ...WriterOption) (*Writer, error) {
	writer := &Writer{
		output:      output,
		compression: format.CompressionLZ4,
		fields:      make(map[uint32]*encoding.FieldEncoder),
	}

	if err := options.Apply(writer, opts...); err != nil {
		return nil, err
	}

	return writer, nil
}

// OpenWriter creates the file at path (truncating any existing file)
// and returns a writer streaming segments to it. Close finishes the
// file and closes the handle.
func OpenWriter(path string, opts ...WriterOption) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open column file for writing: %w", err)
	}

	w, err := NewWriter(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}

	return w, nil
}

// Put appends one non-null value to the given column of the current
// segment, creating the column's encoder on first use. The data is
// copied during the call.
//
// Put does not backfill: callers mixing Put with PutRow in the same
// segment are responsible for keeping all column lengths equal.
func (w *Writer) Put(column uint32, data []byte) error {
	if w.finalized {
		return errs.ErrFinalized
	}

	w.field(column).Put(data)
	w.pendingSize += len(data)

	return nil
}

// PutNull appends one null value to the given column of the current
// segment.
func (w *Writer) PutNull(column uint32) error {
	if w.finalized {
		return errs.ErrFinalized
	}

	w.field(column).PutNull()

	return nil
}

// PutRow appends one row. Columns present in the current segment but
// missing from the row receive a null; columns in the row not yet seen
// this segment are retroactively padded with nulls up to the current
// row index. Duplicate column ids within the row are an error.
func (w *Writer) PutRow(row []Entry) error {
	if w.finalized {
		return errs.ErrFinalized
	}

	values := make(map[uint32]Value, len(row))
	for _, e := range row {
		if _, dup := values[e.Column]; dup {
			return fmt.Errorf("%w: column %d", errs.ErrDuplicateColumn, e.Column)
		}
		values[e.Column] = e.Value

		// Backfill a newly discovered column before the row is applied:
		// the segment is a rectangle, and the rectangle's width is only
		// known at flush time.
		if _, ok := w.fields[e.Column]; !ok {
			enc := w.field(e.Column)
			for i := 0; i < w.rowCount; i++ {
				enc.PutNull()
			}
		}
	}

	for column, enc := range w.fields {
		value, ok := values[column]
		if !ok || value.IsNull() {
			enc.PutNull()
			continue
		}

		enc.Put(value.Data())
		w.pendingSize += len(value.Data())
	}

	w.rowCount++
	w.unflushed++

	if w.flushInterval > 0 && w.unflushed >= w.flushInterval {
		return w.Flush()
	}

	return nil
}

// PendingSize returns an approximate number of uncompressed value bytes
// that have not yet been flushed, not counting encoding overhead or
// backfill nulls. Callers use it to decide when to call Flush.
func (w *Writer) PendingSize() int {
	return w.pendingSize
}

// Flush emits one segment holding everything appended since the last
// flush and resets the per-segment state. Flushing an empty writer is a
// no-op.
func (w *Writer) Flush() error {
	if w.finalized {
		return errs.ErrFinalized
	}

	return w.flush()
}

func (w *Writer) flush() error {
	if len(w.fields) == 0 {
		return nil
	}

	codec, err := compress.GetCodec(w.compression)
	if err != nil {
		return err
	}

	columns := make([]uint32, 0, len(w.fields))
	for column := range w.fields {
		columns = append(columns, column)
	}
	sort.Slice(columns, func(i, j int) bool { return columns[i] < columns[j] })

	blocks := make([]FieldBlock, 0, len(columns))
	for _, column := range columns {
		block, err := w.fields[column].Finish(codec)
		if err != nil {
			return fmt.Errorf("finish column %d: %w", column, err)
		}
		blocks = append(blocks, FieldBlock{Column: column, Data: block})
	}

	flushErr := w.output.Flush(blocks, w.compression)

	// Encoders are released only after the sink consumed the blocks;
	// blocks may alias the encoders' pooled buffers.
	for _, enc := range w.fields {
		enc.Reset()
	}
	w.fields = make(map[uint32]*encoding.FieldEncoder)
	w.rowCount = 0
	w.pendingSize = 0
	w.unflushed = 0

	return flushErr
}

// Finalize flushes any pending segment and finishes the file, yielding
// the backing file handle if the sink exposes one. Ownership of the
// handle moves to the caller; Close handles it for the common case.
//
// Calling Finalize twice is an error and never corrupts the output.
func (w *Writer) Finalize() (*os.File, error) {
	if w.finalized {
		return nil, errs.ErrFinalized
	}
	w.finalized = true

	if err := w.flush(); err != nil {
		return nil, err
	}

	f, err := w.output.Finalize()
	if err != nil {
		return nil, err
	}
	w.handle = f

	return f, nil
}

// Close finalizes the writer (if not already finalized) and closes the
// backing file handle, if any.
func (w *Writer) Close() error {
	if !w.finalized {
		if _, err := w.Finalize(); err != nil {
			return err
		}
	}

	if w.handle != nil {
		err := w.handle.Close()
		w.handle = nil

		return err
	}

	return nil
}

// field returns the encoder for column, creating it on first use.
func (w *Writer) field(column uint32) *encoding.FieldEncoder {
	enc, ok := w.fields[column]
	if !ok {
		enc = encoding.NewFieldEncoder()
		w.fields[column] = enc
	}

	return enc
}

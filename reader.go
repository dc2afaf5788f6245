package columnfile

import (
	"fmt"
	"os"

	"github.com/arloliu/columnfile/compress"
	"github.com/arloliu/columnfile/encoding"
	"github.com/arloliu/columnfile/errs"
	"github.com/arloliu/columnfile/format"
	"golang.org/x/sync/errgroup"
)

// Reader multiplexes the field decoders of the currently requested
// columns into row-shaped tuples.
//
// On every segment advance the reader discards its decoders, requests
// the blocks matching the current column filter, decompresses them and
// installs fresh decoders. Values returned by Peek, Get and GetRow
// borrow the decoders' buffers: they stay valid until the reader moves
// past the current run or loads another segment.
//
// Note: The Reader is NOT thread-safe.
type Reader struct {
	input Input

	filter map[uint32]struct{} // nil or empty selects all columns

	compression format.CompressionType
	fields      []fieldState // current segment's decoders, ascending column
	rowBuf      []Entry

	loaded bool
	err    error

	handle *os.File // owned when the reader was opened from a path
}

type fieldState struct {
	column uint32
	dec    *encoding.FieldDecoder
}

// NewReader creates a row reader over an Input.
func NewReader(input Input) *Reader {
	return &Reader{input: input}
}

// NewBytesReader creates a row reader over a fully resident column
// file, e.g. a memory-mapped byte range.
func NewBytesReader(data []byte) *Reader {
	return NewReader(NewBytesInput(data))
}

// NewFileReader creates a streaming row reader over an open column
// file. The reader does not take ownership of the handle.
func NewFileReader(f *os.File) (*Reader, error) {
	input, err := NewFileInput(f)
	if err != nil {
		return nil, err
	}

	return NewReader(input), nil
}

// OpenReader opens the column file at path for streaming reads. The
// returned reader owns the file handle; call Close when done.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open column file: %w", err)
	}

	r, err := NewFileReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.handle = f

	return r, nil
}

// Close releases the file handle owned by OpenReader; it is a no-op for
// readers over caller-provided inputs.
func (r *Reader) Close() error {
	if r.handle == nil {
		return nil
	}

	err := r.handle.Close()
	r.handle = nil

	return err
}

// SetColumnFilter restricts decoding to the given columns. It takes
// effect on the next segment load: columns already skipped in the
// current segment are not retroactively decoded (use
// SeekToStartOfSegment to re-decode the current segment). No columns
// means all columns.
func (r *Reader) SetColumnFilter(columns ...uint32) {
	if len(columns) == 0 {
		r.filter = nil
		return
	}

	r.filter = make(map[uint32]struct{}, len(columns))
	for _, column := range columns {
		r.filter[column] = struct{}{}
	}
}

// Err returns the first error the reader ran into, if any. End reports
// true once an error occurred.
func (r *Reader) Err() error {
	return r.err
}

// End reports whether there are no more rows to be read. It advances
// over segment boundaries, transparently skipping segments that
// contribute no columns under the current filter.
func (r *Reader) End() bool {
	for {
		if r.err != nil {
			return true
		}
		if r.loaded && !r.segmentExhausted() {
			return false
		}

		compression, ok, err := r.input.Next()
		if err != nil {
			r.err = err
			return true
		}
		if !ok {
			r.loaded = false
			return true
		}

		r.compression = compression
		if err := r.fillSegment(); err != nil {
			r.err = err
			return true
		}
	}
}

// EndOfSegment reports whether there are no more rows in the current
// segment.
func (r *Reader) EndOfSegment() bool {
	if r.err != nil {
		return true
	}
	if !r.loaded {
		return r.End()
	}

	return r.segmentExhausted()
}

// GetRow returns the next row as entries in ascending column id order,
// advancing every active decoder exactly once. The entries' values
// borrow the decoders' buffers and are invalidated by the next GetRow
// beyond the current runs.
func (r *Reader) GetRow() ([]Entry, error) {
	if r.End() {
		if r.err != nil {
			return nil, r.err
		}

		return nil, errs.ErrEndOfFile
	}

	r.rowBuf = r.rowBuf[:0]
	for i := range r.fields {
		data, isNull, err := r.fields[i].dec.Get()
		if err != nil {
			r.err = fmt.Errorf("column %d: %w", r.fields[i].column, err)
			return nil, r.err
		}

		value := Null()
		if !isNull {
			value = Bytes(data)
		}
		r.rowBuf = append(r.rowBuf, Entry{Column: r.fields[i].column, Value: value})
	}

	return r.rowBuf, nil
}

// Peek returns the current value of one column without consuming a row
// step. A column in the filter but absent from the segment reads as
// null.
func (r *Reader) Peek(column uint32) (Value, error) {
	state, err := r.fieldState(column)
	if err != nil {
		return Value{}, err
	}
	if state == nil {
		return Null(), nil
	}

	data, isNull, err := state.dec.Peek()
	if err != nil {
		r.err = fmt.Errorf("column %d: %w", column, err)
		return Value{}, r.err
	}
	if isNull {
		return Null(), nil
	}

	return Bytes(data), nil
}

// Get returns the current value of one column and advances that
// column's decoder by one step.
func (r *Reader) Get(column uint32) (Value, error) {
	state, err := r.fieldState(column)
	if err != nil {
		return Value{}, err
	}
	if state == nil {
		return Null(), nil
	}

	data, isNull, err := state.dec.Get()
	if err != nil {
		r.err = fmt.Errorf("column %d: %w", column, err)
		return Value{}, r.err
	}
	if isNull {
		return Null(), nil
	}

	return Bytes(data), nil
}

// SeekToStart rewinds to the first segment and clears any sticky error.
func (r *Reader) SeekToStart() error {
	if err := r.input.SeekToStart(); err != nil {
		return err
	}

	r.loaded = false
	r.fields = nil
	r.err = nil

	return nil
}

// SeekToStartOfSegment re-decodes the current segment from its
// beginning with the current column filter.
func (r *Reader) SeekToStartOfSegment() error {
	if r.err != nil {
		return r.err
	}
	if !r.loaded {
		return fmt.Errorf("%w: no current segment", errs.ErrEndOfFile)
	}

	if err := r.fillSegment(); err != nil {
		r.err = err
		return err
	}

	return nil
}

// Offset returns the input offset just past the current segment; Size
// returns the total input length.
func (r *Reader) Offset() int64 { return r.input.Offset() }
func (r *Reader) Size() int64   { return r.input.Size() }

// fillSegment requests the blocks for the current filter, decompresses
// them and installs fresh decoders. Decompression of multiple columns
// is dispatched to parallel workers; the result is indistinguishable
// from the sequential order.
func (r *Reader) fillSegment() error {
	blocks, err := r.input.Fill(r.filter)
	if err != nil {
		return err
	}

	codec, err := compress.GetCodec(r.compression)
	if err != nil {
		return err
	}

	decoded := make([][]byte, len(blocks))
	if len(blocks) > 1 {
		var g errgroup.Group
		for i := range blocks {
			i := i
			g.Go(func() error {
				data, err := codec.Decompress(blocks[i].Data)
				if err != nil {
					return fmt.Errorf("column %d: %w", blocks[i].Column, err)
				}
				decoded[i] = data

				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for i := range blocks {
			data, err := codec.Decompress(blocks[i].Data)
			if err != nil {
				return fmt.Errorf("column %d: %w", blocks[i].Column, err)
			}
			decoded[i] = data
		}
	}

	r.fields = r.fields[:0]
	for i := range blocks {
		r.fields = append(r.fields, fieldState{
			column: blocks[i].Column,
			dec:    encoding.NewFieldDecoder(decoded[i]),
		})
	}
	r.loaded = true

	return nil
}

// segmentExhausted reports whether every active decoder of the current
// segment is spent. Column streams share the segment's row count, so
// checking the first suffices; a segment with no columns under the
// current filter is exhausted immediately.
func (r *Reader) segmentExhausted() bool {
	if len(r.fields) == 0 {
		return true
	}

	return r.fields[0].dec.End()
}

// fieldState resolves a column to its decoder. It returns nil (without
// error) for a column that is in the filter but absent from the current
// segment, and errs.ErrColumnNotSelected for a column outside the
// filter.
func (r *Reader) fieldState(column uint32) (*fieldState, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.filter != nil {
		if _, ok := r.filter[column]; !ok {
			return nil, fmt.Errorf("%w: column %d", errs.ErrColumnNotSelected, column)
		}
	}

	if !r.loaded && r.End() {
		if r.err != nil {
			return nil, r.err
		}

		return nil, errs.ErrEndOfFile
	}

	for i := range r.fields {
		if r.fields[i].column == column {
			return &r.fields[i], nil
		}
	}

	return nil, nil
}

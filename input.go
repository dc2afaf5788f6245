package columnfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/arloliu/columnfile/errs"
	"github.com/arloliu/columnfile/format"
)

// Input delivers the raw compressed blocks of a column file, one
// segment at a time. Two implementations exist: a streamed one over a
// file descriptor and a mapped one over a fully resident byte range.
type Input interface {
	// Next advances to the next segment header and reports the segment's
	// compression tag. It returns false when the end of the input is
	// reached.
	Next() (format.CompressionType, bool, error)

	// Fill returns the compressed block of each column in filter that
	// exists in the current segment, in ascending column id order. An
	// empty filter selects all columns. Fill may be called repeatedly
	// for the same segment with different filters.
	Fill(filter map[uint32]struct{}) ([]FieldBlock, error)

	// End reports whether the next call to Fill would return nothing
	// because there are no more segments.
	End() bool

	// SeekToStart rewinds to the beginning of the input.
	SeekToStart() error

	// Offset returns the byte offset just past the current segment;
	// Size returns the total input length. Together they expose scan
	// progress.
	Offset() int64
	Size() int64
}

// columnChunk locates one column's compressed block.
type columnChunk struct {
	column uint32
	size   int64
	offset int64 // absolute offset into the input
}

// countingByteReader counts bytes consumed from the underlying reader,
// so header parsing can report where the field blocks start.
type countingByteReader struct {
	r io.ByteReader
	n int64
}

func (c *countingByteReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.n++
	}

	return b, err
}

// parseSegmentHeader reads one segment header: magic, compression tag,
// column count and column descriptors. The returned chunks carry
// offsets relative to the start of the block area; the third return
// value is the number of header bytes consumed.
func parseSegmentHeader(br io.ByteReader) (format.CompressionType, []columnChunk, int64, error) {
	c := &countingByteReader{r: br}

	var magic [4]byte
	for i := range magic {
		b, err := c.ReadByte()
		if err != nil {
			return 0, nil, 0, fmt.Errorf("%w: short segment header", errs.ErrTruncatedBlock)
		}
		magic[i] = b
	}
	if magic != segmentMagic {
		return 0, nil, 0, fmt.Errorf("%w: % x", errs.ErrBadMagic, magic[:])
	}

	tag, err := binary.ReadUvarint(c)
	if err != nil {
		return 0, nil, 0, headerVarintErr(err)
	}
	compression := format.CompressionType(tag)
	if !compression.Valid() {
		return 0, nil, 0, fmt.Errorf("%w: %d", errs.ErrUnknownCompression, tag)
	}

	count, err := binary.ReadUvarint(c)
	if err != nil {
		return 0, nil, 0, headerVarintErr(err)
	}

	chunks := make([]columnChunk, 0, count)
	var blockOffset int64
	for i := uint64(0); i < count; i++ {
		column, err := binary.ReadUvarint(c)
		if err != nil {
			return 0, nil, 0, headerVarintErr(err)
		}
		size, err := binary.ReadUvarint(c)
		if err != nil {
			return 0, nil, 0, headerVarintErr(err)
		}

		if column > math.MaxUint32 {
			return 0, nil, 0, fmt.Errorf("%w: column id %d", errs.ErrBadVarint, column)
		}
		if len(chunks) > 0 && uint32(column) <= chunks[len(chunks)-1].column {
			return 0, nil, 0, fmt.Errorf("%w: column %d after %d",
				errs.ErrSegmentOrder, column, chunks[len(chunks)-1].column)
		}

		chunks = append(chunks, columnChunk{
			column: uint32(column),
			size:   int64(size),
			offset: blockOffset,
		})
		blockOffset += int64(size)
	}

	return compression, chunks, c.n, nil
}

func headerVarintErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: short segment header", errs.ErrTruncatedBlock)
	}

	return fmt.Errorf("%w: %v", errs.ErrBadVarint, err)
}

// fileInput streams segments from a file descriptor. Header parsing
// reads just enough to learn which columns exist and how large their
// blocks are; Fill then reads only the selected blocks and skips over
// the rest.
type fileInput struct {
	f    *os.File
	size int64

	next   int64 // offset of the next segment header
	chunks []columnChunk
	loaded bool
}

// NewFileInput creates a streamed input over an open column file. The
// input does not take ownership of the handle.
func NewFileInput(f *os.File) (Input, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat column file: %w", err)
	}

	return &fileInput{f: f, size: info.Size()}, nil
}

func (in *fileInput) Next() (format.CompressionType, bool, error) {
	in.loaded = false
	in.chunks = nil

	if in.next >= in.size {
		return 0, false, nil
	}

	if _, err := in.f.Seek(in.next, io.SeekStart); err != nil {
		return 0, false, fmt.Errorf("seek segment header: %w", err)
	}

	br := bufio.NewReaderSize(in.f, 4096)
	compression, chunks, headerLen, err := parseSegmentHeader(br)
	if err != nil {
		return 0, false, err
	}

	blockStart := in.next + headerLen
	var total int64
	for i := range chunks {
		chunks[i].offset += blockStart
		total += chunks[i].size
	}

	in.next = blockStart + total
	if in.next > in.size {
		return 0, false, fmt.Errorf("%w: segment extends past end of file", errs.ErrTruncatedBlock)
	}

	in.chunks = chunks
	in.loaded = true

	return compression, true, nil
}

func (in *fileInput) Fill(filter map[uint32]struct{}) ([]FieldBlock, error) {
	if !in.loaded {
		return nil, nil
	}

	blocks := make([]FieldBlock, 0, len(in.chunks))
	for _, chunk := range in.chunks {
		if len(filter) > 0 {
			if _, ok := filter[chunk.column]; !ok {
				continue
			}
		}

		data := make([]byte, chunk.size)
		if _, err := in.f.ReadAt(data, chunk.offset); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: short field block", errs.ErrTruncatedBlock)
			}

			return nil, fmt.Errorf("read field block: %w", err)
		}

		blocks = append(blocks, FieldBlock{Column: chunk.column, Data: data})
	}

	return blocks, nil
}

func (in *fileInput) End() bool {
	return !in.loaded && in.next >= in.size
}

func (in *fileInput) SeekToStart() error {
	in.next = 0
	in.loaded = false
	in.chunks = nil

	return nil
}

func (in *fileInput) Offset() int64 { return in.next }
func (in *fileInput) Size() int64   { return in.size }

// bytesInput serves segments from a fully resident byte range, e.g. a
// memory-mapped file. Skipping unselected columns is free.
type bytesInput struct {
	data []byte

	next   int64
	chunks []columnChunk
	loaded bool
}

// NewBytesInput creates a mapped input over data. The input borrows
// data for its lifetime; returned blocks alias it.
func NewBytesInput(data []byte) Input {
	return &bytesInput{data: data}
}

func (in *bytesInput) Next() (format.CompressionType, bool, error) {
	in.loaded = false
	in.chunks = nil

	if in.next >= int64(len(in.data)) {
		return 0, false, nil
	}

	compression, chunks, headerLen, err := parseSegmentHeader(bytes.NewReader(in.data[in.next:]))
	if err != nil {
		return 0, false, err
	}

	blockStart := in.next + headerLen
	var total int64
	for i := range chunks {
		chunks[i].offset += blockStart
		total += chunks[i].size
	}

	in.next = blockStart + total
	if in.next > int64(len(in.data)) {
		return 0, false, fmt.Errorf("%w: segment extends past end of input", errs.ErrTruncatedBlock)
	}

	in.chunks = chunks
	in.loaded = true

	return compression, true, nil
}

func (in *bytesInput) Fill(filter map[uint32]struct{}) ([]FieldBlock, error) {
	if !in.loaded {
		return nil, nil
	}

	blocks := make([]FieldBlock, 0, len(in.chunks))
	for _, chunk := range in.chunks {
		if len(filter) > 0 {
			if _, ok := filter[chunk.column]; !ok {
				continue
			}
		}

		blocks = append(blocks, FieldBlock{
			Column: chunk.column,
			Data:   in.data[chunk.offset : chunk.offset+chunk.size],
		})
	}

	return blocks, nil
}

func (in *bytesInput) End() bool {
	return !in.loaded && in.next >= int64(len(in.data))
}

func (in *bytesInput) SeekToStart() error {
	in.next = 0
	in.loaded = false
	in.chunks = nil

	return nil
}

func (in *bytesInput) Offset() int64 { return in.next }
func (in *bytesInput) Size() int64   { return int64(len(in.data)) }

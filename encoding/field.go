package encoding

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/arloliu/columnfile/compress"
	"github.com/arloliu/columnfile/errs"
	"github.com/arloliu/columnfile/internal/pool"
)

// Run entry flag bytes. flagValue entries carry prefix/suffix data,
// flagNull entries carry nothing beyond the repeat count.
const (
	flagValue = 0x00
	flagNull  = 0x01
)

// FieldEncoder accumulates the values of one column within one segment.
//
// Between commit points it holds only the previous logical value and how
// many times it has repeated consecutively; a run is committed to the
// encoded stream when a differing value (or a null/non-null transition)
// arrives, and once more at Finish.
//
// Note: The FieldEncoder is NOT thread-safe and is single-use: after
// Finish and Reset, create a new encoder for the next segment.
type FieldEncoder struct {
	buf *pool.ByteBuffer

	value  []byte // current run's value (copied from the caller)
	isNull bool
	repeat uint64

	prev     []byte // previously committed non-null value
	hasPrev  bool
	count    int
	finished bool
}

// NewFieldEncoder creates a new encoder for one column of one segment,
// backed by a pooled byte buffer.
func NewFieldEncoder() *FieldEncoder {
	return &FieldEncoder{
		buf: pool.GetFieldBuffer(),
	}
}

// Put appends one non-null value. The data is copied; the caller's
// buffer only has to stay valid for the duration of the call.
func (e *FieldEncoder) Put(data []byte) {
	if e.repeat > 0 && (e.isNull || !bytes.Equal(e.value, data)) {
		e.commit()
	}

	if e.repeat == 0 {
		e.value = append(e.value[:0], data...)
		e.isNull = false
	}

	e.repeat++
	e.count++
}

// PutNull appends one null value.
func (e *FieldEncoder) PutNull() {
	if e.repeat > 0 && !e.isNull {
		e.commit()
	}

	if e.repeat == 0 {
		e.isNull = true
	}

	e.repeat++
	e.count++
}

// commit writes the pending run to the encoded stream and starts a new
// one. Runs are never empty: repeat >= 1 when commit is reached.
func (e *FieldEncoder) commit() {
	e.buf.B = binary.AppendUvarint(e.buf.B, e.repeat-1)

	if e.isNull {
		e.buf.B = append(e.buf.B, flagNull)
	} else {
		e.buf.B = append(e.buf.B, flagValue)

		// Shared prefix is computed against the previously committed
		// non-null value; null runs in between do not reset it.
		prefix := 0
		if e.hasPrev {
			prefix = sharedPrefixLen(e.prev, e.value)
		}

		e.buf.B = binary.AppendUvarint(e.buf.B, uint64(prefix))
		e.buf.B = binary.AppendUvarint(e.buf.B, uint64(len(e.value)-prefix))
		e.buf.B = append(e.buf.B, e.value[prefix:]...)

		e.prev = append(e.prev[:0], e.value...)
		e.hasPrev = true
	}

	e.repeat = 0
}

// Len returns the logical number of values appended since creation.
func (e *FieldEncoder) Len() int {
	return e.count
}

// Size returns the current size of the encoded stream in bytes. The
// pending run is not included until it commits.
func (e *FieldEncoder) Size() int {
	return e.buf.Len()
}

// Finish commits the pending run and block-compresses the accumulated
// stream with the given codec, returning the finished field block.
//
// An encoder that never received a value produces an empty block, which
// decoders treat as an immediately exhausted column.
//
// The returned block may share memory with the encoder's internal
// buffer; call Reset only after the block has been consumed.
func (e *FieldEncoder) Finish(codec compress.Codec) ([]byte, error) {
	if e.finished {
		return nil, fmt.Errorf("field encoder already finished")
	}
	e.finished = true

	if e.repeat > 0 {
		e.commit()
	}

	return codec.Compress(e.buf.Bytes())
}

// Reset returns the encoder's buffer to the pool. After Reset the
// encoder must not be used again.
func (e *FieldEncoder) Reset() {
	if e.buf != nil {
		pool.PutFieldBuffer(e.buf)
		e.buf = nil
	}
}

// sharedPrefixLen returns the length of the longest common prefix of a and b.
func sharedPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	i := 0
	for i < n && a[i] == b[i] {
		i++
	}

	return i
}

// FieldDecoder is the inverse of FieldEncoder: a cursor over the decoded
// values of one column within one segment.
//
// Borrow contract: the slice returned by Peek/Get references the
// decoder's reconstruction buffer. It stays valid until the decoder
// moves past the current run (the next Peek/Get after the run's repeat
// count is exhausted) or until the enclosing segment is released.
type FieldDecoder struct {
	data []byte // remaining encoded bytes

	value  []byte // reconstruction buffer; holds the last non-null value
	isNull bool
	repeat uint64
}

// NewFieldDecoder creates a decoder over the decompressed byte stream of
// one column of one segment. An empty stream yields an immediately
// exhausted decoder.
func NewFieldDecoder(data []byte) *FieldDecoder {
	return &FieldDecoder{data: data, isNull: true}
}

// End reports whether all values have been consumed.
func (d *FieldDecoder) End() bool {
	return d.repeat == 0 && len(d.data) == 0
}

// Peek returns the current value without consuming a repeat. The bool
// result is true for a null value, in which case the slice is nil.
func (d *FieldDecoder) Peek() ([]byte, bool, error) {
	if d.repeat == 0 {
		if len(d.data) == 0 {
			return nil, false, fmt.Errorf("%w: read past end of field stream", errs.ErrTruncatedBlock)
		}
		if err := d.fill(); err != nil {
			return nil, false, err
		}
	}

	if d.isNull {
		return nil, true, nil
	}

	return d.value, false, nil
}

// Get returns the current value and consumes one repeat. When the
// repeat count reaches zero, the next Peek/Get decodes the following
// run and invalidates previously returned slices.
func (d *FieldDecoder) Get() ([]byte, bool, error) {
	value, isNull, err := d.Peek()
	if err != nil {
		return nil, false, err
	}
	d.repeat--

	return value, isNull, nil
}

// fill decodes the next run entry from the stream.
func (d *FieldDecoder) fill() error {
	repeat, err := d.uvarint()
	if err != nil {
		return err
	}
	d.repeat = repeat + 1

	if len(d.data) == 0 {
		return fmt.Errorf("%w: missing run flag", errs.ErrTruncatedBlock)
	}
	flag := d.data[0]
	d.data = d.data[1:]

	switch flag {
	case flagNull:
		d.isNull = true

	case flagValue:
		prefix, err := d.uvarint()
		if err != nil {
			return err
		}
		suffixLen, err := d.uvarint()
		if err != nil {
			return err
		}

		if prefix > uint64(len(d.value)) {
			return fmt.Errorf("%w: prefix %d, previous value %d bytes", errs.ErrInvalidPrefix, prefix, len(d.value))
		}
		if suffixLen > uint64(len(d.data)) {
			return fmt.Errorf("%w: suffix %d bytes, %d remaining", errs.ErrTruncatedBlock, suffixLen, len(d.data))
		}

		d.value = append(d.value[:prefix], d.data[:suffixLen]...)
		d.data = d.data[suffixLen:]
		d.isNull = false

	default:
		return fmt.Errorf("%w: 0x%02x", errs.ErrInvalidRunFlag, flag)
	}

	return nil
}

// uvarint decodes one unsigned LEB128 varint from the stream.
func (d *FieldDecoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.data)
	if n == 0 {
		return 0, fmt.Errorf("%w: unexpected end of stream", errs.ErrTruncatedBlock)
	}
	if n < 0 {
		return 0, errs.ErrBadVarint
	}
	d.data = d.data[n:]

	return v, nil
}

package columnfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arloliu/columnfile/errs"
	"github.com/arloliu/columnfile/format"
	"github.com/stretchr/testify/require"
)

func twoColumnFile(t *testing.T, compression format.CompressionType) []byte {
	t.Helper()

	return writeSegments(t, compression, [][][]Entry{{
		{{Column: 1, Value: String("a")}, {Column: 2, Value: String("x")}},
		{{Column: 1, Value: String("a")}, {Column: 2, Value: String("y")}},
		{{Column: 1, Value: String("b")}, {Column: 2, Value: String("y")}},
	}})
}

func TestReader_RoundTrip(t *testing.T) {
	rows := readAllRows(t, NewBytesReader(twoColumnFile(t, format.CompressionLZ4)))

	require.Equal(t, [][]Entry{
		{{Column: 1, Value: String("a")}, {Column: 2, Value: String("x")}},
		{{Column: 1, Value: String("a")}, {Column: 2, Value: String("y")}},
		{{Column: 1, Value: String("b")}, {Column: 2, Value: String("y")}},
	}, rows)
}

func TestReader_ColumnFilter(t *testing.T) {
	r := NewBytesReader(twoColumnFile(t, format.CompressionLZ4))
	r.SetColumnFilter(2)

	rows := readAllRows(t, r)
	require.Equal(t, [][]Entry{
		{{Column: 2, Value: String("x")}},
		{{Column: 2, Value: String("y")}},
		{{Column: 2, Value: String("y")}},
	}, rows)
}

func TestReader_ProjectionCommutativity(t *testing.T) {
	// Reading with a column filter equals the restriction of the full
	// read to the filtered columns.
	segments := [][][]Entry{
		{
			{{Column: 1, Value: String("r0")}, {Column: 2, Value: String("s0")}, {Column: 5, Value: Null()}},
			{{Column: 1, Value: Null()}, {Column: 2, Value: String("s1")}, {Column: 5, Value: String("t1")}},
		},
		{
			{{Column: 1, Value: String("r2")}, {Column: 2, Value: Null()}, {Column: 5, Value: String("t2")}},
		},
	}
	data := writeSegments(t, format.CompressionSnappy, segments)

	full := readAllRows(t, NewBytesReader(data))

	filter := map[uint32]struct{}{2: {}, 5: {}}
	r := NewBytesReader(data)
	r.SetColumnFilter(2, 5)
	filtered := readAllRows(t, r)

	require.Len(t, filtered, len(full))
	for i, row := range full {
		var want []Entry
		for _, e := range row {
			if _, ok := filter[e.Column]; ok {
				want = append(want, e)
			}
		}
		require.Equal(t, want, filtered[i], "row %d", i)
	}
}

func TestReader_MultiSegment(t *testing.T) {
	segments := [][][]Entry{
		{
			{{Column: 1, Value: String("s0r0")}},
			{{Column: 1, Value: String("s0r1")}},
		},
		{
			{{Column: 1, Value: String("s1r0")}},
		},
	}
	r := NewBytesReader(writeSegments(t, format.CompressionZstd, segments))

	require.False(t, r.End())
	require.False(t, r.EndOfSegment())

	row, err := r.GetRow()
	require.NoError(t, err)
	require.Equal(t, "s0r0", row[0].Value.String())

	row, err = r.GetRow()
	require.NoError(t, err)
	require.Equal(t, "s0r1", row[0].Value.String())

	require.True(t, r.EndOfSegment())
	require.False(t, r.End()) // End advances into the second segment

	row, err = r.GetRow()
	require.NoError(t, err)
	require.Equal(t, "s1r0", row[0].Value.String())

	require.True(t, r.End())
	_, err = r.GetRow()
	require.ErrorIs(t, err, errs.ErrEndOfFile)
}

func TestReader_SeekToStart(t *testing.T) {
	r := NewBytesReader(twoColumnFile(t, format.CompressionZlib))

	first := readAllRows(t, r)
	require.True(t, r.End())

	require.NoError(t, r.SeekToStart())
	second := readAllRows(t, r)
	require.Equal(t, first, second)
}

func TestReader_SeekToStartOfSegment(t *testing.T) {
	r := NewBytesReader(twoColumnFile(t, format.CompressionLZ4))

	// Consume one row, then re-decode the segment with a narrower filter.
	_, err := r.GetRow()
	require.NoError(t, err)

	r.SetColumnFilter(1)
	require.NoError(t, r.SeekToStartOfSegment())

	rows := readAllRows(t, r)
	require.Equal(t, [][]Entry{
		{{Column: 1, Value: String("a")}},
		{{Column: 1, Value: String("a")}},
		{{Column: 1, Value: String("b")}},
	}, rows)
}

func TestReader_PeekGet(t *testing.T) {
	r := NewBytesReader(twoColumnFile(t, format.CompressionLZ4))

	// Peek does not consume; repeated peeks agree.
	v, err := r.Peek(1)
	require.NoError(t, err)
	require.Equal(t, "a", v.String())

	again, err := r.Peek(1)
	require.NoError(t, err)
	require.True(t, v.Equal(again))

	v, err = r.Get(1)
	require.NoError(t, err)
	require.Equal(t, "a", v.String())

	v, err = r.Get(1)
	require.NoError(t, err)
	require.Equal(t, "a", v.String())

	v, err = r.Get(1)
	require.NoError(t, err)
	require.Equal(t, "b", v.String())
}

func TestReader_PeekOutsideFilter(t *testing.T) {
	r := NewBytesReader(twoColumnFile(t, format.CompressionLZ4))
	r.SetColumnFilter(2)

	_, err := r.Peek(1)
	require.ErrorIs(t, err, errs.ErrColumnNotSelected)
	_, err = r.Get(1)
	require.ErrorIs(t, err, errs.ErrColumnNotSelected)
}

func TestReader_FilterColumnAbsentFromSegment(t *testing.T) {
	// A column in the filter but absent from the segment reads as null
	// through Peek; End skips a segment only when it holds none of the
	// filter columns.
	data := writeSegments(t, format.CompressionLZ4, [][][]Entry{{
		{{Column: 1, Value: String("only-one")}},
	}})

	r := NewBytesReader(data)
	r.SetColumnFilter(1, 99)
	require.False(t, r.End())

	v, err := r.Peek(99)
	require.NoError(t, err)
	require.True(t, v.IsNull())
}

func TestReader_StreamedMatchesMapped(t *testing.T) {
	data := writeSegments(t, format.CompressionLZ4, [][][]Entry{
		{
			{{Column: 1, Value: String("a")}, {Column: 3, Value: String("b")}},
			{{Column: 1, Value: Null()}, {Column: 3, Value: String("c")}},
		},
		{
			{{Column: 1, Value: String("d")}, {Column: 2, Value: String("e")}},
		},
	})

	path := filepath.Join(t.TempDir(), "streamed.col")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	mapped := readAllRows(t, NewBytesReader(data))

	streamed, err := OpenReader(path)
	require.NoError(t, err)
	defer streamed.Close()

	require.Equal(t, mapped, readAllRows(t, streamed))
	require.Equal(t, int64(len(data)), streamed.Size())
	require.Equal(t, streamed.Size(), streamed.Offset())
}

func TestReader_CorruptMagic(t *testing.T) {
	data := twoColumnFile(t, format.CompressionLZ4)
	data[0] ^= 0x55

	r := NewBytesReader(data)
	require.True(t, r.End())
	require.ErrorIs(t, r.Err(), errs.ErrBadMagic)
}

func TestReader_TruncatedFile(t *testing.T) {
	data := twoColumnFile(t, format.CompressionLZ4)

	r := NewBytesReader(data[:len(data)-3])
	require.True(t, r.End())
	require.ErrorIs(t, r.Err(), errs.ErrTruncatedBlock)
}

func TestReader_UnknownCompressionTag(t *testing.T) {
	data := twoColumnFile(t, format.CompressionLZ4)
	data[4] = 0x3f // compression tag varint follows the 4-byte magic

	r := NewBytesReader(data)
	require.True(t, r.End())
	require.ErrorIs(t, r.Err(), errs.ErrUnknownCompression)
}

package columnfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/arloliu/columnfile/format"
	"github.com/stretchr/testify/require"
)

// writeSegments writes one segment per entry of segments and returns
// the finished file bytes.
func writeSegments(t *testing.T, compression format.CompressionType, segments [][][]Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := NewWriter(&buf, WithCompression(compression))
	require.NoError(t, err)

	for _, segment := range segments {
		for _, row := range segment {
			require.NoError(t, w.PutRow(row))
		}
		require.NoError(t, w.Flush())
	}

	_, err = w.Finalize()
	require.NoError(t, err)

	return buf.Bytes()
}

// readAllRows drains a reader, cloning each row out of the reader's
// reused buffers.
func readAllRows(t *testing.T, r *Reader) [][]Entry {
	t.Helper()

	var rows [][]Entry
	for !r.End() {
		row, err := r.GetRow()
		require.NoError(t, err)
		rows = append(rows, cloneRow(row))
	}
	require.NoError(t, r.Err())

	return rows
}

func cloneRow(row []Entry) []Entry {
	out := make([]Entry, len(row))
	for i, e := range row {
		if e.Value.IsNull() {
			out[i] = Entry{Column: e.Column, Value: Null()}
		} else {
			out[i] = Entry{Column: e.Column, Value: Bytes(append([]byte{}, e.Value.Data()...))}
		}
	}

	return out
}

func TestValue(t *testing.T) {
	require.True(t, Null().IsNull())
	require.Nil(t, Null().Data())

	v := String("hello")
	require.False(t, v.IsNull())
	require.Equal(t, []byte("hello"), v.Data())

	require.True(t, Null().Equal(Null()))
	require.False(t, Null().Equal(String("")))
	require.True(t, String("a").Equal(Bytes([]byte("a"))))
	require.False(t, String("a").Equal(String("b")))

	// The zero value is an empty, non-null byte string.
	var zero Value
	require.False(t, zero.IsNull())
}

func TestColumnID(t *testing.T) {
	require.Equal(t, ColumnID("request.path"), ColumnID("request.path"))
	require.NotEqual(t, ColumnID("request.path"), ColumnID("request.verb"))
}

// sweepDataset builds the 10000-row dataset used by the codec sweep.
func sweepDataset() [][]Entry {
	rows := make([][]Entry, 0, 10000)
	for i := 0; i < 10000; i++ {
		row := []Entry{
			{Column: 1, Value: String(fmt.Sprintf("category-%d", i%7))},
			{Column: 2, Value: String(fmt.Sprintf("%d", i%10))},
		}
		if i%13 == 0 {
			row = append(row, Entry{Column: 3, Value: Null()})
		} else {
			row = append(row, Entry{Column: 3, Value: String(fmt.Sprintf("payload-%d-%d", i, i%97))})
		}
		rows = append(rows, row)
	}

	return rows
}

// digestRows hashes a decoded row sequence into a comparable digest.
func digestRows(rows [][]Entry) [32]byte {
	h := sha256.New()
	var scratch [4]byte
	for _, row := range rows {
		for _, e := range row {
			binary.LittleEndian.PutUint32(scratch[:], e.Column)
			h.Write(scratch[:])
			if e.Value.IsNull() {
				h.Write([]byte{0})
			} else {
				h.Write([]byte{1})
				h.Write(e.Value.Data())
			}
		}
		h.Write([]byte{0xff})
	}

	var digest [32]byte
	copy(digest[:], h.Sum(nil))

	return digest
}

func TestCodecSweep(t *testing.T) {
	// The decoded row stream must be byte-identical no matter which
	// codec wrote the file.
	rows := sweepDataset()

	segments := make([][][]Entry, 0, 10)
	for i := 0; i < len(rows); i += 1000 {
		segments = append(segments, rows[i:i+1000])
	}

	var reference [32]byte
	haveReference := false

	for _, compression := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionSnappy,
		format.CompressionLZ4,
		format.CompressionZlib,
		format.CompressionLZMA,
		format.CompressionZstd,
	} {
		t.Run(compression.String(), func(t *testing.T) {
			data := writeSegments(t, compression, segments)
			decoded := readAllRows(t, NewBytesReader(data))
			require.Len(t, decoded, len(rows))

			digest := digestRows(decoded)
			if !haveReference {
				reference = digest
				haveReference = true
				return
			}
			require.Equal(t, reference, digest)
		})
	}
}

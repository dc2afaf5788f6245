package encoding

import (
	"testing"

	"github.com/arloliu/columnfile/compress"
	"github.com/arloliu/columnfile/errs"
	"github.com/arloliu/columnfile/format"
	"github.com/stretchr/testify/require"
)

// encodeValues runs a sequence of values (nil = null) through a fresh
// encoder and returns the uncompressed stream.
func encodeValues(t *testing.T, values [][]byte) []byte {
	t.Helper()

	codec, err := compress.GetCodec(format.CompressionNone)
	require.NoError(t, err)

	enc := NewFieldEncoder()
	defer enc.Reset()

	for _, v := range values {
		if v == nil {
			enc.PutNull()
		} else {
			enc.Put(v)
		}
	}

	block, err := enc.Finish(codec)
	require.NoError(t, err)

	// Detach from the encoder's pooled buffer.
	return append([]byte{}, block...)
}

// decodeValues drains a decoder, returning nil for null values.
func decodeValues(t *testing.T, block []byte) [][]byte {
	t.Helper()

	dec := NewFieldDecoder(block)
	var out [][]byte
	for !dec.End() {
		data, isNull, err := dec.Get()
		require.NoError(t, err)

		if isNull {
			out = append(out, nil)
		} else {
			out = append(out, append([]byte{}, data...))
		}
	}

	return out
}

func TestField_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		values [][]byte
	}{
		{
			name:   "plain values",
			values: [][]byte{[]byte("a"), []byte("b"), []byte("c")},
		},
		{
			name:   "repeated run",
			values: [][]byte{[]byte("x"), []byte("x"), []byte("x"), []byte("y")},
		},
		{
			name:   "nulls interleaved",
			values: [][]byte{[]byte("x"), nil, nil, []byte("y"), nil},
		},
		{
			name:   "all nulls",
			values: [][]byte{nil, nil, nil},
		},
		{
			name:   "empty value is not null",
			values: [][]byte{{}, nil, {}},
		},
		{
			name:   "value repeats after gap",
			values: [][]byte{[]byte("a"), []byte("b"), []byte("a")},
		},
		{
			name:   "binary values",
			values: [][]byte{{0x00, 0x01}, {0x00, 0x01, 0x02}, {0xff}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := encodeValues(t, tt.values)
			decoded := decodeValues(t, block)

			require.Len(t, decoded, len(tt.values))
			for i, want := range tt.values {
				if want == nil {
					require.Nil(t, decoded[i], "value %d", i)
				} else {
					require.Equal(t, want, decoded[i], "value %d", i)
				}
			}
		})
	}
}

func TestField_SharedPrefixLayout(t *testing.T) {
	// "aaa","aab","aac","aad": one full value, then suffix-only entries
	// sharing a 2-byte prefix.
	block := encodeValues(t, [][]byte{
		[]byte("aaa"), []byte("aab"), []byte("aac"), []byte("aad"),
	})

	want := []byte{
		0, flagValue, 0, 3, 'a', 'a', 'a',
		0, flagValue, 2, 1, 'b',
		0, flagValue, 2, 1, 'c',
		0, flagValue, 2, 1, 'd',
	}
	require.Equal(t, want, block)
}

func TestField_RunLengthLayout(t *testing.T) {
	values := make([][]byte, 0, 7)
	for i := 0; i < 5; i++ {
		values = append(values, []byte("same"))
	}
	values = append(values, nil, nil)

	block := encodeValues(t, values)

	want := []byte{
		4, flagValue, 0, 4, 's', 'a', 'm', 'e',
		1, flagNull,
	}
	require.Equal(t, want, block)
}

func TestField_PrefixSurvivesNullRun(t *testing.T) {
	// The shared prefix is computed against the previously committed
	// non-null value, so a null run in between must not reset it.
	block := encodeValues(t, [][]byte{
		[]byte("prefix-one"), nil, []byte("prefix-two"),
	})

	decoded := decodeValues(t, block)
	require.Equal(t, []byte("prefix-one"), decoded[0])
	require.Nil(t, decoded[1])
	require.Equal(t, []byte("prefix-two"), decoded[2])

	// Layout: second value reuses the 7-byte "prefix-" prefix.
	want := []byte{
		0, flagValue, 0, 10, 'p', 'r', 'e', 'f', 'i', 'x', '-', 'o', 'n', 'e',
		0, flagNull,
		0, flagValue, 7, 3, 't', 'w', 'o',
	}
	require.Equal(t, want, block)
}

func TestField_EmptyBlock(t *testing.T) {
	block := encodeValues(t, nil)
	require.Empty(t, block)

	dec := NewFieldDecoder(block)
	require.True(t, dec.End())
}

func TestField_PeekStable(t *testing.T) {
	block := encodeValues(t, [][]byte{[]byte("abc"), []byte("abd")})
	dec := NewFieldDecoder(block)

	first, isNull, err := dec.Peek()
	require.NoError(t, err)
	require.False(t, isNull)

	second, isNull, err := dec.Peek()
	require.NoError(t, err)
	require.False(t, isNull)
	require.Equal(t, first, second)

	got, _, err := dec.Get()
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

func TestField_EncoderLenAndSize(t *testing.T) {
	enc := NewFieldEncoder()
	defer enc.Reset()

	require.Equal(t, 0, enc.Len())

	enc.Put([]byte("abc"))
	enc.Put([]byte("abc"))
	enc.PutNull()
	require.Equal(t, 3, enc.Len())

	// The pending null run is not committed yet, but the first run is.
	require.Positive(t, enc.Size())
}

func TestField_DecoderCorruption(t *testing.T) {
	tests := []struct {
		name  string
		block []byte
		want  error
	}{
		{
			name:  "missing run flag",
			block: []byte{0},
			want:  errs.ErrTruncatedBlock,
		},
		{
			name:  "invalid run flag",
			block: []byte{0, 0x7e},
			want:  errs.ErrInvalidRunFlag,
		},
		{
			name:  "truncated suffix",
			block: []byte{0, flagValue, 0, 5, 'a', 'b'},
			want:  errs.ErrTruncatedBlock,
		},
		{
			name:  "prefix beyond previous value",
			block: []byte{0, flagValue, 3, 1, 'x'},
			want:  errs.ErrInvalidPrefix,
		},
		{
			name:  "varint overflow",
			block: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01},
			want:  errs.ErrBadVarint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewFieldDecoder(tt.block)
			_, _, err := dec.Get()
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestField_GetPastEnd(t *testing.T) {
	block := encodeValues(t, [][]byte{[]byte("only")})
	dec := NewFieldDecoder(block)

	_, _, err := dec.Get()
	require.NoError(t, err)
	require.True(t, dec.End())

	_, _, err = dec.Get()
	require.ErrorIs(t, err, errs.ErrTruncatedBlock)
}

// Package columnfile implements a columnar file format for write-once /
// read-many analytical workloads, together with a writer, streamed and
// memory-mapped readers, and a streaming select engine.
//
// A file is a sequence of self-contained segments. Each segment stores,
// for every column present, an independently encoded stream of values;
// a value is either a byte string or a null marker. Column streams are
// run-length + shared-prefix encoded and block-compressed, so queries
// that touch few columns decode only those columns' blocks.
//
// # Writing
//
//	w, _ := columnfile.OpenWriter("events.col")
//	w.PutRow([]columnfile.Entry{
//	    {Column: 1, Value: columnfile.String("GET")},
//	    {Column: 2, Value: columnfile.String("/index.html")},
//	})
//	if w.PendingSize() > 4<<20 {
//	    w.Flush()
//	}
//	w.Close()
//
// # Reading
//
//	r := columnfile.NewBytesReader(data)
//	r.SetColumnFilter(2)
//	for !r.End() {
//	    row, _ := r.GetRow()
//	    ...
//	}
//
// # Selecting
//
//	sel := columnfile.NewSelect(r)
//	sel.AddSelection(2)
//	sel.AddFilter(1, func(v columnfile.Value) (bool, error) {
//	    return !v.IsNull() && string(v.Data()) == "GET", nil
//	})
//	err := sel.Execute(region.NewPool(0), func(row []columnfile.Entry) error {
//	    ...
//	    return nil
//	})
//
// Writers, readers and selects are not safe for concurrent use by
// multiple goroutines; distinct instances over distinct files are
// independent.
package columnfile

import (
	"github.com/arloliu/columnfile/internal/hash"
)

// Value is either null or a finite byte string. The zero Value is an
// empty, non-null byte string.
type Value struct {
	data []byte
	null bool
}

// Null returns the null value.
func Null() Value {
	return Value{null: true}
}

// Bytes returns a non-null value wrapping data. The bytes are not
// copied; writers copy what they need during the call.
func Bytes(data []byte) Value {
	return Value{data: data}
}

// String returns a non-null value holding the bytes of s.
func String(s string) Value {
	return Value{data: []byte(s)}
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.null
}

// Data returns the value's bytes, nil for null values.
func (v Value) Data() []byte {
	return v.data
}

// Equal reports whether two values are both null or hold equal bytes.
func (v Value) Equal(other Value) bool {
	if v.null || other.null {
		return v.null == other.null
	}

	return string(v.data) == string(other.data)
}

func (v Value) String() string {
	if v.null {
		return "<null>"
	}

	return string(v.data)
}

// Entry pairs a column id with a value. Rows are slices of entries; on
// output they are always ordered by ascending column id.
type Entry struct {
	Column uint32
	Value  Value
}

// ColumnID hashes a column name to a 32-bit column id, for callers that
// address columns by name rather than managing ids themselves.
func ColumnID(name string) uint32 {
	return hash.ColumnID(name)
}

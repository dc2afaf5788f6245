package columnfile

import (
	"fmt"
	"sort"

	"github.com/arloliu/columnfile/region"
)

// Predicate tests one column's value; it sees Null for rows where the
// column is null, including rows that omitted it when written. A
// segment that holds no stream for the column yields no survivors and
// the predicate is not called for its rows. Errors propagate out of
// Execute unchanged.
type Predicate func(Value) (bool, error)

// Filter pairs a column id with a predicate. A row survives only if
// every filter's predicate accepts its value for that column.
type Filter struct {
	Column uint32
	Pred   Predicate
}

// Select streams the rows of a column file that pass a list of column
// filters, materializing only a chosen set of columns per surviving
// row.
//
// Filters are applied column by column in ascending column id order, so
// only the filter columns' streams are decoded until the surviving row
// set is small; the remaining selected columns are materialized in one
// final pass per segment. Values that must outlive a column pass are
// copied into a per-segment region and released when the segment
// finishes.
type Select struct {
	reader *Reader

	selection map[uint32]struct{}
	filters   []Filter
}

// NewSelect creates a select over a row reader positioned at the start
// of its input.
func NewSelect(reader *Reader) *Select {
	return &Select{
		reader:    reader,
		selection: make(map[uint32]struct{}),
	}
}

// AddSelection adds a column to materialize for every surviving row.
func (s *Select) AddSelection(column uint32) {
	s.selection[column] = struct{}{}
}

// AddFilter adds a predicate on a column. Multiple predicates may
// reference the same column; they are ANDed.
func (s *Select) AddFilter(column uint32, pred Predicate) {
	s.filters = append(s.filters, Filter{Column: column, Pred: pred})
}

// SelectRows is the one-call form of Select: it applies filters over
// the reader and invokes callback with the selected columns of every
// surviving row.
func SelectRows(
	reader *Reader,
	selection []uint32,
	filters []Filter,
	pool *region.Pool,
	callback func(row []Entry) error,
) error {
	sel := NewSelect(reader)
	for _, column := range selection {
		sel.AddSelection(column)
	}
	for _, f := range filters {
		sel.AddFilter(f.Column, f.Pred)
	}

	return sel.Execute(pool, callback)
}

// rowCache is one surviving row of the current segment: its
// segment-local index plus the column values materialized so far.
// Values are region-backed copies.
type rowCache struct {
	index uint32
	data  []Entry
}

// Execute runs the query and invokes callback once per surviving row
// with the row's projected entries in ascending column id order. The
// entries borrow per-segment memory; the callback must copy anything it
// keeps.
//
// Errors from predicates or the callback abort the scan and propagate
// unchanged; the current segment's region is released first.
func (s *Select) Execute(pool *region.Pool, callback func(row []Entry) error) error {
	if len(s.filters) == 0 {
		return s.executeUnfiltered(callback)
	}

	// Sort filters by column id; same-column predicates stay in
	// insertion order and form one contiguous range.
	filters := make([]Filter, len(s.filters))
	copy(filters, s.filters)
	sort.SliceStable(filters, func(i, j int) bool { return filters[i].Column < filters[j].Column })

	// Columns that appear in the selection but not in any filter; these
	// are materialized in a final pass over each segment's survivors.
	unfiltered := make(map[uint32]struct{}, len(s.selection))
	for column := range s.selection {
		unfiltered[column] = struct{}{}
	}
	for _, f := range filters {
		delete(unfiltered, f.Column)
	}
	unfilteredColumns := sortedColumns(unfiltered)

	var selected []rowCache

	for {
		done, err := s.selectSegment(pool, filters, unfilteredColumns, &selected, callback)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// executeUnfiltered is the fast path: no filters, every row survives.
func (s *Select) executeUnfiltered(callback func(row []Entry) error) error {
	s.reader.SetColumnFilter(sortedColumns(s.selection)...)

	// An empty selection still visits every row; the callback sees an
	// empty entry list per row.
	emitEmpty := len(s.selection) == 0

	for !s.reader.End() {
		row, err := s.reader.GetRow()
		if err != nil {
			return err
		}

		if emitEmpty {
			row = row[:0]
		}
		if err := callback(row); err != nil {
			return err
		}
	}

	return s.reader.Err()
}

// selectSegment filters and projects one segment. It reports done=true
// when the input is exhausted.
func (s *Select) selectSegment(
	pool *region.Pool,
	filters []Filter,
	unfilteredColumns []uint32,
	selected *[]rowCache,
	callback func(row []Entry) error,
) (done bool, err error) {
	*selected = (*selected)[:0]

	// Holds temporary copies of surviving values for this segment.
	reg := pool.Get()
	defer reg.Release()

	filterIdx := 0
	for {
		field := filters[filterIdx].Column

		s.reader.SetColumnFilter(field)
		if filterIdx == 0 {
			// The first filter column positions the reader: End advances
			// into the next segment that matters.
			if s.reader.End() {
				return true, s.reader.Err()
			}
		} else {
			if err := s.reader.SeekToStartOfSegment(); err != nil {
				return false, err
			}
		}

		_, filterSelected := s.selection[field]

		// All predicates on this column form a contiguous range.
		rangeEnd := filterIdx + 1
		for rangeEnd < len(filters) && filters[rangeEnd].Column == field {
			rangeEnd++
		}

		in, out := 0, 0

		// Walk every value of this column in the current segment. For
		// later filter columns, rows that are not in the survivor list
		// are consumed without testing.
		for rowIdx := uint32(0); !s.reader.EndOfSegment(); rowIdx++ {
			row, err := s.reader.GetRow()
			if err != nil {
				return false, err
			}

			if filterIdx > 0 {
				if in >= len(*selected) || rowIdx < (*selected)[in].index {
					continue
				}
			}

			value := Null()
			if len(row) == 1 {
				if row[0].Column != field {
					return false, fmt.Errorf("columnfile: unexpected column %d while filtering %d", row[0].Column, field)
				}
				value = row[0].Value
			}

			match := true
			for i := filterIdx; i < rangeEnd; i++ {
				ok, err := filters[i].Pred(value)
				if err != nil {
					return false, err
				}
				if !ok {
					match = false
					break
				}
			}

			if !match {
				if filterIdx > 0 {
					in++ // survivor dropped
				}
				continue
			}

			if filterIdx == 0 {
				cache := rowCache{index: rowIdx}
				if filterSelected {
					cache.data = append(cache.data, Entry{Column: field, Value: dupValue(reg, value)})
				}
				*selected = append(*selected, cache)
			} else {
				if out != in {
					(*selected)[out] = (*selected)[in]
				}
				if filterSelected {
					(*selected)[out].data = append((*selected)[out].data, Entry{Column: field, Value: dupValue(reg, value)})
				}
				out++
				in++
			}
		}

		if filterIdx > 0 {
			*selected = (*selected)[:out]
		}

		filterIdx = rangeEnd
		if len(*selected) == 0 || filterIdx >= len(filters) {
			break
		}
	}

	if len(*selected) == 0 {
		return false, nil
	}

	if len(unfilteredColumns) > 0 {
		if err := s.projectSegment(reg, unfilteredColumns, *selected); err != nil {
			return false, err
		}
	}

	for i := range *selected {
		row := (*selected)[i].data
		sort.Slice(row, func(a, b int) bool { return row[a].Column < row[b].Column })

		if err := callback(row); err != nil {
			return false, err
		}
	}

	return false, nil
}

// projectSegment walks the current segment once more with the
// unfiltered selection columns, appending their values to each
// survivor.
func (s *Select) projectSegment(reg *region.Region, columns []uint32, selected []rowCache) error {
	s.reader.SetColumnFilter(columns...)
	if err := s.reader.SeekToStartOfSegment(); err != nil {
		return err
	}

	sr := 0
	for rowIdx := uint32(0); !s.reader.EndOfSegment(); rowIdx++ {
		if sr == len(selected) {
			break
		}

		row, err := s.reader.GetRow()
		if err != nil {
			return err
		}

		if rowIdx < selected[sr].index {
			continue
		}
		if rowIdx != selected[sr].index {
			return fmt.Errorf("columnfile: projection out of step: row %d, survivor %d", rowIdx, selected[sr].index)
		}

		for _, e := range row {
			selected[sr].data = append(selected[sr].data, Entry{Column: e.Column, Value: dupValue(reg, e.Value)})
		}
		sr++
	}

	// Drain the rest of the segment so the reader can advance cleanly.
	for !s.reader.EndOfSegment() {
		if _, err := s.reader.GetRow(); err != nil {
			return err
		}
	}

	return nil
}

// dupValue copies a borrowed value into the segment's region; nulls
// need no memory.
func dupValue(reg *region.Region, v Value) Value {
	if v.IsNull() {
		return Null()
	}

	return Bytes(reg.Dup(v.Data()))
}

func sortedColumns(set map[uint32]struct{}) []uint32 {
	columns := make([]uint32, 0, len(set))
	for column := range set {
		columns = append(columns, column)
	}
	sort.Slice(columns, func(i, j int) bool { return columns[i] < columns[j] })

	return columns
}

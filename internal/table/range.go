package table

import (
	"fmt"
	"iter"
	"slices"

	"github.com/roach88/cellsync/internal/value"
)

// Order selects the enumeration order of a CellRange.
type Order int

const (
	// RowMajor walks every column of a row before the next row.
	RowMajor Order = iota
	// ColumnMajor walks every row of a column before the next column.
	ColumnMajor
)

func (o Order) String() string {
	if o == ColumnMajor {
		return "column-major"
	}
	return "row-major"
}

// rowsOf returns the occupied indexes of cols within the bounds of a and b,
// ordered from a towards b.
func (t *Table) rowsOf(cols []*column, a, b int64) []int64 {
	lo, hi := min(a, b), max(a, b)
	t.mu.RLock()
	var rows []int64
	for _, c := range cols {
		rows = append(rows, c.indexesIn(lo, hi)...)
	}
	t.mu.RUnlock()
	slices.Sort(rows)
	rows = slices.Compact(rows)
	if a > b {
		slices.Reverse(rows)
	}
	return rows
}

func containsCol(cols []*column, c *column) bool {
	return slices.Contains(cols, c)
}

func between(i, a, b int64) bool {
	return i >= min(a, b) && i <= max(a, b)
}

// walk yields the non-Unit cells of cols x rows in the given order.
func (t *Table) walk(cols []*column, rows []int64, order Order) iter.Seq[CellRef] {
	return func(yield func(CellRef) bool) {
		emit := func(c *column, i int64) bool {
			if value.IsUnit(t.peek(c, i)) {
				return true
			}
			return yield(CellRef{table: t, col: c, index: i})
		}
		if order == ColumnMajor {
			for _, c := range cols {
				for _, i := range rows {
					if !emit(c, i) {
						return
					}
				}
			}
			return
		}
		for _, i := range rows {
			for _, c := range cols {
				if !emit(c, i) {
					return
				}
			}
		}
	}
}

// CellRange is the rectangle spanned by two cells. Membership is resolved
// against the current column positions; enumeration runs from the first
// endpoint towards the second.
type CellRange struct {
	from, to CellRef
	order    Order
}

func (r CellRange) Table() *Table { return r.from.table }
func (r CellRange) From() CellRef { return r.from }
func (r CellRange) To() CellRef   { return r.to }
func (r CellRange) Order() Order  { return r.order }

// InOrder returns a copy of r enumerated in order o.
func (r CellRange) InOrder(o Order) CellRange {
	r.order = o
	return r
}

func (r CellRange) columns() []*column {
	if r.from.table != r.to.table {
		return nil
	}
	return r.from.table.columnsBetween(r.from.col, r.to.col)
}

func (r CellRange) Cells() iter.Seq[CellRef] {
	cols := r.columns()
	t := r.from.table
	return t.walk(cols, t.rowsOf(cols, r.from.index, r.to.index), r.order)
}

func (r CellRange) Covers(c CellRef) bool {
	if c.table != r.from.table || !between(c.index, r.from.index, r.to.index) {
		return false
	}
	return containsCol(r.columns(), c.col)
}

func (r CellRange) String() string {
	return fmt.Sprintf("%s[%s,%d..%s,%d]", r.from.table, r.from.col.header, r.from.index, r.to.col.header, r.to.index)
}

// Or unions r with more references.
func (r CellRange) Or(refs ...Ref) Cells { return Union(append([]Ref{r}, refs...)...) }

// ColumnRange spans whole columns between two endpoints.
type ColumnRange struct {
	from, to ColumnRef
}

func (r ColumnRange) Table() *Table { return r.from.table }

func (r ColumnRange) columns() []*column {
	if r.from.table != r.to.table {
		return nil
	}
	return r.from.table.columnsBetween(r.from.col, r.to.col)
}

func (r ColumnRange) Cells() iter.Seq[CellRef] {
	return func(yield func(CellRef) bool) {
		for _, c := range r.columns() {
			for cell := range (ColumnRef{table: r.from.table, col: c}).Cells() {
				if !yield(cell) {
					return
				}
			}
		}
	}
}

func (r ColumnRange) Covers(c CellRef) bool {
	return c.table == r.from.table && containsCol(r.columns(), c.col)
}

func (r ColumnRange) String() string {
	return fmt.Sprintf("%s[%s..%s]", r.from.table, r.from.col.header, r.to.col.header)
}

// Or unions r with more references.
func (r ColumnRange) Or(refs ...Ref) Cells { return Union(append([]Ref{r}, refs...)...) }

// RowRange spans whole rows between two endpoints.
type RowRange struct {
	from, to RowRef
}

func (r RowRange) Table() *Table { return r.from.table }

func (r RowRange) bounds() (int64, int64, bool) {
	if r.from.table != r.to.table {
		return 0, 0, false
	}
	a, ok := r.from.Resolve()
	if !ok {
		return 0, 0, false
	}
	b, ok := r.to.Resolve()
	return a, b, ok
}

func (r RowRange) Cells() iter.Seq[CellRef] {
	a, b, ok := r.bounds()
	if !ok {
		return func(func(CellRef) bool) {}
	}
	t := r.from.table
	cols := t.columnsSnapshot()
	return t.walk(cols, t.rowsOf(cols, a, b), RowMajor)
}

func (r RowRange) Covers(c CellRef) bool {
	a, b, ok := r.bounds()
	return ok && c.table == r.from.table && between(c.index, a, b)
}

func (r RowRange) String() string {
	return fmt.Sprintf("%s[rows %d..%d]", r.from.table, r.from.index, r.to.index)
}

// Or unions r with more references.
func (r RowRange) Or(refs ...Ref) Cells { return Union(append([]Ref{r}, refs...)...) }

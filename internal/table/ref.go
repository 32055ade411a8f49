package table

import (
	"context"
	"fmt"
	"iter"

	"github.com/roach88/cellsync/internal/value"
)

// Ref is a reference descriptor: a cell, column, row, range, whole table or
// union. It holds no data; Cells and Covers re-resolve against the live
// table on every call.
type Ref interface {
	// Table returns the table the reference points into.
	Table() *Table

	// Cells iterates the referenced non-Unit cells in reference order.
	Cells() iter.Seq[CellRef]

	// Covers reports whether c falls inside the reference right now.
	Covers(c CellRef) bool

	String() string
}

// peek reads a cell without marking it touched.
func (t *Table) peek(c *column, i int64) value.Value {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return c.get(i)
}

func (t *Table) sortedOf(c *column) []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]int64, len(c.sorted))
	copy(out, c.sorted)
	return out
}

// CellRef addresses one (column, row) coordinate. CellRefs to the same
// coordinate of the same table are == equal and usable as map keys; refs
// into different tables never are.
type CellRef struct {
	table *Table
	col   *column
	index int64
}

// Cell returns a reference to (h, i). The column is created on first touch.
func (t *Table) Cell(h Header, i int64) CellRef {
	return CellRef{table: t, col: t.column(h), index: i}
}

func (c CellRef) Table() *Table  { return c.table }
func (c CellRef) Header() Header { return c.col.header }
func (c CellRef) Index() int64   { return c.index }

// IsZero reports whether c is the zero CellRef.
func (c CellRef) IsZero() bool { return c.table == nil }

// Get reads the cell.
func (c CellRef) Get() value.Value { return c.table.Get(c.col.header, c.index) }

// Set writes x into the cell.
func (c CellRef) Set(ctx context.Context, x any) error {
	v, err := value.Of(x)
	if err != nil {
		return err
	}
	return c.table.write(ctx, c, v)
}

// Clear resets the cell to Unit.
func (c CellRef) Clear(ctx context.Context) error {
	return c.table.write(ctx, c, value.Unit{})
}

// Contains reports whether the cell was ever touched.
func (c CellRef) Contains() bool { return c.table.Contains(c.col.header, c.index) }

func (c CellRef) Cells() iter.Seq[CellRef] {
	return func(yield func(CellRef) bool) {
		if !value.IsUnit(c.table.peek(c.col, c.index)) {
			yield(c)
		}
	}
}

func (c CellRef) Covers(o CellRef) bool { return c == o }

func (c CellRef) String() string {
	return fmt.Sprintf("%s[%s,%d]", c.table, c.col.header, c.index)
}

// Column returns the column of c.
func (c CellRef) Column() ColumnRef { return ColumnRef{table: c.table, col: c.col} }

// Row returns the row of c.
func (c CellRef) Row() RowRef { return RowRef{table: c.table, index: c.index} }

// To returns the range from c to other, in that direction.
func (c CellRef) To(other CellRef) CellRange { return CellRange{from: c, to: other} }

// Or unions c with more references.
func (c CellRef) Or(refs ...Ref) Cells { return Union(append([]Ref{c}, refs...)...) }

// Number returns the cell as a numeric value, or InvalidCellError when the
// cell is absent or holds a non-numeric value.
func (c CellRef) Number() (value.Numeric, error) {
	v := c.Get()
	n, ok := v.(value.Numeric)
	if !ok {
		msg := "cell holds a non-numeric value"
		if value.IsUnit(v) {
			msg = "cell is empty"
		}
		return nil, &InvalidCellError{Cell: c.String(), Value: v, Message: msg}
	}
	return n, nil
}

func (c CellRef) arith(op value.Op, x any) (value.Value, error) {
	left, err := c.Number()
	if err != nil {
		return nil, err
	}
	var right value.Value
	if other, ok := x.(CellRef); ok {
		if right, err = other.Number(); err != nil {
			return nil, err
		}
	} else if right, err = value.Of(x); err != nil {
		return nil, err
	}
	return value.Apply(op, left, right)
}

// Add returns cell + x. x may be a CellRef.
func (c CellRef) Add(x any) (value.Value, error) { return c.arith(value.OpAdd, x) }

// Sub returns cell - x. x may be a CellRef.
func (c CellRef) Sub(x any) (value.Value, error) { return c.arith(value.OpSub, x) }

// Mul returns cell * x. x may be a CellRef.
func (c CellRef) Mul(x any) (value.Value, error) { return c.arith(value.OpMul, x) }

// Div returns cell / x. x may be a CellRef.
func (c CellRef) Div(x any) (value.Value, error) { return c.arith(value.OpDiv, x) }

// ColumnRef addresses a whole column.
type ColumnRef struct {
	table *Table
	col   *column
}

// Column returns a reference to the column for h, creating it on first
// touch.
func (t *Table) Column(h Header) ColumnRef {
	return ColumnRef{table: t, col: t.column(h)}
}

func (c ColumnRef) Table() *Table  { return c.table }
func (c ColumnRef) Header() Header { return c.col.header }

// Position returns the current position of the column in its table.
func (c ColumnRef) Position() int { return c.table.position(c.col) }

// Cell returns the cell of this column at row i.
func (c ColumnRef) Cell(i int64) CellRef { return CellRef{table: c.table, col: c.col, index: i} }

// Indexes returns the occupied rows of the column, ascending.
func (c ColumnRef) Indexes() []int64 { return c.table.sortedOf(c.col) }

// Find resolves i against the occupied rows of this column.
func (c ColumnRef) Find(i int64, rel IndexRelation) (int64, bool) {
	return findIndex(c.Indexes(), i, rel)
}

func (c ColumnRef) Cells() iter.Seq[CellRef] {
	return func(yield func(CellRef) bool) {
		for _, i := range c.Indexes() {
			if value.IsUnit(c.table.peek(c.col, i)) {
				continue
			}
			if !yield(c.Cell(i)) {
				return
			}
		}
	}
}

func (c ColumnRef) Covers(o CellRef) bool { return o.table == c.table && o.col == c.col }

func (c ColumnRef) String() string { return fmt.Sprintf("%s[%s]", c.table, c.col.header) }

// MoveBefore places the column immediately before other. Cell data is not
// touched and no listener fires.
func (c ColumnRef) MoveBefore(other ColumnRef) error {
	if other.table != c.table {
		return &InvalidTableError{Table: c.table.String(), Message: "cannot move relative to a column of another table"}
	}
	return c.table.move(c.col, other.col, false)
}

// MoveAfter places the column immediately after other.
func (c ColumnRef) MoveAfter(other ColumnRef) error {
	if other.table != c.table {
		return &InvalidTableError{Table: c.table.String(), Message: "cannot move relative to a column of another table"}
	}
	return c.table.move(c.col, other.col, true)
}

// To returns the column range from c to other.
func (c ColumnRef) To(other ColumnRef) ColumnRange { return ColumnRange{from: c, to: other} }

// Or unions c with more references.
func (c ColumnRef) Or(refs ...Ref) Cells { return Union(append([]Ref{c}, refs...)...) }

// RowRef addresses a row, either literally (At) or as the nearest occupied
// row in a direction.
type RowRef struct {
	table *Table
	index int64
	rel   IndexRelation
}

// Row returns a reference to row i.
func (t *Table) Row(i int64) RowRef { return RowRef{table: t, index: i} }

// RowAt returns a reference resolving i with rel at every access.
func (t *Table) RowAt(i int64, rel IndexRelation) RowRef {
	return RowRef{table: t, index: i, rel: rel}
}

func (r RowRef) Table() *Table           { return r.table }
func (r RowRef) Index() int64            { return r.index }
func (r RowRef) Relation() IndexRelation { return r.rel }

// Resolve returns the concrete row index. At resolves to the index itself,
// occupied or not.
func (r RowRef) Resolve() (int64, bool) {
	if r.rel == At {
		return r.index, true
	}
	return r.table.FindIndex(r.index, r.rel)
}

// Cell returns the cell of this row in column h.
func (r RowRef) Cell(h Header) CellRef {
	i, ok := r.Resolve()
	if !ok {
		i = r.index
	}
	return r.table.Cell(h, i)
}

func (r RowRef) Cells() iter.Seq[CellRef] {
	return func(yield func(CellRef) bool) {
		i, ok := r.Resolve()
		if !ok {
			return
		}
		for _, col := range r.table.columnsSnapshot() {
			if value.IsUnit(r.table.peek(col, i)) {
				continue
			}
			if !yield(CellRef{table: r.table, col: col, index: i}) {
				return
			}
		}
	}
}

func (r RowRef) Covers(o CellRef) bool {
	if o.table != r.table {
		return false
	}
	i, ok := r.Resolve()
	return ok && o.index == i
}

func (r RowRef) String() string {
	if r.rel == At {
		return fmt.Sprintf("%s[row %d]", r.table, r.index)
	}
	return fmt.Sprintf("%s[row %s %d]", r.table, r.rel, r.index)
}

// To returns the row range from r to other.
func (r RowRef) To(other RowRef) RowRange { return RowRange{from: r, to: other} }

// Or unions r with more references.
func (r RowRef) Or(refs ...Ref) Cells { return Union(append([]Ref{r}, refs...)...) }

// TableRef addresses every cell of a table.
type TableRef struct {
	table *Table
}

// All returns a reference to the whole table.
func (t *Table) All() TableRef { return TableRef{table: t} }

func (r TableRef) Table() *Table { return r.table }

func (r TableRef) Cells() iter.Seq[CellRef] {
	return func(yield func(CellRef) bool) {
		for _, col := range r.table.columnsSnapshot() {
			for _, i := range r.table.sortedOf(col) {
				if value.IsUnit(r.table.peek(col, i)) {
					continue
				}
				if !yield(CellRef{table: r.table, col: col, index: i}) {
					return
				}
			}
		}
	}
}

func (r TableRef) Covers(o CellRef) bool { return o.table == r.table }

func (r TableRef) String() string { return r.table.String() + "[*]" }

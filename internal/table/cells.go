package table

import (
	"iter"
	"strings"

	"github.com/roach88/cellsync/internal/value"
)

// Cells is a union of references. Iteration concatenates the members, and a
// listener bound to a union is matched member by member, so overlapping
// members deliver one event each.
type Cells struct {
	members []Ref
}

// Union combines refs. Nested unions are flattened.
func Union(refs ...Ref) Cells {
	var out Cells
	for _, r := range refs {
		if u, ok := r.(Cells); ok {
			out.members = append(out.members, u.members...)
			continue
		}
		out.members = append(out.members, r)
	}
	return out
}

// Members returns the flattened member references.
func (u Cells) Members() []Ref { return append([]Ref(nil), u.members...) }

func (u Cells) Table() *Table {
	if len(u.members) == 0 {
		return nil
	}
	return u.members[0].Table()
}

func (u Cells) Cells() iter.Seq[CellRef] {
	return func(yield func(CellRef) bool) {
		for _, m := range u.members {
			for c := range m.Cells() {
				if !yield(c) {
					return
				}
			}
		}
	}
}

func (u Cells) Covers(c CellRef) bool {
	for _, m := range u.members {
		if m.Covers(c) {
			return true
		}
	}
	return false
}

func (u Cells) String() string {
	parts := make([]string, len(u.members))
	for i, m := range u.members {
		parts[i] = m.String()
	}
	return strings.Join(parts, " | ")
}

// Or unions u with more references.
func (u Cells) Or(refs ...Ref) Cells { return Union(append([]Ref{u}, refs...)...) }

// Materialize captures the cells currently covered by ref. The result does
// not follow later changes to the table.
func Materialize(ref Ref) []CellRef {
	var out []CellRef
	for c := range ref.Cells() {
		out = append(out, c)
	}
	return out
}

// Values captures the values currently covered by ref, in reference order.
func Values(ref Ref) []value.Value {
	var out []value.Value
	for c := range ref.Cells() {
		out = append(out, c.table.peek(c.col, c.index))
	}
	return out
}

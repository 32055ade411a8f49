package table

import "github.com/roach88/cellsync/internal/value"

// change is one cell whose live value differs from old.
type change struct {
	cell CellRef
	old  value.Value
}

// snapshots builds the pass pair: newT is a clone of live storage and oldT
// is newT with every changed cell put back to its previous value. Both are
// ordinary tables with empty registries, shared by every listener of the
// pass.
func (t *Table) snapshots(changes []change) (oldT, newT *Table) {
	newT = t.Clone()
	oldT = newT.Clone()
	for _, ch := range changes {
		oldT.store(oldT.column(ch.cell.col.header), ch.cell.index, ch.old)
	}
	return oldT, newT
}

// lookup reads (h, i) without creating the column or touching the cell.
func (t *Table) lookup(h Header, i int64) value.Value {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.byHeader[h]
	if !ok {
		return value.Unit{}
	}
	return c.get(i)
}

package table

import "github.com/roach88/cellsync/internal/value"

// Pass is one dispatch over a set of changed cells. Every listener notified
// in the pass receives the same Pass and the same snapshot pair, so writes a
// listener makes to OldTable or NewTable are seen by the listeners after it.
// Snapshot writes never reach the live table.
type Pass struct {
	table    *Table
	token    string
	replay   bool
	oldT     *Table
	newT     *Table
	changes  []change
	listener *Listener
}

// Table returns the live table the pass belongs to.
func (p *Pass) Table() *Table { return p.table }

// Token identifies the pass in logs and journals.
func (p *Pass) Token() string { return p.token }

// Replay reports whether the pass is the history replay of a new listener.
func (p *Pass) Replay() bool { return p.replay }

// OldTable is the snapshot of values before the pass.
func (p *Pass) OldTable() *Table { return p.oldT }

// NewTable is the snapshot of values after the mutation that started the
// pass.
func (p *Pass) NewTable() *Table { return p.newT }

// Listener returns the listener currently being notified.
func (p *Pass) Listener() *Listener { return p.listener }

// Old reads c from the old snapshot.
func (p *Pass) Old(c CellRef) value.Value { return p.oldT.lookup(c.col.header, c.index) }

// New reads c from the new snapshot.
func (p *Pass) New(c CellRef) value.Value { return p.newT.lookup(c.col.header, c.index) }

// Len returns the number of changed cells in the pass.
func (p *Pass) Len() int { return len(p.changes) }

package table

import (
	"context"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/cellsync/internal/value"
)

// DefaultMaxSteps is the default number of dispatch passes one top-level call
// may run. It bounds convergent AllowLoop chains that fail to converge.
const DefaultMaxSteps = 100_000

// PassTokenGenerator names dispatch passes.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type PassTokenGenerator interface {
	Generate() string
}

// Option configures a Table.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	maxSteps   int
	passTokens PassTokenGenerator
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMaxSteps sets the pass quota for one top-level call.
//
// Default: 100000 passes (DefaultMaxSteps).
func WithMaxSteps(n int) Option {
	return func(o *options) {
		o.maxSteps = n
	}
}

// WithPassTokens sets the generator for pass tokens.
func WithPassTokens(g PassTokenGenerator) Option {
	return func(o *options) {
		o.passTokens = g
	}
}

func buildOptions(opts []Option) options {
	o := options{
		maxSteps:   DefaultMaxSteps,
		passTokens: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Table is a sparse grid of columns and rows with its own listener registry.
//
// Thread-safety model:
//   - Reads (Get, Contains, iteration) are safe from any goroutine and see
//     the latest applied write, including writes inside an open batch.
//   - Mutating calls serialize on a per-table writer lock that is re-entered
//     through the context, so handlers can write back into the table.
type Table struct {
	name string
	opts options

	writer sync.Mutex // held for a whole mutation, batch or registration

	mu       sync.RWMutex // guards columns and byHeader
	columns  []*column
	byHeader map[Header]*column

	deleted   atomic.Bool
	clock     regClock
	listeners *listenerRegistry

	linkMu sync.Mutex
	links  map[CellRef]*Link
}

// New creates an unnamed table.
func New(opts ...Option) *Table {
	return newTable("", buildOptions(opts))
}

func newTable(name string, o options) *Table {
	return &Table{
		name:      name,
		opts:      o,
		byHeader:  make(map[Header]*column),
		listeners: newListenerRegistry(),
		links:     make(map[CellRef]*Link),
	}
}

// Name returns the registry name, or "" for unnamed tables and snapshots.
func (t *Table) Name() string { return t.name }

// Deleted reports whether the table was removed from its registry.
func (t *Table) Deleted() bool { return t.deleted.Load() }

func (t *Table) String() string {
	if t.name == "" {
		return "table"
	}
	return "table " + t.name
}

func (t *Table) logger() *slog.Logger { return t.opts.logger }

// column returns the column for h, creating it on first touch.
func (t *Table) column(h Header) *column {
	t.mu.RLock()
	c, ok := t.byHeader[h]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.byHeader[h]; ok {
		return c
	}
	c = newColumn(h)
	t.byHeader[h] = c
	t.columns = append(t.columns, c)
	return c
}

// Get reads the cell at (h, i). Untouched cells read as Unit and are
// recorded as touched.
func (t *Table) Get(h Header, i int64) value.Value {
	c := t.column(h)
	t.mu.Lock()
	defer t.mu.Unlock()
	c.touched[i] = struct{}{}
	return c.get(i)
}

// Contains reports whether (h, i) was ever touched, even if it now holds
// Unit.
func (t *Table) Contains(h Header, i int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.byHeader[h]
	if !ok {
		return false
	}
	_, touched := c.touched[i]
	return touched
}

// Set writes x at (h, i). x is converted with value.Of; nil and value.Unit
// clear the cell. Outside a batch the call returns after every listener
// pass it triggered.
func (t *Table) Set(ctx context.Context, h Header, i int64, x any) error {
	v, err := value.Of(x)
	if err != nil {
		return err
	}
	return t.write(ctx, t.Cell(h, i), v)
}

// Clear resets (h, i) to Unit.
func (t *Table) Clear(ctx context.Context, h Header, i int64) error {
	return t.write(ctx, t.Cell(h, i), value.Unit{})
}

// store applies v and returns the previous value.
func (t *Table) store(c *column, i int64, v value.Value) value.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	return c.put(i, v)
}

// Headers lists the column headers in column order.
func (t *Table) Headers() []Header {
	t.mu.RLock()
	defer t.mu.RUnlock()
	hs := make([]Header, len(t.columns))
	for i, c := range t.columns {
		hs[i] = c.header
	}
	return hs
}

// Indexes returns the union of occupied row indexes across all columns,
// ascending.
func (t *Table) Indexes() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.indexesLocked()
}

func (t *Table) indexesLocked() []int64 {
	var all []int64
	for _, c := range t.columns {
		all = append(all, c.sorted...)
	}
	slices.Sort(all)
	return slices.Compact(all)
}

// FindIndex resolves i against the occupied rows of the whole table.
func (t *Table) FindIndex(i int64, rel IndexRelation) (int64, bool) {
	return findIndex(t.Indexes(), i, rel)
}

// Len returns the number of non-Unit cells.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, c := range t.columns {
		n += len(c.cells)
	}
	return n
}

// Cells iterates every non-Unit cell in column order, then row order.
func (t *Table) Cells() iter.Seq[CellRef] {
	return t.All().Cells()
}

// Clone deep-copies values and column order into a new unnamed table with an
// empty listener registry.
func (t *Table) Clone() *Table {
	c := newTable("", t.opts)
	t.mu.RLock()
	defer t.mu.RUnlock()
	c.columns = make([]*column, len(t.columns))
	for i, col := range t.columns {
		cc := col.clone()
		c.columns[i] = cc
		c.byHeader[cc.header] = cc
	}
	return c
}

// position returns the current column position of col, or -1.
func (t *Table) position(col *column) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Index(t.columns, col)
}

// columnsBetween returns the columns between a and b inclusive, in the
// direction a -> b.
func (t *Table) columnsBetween(a, b *column) []*column {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pa, pb := slices.Index(t.columns, a), slices.Index(t.columns, b)
	if pa < 0 || pb < 0 {
		return nil
	}
	if pa <= pb {
		return slices.Clone(t.columns[pa : pb+1])
	}
	out := slices.Clone(t.columns[pb : pa+1])
	slices.Reverse(out)
	return out
}

func (t *Table) columnsSnapshot() []*column {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.columns)
}

// move places col immediately before or after anchor.
func (t *Table) move(col, anchor *column, after bool) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if col == anchor {
		return nil
	}
	from := slices.Index(t.columns, col)
	if from < 0 || slices.Index(t.columns, anchor) < 0 {
		return &InvalidTableError{Table: t.String(), Message: "column does not belong to this table"}
	}
	t.columns = slices.Delete(t.columns, from, from+1)
	to := slices.Index(t.columns, anchor)
	if after {
		to++
	}
	t.columns = slices.Insert(t.columns, to, col)
	return nil
}

func (t *Table) checkLive() error {
	if t.deleted.Load() {
		return &InvalidTableError{Table: t.String(), Message: "table has been deleted"}
	}
	return nil
}

package table

import (
	"maps"
	"slices"

	"github.com/roach88/cellsync/internal/value"
)

// column is the sparse storage behind one header. All access goes through the
// owning table's data lock.
type column struct {
	header  Header
	cells   map[int64]value.Value // non-Unit cells only
	sorted  []int64               // keys of cells, ascending
	touched map[int64]struct{}    // indexes read or written at least once
}

func newColumn(h Header) *column {
	return &column{
		header:  h,
		cells:   make(map[int64]value.Value),
		touched: make(map[int64]struct{}),
	}
}

func (c *column) get(i int64) value.Value {
	if v, ok := c.cells[i]; ok {
		return v
	}
	return value.Unit{}
}

// put stores v at i and returns the previous value.
func (c *column) put(i int64, v value.Value) value.Value {
	c.touched[i] = struct{}{}
	old, had := c.cells[i]
	if value.IsUnit(v) {
		if had {
			delete(c.cells, i)
			if pos, found := slices.BinarySearch(c.sorted, i); found {
				c.sorted = slices.Delete(c.sorted, pos, pos+1)
			}
		}
	} else {
		c.cells[i] = v
		if !had {
			pos, _ := slices.BinarySearch(c.sorted, i)
			c.sorted = slices.Insert(c.sorted, pos, i)
		}
	}
	if !had {
		return value.Unit{}
	}
	return old
}

func (c *column) clone() *column {
	return &column{
		header:  c.header,
		cells:   maps.Clone(c.cells),
		sorted:  slices.Clone(c.sorted),
		touched: maps.Clone(c.touched),
	}
}

// indexesIn returns the occupied indexes within [lo, hi], ascending.
func (c *column) indexesIn(lo, hi int64) []int64 {
	start, _ := slices.BinarySearch(c.sorted, lo)
	end := start
	for end < len(c.sorted) && c.sorted[end] <= hi {
		end++
	}
	return slices.Clone(c.sorted[start:end])
}

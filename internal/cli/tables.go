package cli

import (
	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/trace"
)

// CellReport is one occupied cell.
type CellReport struct {
	Header []string `json:"header"`
	Row    int64    `json:"row"`
	Kind   string   `json:"kind"`
	Text   string   `json:"text"`
}

// TableReport lists a table's occupied cells in column order.
type TableReport struct {
	Name    string       `json:"name"`
	Columns int          `json:"columns"`
	Cells   []CellReport `json:"cells"`
}

func reportTable(name string, t *table.Table) TableReport {
	rep := TableReport{Name: name, Columns: len(t.Headers()), Cells: []CellReport{}}
	for c := range t.All().Cells() {
		v := c.Get()
		rep.Cells = append(rep.Cells, CellReport{
			Header: c.Header().Labels(),
			Row:    c.Index(),
			Kind:   v.Kind().String(),
			Text:   trace.Text(v),
		})
	}
	return rep
}

func printTable(f *OutputFormatter, rep TableReport) {
	f.Printf("table %s (%d columns, %d cells)\n", rep.Name, rep.Columns, len(rep.Cells))
	for _, c := range rep.Cells {
		f.Printf("  %s[%d] = %s(%s)\n", table.H(c.Header...), c.Row, c.Kind, c.Text)
	}
}

package workbook

import (
	"context"
	"fmt"

	"github.com/roach88/cellsync/internal/aggregate"
	"github.com/roach88/cellsync/internal/table"
)

// Apply creates the workbook's tables in reg. Each table's columns are
// created in declaration order, its cells are written in one batch, and
// its links are bound after every table is seeded.
func (wb *Workbook) Apply(ctx context.Context, reg *table.Registry) ([]*table.Link, error) {
	for _, spec := range wb.Tables {
		t := reg.Table(spec.Name)
		for _, h := range spec.Columns {
			t.Column(h)
		}
		err := t.Batch(ctx, func(ctx context.Context) error {
			for _, c := range spec.Cells {
				if err := t.Cell(c.Column, c.Row).Set(ctx, c.Value); err != nil {
					return fmt.Errorf("%s: %w", c.describe(spec.Name), err)
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("seed table %q: %w", spec.Name, err)
		}
	}

	var links []*table.Link
	for _, spec := range wb.Tables {
		t := reg.Table(spec.Name)
		for _, ls := range spec.Links {
			src := reg.Table(ls.From.tableOr(spec.Name))
			from := src.Cell(ls.From.Column, ls.From.Row)
			to := src.Cell(ls.To.Column, ls.To.Row)
			d, err := aggregate.ByName(ls.Op, from.To(to))
			if err != nil {
				return nil, err
			}
			lk, err := t.Cell(ls.Target.Column, ls.Target.Row).Link(ctx, d)
			if err != nil {
				return nil, fmt.Errorf("link %s: %w", ls.Target.describe(spec.Name), err)
			}
			links = append(links, lk)
		}
	}
	return links, nil
}

func (c Coord) tableOr(name string) string {
	if c.Table == "" {
		return name
	}
	return c.Table
}

func (c Coord) describe(name string) string {
	return fmt.Sprintf("%s %s[%d]", c.tableOr(name), c.Column, c.Row)
}

package workbook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellsync/internal/aggregate"
	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/value"
)

const salesWorkbook = `
package sales

table: sales: {
	columns: ["region", "q1", "q2", "total"]
	cells: [
		{column: "region", row: 0, value: "north"},
		{column: "q1", row: 0, value: 100},
		{column: "q2", row: 0, value: 250},
		{column: "region", row: 1, value: "south"},
		{column: "q1", row: 1, value: {kind: "bigdecimal", text: "2.50"}},
		{column: "q2", row: 1, value: 1.5},
	]
	links: [
		{target: {column: "total", row: 0}, op: "sum", from: {column: "q1", row: 0}, to: {column: "q2", row: 0}},
		{target: {column: "total", row: 1}, op: "max", from: {column: "q1", row: 1}, to: {column: "q2", row: 1}},
	]
}

table: summary: {
	links: [
		{target: {column: "regions", row: 0}, op: "count", from: {table: "sales", column: "region", row: 0}, to: {table: "sales", column: "region", row: 1}},
	]
}
`

func TestCompileString(t *testing.T) {
	wb, err := CompileString(salesWorkbook, "sales.cue")
	require.NoError(t, err)
	require.Len(t, wb.Tables, 2)

	sales := wb.Tables[0]
	assert.Equal(t, "sales", sales.Name)
	assert.Equal(t, []table.Header{table.H("region"), table.H("q1"), table.H("q2"), table.H("total")}, sales.Columns)
	require.Len(t, sales.Cells, 6)
	assert.Equal(t, value.String("north"), sales.Cells[0].Value)
	assert.Equal(t, value.Long(100), sales.Cells[1].Value)
	assert.Equal(t, value.KindBigDecimal, sales.Cells[4].Value.Kind())
	assert.Equal(t, value.Double(1.5), sales.Cells[5].Value)

	require.Len(t, sales.Links, 2)
	assert.Equal(t, aggregate.FuncSum, sales.Links[0].Op)
	assert.Equal(t, table.H("q2"), sales.Links[0].To.Column)

	summary := wb.Tables[1]
	require.Len(t, summary.Links, 1)
	assert.Equal(t, "sales", summary.Links[0].From.Table)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	wb, err := CompileString(salesWorkbook, "sales.cue")
	require.NoError(t, err)

	reg := table.NewRegistry()
	links, err := wb.Apply(ctx, reg)
	require.NoError(t, err)
	assert.Len(t, links, 3)

	sales, ok := reg.Lookup("sales")
	require.True(t, ok)
	assert.Equal(t, []table.Header{table.H("region"), table.H("q1"), table.H("q2"), table.H("total")}, sales.Headers())
	assert.Equal(t, value.Long(350), sales.Get(table.H("total"), 0))

	dec, err := value.ParseBigDecimal("2.50")
	require.NoError(t, err)
	assert.True(t, value.Equal(dec, sales.Get(table.H("total"), 1)), "max keeps the larger operand")

	summary, ok := reg.Lookup("summary")
	require.True(t, ok)
	assert.Equal(t, value.Long(2), summary.Get(table.H("regions"), 0))

	// Links keep following their sources.
	require.NoError(t, sales.Set(ctx, table.H("q2"), 0, 300))
	assert.Equal(t, value.Long(400), sales.Get(table.H("total"), 0))

	require.NoError(t, sales.Clear(ctx, table.H("region"), 1))
	assert.Equal(t, value.Long(1), summary.Get(table.H("regions"), 0))
}

func TestCompile_Values(t *testing.T) {
	wb, err := CompileString(`
table: t: cells: [
	{column: "a", row: 0, value: true},
	{column: "a", row: 1, value: null},
	{column: "a", row: 2, value: 123456789012345678901234567890},
	{column: "a", row: 3, value: {kind: "unit"}},
	{column: "a", row: 4, value: {kind: "long", text: "-7"}},
	{column: "price/usd", row: -1, value: "x"},
]`, "values.cue")
	require.NoError(t, err)

	cells := wb.Tables[0].Cells
	assert.Equal(t, value.Bool(true), cells[0].Value)
	assert.Equal(t, value.Unit{}, cells[1].Value)
	assert.Equal(t, value.KindBigInteger, cells[2].Value.Kind())
	assert.Equal(t, "123456789012345678901234567890", cells[2].Value.String())
	assert.Equal(t, value.Unit{}, cells[3].Value)
	assert.Equal(t, value.Long(-7), cells[4].Value)
	assert.Equal(t, table.H("price", "usd"), cells[5].Column)
	assert.Equal(t, int64(-1), cells[5].Row)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"no tables", `x: 1`, "table"},
		{"empty tables", `table: {}`, "table"},
		{"missing column", `table: t: cells: [{row: 0, value: 1}]`, "column"},
		{"missing row", `table: t: cells: [{column: "a", value: 1}]`, "row"},
		{"missing value", `table: t: cells: [{column: "a", row: 0}]`, "cells.value"},
		{"seed into other table", `table: t: cells: [{table: "u", column: "a", row: 0, value: 1}]`, "cells.table"},
		{"empty column", `table: t: columns: [""]`, "column"},
		{"duplicate column", `table: t: columns: ["a", "a"]`, "columns"},
		{"unknown kind", `table: t: cells: [{column: "a", row: 0, value: {kind: "money", text: "1"}}]`, "value.kind"},
		{"bad text", `table: t: cells: [{column: "a", row: 0, value: {kind: "long", text: "x"}}]`, "value.text"},
		{"list value", `table: t: cells: [{column: "a", row: 0, value: [1]}]`, "value"},
		{"unknown op", `table: t: links: [{target: {column: "a", row: 0}, op: "avg", from: {column: "b", row: 0}}]`, "links.op"},
		{"missing from", `table: t: links: [{target: {column: "a", row: 0}, op: "sum"}]`, "links.from"},
		{"split range", `table: t: links: [{target: {column: "a", row: 0}, op: "sum", from: {column: "b", row: 0}, to: {table: "u", column: "b", row: 1}}]`, "links.to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.src, "bad.cue")
			require.Error(t, err)
			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompile_CUEError(t *testing.T) {
	_, err := CompileString(`table: t: columns: [1 & 2]`, "conflict.cue")
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.cue"), []byte(salesWorkbook), 0o644))

	wb, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, wb.Tables, 2)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	empty := t.TempDir()
	_, err = Load(empty)
	assert.ErrorContains(t, err, "no CUE files")

	file := filepath.Join(t.TempDir(), "f.cue")
	require.NoError(t, os.WriteFile(file, []byte("package x"), 0o644))
	_, err = Load(file)
	assert.ErrorContains(t, err, "not a directory")
}

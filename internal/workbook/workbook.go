package workbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/cellsync/internal/aggregate"
	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/value"
)

// Workbook is a compiled set of table declarations.
type Workbook struct {
	Tables []TableSpec
}

// TableSpec declares one table.
type TableSpec struct {
	Name    string
	Columns []table.Header
	Cells   []CellSpec
	Links   []LinkSpec
	Pos     token.Pos
}

// Coord addresses a cell. An empty Table means the declaring table.
type Coord struct {
	Table  string
	Column table.Header
	Row    int64
}

// CellSpec seeds one cell.
type CellSpec struct {
	Coord
	Value value.Value
}

// LinkSpec binds Target to an aggregate over the range From..To.
type LinkSpec struct {
	Target Coord
	Op     aggregate.Func
	From   Coord
	To     Coord
}

// Load compiles every .cue file of the package in dir.
func Load(dir string) (*Workbook, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("workbook directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, cueError(inst.Err)
	}
	v := cuecontext.New().BuildInstance(inst)
	return Compile(v)
}

// CompileString compiles a single CUE source.
func CompileString(src, filename string) (*Workbook, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return Compile(v)
}

// Compile reads the "table" struct of v.
func Compile(v cue.Value) (*Workbook, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}
	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, fieldError("table", v, "no tables declared")
	}
	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, cueError(err)
	}

	wb := &Workbook{}
	for iter.Next() {
		spec, err := compileTable(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		wb.Tables = append(wb.Tables, spec)
	}
	if len(wb.Tables) == 0 {
		return nil, fieldError("table", tablesVal, "no tables declared")
	}
	return wb, nil
}

func compileTable(name string, v cue.Value) (TableSpec, error) {
	spec := TableSpec{Name: name, Pos: v.Pos()}

	if cols := v.LookupPath(cue.ParsePath("columns")); cols.Exists() {
		it, err := cols.List()
		if err != nil {
			return spec, cueError(err)
		}
		seen := make(map[table.Header]bool)
		for it.Next() {
			h, err := parseHeader(it.Value())
			if err != nil {
				return spec, err
			}
			if seen[h] {
				return spec, fieldError("columns", it.Value(), fmt.Sprintf("duplicate column %q", h))
			}
			seen[h] = true
			spec.Columns = append(spec.Columns, h)
		}
	}

	if cells := v.LookupPath(cue.ParsePath("cells")); cells.Exists() {
		it, err := cells.List()
		if err != nil {
			return spec, cueError(err)
		}
		for it.Next() {
			c, err := compileCell(it.Value())
			if err != nil {
				return spec, err
			}
			spec.Cells = append(spec.Cells, c)
		}
	}

	if links := v.LookupPath(cue.ParsePath("links")); links.Exists() {
		it, err := links.List()
		if err != nil {
			return spec, cueError(err)
		}
		for it.Next() {
			l, err := compileLink(it.Value())
			if err != nil {
				return spec, err
			}
			spec.Links = append(spec.Links, l)
		}
	}
	return spec, nil
}

func compileCell(v cue.Value) (CellSpec, error) {
	coord, err := compileCoord(v)
	if err != nil {
		return CellSpec{}, err
	}
	if coord.Table != "" {
		return CellSpec{}, fieldError("cells.table", v, "seed cells belong to their declaring table")
	}
	val := v.LookupPath(cue.ParsePath("value"))
	if !val.Exists() {
		return CellSpec{}, fieldError("cells.value", v, "value is required")
	}
	x, err := compileValue(val)
	if err != nil {
		return CellSpec{}, err
	}
	return CellSpec{Coord: coord, Value: x}, nil
}

func compileLink(v cue.Value) (LinkSpec, error) {
	var spec LinkSpec

	op, err := requiredString(v, "op")
	if err != nil {
		return spec, err
	}
	if _, err := aggregate.ByName(aggregate.Func(op)); err != nil {
		return spec, fieldError("links.op", v, err.Error())
	}
	spec.Op = aggregate.Func(op)

	target := v.LookupPath(cue.ParsePath("target"))
	if !target.Exists() {
		return spec, fieldError("links.target", v, "target is required")
	}
	if spec.Target, err = compileCoord(target); err != nil {
		return spec, err
	}
	if spec.Target.Table != "" {
		return spec, fieldError("links.target", target, "target belongs to the declaring table")
	}

	from := v.LookupPath(cue.ParsePath("from"))
	if !from.Exists() {
		return spec, fieldError("links.from", v, "from is required")
	}
	if spec.From, err = compileCoord(from); err != nil {
		return spec, err
	}
	spec.To = spec.From
	if to := v.LookupPath(cue.ParsePath("to")); to.Exists() {
		if spec.To, err = compileCoord(to); err != nil {
			return spec, err
		}
		if spec.To.Table != spec.From.Table {
			return spec, fieldError("links.to", to, "range ends must be in the same table")
		}
	}
	return spec, nil
}

func compileCoord(v cue.Value) (Coord, error) {
	var c Coord
	col := v.LookupPath(cue.ParsePath("column"))
	if !col.Exists() {
		return c, fieldError("column", v, "column is required")
	}
	h, err := parseHeader(col)
	if err != nil {
		return c, err
	}
	c.Column = h

	row := v.LookupPath(cue.ParsePath("row"))
	if !row.Exists() {
		return c, fieldError("row", v, "row is required")
	}
	if c.Row, err = row.Int64(); err != nil {
		return c, fieldError("row", row, "row must be an int64")
	}

	if t := v.LookupPath(cue.ParsePath("table")); t.Exists() {
		if c.Table, err = t.String(); err != nil {
			return c, cueError(err)
		}
	}
	return c, nil
}

func parseHeader(v cue.Value) (table.Header, error) {
	s, err := v.String()
	if err != nil {
		return table.Header{}, cueError(err)
	}
	if s == "" {
		return table.Header{}, fieldError("column", v, "column name is empty")
	}
	return table.H(strings.Split(s, "/")...), nil
}

func requiredString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", fieldError(field, v, field+" is required")
	}
	s, err := f.String()
	if err != nil {
		return "", cueError(err)
	}
	return s, nil
}

func compileValue(v cue.Value) (value.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return value.Unit{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, cueError(err)
		}
		return value.Bool(b), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, cueError(err)
		}
		return value.String(s), nil
	case cue.IntKind:
		if n, err := v.Int64(); err == nil {
			return value.Long(n), nil
		}
		n, err := v.Int(nil)
		if err != nil {
			return nil, cueError(err)
		}
		return value.NewBigInteger(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, cueError(err)
		}
		return value.Double(f), nil
	case cue.StructKind:
		kindName, err := requiredString(v, "kind")
		if err != nil {
			return nil, err
		}
		kind, ok := value.ParseKind(kindName)
		if !ok {
			return nil, fieldError("value.kind", v, fmt.Sprintf("unknown kind %q", kindName))
		}
		text := ""
		if kind != value.KindUnit {
			if text, err = requiredString(v, "text"); err != nil {
				return nil, err
			}
		}
		x, err := value.Parse(kind, text)
		if err != nil {
			return nil, fieldError("value.text", v, err.Error())
		}
		return x, nil
	default:
		return nil, fieldError("value", v, fmt.Sprintf("unsupported value kind %s", v.Kind()))
	}
}

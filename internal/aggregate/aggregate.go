// Package aggregate provides derivations over table references: Sum, Min,
// Max and Count. Each returns a table.Derivation suitable for CellRef.Link.
//
// Non-numeric cells are ignored by Sum, Min and Max. An empty source sums
// to Long 0 and has Unit as its minimum and maximum.
package aggregate

import (
	"context"
	"fmt"

	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/value"
)

// Func names an aggregate.
type Func string

const (
	FuncSum   Func = "sum"
	FuncMin   Func = "min"
	FuncMax   Func = "max"
	FuncCount Func = "count"
)

// Funcs lists every aggregate.
func Funcs() []Func { return []Func{FuncSum, FuncMin, FuncMax, FuncCount} }

// ByName returns the derivation for fn over refs.
func ByName(fn Func, refs ...table.Ref) (table.Derivation, error) {
	switch fn {
	case FuncSum:
		return Sum(refs...), nil
	case FuncMin:
		return Min(refs...), nil
	case FuncMax:
		return Max(refs...), nil
	case FuncCount:
		return Count(refs...), nil
	default:
		return nil, fmt.Errorf("unknown aggregate %q", fn)
	}
}

func numbers(refs []table.Ref) []value.Numeric {
	var out []value.Numeric
	for _, r := range refs {
		for _, v := range table.Values(r) {
			if n, ok := v.(value.Numeric); ok {
				out = append(out, n)
			}
		}
	}
	return out
}

// Sum adds every numeric cell of refs using the promotion rules of
// value.Add.
func Sum(refs ...table.Ref) table.Derivation {
	return table.Derive(func(context.Context) (value.Value, error) {
		var total value.Value = value.Long(0)
		for _, n := range numbers(refs) {
			next, err := value.Add(total, n)
			if err != nil {
				return nil, fmt.Errorf("sum: %w", err)
			}
			total = next
		}
		return total, nil
	}, refs...)
}

func extreme(name string, refs []table.Ref, keep func(cmp int) bool) table.Derivation {
	return table.Derive(func(context.Context) (value.Value, error) {
		var best value.Value = value.Unit{}
		for _, n := range numbers(refs) {
			if value.IsUnit(best) {
				best = n
				continue
			}
			c, err := value.Compare(n, best)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			if keep(c) {
				best = n
			}
		}
		return best, nil
	}, refs...)
}

// Min returns the smallest numeric cell of refs.
func Min(refs ...table.Ref) table.Derivation {
	return extreme("min", refs, func(c int) bool { return c < 0 })
}

// Max returns the largest numeric cell of refs.
func Max(refs ...table.Ref) table.Derivation {
	return extreme("max", refs, func(c int) bool { return c > 0 })
}

// Count returns the number of non-Unit cells of refs as a Long.
func Count(refs ...table.Ref) table.Derivation {
	return table.Derive(func(context.Context) (value.Value, error) {
		n := 0
		for _, r := range refs {
			n += len(table.Values(r))
		}
		return value.Long(n), nil
	}, refs...)
}

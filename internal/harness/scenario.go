package harness

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cellsync/internal/aggregate"
	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/value"
)

// DefaultTable is used by steps and assertions that name no table.
const DefaultTable = "sheet"

// Scenario is a sequence of table operations plus assertions over the
// resulting event trace and final cell values.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Table is the default table for steps and assertions.
	Table string `yaml:"table,omitempty"`

	// Workbook is a CUE workbook directory applied before the steps.
	// Relative paths are resolved against the scenario file.
	Workbook string `yaml:"workbook,omitempty"`

	// MaxSteps overrides the dispatch quota.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// PassPrefix prefixes the sequential pass tokens ("pass" if empty).
	PassPrefix string `yaml:"pass_prefix,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation. Exactly one of the operation fields is set.
type Step struct {
	Set       *CellStep      `yaml:"set,omitempty"`
	Add       *CellStep      `yaml:"add,omitempty"`
	Clear     *CellStep      `yaml:"clear,omitempty"`
	Batch     []Step         `yaml:"batch,omitempty"`
	Subscribe *SubscribeStep `yaml:"subscribe,omitempty"`
	Link      *LinkStep      `yaml:"link,omitempty"`
	Off       string         `yaml:"off,omitempty"`

	// ExpectError names the error class the step must fail with: loop,
	// quota, invalid_value, unsupported, invalid_cell, invalid_table,
	// invalid_row or any.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Coord addresses a cell.
type Coord struct {
	Table  string `yaml:"table,omitempty"`
	Column string `yaml:"column"`
	Row    int64  `yaml:"row"`
}

// CellStep writes, adds to, or clears one cell.
type CellStep struct {
	Coord `yaml:",inline"`
	Value *Value `yaml:"value,omitempty"`
}

// SubscribeStep registers a recording listener.
type SubscribeStep struct {
	Name        string `yaml:"name"`
	Table       string `yaml:"table,omitempty"`
	Target      Target `yaml:"target"`
	Order       int64  `yaml:"order,omitempty"`
	AllowLoop   bool   `yaml:"allow_loop,omitempty"`
	SkipHistory bool   `yaml:"skip_history,omitempty"`
	Then        []Step `yaml:"then,omitempty"`
}

// Target selects the cells a listener observes.
type Target struct {
	All    bool   `yaml:"all,omitempty"`
	Column string `yaml:"column,omitempty"`
	Row    *int64 `yaml:"row,omitempty"`
	To     *Coord `yaml:"to,omitempty"`
}

// LinkStep binds a target cell to an aggregate over a range.
type LinkStep struct {
	Table  string `yaml:"table,omitempty"`
	Target Coord  `yaml:"target"`
	Op     string `yaml:"op"`
	From   Coord  `yaml:"from"`
	To     *Coord `yaml:"to,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// trace_contains
	Event string `yaml:"event,omitempty"`

	// trace_order
	Events []string `yaml:"events,omitempty"`

	// trace_count
	Listener string `yaml:"listener,omitempty"`
	Cell     string `yaml:"cell,omitempty"`
	Count    int    `yaml:"count,omitempty"`

	// final_value
	Table  string `yaml:"table,omitempty"`
	Column string `yaml:"column,omitempty"`
	Row    int64  `yaml:"row,omitempty"`
	Value  *Value `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalValue    = "final_value"
)

var errorClasses = map[string]bool{
	"any": true, "loop": true, "quota": true, "invalid_value": true,
	"unsupported": true, "invalid_cell": true, "invalid_table": true, "invalid_row": true,
}

// Value is a cell value written in YAML. Plain scalars map to Bool, String,
// Long (BigInteger past int64), Double and Unit (null); {kind, text} reaches
// every kind.
type Value struct {
	v value.Value
}

// NewValue wraps x.
func NewValue(x value.Value) *Value { return &Value{v: x} }

// Get returns the wrapped value.
func (v *Value) Get() value.Value { return v.v }

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		x, err := scalarValue(node)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		v.v = x
		return nil
	case yaml.MappingNode:
		var typed struct {
			Kind string `yaml:"kind"`
			Text string `yaml:"text"`
		}
		if err := node.Decode(&typed); err != nil {
			return err
		}
		kind, ok := value.ParseKind(typed.Kind)
		if !ok {
			return fmt.Errorf("line %d: unknown kind %q", node.Line, typed.Kind)
		}
		x, err := value.Parse(kind, typed.Text)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		v.v = x
		return nil
	default:
		return fmt.Errorf("line %d: value must be a scalar or {kind, text}", node.Line)
	}
}

func scalarValue(node *yaml.Node) (value.Value, error) {
	switch node.ShortTag() {
	case "!!null":
		return value.Unit{}, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, err
		}
		return value.Bool(b), nil
	case "!!int":
		if n, err := strconv.ParseInt(node.Value, 0, 64); err == nil {
			return value.Long(n), nil
		}
		return bigInteger(node.Value)
	case "!!float":
		// yaml resolves integers past 64 bits as floats.
		if integerText.MatchString(node.Value) {
			return bigInteger(node.Value)
		}
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
		return value.Double(f), nil
	default:
		return value.String(node.Value), nil
	}
}

var integerText = regexp.MustCompile(`^[-+]?[0-9]+$`)

func bigInteger(text string) (value.Value, error) {
	n, ok := new(big.Int).SetString(text, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", text)
	}
	return value.NewBigInteger(n), nil
}

// header parses "a/b" into a two-label header.
func header(s string) table.Header {
	return table.H(strings.Split(s, "/")...)
}

// LoadScenario reads a scenario file. Unknown fields are rejected, and a
// relative workbook path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if sc.Workbook != "" && !filepath.IsAbs(sc.Workbook) {
		sc.Workbook = filepath.Join(filepath.Dir(path), sc.Workbook)
	}
	if sc.Workbook != "" {
		if _, err := os.Stat(sc.Workbook); err != nil {
			return nil, fmt.Errorf("invalid scenario: workbook: %w", err)
		}
	}
	return sc, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if sc.Table == "" {
		sc.Table = DefaultTable
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if err := validateSteps("steps", s.Steps); err != nil {
		return err
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateSteps(path string, steps []Step) error {
	for i, st := range steps {
		at := fmt.Sprintf("%s[%d]", path, i)
		n := 0
		for _, set := range []bool{st.Set != nil, st.Add != nil, st.Clear != nil, st.Batch != nil, st.Subscribe != nil, st.Link != nil, st.Off != ""} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("%s: exactly one operation is required, got %d", at, n)
		}
		if st.ExpectError != "" && !errorClasses[st.ExpectError] {
			return fmt.Errorf("%s: unknown expect_error %q", at, st.ExpectError)
		}
		switch {
		case st.Set != nil:
			if st.Set.Value == nil {
				return fmt.Errorf("%s: set requires value", at)
			}
			if st.Set.Column == "" {
				return fmt.Errorf("%s: set requires column", at)
			}
		case st.Add != nil:
			if st.Add.Value == nil {
				return fmt.Errorf("%s: add requires value", at)
			}
			if st.Add.Column == "" {
				return fmt.Errorf("%s: add requires column", at)
			}
		case st.Clear != nil:
			if st.Clear.Column == "" {
				return fmt.Errorf("%s: clear requires column", at)
			}
			if st.Clear.Value != nil {
				return fmt.Errorf("%s: clear takes no value", at)
			}
		case st.Batch != nil:
			if err := validateSteps(at+".batch", st.Batch); err != nil {
				return err
			}
		case st.Subscribe != nil:
			if st.Subscribe.Name == "" {
				return fmt.Errorf("%s: subscribe requires name", at)
			}
			if err := validateTarget(at, st.Subscribe.Target); err != nil {
				return err
			}
			if err := validateSteps(at+".then", st.Subscribe.Then); err != nil {
				return err
			}
		case st.Link != nil:
			if _, err := aggregate.ByName(aggregate.Func(st.Link.Op)); err != nil {
				return fmt.Errorf("%s: %w", at, err)
			}
			if st.Link.Target.Column == "" || st.Link.From.Column == "" {
				return fmt.Errorf("%s: link requires target and from columns", at)
			}
		}
	}
	return nil
}

func validateTarget(at string, t Target) error {
	switch {
	case t.All:
		if t.Column != "" || t.Row != nil || t.To != nil {
			return fmt.Errorf("%s: target all excludes column, row and to", at)
		}
	case t.To != nil:
		if t.Column == "" || t.Row == nil {
			return fmt.Errorf("%s: target range requires column and row", at)
		}
	case t.Column == "" && t.Row == nil:
		return fmt.Errorf("%s: target requires all, column or row", at)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalValue:
		if a.Column == "" {
			return fmt.Errorf("assertions[%d]: column is required for final_value", index)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for final_value", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

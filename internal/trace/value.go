package trace

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/cellsync/internal/value"
)

// Text returns the text form of v that value.Parse reads back exactly.
// BigDecimal keeps its exponent as coefficient "e" exponent.
func Text(v value.Value) string {
	switch x := value.Normalize(v).(type) {
	case value.Unit:
		return ""
	case value.BigDecimal:
		d := x.Decimal()
		return fmt.Sprintf("%se%d", d.Coefficient().String(), d.Exponent())
	default:
		return x.String()
	}
}

// EncodeValue returns the canonical object for v. Canonical strings are
// NFC-normalized UTF-8, so String text that is not already in that form is
// carried as "base64" instead of "text" and decodes to the same bytes.
func EncodeValue(v value.Value) map[string]any {
	v = value.Normalize(v)
	obj := map[string]any{"kind": v.Kind().String()}
	if value.IsUnit(v) {
		return obj
	}
	text := Text(v)
	if _, ok := v.(value.String); ok && !canonicalText(text) {
		obj["base64"] = base64.StdEncoding.EncodeToString([]byte(text))
		return obj
	}
	obj["text"] = text
	return obj
}

func canonicalText(s string) bool {
	return utf8.ValidString(s) && norm.NFC.IsNormalString(s)
}

// MarshalValue renders v as canonical JSON.
func MarshalValue(v value.Value) ([]byte, error) {
	return Marshal(EncodeValue(v))
}

type wireValue struct {
	Kind   string  `json:"kind"`
	Text   *string `json:"text,omitempty"`
	Base64 *string `json:"base64,omitempty"`
}

// UnmarshalValue parses the output of MarshalValue.
func UnmarshalValue(data []byte) (value.Value, error) {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	kind, ok := value.ParseKind(w.Kind)
	if !ok {
		return nil, fmt.Errorf("decode value: unknown kind %q", w.Kind)
	}
	if kind == value.KindUnit {
		return value.Unit{}, nil
	}
	if w.Base64 != nil {
		if kind != value.KindString {
			return nil, fmt.Errorf("decode value: base64 payload on %s", kind)
		}
		raw, err := base64.StdEncoding.DecodeString(*w.Base64)
		if err != nil {
			return nil, fmt.Errorf("decode value: %w", err)
		}
		return value.String(raw), nil
	}
	if w.Text == nil {
		return nil, fmt.Errorf("decode value: %s without text", kind)
	}
	return value.Parse(kind, *w.Text)
}

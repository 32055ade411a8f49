package table

import (
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Header identifies a column by its ordered labels. Two headers built from
// the same labels are == equal, whatever their storage position.
type Header struct {
	key string // each label as "<byte length>:<label>"
}

// H builds a Header. Labels are NFC-normalized so canonically equivalent
// spellings name the same column. Any other text, separators and control
// characters included, is kept as is.
func H(labels ...string) Header {
	var b strings.Builder
	for _, l := range labels {
		l = norm.NFC.String(l)
		b.WriteString(strconv.Itoa(len(l)))
		b.WriteByte(':')
		b.WriteString(l)
	}
	return Header{key: b.String()}
}

// Labels returns a copy of the header labels.
func (h Header) Labels() []string {
	var out []string
	for rest := h.key; rest != ""; {
		n, tail, _ := strings.Cut(rest, ":")
		size, _ := strconv.Atoi(n)
		out = append(out, tail[:size])
		rest = tail[size:]
	}
	return out
}

// IsZero reports whether h has no labels.
func (h Header) IsZero() bool { return h.key == "" }

func (h Header) String() string {
	return strings.Join(h.Labels(), "/")
}

// IndexRelation selects how a row index is matched against occupied rows.
type IndexRelation uint8

const (
	At IndexRelation = iota
	Before
	AtOrBefore
	AtOrAfter
	After
)

func (r IndexRelation) String() string {
	switch r {
	case At:
		return "at"
	case Before:
		return "before"
	case AtOrBefore:
		return "at_or_before"
	case AtOrAfter:
		return "at_or_after"
	case After:
		return "after"
	default:
		return "relation"
	}
}

// findIndex performs a nearest-match lookup over a sorted index slice.
func findIndex(sorted []int64, i int64, rel IndexRelation) (int64, bool) {
	// pos is the first element >= i.
	pos, exact := slices.BinarySearch(sorted, i)

	switch rel {
	case At:
		if exact {
			return i, true
		}
	case AtOrBefore:
		if exact {
			return i, true
		}
		if pos > 0 {
			return sorted[pos-1], true
		}
	case Before:
		if pos > 0 {
			return sorted[pos-1], true
		}
	case AtOrAfter:
		if pos < len(sorted) {
			return sorted[pos], true
		}
	case After:
		if exact {
			pos++
		}
		if pos < len(sorted) {
			return sorted[pos], true
		}
	}
	return 0, false
}

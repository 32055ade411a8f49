package table

import (
	"reflect"
	"strings"

	"github.com/roach88/cellsync/internal/value"
)

// kindSet is a bitmask of value kinds a type parameter admits.
type kindSet uint16

// kindsFor computes which variants are assignable to T. value.Value and any
// admit every kind including Unit; value.Numeric admits the numeric kinds; a
// concrete variant admits itself.
func kindsFor[T any]() kindSet {
	rt := reflect.TypeFor[T]()
	var s kindSet
	for _, k := range value.Kinds() {
		if reflect.TypeOf(value.Exemplar(k)).AssignableTo(rt) {
			s |= 1 << k
		}
	}
	return s
}

func (s kindSet) has(k value.Kind) bool { return s&(1<<k) != 0 }

func (s kindSet) String() string {
	var names []string
	for _, k := range value.Kinds() {
		if s.has(k) {
			names = append(names, k.String())
		}
	}
	return strings.Join(names, "|")
}

// as converts v to T. Callers check the kind set first.
func as[T any](v value.Value) (T, bool) {
	t, ok := any(value.Normalize(v)).(T)
	return t, ok
}

package value

import (
	"math"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// Kind tags a Value variant.
type Kind uint8

const (
	KindUnit Kind = iota
	KindBool
	KindString
	KindLong
	KindDouble
	KindBigInteger
	KindBigDecimal
)

var kindNames = [...]string{
	KindUnit:       "unit",
	KindBool:       "bool",
	KindString:     "string",
	KindLong:       "long",
	KindDouble:     "double",
	KindBigInteger: "biginteger",
	KindBigDecimal: "bigdecimal",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// Kinds lists every variant in declaration order.
func Kinds() []Kind {
	return []Kind{KindUnit, KindBool, KindString, KindLong, KindDouble, KindBigInteger, KindBigDecimal}
}

// Value is a sealed interface. Only the variants below implement it.
type Value interface {
	Kind() Kind
	String() string
	value()
}

// Numeric is implemented by Long, Double, BigInteger and BigDecimal.
type Numeric interface {
	Value
	numeric()
}

// Unit is the absent value. Reading an untouched cell yields Unit.
type Unit struct{}

func (Unit) Kind() Kind     { return KindUnit }
func (Unit) String() string { return "unit" }
func (Unit) value()         {}

// Bool is a boolean cell.
type Bool bool

func (Bool) Kind() Kind       { return KindBool }
func (b Bool) String() string { return strconv.FormatBool(bool(b)) }
func (Bool) value()           {}

// String is a text cell.
type String string

func (String) Kind() Kind       { return KindString }
func (s String) String() string { return string(s) }
func (String) value()           {}

// Long is a 64-bit signed integer cell.
type Long int64

func (Long) Kind() Kind       { return KindLong }
func (l Long) String() string { return strconv.FormatInt(int64(l), 10) }
func (Long) value()           {}
func (Long) numeric()         {}

// Double is a 64-bit IEEE float cell.
type Double float64

func (Double) Kind() Kind       { return KindDouble }
func (d Double) String() string { return strconv.FormatFloat(float64(d), 'g', -1, 64) }
func (Double) value()           {}
func (Double) numeric()         {}

// BigInteger is an arbitrary precision integer cell.
// The wrapped big.Int is never mutated after construction.
type BigInteger struct {
	v *big.Int
}

// NewBigInteger copies i into a BigInteger. A nil i is zero.
func NewBigInteger(i *big.Int) BigInteger {
	if i == nil {
		return BigInteger{v: new(big.Int)}
	}
	return BigInteger{v: new(big.Int).Set(i)}
}

// ParseBigInteger parses a base-10 integer literal.
func ParseBigInteger(s string) (BigInteger, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return BigInteger{}, &InvalidValueError{Message: "invalid big integer literal " + strconv.Quote(s)}
	}
	return BigInteger{v: i}, nil
}

// Int returns a copy of the integer.
func (b BigInteger) Int() *big.Int {
	return new(big.Int).Set(b.bigInt())
}

func (b BigInteger) bigInt() *big.Int {
	if b.v == nil {
		return new(big.Int)
	}
	return b.v
}

func (BigInteger) Kind() Kind       { return KindBigInteger }
func (b BigInteger) String() string { return b.bigInt().String() }
func (BigInteger) value()           {}
func (BigInteger) numeric()         {}

// BigDecimal is an arbitrary precision decimal cell.
type BigDecimal struct {
	d decimal.Decimal
}

// NewBigDecimal wraps d.
func NewBigDecimal(d decimal.Decimal) BigDecimal {
	return BigDecimal{d: d}
}

// ParseBigDecimal parses a decimal literal, keeping its exponent.
func ParseBigDecimal(s string) (BigDecimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return BigDecimal{}, &InvalidValueError{Message: "invalid big decimal literal " + strconv.Quote(s)}
	}
	return BigDecimal{d: d}, nil
}

// Decimal returns the wrapped decimal.
func (b BigDecimal) Decimal() decimal.Decimal { return b.d }

func (BigDecimal) Kind() Kind       { return KindBigDecimal }
func (b BigDecimal) String() string { return b.d.String() }
func (BigDecimal) value()           {}
func (BigDecimal) numeric()         {}

// IsUnit reports whether v is absent. A nil interface counts as Unit.
func IsUnit(v Value) bool {
	return v == nil || v.Kind() == KindUnit
}

// Normalize turns a nil interface into Unit.
func Normalize(v Value) Value {
	if v == nil {
		return Unit{}
	}
	return v
}

// Equal reports whether a and b are the same variant holding the same value.
// Doubles compare by bit pattern, decimals by coefficient and exponent, so
// Equal is exact identity of representation rather than numeric equality.
func Equal(a, b Value) bool {
	a, b = Normalize(a), Normalize(b)
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Unit:
		return true
	case Bool:
		return x == b.(Bool)
	case String:
		return x == b.(String)
	case Long:
		return x == b.(Long)
	case Double:
		return math.Float64bits(float64(x)) == math.Float64bits(float64(b.(Double)))
	case BigInteger:
		return x.bigInt().Cmp(b.(BigInteger).bigInt()) == 0
	case BigDecimal:
		y := b.(BigDecimal)
		return x.d.Exponent() == y.d.Exponent() && x.d.Coefficient().Cmp(y.d.Coefficient()) == 0
	default:
		return false
	}
}

// Exemplar returns a representative instance of the given kind. Type filters
// use exemplars to decide which kinds a Go type parameter admits.
func Exemplar(k Kind) Value {
	switch k {
	case KindBool:
		return Bool(false)
	case KindString:
		return String("")
	case KindLong:
		return Long(0)
	case KindDouble:
		return Double(0)
	case KindBigInteger:
		return NewBigInteger(nil)
	case KindBigDecimal:
		return NewBigDecimal(decimal.Zero)
	default:
		return Unit{}
	}
}

package value

import (
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of fractional digits kept when dividing
// BigDecimals.
const DivisionPrecision = 34

// Of converts a Go value into a Value.
//
//	nil                      -> Unit
//	Value                    -> itself
//	bool, string             -> Bool, String
//	int, int32, int64        -> Long
//	float32, float64         -> Double
//	*big.Int                 -> BigInteger
//	decimal.Decimal          -> BigDecimal
//
// Other numeric types return *UnsupportedOperationError; anything else
// returns *InvalidValueError.
func Of(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Unit{}, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case int:
		return Long(v), nil
	case int32:
		return Long(v), nil
	case int64:
		return Long(v), nil
	case float32:
		return Double(float64(v)), nil
	case float64:
		return Double(v), nil
	case *big.Int:
		if v == nil {
			return Unit{}, nil
		}
		return NewBigInteger(v), nil
	case big.Int:
		return NewBigInteger(&v), nil
	case decimal.Decimal:
		return NewBigDecimal(v), nil
	case *decimal.Decimal:
		if v == nil {
			return Unit{}, nil
		}
		return NewBigDecimal(*v), nil
	case int8, int16, uint, uint8, uint16, uint32, uint64, uintptr, complex64, complex128:
		return nil, &UnsupportedOperationError{Type: fmt.Sprintf("%T", x)}
	default:
		return nil, &InvalidValueError{Op: "convert", Message: fmt.Sprintf("unsupported type %T", x)}
	}
}

// MustOf is Of for literals known to be valid. It panics on error.
func MustOf(x any) Value {
	v, err := Of(x)
	if err != nil {
		panic(err)
	}
	return v
}

// rank orders numeric kinds for promotion.
func rank(k Kind) int {
	switch k {
	case KindLong:
		return 1
	case KindDouble:
		return 2
	case KindBigInteger:
		return 3
	case KindBigDecimal:
		return 4
	default:
		return 0
	}
}

// PromotedKind returns the kind two numeric operands promote to.
func PromotedKind(a, b Kind) (Kind, bool) {
	ra, rb := rank(a), rank(b)
	if ra == 0 || rb == 0 {
		return 0, false
	}
	// BigInteger with a floating operand must not lose precision to Double.
	if (a == KindBigInteger && b == KindDouble) || (a == KindDouble && b == KindBigInteger) {
		return KindBigDecimal, true
	}
	if ra >= rb {
		return a, true
	}
	return b, true
}

// ToLong reads v as a Long. Only Long converts without loss.
func ToLong(v Value) (int64, error) {
	switch x := Normalize(v).(type) {
	case Long:
		return int64(x), nil
	case BigInteger:
		if x.bigInt().IsInt64() {
			return x.bigInt().Int64(), nil
		}
	}
	return 0, &InvalidValueError{Op: "convert", Left: Normalize(v), Message: "not representable as long"}
}

// ToDouble reads v as a Double, widening Long.
func ToDouble(v Value) (float64, error) {
	switch x := Normalize(v).(type) {
	case Long:
		return float64(x), nil
	case Double:
		return float64(x), nil
	}
	return 0, &InvalidValueError{Op: "convert", Left: Normalize(v), Message: "not representable as double"}
}

// ToBigInteger reads v as a BigInteger, widening Long.
func ToBigInteger(v Value) (*big.Int, error) {
	switch x := Normalize(v).(type) {
	case Long:
		return big.NewInt(int64(x)), nil
	case BigInteger:
		return x.Int(), nil
	}
	return nil, &InvalidValueError{Op: "convert", Left: Normalize(v), Message: "not representable as big integer"}
}

// ToBigDecimal reads any numeric v as a decimal.
func ToBigDecimal(v Value) (decimal.Decimal, error) {
	switch x := Normalize(v).(type) {
	case Long:
		return decimal.NewFromInt(int64(x)), nil
	case Double:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, &InvalidValueError{Op: "convert", Left: x, Message: "non-finite double"}
		}
		return decimal.NewFromFloat(f), nil
	case BigInteger:
		return decimal.NewFromBigInt(x.bigInt(), 0), nil
	case BigDecimal:
		return x.d, nil
	}
	return decimal.Decimal{}, &InvalidValueError{Op: "convert", Left: Normalize(v), Message: "not numeric"}
}

// Op is a binary arithmetic operator.
type Op uint8

const (
	OpAdd Op = iota + 1
	OpSub
	OpMul
	OpDiv
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	default:
		return "op"
	}
}

// Add returns a + b after promotion.
func Add(a, b Value) (Value, error) { return Apply(OpAdd, a, b) }

// Sub returns a - b after promotion.
func Sub(a, b Value) (Value, error) { return Apply(OpSub, a, b) }

// Mul returns a * b after promotion.
func Mul(a, b Value) (Value, error) { return Apply(OpMul, a, b) }

// Div returns a / b after promotion. Long division truncates toward zero.
func Div(a, b Value) (Value, error) { return Apply(OpDiv, a, b) }

// Apply evaluates op over two numeric values.
func Apply(op Op, a, b Value) (Value, error) {
	a, b = Normalize(a), Normalize(b)
	kind, ok := PromotedKind(a.Kind(), b.Kind())
	if !ok {
		return nil, &InvalidValueError{Op: op.String(), Left: a, Right: b, Message: "operands must be numeric"}
	}

	switch kind {
	case KindLong:
		return applyLong(op, int64(a.(Long)), int64(b.(Long)))
	case KindDouble:
		x, _ := ToDouble(a)
		y, _ := ToDouble(b)
		return applyDouble(op, x, y), nil
	case KindBigInteger:
		x, _ := ToBigInteger(a)
		y, _ := ToBigInteger(b)
		return applyBigInteger(op, x, y)
	default:
		x, err := ToBigDecimal(a)
		if err != nil {
			return nil, err
		}
		y, err := ToBigDecimal(b)
		if err != nil {
			return nil, err
		}
		return applyBigDecimal(op, x, y)
	}
}

func applyLong(op Op, x, y int64) (Value, error) {
	switch op {
	case OpAdd:
		r := x + y
		if (r > x) == (y > 0) {
			return Long(r), nil
		}
	case OpSub:
		r := x - y
		if (r < x) == (y > 0) {
			return Long(r), nil
		}
	case OpMul:
		if x == 0 || y == 0 {
			return Long(0), nil
		}
		r := x * y
		if r/y == x && !(x == -1 && y == math.MinInt64) && !(y == -1 && x == math.MinInt64) {
			return Long(r), nil
		}
	case OpDiv:
		if y == 0 {
			return nil, &InvalidValueError{Op: op.String(), Left: Long(x), Right: Long(y), Message: "division by zero"}
		}
		if !(x == math.MinInt64 && y == -1) {
			return Long(x / y), nil
		}
	}
	// Overflow widens to BigInteger.
	return applyBigInteger(op, big.NewInt(x), big.NewInt(y))
}

func applyDouble(op Op, x, y float64) Value {
	switch op {
	case OpAdd:
		return Double(x + y)
	case OpSub:
		return Double(x - y)
	case OpMul:
		return Double(x * y)
	default:
		return Double(x / y)
	}
}

func applyBigInteger(op Op, x, y *big.Int) (Value, error) {
	r := new(big.Int)
	switch op {
	case OpAdd:
		r.Add(x, y)
	case OpSub:
		r.Sub(x, y)
	case OpMul:
		r.Mul(x, y)
	case OpDiv:
		if y.Sign() == 0 {
			return nil, &InvalidValueError{Op: op.String(), Left: BigInteger{v: x}, Right: BigInteger{v: y}, Message: "division by zero"}
		}
		r.Quo(x, y)
	}
	return BigInteger{v: r}, nil
}

func applyBigDecimal(op Op, x, y decimal.Decimal) (Value, error) {
	switch op {
	case OpAdd:
		return BigDecimal{d: x.Add(y)}, nil
	case OpSub:
		return BigDecimal{d: x.Sub(y)}, nil
	case OpMul:
		return BigDecimal{d: x.Mul(y)}, nil
	default:
		if y.IsZero() {
			return nil, &InvalidValueError{Op: op.String(), Left: BigDecimal{d: x}, Right: BigDecimal{d: y}, Message: "division by zero"}
		}
		return BigDecimal{d: x.DivRound(y, DivisionPrecision)}, nil
	}
}

// Compare orders two numeric values after promotion, or two strings, or two
// bools (false < true).
func Compare(a, b Value) (int, error) {
	a, b = Normalize(a), Normalize(b)
	switch x := a.(type) {
	case String:
		if y, ok := b.(String); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	case Bool:
		if y, ok := b.(Bool); ok {
			switch {
			case x == y:
				return 0, nil
			case !bool(x):
				return -1, nil
			}
			return 1, nil
		}
	}

	kind, ok := PromotedKind(a.Kind(), b.Kind())
	if !ok {
		return 0, &InvalidValueError{Op: "compare", Left: a, Right: b, Message: "operands are not comparable"}
	}
	switch kind {
	case KindLong:
		x, y := a.(Long), b.(Long)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case KindDouble:
		x, _ := ToDouble(a)
		y, _ := ToDouble(b)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case KindBigInteger:
		x, _ := ToBigInteger(a)
		y, _ := ToBigInteger(b)
		return x.Cmp(y), nil
	default:
		x, err := ToBigDecimal(a)
		if err != nil {
			return 0, err
		}
		y, err := ToBigDecimal(b)
		if err != nil {
			return 0, err
		}
		return x.Cmp(y), nil
	}
}

// Parse builds a value of the given kind from its text form.
func Parse(kind Kind, text string) (Value, error) {
	switch kind {
	case KindUnit:
		return Unit{}, nil
	case KindBool:
		switch text {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
	case KindString:
		return String(text), nil
	case KindLong:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return Long(n), nil
		}
	case KindDouble:
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return Double(f), nil
		}
	case KindBigInteger:
		return ParseBigInteger(text)
	case KindBigDecimal:
		return ParseBigDecimal(text)
	}
	return nil, &InvalidValueError{Op: "parse", Message: fmt.Sprintf("cannot parse %q as %s", text, kind)}
}

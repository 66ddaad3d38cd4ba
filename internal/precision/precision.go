// Package precision provides deterministic high-precision decimal primitives:
// division, natural logarithm, exponential, rational power, and explicit
// rounding to integers.
//
// Precision is a value threaded through every call (Context), never a
// process-wide setting.
//
// ln(1+x) and e^x - 1 are evaluated by series that never form 1+x and then
// subtract. Small deposits against a large reserve keep full relative
// precision.
package precision

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/volumefi/curve-engine/internal/model"
)

const (
	// DefaultDigits is the default working precision in significant digits.
	DefaultDigits int32 = 50

	// MinDigits and MaxDigits bound the accepted working precision. The
	// upper bound is set by the length of the embedded ln2/ln10 constants.
	MinDigits int32 = 50
	MaxDigits int32 = 100

	// guardDigits are carried beyond the working precision inside kernels.
	guardDigits int32 = 10

	// settleGuard is how many trailing digits of the working precision are
	// discarded before rounding to an integer.
	settleGuard int32 = 8
)

var (
	one        = decimal.NewFromInt(1)
	two        = decimal.NewFromInt(2)
	half       = decimal.New(5, -1)
	threeHalfs = decimal.New(15, -1)
	minusOne   = decimal.NewFromInt(-1)

	// maxExpArg bounds Exp; e^10000 is already ~10^4343.
	maxExpArg = decimal.NewFromInt(10_000)

	ln2  = decimal.RequireFromString("0.69314718055994530941723212145817656807550013436025525412068000949339362196969471560586332699641868754200148102057068573368552023")
	ln10 = decimal.RequireFromString("2.30258509299404568401799145468436420760110148862877297603332790096757260967735248023599720508959829834196778404228624863340952546")

	// MaxInteger is the largest integer result, 2^256 - 1.
	MaxInteger = decimal.NewFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)), 0)
)

// RoundingMode selects how a real result is turned into an integer amount.
type RoundingMode int

const (
	// RoundHalfUp rounds to nearest, ties away from zero.
	RoundHalfUp RoundingMode = iota
	// RoundDown rounds toward negative infinity (floor).
	RoundDown
	// RoundUp rounds toward positive infinity (ceiling).
	RoundUp
)

func (m RoundingMode) String() string {
	switch m {
	case RoundDown:
		return "down"
	case RoundUp:
		return "up"
	default:
		return "half-up"
	}
}

// Context carries the working precision. The zero value uses DefaultDigits.
type Context struct {
	digits int32
}

// New returns a Context with the given number of significant digits.
func New(digits int32) (Context, error) {
	if digits < MinDigits || digits > MaxDigits {
		return Context{}, fmt.Errorf("%w: precision %d digits outside [%d, %d]",
			model.ErrInvalidParameter, digits, MinDigits, MaxDigits)
	}
	return Context{digits: digits}, nil
}

// Default returns a Context with DefaultDigits.
func Default() Context {
	return Context{digits: DefaultDigits}
}

// Digits returns the working precision in significant digits.
func (c Context) Digits() int32 {
	if c.digits == 0 {
		return DefaultDigits
	}
	return c.digits
}

// magnitude returns e such that 10^e <= |x| < 10^(e+1). x must be non-zero.
func magnitude(x decimal.Decimal) int32 {
	return int32(x.NumDigits()) + x.Exponent() - 1
}

// places returns the number of fractional digits needed to carry x at the
// working precision plus guard digits.
func (c Context) places(x decimal.Decimal) int32 {
	if x.IsZero() {
		return c.Digits() + guardDigits
	}
	p := c.Digits() + guardDigits - magnitude(x)
	if p < 0 {
		return 0
	}
	return p
}

// Quo returns a / b carried to the working precision.
func (c Context) Quo(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: division of %s by zero", model.ErrDomain, a)
	}
	if a.IsZero() {
		return decimal.Zero, nil
	}
	// The quotient's magnitude is mag(a)-mag(b) or one below it.
	p := c.Digits() + guardDigits - (magnitude(a) - magnitude(b)) + 1
	if p < 0 {
		p = 0
	}
	return a.DivRound(b, p), nil
}

// atanh sums y + y^3/3 + y^5/5 + ... for |y| well below 1.
func (c Context) atanh(y decimal.Decimal) decimal.Decimal {
	if y.IsZero() {
		return decimal.Zero
	}
	p := c.places(y)
	y2 := y.Mul(y).Round(p)
	sum := y
	term := y
	for n := int64(3); ; n += 2 {
		term = term.Mul(y2).Round(p)
		if term.IsZero() {
			break
		}
		sum = sum.Add(term.DivRound(decimal.NewFromInt(n), p))
	}
	return sum
}

// Ln returns the natural logarithm of x.
func (c Context) Ln(x decimal.Decimal) (decimal.Decimal, error) {
	if x.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: ln of non-positive value %s", model.ErrDomain, x)
	}

	// x = m * 10^e * 2^k with m in [0.75, 1.5).
	e := magnitude(x)
	m := x.Shift(-e)
	k := int64(0)
	for m.GreaterThanOrEqual(threeHalfs) {
		m = m.Mul(half)
		k++
	}

	y, err := c.Quo(m.Sub(one), m.Add(one))
	if err != nil {
		return decimal.Zero, err
	}
	r := c.atanh(y).Mul(two)
	if e != 0 {
		r = r.Add(ln10.Mul(decimal.NewFromInt32(e)))
	}
	if k != 0 {
		r = r.Add(ln2.Mul(decimal.NewFromInt(k)))
	}
	return r.Round(c.places(r)), nil
}

// Log1p returns ln(1+x) for x > -1, accurate for x near zero.
func (c Context) Log1p(x decimal.Decimal) (decimal.Decimal, error) {
	if x.LessThanOrEqual(minusOne) {
		return decimal.Zero, fmt.Errorf("%w: ln(1 + %s) of non-positive value", model.ErrDomain, x)
	}
	if x.IsZero() {
		return decimal.Zero, nil
	}
	if x.Abs().GreaterThan(half) {
		return c.Ln(one.Add(x))
	}
	// ln(1+x) = 2 atanh(x / (2+x))
	y, err := c.Quo(x, two.Add(x))
	if err != nil {
		return decimal.Zero, err
	}
	return c.atanh(y).Mul(two), nil
}

// Exp returns e^x.
func (c Context) Exp(x decimal.Decimal) (decimal.Decimal, error) {
	if x.IsZero() {
		return one, nil
	}
	if x.GreaterThan(maxExpArg) {
		return decimal.Zero, fmt.Errorf("%w: e^%s", model.ErrPrecisionOverflow, x)
	}
	if x.LessThan(maxExpArg.Neg()) {
		return decimal.Zero, nil
	}

	// x = k ln2 + r with |r| <= ln2/2.
	k := x.DivRound(ln2, 0)
	r := x.Sub(ln2.Mul(k))
	er := c.expSeries(r)

	ki := k.IntPart()
	var scale decimal.Decimal
	switch {
	case ki > 0:
		scale = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), uint(ki)), 0)
	case ki < 0:
		// 2^-n = 5^n * 10^-n, exact.
		n := -ki
		scale = decimal.NewFromBigInt(new(big.Int).Exp(big.NewInt(5), big.NewInt(n), nil), int32(-n))
	default:
		scale = one
	}
	v := er.Mul(scale)
	return v.Round(c.places(v)), nil
}

// expSeries sums the Taylor series of e^r for |r| < 1.
func (c Context) expSeries(r decimal.Decimal) decimal.Decimal {
	p := c.Digits() + guardDigits + 1
	sum := one
	term := one
	for n := int64(1); ; n++ {
		term = term.Mul(r).DivRound(decimal.NewFromInt(n), p)
		if term.IsZero() {
			break
		}
		sum = sum.Add(term)
	}
	return sum
}

// Expm1 returns e^x - 1, accurate for x near zero.
func (c Context) Expm1(x decimal.Decimal) (decimal.Decimal, error) {
	if x.IsZero() {
		return decimal.Zero, nil
	}
	if x.Abs().GreaterThanOrEqual(half) {
		v, err := c.Exp(x)
		if err != nil {
			return decimal.Zero, err
		}
		return v.Sub(one), nil
	}
	p := c.places(x)
	sum := x
	term := x
	for n := int64(2); ; n++ {
		term = term.Mul(x).DivRound(decimal.NewFromInt(n), p)
		if term.IsZero() {
			break
		}
		sum = sum.Add(term)
	}
	return sum, nil
}

// Pow returns base^exponent for a non-negative base.
func (c Context) Pow(base, exponent decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case base.IsNegative():
		return decimal.Zero, fmt.Errorf("%w: power of negative base %s", model.ErrDomain, base)
	case exponent.IsZero():
		return one, nil
	case base.IsZero():
		if exponent.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: zero base with negative exponent %s", model.ErrDomain, exponent)
		}
		return decimal.Zero, nil
	}
	l, err := c.Ln(base)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Exp(l.Mul(exponent))
}

// Pow1pm1 returns (1+x)^w - 1 without cancellation for small x.
func (c Context) Pow1pm1(x, w decimal.Decimal) (decimal.Decimal, error) {
	l, err := c.Log1p(x)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Expm1(l.Mul(w))
}

// RequiredDigits returns the working precision needed to round x to an
// integer with settleGuard digits discarded and guardDigits of fraction
// still intact.
func RequiredDigits(x decimal.Decimal) int32 {
	if x.IsZero() {
		return MinDigits
	}
	n := magnitude(x) + settleGuard + guardDigits + 1
	if n < MinDigits {
		return MinDigits
	}
	return n
}

// WithDigits returns a copy of c carrying at least digits significant
// digits, capped at MaxDigits. It never lowers the precision.
func (c Context) WithDigits(digits int32) Context {
	if digits > MaxDigits {
		digits = MaxDigits
	}
	if digits <= c.Digits() {
		return c
	}
	return Context{digits: digits}
}

// settle discards the trailing guard digits of x so that results which are
// mathematically integers round exactly.
func (c Context) settle(x decimal.Decimal) decimal.Decimal {
	if x.IsZero() {
		return x
	}
	return x.Round(c.Digits() - settleGuard - magnitude(x))
}

// ToInteger rounds x to an integer with the given mode and checks it fits
// in MaxInteger. x must have been computed at RequiredDigits(x) or more;
// otherwise its last integer digits are noise and the call fails with
// ErrPrecisionOverflow instead of rounding the wrong way.
func (c Context) ToInteger(x decimal.Decimal, mode RoundingMode) (decimal.Decimal, error) {
	if need := RequiredDigits(x); need > c.Digits() {
		return decimal.Zero, fmt.Errorf("%w: rounding %s needs %d digits, have %d",
			model.ErrPrecisionOverflow, x.Round(0), need, c.Digits())
	}
	s := c.settle(x)
	var v decimal.Decimal
	switch mode {
	case RoundDown:
		v = s.RoundFloor(0)
	case RoundUp:
		v = s.RoundCeil(0)
	default:
		v = s.Round(0)
	}
	if v.Abs().GreaterThan(MaxInteger) {
		return decimal.Zero, fmt.Errorf("%w: %s exceeds 2^256-1", model.ErrPrecisionOverflow, v)
	}
	return v, nil
}

// MulDiv returns a*b/d rounded with mode, computed exactly on integers.
// a, b and d must be non-negative integers.
func MulDiv(a, b, d decimal.Decimal, mode RoundingMode) (decimal.Decimal, error) {
	if d.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: division of %s*%s by zero", model.ErrDomain, a, b)
	}
	num := new(big.Int).Mul(a.BigInt(), b.BigInt())
	den := d.BigInt()
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		switch mode {
		case RoundUp:
			q.Add(q, big.NewInt(1))
		case RoundHalfUp:
			if new(big.Int).Lsh(r, 1).Cmp(den) >= 0 {
				q.Add(q, big.NewInt(1))
			}
		}
	}
	v := decimal.NewFromBigInt(q, 0)
	if v.GreaterThan(MaxInteger) {
		return decimal.Zero, fmt.Errorf("%w: %s exceeds 2^256-1", model.ErrPrecisionOverflow, v)
	}
	return v, nil
}

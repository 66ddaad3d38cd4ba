package precision

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/volumefi/curve-engine/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// closeTo reports whether got and want agree to within tol relative error.
func closeTo(got, want decimal.Decimal, tol string) bool {
	if want.IsZero() {
		return got.Abs().LessThanOrEqual(d(tol))
	}
	rel := got.Sub(want).Abs().DivRound(want.Abs(), 80)
	return rel.LessThanOrEqual(d(tol))
}

// --- Constructor tests ---

func TestNew_RejectsOutOfRangeDigits(t *testing.T) {
	for _, digits := range []int32{0, 10, 49, 101} {
		if _, err := New(digits); !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("digits=%d: expected ErrInvalidParameter, got %v", digits, err)
		}
	}
}

func TestZeroContext_UsesDefault(t *testing.T) {
	var c Context
	if c.Digits() != DefaultDigits {
		t.Errorf("expected %d digits, got %d", DefaultDigits, c.Digits())
	}
}

// --- Logarithm tests ---

func TestLn_KnownValues(t *testing.T) {
	c := Default()
	tests := []struct {
		x, want string
	}{
		{"1", "0"},
		{"2", "0.69314718055994530941723212145817656807550013436025525412068"},
		{"10", "2.3025850929940456840179914546843642076011014886287729760333"},
		{"0.5", "-0.69314718055994530941723212145817656807550013436025525412068"},
		{"2.718281828459045235360287471352662497757247093699959574966967", "1"},
		{"1000000000000000000", "41.44653167389282231232384618431855573681982679531791356859990"},
	}
	for _, tt := range tests {
		got, err := c.Ln(d(tt.x))
		if err != nil {
			t.Fatalf("ln(%s): unexpected error: %v", tt.x, err)
		}
		if !closeTo(got, d(tt.want), "1e-55") {
			t.Errorf("ln(%s) = %s, want %s", tt.x, got, tt.want)
		}
	}
}

func TestLn_NonPositiveIsDomainError(t *testing.T) {
	c := Default()
	for _, x := range []string{"0", "-1", "-0.0001"} {
		if _, err := c.Ln(d(x)); !errors.Is(err, model.ErrDomain) {
			t.Errorf("ln(%s): expected ErrDomain, got %v", x, err)
		}
	}
}

func TestLog1p_TinyArgumentKeepsRelativePrecision(t *testing.T) {
	c := Default()
	// ln(1+x) = x - x^2/2 + x^3/3 - ...; for x = 1e-30 the second term is
	// 5e-61 and must survive.
	got, err := c.Log1p(d("1e-30"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := d("1e-30").Sub(d("5e-61"))
	if !closeTo(got, want, "1e-50") {
		t.Errorf("log1p(1e-30) = %s, want %s", got, want)
	}
	if got.Equal(d("1e-30")) {
		t.Error("log1p(1e-30) lost the second-order term")
	}
}

func TestLog1p_MatchesLn(t *testing.T) {
	c := Default()
	for _, x := range []string{"0.25", "-0.25", "0.5", "3", "399999999", "-0.9"} {
		a, err := c.Log1p(d(x))
		if err != nil {
			t.Fatalf("log1p(%s): %v", x, err)
		}
		b, err := c.Ln(d(x).Add(decimal.NewFromInt(1)))
		if err != nil {
			t.Fatalf("ln(1+%s): %v", x, err)
		}
		if !closeTo(a, b, "1e-52") {
			t.Errorf("log1p(%s)=%s disagrees with ln(1+x)=%s", x, a, b)
		}
	}
}

func TestLog1p_AtMinusOneIsDomainError(t *testing.T) {
	if _, err := Default().Log1p(d("-1")); !errors.Is(err, model.ErrDomain) {
		t.Errorf("expected ErrDomain, got %v", err)
	}
}

// --- Exponential tests ---

func TestExp_KnownValues(t *testing.T) {
	c := Default()
	tests := []struct {
		x, want string
	}{
		{"0", "1"},
		{"1", "2.718281828459045235360287471352662497757247093699959574966967"},
		{"-1", "0.36787944117144232159552377016146086744581113103176783450783680"},
		{"0.69314718055994530941723212145817656807550013436025525412068000949", "2"},
		{"100", "26881171418161354484126255515800135873611118.773741922415191608"},
	}
	for _, tt := range tests {
		got, err := c.Exp(d(tt.x))
		if err != nil {
			t.Fatalf("exp(%s): unexpected error: %v", tt.x, err)
		}
		if !closeTo(got, d(tt.want), "1e-55") {
			t.Errorf("exp(%s) = %s, want %s", tt.x, got, tt.want)
		}
	}
}

func TestExp_Overflow(t *testing.T) {
	if _, err := Default().Exp(d("10001")); !errors.Is(err, model.ErrPrecisionOverflow) {
		t.Errorf("expected ErrPrecisionOverflow, got %v", err)
	}
}

func TestExp_LargeNegativeUnderflowsToZero(t *testing.T) {
	got, err := Default().Exp(d("-10001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("expected 0, got %s", got)
	}
}

func TestExpm1_TinyArgument(t *testing.T) {
	got, err := Default().Expm1(d("1e-20"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := d("1e-20").Add(d("5e-41"))
	if !closeTo(got, want, "1e-50") {
		t.Errorf("expm1(1e-20) = %s, want %s", got, want)
	}
}

func TestExpm1_InvertsLog1p(t *testing.T) {
	c := Default()
	for _, x := range []string{"1e-18", "0.001", "-0.3", "2", "400000000"} {
		l, err := c.Log1p(d(x))
		if err != nil {
			t.Fatalf("log1p(%s): %v", x, err)
		}
		back, err := c.Expm1(l)
		if err != nil {
			t.Fatalf("expm1: %v", err)
		}
		if !closeTo(back, d(x), "1e-48") {
			t.Errorf("expm1(log1p(%s)) = %s", x, back)
		}
	}
}

// --- Power tests ---

func TestPow_RationalExponent(t *testing.T) {
	c := Default()
	tests := []struct {
		base, exp, want string
	}{
		{"4", "0.5", "2"},
		{"2", "10", "1024"},
		{"8", "0.333333333333333333333333333333333333333333333333333333333333", "2"},
		{"9", "-0.5", "0.333333333333333333333333333333333333333333333333333333333333"},
	}
	for _, tt := range tests {
		got, err := c.Pow(d(tt.base), d(tt.exp))
		if err != nil {
			t.Fatalf("%s^%s: unexpected error: %v", tt.base, tt.exp, err)
		}
		if !closeTo(got, d(tt.want), "1e-50") {
			t.Errorf("%s^%s = %s, want %s", tt.base, tt.exp, got, tt.want)
		}
	}
}

func TestPow_ZeroAndNegativeBase(t *testing.T) {
	c := Default()
	if got, err := c.Pow(decimal.Zero, d("0.5")); err != nil || !got.IsZero() {
		t.Errorf("0^0.5: got %s, %v", got, err)
	}
	if _, err := c.Pow(decimal.Zero, d("-1")); !errors.Is(err, model.ErrDomain) {
		t.Errorf("0^-1: expected ErrDomain, got %v", err)
	}
	if _, err := c.Pow(d("-2"), d("0.5")); !errors.Is(err, model.ErrDomain) {
		t.Errorf("(-2)^0.5: expected ErrDomain, got %v", err)
	}
}

func TestPow1pm1_ExactSquare(t *testing.T) {
	// (1+1)^2 - 1 = 3
	got, err := Default().Pow1pm1(d("1"), d("2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !closeTo(got, d("3"), "1e-55") {
		t.Errorf("got %s, want 3", got)
	}
}

// --- Division tests ---

func TestQuo_DivideByZero(t *testing.T) {
	if _, err := Default().Quo(d("1"), decimal.Zero); !errors.Is(err, model.ErrDomain) {
		t.Errorf("expected ErrDomain, got %v", err)
	}
}

func TestQuo_CarriesSignificantDigits(t *testing.T) {
	got, err := Default().Quo(d("1"), d("3000000000000000000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := d("3.33333333333333333333333333333333333333333333333333e-19")
	if !closeTo(got, want, "1e-50") {
		t.Errorf("1/3e18 = %s", got)
	}
}

// --- Rounding tests ---

func TestToInteger_Modes(t *testing.T) {
	c := Default()
	tests := []struct {
		x    string
		mode RoundingMode
		want string
	}{
		{"2.5", RoundHalfUp, "3"},
		{"2.4999", RoundHalfUp, "2"},
		{"2.9", RoundDown, "2"},
		{"2.1", RoundUp, "3"},
		{"7", RoundUp, "7"},
		{"7", RoundDown, "7"},
		{"465551.958761782250110196902", RoundHalfUp, "465552"},
	}
	for _, tt := range tests {
		got, err := c.ToInteger(d(tt.x), tt.mode)
		if err != nil {
			t.Fatalf("%s (%s): %v", tt.x, tt.mode, err)
		}
		if !got.Equal(d(tt.want)) {
			t.Errorf("round %s (%s) = %s, want %s", tt.x, tt.mode, got, tt.want)
		}
	}
}

func TestToInteger_SettlesNearIntegers(t *testing.T) {
	c := Default()
	// A value one part in 10^60 above an integer is an integer at 50 digits.
	x := d("30000000000000000000").Add(d("1e-41"))
	got, err := c.ToInteger(x, RoundUp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d("30000000000000000000")) {
		t.Errorf("expected settled ceiling 3e19, got %s", got)
	}
}

func TestToInteger_Overflow(t *testing.T) {
	_, err := Default().ToInteger(MaxInteger.Add(d("10")), RoundDown)
	if !errors.Is(err, model.ErrPrecisionOverflow) {
		t.Errorf("expected ErrPrecisionOverflow, got %v", err)
	}
}

func TestToInteger_RejectsUnresolvedDigits(t *testing.T) {
	x := d("1234567890123456789012345678901234567890.75")
	if _, err := Default().ToInteger(x, RoundDown); !errors.Is(err, model.ErrPrecisionOverflow) {
		t.Fatalf("expected ErrPrecisionOverflow at default precision, got %v", err)
	}
	got, err := Default().WithDigits(RequiredDigits(x)).ToInteger(x, RoundDown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d("1234567890123456789012345678901234567890")) {
		t.Errorf("floor = %s", got)
	}
}

func TestRequiredDigits(t *testing.T) {
	tests := []struct {
		x    string
		want int32
	}{
		{"0", MinDigits},
		{"123.5", MinDigits},
		{"1e31", MinDigits},
		{"1e32", 51},
		{"1e40", 59},
	}
	for _, tt := range tests {
		if got := RequiredDigits(d(tt.x)); got != tt.want {
			t.Errorf("RequiredDigits(%s) = %d, want %d", tt.x, got, tt.want)
		}
	}
	if got := RequiredDigits(MaxInteger); got > MaxDigits {
		t.Errorf("RequiredDigits(MaxInteger) = %d exceeds MaxDigits", got)
	}
}

func TestWithDigits(t *testing.T) {
	c := Default()
	if got := c.WithDigits(40).Digits(); got != DefaultDigits {
		t.Errorf("lowering: got %d digits, want %d", got, DefaultDigits)
	}
	if got := c.WithDigits(80).Digits(); got != 80 {
		t.Errorf("raising: got %d digits, want 80", got)
	}
	if got := c.WithDigits(500).Digits(); got != MaxDigits {
		t.Errorf("capping: got %d digits, want %d", got, MaxDigits)
	}
	if c.Digits() != DefaultDigits {
		t.Errorf("receiver changed to %d digits", c.Digits())
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		a, b, den string
		mode      RoundingMode
		want      string
	}{
		{"10", "7", "3", RoundDown, "23"},
		{"10", "7", "3", RoundUp, "24"},
		{"10", "7", "3", RoundHalfUp, "23"},
		{"5", "1", "2", RoundHalfUp, "3"},
		{"9", "4", "6", RoundUp, "6"},
	}
	for _, tt := range tests {
		got, err := MulDiv(d(tt.a), d(tt.b), d(tt.den), tt.mode)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(d(tt.want)) {
			t.Errorf("%s*%s/%s (%s) = %s, want %s", tt.a, tt.b, tt.den, tt.mode, got, tt.want)
		}
	}
	if _, err := MulDiv(d("1"), d("1"), decimal.Zero, RoundDown); !errors.Is(err, model.ErrDomain) {
		t.Errorf("expected ErrDomain for zero divisor, got %v", err)
	}
}

func TestContext_ConcurrentUse(t *testing.T) {
	c := Default()
	done := make(chan decimal.Decimal, 8)
	for i := 0; i < 8; i++ {
		go func() {
			v, _ := c.Ln(d("12345.6789"))
			done <- v
		}()
	}
	first := <-done
	for i := 1; i < 8; i++ {
		if v := <-done; !v.Equal(first) {
			t.Errorf("non-deterministic result: %s vs %s", v, first)
		}
	}
}

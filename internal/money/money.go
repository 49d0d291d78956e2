// Package money provides exact fixed-point arithmetic for monetary values.
// All ledger amounts flow through Amount; float64 never touches the books.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Amount is a fixed-point monetary value with two decimal digits of
// precision. The zero value is an amount of zero.
type Amount struct {
	dec decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{}

// New builds an Amount from major and minor units, e.g. New(12, 50) == 12.50.
func New(units int64, cents int64) Amount {
	return Amount{dec: decimal.New(units*100+cents, -2)}
}

// FromDecimal wraps a raw decimal as an Amount.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{dec: d}
}

// Parse reads an amount from its decimal string form ("123.45").
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return Amount{dec: d}, nil
}

// MustParse is Parse for trusted literals; it panics on malformed input.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromFloat converts a float64 coming from an external boundary. The result
// is rounded to two decimal places immediately so the imprecision cannot
// propagate into the ledger.
func FromFloat(f float64) Amount {
	return Amount{dec: decimal.NewFromFloat(f)}.Round2()
}

func (a Amount) Add(b Amount) Amount { return Amount{dec: a.dec.Add(b.dec)} }
func (a Amount) Sub(b Amount) Amount { return Amount{dec: a.dec.Sub(b.dec)} }
func (a Amount) Neg() Amount         { return Amount{dec: a.dec.Neg()} }

// MulPercent returns a * pct/100, unrounded.
func (a Amount) MulPercent(pct Amount) Amount {
	return Amount{dec: a.dec.Mul(pct.dec).Div(decimal.NewFromInt(100))}
}

// Round2 rounds half away from zero to two decimal places.
func (a Amount) Round2() Amount {
	return Amount{dec: a.dec.Round(2)}
}

func (a Amount) IsZero() bool     { return a.dec.IsZero() }
func (a Amount) IsPositive() bool { return a.dec.IsPositive() }
func (a Amount) IsNegative() bool { return a.dec.IsNegative() }

func (a Amount) Equal(b Amount) bool       { return a.dec.Equal(b.dec) }
func (a Amount) LessThan(b Amount) bool    { return a.dec.LessThan(b.dec) }
func (a Amount) GreaterThan(b Amount) bool { return a.dec.GreaterThan(b.dec) }

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// String renders the amount with exactly two decimal places, the form used
// for SQL numeric parameters and JSON payloads.
func (a Amount) String() string {
	return a.dec.StringFixed(2)
}

// Float64 returns an approximate float representation for display-only uses
// such as metrics gauges. Never feed the result back into ledger arithmetic.
func (a Amount) Float64() float64 {
	f, _ := a.dec.Float64()
	return f
}

// MarshalJSON encodes the amount as a JSON string to keep precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both "123.45" and bare 123.45 forms.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

var usdPrinter = message.NewPrinter(language.English)

// FormatUSD renders the amount for human-facing messages, e.g. "$1,234.56".
func (a Amount) FormatUSD() string {
	return usdPrinter.Sprintf("$%.2f", a.Float64())
}

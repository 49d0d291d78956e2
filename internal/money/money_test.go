package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	a := MustParse("123.45")
	require.Equal(t, "123.45", a.String())

	b := MustParse("0.1")
	require.Equal(t, "0.10", b.String())

	_, err := Parse("not-a-number")
	require.Error(t, err)
}

func TestArithmeticExact(t *testing.T) {
	// 0.1 + 0.2 must be exactly 0.3, not 0.30000000000000004.
	sum := MustParse("0.1").Add(MustParse("0.2"))
	require.True(t, sum.Equal(MustParse("0.3")))

	diff := MustParse("500.00").Sub(MustParse("500.00"))
	require.True(t, diff.IsZero())
}

func TestRoundHalfUp(t *testing.T) {
	require.Equal(t, "1.01", MustParse("1.005").Round2().String())
	require.Equal(t, "2.35", MustParse("2.345").Round2().String())
	require.Equal(t, "2.34", MustParse("2.344").Round2().String())
}

func TestMulPercent(t *testing.T) {
	got := MustParse("250.00").MulPercent(MustParse("20")).Round2()
	require.Equal(t, "50.00", got.String())
}

func TestMinMax(t *testing.T) {
	a := MustParse("100.00")
	b := MustParse("50.00")
	require.True(t, a.Min(b).Equal(b))
	require.True(t, a.Max(b).Equal(a))
	require.True(t, a.Min(a).Equal(a))
}

func TestComparisons(t *testing.T) {
	require.True(t, MustParse("0.01").IsPositive())
	require.True(t, MustParse("-0.01").IsNegative())
	require.True(t, Zero.IsZero())
	require.True(t, MustParse("1.00").GreaterThan(MustParse("0.99")))
	require.True(t, MustParse("0.99").LessThan(MustParse("1.00")))
}

func TestJSONRoundTrip(t *testing.T) {
	a := MustParse("99.90")
	data, err := json.Marshal(a)
	require.NoError(t, err)
	require.Equal(t, `"99.90"`, string(data))

	var back Amount
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, back.Equal(a))

	// Bare numeric form also accepted.
	require.NoError(t, json.Unmarshal([]byte(`12.5`), &back))
	require.True(t, back.Equal(MustParse("12.50")))
}

func TestFormatUSD(t *testing.T) {
	require.Equal(t, "$1,234.56", MustParse("1234.56").FormatUSD())
}

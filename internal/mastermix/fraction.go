package mastermix

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

const maxDenominator = 10000

// FractionToDecimal parses a dilution written as "1/250" or "0.004".
// Blank, malformed or divide-by-zero input yields 0.
func FractionToDecimal(value string) float64 {
	token := strings.TrimSpace(value)
	if token == "" {
		return 0
	}
	if num, den, ok := strings.Cut(token, "/"); ok {
		n, errN := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, errD := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if errN != nil || errD != nil || d == 0 {
			return 0
		}
		return n / d
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0
	}
	return v
}

// DecimalToFraction renders a dilution for display: "1/N" when the value is
// the reciprocal of an integer, "N/A" for non-positive values, otherwise the
// closest fraction with a denominator of at most 10000.
func DecimalToFraction(value float64) string {
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return "N/A"
	}
	reciprocal := 1 / value
	rounded := math.Round(reciprocal)
	if rounded > 0 && math.Abs(reciprocal-rounded) < 1e-6 {
		return "1/" + strconv.FormatFloat(rounded, 'f', 0, 64)
	}
	r := limitDenominator(new(big.Rat).SetFloat64(value), maxDenominator)
	return r.Num().String() + "/" + r.Denom().String()
}

// limitDenominator returns the closest rational to x whose denominator does
// not exceed limit, walking the continued fraction expansion of x.
func limitDenominator(x *big.Rat, limit int64) *big.Rat {
	lim := big.NewInt(limit)
	if x.Denom().Cmp(lim) <= 0 {
		return new(big.Rat).Set(x)
	}
	p0, q0 := big.NewInt(0), big.NewInt(1)
	p1, q1 := big.NewInt(1), big.NewInt(0)
	n := new(big.Int).Set(x.Num())
	d := new(big.Int).Set(x.Denom())
	a, q2, tmp := new(big.Int), new(big.Int), new(big.Int)
	for {
		a.Quo(n, d)
		q2.Add(q0, tmp.Mul(a, q1))
		if q2.Cmp(lim) > 0 {
			break
		}
		p0, q0, p1, q1 = p1, q1, new(big.Int).Add(p0, tmp.Mul(a, p1)), new(big.Int).Set(q2)
		n, d = d, new(big.Int).Sub(n, tmp.Mul(a, d))
	}
	k := new(big.Int).Quo(new(big.Int).Sub(lim, q0), q1)
	bound1 := new(big.Rat).SetFrac(
		new(big.Int).Add(p0, new(big.Int).Mul(k, p1)),
		new(big.Int).Add(q0, new(big.Int).Mul(k, q1)),
	)
	bound2 := new(big.Rat).SetFrac(p1, q1)
	dist1 := new(big.Rat).Abs(new(big.Rat).Sub(bound1, x))
	dist2 := new(big.Rat).Abs(new(big.Rat).Sub(bound2, x))
	if dist2.Cmp(dist1) <= 0 {
		return bound2
	}
	return bound1
}

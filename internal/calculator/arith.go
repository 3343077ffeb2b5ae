package calculator

import (
	"math"
	"math/bits"
)

// addChecked returns a+b and false if the sum overflows int64.
func addChecked(a, b int64) (int64, bool) {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		return 0, false
	}
	return sum, true
}

// mulChecked returns a*b and false if the product overflows int64.
func mulChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return product, true
}

// magnitude splits v into its sign (-1, 0, 1) and absolute value. Callers
// must reject math.MinInt64 beforehand.
func magnitude(v int64) (int64, uint64) {
	switch {
	case v < 0:
		return -1, uint64(-v)
	case v > 0:
		return 1, uint64(v)
	default:
		return 0, 0
	}
}

// mulDiv computes floor(a*b/d) and (a*b) mod d with a 128-bit intermediate
// product. It requires b <= d and d > 0, which keeps the quotient within a.
func mulDiv(a, b, d uint64) (quo, rem uint64) {
	hi, lo := bits.Mul64(a, b)
	return bits.Div64(hi, lo, d)
}

package model

import "math"

// MaxAmount bounds every amount and balance carried in a payload. Codes are
// produced and read by devices that store numbers as IEEE doubles, which are
// exact only up to 2^53-1.
const MaxAmount int64 = 1<<53 - 1

// ValidAmount reports whether n is within ±MaxAmount
func ValidAmount(n int64) bool {
	return n >= -MaxAmount && n <= MaxAmount
}

// AddBalance returns a+b, or false when the sum does not fit in an int64
func AddBalance(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

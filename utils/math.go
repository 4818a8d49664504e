package utils

// ClampInt returns value restricted to [lo, hi].
func ClampInt(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// PositiveMod returns a mod n in [0, n) for n > 0, including for negative a.
func PositiveMod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

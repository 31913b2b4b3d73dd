// Package percentile computes robust intensity ranges over float samples
// using partial order statistics.
package percentile

import "math"

// Clip returns the values at the lowPct and highPct percentiles of samples.
//
// NaN samples are ignored. If lowPct > highPct the two are swapped. An empty
// slice yields (0, 0) and a slice holding only NaNs yields (NaN, NaN).
//
// Clip reorders samples in place. Callers that still need the original
// order must pass a copy.
func Clip(samples []float32, lowPct, highPct int) (lo, hi float32) {
	if len(samples) == 0 {
		return 0, 0
	}
	if lowPct > highPct {
		lowPct, highPct = highPct, lowPct
	}

	valid := partitionNaN(samples)
	if valid == 0 {
		nan := float32(math.NaN())
		return nan, nan
	}
	s := samples[:valid]

	lo = selectNth(s, index(lowPct, valid))
	hi = selectNth(s, index(highPct, valid))
	return lo, hi
}

// index maps a percentage to a position in a prefix of n valid samples.
// 100% maps to the last element rather than one past it.
func index(pct, n int) int {
	pct = max(0, min(pct, 100))
	i := pct * n / 100
	if i >= n {
		i = n - 1
	}
	return i
}

// partitionNaN moves every non-NaN value to the front of s and returns how
// many there are. The order of the non-NaN values is not preserved.
func partitionNaN(s []float32) int {
	n := 0
	for i, v := range s {
		if v != v {
			continue
		}
		s[n], s[i] = s[i], s[n]
		n++
	}
	return n
}

// less is the IEEE 754 total order restricted to non-NaN values:
// ordinary comparison, with -0 ordered before +0.
func less(a, b float32) bool {
	if a != b {
		return a < b
	}
	return math.Signbit(float64(a)) && !math.Signbit(float64(b))
}

// selectNth returns the k-th smallest element of s (0-based) using
// quickselect with a median-of-three pivot and a three-way partition, so
// long runs of equal samples (blank regions of a cube) stay linear.
// s is reordered.
func selectNth(s []float32, k int) float32 {
	left, right := 0, len(s)-1
	for left < right {
		lt, gt := partition3(s, left, right, s[medianOfThree(s, left, right)])
		switch {
		case k < lt:
			right = lt - 1
		case k > gt:
			left = gt + 1
		default:
			return s[k]
		}
	}
	return s[k]
}

func medianOfThree(s []float32, left, right int) int {
	mid := left + (right-left)/2
	if less(s[mid], s[left]) {
		s[mid], s[left] = s[left], s[mid]
	}
	if less(s[right], s[left]) {
		s[right], s[left] = s[left], s[right]
	}
	if less(s[right], s[mid]) {
		s[right], s[mid] = s[mid], s[right]
	}
	return mid
}

// partition3 rearranges s[left:right+1] into values ordered before pv,
// values equal to pv, and values ordered after pv. It returns the bounds
// [lt, gt] of the equal run.
func partition3(s []float32, left, right int, pv float32) (lt, gt int) {
	lt, i, gt := left, left, right
	for i <= gt {
		switch v := s[i]; {
		case less(v, pv):
			s[lt], s[i] = s[i], s[lt]
			lt++
			i++
		case less(pv, v):
			s[i], s[gt] = s[gt], s[i]
			gt--
		default:
			i++
		}
	}
	return lt, gt
}

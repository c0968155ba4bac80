// Package stats provides the statistics primitives shared by the rule
// evaluators and the analytics engine. All functions are pure and perform
// no I/O.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Median returns the middle value of the sorted input, or 0 for an empty slice.
// The input is not modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StdDev returns the sample standard deviation (n-1 divisor), or 0 when
// fewer than two values are given
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// ZScore returns (value - mean) / std. A zero std yields 0; there is no
// variability to score against.
func ZScore(value, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (value - mean) / std
}

// Slope returns the ordinary-least-squares regression slope of y against x.
// Fewer than two points yield 0.
func Slope(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}

// Pearson returns the Pearson correlation coefficient and its two-sided
// p-value. Fewer than two points yield (0, 1).
func Pearson(x, y []float64) (r, p float64) {
	if len(x) < 2 || len(x) != len(y) {
		return 0, 1
	}
	r = stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		// constant input has no defined correlation
		return 0, 1
	}
	return r, pValue(r, len(x))
}

// Spearman returns the Spearman rank correlation coefficient and its
// two-sided p-value, computed as the Pearson correlation of the
// tie-averaged ranks
func Spearman(x, y []float64) (r, p float64) {
	if len(x) < 2 || len(x) != len(y) {
		return 0, 1
	}
	return Pearson(Ranks(x), Ranks(y))
}

// Ranks returns the 1-based ranks of values, averaging ties
func Ranks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return values[idx[a]] < values[idx[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// average rank across the tie run [i, j]
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// pValue computes the two-sided p-value for a correlation coefficient r
// over n paired observations, using the t distribution with n-2 degrees
// of freedom
func pValue(r float64, n int) float64 {
	if n < 3 {
		return 1
	}
	denom := 1 - r*r
	if denom <= 0 {
		// |r| == 1: perfectly correlated
		return 0
	}
	t := r * math.Sqrt(float64(n-2)/denom)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	p := 2 * (1 - dist.CDF(math.Abs(t)))
	// guard against floating point drift past the valid range
	return math.Min(math.Max(p, 0), 1)
}

// Percentile returns the q-th percentile (0-100) of values using linear
// interpolation between closest ranks, or 0 for an empty slice.
// The input is not modified.
func Percentile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 100 {
		return sorted[n-1]
	}
	pos := q / 100 * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

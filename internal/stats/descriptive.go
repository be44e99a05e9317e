package stats

import (
	"fmt"
	"math"
	"sort"
)

// Interpolation selects how Percentile resolves ranks that fall between
// two observations.
type Interpolation int

const (
	Linear   Interpolation = iota // linear between neighbours (default)
	Lower                         // lower neighbour
	Higher                        // higher neighbour
	Nearest                       // nearest neighbour, ties go to the even index
	Midpoint                      // mean of the two neighbours
)

// Mean returns the arithmetic mean of the present values.
func Mean(series []Value) Value {
	vals := valid(series)
	if len(vals) == 0 {
		return None()
	}
	return Some(mean(vals))
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// StdDev returns the standard deviation of the present values. ddof=0 gives
// the population estimate, ddof=1 the sample estimate. Fewer than ddof+1
// present values yields no-value.
func StdDev(series []Value, ddof int) (Value, error) {
	if ddof < 0 {
		return None(), fmt.Errorf("%w: ddof %d must be >= 0", ErrInvalidParameter, ddof)
	}
	vals := valid(series)
	if len(vals) < ddof+1 || len(vals) == 0 {
		return None(), nil
	}
	return Some(stddev(vals, ddof)), nil
}

func stddev(vals []float64, ddof int) float64 {
	m := mean(vals)
	var ss float64
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-ddof))
}

// Percentile returns the p-th percentile (p in [0,100]) of the present values.
func Percentile(series []Value, p float64, interp Interpolation) (Value, error) {
	if math.IsNaN(p) || p < 0 || p > 100 {
		return None(), fmt.Errorf("%w: percentile %v outside [0,100]", ErrInvalidParameter, p)
	}
	vals := valid(series)
	if len(vals) == 0 {
		return None(), nil
	}
	sort.Float64s(vals)
	return Some(percentileSorted(vals, p, interp)), nil
}

func percentileSorted(sorted []float64, p float64, interp Interpolation) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)

	switch interp {
	case Lower:
		return sorted[lo]
	case Higher:
		return sorted[hi]
	case Nearest:
		if frac == 0.5 {
			if lo%2 == 0 {
				return sorted[lo]
			}
			return sorted[hi]
		}
		if frac < 0.5 {
			return sorted[lo]
		}
		return sorted[hi]
	case Midpoint:
		return (sorted[lo] + sorted[hi]) / 2
	default:
		return sorted[lo] + frac*(sorted[hi]-sorted[lo])
	}
}

// ZScore returns (value-mean)/stddev, or no-value when stddev is zero.
func ZScore(value, mean, stddev float64) Value {
	if stddev == 0 {
		return None()
	}
	return Some((value - mean) / stddev)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

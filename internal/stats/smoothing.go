package stats

import (
	"fmt"
	"math"
)

// MovingAverage returns the trailing mean over window entries for each index.
// Only present values are averaged; an index whose window holds no present
// value is no-value. Each window is summed afresh.
func MovingAverage(series []Value, window int) ([]Value, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: window %d must be >= 1", ErrInvalidParameter, window)
	}

	out := make([]Value, len(series))
	for i := range series {
		var sum float64
		var count int
		for _, x := range series[max(0, i-window+1) : i+1] {
			if x.ok {
				sum += x.v
				count++
			}
		}
		if count > 0 {
			out[i] = Some(sum / float64(count))
		}
	}

	return out, nil
}

// AlphaFromHalflife converts a halflife (in samples) into a smoothing factor.
func AlphaFromHalflife(halflife float64) (float64, error) {
	if !(halflife > 0) || math.IsInf(halflife, 0) {
		return 0, fmt.Errorf("%w: halflife %v must be > 0", ErrInvalidParameter, halflife)
	}
	return 1 - math.Exp(-math.Ln2/halflife), nil
}

// ExponentialMovingAverage smooths series in one pass with factor alpha in
// (0,1]. The state is seeded from the first present value. Missing entries
// produce no-value and leave the state untouched.
func ExponentialMovingAverage(series []Value, alpha float64) ([]Value, error) {
	if !(alpha > 0 && alpha <= 1) {
		return nil, fmt.Errorf("%w: alpha %v outside (0,1]", ErrInvalidParameter, alpha)
	}

	out := make([]Value, len(series))
	var state float64
	seeded := false

	for i, x := range series {
		if !x.ok {
			continue
		}
		if !seeded {
			state = x.v
			seeded = true
		} else {
			state = alpha*x.v + (1-alpha)*state
		}
		out[i] = Some(state)
	}

	return out, nil
}

package stats

import (
	"fmt"
	"math"
	"sort"
)

// OutlierMethod selects the rule used by DetectOutliers.
type OutlierMethod string

const (
	OutlierIQR    OutlierMethod = "iqr"
	OutlierZScore OutlierMethod = "zscore"
)

// Default thresholds for DetectOutliers.
const (
	DefaultIQRMultiplier = 1.5
	DefaultZScoreCutoff  = 3.0
	madScale             = 0.6745
	meanAbsDevScale      = 1.2533
)

// DetectOutliers flags entries of series that are outliers under method.
// A threshold <= 0 selects the method default. Missing entries are never
// flagged.
//
// The z-score method scores each value as 0.6745*(x-median)/MAD.
func DetectOutliers(series []Value, method OutlierMethod, threshold float64) ([]bool, error) {
	flags := make([]bool, len(series))
	vals := valid(series)

	switch method {
	case OutlierIQR:
		if threshold <= 0 {
			threshold = DefaultIQRMultiplier
		}
		if len(vals) == 0 {
			return flags, nil
		}
		sort.Float64s(vals)
		q1 := percentileSorted(vals, 25, Linear)
		q3 := percentileSorted(vals, 75, Linear)
		iqr := q3 - q1
		lo, hi := q1-threshold*iqr, q3+threshold*iqr
		for i, x := range series {
			flags[i] = x.ok && (x.v < lo || x.v > hi)
		}
		return flags, nil

	case OutlierZScore:
		if threshold <= 0 {
			threshold = DefaultZScoreCutoff
		}
		if len(vals) == 0 {
			return flags, nil
		}
		score, ok := robustScorer(vals)
		if !ok {
			return flags, nil
		}
		for i, x := range series {
			flags[i] = x.ok && math.Abs(score(x.v)) > threshold
		}
		return flags, nil

	default:
		return nil, fmt.Errorf("%w: unknown outlier method %q", ErrInvalidParameter, method)
	}
}

// robustScorer returns a function computing the robust z-score of a value
// against vals. ok is false when vals show no spread at all.
func robustScorer(vals []float64) (func(float64) float64, bool) {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	median := percentileSorted(sorted, 50, Linear)

	dev := make([]float64, len(sorted))
	var absSum float64
	for i, v := range sorted {
		dev[i] = math.Abs(v - median)
		absSum += dev[i]
	}
	sort.Float64s(dev)
	mad := percentileSorted(dev, 50, Linear)

	if mad > 0 {
		return func(v float64) float64 { return madScale * (v - median) / mad }, true
	}

	meanAbs := absSum / float64(len(dev))
	if meanAbs > 0 {
		return func(v float64) float64 { return (v - median) / (meanAbsDevScale * meanAbs) }, true
	}
	return nil, false
}

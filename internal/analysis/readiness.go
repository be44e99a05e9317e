package analysis

import (
	"fmt"

	"readiness/internal/stats"
)

// ModelVersion identifies the scoring model. It takes part in every input
// fingerprint.
const ModelVersion = "readiness-model/1"

// Status buckets a composite readiness score.
type Status string

const (
	StatusExcellent Status = "excellent"
	StatusGood      Status = "good"
	StatusFair      Status = "fair"
	StatusPoor      Status = "poor"
)

// CompositeParams weights the component scores and sets status thresholds.
type CompositeParams struct {
	HRVWeight   float64 `koanf:"hrv_weight" json:"hrv_weight"`
	SleepWeight float64 `koanf:"sleep_weight" json:"sleep_weight"`
	LoadWeight  float64 `koanf:"load_weight" json:"load_weight"`
	Excellent   float64 `koanf:"excellent" json:"excellent"`
	Good        float64 `koanf:"good" json:"good"`
	Fair        float64 `koanf:"fair" json:"fair"`
}

// DefaultCompositeParams returns the reference weights and thresholds.
func DefaultCompositeParams() CompositeParams {
	return CompositeParams{
		HRVWeight:   0.40,
		SleepWeight: 0.35,
		LoadWeight:  0.25,
		Excellent:   85,
		Good:        70,
		Fair:        55,
	}
}

// Composite is the weighted sum of the component scores, clipped to [0,100].
func Composite(hrv, sleep, load float64, p CompositeParams) float64 {
	return stats.Clamp(hrv*p.HRVWeight+sleep*p.SleepWeight+load*p.LoadWeight, 0, 100)
}

// ClassifyStatus maps a composite score to its bucket. Boundaries belong to
// the higher bucket.
func ClassifyStatus(score float64, p CompositeParams) Status {
	switch {
	case score >= p.Excellent:
		return StatusExcellent
	case score >= p.Good:
		return StatusGood
	case score >= p.Fair:
		return StatusFair
	default:
		return StatusPoor
	}
}

// ScoreTrend is the smoothed composite score of one day.
type ScoreTrend struct {
	Average  stats.Value // trailing mean
	Smoothed stats.Value // exponential
}

// SmoothScores smooths a daily composite series in which days without an
// assessment are no-value. halflife is in days.
func SmoothScores(scores []stats.Value, window int, halflife float64) ([]ScoreTrend, error) {
	avg, err := stats.MovingAverage(scores, window)
	if err != nil {
		return nil, fmt.Errorf("averaging scores: %w", err)
	}
	alpha, err := stats.AlphaFromHalflife(halflife)
	if err != nil {
		return nil, fmt.Errorf("smoothing scores: %w", err)
	}
	ema, err := stats.ExponentialMovingAverage(scores, alpha)
	if err != nil {
		return nil, fmt.Errorf("smoothing scores: %w", err)
	}

	out := make([]ScoreTrend, len(scores))
	for i := range scores {
		out[i] = ScoreTrend{Average: avg[i], Smoothed: ema[i]}
	}
	return out, nil
}

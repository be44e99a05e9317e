package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"

	"readiness/internal/stats"
	"readiness/internal/store"
)

// Severity grades how far the current HRV sits below its baseline.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityUnknown  Severity = "unknown"
)

// Trend is the direction of an HRV regression.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// HRVParams holds the HRV thresholds and score table.
type HRVParams struct {
	BaselineDays     int     `koanf:"baseline_days" json:"baseline_days"`
	ShortDays        int     `koanf:"short_days" json:"short_days"`
	TrendDays        int     `koanf:"trend_days" json:"trend_days"`
	TrendSlope       float64 `koanf:"trend_slope" json:"trend_slope"` // ms/day
	TrendMinRSquared float64 `koanf:"trend_min_r_squared" json:"trend_min_r_squared"`
	MildDrop         float64 `koanf:"mild_drop" json:"mild_drop"` // percent
	ModerateDrop     float64 `koanf:"moderate_drop" json:"moderate_drop"`
	SevereDrop       float64 `koanf:"severe_drop" json:"severe_drop"`
	Normal           Band    `koanf:"normal" json:"normal"`
	Mild             Band    `koanf:"mild" json:"mild"`
	Moderate         Band    `koanf:"moderate" json:"moderate"`
	Severe           Band    `koanf:"severe" json:"severe"`
	ZLow             float64 `koanf:"z_low" json:"z_low"`
	ZHigh            float64 `koanf:"z_high" json:"z_high"`
	NeutralScore     float64 `koanf:"neutral_score" json:"neutral_score"`
	OutlierCutoff    float64 `koanf:"outlier_cutoff" json:"outlier_cutoff"` // robust z; 0 keeps every reading
}

// DefaultHRVParams returns the reference HRV model.
func DefaultHRVParams() HRVParams {
	return HRVParams{
		BaselineDays:     30,
		ShortDays:        7,
		TrendDays:        7,
		TrendSlope:       0.5,
		TrendMinRSquared: 0.3,
		MildDrop:         5,
		ModerateDrop:     10,
		SevereDrop:       20,
		Normal:           Band{76, 100},
		Mild:             Band{56, 75},
		Moderate:         Band{31, 55},
		Severe:           Band{0, 30},
		ZLow:             -2,
		ZHigh:            2,
		NeutralScore:     60,
		OutlierCutoff:    stats.DefaultZScoreCutoff,
	}
}

// Baseline summarizes HRV readings over a trailing window.
type Baseline struct {
	AsOf         time.Time
	WindowDays   int
	Mean         float64
	StdDev       float64
	SampleCount  int
	Rejected     int
	Insufficient bool
}

// MinBaselineSamples is the number of readings a window needs to be usable.
func MinBaselineSamples(windowDays int) int {
	switch {
	case windowDays <= 7:
		return 3
	case windowDays >= 30:
		return 10
	default:
		return max(3, int(math.Ceil(float64(windowDays)/3)))
	}
}

// windowValues returns the readings dated within [asOf-windowDays, asOf]
// with their day offset from the window start.
func windowValues(samples []store.MetricSample, asOf time.Time, windowDays int) (offsets, values []float64) {
	asOf = store.Day(asOf)
	start := asOf.AddDate(0, 0, -windowDays)
	for _, s := range samples {
		v, ok := stats.FromPtr(s.Value).Get()
		if !ok {
			continue
		}
		d := store.Day(s.Date)
		if d.Before(start) || d.After(asOf) {
			continue
		}
		offsets = append(offsets, d.Sub(start).Hours()/24)
		values = append(values, v)
	}
	return offsets, values
}

// CalculateBaseline computes the mean and sample standard deviation of HRV
// readings within [asOf-windowDays, asOf]. Too few readings mark the baseline
// insufficient rather than failing.
func CalculateBaseline(samples []store.MetricSample, asOf time.Time, windowDays int) (Baseline, error) {
	return calculateBaseline(samples, asOf, windowDays, 0)
}

// CalculateRobustBaseline is CalculateBaseline over the readings whose robust
// z-score within the window is at most cutoff. Rejected readings do not count
// toward SampleCount. A cutoff <= 0 keeps every reading.
func CalculateRobustBaseline(samples []store.MetricSample, asOf time.Time, windowDays int, cutoff float64) (Baseline, error) {
	return calculateBaseline(samples, asOf, windowDays, cutoff)
}

func calculateBaseline(samples []store.MetricSample, asOf time.Time, windowDays int, cutoff float64) (Baseline, error) {
	if windowDays < 1 {
		return Baseline{}, fmt.Errorf("%w: baseline window must be at least 1 day, got %d", stats.ErrInvalidParameter, windowDays)
	}

	_, values := windowValues(samples, asOf, windowDays)
	series := stats.Series(values...)
	b := Baseline{
		AsOf:       store.Day(asOf),
		WindowDays: windowDays,
	}
	if cutoff > 0 {
		flags, err := stats.DetectOutliers(series, stats.OutlierZScore, cutoff)
		if err != nil {
			return Baseline{}, err
		}
		for i, outlier := range flags {
			if outlier {
				series[i] = stats.None()
				b.Rejected++
			}
		}
	}

	b.SampleCount = stats.CountValid(series)
	b.Mean = stats.Mean(series).Or(0)
	sd, err := stats.StdDev(series, 1)
	if err != nil {
		return Baseline{}, err
	}
	b.StdDev = sd.Or(0)
	b.Insufficient = b.SampleCount < MinBaselineSamples(windowDays)
	return b, nil
}

// TrendResult is the outcome of DetectTrend.
type TrendResult struct {
	Direction     Trend
	Slope         float64 // ms/day
	RSquared      float64
	N             int
	LowConfidence bool
}

// DetectTrend regresses HRV on day offset over [asOf-windowDays, asOf].
// Fewer than two distinct days yield a low-confidence stable trend.
func DetectTrend(samples []store.MetricSample, asOf time.Time, windowDays int, p HRVParams) (TrendResult, error) {
	if windowDays < 1 {
		return TrendResult{}, fmt.Errorf("%w: trend window must be at least 1 day, got %d", stats.ErrInvalidParameter, windowDays)
	}

	x, y := windowValues(samples, asOf, windowDays)
	fit, err := stats.LinearRegression(x, y)
	if errors.Is(err, stats.ErrInsufficientData) {
		return TrendResult{Direction: TrendStable, N: len(x), LowConfidence: true}, nil
	}
	if err != nil {
		return TrendResult{}, fmt.Errorf("fitting hrv trend: %w", err)
	}

	res := TrendResult{
		Direction:     TrendStable,
		Slope:         fit.Slope,
		RSquared:      fit.RSquared,
		N:             fit.N,
		LowConfidence: fit.N < MinBaselineSamples(windowDays),
	}
	if fit.RSquared > p.TrendMinRSquared {
		switch {
		case fit.Slope > p.TrendSlope:
			res.Direction = TrendImproving
		case fit.Slope < -p.TrendSlope:
			res.Direction = TrendDeclining
		}
	}
	return res, nil
}

// Drop is the percentage fall of a reading below a baseline mean.
type Drop struct {
	Percent  float64
	Severity Severity
	Defined  bool
}

// DetectDrop grades current against baseline. A reading above baseline is
// normal. The drop is undefined when the baseline is insufficient or its mean
// is not positive.
func DetectDrop(current float64, baseline Baseline, p HRVParams) Drop {
	if baseline.Insufficient || baseline.Mean <= 0 {
		return Drop{Severity: SeverityUnknown}
	}

	pct := (baseline.Mean - current) / baseline.Mean * 100
	d := Drop{Percent: pct, Defined: true}
	switch {
	case pct < p.MildDrop:
		d.Severity = SeverityNormal
	case pct < p.ModerateDrop:
		d.Severity = SeverityMild
	case pct <= p.SevereDrop:
		d.Severity = SeverityModerate
	default:
		d.Severity = SeveritySevere
	}
	return d
}

// HRVScoreResult is a 0-100 HRV component score.
type HRVScoreResult struct {
	Score         float64
	Severity      Severity
	ZScore        stats.Value
	LowConfidence bool
}

// HRVScore maps the drop severity into its band and positions the score
// inside the band by the z-score of current against the short baseline.
// A missing reading or an insufficient short baseline gives the neutral
// score with low confidence. An undefined drop is re-assessed against the
// short baseline, also with low confidence.
func HRVScore(current stats.Value, short Baseline, drop Drop, p HRVParams) HRVScoreResult {
	v, ok := current.Get()
	if !ok || short.Insufficient {
		return HRVScoreResult{Score: p.NeutralScore, Severity: drop.Severity, LowConfidence: true}
	}

	res := HRVScoreResult{Severity: drop.Severity}
	if !drop.Defined {
		drop = DetectDrop(v, short, p)
		res.Severity = drop.Severity
		res.LowConfidence = true
		if !drop.Defined {
			res.Score = p.NeutralScore
			return res
		}
	}

	band := p.Normal
	switch drop.Severity {
	case SeverityMild:
		band = p.Mild
	case SeverityModerate:
		band = p.Moderate
	case SeveritySevere:
		band = p.Severe
	}

	res.ZScore = stats.ZScore(v, short.Mean, short.StdDev)
	f := 0.5
	if z, ok := res.ZScore.Get(); ok {
		f = stats.Clamp((z-p.ZLow)/(p.ZHigh-p.ZLow), 0, 1)
	}
	res.Score = stats.Clamp(band.At(f), 0, 100)
	return res
}

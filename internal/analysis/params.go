package analysis

import (
	"errors"
	"fmt"
)

// Band is a closed score interval a classification maps into.
type Band struct {
	Min float64 `koanf:"min" json:"min"`
	Max float64 `koanf:"max" json:"max"`
}

// At returns the score at fraction f of the band, f in [0,1].
func (b Band) At(f float64) float64 {
	return b.Min + f*(b.Max-b.Min)
}

func (b Band) validate(name string) error {
	if b.Min < 0 || b.Max > 100 || b.Min > b.Max {
		return fmt.Errorf("%s band [%g,%g] must lie within [0,100] with min <= max", name, b.Min, b.Max)
	}
	return nil
}

// ModelParams is every tunable of the readiness model. Its digest takes part
// in the input fingerprint, so changing any value invalidates cached results.
type ModelParams struct {
	HRV       HRVParams       `koanf:"hrv" json:"hrv"`
	Load      LoadParams      `koanf:"load" json:"load"`
	Sleep     SleepParams     `koanf:"sleep" json:"sleep"`
	Composite CompositeParams `koanf:"composite" json:"composite"`
}

// DefaultModelParams returns the reference model.
func DefaultModelParams() ModelParams {
	return ModelParams{
		HRV:       DefaultHRVParams(),
		Load:      DefaultLoadParams(),
		Sleep:     DefaultSleepParams(),
		Composite: DefaultCompositeParams(),
	}
}

// Validate reports the first parameter that would make the model misbehave.
func (p ModelParams) Validate() error {
	h := p.HRV
	bands := []struct {
		name string
		band Band
	}{
		{"hrv.normal", h.Normal}, {"hrv.mild", h.Mild}, {"hrv.moderate", h.Moderate}, {"hrv.severe", h.Severe},
		{"load.low", p.Load.Low}, {"load.optimal", p.Load.Optimal}, {"load.moderate", p.Load.Moderate}, {"load.high", p.Load.High},
	}
	for _, b := range bands {
		if err := b.band.validate(b.name); err != nil {
			return err
		}
	}
	if h.ZHigh <= h.ZLow {
		return fmt.Errorf("hrv.z_high (%g) must exceed hrv.z_low (%g)", h.ZHigh, h.ZLow)
	}
	if h.OutlierCutoff < 0 {
		return fmt.Errorf("hrv.outlier_cutoff must not be negative, got %g", h.OutlierCutoff)
	}

	l := p.Load
	if l.AcuteDays < 1 || l.ChronicDays < l.AcuteDays {
		return fmt.Errorf("load windows invalid: acute=%d chronic=%d", l.AcuteDays, l.ChronicDays)
	}
	if l.FitnessTau <= 0 || l.FatigueTau <= 0 {
		return errors.New("load time constants must be positive")
	}
	if l.MonotonyDays < 2 {
		return fmt.Errorf("load.monotony_days must be at least 2, got %d", l.MonotonyDays)
	}
	if !(l.OptimalMin < l.OptimalMax && l.OptimalMax < l.ModerateMax && l.ModerateMax < l.HighZeroAt) {
		return errors.New("acwr thresholds must satisfy optimal_min < optimal_max < moderate_max < high_zero_at")
	}

	s := p.Sleep
	if s.TargetMinutes <= 0 {
		return errors.New("sleep.target_minutes must be positive")
	}
	if s.DurationTolerance >= s.DurationZeroAt {
		return errors.New("sleep.duration_tolerance must be below sleep.duration_zero_at")
	}
	if s.DebtWindowDays < 1 {
		return errors.New("sleep.debt_window_days must be at least 1")
	}
	if s.DurationWeight < 0 || s.StageWeight < 0 || s.ContinuityWeight < 0 || s.DurationWeight == 0 {
		return errors.New("sleep weights must be non-negative with a positive duration weight")
	}

	c := p.Composite
	if c.HRVWeight < 0 || c.SleepWeight < 0 || c.LoadWeight < 0 {
		return errors.New("composite weights must be non-negative")
	}
	if sum := c.HRVWeight + c.SleepWeight + c.LoadWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("composite weights must sum to 1, got %g", sum)
	}
	if !(c.Fair < c.Good && c.Good < c.Excellent) {
		return errors.New("status thresholds must satisfy fair < good < excellent")
	}
	return nil
}

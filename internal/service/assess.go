package service

import (
	"fmt"
	"time"

	"readiness/internal/analysis"
	"readiness/internal/stats"
	"readiness/internal/store"
)

// assess runs the analyzers over one day's inputs. fit is the
// fitness/fatigue state at the end of date.
func (s *ReadinessService) assess(userID string, date time.Time, in inputs, fit analysis.FitnessState, fingerprint string) (*store.TrainingLoadSnapshot, *store.ReadinessAssessment, error) {
	p := s.params
	prior := date.AddDate(0, 0, -1)

	// HRV: baselines end the day before so the reading is compared with prior days
	baseline, err := analysis.CalculateRobustBaseline(in.hrv, prior, p.HRV.BaselineDays, p.HRV.OutlierCutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("calculating hrv baseline: %w", err)
	}
	short, err := analysis.CalculateRobustBaseline(in.hrv, prior, p.HRV.ShortDays, p.HRV.OutlierCutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("calculating short hrv baseline: %w", err)
	}
	trend, err := analysis.DetectTrend(in.hrv, date, p.HRV.TrendDays, p.HRV)
	if err != nil {
		return nil, nil, fmt.Errorf("detecting hrv trend: %w", err)
	}
	current := readingOn(in.hrv, date)
	drop := analysis.Drop{Severity: analysis.SeverityUnknown}
	if v, ok := current.Get(); ok {
		drop = analysis.DetectDrop(v, baseline, p.HRV)
	}
	hrv := analysis.HRVScore(current, short, drop, p.HRV)

	// Training load
	loads := analysis.LoadsFromSamples(in.loads)
	acute := analysis.AcuteLoad(loads, date, p.Load)
	chronic := analysis.ChronicLoad(loads, date, p.Load)
	acwr := analysis.ACWR(acute, chronic)
	form := analysis.ClassifyForm(fit.Form(), p.Load)
	load := analysis.LoadScore(acwr, form, p.Load)
	monotony := analysis.MonotonyAndStrain(loads, date, p.Load)
	ramp := analysis.RampRate(chronic, analysis.ChronicLoad(loads, date.AddDate(0, 0, -7), p.Load), p.Load)

	// Sleep
	sleep := analysis.SleepScore(analysis.AssembleSleepRecords(in.sleep), date, p.Sleep)

	composite := analysis.Composite(hrv.Score, sleep.Score, load.Score, p.Composite)
	now := s.now().UTC()

	snap := &store.TrainingLoadSnapshot{
		UserID:      userID,
		Date:        date,
		AcuteLoad:   acute,
		ChronicLoad: chronic,
		ACWR:        acwr.Ptr(),
		Fitness:     fit.Fitness,
		Fatigue:     fit.Fatigue,
		Form:        fit.Form(),
		Monotony:    monotony.Monotony,
		Strain:      monotony.Strain,
		RampRate:    ramp.Percent.Ptr(),
		LoadDigest:  s.loadDigest(in.loads, date),
		ComputedAt:  now,
	}
	a := &store.ReadinessAssessment{
		UserID:                userID,
		Date:                  date,
		HRVScore:              hrv.Score,
		SleepScore:            sleep.Score,
		LoadScore:             load.Score,
		CompositeScore:        composite,
		Status:                string(analysis.ClassifyStatus(composite, p.Composite)),
		HRVLowConfidence:      hrv.LowConfidence,
		SleepLowConfidence:    sleep.LowConfidence,
		LoadLowConfidence:     load.LowConfidence,
		DropSeverity:          string(hrv.Severity),
		HRVTrend:              string(trend.Direction),
		HRVTrendLowConfidence: trend.LowConfidence,
		ACWRRisk:              string(load.Risk),
		FormState:             string(form),
		SleepDebtHours:        sleep.Debt.Hours,
		SleepDebtSeverity:     string(sleep.Debt.Severity),
		ModelVersion:          analysis.ModelVersion,
		InputFingerprint:      fingerprint,
		ComputedAt:            now,
	}
	return snap, a, nil
}

// readingOn returns the value recorded on date, or no value.
func readingOn(samples []store.MetricSample, date time.Time) stats.Value {
	for _, smp := range samples {
		if store.Day(smp.Date).Equal(date) {
			return stats.FromPtr(smp.Value)
		}
	}
	return stats.None()
}

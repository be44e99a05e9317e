package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"readiness/internal/stats"
	"readiness/internal/store"
)

// Risk classifies an acute:chronic workload ratio.
type Risk string

const (
	RiskLow      Risk = "low"
	RiskOptimal  Risk = "optimal"
	RiskModerate Risk = "moderate"
	RiskHigh     Risk = "high"
	RiskUnknown  Risk = "unknown"
)

// FormState classifies fitness minus fatigue.
type FormState string

const (
	FormFresh       FormState = "fresh"
	FormOptimal     FormState = "optimal"
	FormFatigued    FormState = "fatigued"
	FormOvertrained FormState = "overtrained"
)

// RampClass classifies the week-over-week chronic load change.
type RampClass string

const (
	RampSafe       RampClass = "safe"
	RampAggressive RampClass = "aggressive"
	RampUnknown    RampClass = "unknown"
)

// LoadParams holds the training load windows, thresholds and score table.
type LoadParams struct {
	AcuteDays       int     `koanf:"acute_days" json:"acute_days"`
	ChronicDays     int     `koanf:"chronic_days" json:"chronic_days"`
	FitnessTau      float64 `koanf:"fitness_tau" json:"fitness_tau"`
	FatigueTau      float64 `koanf:"fatigue_tau" json:"fatigue_tau"`
	MonotonyDays    int     `koanf:"monotony_days" json:"monotony_days"`
	MonotonyCap     float64 `koanf:"monotony_cap" json:"monotony_cap"`
	RampSafePercent float64 `koanf:"ramp_safe_percent" json:"ramp_safe_percent"`

	// ACWR boundaries: < OptimalMin low, <= OptimalMax optimal,
	// <= ModerateMax moderate, above that high.
	OptimalMin  float64 `koanf:"optimal_min" json:"optimal_min"`
	OptimalMax  float64 `koanf:"optimal_max" json:"optimal_max"`
	ModerateMax float64 `koanf:"moderate_max" json:"moderate_max"`
	HighZeroAt  float64 `koanf:"high_zero_at" json:"high_zero_at"`

	// Form boundaries: > FreshAbove fresh, >= 0 optimal,
	// >= OvertrainedBelow fatigued, below that overtrained.
	FreshAbove       float64 `koanf:"fresh_above" json:"fresh_above"`
	OvertrainedBelow float64 `koanf:"overtrained_below" json:"overtrained_below"`

	Low               Band    `koanf:"low" json:"low"`
	Optimal           Band    `koanf:"optimal" json:"optimal"`
	Moderate          Band    `koanf:"moderate" json:"moderate"`
	High              Band    `koanf:"high" json:"high"`
	FreshAdjust       float64 `koanf:"fresh_adjust" json:"fresh_adjust"`
	OptimalAdjust     float64 `koanf:"optimal_adjust" json:"optimal_adjust"`
	FatiguedAdjust    float64 `koanf:"fatigued_adjust" json:"fatigued_adjust"`
	OvertrainedAdjust float64 `koanf:"overtrained_adjust" json:"overtrained_adjust"`
	NeutralScore      float64 `koanf:"neutral_score" json:"neutral_score"`
}

// DefaultLoadParams returns the reference load model.
func DefaultLoadParams() LoadParams {
	return LoadParams{
		AcuteDays:         7,
		ChronicDays:       28,
		FitnessTau:        42,
		FatigueTau:        7,
		MonotonyDays:      7,
		MonotonyCap:       10,
		RampSafePercent:   10,
		OptimalMin:        0.8,
		OptimalMax:        1.3,
		ModerateMax:       1.5,
		HighZeroAt:        2.0,
		FreshAbove:        20,
		OvertrainedBelow:  -20,
		Low:               Band{56, 75},
		Optimal:           Band{76, 100},
		Moderate:          Band{31, 55},
		High:              Band{0, 30},
		FreshAdjust:       0,
		OptimalAdjust:     0,
		FatiguedAdjust:    -5,
		OvertrainedAdjust: -10,
		NeutralScore:      60,
	}
}

// DailyLoad is the aggregate training load of one day.
type DailyLoad struct {
	Date time.Time
	Load float64
}

// loadMap sums the loads of each day, keyed by storage date.
type loadMap map[string]float64

func newLoadMap(loads []DailyLoad) loadMap {
	m := make(loadMap, len(loads))
	for _, dl := range loads {
		m[store.DateKey(dl.Date)] += dl.Load // Sum multiple points on same day
	}
	return m
}

// trailingMean averages the days-day window ending at date. Days with no
// load count as zero: no training is a valid observation.
func (m loadMap) trailingMean(date time.Time, days int) float64 {
	date = store.Day(date)
	var sum float64
	for i := 0; i < days; i++ {
		sum += m[store.DateKey(date.AddDate(0, 0, -i))]
	}
	return sum / float64(days)
}

// LoadsFromSamples converts training load samples to daily loads, skipping
// no-value samples.
func LoadsFromSamples(samples []store.MetricSample) []DailyLoad {
	var loads []DailyLoad
	for _, s := range samples {
		if s.Kind != store.KindTrainingLoad {
			continue
		}
		if v, ok := stats.FromPtr(s.Value).Get(); ok {
			loads = append(loads, DailyLoad{Date: store.Day(s.Date), Load: v})
		}
	}
	return loads
}

// AcuteLoad is the trailing AcuteDays mean load ending at date.
func AcuteLoad(loads []DailyLoad, date time.Time, p LoadParams) float64 {
	return newLoadMap(loads).trailingMean(date, p.AcuteDays)
}

// ChronicLoad is the trailing ChronicDays mean load ending at date.
func ChronicLoad(loads []DailyLoad, date time.Time, p LoadParams) float64 {
	return newLoadMap(loads).trailingMean(date, p.ChronicDays)
}

// ACWR is acute/chronic. It is undefined when chronic load is zero.
func ACWR(acute, chronic float64) stats.Value {
	if chronic == 0 {
		return stats.None()
	}
	return stats.Some(acute / chronic)
}

// ClassifyACWR maps a ratio to its injury-risk class.
func ClassifyACWR(acwr stats.Value, p LoadParams) Risk {
	r, ok := acwr.Get()
	if !ok {
		return RiskUnknown
	}
	switch {
	case r < p.OptimalMin:
		return RiskLow
	case r <= p.OptimalMax:
		return RiskOptimal
	case r <= p.ModerateMax:
		return RiskModerate
	default:
		return RiskHigh
	}
}

// FitnessState is the Banister fitness/fatigue checkpoint at the end of Date.
type FitnessState struct {
	Date    time.Time
	Fitness float64
	Fatigue float64
}

// Form is fitness minus fatigue.
func (s FitnessState) Form() float64 {
	return s.Fitness - s.Fatigue
}

// StepFitness advances prev by one day with that day's load. Replay and
// resume both go through this function so they agree bit-for-bit.
func StepFitness(prev FitnessState, load float64, p LoadParams) FitnessState {
	return FitnessState{
		Date:    prev.Date.AddDate(0, 0, 1),
		Fitness: prev.Fitness*math.Exp(-1/p.FitnessTau) + load,
		Fatigue: prev.Fatigue*math.Exp(-1/p.FatigueTau) + load,
	}
}

// firstLoadDate returns the earliest day with a load point.
func firstLoadDate(loads []DailyLoad) (time.Time, bool) {
	if len(loads) == 0 {
		return time.Time{}, false
	}
	first := store.Day(loads[0].Date)
	for _, dl := range loads[1:] {
		if d := store.Day(dl.Date); d.Before(first) {
			first = d
		}
	}
	return first, true
}

// FitnessFatigue replays the model from the zero state on the day before the
// first load up to date. Before the first load the state is zero.
func FitnessFatigue(loads []DailyLoad, date time.Time, p LoadParams) FitnessState {
	date = store.Day(date)
	first, ok := firstLoadDate(loads)
	if !ok || date.Before(first) {
		return FitnessState{Date: date}
	}
	start := FitnessState{Date: first.AddDate(0, 0, -1)}
	return stepUntil(start, newLoadMap(loads), date, p)
}

// ResumeFitness steps checkpoint forward to date.
func ResumeFitness(checkpoint FitnessState, loads []DailyLoad, date time.Time, p LoadParams) (FitnessState, error) {
	date = store.Day(date)
	checkpoint.Date = store.Day(checkpoint.Date)
	if date.Before(checkpoint.Date) {
		return FitnessState{}, fmt.Errorf("%w: cannot resume %s checkpoint backwards to %s",
			stats.ErrInvalidParameter, store.DateKey(checkpoint.Date), store.DateKey(date))
	}
	return stepUntil(checkpoint, newLoadMap(loads), date, p), nil
}

func stepUntil(s FitnessState, m loadMap, date time.Time, p LoadParams) FitnessState {
	for s.Date.Before(date) {
		next := s.Date.AddDate(0, 0, 1)
		s = StepFitness(s, m[store.DateKey(next)], p)
	}
	return s
}

// FitnessTrend returns the daily fitness/fatigue series from the first to
// the last load date, zero-filling days without load.
func FitnessTrend(loads []DailyLoad, p LoadParams) []FitnessState {
	if len(loads) == 0 {
		return nil
	}

	sorted := make([]DailyLoad, len(loads))
	copy(sorted, loads)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	m := newLoadMap(sorted)
	startDate := store.Day(sorted[0].Date)
	endDate := store.Day(sorted[len(sorted)-1].Date)

	var trend []FitnessState
	s := FitnessState{Date: startDate.AddDate(0, 0, -1)}
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		s = StepFitness(s, m[store.DateKey(d)], p)
		trend = append(trend, s)
	}
	return trend
}

// ClassifyForm maps form to its state.
func ClassifyForm(form float64, p LoadParams) FormState {
	switch {
	case form > p.FreshAbove:
		return FormFresh
	case form >= 0:
		return FormOptimal
	case form >= p.OvertrainedBelow:
		return FormFatigued
	default:
		return FormOvertrained
	}
}

// Monotony is Foster's training monotony and strain over a window.
type Monotony struct {
	Monotony float64
	Strain   float64
	Maximal  bool // identical non-zero loads every day
}

// MonotonyAndStrain computes mean/stddev of the zero-filled MonotonyDays
// window ending at date, capped at MonotonyCap, and strain as
// mean*monotony*window.
func MonotonyAndStrain(loads []DailyLoad, date time.Time, p LoadParams) Monotony {
	m := newLoadMap(loads)
	date = store.Day(date)

	window := make([]stats.Value, p.MonotonyDays)
	for i := range window {
		window[i] = stats.Some(m[store.DateKey(date.AddDate(0, 0, -i))])
	}

	mean := stats.Mean(window).Or(0)
	if mean == 0 {
		return Monotony{}
	}

	var res Monotony
	sd, err := stats.StdDev(window, 1)
	if s, ok := sd.Get(); err == nil && ok && s > 0 {
		res.Monotony = math.Min(mean/s, p.MonotonyCap)
	} else {
		res.Monotony = p.MonotonyCap
		res.Maximal = true
	}
	res.Strain = mean * res.Monotony * float64(p.MonotonyDays)
	return res
}

// Ramp is the week-over-week chronic load change.
type Ramp struct {
	Percent stats.Value
	Class   RampClass
}

// RampRate compares this week's chronic load with last week's. It is
// undefined when last week's load is zero.
func RampRate(thisWeek, lastWeek float64, p LoadParams) Ramp {
	if lastWeek == 0 {
		return Ramp{Percent: stats.None(), Class: RampUnknown}
	}
	pct := (thisWeek - lastWeek) / lastWeek * 100
	r := Ramp{Percent: stats.Some(pct), Class: RampSafe}
	if pct > p.RampSafePercent {
		r.Class = RampAggressive
	}
	return r
}

// LoadScoreResult is a 0-100 training load component score.
type LoadScoreResult struct {
	Score         float64
	Risk          Risk
	LowConfidence bool
}

// LoadScore maps ACWR onto the band of its risk class and adjusts for form.
// The optimal band peaks at its centre; low rises toward OptimalMin;
// moderate falls toward ModerateMax; high falls to its minimum at HighZeroAt.
// An undefined ACWR gives the neutral score with low confidence.
func LoadScore(acwr stats.Value, form FormState, p LoadParams) LoadScoreResult {
	risk := ClassifyACWR(acwr, p)
	r, ok := acwr.Get()
	if !ok {
		return LoadScoreResult{Score: p.NeutralScore, Risk: risk, LowConfidence: true}
	}

	var score float64
	switch risk {
	case RiskLow:
		score = p.Low.At(stats.Clamp(r/p.OptimalMin, 0, 1))
	case RiskOptimal:
		centre := (p.OptimalMin + p.OptimalMax) / 2
		half := (p.OptimalMax - p.OptimalMin) / 2
		score = p.Optimal.At(1 - math.Abs(r-centre)/half)
	case RiskModerate:
		score = p.Moderate.At(1 - (r-p.OptimalMax)/(p.ModerateMax-p.OptimalMax))
	default:
		score = p.High.At(stats.Clamp((p.HighZeroAt-r)/(p.HighZeroAt-p.ModerateMax), 0, 1))
	}

	switch form {
	case FormFresh:
		score += p.FreshAdjust
	case FormOptimal:
		score += p.OptimalAdjust
	case FormFatigued:
		score += p.FatiguedAdjust
	case FormOvertrained:
		score += p.OvertrainedAdjust
	}

	return LoadScoreResult{Score: stats.Clamp(score, 0, 100), Risk: risk}
}

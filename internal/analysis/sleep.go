package analysis

import (
	"math"
	"sort"
	"time"

	"readiness/internal/stats"
	"readiness/internal/store"
)

// DebtSeverity grades accumulated sleep debt.
type DebtSeverity string

const (
	DebtMinimal     DebtSeverity = "minimal"
	DebtModerate    DebtSeverity = "moderate"
	DebtSignificant DebtSeverity = "significant"
	DebtSevere      DebtSeverity = "severe"
)

// SleepParams holds the sleep targets, component shapes and weights.
type SleepParams struct {
	TargetMinutes     float64 `koanf:"target_minutes" json:"target_minutes"`
	DurationTolerance float64 `koanf:"duration_tolerance" json:"duration_tolerance"` // full marks within +/- minutes
	DurationZeroAt    float64 `koanf:"duration_zero_at" json:"duration_zero_at"`

	DeepMinPct        float64 `koanf:"deep_min_pct" json:"deep_min_pct"`
	DeepMaxPct        float64 `koanf:"deep_max_pct" json:"deep_max_pct"`
	REMMinPct         float64 `koanf:"rem_min_pct" json:"rem_min_pct"`
	REMMaxPct         float64 `koanf:"rem_max_pct" json:"rem_max_pct"`
	StagePenaltyPerPt float64 `koanf:"stage_penalty_per_pt" json:"stage_penalty_per_pt"`

	AwakeFreePct         float64 `koanf:"awake_free_pct" json:"awake_free_pct"`
	AwakeMaxPct          float64 `koanf:"awake_max_pct" json:"awake_max_pct"`
	AwakePenaltyMax      float64 `koanf:"awake_penalty_max" json:"awake_penalty_max"`
	AwakeningsFree       float64 `koanf:"awakenings_free" json:"awakenings_free"`
	AwakeningsMax        float64 `koanf:"awakenings_max" json:"awakenings_max"`
	AwakeningsPenaltyMax float64 `koanf:"awakenings_penalty_max" json:"awakenings_penalty_max"`

	DurationWeight   float64 `koanf:"duration_weight" json:"duration_weight"`
	StageWeight      float64 `koanf:"stage_weight" json:"stage_weight"`
	ContinuityWeight float64 `koanf:"continuity_weight" json:"continuity_weight"`

	DebtWindowDays       int     `koanf:"debt_window_days" json:"debt_window_days"`
	DebtModerateHours    float64 `koanf:"debt_moderate_hours" json:"debt_moderate_hours"`
	DebtSignificantHours float64 `koanf:"debt_significant_hours" json:"debt_significant_hours"`
	DebtSevereHours      float64 `koanf:"debt_severe_hours" json:"debt_severe_hours"`
	ModeratePenalty      float64 `koanf:"moderate_penalty" json:"moderate_penalty"`
	SignificantPenalty   float64 `koanf:"significant_penalty" json:"significant_penalty"`
	SeverePenalty        float64 `koanf:"severe_penalty" json:"severe_penalty"`

	NeutralScore float64 `koanf:"neutral_score" json:"neutral_score"`
}

// DefaultSleepParams returns the reference sleep model.
func DefaultSleepParams() SleepParams {
	return SleepParams{
		TargetMinutes:        480,
		DurationTolerance:    30,
		DurationZeroAt:       180,
		DeepMinPct:           15,
		DeepMaxPct:           25,
		REMMinPct:            20,
		REMMaxPct:            25,
		StagePenaltyPerPt:    4,
		AwakeFreePct:         5,
		AwakeMaxPct:          25,
		AwakePenaltyMax:      60,
		AwakeningsFree:       2,
		AwakeningsMax:        10,
		AwakeningsPenaltyMax: 40,
		DurationWeight:       0.4,
		StageWeight:          0.3,
		ContinuityWeight:     0.3,
		DebtWindowDays:       14,
		DebtModerateHours:    2,
		DebtSignificantHours: 5,
		DebtSevereHours:      10,
		ModeratePenalty:      5,
		SignificantPenalty:   10,
		SeverePenalty:        20,
		NeutralScore:         60,
	}
}

// SleepRecord is one night assembled from sleep_* samples.
type SleepRecord struct {
	Date         time.Time
	TotalMinutes float64 // time asleep
	DeepMinutes  stats.Value
	LightMinutes stats.Value
	REMMinutes   stats.Value
	AwakeMinutes stats.Value
	Awakenings   stats.Value
}

// StagePercents returns deep and REM as percentages of staged sleep. ok is
// false when the night carries no usable stage data.
func (r SleepRecord) StagePercents() (deep, rem float64, ok bool) {
	d, dok := r.DeepMinutes.Get()
	m, mok := r.REMMinutes.Get()
	if !dok || !mok {
		return 0, 0, false
	}
	staged := d + m + r.LightMinutes.Or(0)
	if staged <= 0 {
		return 0, 0, false
	}
	return d / staged * 100, m / staged * 100, true
}

// AssembleSleepRecords groups sleep samples by night, oldest first. Nights
// without a total duration value produce no record.
func AssembleSleepRecords(samples []store.MetricSample) []SleepRecord {
	nights := make(map[string]*SleepRecord)
	total := make(map[string]bool)

	for _, s := range samples {
		key := store.DateKey(s.Date)
		rec, ok := nights[key]
		if !ok {
			rec = &SleepRecord{Date: store.Day(s.Date)}
			nights[key] = rec
		}
		v := stats.FromPtr(s.Value)
		switch s.Kind {
		case store.KindSleepTotalMinutes:
			if x, ok := v.Get(); ok {
				rec.TotalMinutes = x
				total[key] = true
			}
		case store.KindSleepDeepMinutes:
			rec.DeepMinutes = v
		case store.KindSleepLightMinutes:
			rec.LightMinutes = v
		case store.KindSleepREMMinutes:
			rec.REMMinutes = v
		case store.KindSleepAwakeMinutes:
			rec.AwakeMinutes = v
		case store.KindSleepAwakenings:
			rec.Awakenings = v
		}
	}

	records := make([]SleepRecord, 0, len(total))
	for key := range total {
		records = append(records, *nights[key])
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records
}

// DurationComponent gives full marks within DurationTolerance of the target,
// decaying linearly to 0 at DurationZeroAt minutes off target.
func DurationComponent(minutes float64, p SleepParams) float64 {
	dev := math.Abs(minutes - p.TargetMinutes)
	switch {
	case dev <= p.DurationTolerance:
		return 100
	case dev >= p.DurationZeroAt:
		return 0
	default:
		return 100 * (p.DurationZeroAt - dev) / (p.DurationZeroAt - p.DurationTolerance)
	}
}

// bandDistance is how far v lies outside [lo, hi].
func bandDistance(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}

// StageComponent gives full marks when deep and REM percentages both sit in
// their target bands, losing StagePenaltyPerPt per percentage point outside.
func StageComponent(deepPct, remPct float64, p SleepParams) float64 {
	dist := bandDistance(deepPct, p.DeepMinPct, p.DeepMaxPct) + bandDistance(remPct, p.REMMinPct, p.REMMaxPct)
	return stats.Clamp(100-p.StagePenaltyPerPt*dist, 0, 100)
}

// ramp is 0 at or below free, rising linearly to maxPenalty at full.
func ramp(v, free, full, maxPenalty float64) float64 {
	if v <= free {
		return 0
	}
	if v >= full {
		return maxPenalty
	}
	return maxPenalty * (v - free) / (full - free)
}

// ContinuityComponent penalizes the awake fraction of time in bed and the
// number of awakenings.
func ContinuityComponent(awakeMinutes, totalMinutes, awakenings float64, p SleepParams) float64 {
	var awakePct float64
	if inBed := totalMinutes + awakeMinutes; inBed > 0 {
		awakePct = awakeMinutes / inBed * 100
	}
	penalty := ramp(awakePct, p.AwakeFreePct, p.AwakeMaxPct, p.AwakePenaltyMax) +
		ramp(awakenings, p.AwakeningsFree, p.AwakeningsMax, p.AwakeningsPenaltyMax)
	return stats.Clamp(100-penalty, 0, 100)
}

// SleepQuality is the scored night.
type SleepQuality struct {
	Date       time.Time
	Score      float64
	Duration   float64
	Stage      stats.Value
	Continuity stats.Value
}

// SleepQualityScore combines the components with their weights. Components
// the record cannot support are dropped and the remaining weights
// renormalized.
func SleepQualityScore(r SleepRecord, p SleepParams) SleepQuality {
	q := SleepQuality{
		Date:     r.Date,
		Duration: DurationComponent(r.TotalMinutes, p),
	}
	sum := q.Duration * p.DurationWeight
	weight := p.DurationWeight

	if deep, rem, ok := r.StagePercents(); ok {
		q.Stage = stats.Some(StageComponent(deep, rem, p))
		sum += q.Stage.Or(0) * p.StageWeight
		weight += p.StageWeight
	}
	if r.AwakeMinutes.Valid() || r.Awakenings.Valid() {
		q.Continuity = stats.Some(ContinuityComponent(r.AwakeMinutes.Or(0), r.TotalMinutes, r.Awakenings.Or(0), p))
		sum += q.Continuity.Or(0) * p.ContinuityWeight
		weight += p.ContinuityWeight
	}

	q.Score = stats.Clamp(sum/weight, 0, 100)
	return q
}

// SleepDebt is the accumulated shortfall against the target.
type SleepDebt struct {
	Hours    float64
	Nights   int
	Severity DebtSeverity
}

// CalculateSleepDebt sums max(0, target-actual) over the DebtWindowDays
// nights ending at date. Nights without a record are skipped.
func CalculateSleepDebt(records []SleepRecord, date time.Time, p SleepParams) SleepDebt {
	date = store.Day(date)
	start := date.AddDate(0, 0, -(p.DebtWindowDays - 1))

	var d SleepDebt
	var minutes float64
	for _, r := range records {
		day := store.Day(r.Date)
		if day.Before(start) || day.After(date) {
			continue
		}
		minutes += math.Max(0, p.TargetMinutes-r.TotalMinutes)
		d.Nights++
	}
	d.Hours = minutes / 60
	d.Severity = classifyDebt(d.Hours, p)
	return d
}

func classifyDebt(hours float64, p SleepParams) DebtSeverity {
	switch {
	case hours < p.DebtModerateHours:
		return DebtMinimal
	case hours < p.DebtSignificantHours:
		return DebtModerate
	case hours <= p.DebtSevereHours:
		return DebtSignificant
	default:
		return DebtSevere
	}
}

// DebtPenalty is the score deduction for a debt severity.
func DebtPenalty(s DebtSeverity, p SleepParams) float64 {
	switch s {
	case DebtModerate:
		return p.ModeratePenalty
	case DebtSignificant:
		return p.SignificantPenalty
	case DebtSevere:
		return p.SeverePenalty
	default:
		return 0
	}
}

// SleepScoreResult is the sleep component of readiness.
type SleepScoreResult struct {
	Score         float64
	Quality       *SleepQuality
	Debt          SleepDebt
	LowConfidence bool
}

// SleepScore scores the night of date net of the debt penalty. A night
// without a record gives the neutral score with low confidence.
func SleepScore(records []SleepRecord, date time.Time, p SleepParams) SleepScoreResult {
	date = store.Day(date)
	res := SleepScoreResult{Debt: CalculateSleepDebt(records, date, p)}

	for _, r := range records {
		if store.Day(r.Date).Equal(date) {
			q := SleepQualityScore(r, p)
			res.Quality = &q
			break
		}
	}
	if res.Quality == nil {
		res.Score = p.NeutralScore
		res.LowConfidence = true
		return res
	}

	res.Score = stats.Clamp(res.Quality.Score-DebtPenalty(res.Debt.Severity, p), 0, 100)
	return res
}

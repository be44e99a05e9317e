package store

import "time"

// DateLayout is the storage format of calendar dates.
const DateLayout = "2006-01-02"

// recordedLayout is fixed-width so recorded_at sorts lexically.
const recordedLayout = "2006-01-02T15:04:05.000000000Z"

// MetricKind identifies the physiological quantity a sample measures.
type MetricKind string

const (
	KindHRV               MetricKind = "hrv_rmssd"           // ms
	KindRestingHR         MetricKind = "resting_hr"          // bpm
	KindTrainingLoad      MetricKind = "training_load"       // arbitrary units per day
	KindSleepTotalMinutes MetricKind = "sleep_total_minutes" // time asleep
	KindSleepDeepMinutes  MetricKind = "sleep_deep_minutes"
	KindSleepLightMinutes MetricKind = "sleep_light_minutes"
	KindSleepREMMinutes   MetricKind = "sleep_rem_minutes"
	KindSleepAwakeMinutes MetricKind = "sleep_awake_minutes"
	KindSleepAwakenings   MetricKind = "sleep_awakenings"
)

// SleepKinds lists every kind that makes up a nightly sleep record.
var SleepKinds = []MetricKind{
	KindSleepTotalMinutes,
	KindSleepDeepMinutes,
	KindSleepLightMinutes,
	KindSleepREMMinutes,
	KindSleepAwakeMinutes,
	KindSleepAwakenings,
}

// MetricSample is one immutable observation written by the sync collaborator.
// A nil Value is an explicit no-value marker.
type MetricSample struct {
	UserID     string     `json:"user_id"`
	Date       time.Time  `json:"date"`
	Kind       MetricKind `json:"metric_kind"`
	Value      *float64   `json:"value"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// TrainingLoadSnapshot holds the derived load metrics of one user-day.
// Fitness and Fatigue double as the checkpoint for the following day.
type TrainingLoadSnapshot struct {
	UserID      string    `json:"user_id"`
	Date        time.Time `json:"date"`
	AcuteLoad   float64   `json:"acute_load"`
	ChronicLoad float64   `json:"chronic_load"`
	ACWR        *float64  `json:"acwr"` // nil when chronic load is zero
	Fitness     float64   `json:"fitness"`
	Fatigue     float64   `json:"fatigue"`
	Form        float64   `json:"form"`
	Monotony    float64   `json:"monotony"`
	Strain      float64   `json:"strain"`
	RampRate    *float64  `json:"ramp_rate"` // percent, nil when undefined
	LoadDigest  string    `json:"load_digest"`
	ComputedAt  time.Time `json:"computed_at"`
}

// ReadinessAssessment is the terminal artifact for one user-day.
type ReadinessAssessment struct {
	UserID                string    `json:"user_id"`
	Date                  time.Time `json:"date"`
	HRVScore              float64   `json:"hrv_score"`
	SleepScore            float64   `json:"sleep_score"`
	LoadScore             float64   `json:"load_score"`
	CompositeScore        float64   `json:"composite_score"`
	Status                string    `json:"status"`
	HRVLowConfidence      bool      `json:"hrv_low_confidence"`
	SleepLowConfidence    bool      `json:"sleep_low_confidence"`
	LoadLowConfidence     bool      `json:"load_low_confidence"`
	DropSeverity          string    `json:"drop_severity"`
	HRVTrend              string    `json:"hrv_trend"`
	HRVTrendLowConfidence bool      `json:"hrv_trend_low_confidence"`
	ACWRRisk              string    `json:"acwr_risk"`
	FormState             string    `json:"form_state"`
	SleepDebtHours        float64   `json:"sleep_debt_hours"`
	SleepDebtSeverity     string    `json:"sleep_debt_severity"`
	ModelVersion          string    `json:"model_version"`
	InputFingerprint      string    `json:"input_fingerprint"`
	ComputedAt            time.Time `json:"computed_at"`
}

// Day normalizes t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey formats t as a storage date.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a storage date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

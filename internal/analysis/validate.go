package analysis

import (
	"math"

	"readiness/internal/store"
)

type bounds struct {
	min, max float64
	reason   string
}

// hardBounds are physiological limits, not plausibility heuristics.
var hardBounds = map[store.MetricKind]bounds{
	store.KindHRV:               {0, 500, "rmssd must be within 0-500 ms"},
	store.KindRestingHR:         {20, 250, "resting heart rate must be within 20-250 bpm"},
	store.KindTrainingLoad:      {0, math.MaxFloat64, "training load cannot be negative"},
	store.KindSleepTotalMinutes: {0, minutesPerDay, "sleep duration cannot exceed 24h"},
	store.KindSleepDeepMinutes:  {0, minutesPerDay, "stage minutes must be within one day"},
	store.KindSleepLightMinutes: {0, minutesPerDay, "stage minutes must be within one day"},
	store.KindSleepREMMinutes:   {0, minutesPerDay, "stage minutes must be within one day"},
	store.KindSleepAwakeMinutes: {0, minutesPerDay, "awake minutes must be within one day"},
	store.KindSleepAwakenings:   {0, minutesPerDay, "awakenings cannot be negative"},
}

const minutesPerDay = 24 * 60

// ValidateSamples checks every sample against hard bounds and returns the
// first violation as a *DataQualityError. No-value samples and unknown kinds
// pass. A night whose time asleep plus time awake exceeds 24h is also rejected.
func ValidateSamples(samples []store.MetricSample) error {
	type night struct {
		user string
		date string
	}
	inBed := make(map[night]float64)

	for _, s := range samples {
		if s.Value == nil {
			continue
		}
		v := *s.Value
		b, known := hardBounds[s.Kind]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &DataQualityError{UserID: s.UserID, Date: s.Date, Kind: s.Kind, Value: v, Reason: "value is not finite"}
		}
		if !known {
			continue
		}
		if v < b.min || v > b.max {
			return &DataQualityError{UserID: s.UserID, Date: s.Date, Kind: s.Kind, Value: v, Reason: b.reason}
		}

		if s.Kind == store.KindSleepTotalMinutes || s.Kind == store.KindSleepAwakeMinutes {
			k := night{s.UserID, store.DateKey(s.Date)}
			inBed[k] += v
			if inBed[k] > minutesPerDay {
				return &DataQualityError{
					UserID: s.UserID, Date: s.Date, Kind: s.Kind, Value: inBed[k],
					Reason: "time asleep plus awake exceeds 24h",
				}
			}
		}
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"readiness/internal/analysis"
	"readiness/internal/stats"
	"readiness/internal/store"
)

// FitnessCurve replays the fitness/fatigue model over userID's recorded
// training loads and returns the daily states dated within [from, to]. The
// curve stops at the last load on or before to.
func (s *ReadinessService) FitnessCurve(ctx context.Context, userID string, from, to time.Time) ([]analysis.FitnessState, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", stats.ErrInvalidParameter)
	}
	from, to = store.Day(from), store.Day(to)
	if from.After(to) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, store.DateKey(from), store.DateKey(to))
	}

	samples, err := s.repo.Samples(ctx, userID, loadKinds, historyStart, to)
	if err != nil {
		return nil, fmt.Errorf("reading training load samples: %w", err)
	}

	var curve []analysis.FitnessState
	for _, st := range analysis.FitnessTrend(analysis.LoadsFromSamples(samples), s.params.Load) {
		if !st.Date.Before(from) {
			curve = append(curve, st)
		}
	}
	return curve, nil
}

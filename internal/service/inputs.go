package service

import (
	"context"
	"fmt"
	"time"

	"readiness/internal/store"
)

// history holds every sample needed to assess the days of one request.
type history struct {
	physiology []store.MetricSample
	loads      []store.MetricSample
}

// inputs are the samples one day's assessment depends on, in the store's
// canonical (date, kind) order.
type inputs struct {
	hrv       []store.MetricSample
	restingHR []store.MetricSample
	sleep     []store.MetricSample
	loads     []store.MetricSample
}

func (in inputs) all() []store.MetricSample {
	all := make([]store.MetricSample, 0, len(in.hrv)+len(in.restingHR)+len(in.sleep)+len(in.loads))
	all = append(all, in.loads...)
	all = append(all, in.hrv...)
	all = append(all, in.restingHR...)
	all = append(all, in.sleep...)
	return all
}

// hrvLookback is how many days before date the HRV windows reach.
func (s *ReadinessService) hrvLookback() int {
	h := s.params.HRV
	return max(h.BaselineDays+1, h.ShortDays+1, h.TrendDays)
}

// sleepLookback is how many days before date the sleep debt window reaches.
func (s *ReadinessService) sleepLookback() int {
	return s.params.Sleep.DebtWindowDays - 1
}

// loadHistory reads the samples needed to assess every day in [from, to].
func (s *ReadinessService) loadHistory(ctx context.Context, userID string, from, to time.Time) (*history, error) {
	lookback := max(s.hrvLookback(), s.sleepLookback())
	physiology, err := s.repo.Samples(ctx, userID, physiologyKinds, from.AddDate(0, 0, -lookback), to)
	if err != nil {
		return nil, fmt.Errorf("reading physiology samples: %w", err)
	}
	loads, err := s.repo.Samples(ctx, userID, loadKinds, historyStart, to)
	if err != nil {
		return nil, fmt.Errorf("reading training load samples: %w", err)
	}
	return &history{physiology: physiology, loads: loads}, nil
}

// inputsFor selects the samples date depends on.
func (s *ReadinessService) inputsFor(h *history, date time.Time) inputs {
	hrvFrom := date.AddDate(0, 0, -s.hrvLookback())
	sleepFrom := date.AddDate(0, 0, -s.sleepLookback())

	var in inputs
	for _, smp := range h.physiology {
		d := store.Day(smp.Date)
		if d.After(date) {
			continue
		}
		switch smp.Kind {
		case store.KindHRV:
			if !d.Before(hrvFrom) {
				in.hrv = append(in.hrv, smp)
			}
		case store.KindRestingHR:
			if d.Equal(date) {
				in.restingHR = append(in.restingHR, smp)
			}
		default:
			if !d.Before(sleepFrom) {
				in.sleep = append(in.sleep, smp)
			}
		}
	}
	in.loads = loadsThrough(h.loads, date)
	return in
}

// loadsThrough returns the prefix of sorted load samples dated on or before date.
func loadsThrough(loads []store.MetricSample, date time.Time) []store.MetricSample {
	n := 0
	for n < len(loads) && !store.Day(loads[n].Date).After(date) {
		n++
	}
	return loads[:n]
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"readiness/internal/analysis"
	"readiness/internal/metrics"
	"readiness/internal/stats"
	"readiness/internal/store"
)

// ComputeReadiness returns the assessment of userID on date, computing and
// persisting it unless an assessment with the same input fingerprint is
// cached or stored. A *analysis.DataQualityError means the day cannot be
// assessed.
func (s *ReadinessService) ComputeReadiness(ctx context.Context, userID string, date time.Time) (*store.ReadinessAssessment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", stats.ErrInvalidParameter)
	}
	date = store.Day(date)

	h, err := s.loadHistory(ctx, userID, date, date)
	if err != nil {
		return nil, err
	}
	return s.computeDay(ctx, userID, date, h, nil)
}

// ComputeRange assesses every day in [start, end] in order. It reads the
// history once and carries fitness/fatigue from day to day; each result is
// identical to ComputeReadiness for that day. A day rejected for data
// quality is left out of the results and its *analysis.DataQualityError is
// joined into the returned error; the remaining days are still assessed.
func (s *ReadinessService) ComputeRange(ctx context.Context, userID string, start, end time.Time) ([]*store.ReadinessAssessment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", stats.ErrInvalidParameter)
	}
	start, end = store.Day(start), store.Day(end)
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, store.DateKey(start), store.DateKey(end))
	}

	h, err := s.loadHistory(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	loads := analysis.LoadsFromSamples(h.loads)

	var results []*store.ReadinessAssessment
	var rejected []error
	var carry *analysis.FitnessState
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fit, err := s.fitnessFor(ctx, userID, d, h.loads, loads, carry)
		if err != nil {
			return nil, err
		}
		carry = &fit

		a, err := s.computeDay(ctx, userID, d, h, &fit)
		var dq *analysis.DataQualityError
		switch {
		case errors.As(err, &dq):
			rejected = append(rejected, err)
			continue
		case err != nil:
			return nil, err
		}
		results = append(results, a)
	}
	return results, errors.Join(rejected...)
}

// Invalidate forces the next ComputeReadiness of userID on date to
// recompute.
func (s *ReadinessService) Invalidate(ctx context.Context, userID string, date time.Time) error {
	date = store.Day(date)
	if err := s.cache.Delete(ctx, cacheKey(userID, date)); err != nil {
		return fmt.Errorf("deleting cached assessment: %w", err)
	}
	if err := s.repo.InvalidateAssessment(ctx, userID, date); err != nil {
		return fmt.Errorf("invalidating stored assessment: %w", err)
	}
	s.log.Debug("assessment invalidated", zap.String("user_id", userID), zap.String("date", store.DateKey(date)))
	return nil
}

// computeDay validates the day's inputs and serves the assessment from the
// first layer holding the current fingerprint: cache, store, computation.
// fit is the carried fitness state for date, or nil to resolve it.
func (s *ReadinessService) computeDay(ctx context.Context, userID string, date time.Time, h *history, fit *analysis.FitnessState) (*store.ReadinessAssessment, error) {
	in := s.inputsFor(h, date)
	if err := analysis.ValidateSamples(in.all()); err != nil {
		s.metrics.DataQualityError()
		s.log.Warn("rejecting day with invalid samples",
			zap.String("user_id", userID), zap.String("date", store.DateKey(date)), zap.Error(err))
		return nil, fmt.Errorf("assessing %s on %s: %w", userID, store.DateKey(date), err)
	}
	fp := s.fingerprint(userID, date, in)

	v, err, shared := s.group.Do(userID+"|"+store.DateKey(date)+"|"+fp, func() (any, error) {
		if a, ok := s.cached(ctx, userID, date, fp); ok {
			s.metrics.CacheHit(metrics.LayerCache)
			return a, nil
		}
		a, ok, err := s.persisted(ctx, userID, date, fp)
		if err != nil {
			return nil, err
		}
		if ok {
			s.metrics.CacheHit(metrics.LayerPersisted)
			s.cacheAssessment(ctx, a)
			return a, nil
		}
		return s.computeAndSave(ctx, userID, date, h, in, fp, fit)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.metrics.CacheHit(metrics.LayerInflight)
	}
	a := *v.(*store.ReadinessAssessment)
	return &a, nil
}

func (s *ReadinessService) computeAndSave(ctx context.Context, userID string, date time.Time, h *history, in inputs, fp string, fit *analysis.FitnessState) (*store.ReadinessAssessment, error) {
	key := userID + "|" + store.DateKey(date)
	locked, err := s.locker.TryLock(ctx, key)
	switch {
	case err != nil:
		s.log.Warn("computation lock unavailable", zap.String("key", key), zap.Error(err))
	case !locked:
		s.log.Warn("computation lock held elsewhere, computing anyway", zap.String("key", key))
	default:
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				s.log.Warn("releasing computation lock", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	started := time.Now()
	if fit == nil {
		state, err := s.fitnessFor(ctx, userID, date, h.loads, analysis.LoadsFromSamples(in.loads), nil)
		if err != nil {
			return nil, err
		}
		fit = &state
	}

	snap, a, err := s.assess(userID, date, in, *fit, fp)
	if err != nil {
		return nil, fmt.Errorf("assessing %s on %s: %w", userID, store.DateKey(date), err)
	}
	if err := s.repo.SaveDay(ctx, snap, a); err != nil {
		return nil, fmt.Errorf("saving assessment: %w", err)
	}
	s.cacheAssessment(ctx, a)

	elapsed := time.Since(started)
	s.metrics.AssessmentComputed(elapsed)
	s.log.Info("readiness computed",
		zap.String("user_id", userID),
		zap.String("date", store.DateKey(date)),
		zap.Float64("composite", a.CompositeScore),
		zap.String("status", a.Status),
		zap.Duration("duration", elapsed),
	)
	return a, nil
}

// fitnessFor returns the fitness/fatigue state at the end of date. It steps
// from carry when carry is the day before, else from the stored snapshot
// of the day before when its load digest still matches, else replays the
// full history.
func (s *ReadinessService) fitnessFor(ctx context.Context, userID string, date time.Time, loadSamples []store.MetricSample, loads []analysis.DailyLoad, carry *analysis.FitnessState) (analysis.FitnessState, error) {
	prior := date.AddDate(0, 0, -1)
	if carry != nil && store.Day(carry.Date).Equal(prior) {
		return analysis.ResumeFitness(*carry, loads, date, s.params.Load)
	}

	snap, err := s.repo.GetSnapshot(ctx, userID, prior)
	switch {
	case errors.Is(err, store.ErrSnapshotNotFound):
	case err != nil:
		return analysis.FitnessState{}, fmt.Errorf("reading fitness checkpoint: %w", err)
	case snap.LoadDigest == s.loadDigest(loadSamples, prior):
		checkpoint := analysis.FitnessState{Date: prior, Fitness: snap.Fitness, Fatigue: snap.Fatigue}
		return analysis.ResumeFitness(checkpoint, loads, date, s.params.Load)
	}
	return analysis.FitnessFatigue(loads, date, s.params.Load), nil
}

func cacheKey(userID string, date time.Time) string {
	return CacheKeyPrefix + userID + ":" + store.DateKey(date)
}

// cached returns the cached assessment when its fingerprint is fp. Cache
// failures are misses.
func (s *ReadinessService) cached(ctx context.Context, userID string, date time.Time, fp string) (*store.ReadinessAssessment, bool) {
	data, ok, err := s.cache.Get(ctx, cacheKey(userID, date))
	if err != nil {
		s.log.Warn("reading assessment cache", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var a store.ReadinessAssessment
	if err := json.Unmarshal(data, &a); err != nil {
		s.log.Warn("decoding cached assessment", zap.Error(err))
		return nil, false
	}
	if a.InputFingerprint != fp {
		return nil, false
	}
	s.log.Debug("assessment served from cache", zap.String("user_id", userID), zap.String("date", store.DateKey(date)))
	return &a, true
}

// persisted returns the stored assessment when its fingerprint is fp.
func (s *ReadinessService) persisted(ctx context.Context, userID string, date time.Time, fp string) (*store.ReadinessAssessment, bool, error) {
	a, err := s.repo.GetAssessment(ctx, userID, date)
	if errors.Is(err, store.ErrAssessmentNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading stored assessment: %w", err)
	}
	if a.InputFingerprint != fp {
		return nil, false, nil
	}
	s.log.Debug("assessment served from store", zap.String("user_id", userID), zap.String("date", store.DateKey(date)))
	return a, true, nil
}

// cacheAssessment writes a to the cache. Cache failures are logged and ignored.
func (s *ReadinessService) cacheAssessment(ctx context.Context, a *store.ReadinessAssessment) {
	data, err := json.Marshal(a)
	if err != nil {
		s.log.Warn("encoding assessment for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, cacheKey(a.UserID, a.Date), data, s.cacheTTL); err != nil {
		s.log.Warn("writing assessment cache", zap.Error(err))
	}
}

// Package service implements the readiness orchestrator: it reads raw
// samples, runs the analyzers, and caches and persists one assessment per
// user-day.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"readiness/internal/analysis"
	"readiness/internal/cache"
	"readiness/internal/lock"
	"readiness/internal/metrics"
	"readiness/internal/stats"
	"readiness/internal/store"
)

// ErrInvalidRange is returned by ComputeRange when start is after end.
var ErrInvalidRange = fmt.Errorf("%w: range start after end", stats.ErrInvalidParameter)

// Repository is the persistence collaborator. *store.Store implements it.
// Samples returns the latest sample per (kind, date) ordered by date, then kind.
type Repository interface {
	Samples(ctx context.Context, userID string, kinds []store.MetricKind, from, to time.Time) ([]store.MetricSample, error)
	GetSnapshot(ctx context.Context, userID string, date time.Time) (*store.TrainingLoadSnapshot, error)
	GetAssessment(ctx context.Context, userID string, date time.Time) (*store.ReadinessAssessment, error)
	SaveDay(ctx context.Context, snap *store.TrainingLoadSnapshot, a *store.ReadinessAssessment) error
	InvalidateAssessment(ctx context.Context, userID string, date time.Time) error
}

var _ Repository = (*store.Store)(nil) // Compile-time check

// ReadinessService computes, caches and persists readiness assessments.
type ReadinessService struct {
	repo     Repository
	cache    cache.Cache
	cacheTTL time.Duration
	locker   lock.Locker
	log      *zap.Logger
	metrics  *metrics.Manager
	now      func() time.Time
	params   analysis.ModelParams

	paramsDigest uint64
	group        singleflight.Group
}

// Option configures a ReadinessService.
type Option func(*ReadinessService)

// WithCache sets the assessment cache. The default caches nothing.
func WithCache(c cache.Cache) Option {
	return func(s *ReadinessService) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithCacheTTL sets how long cached assessments live.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *ReadinessService) {
		s.cacheTTL = ttl
	}
}

// WithLocker sets the per-day computation lock.
func WithLocker(l lock.Locker) Option {
	return func(s *ReadinessService) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *ReadinessService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *ReadinessService) {
		s.metrics = m
	}
}

// WithClock sets the source of ComputedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ReadinessService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithParams replaces the default model parameters.
func WithParams(p analysis.ModelParams) Option {
	return func(s *ReadinessService) {
		s.params = p
	}
}

// NewReadinessService creates a service over repo. It fails when the model
// parameters are invalid.
func NewReadinessService(repo Repository, opts ...Option) (*ReadinessService, error) {
	if repo == nil {
		return nil, errors.New("readiness service needs a repository")
	}
	s := &ReadinessService{
		repo:     repo,
		cache:    cache.None{},
		cacheTTL: DefaultCacheTTL,
		locker:   lock.Noop{},
		log:      zap.NewNop(),
		now:      time.Now,
		params:   analysis.DefaultModelParams(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.params.Validate(); err != nil {
		return nil, fmt.Errorf("validating model parameters: %w", err)
	}
	encoded, err := json.Marshal(s.params)
	if err != nil {
		return nil, fmt.Errorf("encoding model parameters: %w", err)
	}
	s.paramsDigest = xxhash.Sum64(encoded)
	return s, nil
}

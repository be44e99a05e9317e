package service

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"readiness/internal/cache"
	"readiness/internal/metrics"
	"readiness/internal/store"
)

const testUser = "athlete-1"

// assessDay is the reference day used by the scenarios.
var assessDay = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	svc      *ReadinessService
	store    *store.Store
	cache    *cache.Memory
	registry *prometheus.Registry
}

// tickingClock returns a clock advancing one second per call.
func tickingClock() func() time.Time {
	var n atomic.Int64
	base := time.Date(2024, 4, 1, 6, 0, 0, 0, time.UTC)
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	s, err := store.NewTestStore(sqlDB)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newEnv(t *testing.T, st *store.Store, opts ...Option) *testEnv {
	t.Helper()
	if st == nil {
		st = openStore(t)
	}
	env := &testEnv{
		store:    st,
		cache:    cache.NewMemory(),
		registry: prometheus.NewRegistry(),
	}
	base := []Option{
		WithCache(env.cache),
		WithClock(tickingClock()),
		WithMetrics(metrics.NewManager(metrics.WithRegistry(env.registry))),
	}
	svc, err := NewReadinessService(st, append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	env.svc = svc
	return env
}

// counter reads a counter summed over its label values.
func (e *testEnv) counter(name string) float64 {
	families, err := e.registry.Gather()
	if err != nil {
		return -1
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

// samples accumulates fixture samples.
type samples []store.MetricSample

func (s *samples) add(kind store.MetricKind, date time.Time, v float64) {
	*s = append(*s, store.MetricSample{UserID: testUser, Date: date, Kind: kind, Value: &v})
}

// night adds a night of total minutes asleep with deep/REM shares of
// staged sleep, 10 awake minutes and one awakening.
func (s *samples) night(date time.Time, total, deepPct, remPct float64) {
	deep := total * deepPct / 100
	rem := total * remPct / 100
	s.add(store.KindSleepTotalMinutes, date, total)
	s.add(store.KindSleepDeepMinutes, date, deep)
	s.add(store.KindSleepREMMinutes, date, rem)
	s.add(store.KindSleepLightMinutes, date, total-deep-rem)
	s.add(store.KindSleepAwakeMinutes, date, 10)
	s.add(store.KindSleepAwakenings, date, 1)
}

// loads adds load on each of the days in [from, to].
func (s *samples) loads(from, to time.Time, load float64) {
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		s.add(store.KindTrainingLoad, d, load)
	}
}

func (s samples) save(t *testing.T, st *store.Store) {
	t.Helper()
	if err := st.AppendSamples(context.Background(), s); err != nil {
		t.Fatalf("failed to append samples: %v", err)
	}
}

func daysBefore(n int) time.Time {
	return assessDay.AddDate(0, 0, -n)
}

// wellRested is 30 days of HRV averaging 55 +/- 5 with today at 60, two
// weeks of 8h nights with normal stages, and loads giving ACWR 1.05.
func wellRested() samples {
	var s samples
	for i := 1; i <= 30; i++ {
		v := 50.0
		if i%2 == 0 {
			v = 60
		}
		s.add(store.KindHRV, daysBefore(i), v)
	}
	s.add(store.KindHRV, assessDay, 60)
	s.add(store.KindRestingHR, assessDay, 48)

	for i := 0; i < 14; i++ {
		s.night(daysBefore(i), 480, 20, 22)
	}

	s.loads(daysBefore(60), daysBefore(7), 100)
	s.loads(daysBefore(6), assessDay, 106.78)
	return s
}

// overtrained is HRV 25% below a 60 ms baseline for three days, two weeks
// of 428-minute nights (about 12h of debt) and loads giving ACWR 1.7.
func overtrained() samples {
	var s samples
	for i := 3; i <= 31; i++ {
		v := 58.0
		if i%2 == 0 {
			v = 62
		}
		s.add(store.KindHRV, daysBefore(i), v)
	}
	for i := 0; i < 3; i++ {
		s.add(store.KindHRV, daysBefore(i), 45)
	}

	for i := 0; i < 14; i++ {
		s.night(daysBefore(i), 428, 20, 22)
	}

	s.loads(daysBefore(60), daysBefore(7), 50)
	s.loads(daysBefore(6), assessDay, 111)
	return s
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"readiness/internal/analysis"
	"readiness/internal/lock"
	"readiness/internal/stats"
	"readiness/internal/store"
)

func TestReadinessScenarios(t *testing.T) {
	ctx := context.Background()

	Convey("Given a well-rested athlete", t, func() {
		env := newEnv(t, nil)
		wellRested().save(t, env.store)

		a, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)

		Convey("Then every component scores high and the status is excellent", func() {
			So(err, ShouldBeNil)
			So(a.HRVScore, ShouldBeGreaterThanOrEqualTo, 85)
			So(a.SleepScore, ShouldBeGreaterThanOrEqualTo, 85)
			So(a.ACWRRisk, ShouldEqual, string(analysis.RiskOptimal))
			So(a.Status, ShouldEqual, string(analysis.StatusExcellent))
			So(a.DropSeverity, ShouldEqual, string(analysis.SeverityNormal))
			So(a.SleepDebtSeverity, ShouldEqual, string(analysis.DebtMinimal))
			So(a.HRVLowConfidence, ShouldBeFalse)
			So(a.HRVTrendLowConfidence, ShouldBeFalse)
			So(a.ModelVersion, ShouldEqual, analysis.ModelVersion)
		})

		Convey("Then the snapshot and assessment are persisted", func() {
			stored, err := env.store.GetAssessment(ctx, testUser, assessDay)
			So(err, ShouldBeNil)
			So(stored.InputFingerprint, ShouldEqual, a.InputFingerprint)

			snap, err := env.store.GetSnapshot(ctx, testUser, assessDay)
			So(err, ShouldBeNil)
			So(snap.ACWR, ShouldNotBeNil)
			So(*snap.ACWR, ShouldAlmostEqual, 1.05, 0.001)
			So(snap.LoadDigest, ShouldNotBeEmpty)
		})
	})

	Convey("Given an overtrained athlete", t, func() {
		env := newEnv(t, nil)
		overtrained().save(t, env.store)

		a, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)

		Convey("Then the HRV drop is severe, load risk is high and the status is poor", func() {
			So(err, ShouldBeNil)
			So(a.HRVScore, ShouldBeLessThanOrEqualTo, 30)
			So(a.DropSeverity, ShouldEqual, string(analysis.SeveritySevere))
			So(a.ACWRRisk, ShouldEqual, string(analysis.RiskHigh))
			So(a.SleepDebtHours, ShouldBeGreaterThan, 10)
			So(a.SleepDebtSeverity, ShouldEqual, string(analysis.DebtSevere))
			So(a.Status, ShouldEqual, string(analysis.StatusPoor))
		})
	})

	Convey("Given a well-rested athlete with one wild reading at the edge of the baseline", t, func() {
		plain := newEnv(t, nil)
		wellRested().save(t, plain.store)
		want, err := plain.svc.ComputeReadiness(ctx, testUser, assessDay)
		So(err, ShouldBeNil)

		wild := wellRested()
		wild.add(store.KindHRV, daysBefore(31), 400)

		Convey("Then the reading is left out of the baseline", func() {
			env := newEnv(t, nil)
			wild.save(t, env.store)

			a, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)
			So(err, ShouldBeNil)
			So(a.DropSeverity, ShouldEqual, string(analysis.SeverityNormal))
			So(a.HRVScore, ShouldEqual, want.HRVScore)
		})

		Convey("Then without outlier rejection it pulls the baseline up", func() {
			params := analysis.DefaultModelParams()
			params.HRV.OutlierCutoff = 0
			env := newEnv(t, nil, WithParams(params))
			wild.save(t, env.store)

			a, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)
			So(err, ShouldBeNil)
			So(a.DropSeverity, ShouldEqual, string(analysis.SeverityMild))
			So(a.HRVScore, ShouldBeLessThan, want.HRVScore)
		})
	})

	Convey("Given an athlete with two days of HRV and nothing else", t, func() {
		env := newEnv(t, nil)
		var s samples
		s.add(store.KindHRV, daysBefore(1), 55)
		s.add(store.KindHRV, assessDay, 52)
		s.save(t, env.store)

		a, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)

		Convey("Then each component degrades to a low-confidence neutral score", func() {
			So(err, ShouldBeNil)
			So(a.HRVLowConfidence, ShouldBeTrue)
			So(a.SleepLowConfidence, ShouldBeTrue)
			So(a.LoadLowConfidence, ShouldBeTrue)
			So(a.HRVTrendLowConfidence, ShouldBeTrue)
			So(a.DropSeverity, ShouldEqual, string(analysis.SeverityUnknown))
			So(a.ACWRRisk, ShouldEqual, string(analysis.RiskUnknown))
			So(a.CompositeScore, ShouldAlmostEqual, 60, 1e-9)
			So(a.Status, ShouldEqual, string(analysis.StatusFair))
		})
	})

	Convey("Given an athlete with no samples at all", t, func() {
		env := newEnv(t, nil)

		a, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)

		Convey("Then a neutral assessment is still produced", func() {
			So(err, ShouldBeNil)
			So(a.CompositeScore, ShouldBeBetweenOrEqual, 0, 100)
			So(a.FormState, ShouldEqual, string(analysis.FormOptimal))
		})
	})
}

func TestReadinessCaching(t *testing.T) {
	ctx := context.Background()

	Convey("Given an assessment computed once", t, func() {
		env := newEnv(t, nil)
		wellRested().save(t, env.store)

		first, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)
		So(err, ShouldBeNil)

		Convey("When it is requested again", func() {
			second, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)

			Convey("Then the cached result is returned unchanged", func() {
				So(err, ShouldBeNil)
				So(second.InputFingerprint, ShouldEqual, first.InputFingerprint)
				So(second.CompositeScore, ShouldEqual, first.CompositeScore)
				So(second.ComputedAt.Equal(first.ComputedAt), ShouldBeTrue)
				So(env.counter("readiness_assessments_computed_total"), ShouldEqual, 1)
				So(env.counter("readiness_cache_hits_total"), ShouldEqual, 1)
			})
		})

		Convey("When another service without the cache entry requests it", func() {
			other := newEnv(t, env.store)
			again, err := other.svc.ComputeReadiness(ctx, testUser, assessDay)

			Convey("Then the persisted assessment is served and cached", func() {
				So(err, ShouldBeNil)
				So(again.ComputedAt.Equal(first.ComputedAt), ShouldBeTrue)
				So(other.counter("readiness_assessments_computed_total"), ShouldEqual, 0)
				So(other.cache.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the day is invalidated", func() {
			So(env.svc.Invalidate(ctx, testUser, assessDay), ShouldBeNil)
			again, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)

			Convey("Then it is recomputed with the same inputs", func() {
				So(err, ShouldBeNil)
				So(again.ComputedAt.After(first.ComputedAt), ShouldBeTrue)
				So(again.InputFingerprint, ShouldEqual, first.InputFingerprint)
				So(again.CompositeScore, ShouldEqual, first.CompositeScore)
				So(env.counter("readiness_assessments_computed_total"), ShouldEqual, 2)
			})
		})

		Convey("When a sample is corrected upstream", func() {
			var fix samples
			fix.add(store.KindHRV, assessDay, 40)
			fix[0].RecordedAt = time.Now().Add(time.Hour)
			fix.save(t, env.store)

			again, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)

			Convey("Then the fingerprint changes and the day is recomputed", func() {
				So(err, ShouldBeNil)
				So(again.InputFingerprint, ShouldNotEqual, first.InputFingerprint)
				So(again.HRVScore, ShouldBeLessThan, first.HRVScore)
			})
		})

		Convey("When the model parameters change", func() {
			params := analysis.DefaultModelParams()
			params.Composite.HRVWeight = 0.5
			params.Composite.SleepWeight = 0.25
			tuned := newEnv(t, env.store, WithParams(params))

			again, err := tuned.svc.ComputeReadiness(ctx, testUser, assessDay)

			Convey("Then the stored assessment is not reused", func() {
				So(err, ShouldBeNil)
				So(again.InputFingerprint, ShouldNotEqual, first.InputFingerprint)
				So(tuned.counter("readiness_assessments_computed_total"), ShouldEqual, 1)
			})
		})
	})
}

func TestReadinessRange(t *testing.T) {
	ctx := context.Background()

	Convey("Given the same samples in two stores", t, func() {
		ranged := newEnv(t, nil)
		daily := newEnv(t, nil)
		wellRested().save(t, ranged.store)
		wellRested().save(t, daily.store)
		start := daysBefore(6)

		Convey("When one computes a range and the other each day in reverse", func() {
			got, err := ranged.svc.ComputeRange(ctx, testUser, start, assessDay)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 7)

			for i := len(got) - 1; i >= 0; i-- {
				want, err := daily.svc.ComputeReadiness(ctx, testUser, start.AddDate(0, 0, i))
				So(err, ShouldBeNil)

				Convey("Then day "+store.DateKey(want.Date)+" matches", func() {
					So(got[i].Date.Equal(want.Date), ShouldBeTrue)
					So(got[i].InputFingerprint, ShouldEqual, want.InputFingerprint)
					So(got[i].CompositeScore, ShouldEqual, want.CompositeScore)
					So(got[i].HRVScore, ShouldEqual, want.HRVScore)
					So(got[i].SleepScore, ShouldEqual, want.SleepScore)
					So(got[i].LoadScore, ShouldEqual, want.LoadScore)

					a, err := ranged.store.GetSnapshot(ctx, testUser, want.Date)
					So(err, ShouldBeNil)
					b, err := daily.store.GetSnapshot(ctx, testUser, want.Date)
					So(err, ShouldBeNil)
					So(a.Fitness, ShouldEqual, b.Fitness)
					So(a.Fatigue, ShouldEqual, b.Fatigue)
				})
			}
		})

		Convey("When the range is reversed", func() {
			_, err := ranged.svc.ComputeRange(ctx, testUser, assessDay, start)

			Convey("Then it is rejected as an invalid parameter", func() {
				So(errors.Is(err, ErrInvalidRange), ShouldBeTrue)
				So(errors.Is(err, stats.ErrInvalidParameter), ShouldBeTrue)
			})
		})
	})

	Convey("Given a range with one corrupt day in the middle", t, func() {
		ranged := newEnv(t, nil)
		daily := newEnv(t, nil)
		for _, st := range []*store.Store{ranged.store, daily.store} {
			s := wellRested()
			s.add(store.KindRestingHR, daysBefore(3), -40)
			s.save(t, st)
		}
		start := daysBefore(6)

		got, err := ranged.svc.ComputeRange(ctx, testUser, start, assessDay)

		Convey("Then only that day is rejected", func() {
			So(errors.Is(err, analysis.ErrDataQuality), ShouldBeTrue)
			var dq *analysis.DataQualityError
			So(errors.As(err, &dq), ShouldBeTrue)
			So(dq.Date.Equal(daysBefore(3)), ShouldBeTrue)
			So(got, ShouldHaveLength, 6)
			So(ranged.counter("readiness_data_quality_errors_total"), ShouldEqual, 1)

			for _, a := range got {
				So(a.Date.Equal(daysBefore(3)), ShouldBeFalse)
				want, err := daily.svc.ComputeReadiness(ctx, testUser, a.Date)
				So(err, ShouldBeNil)
				So(a.InputFingerprint, ShouldEqual, want.InputFingerprint)
				So(a.CompositeScore, ShouldEqual, want.CompositeScore)
				So(a.LoadScore, ShouldEqual, want.LoadScore)
			}
		})
	})

	Convey("Given a snapshot checkpoint for the previous day", t, func() {
		resumed := newEnv(t, nil)
		replayed := newEnv(t, nil)
		wellRested().save(t, resumed.store)
		wellRested().save(t, replayed.store)

		_, err := resumed.svc.ComputeReadiness(ctx, testUser, daysBefore(1))
		So(err, ShouldBeNil)

		Convey("When the next day resumes from it", func() {
			_, err := resumed.svc.ComputeReadiness(ctx, testUser, assessDay)
			So(err, ShouldBeNil)
			_, err = replayed.svc.ComputeReadiness(ctx, testUser, assessDay)
			So(err, ShouldBeNil)

			Convey("Then fitness and fatigue equal a full replay", func() {
				a, err := resumed.store.GetSnapshot(ctx, testUser, assessDay)
				So(err, ShouldBeNil)
				b, err := replayed.store.GetSnapshot(ctx, testUser, assessDay)
				So(err, ShouldBeNil)
				So(a.Fitness, ShouldAlmostEqual, b.Fitness, 1e-9)
				So(a.Fatigue, ShouldAlmostEqual, b.Fatigue, 1e-9)
				So(a.Form, ShouldAlmostEqual, b.Form, 1e-9)
			})
		})

		Convey("When an earlier load is backfilled", func() {
			var backfill samples
			backfill.add(store.KindTrainingLoad, daysBefore(90), 500)
			backfill.save(t, resumed.store)
			backfill.save(t, replayed.store)

			_, err := resumed.svc.ComputeReadiness(ctx, testUser, assessDay)
			So(err, ShouldBeNil)
			_, err = replayed.svc.ComputeReadiness(ctx, testUser, assessDay)
			So(err, ShouldBeNil)

			Convey("Then the stale checkpoint is ignored", func() {
				a, err := resumed.store.GetSnapshot(ctx, testUser, assessDay)
				So(err, ShouldBeNil)
				b, err := replayed.store.GetSnapshot(ctx, testUser, assessDay)
				So(err, ShouldBeNil)
				So(a.Fitness, ShouldEqual, b.Fitness)
				So(a.Fatigue, ShouldEqual, b.Fatigue)
			})
		})

		Convey("When the time constants are retuned before the next day", func() {
			params := analysis.DefaultModelParams()
			params.Load.FitnessTau = 21
			tuned := newEnv(t, resumed.store, WithParams(params))
			fresh := newEnv(t, replayed.store, WithParams(params))

			got, err := tuned.svc.ComputeReadiness(ctx, testUser, assessDay)
			So(err, ShouldBeNil)
			want, err := fresh.svc.ComputeReadiness(ctx, testUser, assessDay)
			So(err, ShouldBeNil)

			Convey("Then the old checkpoint is not resumed", func() {
				So(got.InputFingerprint, ShouldEqual, want.InputFingerprint)

				a, err := resumed.store.GetSnapshot(ctx, testUser, assessDay)
				So(err, ShouldBeNil)
				b, err := replayed.store.GetSnapshot(ctx, testUser, assessDay)
				So(err, ShouldBeNil)
				So(a.Fitness, ShouldAlmostEqual, b.Fitness, 1e-9)
				So(a.Fatigue, ShouldAlmostEqual, b.Fatigue, 1e-9)
				So(a.Form, ShouldAlmostEqual, b.Form, 1e-9)
				So(got.LoadScore, ShouldEqual, want.LoadScore)
			})
		})
	})
}

func TestReadinessDataQuality(t *testing.T) {
	ctx := context.Background()

	Convey("Given a day with a negative resting heart rate", t, func() {
		env := newEnv(t, nil)
		s := wellRested()
		s.add(store.KindRestingHR, assessDay, -40)
		s.save(t, env.store)

		a, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)

		Convey("Then a data quality error is returned and nothing is persisted", func() {
			So(a, ShouldBeNil)
			So(errors.Is(err, analysis.ErrDataQuality), ShouldBeTrue)

			var dq *analysis.DataQualityError
			So(errors.As(err, &dq), ShouldBeTrue)
			So(dq.Kind, ShouldEqual, store.KindRestingHR)

			_, err := env.store.GetAssessment(ctx, testUser, assessDay)
			So(errors.Is(err, store.ErrAssessmentNotFound), ShouldBeTrue)
			So(env.counter("readiness_data_quality_errors_total"), ShouldEqual, 1)
		})

		Convey("Then the previous day is still assessable", func() {
			_, err := env.svc.ComputeReadiness(ctx, testUser, daysBefore(1))
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a night longer than a day", t, func() {
		env := newEnv(t, nil)
		var s samples
		s.add(store.KindSleepTotalMinutes, assessDay, 1400)
		s.add(store.KindSleepAwakeMinutes, assessDay, 90)
		s.save(t, env.store)

		_, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)

		Convey("Then the day is rejected", func() {
			So(errors.Is(err, analysis.ErrDataQuality), ShouldBeTrue)
		})
	})

	Convey("Given no user id", t, func() {
		env := newEnv(t, nil)
		_, err := env.svc.ComputeReadiness(ctx, "", assessDay)

		Convey("Then the call is rejected", func() {
			So(errors.Is(err, stats.ErrInvalidParameter), ShouldBeTrue)
		})
	})
}

func TestReadinessConcurrency(t *testing.T) {
	ctx := context.Background()

	Convey("Given many concurrent requests for one day", t, func() {
		env := newEnv(t, nil)
		wellRested().save(t, env.store)

		const callers = 16
		results := make([]*store.ReadinessAssessment, callers)
		errs := make([]error, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = env.svc.ComputeReadiness(ctx, testUser, assessDay)
			}(i)
		}
		wg.Wait()

		Convey("Then the assessment is computed once and shared", func() {
			for i := 0; i < callers; i++ {
				So(errs[i], ShouldBeNil)
				So(results[i].InputFingerprint, ShouldEqual, results[0].InputFingerprint)
				So(results[i].ComputedAt.Equal(results[0].ComputedAt), ShouldBeTrue)
			}
			So(env.counter("readiness_assessments_computed_total"), ShouldEqual, 1)
		})
	})

	Convey("Given the computation lock is held elsewhere", t, func() {
		locker := lock.NewLocal()
		ok, err := locker.TryLock(ctx, testUser+"|"+store.DateKey(assessDay))
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)

		env := newEnv(t, nil, WithLocker(locker))
		wellRested().save(t, env.store)

		a, err := env.svc.ComputeReadiness(ctx, testUser, assessDay)

		Convey("Then the computation proceeds", func() {
			So(err, ShouldBeNil)
			So(a.Status, ShouldEqual, string(analysis.StatusExcellent))
		})
	})
}

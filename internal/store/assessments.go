package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type assessmentRow struct {
	UserID                string  `db:"user_id"`
	Date                  string  `db:"date"`
	HRVScore              float64 `db:"hrv_score"`
	SleepScore            float64 `db:"sleep_score"`
	LoadScore             float64 `db:"load_score"`
	CompositeScore        float64 `db:"composite_score"`
	Status                string  `db:"status"`
	HRVLowConfidence      int     `db:"hrv_low_confidence"`
	SleepLowConfidence    int     `db:"sleep_low_confidence"`
	LoadLowConfidence     int     `db:"load_low_confidence"`
	DropSeverity          string  `db:"drop_severity"`
	HRVTrend              string  `db:"hrv_trend"`
	HRVTrendLowConfidence int     `db:"hrv_trend_low_confidence"`
	ACWRRisk              string  `db:"acwr_risk"`
	FormState             string  `db:"form_state"`
	SleepDebtHours        float64 `db:"sleep_debt_hours"`
	SleepDebtSeverity     string  `db:"sleep_debt_severity"`
	ModelVersion          string  `db:"model_version"`
	InputFingerprint      string  `db:"input_fingerprint"`
	ComputedAt            string  `db:"computed_at"`
}

const assessmentColumns = `user_id, date, hrv_score, sleep_score, load_score, composite_score,
	status, hrv_low_confidence, sleep_low_confidence, load_low_confidence, drop_severity,
	hrv_trend, hrv_trend_low_confidence, acwr_risk, form_state, sleep_debt_hours,
	sleep_debt_severity, model_version, input_fingerprint, computed_at`

func (r assessmentRow) toModel() (*ReadinessAssessment, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return nil, fmt.Errorf("parsing assessment date %q: %w", r.Date, err)
	}
	computed, err := time.Parse(recordedLayout, r.ComputedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing computed_at %q: %w", r.ComputedAt, err)
	}
	return &ReadinessAssessment{
		UserID:                r.UserID,
		Date:                  date,
		HRVScore:              r.HRVScore,
		SleepScore:            r.SleepScore,
		LoadScore:             r.LoadScore,
		CompositeScore:        r.CompositeScore,
		Status:                r.Status,
		HRVLowConfidence:      r.HRVLowConfidence == 1,
		SleepLowConfidence:    r.SleepLowConfidence == 1,
		LoadLowConfidence:     r.LoadLowConfidence == 1,
		DropSeverity:          r.DropSeverity,
		HRVTrend:              r.HRVTrend,
		HRVTrendLowConfidence: r.HRVTrendLowConfidence == 1,
		ACWRRisk:              r.ACWRRisk,
		FormState:             r.FormState,
		SleepDebtHours:        r.SleepDebtHours,
		SleepDebtSeverity:     r.SleepDebtSeverity,
		ModelVersion:          r.ModelVersion,
		InputFingerprint:      r.InputFingerprint,
		ComputedAt:            computed,
	}, nil
}

// GetAssessment returns the persisted readiness assessment of one user-day.
func (s *Store) GetAssessment(ctx context.Context, userID string, date time.Time) (*ReadinessAssessment, error) {
	var row assessmentRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT `+assessmentColumns+`
		FROM readiness_assessments
		WHERE user_id = ? AND date = ?
	`), userID, DateKey(date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssessmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying assessment: %w", err)
	}
	return row.toModel()
}

// ListAssessments returns a user's assessments with dates in [from, to], oldest first.
func (s *Store) ListAssessments(ctx context.Context, userID string, from, to time.Time) ([]ReadinessAssessment, error) {
	var rows []assessmentRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT `+assessmentColumns+`
		FROM readiness_assessments
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date
	`), userID, DateKey(from), DateKey(to))
	if err != nil {
		return nil, fmt.Errorf("querying assessments: %w", err)
	}

	out := make([]ReadinessAssessment, 0, len(rows))
	for _, r := range rows {
		a, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// SaveDay upserts the snapshot and assessment of one user-day in a single
// transaction, so readers never observe one without the other.
func (s *Store) SaveDay(ctx context.Context, snap *TrainingLoadSnapshot, a *ReadinessAssessment) error {
	if snap == nil || a == nil {
		return errors.New("saving day: snapshot and assessment are required")
	}
	if snap.UserID != a.UserID || DateKey(snap.Date) != DateKey(a.Date) {
		return fmt.Errorf("saving day: snapshot %s/%s does not match assessment %s/%s",
			snap.UserID, DateKey(snap.Date), a.UserID, DateKey(a.Date))
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertSnapshot(ctx, tx, snap); err != nil {
		return err
	}
	if err := upsertAssessment(ctx, tx, a); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing day: %w", err)
	}
	return nil
}

// InvalidateAssessment clears the stored fingerprint so the next read cannot
// be served from the persisted row. It is not an error if no row exists.
func (s *Store) InvalidateAssessment(ctx context.Context, userID string, date time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE readiness_assessments SET input_fingerprint = ''
		WHERE user_id = ? AND date = ?
	`), userID, DateKey(date))
	if err != nil {
		return fmt.Errorf("invalidating assessment: %w", err)
	}
	return nil
}

func upsertAssessment(ctx context.Context, tx *sqlx.Tx, a *ReadinessAssessment) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO readiness_assessments (`+assessmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET
			hrv_score = excluded.hrv_score,
			sleep_score = excluded.sleep_score,
			load_score = excluded.load_score,
			composite_score = excluded.composite_score,
			status = excluded.status,
			hrv_low_confidence = excluded.hrv_low_confidence,
			sleep_low_confidence = excluded.sleep_low_confidence,
			load_low_confidence = excluded.load_low_confidence,
			drop_severity = excluded.drop_severity,
			hrv_trend = excluded.hrv_trend,
			hrv_trend_low_confidence = excluded.hrv_trend_low_confidence,
			acwr_risk = excluded.acwr_risk,
			form_state = excluded.form_state,
			sleep_debt_hours = excluded.sleep_debt_hours,
			sleep_debt_severity = excluded.sleep_debt_severity,
			model_version = excluded.model_version,
			input_fingerprint = excluded.input_fingerprint,
			computed_at = excluded.computed_at
	`),
		a.UserID, DateKey(a.Date), a.HRVScore, a.SleepScore, a.LoadScore, a.CompositeScore,
		a.Status, boolToInt(a.HRVLowConfidence), boolToInt(a.SleepLowConfidence),
		boolToInt(a.LoadLowConfidence), a.DropSeverity, a.HRVTrend, boolToInt(a.HRVTrendLowConfidence),
		a.ACWRRisk, a.FormState, a.SleepDebtHours, a.SleepDebtSeverity, a.ModelVersion, a.InputFingerprint,
		a.ComputedAt.UTC().Format(recordedLayout),
	)
	if err != nil {
		return fmt.Errorf("upserting assessment: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type snapshotRow struct {
	UserID      string          `db:"user_id"`
	Date        string          `db:"date"`
	AcuteLoad   float64         `db:"acute_load"`
	ChronicLoad float64         `db:"chronic_load"`
	ACWR        sql.NullFloat64 `db:"acwr"`
	Fitness     float64         `db:"fitness"`
	Fatigue     float64         `db:"fatigue"`
	Form        float64         `db:"form"`
	Monotony    float64         `db:"monotony"`
	Strain      float64         `db:"strain"`
	RampRate    sql.NullFloat64 `db:"ramp_rate"`
	LoadDigest  string          `db:"load_digest"`
	ComputedAt  string          `db:"computed_at"`
}

const snapshotColumns = `user_id, date, acute_load, chronic_load, acwr, fitness, fatigue,
	form, monotony, strain, ramp_rate, load_digest, computed_at`

func (r snapshotRow) toModel() (*TrainingLoadSnapshot, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot date %q: %w", r.Date, err)
	}
	computed, err := time.Parse(recordedLayout, r.ComputedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing computed_at %q: %w", r.ComputedAt, err)
	}
	return &TrainingLoadSnapshot{
		UserID:      r.UserID,
		Date:        date,
		AcuteLoad:   r.AcuteLoad,
		ChronicLoad: r.ChronicLoad,
		ACWR:        nullToPtr(r.ACWR),
		Fitness:     r.Fitness,
		Fatigue:     r.Fatigue,
		Form:        r.Form,
		Monotony:    r.Monotony,
		Strain:      r.Strain,
		RampRate:    nullToPtr(r.RampRate),
		LoadDigest:  r.LoadDigest,
		ComputedAt:  computed,
	}, nil
}

// GetSnapshot returns the training load snapshot of one user-day.
func (s *Store) GetSnapshot(ctx context.Context, userID string, date time.Time) (*TrainingLoadSnapshot, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT `+snapshotColumns+`
		FROM training_load_snapshots
		WHERE user_id = ? AND date = ?
	`), userID, DateKey(date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return row.toModel()
}

// ListSnapshots returns a user's snapshots with dates in [from, to], oldest first.
func (s *Store) ListSnapshots(ctx context.Context, userID string, from, to time.Time) ([]TrainingLoadSnapshot, error) {
	var rows []snapshotRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT `+snapshotColumns+`
		FROM training_load_snapshots
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date
	`), userID, DateKey(from), DateKey(to))
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}

	out := make([]TrainingLoadSnapshot, 0, len(rows))
	for _, r := range rows {
		snap, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, nil
}

func upsertSnapshot(ctx context.Context, tx *sqlx.Tx, snap *TrainingLoadSnapshot) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO training_load_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET
			acute_load = excluded.acute_load,
			chronic_load = excluded.chronic_load,
			acwr = excluded.acwr,
			fitness = excluded.fitness,
			fatigue = excluded.fatigue,
			form = excluded.form,
			monotony = excluded.monotony,
			strain = excluded.strain,
			ramp_rate = excluded.ramp_rate,
			load_digest = excluded.load_digest,
			computed_at = excluded.computed_at
	`),
		snap.UserID, DateKey(snap.Date), snap.AcuteLoad, snap.ChronicLoad, ptrToNull(snap.ACWR),
		snap.Fitness, snap.Fatigue, snap.Form, snap.Monotony, snap.Strain,
		ptrToNull(snap.RampRate), snap.LoadDigest, snap.ComputedAt.UTC().Format(recordedLayout),
	)
	if err != nil {
		return fmt.Errorf("upserting snapshot: %w", err)
	}
	return nil
}

func nullToPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func ptrToNull(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

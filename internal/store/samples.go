package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
)

type sampleRow struct {
	UserID     string          `db:"user_id"`
	Kind       string          `db:"metric_kind"`
	Date       string          `db:"date"`
	Value      sql.NullFloat64 `db:"value"`
	RecordedAt string          `db:"recorded_at"`
}

func (r sampleRow) toModel() (MetricSample, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return MetricSample{}, fmt.Errorf("parsing sample date %q: %w", r.Date, err)
	}
	recorded, err := time.Parse(recordedLayout, r.RecordedAt)
	if err != nil {
		return MetricSample{}, fmt.Errorf("parsing recorded_at %q: %w", r.RecordedAt, err)
	}
	return MetricSample{
		UserID:     r.UserID,
		Date:       date,
		Kind:       MetricKind(r.Kind),
		Value:      nullToPtr(r.Value),
		RecordedAt: recorded,
	}, nil
}

// AppendSamples writes raw observations. A zero RecordedAt is stamped with the
// current time. Rewriting an identical (user, kind, date, recorded_at) key
// replaces its value.
func (s *Store) AppendSamples(ctx context.Context, samples []MetricSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.db.Rebind(`
		INSERT INTO metric_samples (user_id, metric_kind, date, value, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, metric_kind, date, recorded_at) DO UPDATE SET
			value = excluded.value
	`)

	now := time.Now().UTC()
	for _, m := range samples {
		recorded := m.RecordedAt
		if recorded.IsZero() {
			recorded = now
		}
		if _, err := tx.ExecContext(ctx, query,
			m.UserID, string(m.Kind), DateKey(m.Date), ptrToNull(m.Value), recorded.UTC().Format(recordedLayout),
		); err != nil {
			return fmt.Errorf("inserting %s sample for %s: %w", m.Kind, DateKey(m.Date), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing samples: %w", err)
	}
	return nil
}

// Samples returns the current samples of the given kinds for a user with
// dates in [from, to], ordered by date then kind. When a (kind, date) has
// several samples only the most recently recorded one is returned.
func (s *Store) Samples(ctx context.Context, userID string, kinds []MetricKind, from, to time.Time) ([]MetricSample, error) {
	if len(kinds) == 0 {
		return nil, nil
	}

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	query, args, err := sqlx.In(`
		SELECT user_id, metric_kind, date, value, recorded_at
		FROM metric_samples
		WHERE user_id = ? AND date >= ? AND date <= ? AND metric_kind IN (?)
		ORDER BY date, metric_kind, recorded_at DESC
	`, userID, DateKey(from), DateKey(to), names)
	if err != nil {
		return nil, fmt.Errorf("building samples query: %w", err)
	}

	var rows []sampleRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}

	out := make([]MetricSample, 0, len(rows))
	var lastKind, lastDate string
	for i, r := range rows {
		// rows are sorted newest-first within a (date, kind) group
		if i > 0 && r.Kind == lastKind && r.Date == lastDate {
			continue
		}
		lastKind, lastDate = r.Kind, r.Date
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	// byte order, independent of the database collation
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

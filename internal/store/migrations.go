package store

import "database/sql"

// migrate creates the engine's tables. The DDL is portable between SQLite
// and PostgreSQL; anything beyond create-if-missing is managed externally.
func migrate(db *sql.DB) error {
	migrations := []string{
		// Raw observations (append-only, written by the sync collaborator)
		`CREATE TABLE IF NOT EXISTS metric_samples (
			user_id TEXT NOT NULL,
			metric_kind TEXT NOT NULL,
			date TEXT NOT NULL,
			value DOUBLE PRECISION,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (user_id, metric_kind, date, recorded_at)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_metric_samples_user_date ON metric_samples(user_id, date)`,

		// Daily training load snapshots (one per user per day)
		`CREATE TABLE IF NOT EXISTS training_load_snapshots (
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			acute_load DOUBLE PRECISION NOT NULL,
			chronic_load DOUBLE PRECISION NOT NULL,
			acwr DOUBLE PRECISION,
			fitness DOUBLE PRECISION NOT NULL,
			fatigue DOUBLE PRECISION NOT NULL,
			form DOUBLE PRECISION NOT NULL,
			monotony DOUBLE PRECISION NOT NULL,
			strain DOUBLE PRECISION NOT NULL,
			ramp_rate DOUBLE PRECISION,
			load_digest TEXT NOT NULL,
			computed_at TEXT NOT NULL,
			PRIMARY KEY (user_id, date)
		)`,

		// Readiness assessments (one per user per day)
		`CREATE TABLE IF NOT EXISTS readiness_assessments (
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			hrv_score DOUBLE PRECISION NOT NULL,
			sleep_score DOUBLE PRECISION NOT NULL,
			load_score DOUBLE PRECISION NOT NULL,
			composite_score DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL,
			hrv_low_confidence INTEGER NOT NULL,
			sleep_low_confidence INTEGER NOT NULL,
			load_low_confidence INTEGER NOT NULL,
			drop_severity TEXT NOT NULL,
			hrv_trend TEXT NOT NULL,
			hrv_trend_low_confidence INTEGER NOT NULL,
			acwr_risk TEXT NOT NULL,
			form_state TEXT NOT NULL,
			sleep_debt_hours DOUBLE PRECISION NOT NULL,
			sleep_debt_severity TEXT NOT NULL,
			model_version TEXT NOT NULL,
			input_fingerprint TEXT NOT NULL,
			computed_at TEXT NOT NULL,
			PRIMARY KEY (user_id, date)
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// NewTestStore creates a Store over an already-open SQLite connection,
// typically sql.Open("sqlite", ":memory:"). It runs the migrations.
// This is only intended for use in tests.
func NewTestStore(sqlDB *sql.DB) (*Store, error) {
	sqlDB.SetMaxOpenConns(1)
	return newStore(sqlx.NewDb(sqlDB, "sqlite"), SQLiteBackend)
}

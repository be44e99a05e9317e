package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrSnapshotNotFound is returned when no training load snapshot exists for a user-day
var ErrSnapshotNotFound = errors.New("training load snapshot not found")

// ErrAssessmentNotFound is returned when no readiness assessment exists for a user-day
var ErrAssessmentNotFound = errors.New("readiness assessment not found")

// Backend selects the database engine behind the store.
type Backend string

const (
	SQLiteBackend   Backend = "sqlite"
	PostgresBackend Backend = "postgres"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by name.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store is the persistence collaborator: it reads raw samples and upserts
// derived snapshots and assessments.
type Store struct {
	db      *sqlx.DB
	backend Backend
}

// Open connects to the database for backend, creating the schema if needed.
// An empty SQLite dsn uses ~/.readiness/data.db.
func Open(backend Backend, dsn string) (*Store, error) {
	var db *sqlx.DB
	var err error

	switch backend {
	case SQLiteBackend:
		if dsn == "" {
			dsn, err = defaultDBPath()
			if err != nil {
				return nil, fmt.Errorf("getting db path: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
		db, err = sqlx.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		// A single connection avoids "database is locked" and keeps :memory: coherent
		db.SetMaxOpenConns(1)

	case PostgresBackend:
		db, err = sqlx.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres database: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported store backend %q: must be sqlite or postgres", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", backend, err)
	}

	return newStore(db, backend)
}

func newStore(db *sqlx.DB, backend Backend) (*Store, error) {
	if err := migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db, backend: backend}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// defaultDBPath returns the path to the SQLite database file
func defaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".readiness", "data.db"), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

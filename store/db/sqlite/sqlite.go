package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/openjuris/lexvec/internal/profile"
	"github.com/openjuris/lexvec/store"
)

// SQLite is the development and test driver. There is no pgvector
// equivalent, so embeddings are stored as JSON and ranked in process.
// For production corpora use PostgreSQL.

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("sqlite", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", profile.DSN)
	}

	// SQLite serializes writes; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{
		db:      db,
		profile: profile,
	}, nil
}

// Migrate creates the decision tables.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decision (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			source_id TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL CHECK (content <> ''),
			origin_state TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL DEFAULT 'other',
			precedent_applied INTEGER NOT NULL DEFAULT 0,
			elderly_party INTEGER NOT NULL DEFAULT 0,
			female_party INTEGER NOT NULL DEFAULT 0,
			preliminary_matters INTEGER NOT NULL DEFAULT 0,
			fee_waiver INTEGER NOT NULL DEFAULT 0,
			created_ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS decision_vector (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE REFERENCES decision (uid),
			content TEXT NOT NULL CHECK (content <> ''),
			theses TEXT NOT NULL DEFAULT '[]',
			embedding TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			created_ts INTEGER NOT NULL
		)`,
	}

	for i, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migration statement %d failed", i)
		}
	}
	return nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

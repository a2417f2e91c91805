package postgres

import (
	"database/sql"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/openjuris/lexvec/internal/profile"
	"github.com/openjuris/lexvec/store"
)

// PostgreSQL is the production driver. Vector search requires the pgvector
// extension; the similarity operator and the index are both cosine, fixed
// at migration time.

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Single-writer batch job plus a small query server; a small pool is enough.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{
		db:      db,
		profile: profile,
	}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

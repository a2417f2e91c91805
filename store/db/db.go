package db

import (
	"github.com/pkg/errors"

	"github.com/openjuris/lexvec/internal/profile"
	"github.com/openjuris/lexvec/store"
	"github.com/openjuris/lexvec/store/db/postgres"
	"github.com/openjuris/lexvec/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// PostgreSQL is the production driver: vector search runs on pgvector with
// an index-backed distance operator. SQLite is for development and testing
// only; it stores vectors as JSON and ranks them in process.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}

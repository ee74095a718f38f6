package db

import (
	"github.com/pkg/errors"

	"github.com/usetaskchat/taskchat/internal/profile"
	"github.com/usetaskchat/taskchat/store"
	"github.com/usetaskchat/taskchat/store/db/postgres"
	"github.com/usetaskchat/taskchat/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// SQLite is the default for single-binary deployments and tests; PostgreSQL
// is for multi-instance deployments where the database serializes concurrent
// appends to the same conversation.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}

package postgres

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	// Necessary to load the postgres driver used by migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationsTable is the table used to keep track of the applied migrations.
const MigrationsTable = "eventually_snapshot_schema_migrations"

//go:embed migrations/*.sql
var fs embed.FS

// RunMigrations runs the latest migrations for the postgres integration,
// creating the "event_streams" and "events" tables.
//
// Make sure to run these in the entrypoint of your application, ideally
// before building an EventStore instance.
func RunMigrations(dsn string) (err error) {
	wrapErr := func(err error, msg string) error {
		return fmt.Errorf("postgres.RunMigrations: %s, %w", msg, err)
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return wrapErr(err, "invalid dsn format")
	}

	// A dedicated migrations table avoids clashing with the same tool
	// running on the same PostgreSQL database for other purposes.
	q := u.Query()
	q.Set("x-migrations-table", MigrationsTable)
	u.RawQuery = q.Encode()

	d, err := iofs.New(fs, "migrations")
	if err != nil {
		return wrapErr(err, "failed to create new iofs driver for reading migrations")
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, u.String())
	if err != nil {
		return wrapErr(err, "failed to create new migrate source for running db migrations")
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); err == nil && (sourceErr != nil || dbErr != nil) {
			err = wrapErr(errors.Join(sourceErr, dbErr), "failed to close migrate instance")
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return wrapErr(err, "failed to execute migrations")
	}

	return nil
}

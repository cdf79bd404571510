package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // database/sql driver used by migrate
	"github.com/sirupsen/logrus"
)

//go:embed migrations/events/*.sql migrations/appointments/*.sql
var migrationsFS embed.FS

// Migration sets, one per service database.
const (
	EventsMigrations       = "events"
	AppointmentsMigrations = "appointments"
)

// RunMigrations applies all pending migrations of the given set.
func RunMigrations(dsn, set string, logger logrus.FieldLogger) error {
	if set != EventsMigrations && set != AppointmentsMigrations {
		return fmt.Errorf("unknown migration set %q", set)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer db.Close()

	sourceDriver, err := iofs.New(migrationsFS, path.Join("migrations", set))
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations_" + set,
	})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.WithFields(logrus.Fields{
		"set":     set,
		"version": version,
		"dirty":   dirty,
	}).Info("migrations applied")

	return nil
}

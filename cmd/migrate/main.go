// Command migrate manages the Postgres schema out-of-band. The server applies
// pending migrations itself at startup; this tool covers what it cannot:
// rollbacks, version checks, and repairing a dirty state.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/resonate/internal/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

func main() {
	var (
		command = flag.String("command", "up", "up, down, version or force")
		steps   = flag.Int("steps", 0, "number of steps for up/down; 0 means all")
		version = flag.Uint("version", 0, "target version for force")
		dir     = flag.String("dir", "./migrations", "migrations directory")
	)
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.New()
	if err != nil {
		fatal("config error", "err", err)
	}
	if cfg.DBAdapter != "postgres" {
		fatal("migrations require the postgres adapter", "adapter", cfg.DBAdapter)
	}
	dsn, err := cfg.BuildPostgresDSN()
	if err != nil {
		fatal("postgres config error", "err", err)
	}

	m, cleanup, err := newMigrator(*dir, dsn)
	if err != nil {
		fatal("migrator setup failed", "err", err)
	}
	defer cleanup()

	switch *command {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
		if err != nil && err != migrate.ErrNoChange {
			fatal("migration up failed", "err", err)
		}
		slog.Info("migrations applied", "dir", *dir)
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
		if err != nil && err != migrate.ErrNoChange {
			fatal("migration down failed", "err", err)
		}
		slog.Info("migrations rolled back", "dir", *dir)
	case "version":
		v, dirty, verr := m.Version()
		if verr == migrate.ErrNilVersion {
			slog.Info("no migrations applied yet")
			return
		}
		if verr != nil {
			fatal("version lookup failed", "err", verr)
		}
		if dirty {
			fatal("database is in a dirty state; repair with -command force", "version", v)
		}
		slog.Info("current migration version", "version", v)
	case "force":
		if *version == 0 {
			fatal("force requires -version")
		}
		if err := m.Force(int(*version)); err != nil {
			fatal("force failed", "err", err)
		}
		slog.Info("forced migration version", "version", *version)
	default:
		fatal("unknown command", "command", *command)
	}
}

// newMigrator opens the database, verifies it is reachable, and returns a
// migrate instance over the file source plus a cleanup func.
func newMigrator(dir, dsn string) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("creating migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, func() { db.Close() }, nil
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

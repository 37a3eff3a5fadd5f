package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"lms-media/internal/config"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

func main() {
	var (
		databaseURL string
		source      string
		up          bool
		down        bool
		steps       int
		version     bool
	)

	flag.StringVar(&databaseURL, "database", "", "Database connection URL, defaults to the DB_* environment")
	flag.StringVar(&source, "source", "db/migrations", "Path to migrations directory")
	flag.BoolVar(&up, "up", false, "Run up migrations")
	flag.BoolVar(&down, "down", false, "Run down migrations")
	flag.IntVar(&steps, "steps", 0, "Apply only this many migrations in the chosen direction")
	flag.BoolVar(&version, "version", false, "Print the current schema version")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := run(logger, databaseURL, source, up, down, steps, version); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, databaseURL, source string, up, down bool, steps int, version bool) error {
	if up == down && !version {
		return errors.New("exactly one of -up, -down or -version is required")
	}

	if databaseURL == "" {
		cfg, err := config.LoadDatabase()
		if err != nil {
			return fmt.Errorf("failed to load database config: %w", err)
		}
		databaseURL = cfg.DSN()
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if version {
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migration applied")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("schema version", "version", v, "dirty", dirty)
		return nil
	}

	direction := "up"
	switch {
	case up && steps > 0:
		err = m.Steps(steps)
	case up:
		err = m.Up()
	case steps > 0:
		direction = "down"
		err = m.Steps(-steps)
	default:
		direction = "down"
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to apply", "direction", direction)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run %s migrations: %w", direction, err)
	}
	logger.Info("migrations completed", "direction", direction)
	return nil
}

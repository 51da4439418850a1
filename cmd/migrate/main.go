package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/wolfman30/therapymatch/cmd/mainconfig"
	appconfig "github.com/wolfman30/therapymatch/internal/config"
	appmigrations "github.com/wolfman30/therapymatch/migrations"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

const usage = "usage: migrate [up | down [n] | force <version> | version]"

// migrator is the subset of *migrate.Migrate the commands use.
type migrator interface {
	Up() error
	Steps(n int) error
	Force(version int) error
	Version() (version uint, dirty bool, err error)
}

func main() {
	mainconfig.LoadEnv()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("migrate")

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	m, err := newMigrator(db)
	if err != nil {
		logger.Error("create migrator", "error", err)
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	if err := run(os.Args[1:], m, os.Stdout); err != nil {
		logger.Error("migrate failed", "args", os.Args[1:], "error", err)
		os.Exit(1)
	}
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("db driver: %w", err)
	}
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("source driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
}

// run executes one command and prints the resulting schema version.
func run(args []string, m migrator, out io.Writer) error {
	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
	case "force":
		if len(args) < 2 {
			return errors.New(usage)
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
	case "version":
	default:
		return errors.New(usage)
	}
	return printVersion(m, out)
}

func printVersion(m migrator, out io.Writer) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		_, _ = fmt.Fprintln(out, "schema version: none")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if dirty {
		_, _ = fmt.Fprintf(out, "schema version: %d (dirty)\n", version)
		return nil
	}
	_, _ = fmt.Fprintf(out, "schema version: %d\n", version)
	return nil
}

// Package migrations wires golang-migrate execution for the riftpilot account store.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// migrations loader
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	_ "modernc.org/sqlite" // sqlite database/sql driver

	dbmigrations "github.com/coachpo/riftpilot/db/migrations"
	"github.com/coachpo/riftpilot/internal/infra/telemetry"
)

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite"
	DriverPGX    = "pgx"
)

var (
	errNotDirectory = errors.New("migrations path must be a directory")

	migrationsCounter   metric.Int64Counter
	migrationsCounterMu sync.Once
)

// Options select the database and, optionally, an on-disk migrations directory that replaces the
// embedded set.
type Options struct {
	Driver string
	DSN    string
	Dir    string
}

// Apply brings the database up to the latest migration. A nil logger disables informational
// logging.
func Apply(ctx context.Context, opts Options, logger *log.Logger) error {
	driverName := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driverName != DriverSQLite && driverName != DriverPGX {
		return fmt.Errorf("unsupported migrations driver %q", opts.Driver)
	}
	if strings.TrimSpace(opts.Dir) != "" {
		if _, err := resolveDir(opts.Dir); err != nil {
			return err
		}
	}

	db, err := sql.Open(driverName, opts.DSN)
	if err != nil {
		return fmt.Errorf("open migrations connection: %w", err)
	}
	// The migrate database driver closes db when m.Close runs; this covers the early returns.
	closeDB := true
	defer func() {
		if !closeDB {
			return
		}
		if cerr := db.Close(); cerr != nil && logger != nil {
			logger.Printf("database migrations close: %v", cerr)
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping migrations database: %w", err)
	}

	var (
		instance     database.Driver
		instanceName string
	)
	switch driverName {
	case DriverPGX:
		var driverConfig pgxv5.Config
		instance, err = pgxv5.WithInstance(db, &driverConfig)
		instanceName = "pgx5"
	default:
		var driverConfig sqlite.Config
		instance, err = sqlite.WithInstance(db, &driverConfig)
		instanceName = "sqlite"
	}
	if err != nil {
		return fmt.Errorf("initialise %s driver: %w", instanceName, err)
	}

	m, label, err := newMigrate(opts.Dir, instanceName, instance)
	if err != nil {
		return err
	}
	closeDB = false
	defer func() {
		sourceErr, dbErr := m.Close()
		if logger == nil {
			return
		}
		if sourceErr != nil {
			logger.Printf("database migrations source close: %v", sourceErr)
		}
		if dbErr != nil {
			logger.Printf("database migrations db close: %v", dbErr)
		}
	}()

	if logger != nil {
		logger.Printf("running database migrations: driver=%s source=%s", driverName, label)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			recordMigrationMetric(ctx, "noop", driverName)
			if logger != nil {
				logger.Printf("database migrations up-to-date")
			}
			return nil
		}
		recordMigrationMetric(ctx, "failed", driverName)
		return fmt.Errorf("apply migrations: %w", err)
	}

	if logger != nil {
		logger.Printf("database migrations applied successfully")
	}
	recordMigrationMetric(ctx, "applied", driverName)
	return nil
}

func newMigrate(dir, instanceName string, instance database.Driver) (*migrate.Migrate, string, error) {
	if strings.TrimSpace(dir) != "" {
		resolvedDir, err := resolveDir(dir)
		if err != nil {
			return nil, "", err
		}
		m, err := migrate.NewWithDatabaseInstance(fileURL(resolvedDir), instanceName, instance)
		if err != nil {
			return nil, "", fmt.Errorf("initialise migrate instance: %w", err)
		}
		return m, resolvedDir, nil
	}

	source, err := iofs.New(dbmigrations.Files, ".")
	if err != nil {
		return nil, "", fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, instanceName, instance)
	if err != nil {
		return nil, "", fmt.Errorf("initialise migrate instance: %w", err)
	}
	return m, "embedded", nil
}

func resolveDir(dir string) (string, error) {
	clean := strings.TrimSpace(dir)
	if clean == "" {
		return "", fmt.Errorf("migrations path required")
	}

	abs, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("resolve migrations path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("migrations directory: %w", err)
		}
		return "", fmt.Errorf("stat migrations directory: %w", err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("migrations directory: %w", errNotDirectory)
	}

	return abs, nil
}

func fileURL(path string) string {
	slashed := filepath.ToSlash(path)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := new(url.URL)
	u.Scheme = "file"
	u.Path = slashed
	return u.String()
}

func recordMigrationMetric(ctx context.Context, result, driver string) {
	migrationsCounterMu.Do(func() {
		meter := otel.Meter("persistence.migrations")
		counter, err := meter.Int64Counter("riftpilot_db_migrations_total",
			metric.WithDescription("Total migrations executed via golang-migrate"),
			metric.WithUnit("{migration}"))
		if err == nil {
			migrationsCounter = counter
		}
	})
	if migrationsCounter == nil {
		return
	}
	attrs := []attribute.KeyValue{
		telemetry.AttrEnvironment.String(telemetry.Environment()),
		telemetry.AttrResult.String(result),
		attribute.String("db_driver", driver),
	}
	migrationsCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

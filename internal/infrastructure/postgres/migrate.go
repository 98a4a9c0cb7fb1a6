package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratePG "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/fastygo/taskflow/internal/config"
)

// RunMigrations brings the users and tasks schema up to date. A dirty schema
// is reported, never forced.
func RunMigrations(cfg config.MigrationsConfig, databaseURL string, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("migrations open: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("migrations ping: %w", err)
	}

	driver, err := migratePG.WithInstance(sqlDB, &migratePG.Config{})
	if err != nil {
		return fmt.Errorf("migrations driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(cfg.Path), "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrations source %s: %w", cfg.Path, err)
	}
	defer m.Close()
	m.Log = migrateLogger{log: logger.Named("migrate").Sugar()}

	before, _, _ := m.Version()
	err = m.Up()
	var dirty migrate.ErrDirty
	switch {
	case errors.As(err, &dirty):
		return fmt.Errorf("schema version %d is dirty, fix it by hand before restarting: %w", dirty.Version, err)
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("database schema up to date", zap.Uint("version", before))
		return nil
	case err != nil:
		return err
	}

	after, _, _ := m.Version()
	logger.Info("database migrations applied", zap.Uint("from", before), zap.Uint("to", after))
	return nil
}

// migrateLogger routes golang-migrate output through zap.
type migrateLogger struct {
	log *zap.SugaredLogger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Infof(strings.TrimSpace(format), v...)
}

func (l migrateLogger) Verbose() bool { return false }

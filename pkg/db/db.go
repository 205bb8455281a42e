package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/civic_issues/internal/config"
	"github.com/civic_issues/internal/models"
	"github.com/civic_issues/pkg/logger"
)

// sqliteParams enables foreign keys (ON DELETE CASCADE) and waits on a locked
// database. Transactions take the write lock at BEGIN, so concurrent
// read-then-write transactions queue under the busy timeout instead of
// failing on the lock upgrade.
const sqliteParams = "_foreign_keys=1&_busy_timeout=5000&_txlock=immediate"

// Open connects to the database selected by cfg.DBDriver.
// The SQLite database directory is created when missing.
func Open(cfg config.Configuration, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite", "":
		dsn, err := sqliteDSN(cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.DBDriver, err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Connected to database", zap.String("driver", gormDB.Dialector.Name()))
	return gormDB, nil
}

func sqliteDSN(path string, log *zap.Logger) (string, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			log.Info("Creating database directory", zap.String("dir", dir))
			if err := os.MkdirAll(dir, 0755); err != nil {
				return "", fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqliteParams, nil
}

// Migrate creates or updates the issue tables.
func Migrate(gormDB *gorm.DB) error {
	if err := gormDB.AutoMigrate(
		&models.Issue{},
		&models.IssueUpdate{},
		&models.IssueImage{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate database tables: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func Close(gormDB *gorm.DB) error {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

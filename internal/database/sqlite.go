package database

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Storage failures are reported by the services through zap, so GORM itself stays quiet.
var silentGormLogger = gormlogger.Default.LogMode(gormlogger.Silent)

// Options controls the store lifecycle performed when the database is opened.
type Options struct {
	// ResetOnStart drops every table and recreates the schema from scratch.
	ResetOnStart bool
	// SeedMenu inserts the default menu once per database.
	SeedMenu bool
}

// OpenSQLite establishes a SQLite connection and prepares the schema.
func OpenSQLite(path string, options Options, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         silentGormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if options.ResetOnStart {
		if err := dropAll(db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		logger.Warn("database schema dropped", zap.String("path", path))
	}

	if err := db.AutoMigrate(&drinks.Drink{}, &migrationRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if err := applyMigrations(db, migrationsFor(options), logger); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("database initialized",
		zap.String("path", path),
		zap.Bool("reset_on_start", options.ResetOnStart),
		zap.Bool("seed_menu", options.SeedMenu))

	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dropAll(db *gorm.DB) error {
	return db.Migrator().DropTable(&drinks.Drink{}, &migrationRecord{})
}

package db

import (
	"fmt"
	"time"

	"github.com/georiviere/georiviere-api/internal/config"
	"github.com/georiviere/georiviere-api/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var DB *gorm.DB

// Connect opens the database selected by cfg and stores it in DB.
// On Postgres every table is created inside cfg.Schema and PostGIS is enabled.
func Connect(cfg config.Config) error {
	log := logger.Module("db")

	switch cfg.Driver {
	case config.DriverSQLite:
		if err := ConnectSQLite(cfg.SQLitePath); err != nil {
			return err
		}
		log.Info("Connected to database", "driver", cfg.Driver, "path", cfg.SQLitePath)
		return nil
	case config.DriverPostgres:
	default:
		return fmt.Errorf("%w: %s", config.ErrUnknownDriver, cfg.Driver)
	}

	d, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         logger.Gorm(cfg.LogLevel),
		NamingStrategy: schema.NamingStrategy{TablePrefix: cfg.Schema + "."},
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := d.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := EnsureSchema(d, cfg.Schema); err != nil {
		return fmt.Errorf("ensure schema %s: %w", cfg.Schema, err)
	}
	if err := d.Exec(`CREATE EXTENSION IF NOT EXISTS postgis`).Error; err != nil {
		return fmt.Errorf("enable postgis: %w", err)
	}

	DB = d
	log.Info("Connected to database", "driver", cfg.Driver, "schema", cfg.Schema)
	return nil
}

// ConnectSQLite opens a SQLite database (file path or "file:...?mode=memory" DSN)
// with foreign keys enforced and stores it in DB.
func ConnectSQLite(dsn string) error {
	d, err := gorm.Open(sqlite.Open(withForeignKeys(dsn)), &gorm.Config{
		Logger: logger.Gorm("error"),
	})
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dsn, err)
	}

	// A single connection keeps in-memory databases alive and serializes writers.
	sqlDB, err := d.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	DB = d
	return nil
}

// IsPostgres reports whether tx talks to Postgres.
func IsPostgres(tx *gorm.DB) bool {
	return tx != nil && tx.Dialector.Name() == "postgres"
}

func withForeignKeys(dsn string) string {
	sep := "?"
	for i := 0; i < len(dsn); i++ {
		if dsn[i] == '?' {
			sep = "&"
			break
		}
	}
	return dsn + sep + "_foreign_keys=on"
}

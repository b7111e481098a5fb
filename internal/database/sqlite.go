package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConnectSQLite opens a SQLite database, used for local runs against a file or in-memory DSN.
// SQLite serialises writers, so the pool is capped at one open connection.
func ConnectSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn must not be empty")
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := applyPool(db, Pool{MaxOpenConns: 1}); err != nil {
		return nil, err
	}

	return db, nil
}

// Connect opens the relational store selected by driver.
func Connect(driver, dsn string, pool Pool) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return ConnectPostgres(dsn, pool)
	case "sqlite":
		return ConnectSQLite(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

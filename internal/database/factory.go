package database

import (
	"fmt"
	"os"
	"path/filepath"

	"fidx/internal/config"
	"fidx/internal/fidx"
)

// DBFileName is the index file created under data_dir.
const DBFileName = "fidx.db"

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// A memory database is migrated immediately since nothing else could have done so.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock fidx.Clock) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, DBFileName), clock)
	case "memory":
		db, err := NewSQLiteDatabase(":memory:", clock)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateUp(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

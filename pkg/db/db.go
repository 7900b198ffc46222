package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// WAL lets the HTTP readers run while a stake is being written
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	// Single writer avoids SQLITE_BUSY under concurrent sessions
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// PruneStakes removes stake log entries older than the specified duration.
// It returns the number of rows removed.
func (d *DB) PruneStakes(ctx context.Context, olderThan time.Duration) (int64, error) {
	deadline := time.Now().Add(-olderThan).UTC()
	res, err := d.ExecContext(ctx, "DELETE FROM stakes WHERE created_at < ?", deadline)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS persistent_state (
			key TEXT PRIMARY KEY,
			value TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS stakes (
			id TEXT PRIMARY KEY,
			session_id TEXT,
			target_id TEXT,
			target_lat REAL,
			target_lon REAL,
			lat REAL,
			lon REAL,
			residual_m REAL,
			bearing_deg REAL,
			ring TEXT,
			h3_cell TEXT,
			created_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_stakes_h3 ON stakes(h3_cell);`,
		`CREATE INDEX IF NOT EXISTS idx_stakes_created ON stakes(created_at);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}

	// Migration: early databases had no ring column
	var colCount int
	err := d.QueryRow("SELECT count(*) FROM pragma_table_info('stakes') WHERE name='ring'").Scan(&colCount)
	if err == nil && colCount == 0 {
		if _, err := d.Exec("ALTER TABLE stakes ADD COLUMN ring TEXT"); err != nil {
			return fmt.Errorf("failed to add ring column: %w", err)
		}
	}

	return nil
}

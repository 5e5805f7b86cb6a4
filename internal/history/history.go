// Package history persists usage snapshots for trend display.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Register the pure-Go sqlite driver.
	_ "modernc.org/sqlite"

	"github.com/jrdx0/claude-applet/internal/claude"
)

// Snapshots older than this are dropped on open. The trend views only read
// the most recent readings, so nothing consumes data this old.
const defaultRetention = 30 * 24 * time.Hour

// DB wraps the SQL connection with applet-specific queries.
type DB struct {
	*sql.DB
	path string
}

// New opens the history database, creating the schema if needed.
func New(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect to history database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path}

	if err := db.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure history database: %w", err)
	}
	if err := db.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	if err := db.Prune(defaultRetention); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prune history: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (db *DB) createSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS usage_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fetched_at INTEGER NOT NULL,
		five_hour_pct REAL NOT NULL,
		seven_day_pct REAL NOT NULL,
		extra_pct REAL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_usage_snapshots_fetched ON usage_snapshots(fetched_at);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

// Record stores one usage snapshot. Timestamps are unix seconds so the
// schema stays independent of driver time formatting.
func (db *DB) Record(data claude.UsageData) error {
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO usage_snapshots (fetched_at, five_hour_pct, seven_day_pct, extra_pct)
		 VALUES (?, ?, ?, ?)`,
		data.FetchedAt.Unix(),
		data.FiveHour.Utilization,
		data.SevenDay.Utilization,
		data.Extra.Percent(),
	)
	if err != nil {
		return fmt.Errorf("record usage snapshot: %w", err)
	}
	return nil
}

// RecentSessionSeries returns the newest five-hour utilization readings in
// chronological order, capped at limit. The popup sparkline consumes it.
func (db *DB) RecentSessionSeries(limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 48
	}

	rows, err := db.QueryContext(context.Background(),
		`SELECT five_hour_pct FROM usage_snapshots ORDER BY fetched_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query usage series: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reversed []float64
	for rows.Next() {
		var pct float64
		if err := rows.Scan(&pct); err != nil {
			return nil, fmt.Errorf("scan usage series: %w", err)
		}
		reversed = append(reversed, pct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage series: %w", err)
	}

	series := make([]float64, len(reversed))
	for i, v := range reversed {
		series[len(series)-1-i] = v
	}
	return series, nil
}

// Prune deletes snapshots older than the retention window.
func (db *DB) Prune(retention time.Duration) error {
	cutoff := time.Now().Add(-retention).Unix()
	_, err := db.ExecContext(context.Background(),
		`DELETE FROM usage_snapshots WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("prune usage snapshots: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	_, _ = db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return db.DB.Close()
}

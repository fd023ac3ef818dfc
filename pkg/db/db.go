package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and creates the schema (idempotent).
func Init(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// WAL for concurrent readers alongside the poller writers
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Single connection avoids SQLITE_BUSY during concurrent writes
	conn.SetMaxOpenConns(1)

	d := &DB{conn}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS free_parking_spots (
			spot_id           INTEGER PRIMARY KEY,
			lat               REAL,
			lng               REAL,
			street_name       TEXT,
			neighborhood      TEXT,
			time_limit        TEXT,
			hours             TEXT,
			days              TEXT,
			permit_zone       TEXT,
			sweeping_schedule TEXT,
			curb_color        TEXT,
			confidence_score  REAL,
			data_sources      TEXT,
			zone_id           TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS parking_meters (
			post_id  TEXT PRIMARY KEY,
			lat      REAL,
			lng      REAL,
			corridor TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS meter_occupancy_hourly (
			meter_post_id  TEXT NOT NULL,
			day_of_week    INTEGER NOT NULL,
			hour           INTEGER NOT NULL,
			month          INTEGER NOT NULL DEFAULT 0,
			occupancy_rate REAL NOT NULL,
			avg_duration   REAL,
			turnover_rate  REAL,
			sample_count   INTEGER NOT NULL,
			PRIMARY KEY (meter_post_id, day_of_week, hour, month)
		);`,
		`CREATE TABLE IF NOT EXISTS zone_classifications (
			spot_id       INTEGER PRIMARY KEY,
			zone_type     TEXT NOT NULL,
			confidence    REAL,
			classified_by TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS realtime_signals (
			signal_id    INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_type  TEXT NOT NULL,
			lat          REAL,
			lng          REAL,
			neighborhood TEXT,
			value_json   TEXT NOT NULL,
			fetched_at   TEXT NOT NULL,
			expires_at   TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rt_type_expires
			ON realtime_signals(signal_type, expires_at);`,
		`CREATE TABLE IF NOT EXISTS garages (
			garage_id    TEXT PRIMARY KEY,
			name         TEXT,
			lat          REAL,
			lng          REAL,
			total_spaces INTEGER,
			hourly_rate  REAL,
			source       TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS garage_availability (
			garage_id        TEXT NOT NULL,
			timestamp        TEXT NOT NULL,
			available_spaces INTEGER,
			PRIMARY KEY (garage_id, timestamp)
		);`,
		`CREATE TABLE IF NOT EXISTS crowd_reports (
			report_id   INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT,
			spot_id     INTEGER,
			lat         REAL,
			lng         REAL,
			report_type TEXT,
			reported_at TEXT NOT NULL,
			confidence  REAL
		);`,
		`CREATE TABLE IF NOT EXISTS street_sweeping (
			corridor      TEXT,
			side          TEXT,
			weekday       TEXT,
			week_of_month TEXT,
			start_time    TEXT,
			end_time      TEXT,
			holidays      TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS mapillary_sign_features (
			object_value TEXT,
			lat          REAL,
			lng          REAL
		);`,
		`CREATE TABLE IF NOT EXISTS parking_regulations (
			regulation TEXT,
			time_limit TEXT,
			lat        REAL,
			lng        REAL
		);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}
	return nil
}

// InsertOrIgnore inserts a row, skipping duplicates on the table's unique
// key. Returns true if a row was inserted.
func (d *DB) InsertOrIgnore(table string, cols []string, vals ...any) (bool, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders)
	res, err := d.Exec(q, vals...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertReturningID inserts a row and returns the autoincrement id.
func (d *DB) InsertReturningID(table string, cols []string, vals ...any) (int64, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders)
	res, err := d.Exec(q, vals...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

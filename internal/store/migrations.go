package store

import (
	"database/sql"
	"fmt"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Decoded observations",
		SQL: `
CREATE TABLE IF NOT EXISTS decoded_stations (
    station_id TEXT PRIMARY KEY,
    row_count INTEGER NOT NULL,
    decoded_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
    station_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    ymd INTEGER NOT NULL,
    element TEXT NOT NULL,
    value INTEGER NOT NULL,
    m_flag TEXT,
    q_flag TEXT,
    s_flag TEXT,
    obs_time TEXT,
    PRIMARY KEY (station_id, seq)
);
`,
	},
	{
		Version:     2,
		Description: "Materialized station info",
		SQL: `
CREATE TABLE IF NOT EXISTS station_info_sets (
    element TEXT PRIMARY KEY,
    row_count INTEGER NOT NULL,
    built_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS station_info (
    element TEXT NOT NULL,
    seq INTEGER NOT NULL,
    station_id TEXT NOT NULL,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    elev REAL,
    state TEXT,
    station_name TEXT,
    gsn_flag TEXT,
    hcn_crn TEXT,
    wmo_id TEXT,
    first_year INTEGER,
    last_year INTEGER,
    PRIMARY KEY (element, seq)
);

CREATE INDEX IF NOT EXISTS idx_station_info_id ON station_info(element, station_id);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		s.logger.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	var versions []int
	if err := s.db.Select(&versions, "SELECT version FROM schema_migrations"); err != nil {
		return nil, err
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.Get(&version, "SELECT MAX(version) FROM schema_migrations")
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

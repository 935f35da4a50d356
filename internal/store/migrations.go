package store

import (
	"database/sql"
	"fmt"
	"time"
)

// schemaVersion is bumped whenever the bootstrap DDL changes shape.
const schemaVersion = "1"

// migrate creates all tables if they don't exist and seeds metadata.
func (s *SQLiteStore) migrate() error {
	bootstrapDone, err := s.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}

	if !bootstrapDone {
		if err := s.runBootstrapDDL(); err != nil {
			return err
		}
	}

	// Seed metadata outside the bootstrap transaction; the meta table exists now.
	if err := s.seedMeta(); err != nil {
		return fmt.Errorf("seeding metadata: %w", err)
	}

	if !bootstrapDone {
		if err := s.setMetaFlag("schema_bootstrap_complete"); err != nil {
			return fmt.Errorf("marking bootstrap complete: %w", err)
		}
	}

	if err := s.migrateSearchIndexes(); err != nil {
		return fmt.Errorf("migrating search indexes: %w", err)
	}

	return nil
}

func (s *SQLiteStore) runBootstrapDDL() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			input_hash      TEXT NOT NULL,
			source          TEXT NOT NULL DEFAULT '',
			lexicon_version TEXT NOT NULL DEFAULT '',
			blocks          INTEGER NOT NULL DEFAULT 0,
			records         INTEGER NOT NULL DEFAULT 0,
			degraded        INTEGER NOT NULL DEFAULT 0,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_runs_input_hash ON runs(input_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,

		// One row per individual record; payload holds the full record as JSON.
		`CREATE TABLE IF NOT EXISTS records (
			run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position      INTEGER NOT NULL,
			block_seq     INTEGER NOT NULL,
			individual_id INTEGER NOT NULL,
			given_name    TEXT NOT NULL DEFAULT '',
			surname       TEXT NOT NULL DEFAULT '',
			relation      TEXT NOT NULL DEFAULT '',
			district      TEXT NOT NULL DEFAULT '',
			city_village  TEXT NOT NULL DEFAULT '',
			payload       TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		)`,

		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration %q: %w", truncate(stmt, 80), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}

	return nil
}

func (s *SQLiteStore) isMetaFlagEnabled(key string) (bool, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return value == "true", nil
}

func (s *SQLiteStore) setMetaFlag(key string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, 'true')", key)
	return err
}

func (s *SQLiteStore) getMetaValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// seedMeta initializes the meta table with defaults if not already set.
func (s *SQLiteStore) seedMeta() error {
	defaults := map[string]string{
		"schema_version": schemaVersion,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}

	for k, v := range defaults {
		_, err := s.db.Exec(
			"INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", k, v,
		)
		if err != nil {
			return fmt.Errorf("seeding meta key %q: %w", k, err)
		}
	}
	return nil
}

// migrateSearchIndexes adds the indexes SearchRecords filters on.
func (s *SQLiteStore) migrateSearchIndexes() error {
	done, err := s.isMetaFlagEnabled("search_indexes_v1")
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_records_given_name ON records(given_name)`,
		`CREATE INDEX IF NOT EXISTS idx_records_surname ON records(surname)`,
		`CREATE INDEX IF NOT EXISTS idx_records_district ON records(district)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", truncate(stmt, 80), err)
		}
	}
	return s.setMetaFlag("search_indexes_v1")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

// Versioned migration tracking, preserved from the teacher for the day
// this schema needs an incremental change after its first release; the
// full schema currently lives in schema.go's initial CREATE TABLE set.
package store

import "fmt"

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	applied_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

type migration struct {
	version int
	name    string
	sql     string
}

// migrations is empty pre-release; add entries here starting at version 1
// once the schema in schema.go can no longer change freely.
var migrations []migration

func (db *DB) runMigrations() error {
	if _, err := db.conn.Exec(schemaMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := db.conn.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("query schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if _, err := db.conn.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := db.conn.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

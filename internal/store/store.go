// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

// Package store wraps the embedded DuckDB database shared by the ingest
// API and the bridge: devices, media, users, tags, the hash-chained audit
// ledger, indexing jobs, the five embedding tables, face detections and
// clusters, and the search query log all live in one file (spec.md §3).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/logging"
)

// DB wraps the DuckDB connection pool and tracks which optional
// extensions loaded successfully.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	vssAvailable       bool
	fuzzyAvailable     bool

	// rowLocks serialises concurrent writers that touch the same logical
	// row (e.g. a media id) without holding a database-wide lock.
	rowLocks sync.Map
}

// New opens the DuckDB file at cfg.Path, installs extensions, and
// creates the schema if it doesn't exist yet.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dbDir, err)
		}
	}

	if err := preloadExtensions(); err != nil {
		logging.Warn().Err(err).Msg("failed to preload extensions, WAL replay may fail if database has pending changes")
	}

	preserveOrder := "true"
	if !cfg.PreserveInsertionOrder {
		preserveOrder = "false"
	}

	connStr := fmt.Sprintf(
		"%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory, preserveOrder,
	)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{
		conn:           conn,
		cfg:            cfg,
		vssAvailable:   true,
		fuzzyAvailable: true,
	}

	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.initialize(cfg); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return db, nil
}

// Conn exposes the underlying *sql.DB for packages (audit, media, queue)
// that build their own queries directly against it.
func (db *DB) Conn() *sql.DB { return db.conn }

// IsVSSAvailable reports whether the vector-similarity-search extension
// loaded, which gates whether HNSW indexes back the embedding tables.
func (db *DB) IsVSSAvailable() bool { return db.vssAvailable }

// RowLock returns a mutex scoped to key (e.g. a media UUID) so callers
// can serialise multi-statement read-modify-write sequences (the
// pending_fix inspection path, §9 Open Questions) without a table lock.
func (db *DB) RowLock(key string) *sync.Mutex {
	v, _ := db.rowLocks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (db *DB) initialize(cfg *config.DatabaseConfig) error {
	if err := db.installExtensions(); err != nil {
		return err
	}
	if err := db.createSchema(cfg); err != nil {
		return err
	}
	if err := db.runMigrations(); err != nil {
		return err
	}

	checkpointCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Checkpoint(checkpointCtx); err != nil {
		logging.Warn().Err(err).Msg("failed to checkpoint after schema initialization")
	}
	return nil
}

func preloadExtensions() error {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return nil
	}
	conn, err := sql.Open("duckdb", ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return fmt.Errorf("open in-memory database for extension preload: %w", err)
	}
	defer func() {
		conn.SetConnMaxLifetime(0)
		conn.SetMaxIdleConns(0)
		conn.SetMaxOpenConns(0)
		closeQuietly(conn)
	}()

	for _, ext := range []string{"icu", "json", "vss"} {
		if !isExtensionInstalledLocally(ext) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := conn.ExecContext(ctx, fmt.Sprintf("LOAD %s;", ext))
		cancel()
		if err != nil {
			logging.Debug().Str("extension", ext).Err(err).Msg("failed to preload extension")
		}
	}
	return nil
}

func isExtensionInstalledLocally(name string) bool {
	home, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	pattern := filepath.Join(home, ".duckdb", "extensions", "*", "*", name+".duckdb_extension")
	matches, err := filepath.Glob(pattern)
	return err == nil && len(matches) > 0
}

func (db *DB) installExtensions() error {
	exts := []struct {
		name     string
		flag     *bool
		required bool
	}{
		{"icu", nil, false},
		{"json", nil, false},
		{"vss", &db.vssAvailable, true},
	}
	for _, e := range exts {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err := db.conn.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", e.name, e.name))
		cancel()
		if err != nil {
			if e.flag != nil {
				*e.flag = false
			}
			logging.Warn().Str("extension", e.name).Err(err).Msg("extension unavailable")
			if e.required {
				logging.Warn().Str("extension", e.name).Msg("vector search will fall back to full-scan cosine distance")
			}
			continue
		}
		if e.flag != nil {
			*e.flag = true
		}
	}
	// HNSW indexes on a persisted DuckDB database require this escape hatch.
	if db.vssAvailable {
		if _, err := db.conn.Exec("SET hnsw_enable_experimental_persistence = true;"); err != nil {
			logging.Warn().Err(err).Msg("failed to enable HNSW persistence")
		}
	}
	return nil
}

// Checkpoint flushes the WAL to the main database file.
func (db *DB) Checkpoint(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, "CHECKPOINT;")
	return err
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close checkpoints and closes the underlying connection.
func (db *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("failed to checkpoint database before close")
	}
	return db.conn.Close()
}

func closeQuietly(c interface{ Close() error }) {
	if c != nil {
		_ = c.Close()
	}
}

// IsTransactionConflict reports whether err is a DuckDB optimistic-
// concurrency conflict that the caller should retry.
func IsTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return contains(s, "Transaction conflict") ||
		contains(s, "Conflict on update") ||
		contains(s, "cannot update a table that has been altered")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return len(substr) == 0
}

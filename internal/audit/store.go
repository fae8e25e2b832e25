// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/opentestimony/internal/metrics"
	"github.com/tomtom215/opentestimony/internal/store"
)

// Ledger appends to and verifies the hash chain backed by DuckDB.
//
// Append is intentionally synchronous, unlike the teacher's buffered
// async audit logger: the chain's correctness depends on each append
// observing the true current tail, so batching writes behind a channel
// would let two appends race against the same stale predecessor. appendMu
// plays the role spec.md's "SELECT ... FOR UPDATE" row lock plays against
// a database that supports real row locking — DuckDB is single-writer
// MVCC, so the in-process mutex is the idiomatic equivalent here.
type Ledger struct {
	db       *store.DB
	appendMu sync.Mutex
}

// NewLedger wraps db for audit append/verify operations.
func NewLedger(db *store.DB) *Ledger {
	return &Ledger{db: db}
}

// Append computes the next sequence number and entry hash and inserts the
// entry, following spec.md §4.2 exactly: hash first, then splice user_id
// into the stored (not hashed) event_data.
func (l *Ledger) Append(ctx context.Context, in AppendInput) (*Entry, error) {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()
	start := time.Now()

	eventData := stripUserID(in.EventData)

	var prevSeq int64
	var prevHash string
	row := l.db.Conn().QueryRowContext(ctx,
		`SELECT sequence_number, entry_hash FROM audit_entries ORDER BY sequence_number DESC LIMIT 1`)
	switch err := row.Scan(&prevSeq, &prevHash); {
	case err == sql.ErrNoRows:
		prevSeq = 0
		prevHash = GenesisHash
	case err != nil:
		return nil, fmt.Errorf("read chain tail: %w", err)
	}

	nextSeq := prevSeq + 1
	// created_at is a DuckDB TIMESTAMP (microsecond precision); truncate
	// before hashing so VerifyChain recomputes from the same value.
	now := time.Now().UTC().Truncate(time.Microsecond)
	createdAtISO := now.Format(time.RFC3339Nano)

	entryHash, err := hashEntry(nextSeq, in.EventType, eventData, prevHash, createdAtISO)
	if err != nil {
		return nil, fmt.Errorf("hash entry: %w", err)
	}

	storedData := eventData
	if in.UserID != "" {
		storedData = make(map[string]any, len(eventData)+1)
		for k, v := range eventData {
			storedData[k] = v
		}
		storedData["user_id"] = in.UserID
	}
	dataJSON, err := json.Marshal(storedData)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}

	entry := &Entry{
		ID:             uuid.NewString(),
		SequenceNumber: nextSeq,
		EventType:      in.EventType,
		MediaID:        in.MediaID,
		DeviceID:       in.DeviceID,
		EventData:      storedData,
		EntryHash:      entryHash,
		PreviousHash:   prevHash,
		CreatedAt:      now,
	}

	_, err = l.db.Conn().ExecContext(ctx,
		`INSERT INTO audit_entries (id, sequence_number, event_type, media_id, device_id, event_data, entry_hash, previous_hash, created_at)
		 VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?)`,
		entry.ID, entry.SequenceNumber, string(entry.EventType), entry.MediaID, entry.DeviceID,
		string(dataJSON), entry.EntryHash, entry.PreviousHash, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}

	metrics.RecordAuditAppend(time.Since(start), nextSeq)
	return entry, nil
}

// VerifyChain walks the whole ledger in batches, checking each entry's
// link to its predecessor and recomputed hash (spec.md §4.2 Verify).
func (l *Ledger) VerifyChain(ctx context.Context, batchSize int) (*VerifyResult, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	result := &VerifyResult{Valid: true, Errors: []VerifyError{}}
	expectedPrevious := GenesisHash
	var lastSeq int64

	for {
		rows, err := l.db.Conn().QueryContext(ctx,
			`SELECT sequence_number, event_type, event_data, entry_hash, previous_hash, created_at
			 FROM audit_entries WHERE sequence_number > ? ORDER BY sequence_number ASC LIMIT ?`,
			lastSeq, batchSize,
		)
		if err != nil {
			return nil, fmt.Errorf("query batch: %w", err)
		}

		batchCount := 0
		for rows.Next() {
			var seq int64
			var eventType, entryHash, previousHash string
			var dataJSON string
			var createdAt time.Time
			if err := rows.Scan(&seq, &eventType, &dataJSON, &entryHash, &previousHash, &createdAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan entry: %w", err)
			}

			var eventData map[string]any
			if err := json.Unmarshal([]byte(dataJSON), &eventData); err != nil {
				rows.Close()
				return nil, fmt.Errorf("unmarshal event data for seq %d: %w", seq, err)
			}

			if previousHash != expectedPrevious {
				result.Valid = false
				result.Errors = append(result.Errors, VerifyError{
					SequenceNumber: seq,
					Error:          "previous_hash mismatch",
					Expected:       expectedPrevious,
					Actual:         previousHash,
				})
			}

			verifyData := stripUserID(eventData)
			recomputed, err := hashEntry(seq, EventType(eventType), verifyData, previousHash, createdAt.UTC().Format(time.RFC3339Nano))
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("recompute hash for seq %d: %w", seq, err)
			}
			if recomputed != entryHash {
				result.Valid = false
				result.Errors = append(result.Errors, VerifyError{
					SequenceNumber: seq,
					Error:          "entry_hash mismatch",
					Expected:       recomputed,
					Actual:         entryHash,
				})
			}

			expectedPrevious = entryHash
			result.EntriesChecked++
			lastSeq = seq
			batchCount++
		}
		rows.Close()

		if batchCount == 0 {
			break
		}
		// No explicit "release pool" call exists for Go's GC the way the
		// Python SQLAlchemy session.expire_all() call does, but ending
		// the batch's result set here lets rows/backing buffers be
		// collected before the next batch is fetched, bounding peak
		// memory for very long chains the same way.
	}

	return result, nil
}

// GetByMediaID returns every audit entry referencing a given media id,
// ordered oldest first — the "get_video_audit_trail" view from the
// original implementation.
func (l *Ledger) GetByMediaID(ctx context.Context, mediaID string) ([]Entry, error) {
	rows, err := l.db.Conn().QueryContext(ctx,
		`SELECT id, sequence_number, event_type, COALESCE(media_id, ''), COALESCE(device_id, ''), event_data, entry_hash, previous_hash, created_at
		 FROM audit_entries WHERE media_id = ? ORDER BY sequence_number ASC`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var eventType, dataJSON string
		if err := rows.Scan(&e.ID, &e.SequenceNumber, &eventType, &e.MediaID, &e.DeviceID, &dataJSON, &e.EntryHash, &e.PreviousHash, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.EventType = EventType(eventType)
		if err := json.Unmarshal([]byte(dataJSON), &e.EventData); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetRecentByEventTypes returns the most recent entries matching any of
// the given event types, newest first, capped at limit. It backs the
// access-log-scan admin view (original_source's scan-access-log.py):
// unlike that script, which parses a local access.jsonl file for
// non-LAN requests, this reads the same ledger every other audit trail
// comes from, filtered to the auth.failure/authz.denied event types.
func (l *Ledger) GetRecentByEventTypes(ctx context.Context, types []EventType, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	placeholders := make([]string, len(types))
	args := make([]any, 0, len(types)+1)
	for i, t := range types {
		placeholders[i] = "?"
		args = append(args, string(t))
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT id, sequence_number, event_type, COALESCE(media_id, ''), COALESCE(device_id, ''), event_data, entry_hash, previous_hash, created_at
		 FROM audit_entries WHERE event_type IN (%s) ORDER BY sequence_number DESC LIMIT ?`,
		strings.Join(placeholders, ", "),
	)
	rows, err := l.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query access log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var eventType, dataJSON string
		if err := rows.Scan(&e.ID, &e.SequenceNumber, &eventType, &e.MediaID, &e.DeviceID, &dataJSON, &e.EntryHash, &e.PreviousHash, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.EventType = EventType(eventType)
		if err := json.Unmarshal([]byte(dataJSON), &e.EventData); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Package queue implements the Indexing Job Queue: a single DuckDB table
// (indexing_jobs) that is the source of truth for what the Indexing Worker
// still has to do, plus a best-effort wakeup signal so the worker does not
// have to wait out its full poll interval after every upload (spec.md §4.3).
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/store"
)

// Status is one of the indexing_jobs.status values (spec.md GLOSSARY
// "Queue status values").
type Status string

const (
	StatusPending        Status = "pending"
	StatusPendingVisual  Status = "pending_visual"
	StatusPendingFix     Status = "pending_fix"
	StatusProcessing     Status = "processing"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// ErrAlreadyQueued is returned by EnqueueFromHook when a job row already
// exists for the media id; the caller (the webhook handler) treats this
// as a success response, not an error.
var ErrAlreadyQueued = errors.New("queue: already queued")

// Job mirrors one indexing_jobs row.
type Job struct {
	MediaID           string
	ObjectName        string
	Status            Status
	VisualIndexed     bool
	TranscriptIndexed bool
	CaptionIndexed    bool
	ClipIndexed       bool
	FrameCount        int
	TranscriptCount   int
	CaptionCount      int
	ClipCount         int
	ActionCount       int
	ErrorMessage      sql.NullString
	CreatedAt         time.Time
	StartedAt         sql.NullTime
	CompletedAt       sql.NullTime
}

// errMaxLen bounds the stored failure message (spec.md §4.4 step 4: "a
// bounded error message (e.g., 2000 chars)").
const errMaxLen = 2000

const selectColumns = `SELECT media_id, object_name, status, visual_indexed, transcript_indexed,
	caption_indexed, clip_indexed, frame_count, transcript_count, caption_count, clip_count, action_count,
	error_message, created_at, started_at, completed_at`

// Store manages indexing_jobs persistence and the admin reset operations
// layered on top of it.
type Store struct {
	db       *store.DB
	notifier Notifier
}

// NewStore wires db and the (possibly no-op) wakeup notifier.
func NewStore(db *store.DB, notifier Notifier) *Store {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Store{db: db, notifier: notifier}
}

// EnqueueFromHook implements POST /hooks/video-uploaded: insert a pending
// job if none exists yet, otherwise report ErrAlreadyQueued (spec.md §4.3:
// "if a job row exists, return already_queued; otherwise insert
// status=pending").
func (s *Store) EnqueueFromHook(ctx context.Context, mediaID, objectName string) error {
	existing, err := s.get(ctx, mediaID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("queue: check existing job: %w", err)
	}
	if existing != nil {
		return ErrAlreadyQueued
	}

	_, err = s.db.Conn().ExecContext(ctx,
		`INSERT INTO indexing_jobs (media_id, object_name, status) VALUES (?, ?, ?)`,
		mediaID, objectName, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}

	s.notifier.Notify(ctx, mediaID)
	return nil
}

func (s *Store) get(ctx context.Context, mediaID string) (*Job, error) {
	row := s.db.Conn().QueryRowContext(ctx, selectColumns+` FROM indexing_jobs WHERE media_id = ?`, mediaID)
	return scanJob(row)
}

// Get returns a single job, or apierr.NotFound if none exists.
func (s *Store) Get(ctx context.Context, mediaID string) (*Job, error) {
	j, err := s.get(ctx, mediaID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.NotFound("indexing job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("queue: get: %w", err)
	}
	return j, nil
}

// StatusCounts returns the number of jobs in each status, for the
// bridge's GET /indexing/status summary (spec.md §6).
func (s *Store) StatusCounts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT status, COUNT(*) FROM indexing_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue: status counts: %w", err)
	}
	defer rows.Close()

	counts := map[Status]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("queue: scan status count: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var status string
	if err := row.Scan(
		&j.MediaID, &j.ObjectName, &status, &j.VisualIndexed, &j.TranscriptIndexed,
		&j.CaptionIndexed, &j.ClipIndexed, &j.FrameCount, &j.TranscriptCount, &j.CaptionCount, &j.ClipCount, &j.ActionCount,
		&j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	); err != nil {
		return nil, err
	}
	j.Status = Status(status)
	return &j, nil
}

// ResetPending requests a full reindex: every modality is recomputed from
// scratch (spec.md §4.3: "per-video or bulk reset to pending (full
// reindex)"). Unlike ResetPendingVisual/ResetPendingFix this never
// refuses — a full reindex is always safe to request, it simply competes
// with whatever the worker is doing for the next poll.
func (s *Store) ResetPending(ctx context.Context, mediaID string) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE indexing_jobs SET status = ?, visual_indexed = false, transcript_indexed = false,
			caption_indexed = false, clip_indexed = false, frame_count = 0, transcript_count = 0,
			caption_count = 0, clip_count = 0, action_count = 0, error_message = NULL,
			started_at = NULL, completed_at = NULL
		 WHERE media_id = ?`,
		string(StatusPending), mediaID,
	)
	return checkRowAffected(res, err, mediaID)
}

// ResetPendingVisual requests a visual-only re-embed, keeping captions and
// transcripts (spec.md §4.3: "drop visual/clip/action embeddings only,
// keep captions and transcripts"). Refuses if a worker run is already
// in flight for this media id.
func (s *Store) ResetPendingVisual(ctx context.Context, mediaID string) error {
	lock := s.db.RowLock(mediaID)
	lock.Lock()
	defer lock.Unlock()

	job, err := s.Get(ctx, mediaID)
	if err != nil {
		return err
	}
	if job.Status == StatusPending || job.Status == StatusProcessing {
		return apierr.Conflict("cannot reset to pending_visual while a reindex is pending or running")
	}

	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("queue: begin reset_visual tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"frame_embeddings", "clip_embeddings", "action_embeddings"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE media_id = ?", table), mediaID); err != nil {
			return fmt.Errorf("queue: drop %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE indexing_jobs SET status = ?, visual_indexed = false, clip_indexed = false,
			frame_count = 0, clip_count = 0, action_count = 0, error_message = NULL,
			started_at = NULL, completed_at = NULL
		 WHERE media_id = ?`,
		string(StatusPendingVisual), mediaID,
	); err != nil {
		return fmt.Errorf("queue: reset_visual: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("queue: commit reset_visual: %w", err)
	}
	s.notifier.Notify(ctx, mediaID)
	return nil
}

// ResetPendingFix requests a fill-only pass: inspect which modality tables
// are empty for this media id and enable only the corresponding missing
// steps, deleting nothing (spec.md §4.3, §5 Open Question: "acquire an
// advisory lock per media id for the fix path" — here that is
// store.DB.RowLock, serialising concurrent admin requests for the same
// media id).
func (s *Store) ResetPendingFix(ctx context.Context, mediaID string) error {
	lock := s.db.RowLock(mediaID)
	lock.Lock()
	defer lock.Unlock()

	job, err := s.Get(ctx, mediaID)
	if err != nil {
		return err
	}
	if job.Status == StatusPending || job.Status == StatusProcessing {
		return apierr.Conflict("cannot reset to pending_fix while a reindex is pending or running")
	}

	if _, err := s.db.Conn().ExecContext(ctx,
		`UPDATE indexing_jobs SET status = ?, error_message = NULL, started_at = NULL, completed_at = NULL
		 WHERE media_id = ?`,
		string(StatusPendingFix), mediaID,
	); err != nil {
		return fmt.Errorf("queue: reset_fix: %w", err)
	}
	s.notifier.Notify(ctx, mediaID)
	return nil
}

func checkRowAffected(res sql.Result, err error, mediaID string) error {
	if err != nil {
		return fmt.Errorf("queue: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("queue: rows affected: %w", err)
	}
	if n == 0 {
		return apierr.NotFound("indexing job not found: " + mediaID)
	}
	return nil
}

// SelectNextJob claims the oldest pending/pending_visual/pending_fix row
// for the worker loop, setting it to processing and stamping started_at
// (spec.md §4.4 steps 1-2). Returns nil, nil when the queue is empty.
func (s *Store) SelectNextJob(ctx context.Context) (*Job, error) {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("queue: begin select_next tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		selectColumns+` FROM indexing_jobs WHERE status IN (?, ?, ?) ORDER BY created_at ASC LIMIT 1`,
		string(StatusPending), string(StatusPendingVisual), string(StatusPendingFix),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: select_next: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE indexing_jobs SET status = ?, started_at = CURRENT_TIMESTAMP WHERE media_id = ?`,
		string(StatusProcessing), job.MediaID,
	); err != nil {
		return nil, fmt.Errorf("queue: mark processing: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("queue: commit select_next: %w", err)
	}

	job.Status = StatusProcessing
	return job, nil
}

// ModalityCounts is the per-modality row counts and booleans a pipeline
// run produces, written back on successful completion (spec.md §4.4
// step 4).
type ModalityCounts struct {
	VisualIndexed     bool
	TranscriptIndexed bool
	CaptionIndexed    bool
	ClipIndexed       bool
	FrameCount        int
	TranscriptCount   int
	CaptionCount      int
	ClipCount         int
	ActionCount       int
}

// Complete marks a job completed and records what the run produced.
func (s *Store) Complete(ctx context.Context, mediaID string, c ModalityCounts) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE indexing_jobs SET status = ?, completed_at = CURRENT_TIMESTAMP,
			visual_indexed = ?, transcript_indexed = ?, caption_indexed = ?, clip_indexed = ?,
			frame_count = ?, transcript_count = ?, caption_count = ?, clip_count = ?, action_count = ?
		 WHERE media_id = ?`,
		string(StatusCompleted), c.VisualIndexed, c.TranscriptIndexed, c.CaptionIndexed, c.ClipIndexed,
		c.FrameCount, c.TranscriptCount, c.CaptionCount, c.ClipCount, c.ActionCount, mediaID,
	)
	if err != nil {
		return fmt.Errorf("queue: complete: %w", err)
	}
	return nil
}

// Fail marks a job failed with a bounded error message (spec.md §4.4 step
// 4, §4.5 "Failure semantics"). Previously-committed per-batch modality
// rows from a partial run are left in place; a later pending_fix pass can
// complete them.
func (s *Store) Fail(ctx context.Context, mediaID string, cause error) error {
	msg := cause.Error()
	if len(msg) > errMaxLen {
		msg = msg[:errMaxLen]
	}
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE indexing_jobs SET status = ?, completed_at = CURRENT_TIMESTAMP, error_message = ? WHERE media_id = ?`,
		string(StatusFailed), msg, mediaID,
	)
	if err != nil {
		return fmt.Errorf("queue: fail: %w", err)
	}
	return nil
}

// MissingModalities inspects which modality tables are empty for a media
// id, used by the pending_fix path to decide which pipeline steps to run
// (spec.md §4.4 step 1: "inspect which modality tables have rows for this
// media and enable only the missing steps").
func (s *Store) MissingModalities(ctx context.Context, mediaID string) (ModalityCounts, error) {
	var c ModalityCounts
	counts := map[string]*int{
		"frame_embeddings":      &c.FrameCount,
		"transcript_embeddings": &c.TranscriptCount,
		"caption_embeddings":    &c.CaptionCount,
		"clip_embeddings":       &c.ClipCount,
		"action_embeddings":     &c.ActionCount,
	}
	for table, dest := range counts {
		row := s.db.Conn().QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s WHERE media_id = ?", table), mediaID)
		if err := row.Scan(dest); err != nil {
			return c, fmt.Errorf("queue: count %s: %w", table, err)
		}
	}
	c.VisualIndexed = c.FrameCount > 0
	c.TranscriptIndexed = c.TranscriptCount > 0
	c.CaptionIndexed = c.CaptionCount > 0
	c.ClipIndexed = c.ClipCount > 0
	return c, nil
}

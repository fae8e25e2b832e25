// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

package store

import (
	"fmt"

	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/logging"
)

const baseSchema = `
CREATE TABLE IF NOT EXISTS devices (
	device_id     TEXT PRIMARY KEY,
	public_key    TEXT NOT NULL,
	info          TEXT,
	crypto_scheme TEXT NOT NULL DEFAULT 'hmac',
	registered_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS media (
	id                     TEXT PRIMARY KEY,
	device_id              TEXT NOT NULL,
	object_name            TEXT NOT NULL,
	file_hash              TEXT NOT NULL,
	captured_at            TIMESTAMP NOT NULL,
	latitude               DOUBLE,
	longitude              DOUBLE,
	incident_tags          JSON NOT NULL DEFAULT '[]',
	source                 TEXT NOT NULL,
	media_type             TEXT NOT NULL DEFAULT 'video',
	exif_metadata          JSON,
	verification_status    TEXT NOT NULL,
	annotation_category    TEXT NOT NULL DEFAULT '',
	annotation_location    TEXT NOT NULL DEFAULT '',
	annotation_notes       TEXT NOT NULL DEFAULT '',
	annotations_updated_at TIMESTAMP,
	annotations_updated_by TEXT,
	review_status          TEXT NOT NULL DEFAULT 'pending',
	reviewed_by            TEXT,
	reviewed_at            TIMESTAMP,
	envelope               JSON NOT NULL,
	uploaded_at            TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	deleted_at             TIMESTAMP,
	deleted_by             TEXT
);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL DEFAULT 'staff',
	active        BOOLEAN NOT NULL DEFAULT true,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_login_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tag_catalogue (
	tag        TEXT PRIMARY KEY,
	seq        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_entries (
	id              TEXT PRIMARY KEY,
	sequence_number BIGINT UNIQUE NOT NULL,
	event_type      TEXT NOT NULL,
	media_id        TEXT,
	device_id       TEXT,
	event_data      JSON NOT NULL,
	entry_hash      TEXT NOT NULL,
	previous_hash   TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS indexing_jobs (
	media_id          TEXT PRIMARY KEY,
	object_name       TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	visual_indexed    BOOLEAN NOT NULL DEFAULT false,
	transcript_indexed BOOLEAN NOT NULL DEFAULT false,
	caption_indexed   BOOLEAN NOT NULL DEFAULT false,
	clip_indexed      BOOLEAN NOT NULL DEFAULT false,
	frame_count       INTEGER NOT NULL DEFAULT 0,
	transcript_count  INTEGER NOT NULL DEFAULT 0,
	caption_count     INTEGER NOT NULL DEFAULT 0,
	clip_count        INTEGER NOT NULL DEFAULT 0,
	action_count      INTEGER NOT NULL DEFAULT 0,
	error_message     TEXT,
	created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	started_at        TIMESTAMP,
	completed_at      TIMESTAMP
);

CREATE TABLE IF NOT EXISTS face_detections (
	id          TEXT PRIMARY KEY,
	media_id    TEXT NOT NULL,
	frame_ordinal INTEGER NOT NULL,
	timestamp_ms  BIGINT NOT NULL,
	bbox_x      DOUBLE NOT NULL,
	bbox_y      DOUBLE NOT NULL,
	bbox_w      DOUBLE NOT NULL,
	bbox_h      DOUBLE NOT NULL,
	score       DOUBLE NOT NULL,
	embedding   FLOAT[512] NOT NULL,
	cluster_id  INTEGER,
	thumbnail_path TEXT
);

CREATE TABLE IF NOT EXISTS face_clusters (
	id               INTEGER PRIMARY KEY,
	face_count       INTEGER NOT NULL DEFAULT 0,
	video_count      INTEGER NOT NULL DEFAULT 0,
	centroid         FLOAT[512] NOT NULL,
	representative_face_id TEXT,
	updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS search_queries (
	id           TEXT PRIMARY KEY,
	query_text   TEXT NOT NULL,
	mode         TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	duration_ms  BIGINT NOT NULL,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// embeddingSchema is templated with the deployment's configured vector
// dimensions (spec.md §3: "fixed per deployment; on mismatch, the column
// is dropped and recreated").
const embeddingSchemaTmpl = `
CREATE TABLE IF NOT EXISTS frame_embeddings (
	id            TEXT PRIMARY KEY,
	media_id      TEXT NOT NULL,
	frame_ordinal INTEGER NOT NULL,
	timestamp_ms  BIGINT NOT NULL,
	embedding     FLOAT[%[1]d] NOT NULL
);

CREATE TABLE IF NOT EXISTS transcript_embeddings (
	id         TEXT PRIMARY KEY,
	media_id   TEXT NOT NULL,
	text       TEXT NOT NULL,
	start_ms   BIGINT NOT NULL,
	end_ms     BIGINT NOT NULL,
	embedding  FLOAT[%[2]d] NOT NULL
);

CREATE TABLE IF NOT EXISTS caption_embeddings (
	id            TEXT PRIMARY KEY,
	media_id      TEXT NOT NULL,
	frame_ordinal INTEGER NOT NULL,
	timestamp_ms  BIGINT NOT NULL,
	caption_text  TEXT NOT NULL,
	embedding     FLOAT[%[2]d] NOT NULL
);

CREATE TABLE IF NOT EXISTS clip_embeddings (
	id          TEXT PRIMARY KEY,
	media_id    TEXT NOT NULL,
	start_ms    BIGINT NOT NULL,
	end_ms      BIGINT NOT NULL,
	start_frame INTEGER NOT NULL,
	end_frame   INTEGER NOT NULL,
	num_frames  INTEGER NOT NULL,
	embedding   FLOAT[%[1]d] NOT NULL
);

CREATE TABLE IF NOT EXISTS action_embeddings (
	id          TEXT PRIMARY KEY,
	media_id    TEXT NOT NULL,
	start_ms    BIGINT NOT NULL,
	end_ms      BIGINT NOT NULL,
	description TEXT NOT NULL,
	embedding   FLOAT[%[2]d] NOT NULL
);
`

// hnswIndexes is only applied when the vss extension loaded.
var hnswIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_frame_embeddings_hnsw ON frame_embeddings USING HNSW (embedding) WITH (metric = 'cosine');",
	"CREATE INDEX IF NOT EXISTS idx_transcript_embeddings_hnsw ON transcript_embeddings USING HNSW (embedding) WITH (metric = 'cosine');",
	"CREATE INDEX IF NOT EXISTS idx_caption_embeddings_hnsw ON caption_embeddings USING HNSW (embedding) WITH (metric = 'cosine');",
	"CREATE INDEX IF NOT EXISTS idx_clip_embeddings_hnsw ON clip_embeddings USING HNSW (embedding) WITH (metric = 'cosine');",
	"CREATE INDEX IF NOT EXISTS idx_action_embeddings_hnsw ON action_embeddings USING HNSW (embedding) WITH (metric = 'cosine');",
	"CREATE INDEX IF NOT EXISTS idx_face_detections_hnsw ON face_detections USING HNSW (embedding) WITH (metric = 'cosine');",
}

var plainIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_media_device ON media (device_id);",
	"CREATE INDEX IF NOT EXISTS idx_media_uploaded_at ON media (uploaded_at);",
	"CREATE INDEX IF NOT EXISTS idx_media_deleted_at ON media (deleted_at);",
	"CREATE INDEX IF NOT EXISTS idx_media_review_status ON media (review_status);",
	"CREATE INDEX IF NOT EXISTS idx_audit_sequence ON audit_entries (sequence_number);",
	"CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON indexing_jobs (status, created_at);",
	"CREATE INDEX IF NOT EXISTS idx_frame_embeddings_media ON frame_embeddings (media_id);",
	"CREATE INDEX IF NOT EXISTS idx_transcript_embeddings_media ON transcript_embeddings (media_id);",
	"CREATE INDEX IF NOT EXISTS idx_caption_embeddings_media ON caption_embeddings (media_id);",
	"CREATE INDEX IF NOT EXISTS idx_clip_embeddings_media ON clip_embeddings (media_id);",
	"CREATE INDEX IF NOT EXISTS idx_action_embeddings_media ON action_embeddings (media_id);",
	"CREATE INDEX IF NOT EXISTS idx_face_detections_media ON face_detections (media_id);",
	"CREATE INDEX IF NOT EXISTS idx_face_detections_cluster ON face_detections (cluster_id);",
}

func (db *DB) createSchema(cfg *config.DatabaseConfig) error {
	if _, err := db.conn.Exec(baseSchema); err != nil {
		return fmt.Errorf("create base schema: %w", err)
	}

	embeddingSQL := fmt.Sprintf(embeddingSchemaTmpl, cfg.VisionEmbeddingDim, cfg.TextEmbeddingDim)
	if _, err := db.conn.Exec(embeddingSQL); err != nil {
		return fmt.Errorf("create embedding schema: %w", err)
	}

	if err := db.reconcileEmbeddingDimensions(cfg); err != nil {
		logging.Warn().Err(err).Msg("embedding dimension reconciliation had issues")
	}

	for _, stmt := range plainIndexes {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	if db.vssAvailable {
		for _, stmt := range hnswIndexes {
			if _, err := db.conn.Exec(stmt); err != nil {
				logging.Warn().Err(err).Str("stmt", stmt).Msg("failed to create HNSW index")
			}
		}
	}

	return nil
}

// reconcileEmbeddingDimensions implements spec.md §3's "on mismatch, the
// column is dropped and recreated (embeddings regenerated via reindex)"
// rule and §4.5 step K's schema auto-migration at service start.
func (db *DB) reconcileEmbeddingDimensions(cfg *config.DatabaseConfig) error {
	checks := []struct {
		table, column string
		wantDim       int
	}{
		{"frame_embeddings", "embedding", cfg.VisionEmbeddingDim},
		{"transcript_embeddings", "embedding", cfg.TextEmbeddingDim},
		{"caption_embeddings", "embedding", cfg.TextEmbeddingDim},
		{"clip_embeddings", "embedding", cfg.VisionEmbeddingDim},
		{"action_embeddings", "embedding", cfg.TextEmbeddingDim},
	}
	for _, c := range checks {
		currentDim, err := db.columnArrayDim(c.table, c.column)
		if err != nil {
			continue
		}
		if currentDim != 0 && currentDim != c.wantDim {
			logging.Warn().Str("table", c.table).Int("have", currentDim).Int("want", c.wantDim).
				Msg("embedding dimension mismatch, dropping column for reindex")
			alter := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s; ALTER TABLE %s ADD COLUMN %s FLOAT[%d] NOT NULL DEFAULT array_value(0.0)::FLOAT[%d];",
				c.table, c.column, c.table, c.column, c.wantDim, c.wantDim)
			if _, err := db.conn.Exec(alter); err != nil {
				return fmt.Errorf("reconcile %s.%s: %w", c.table, c.column, err)
			}
		}
	}
	return nil
}

func (db *DB) columnArrayDim(table, column string) (int, error) {
	var dataType string
	row := db.conn.QueryRow(
		`SELECT data_type FROM information_schema.columns WHERE table_name = ? AND column_name = ?`,
		table, column,
	)
	if err := row.Scan(&dataType); err != nil {
		return 0, err
	}
	// dataType looks like "FLOAT[512]"; pull the bracketed integer out by hand
	// rather than pull in a regex dependency for one digit-extraction.
	open := -1
	close := -1
	for i, r := range dataType {
		if r == '[' {
			open = i
		}
		if r == ']' {
			close = i
		}
	}
	if open < 0 || close < 0 || close <= open+1 {
		return 0, fmt.Errorf("unrecognized array type %q", dataType)
	}
	dim := 0
	for _, r := range dataType[open+1 : close] {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("unrecognized array type %q", dataType)
		}
		dim = dim*10 + int(r-'0')
	}
	return dim, nil
}

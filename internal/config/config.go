// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

// Package config loads the configuration shared by the ingest API and the
// bridge. Both binaries load the same Config struct and read only the
// sections relevant to them; tunables are environment-variable driven per
// the deployment convention, layered over YAML-file and struct defaults.
package config

import "time"

// Config is the root configuration for both services.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Database    DatabaseConfig    `koanf:"database"`
	Security    SecurityConfig    `koanf:"security"`
	ObjectStore ObjectStoreConfig `koanf:"objectstore"`
	NATS        NATSConfig        `koanf:"nats"`
	Webhook     WebhookConfig     `koanf:"webhook"`
	Indexing    IndexingConfig    `koanf:"indexing"`
	ModelClient ModelClientConfig `koanf:"modelclient"`
	Casbin      CasbinConfig      `koanf:"casbin"`
	Tags        TagsConfig        `koanf:"tags"`
}

// ServerConfig controls the HTTP listener for whichever binary reads it.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// LoggingConfig mirrors internal/logging.Config so it can be loaded from
// the same layered sources instead of being hand-assembled in main.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig configures the embedded DuckDB store shared by both
// services (one file, one process writes at a time per spec.md's single
// relational store).
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
	VisionEmbeddingDim     int    `koanf:"vision_embedding_dim"`
	TextEmbeddingDim       int    `koanf:"text_embedding_dim"`
}

// SecurityConfig covers session tokens, password policy inputs, and the
// admin seed — the shared secret here is what lets the bridge validate
// sessions statelessly (spec.md §4.8).
type SecurityConfig struct {
	SessionSecret     string        `koanf:"session_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	SessionCookieName string        `koanf:"session_cookie_name"`
	SessionStorePath  string        `koanf:"session_store_path"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPassword     string        `koanf:"admin_password"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// ObjectStoreConfig points at the S3-compatible object store (MinIO in the
// reference deployment). ExternalEndpoint/ExternalScheme are used to
// rewrite presigned URLs for clients outside the deployment network.
type ObjectStoreConfig struct {
	Endpoint         string        `koanf:"endpoint"`
	ExternalEndpoint string        `koanf:"external_endpoint"`
	ExternalScheme   string        `koanf:"external_scheme"`
	AccessKey        string        `koanf:"access_key"`
	SecretKey        string        `koanf:"secret_key"`
	Bucket           string        `koanf:"bucket"`
	Secure           bool          `koanf:"secure"`
	PresignTTL       time.Duration `koanf:"presign_ttl"`
}

// NATSConfig configures the JetStream wakeup transport for the indexing
// job queue — the DuckDB job table stays the source of truth; this is
// purely the signal that avoids a bare sleep-poll loop.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	StreamName     string `koanf:"stream_name"`
	Subject        string `koanf:"subject"`
	DurableName    string `koanf:"durable_name"`
}

// WebhookConfig configures the ingest API's best-effort call into the
// bridge's /hooks/video-uploaded endpoint.
type WebhookConfig struct {
	BridgeURL string        `koanf:"bridge_url"`
	Timeout   time.Duration `koanf:"timeout"`
}

// IndexingConfig holds the pipeline tunables from spec.md §6: frame
// interval, batch sizes, clip window geometry, face thresholds, and the
// worker poll interval.
type IndexingConfig struct {
	TempDir                string        `koanf:"temp_dir"`
	ThumbnailDir           string        `koanf:"thumbnail_dir"`
	FaceThumbnailDir       string        `koanf:"face_thumbnail_dir"`
	FrameIntervalSec       float64       `koanf:"frame_interval_sec"`
	BlackFrameLumaFloor    float64       `koanf:"black_frame_luma_floor"`
	VisualBatchSize        int           `koanf:"visual_batch_size"`
	CaptioningEnabled      bool          `koanf:"captioning_enabled"`
	CaptionProvider        string        `koanf:"caption_provider"` // "external" | "local"
	CaptionParallelism     int           `koanf:"caption_parallelism"`
	CaptionBatchSize       int           `koanf:"caption_batch_size"`
	ClipWindowEnabled      bool          `koanf:"clip_window_enabled"`
	ClipFPS                float64       `koanf:"clip_fps"`
	ClipWindowFrames       int           `koanf:"clip_window_frames"`
	ClipWindowStride       int           `koanf:"clip_window_stride"`
	ActionCaptionEnabled   bool          `koanf:"action_caption_enabled"`
	ActionSampleFrames     int           `koanf:"action_sample_frames"`
	FaceMinConfidence      float64       `koanf:"face_min_confidence"`
	FaceMinPixels          int           `koanf:"face_min_pixels"`
	FaceClusterSimilarity  float64       `koanf:"face_cluster_similarity"`
	FaceHDBSCANMinCluster  int           `koanf:"face_hdbscan_min_cluster"`
	PollInterval           time.Duration `koanf:"poll_interval"`
	ErrorMessageMaxLen     int           `koanf:"error_message_max_len"`
}

// ModelClientConfig points the bridge at the external HTTP model services
// (vision embedder, text embedder, transcriber, captioner, face
// detector) — the ecosystem has no in-process ML runtime in this corpus,
// so every model is an HTTP collaborator behind a circuit breaker.
type ModelClientConfig struct {
	VisionEndpoint      string        `koanf:"vision_endpoint"`
	TextEndpoint        string        `koanf:"text_endpoint"`
	TranscribeEndpoint  string        `koanf:"transcribe_endpoint"`
	CaptionEndpoint     string        `koanf:"caption_endpoint"`
	FaceEndpoint        string        `koanf:"face_endpoint"`
	RequestTimeout      time.Duration `koanf:"request_timeout"`
	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
}

// CasbinConfig points at the RBAC model/policy files enforcing the
// admin-only gates beyond the basic staff/admin role split.
type CasbinConfig struct {
	ModelPath  string `koanf:"model_path"`
	PolicyPath string `koanf:"policy_path"`
}

// TagsConfig seeds the recognised tag catalogue (spec.md §3 Tag Catalogue).
type TagsConfig struct {
	Seed []string `koanf:"seed"`
}

// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/opentestimony/config.yaml",
	"/etc/opentestimony/config.yml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			Path:                   "/data/opentestimony.duckdb",
			MaxMemory:              "2GB",
			Threads:                0,
			PreserveInsertionOrder: true,
			VisionEmbeddingDim:     512,
			TextEmbeddingDim:       1024,
		},
		Security: SecurityConfig{
			SessionTimeout:    8 * time.Hour,
			SessionCookieName: "access_token",
			SessionStorePath:  "/data/sessions",
			RateLimitReqs:     60,
			RateLimitWindow:   time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "127.0.0.1:9000",
			ExternalEndpoint: "127.0.0.1:9000",
			ExternalScheme:   "http",
			Bucket:           "open-testimony",
			Secure:           false,
			PresignTTL:       time.Hour,
		},
		NATS: NATSConfig{
			Enabled:        true,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			StreamName:     "INDEXING",
			Subject:        "indexing.video-uploaded",
			DurableName:    "indexing-worker",
		},
		Webhook: WebhookConfig{
			BridgeURL: "http://127.0.0.1:8081/hooks/video-uploaded",
			Timeout:   5 * time.Second,
		},
		Indexing: IndexingConfig{
			TempDir:               "/tmp/opentestimony-indexing",
			ThumbnailDir:          "/data/thumbnails",
			FaceThumbnailDir:      "/data/face-thumbnails",
			FrameIntervalSec:      2.0,
			BlackFrameLumaFloor:   15.0 / 255.0,
			VisualBatchSize:       16,
			CaptioningEnabled:     true,
			CaptionProvider:       "external",
			CaptionParallelism:    4,
			CaptionBatchSize:      8,
			ClipWindowEnabled:     true,
			ClipFPS:               1.0,
			ClipWindowFrames:      8,
			ClipWindowStride:      4,
			ActionCaptionEnabled:  true,
			ActionSampleFrames:    8,
			FaceMinConfidence:     0.8,
			FaceMinPixels:         40,
			FaceClusterSimilarity: 0.6,
			FaceHDBSCANMinCluster: 5,
			PollInterval:          10 * time.Second,
			ErrorMessageMaxLen:    2000,
		},
		ModelClient: ModelClientConfig{
			RequestTimeout:      60 * time.Second,
			BreakerMaxRequests:  5,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      30 * time.Second,
			BreakerFailureRatio: 0.6,
		},
		Tags: TagsConfig{
			Seed: []string{"interview", "incident", "documentation"},
		},
	}
}

// Load reads configuration with koanf's layered providers: struct
// defaults, then an optional YAML file, then environment variables
// (highest priority) — the same three-layer order the teacher uses.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps flat environment variable names onto koanf's
// dotted config paths.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	mappings := map[string]string{
		"http_port":        "server.port",
		"http_host":        "server.host",
		"environment":      "server.environment",
		"log_level":        "logging.level",
		"log_format":       "logging.format",
		"log_caller":       "logging.caller",
		"duckdb_path":      "database.path",
		"duckdb_max_memory": "database.max_memory",
		"vision_embedding_dim": "database.vision_embedding_dim",
		"text_embedding_dim":   "database.text_embedding_dim",

		"session_secret":      "security.session_secret",
		"session_timeout":     "security.session_timeout",
		"session_cookie_name": "security.session_cookie_name",
		"session_store_path":  "security.session_store_path",
		"admin_username":      "security.admin_username",
		"admin_password":      "security.admin_password",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"cors_origins":        "security.cors_origins",

		"objectstore_endpoint":          "objectstore.endpoint",
		"objectstore_external_endpoint": "objectstore.external_endpoint",
		"objectstore_external_scheme":   "objectstore.external_scheme",
		"objectstore_access_key":        "objectstore.access_key",
		"objectstore_secret_key":        "objectstore.secret_key",
		"objectstore_bucket":            "objectstore.bucket",
		"objectstore_secure":            "objectstore.secure",
		"objectstore_presign_ttl":       "objectstore.presign_ttl",

		"nats_enabled":  "nats.enabled",
		"nats_url":      "nats.url",
		"nats_embedded": "nats.embedded_server",
		"nats_store_dir": "nats.store_dir",
		"nats_stream":   "nats.stream_name",
		"nats_subject":  "nats.subject",
		"nats_durable":  "nats.durable_name",

		"bridge_webhook_url":     "webhook.bridge_url",
		"bridge_webhook_timeout": "webhook.timeout",

		"indexing_temp_dir":            "indexing.temp_dir",
		"indexing_thumbnail_dir":       "indexing.thumbnail_dir",
		"indexing_face_thumbnail_dir":  "indexing.face_thumbnail_dir",
		"indexing_frame_interval_sec":  "indexing.frame_interval_sec",
		"indexing_black_frame_floor":   "indexing.black_frame_luma_floor",
		"indexing_visual_batch_size":   "indexing.visual_batch_size",
		"indexing_captioning_enabled":  "indexing.captioning_enabled",
		"indexing_caption_provider":    "indexing.caption_provider",
		"indexing_caption_parallelism": "indexing.caption_parallelism",
		"indexing_caption_batch_size":  "indexing.caption_batch_size",
		"indexing_clip_enabled":        "indexing.clip_window_enabled",
		"indexing_clip_fps":            "indexing.clip_fps",
		"indexing_clip_window_frames":  "indexing.clip_window_frames",
		"indexing_clip_window_stride":  "indexing.clip_window_stride",
		"indexing_action_enabled":      "indexing.action_caption_enabled",
		"indexing_action_sample_frames": "indexing.action_sample_frames",
		"indexing_face_min_confidence": "indexing.face_min_confidence",
		"indexing_face_min_pixels":     "indexing.face_min_pixels",
		"indexing_face_cluster_similarity": "indexing.face_cluster_similarity",
		"indexing_face_hdbscan_min_cluster": "indexing.face_hdbscan_min_cluster",
		"indexing_poll_interval":       "indexing.poll_interval",

		"model_vision_endpoint":     "modelclient.vision_endpoint",
		"model_text_endpoint":       "modelclient.text_endpoint",
		"model_transcribe_endpoint": "modelclient.transcribe_endpoint",
		"model_caption_endpoint":    "modelclient.caption_endpoint",
		"model_face_endpoint":       "modelclient.face_endpoint",
		"model_request_timeout":     "modelclient.request_timeout",

		"casbin_model_path":  "casbin.model_path",
		"casbin_policy_path": "casbin.policy_path",

		"tag_seed_list": "tags.seed",
	}

	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
	"tags.seed",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

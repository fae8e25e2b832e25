// Package objectstore wraps the S3-compatible blob store (MinIO in the
// reference deployment) with the spooled-buffer streaming upload,
// chunk-wise hashing, and presigned-URL host rewriting spec.md §4.9
// describes.
package objectstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/logging"
)

// MediaKind selects the object-key prefix an upload is stored under.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaPhoto MediaKind = "photo"
)

// Store wraps a minio client bound to one bucket.
type Store struct {
	client           *minio.Client
	bucket           string
	externalEndpoint string
	externalScheme   string
	presignTTL       time.Duration
}

// New dials the object store and ensures the configured bucket exists.
func New(ctx context.Context, cfg *config.ObjectStoreConfig) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: new client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("objectstore: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("objectstore: make bucket: %w", err)
		}
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Store{
		client:           client,
		bucket:           cfg.Bucket,
		externalEndpoint: cfg.ExternalEndpoint,
		externalScheme:   cfg.ExternalScheme,
		presignTTL:       ttl,
	}, nil
}

// ObjectKey builds "videos/<device_id>/<timestamp>_<filename>" or the
// photos/ equivalent, per spec.md §4.1 step 6.
func ObjectKey(kind MediaKind, deviceID string, timestamp time.Time, filename string) string {
	prefix := "videos"
	if kind == MediaPhoto {
		prefix = "photos"
	}
	return fmt.Sprintf("%s/%s/%d_%s", prefix, deviceID, timestamp.UnixMilli(), filename)
}

// PutResult carries the outcome of a spooled upload.
type PutResult struct {
	Hash string // hex-encoded SHA-256 of the streamed content
	Size int64
}

// PutSpooled drains src through a SpoolBuffer while computing SHA-256
// chunk-wise (spec.md §4.1 step 3: memory bounded to one chunk regardless
// of file size), then streams the spooled buffer to the object store in
// one put_object call with a known length. The caller must have already
// validated the envelope before calling this, since the write happens
// before the media row is inserted (spec.md §5 Cancellation: blob before
// row, never the reverse).
func (s *Store) PutSpooled(ctx context.Context, key, contentType string, src io.Reader, spoolThreshold int64) (*PutResult, error) {
	spool, err := NewSpoolBuffer(spoolThreshold)
	if err != nil {
		return nil, fmt.Errorf("objectstore: spool buffer: %w", err)
	}
	defer spool.Close()

	hasher := sha256.New()
	tee := io.TeeReader(src, hasher)
	size, err := io.Copy(spool, tee)
	if err != nil {
		return nil, fmt.Errorf("objectstore: spool upload body: %w", err)
	}

	if err := spool.Rewind(); err != nil {
		return nil, fmt.Errorf("objectstore: rewind spool: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, spool, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: put object: %w", err)
	}

	return &PutResult{Hash: hex.EncodeToString(hasher.Sum(nil)), Size: size}, nil
}

// SpoolAndHash drains src into a rewindable spool buffer while computing
// its SHA-256, without touching the object store. Callers that must
// validate a hash or signature before committing the blob (spec.md §4.1
// steps 3-5: hash, then signature, before the object-store write) spool
// here first and call PutPrespooled once validation passes.
func SpoolAndHash(src io.Reader, spoolThreshold int64) (spool *SpoolBuffer, hash string, size int64, err error) {
	spool, err = NewSpoolBuffer(spoolThreshold)
	if err != nil {
		return nil, "", 0, fmt.Errorf("objectstore: spool buffer: %w", err)
	}

	hasher := sha256.New()
	tee := io.TeeReader(src, hasher)
	size, err = io.Copy(spool, tee)
	if err != nil {
		spool.Close()
		return nil, "", 0, fmt.Errorf("objectstore: spool upload body: %w", err)
	}
	if err := spool.Rewind(); err != nil {
		spool.Close()
		return nil, "", 0, fmt.Errorf("objectstore: rewind spool: %w", err)
	}

	return spool, hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// PutPrespooled writes an already-spooled, already-rewound buffer to the
// object store. Use after SpoolAndHash once the caller has validated the
// hash (and, where applicable, the signature) it produced.
func (s *Store) PutPrespooled(ctx context.Context, key, contentType string, spool *SpoolBuffer, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, spool, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("objectstore: put object: %w", err)
	}
	return nil
}

// PresignPlaybackURL returns a time-limited GET URL for key, rewriting
// the internal endpoint/scheme to the externally visible one (spec.md
// §4.1 "Presigned playback URL").
func (s *Store) PresignPlaybackURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("objectstore: presign: %w", err)
	}
	if s.externalEndpoint != "" {
		u.Host = s.externalEndpoint
	}
	if s.externalScheme != "" {
		u.Scheme = s.externalScheme
	}
	return u.String(), nil
}

// DownloadToFile streams key to destPath, creating or truncating it. This
// is the indexing worker's step A: pull the uploaded blob down to local
// disk before ffmpeg can touch it.
func (s *Store) DownloadToFile(ctx context.Context, key, destPath string) error {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("objectstore: get object: %w", err)
	}
	defer obj.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("objectstore: create dest file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, obj); err != nil {
		return fmt.Errorf("objectstore: download %s: %w", key, err)
	}
	return nil
}

// Remove deletes an object outright — used only by admin tooling, never
// by soft delete (spec.md §4.1 "Soft delete" never removes the blob).
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		logging.Error().Err(err).Str("key", key).Msg("objectstore: remove failed")
		return fmt.Errorf("objectstore: remove: %w", err)
	}
	return nil
}

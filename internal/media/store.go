package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/store"
)

// Store manages Media Record persistence and the operations layered on
// top of it: annotations, review queue, tags, integrity report, soft
// delete (spec.md §3 Media Record, §4.1).
type Store struct {
	db     *store.DB
	ledger *audit.Ledger
}

// NewStore wraps db/ledger for media operations.
func NewStore(db *store.DB, ledger *audit.Ledger) *Store {
	return &Store{db: db, ledger: ledger}
}

// CreateInput carries the fields needed to persist a newly-verified
// upload (spec.md §4.1 "Upload" step 7 and "Bulk upload").
type CreateInput struct {
	DeviceID           string
	ObjectName         string
	FileHash           string
	CapturedAt         time.Time
	Latitude           *float64
	Longitude          *float64
	IncidentTags       []string
	Source             string
	MediaType          Type
	ExifMetadata       []byte
	VerificationStatus string
	Envelope           []byte
}

// Create persists a new Media Record and returns its generated id.
func (s *Store) Create(ctx context.Context, in CreateInput) (string, error) {
	id := uuid.NewString()
	tags := in.IncidentTags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("media: marshal tags: %w", err)
	}

	var exif any
	if len(in.ExifMetadata) > 0 {
		exif = string(in.ExifMetadata)
	}

	_, err = s.db.Conn().ExecContext(ctx,
		`INSERT INTO media (id, device_id, object_name, file_hash, captured_at, latitude, longitude,
			incident_tags, source, media_type, exif_metadata, verification_status, envelope)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.DeviceID, in.ObjectName, in.FileHash, in.CapturedAt, nullableFloat(in.Latitude), nullableFloat(in.Longitude),
		string(tagsJSON), in.Source, string(in.MediaType), exif, in.VerificationStatus, string(in.Envelope),
	)
	if err != nil {
		return "", fmt.Errorf("media: create: %w", err)
	}
	return id, nil
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// Get returns a single, non-deleted Media Record.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.Conn().QueryRowContext(ctx, selectColumns+` FROM media WHERE id = ? AND deleted_at IS NULL`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.NotFound("video not found")
	}
	if err != nil {
		return nil, fmt.Errorf("media: get: %w", err)
	}
	return r, nil
}

const selectColumns = `SELECT id, device_id, object_name, file_hash, captured_at, latitude, longitude,
	incident_tags, source, media_type, exif_metadata, verification_status,
	annotation_category, annotation_location, annotation_notes, annotations_updated_at, annotations_updated_by,
	review_status, reviewed_by, reviewed_at, envelope, uploaded_at, deleted_at, deleted_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var mediaType, tagsJSON string
	var exif sql.NullString
	if err := row.Scan(
		&r.ID, &r.DeviceID, &r.ObjectName, &r.FileHash, &r.CapturedAt, &r.Latitude, &r.Longitude,
		&tagsJSON, &r.Source, &mediaType, &exif, &r.VerificationStatus,
		&r.AnnotationCategory, &r.AnnotationLocation, &r.AnnotationNotes, &r.AnnotationsUpdatedAt, &r.AnnotationsUpdatedBy,
		&r.ReviewStatus, &r.ReviewedBy, &r.ReviewedAt, &r.Envelope, &r.UploadedAt, &r.DeletedAt, &r.DeletedBy,
	); err != nil {
		return nil, err
	}
	r.MediaType = Type(mediaType)
	if exif.Valid {
		r.ExifMetadata = []byte(exif.String)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &r.IncidentTags); err != nil {
		return nil, fmt.Errorf("unmarshal incident_tags: %w", err)
	}
	return &r, nil
}

// List returns Media Records matching the filter, newest-first by
// default, always excluding soft-deleted rows (spec.md §4.1 "List /
// filter videos").
func (s *Store) List(ctx context.Context, f ListFilter) ([]*Record, error) {
	var where []string
	var args []any

	where = append(where, "deleted_at IS NULL")
	if f.DeviceID != "" {
		where = append(where, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if f.VerifiedOnly {
		where = append(where, "verification_status IN (?, ?, ?)")
		args = append(args, VerificationVerified, VerificationVerifiedMVP, VerificationSignedUpload)
	}
	if f.Category != "" {
		where = append(where, "annotation_category = ?")
		args = append(args, f.Category)
	}
	if f.MediaType != "" {
		where = append(where, "media_type = ?")
		args = append(args, string(f.MediaType))
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if f.ReviewStatus != "" {
		where = append(where, "review_status = ?")
		args = append(args, f.ReviewStatus)
	}
	if f.SearchText != "" {
		where = append(where, "(annotation_notes ILIKE ? OR annotation_location ILIKE ? OR device_id ILIKE ?)")
		like := "%" + f.SearchText + "%"
		args = append(args, like, like, like)
	}
	for _, tag := range f.TagsContainAll {
		where = append(where, "list_contains(incident_tags, ?)")
		args = append(args, tag)
	}

	order := "uploaded_at DESC"
	if f.Sort == "oldest" {
		order = "uploaded_at ASC"
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}

	query := selectColumns + " FROM media WHERE " + strings.Join(where, " AND ") +
		fmt.Sprintf(" ORDER BY %s LIMIT ? OFFSET ?", order)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("media: list: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("media: scan list row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

package bulkimport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/bridgehook"
	"github.com/tomtom215/opentestimony/internal/media"
	"github.com/tomtom215/opentestimony/internal/objectstore"
)

// DeviceID is the fixed device_id stamped on every bulk-uploaded record
// (spec.md §4.1 "Bulk upload": "device id bulk-upload").
const DeviceID = "bulk-upload"

// objectPathSegment is the fixed object-store path component bulk
// uploads are stored under, distinct from DeviceID (spec.md §5
// "Object-store layout": "videos/bulk/...").
const objectPathSegment = "bulk"

// File is one input to a bulk upload: its original name, declared
// content type, and full bytes (bulk upload buffers the whole file in
// memory, matching the original implementation, and hands the buffer to
// objectstore.PutSpooled with a threshold above its length).
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FileResult is the per-file outcome returned to the caller (spec.md
// §4.1 "Bulk upload": "per-file success/error records").
type FileResult struct {
	Filename           string   `json:"filename"`
	Status             string   `json:"status"` // "success" | "error"
	Detail             string   `json:"detail,omitempty"`
	VideoID            string   `json:"video_id,omitempty"`
	MediaType          string   `json:"media_type,omitempty"`
	VerificationStatus string   `json:"verification_status,omitempty"`
	HasExif            bool     `json:"has_exif"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
}

// BatchResult is the aggregate response (spec.md §4.1 "Bulk upload").
type BatchResult struct {
	Status    string       `json:"status"` // "success" | "partial" | "error"
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []FileResult `json:"results"`
}

// Processor runs the bulk-upload pipeline: hash, store, EXIF override,
// persist, audit, notify.
type Processor struct {
	objects *objectstore.Store
	records *media.Store
	ledger  *audit.Ledger
	hook    *bridgehook.Notifier
}

// NewProcessor wires the collaborators a bulk upload needs.
func NewProcessor(objects *objectstore.Store, records *media.Store, ledger *audit.Ledger, hook *bridgehook.Notifier) *Processor {
	return &Processor{objects: objects, records: records, ledger: ledger, hook: hook}
}

// ProcessBatch runs every file through the pipeline independently: one
// file's failure never aborts the rest (spec.md §5 "Partial-failure
// policies": "During bulk upload, per-file outcomes are independent").
func (p *Processor) ProcessBatch(ctx context.Context, files []File) *BatchResult {
	batch := &BatchResult{Total: len(files)}

	for _, f := range files {
		result := p.processOne(ctx, f)
		batch.Results = append(batch.Results, result)
		if result.Status == "success" {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
	}

	batch.Status = AggregateStatus(batch.Succeeded, batch.Failed)
	return batch
}

// AggregateStatus reduces per-file outcomes to the batch-level status
// (spec.md §4.1 "Bulk upload": "an overall status of success / partial
// / error reflects aggregate outcome").
func AggregateStatus(succeeded, failed int) string {
	switch {
	case failed == 0:
		return "success"
	case succeeded > 0:
		return "partial"
	default:
		return "error"
	}
}

func (p *Processor) processOne(ctx context.Context, f File) FileResult {
	result := FileResult{Filename: f.Filename}

	if len(f.Data) == 0 {
		result.Status = "error"
		result.Detail = "empty file"
		return result
	}

	sum := sha256.Sum256(f.Data)
	fileHash := hex.EncodeToString(sum[:])

	mediaType := DetectMediaType(f.Filename, f.ContentType)
	exifData := ExtractExif(f.Data)

	capturedAt := time.Now().UTC()
	if exifData.CapturedAt != nil {
		capturedAt = *exifData.CapturedAt
	}

	contentType := f.ContentType
	if contentType == "" {
		if mediaType == media.TypePhoto {
			contentType = "image/jpeg"
		} else {
			contentType = "video/mp4"
		}
	}

	kind := objectstore.MediaVideo
	if mediaType == media.TypePhoto {
		kind = objectstore.MediaPhoto
	}
	objectName := objectstore.ObjectKey(kind, objectPathSegment, time.Now().UTC(), f.Filename)

	// The file is already fully buffered in f.Data (matching the original
	// implementation's whole-file bulk-upload path), so the spool
	// threshold is set above the data length: PutSpooled never spills to
	// disk here, it just reuses the same hashing/put call regular upload
	// uses.
	_, err := p.objects.PutSpooled(ctx, objectName, contentType, bytes.NewReader(f.Data), int64(len(f.Data))+1)
	if err != nil {
		result.Status = "error"
		result.Detail = fmt.Sprintf("object store: %v", err)
		return result
	}

	var exifJSON []byte
	if exifData.Raw != nil {
		if b, err := json.Marshal(exifData.Raw); err == nil {
			exifJSON = b
		}
	}

	id, err := p.records.Create(ctx, media.CreateInput{
		DeviceID:           DeviceID,
		ObjectName:         objectName,
		FileHash:           fileHash,
		CapturedAt:         capturedAt,
		Latitude:           exifData.Latitude,
		Longitude:          exifData.Longitude,
		IncidentTags:       nil,
		Source:             media.SourceBulkUpload,
		MediaType:          mediaType,
		ExifMetadata:       exifJSON,
		VerificationStatus: media.VerificationUnverified,
		Envelope:           bulkEnvelope(f.Filename),
	})
	if err != nil {
		result.Status = "error"
		result.Detail = fmt.Sprintf("persist record: %v", err)
		return result
	}

	_, err = p.ledger.Append(ctx, audit.AppendInput{
		EventType: audit.EventBulkUpload,
		MediaID:   id,
		DeviceID:  DeviceID,
		EventData: map[string]any{
			"file_hash":           fileHash,
			"media_type":          string(mediaType),
			"original_filename":   f.Filename,
			"verification_status": media.VerificationUnverified,
			"has_exif_location":   exifData.Latitude != nil,
		},
	})
	if err != nil {
		result.Status = "error"
		result.Detail = fmt.Sprintf("audit: %v", err)
		return result
	}

	p.hook.NotifyVideoUploaded(ctx, id, objectName)

	result.Status = "success"
	result.VideoID = id
	result.MediaType = string(mediaType)
	result.VerificationStatus = media.VerificationUnverified
	result.HasExif = exifData.Raw != nil
	result.Latitude = exifData.Latitude
	result.Longitude = exifData.Longitude
	return result
}

// bulkEnvelope stands in for the signed upload envelope bulk uploads
// never carry: there is no device signature to replay, so the stored
// envelope just records provenance (spec.md §3 Media Record: "full
// signed envelope JSON for forensic replay" — for bulk uploads, that
// means recording how the record was produced instead of a signature).
func bulkEnvelope(originalFilename string) []byte {
	b, err := json.Marshal(map[string]any{
		"source":            media.SourceBulkUpload,
		"original_filename": originalFilename,
	})
	if err != nil {
		return []byte(`{}`)
	}
	return b
}

package ingestapi

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/bulkimport"
	"github.com/tomtom215/opentestimony/internal/cryptoverify"
	"github.com/tomtom215/opentestimony/internal/media"
	"github.com/tomtom215/opentestimony/internal/objectstore"
)

// defaultSpoolThreshold is used when Handler.SpoolThresh is unset.
const defaultSpoolThreshold = 8 << 20 // 8 MiB

type uploadAuth struct {
	DeviceID     string `json:"device_id"`
	PublicKeyPEM string `json:"public_key_pem"`
}

type uploadLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type uploadPayload struct {
	VideoHash    string          `json:"video_hash"`
	Timestamp    string          `json:"timestamp"`
	Location     *uploadLocation `json:"location"`
	IncidentTags []string        `json:"incident_tags"`
	Source       string          `json:"source"`
	MediaType    string          `json:"media_type"`
	ExifMetadata json.RawMessage `json:"exif_metadata"`
}

type uploadEnvelope struct {
	Version       string          `json:"version"`
	Auth          uploadAuth      `json:"auth"`
	Payload       json.RawMessage `json:"payload"`
	SignedPayload string          `json:"signed_payload"`
	Signature     string          `json:"signature"`
}

type uploadResponse struct {
	Status             string `json:"status"`
	VideoID             string `json:"video_id"`
	VerificationStatus string `json:"verification_status"`
}

// Upload implements POST /api/upload (spec.md §4.1 "Upload"): a
// multipart request carrying an "envelope" JSON part followed by a
// "file" binary part. The body is spooled and hashed in one pass, the
// hash and signature are validated before anything touches the object
// store, and the media row is only inserted once the blob write
// succeeds (spec.md §5 Cancellation: blob before row).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		apierr.WriteError(w, r, apierr.Validation("expected multipart/form-data body"))
		return
	}

	envelopePart, err := mr.NextPart()
	if err != nil || envelopePart.FormName() != "envelope" {
		apierr.WriteError(w, r, apierr.Validation("expected \"envelope\" part first"))
		return
	}
	envelopeBytes, env, err := readEnvelope(envelopePart)
	if err != nil {
		apierr.WriteError(w, r, apierr.Validation(err.Error()))
		return
	}

	var payload uploadPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed payload"))
		return
	}
	var payloadMap map[string]any
	if err := json.Unmarshal(env.Payload, &payloadMap); err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed payload"))
		return
	}
	if env.Auth.DeviceID == "" || env.Auth.PublicKeyPEM == "" || payload.VideoHash == "" {
		apierr.WriteError(w, r, apierr.Validation("device_id, public_key_pem, and video_hash are required"))
		return
	}

	ctx := r.Context()

	if _, err := h.Devices.Get(ctx, env.Auth.DeviceID); err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	if _, err := h.Devices.VerifyOwnership(ctx, env.Auth.DeviceID, env.Auth.PublicKeyPEM); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	filePart, err := mr.NextPart()
	if err != nil || filePart.FormName() != "file" {
		apierr.WriteError(w, r, apierr.Validation("expected \"file\" part second"))
		return
	}

	spoolThresh := h.SpoolThresh
	if spoolThresh <= 0 {
		spoolThresh = defaultSpoolThreshold
	}
	spool, hash, size, err := objectstore.SpoolAndHash(filePart, spoolThresh)
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to stream upload body", err))
		return
	}
	defer spool.Close()

	if hash != payload.VideoHash {
		apierr.WriteError(w, r, apierr.Validation("hash mismatch"))
		return
	}

	signature, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed signature"))
		return
	}
	var signedPayload []byte
	if env.SignedPayload != "" {
		signedPayload, err = base64.StdEncoding.DecodeString(env.SignedPayload)
		if err != nil {
			apierr.WriteError(w, r, apierr.Validation("malformed signed_payload"))
			return
		}
	}
	verificationStatus := cryptoverify.Verify(env.Auth.PublicKeyPEM, payloadMap, signedPayload, signature, payload.Source)

	mediaType := media.Type(payload.MediaType)
	if mediaType != media.TypePhoto {
		mediaType = media.TypeVideo
	}
	kind := objectstore.MediaVideo
	if mediaType == media.TypePhoto {
		kind = objectstore.MediaPhoto
	}

	capturedAt, err := parseTimestamp(payload.Timestamp)
	if err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed timestamp"))
		return
	}

	filename := filePart.FileName()
	if filename == "" {
		filename = "upload.bin"
	}
	objectName := objectstore.ObjectKey(kind, env.Auth.DeviceID, capturedAt, filename)

	if err := h.Objects.PutPrespooled(ctx, objectName, filePart.Header.Get("Content-Type"), spool, size); err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to store upload", err))
		return
	}

	var lat, lon *float64
	if payload.Location != nil {
		lat, lon = &payload.Location.Lat, &payload.Location.Lon
	}

	videoID, err := h.Media.Create(ctx, media.CreateInput{
		DeviceID:           env.Auth.DeviceID,
		ObjectName:         objectName,
		FileHash:           hash,
		CapturedAt:         capturedAt,
		Latitude:           lat,
		Longitude:          lon,
		IncidentTags:       payload.IncidentTags,
		Source:             payload.Source,
		MediaType:          mediaType,
		ExifMetadata:       payload.ExifMetadata,
		VerificationStatus: string(verificationStatus),
		Envelope:           envelopeBytes,
	})
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to persist media record", err))
		return
	}

	if _, err := h.Ledger.Append(ctx, audit.AppendInput{
		EventType: audit.EventUpload,
		MediaID:   videoID,
		DeviceID:  env.Auth.DeviceID,
		EventData: map[string]any{
			"file_hash":           hash,
			"source":              payload.Source,
			"media_type":          string(mediaType),
			"verification_status": string(verificationStatus),
		},
	}); err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to append audit entry", err))
		return
	}

	if mediaType == media.TypeVideo {
		h.Hook.NotifyVideoUploaded(ctx, videoID, objectName)
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Status:              "success",
		VideoID:             videoID,
		VerificationStatus: string(verificationStatus),
	})
}

func readEnvelope(part *multipart.Part) ([]byte, *uploadEnvelope, error) {
	var buf []byte
	var err error
	buf, err = readAll(part)
	if err != nil {
		return nil, nil, err
	}
	var env uploadEnvelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return nil, nil, err
	}
	return buf, &env, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// BulkUpload implements POST /api/bulk-upload (spec.md §4.1 "Bulk
// upload", admin only): each part named "files" is processed
// independently through bulkimport.Processor.
func (h *Handler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		apierr.WriteError(w, r, apierr.Validation("expected multipart/form-data body"))
		return
	}

	var files []bulkimport.File
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		if part.FormName() != "files" {
			continue
		}
		data, err := readAll(part)
		if err != nil {
			apierr.WriteError(w, r, apierr.Backend("failed to read upload part", err))
			return
		}
		files = append(files, bulkimport.File{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	if len(files) == 0 {
		apierr.WriteError(w, r, apierr.Validation("no files provided"))
		return
	}

	result := h.Bulk.ProcessBatch(r.Context(), files)
	writeJSON(w, http.StatusOK, result)
}

func readAll(p *multipart.Part) ([]byte, error) {
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := p.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
	}
}

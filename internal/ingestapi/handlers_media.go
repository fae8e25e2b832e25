package ingestapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/auth"
	"github.com/tomtom215/opentestimony/internal/media"
)

// videoDTO is the wire representation of a media.Record (spec.md §3
// Media Record, §4.1 "Get video details").
type videoDTO struct {
	ID                   string   `json:"id"`
	DeviceID             string   `json:"device_id"`
	ObjectName           string   `json:"object_name"`
	FileHash             string   `json:"file_hash"`
	CapturedAt           string   `json:"captured_at"`
	Latitude             *float64 `json:"latitude,omitempty"`
	Longitude            *float64 `json:"longitude,omitempty"`
	IncidentTags         []string `json:"incident_tags"`
	Source               string   `json:"source"`
	MediaType            string   `json:"media_type"`
	VerificationStatus   string   `json:"verification_status"`
	AnnotationCategory   string   `json:"annotation_category"`
	AnnotationLocation   string   `json:"annotation_location"`
	AnnotationNotes      string   `json:"annotation_notes"`
	AnnotationsUpdatedBy string   `json:"annotations_updated_by,omitempty"`
	ReviewStatus         string   `json:"review_status"`
	ReviewedBy           string   `json:"reviewed_by,omitempty"`
	UploadedAt           string   `json:"uploaded_at"`
}

func toVideoDTO(r *media.Record) videoDTO {
	dto := videoDTO{
		ID:                 r.ID,
		DeviceID:           r.DeviceID,
		ObjectName:         r.ObjectName,
		FileHash:           r.FileHash,
		CapturedAt:         r.CapturedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		IncidentTags:       r.IncidentTags,
		Source:             r.Source,
		MediaType:          string(r.MediaType),
		VerificationStatus: r.VerificationStatus,
		AnnotationCategory: r.AnnotationCategory,
		AnnotationLocation: r.AnnotationLocation,
		AnnotationNotes:    r.AnnotationNotes,
		ReviewStatus:       r.ReviewStatus,
		UploadedAt:         r.UploadedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if r.Latitude.Valid {
		v := r.Latitude.Float64
		dto.Latitude = &v
	}
	if r.Longitude.Valid {
		v := r.Longitude.Float64
		dto.Longitude = &v
	}
	if r.AnnotationsUpdatedBy.Valid {
		dto.AnnotationsUpdatedBy = r.AnnotationsUpdatedBy.String
	}
	if r.ReviewedBy.Valid {
		dto.ReviewedBy = r.ReviewedBy.String
	}
	return dto
}

func toVideoDTOs(recs []*media.Record) []videoDTO {
	out := make([]videoDTO, 0, len(recs))
	for _, r := range recs {
		out = append(out, toVideoDTO(r))
	}
	return out
}

// ListVideos implements GET /api/videos (spec.md §4.1 "List / filter
// videos").
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	f := listFilterFromQuery(r)
	recs, err := h.Media.List(r.Context(), f)
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to list videos", err))
		return
	}
	writeJSON(w, http.StatusOK, toVideoDTOs(recs))
}

// ReviewQueue implements GET /api/queue (spec.md §4.1 "Review queue").
func (h *Handler) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	f := listFilterFromQuery(r)
	recs, err := h.Media.Queue(r.Context(), f)
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to list review queue", err))
		return
	}
	writeJSON(w, http.StatusOK, toVideoDTOs(recs))
}

func listFilterFromQuery(r *http.Request) media.ListFilter {
	q := r.URL.Query()
	f := media.ListFilter{
		DeviceID:     q.Get("device_id"),
		VerifiedOnly: q.Get("verified_only") == "true",
		Category:     q.Get("category"),
		MediaType:    media.Type(q.Get("media_type")),
		Source:       q.Get("source"),
		SearchText:   q.Get("search"),
		ReviewStatus: q.Get("review_status"),
		Sort:         q.Get("sort"),
	}
	if tags, ok := q["tag"]; ok {
		f.TagsContainAll = tags
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		f.Offset = offset
	}
	return f
}

// GetVideo implements GET /api/videos/{id} (spec.md §4.1 "Get video
// details").
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.Media.Get(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoDTO(rec))
}

// PlaybackURL implements GET /api/videos/{id}/playback-url (spec.md
// §4.1 "Presigned playback URL").
func (h *Handler) PlaybackURL(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.Media.Get(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	url, err := h.Objects.PresignPlaybackURL(r.Context(), rec.ObjectName)
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to presign playback url", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"playback_url": url})
}

type annotationRequest struct {
	DeviceID string `json:"device_id"`
	Category string `json:"category"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

// UpdateAnnotationsDevice implements PUT /api/videos/{id}/annotations
// (spec.md §4.1 "Update annotations (device)"): only the owning device
// id may update.
func (h *Handler) UpdateAnnotationsDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req annotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed JSON body"))
		return
	}
	if req.DeviceID == "" {
		apierr.WriteError(w, r, apierr.Validation("device_id is required"))
		return
	}

	rec, err := h.Media.UpdateAnnotationsByDevice(r.Context(), id, req.DeviceID, media.Annotation{
		Category: req.Category,
		Location: req.Location,
		Notes:    req.Notes,
	})
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoDTO(rec))
}

// UpdateAnnotationsWeb implements PUT /api/videos/{id}/annotations/web
// (spec.md §4.1 "Update annotations (web)"): any authenticated staff
// member may update any video.
func (h *Handler) UpdateAnnotationsWeb(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		apierr.WriteError(w, r, apierr.Auth("not authenticated"))
		return
	}

	var req annotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed JSON body"))
		return
	}

	rec, err := h.Media.UpdateAnnotationsByStaff(r.Context(), id, subject.UserID, media.Annotation{
		Category: req.Category,
		Location: req.Location,
		Notes:    req.Notes,
	})
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoDTO(rec))
}

type reviewStatusRequest struct {
	Status string `json:"status"`
}

// SetReviewStatus implements PUT /api/videos/{id}/review (spec.md
// §4.1 "Review queue").
func (h *Handler) SetReviewStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		apierr.WriteError(w, r, apierr.Auth("not authenticated"))
		return
	}

	var req reviewStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed JSON body"))
		return
	}

	rec, err := h.Media.SetReviewStatus(r.Context(), id, req.Status, subject.UserID)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoDTO(rec))
}

// SoftDeleteVideo implements DELETE /api/videos/{id} (spec.md §4.1
// "Soft delete"): admin only.
func (h *Handler) SoftDeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		apierr.WriteError(w, r, apierr.Auth("not authenticated"))
		return
	}

	if err := h.Media.SoftDelete(r.Context(), id, subject.UserID); err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

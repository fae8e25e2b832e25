package bridgeapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/queue"
)

type jobDTO struct {
	MediaID           string `json:"media_id"`
	ObjectName        string `json:"object_name"`
	Status            string `json:"status"`
	VisualIndexed     bool   `json:"visual_indexed"`
	TranscriptIndexed bool   `json:"transcript_indexed"`
	CaptionIndexed    bool   `json:"caption_indexed"`
	ClipIndexed       bool   `json:"clip_indexed"`
	FrameCount        int    `json:"frame_count"`
	TranscriptCount   int    `json:"transcript_count"`
	CaptionCount      int    `json:"caption_count"`
	ClipCount         int    `json:"clip_count"`
	ActionCount       int    `json:"action_count"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

func toJobDTO(j *queue.Job) jobDTO {
	dto := jobDTO{
		MediaID:           j.MediaID,
		ObjectName:        j.ObjectName,
		Status:            string(j.Status),
		VisualIndexed:     j.VisualIndexed,
		TranscriptIndexed: j.TranscriptIndexed,
		CaptionIndexed:    j.CaptionIndexed,
		ClipIndexed:       j.ClipIndexed,
		FrameCount:        j.FrameCount,
		TranscriptCount:   j.TranscriptCount,
		CaptionCount:      j.CaptionCount,
		ClipCount:         j.ClipCount,
		ActionCount:       j.ActionCount,
	}
	if j.ErrorMessage.Valid {
		dto.ErrorMessage = j.ErrorMessage.String
	}
	return dto
}

// IndexingStatus implements GET /indexing/status/{id} (spec.md §6).
func (h *Handler) IndexingStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.Queue.Get(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(job))
}

// IndexingStatusSummary implements GET /indexing/status (spec.md §6):
// a per-status count across the whole job table.
func (h *Handler) IndexingStatusSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Queue.StatusCounts(r.Context())
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to summarize indexing status", err))
		return
	}
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	writeJSON(w, http.StatusOK, out)
}

// ReindexPending implements the admin "full reindex" reset (spec.md
// §4.3): never refuses.
func (h *Handler) ReindexPending(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Queue.ResetPending(r.Context(), id); err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReindexPendingVisual implements the admin "re-embed visual only"
// reset (spec.md §4.3): refuses while the job is pending or processing.
func (h *Handler) ReindexPendingVisual(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Queue.ResetPendingVisual(r.Context(), id); err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReindexPendingFix implements the admin "fill missing modalities"
// reset (spec.md §4.3): refuses while the job is pending or processing.
func (h *Handler) ReindexPendingFix(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Queue.ResetPendingFix(r.Context(), id); err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

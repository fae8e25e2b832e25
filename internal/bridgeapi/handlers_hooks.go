package bridgeapi

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/queue"
)

type videoUploadedHookRequest struct {
	VideoID    string `json:"video_id"`
	ObjectName string `json:"object_name"`
}

// VideoUploadedHook implements POST /hooks/video-uploaded (spec.md
// §4.3): an unauthenticated internal call from the Ingest API. Two
// identical POSTs for the same video id produce exactly one job row.
func (h *Handler) VideoUploadedHook(w http.ResponseWriter, r *http.Request) {
	var req videoUploadedHookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed JSON body"))
		return
	}
	if req.VideoID == "" || req.ObjectName == "" {
		apierr.WriteError(w, r, apierr.Validation("video_id and object_name are required"))
		return
	}

	err := h.Queue.EnqueueFromHook(r.Context(), req.VideoID, req.ObjectName)
	if errors.Is(err, queue.ErrAlreadyQueued) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_queued"})
		return
	}
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to enqueue indexing job", err))
		return
	}

	h.Hub.BroadcastIndexingProgress(req.VideoID, string(queue.StatusPending))
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

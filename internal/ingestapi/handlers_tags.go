package ingestapi

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/auth"
)

// ListTags implements GET /api/tags (spec.md §4.1 "Tag management").
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Media.ListTags(r.Context())
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to list tags", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"tags": tags})
}

type tagRequest struct {
	Tag string `json:"tag"`
}

// AddTag implements POST /api/tags (spec.md §4.1 "Tag management"):
// staff only.
func (h *Handler) AddTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tag == "" {
		apierr.WriteError(w, r, apierr.Validation("tag is required"))
		return
	}
	if err := h.Media.AddTag(r.Context(), req.Tag); err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to add tag", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTag implements DELETE /api/tags (spec.md §4.1 "Tag
// management"): admin only.
func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		apierr.WriteError(w, r, apierr.Auth("not authenticated"))
		return
	}

	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tag == "" {
		apierr.WriteError(w, r, apierr.Validation("tag is required"))
		return
	}

	affected, err := h.Media.DeleteTag(r.Context(), req.Tag, subject.UserID)
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to delete tag", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"affected_count": affected})
}

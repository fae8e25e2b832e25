package bridgeapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/tomtom215/opentestimony/internal/apierr"
)

func queryAndLimit(r *http.Request) (string, int) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	return q.Get("q"), limit
}

func writeSearchResult(w http.ResponseWriter, r *http.Request, resp any, err error) {
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("search failed", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SearchVisualText implements GET /search/visual (spec.md §4.7
// "Visual (text query)"): encode the query and find nearest frames.
func (h *Handler) SearchVisualText(w http.ResponseWriter, r *http.Request) {
	q, limit := queryAndLimit(r)
	if q == "" {
		apierr.WriteError(w, r, apierr.Validation("q is required"))
		return
	}
	resp, err := h.Search.VisualText(r.Context(), q, limit)
	writeSearchResult(w, r, resp, err)
}

// SearchVisualImage implements POST /search/visual (spec.md §4.7
// "Visual (image)"): an uploaded image is the query.
func (h *Handler) SearchVisualImage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	image, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	if err != nil {
		apierr.WriteError(w, r, apierr.Validation("failed to read image body"))
		return
	}
	if len(image) == 0 {
		apierr.WriteError(w, r, apierr.Validation("image body is required"))
		return
	}
	_, limit := queryAndLimit(r)
	resp, err := h.Search.VisualImage(r.Context(), image, limit)
	writeSearchResult(w, r, resp, err)
}

// SearchTranscriptSemantic implements GET /search/transcript (spec.md
// §4.7 "Transcript (semantic)").
func (h *Handler) SearchTranscriptSemantic(w http.ResponseWriter, r *http.Request) {
	q, limit := queryAndLimit(r)
	if q == "" {
		apierr.WriteError(w, r, apierr.Validation("q is required"))
		return
	}
	resp, err := h.Search.TranscriptSemantic(r.Context(), q, limit)
	writeSearchResult(w, r, resp, err)
}

// SearchTranscriptExact implements GET /search/transcript/exact
// (spec.md §4.7 "Transcript (exact)").
func (h *Handler) SearchTranscriptExact(w http.ResponseWriter, r *http.Request) {
	q, limit := queryAndLimit(r)
	if q == "" {
		apierr.WriteError(w, r, apierr.Validation("q is required"))
		return
	}
	resp, err := h.Search.TranscriptExact(r.Context(), q, limit)
	writeSearchResult(w, r, resp, err)
}

// SearchCaptions implements GET /search/captions (spec.md §4.7
// "Captions").
func (h *Handler) SearchCaptions(w http.ResponseWriter, r *http.Request) {
	q, limit := queryAndLimit(r)
	if q == "" {
		apierr.WriteError(w, r, apierr.Validation("q is required"))
		return
	}
	resp, err := h.Search.CaptionSemantic(r.Context(), q, limit)
	writeSearchResult(w, r, resp, err)
}

// SearchClip implements GET /search/clip (spec.md §4.7 "Clip (visual
// temporal window)").
func (h *Handler) SearchClip(w http.ResponseWriter, r *http.Request) {
	q, limit := queryAndLimit(r)
	if q == "" {
		apierr.WriteError(w, r, apierr.Validation("q is required"))
		return
	}
	resp, err := h.Search.ClipVisual(r.Context(), q, limit)
	writeSearchResult(w, r, resp, err)
}

// SearchAction implements GET /search/action (spec.md §4.7 "Action
// captions").
func (h *Handler) SearchAction(w http.ResponseWriter, r *http.Request) {
	q, limit := queryAndLimit(r)
	if q == "" {
		apierr.WriteError(w, r, apierr.Validation("q is required"))
		return
	}
	resp, err := h.Search.ActionSemantic(r.Context(), q, limit)
	writeSearchResult(w, r, resp, err)
}

// SearchCombined implements GET /search/combined (spec.md §4.7
// "Combined"): merges visual-text and caption-semantic hits.
func (h *Handler) SearchCombined(w http.ResponseWriter, r *http.Request) {
	q, limit := queryAndLimit(r)
	if q == "" {
		apierr.WriteError(w, r, apierr.Validation("q is required"))
		return
	}
	resp, err := h.Search.Combined(r.Context(), q, limit)
	writeSearchResult(w, r, resp, err)
}

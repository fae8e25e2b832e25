package bridgeapi

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/opentestimony/internal/apierr"
)

// SearchAnalytics implements GET /admin/search-analytics (from
// original_source's scripts/search-analytics.py, which queried
// search_queries directly with psycopg2 as a standalone CLI tool; this
// exposes the same aggregation as an admin HTTP endpoint instead):
// admin only. Accepts optional ?days= and ?top= query parameters.
func (h *Handler) SearchAnalytics(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 14)
	top := queryInt(r, "top", 10)

	analytics, err := h.Search.Analytics(r.Context(), days, top)
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to compute search analytics", err))
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

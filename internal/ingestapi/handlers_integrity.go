package ingestapi

import (
	"net/http"

	"github.com/tomtom215/opentestimony/internal/apierr"
)

// IntegrityReport implements GET /api/integrity-report (spec.md §4.1
// "Integrity report export"): admin only.
func (h *Handler) IntegrityReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Media.IntegrityReport(r.Context())
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to build integrity report", err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

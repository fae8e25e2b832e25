package ingestapi

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/opentestimony/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("ingestapi: write response body")
	}
}

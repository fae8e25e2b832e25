package ingestapi

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/opentestimony/internal/apierr"
)

type registerDeviceRequest struct {
	DeviceID     string `json:"device_id"`
	PublicKeyPEM string `json:"public_key_pem"`
	Info         string `json:"info"`
	CryptoScheme string `json:"crypto_scheme"`
}

type registerDeviceResponse struct {
	DeviceID     string `json:"device_id"`
	CryptoScheme string `json:"crypto_scheme"`
	Status       string `json:"status"`
}

// RegisterDevice implements POST /api/devices/register (spec.md §4.1
// "Register device"): idempotent create, or a crypto_upgrade when an
// already-registered device presents a different scheme.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed JSON body"))
		return
	}
	if req.DeviceID == "" || req.PublicKeyPEM == "" {
		apierr.WriteError(w, r, apierr.Validation("device_id and public_key_pem are required"))
		return
	}

	d, err := h.Devices.Register(r.Context(), req.DeviceID, req.PublicKeyPEM, req.Info, req.CryptoScheme)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, registerDeviceResponse{
		DeviceID:     d.DeviceID,
		CryptoScheme: d.CryptoScheme,
		Status:       "registered",
	})
}

package ingestapi

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/audit"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Login implements POST /api/auth/login for the staff/admin web
// console session (internal/auth.SessionIssuer.Login).
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed JSON body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		apierr.WriteError(w, r, apierr.Validation("username and password are required"))
		return
	}

	user, err := h.Sessions.Login(w, r, req.Username, req.Password)
	if err != nil {
		_, _ = h.Ledger.Append(r.Context(), audit.AppendInput{
			EventType: audit.EventAuthFailure,
			EventData: map[string]any{"username": req.Username},
		})
		apierr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	})
}

// Logout implements POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(w, r); err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to revoke session", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

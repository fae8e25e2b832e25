package ingestapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/auth"
)

type userDTO struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
}

func toUserDTO(u *auth.User) userDTO {
	return userDTO{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Role: u.Role, Active: u.Active}
}

type createUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// CreateUser implements POST /api/users (spec.md §3 User lifecycle
// "created by admin"): admin only, Casbin-gated on (admin, users,
// create).
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		apierr.WriteError(w, r, apierr.Auth("not authenticated"))
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed JSON body"))
		return
	}
	if req.Username == "" || req.Password == "" || req.DisplayName == "" {
		apierr.WriteError(w, r, apierr.Validation("username, password, and display_name are required"))
		return
	}

	user, err := h.Users.Create(r.Context(), subject.UserID, req.Username, req.Password, req.DisplayName, req.Role)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetUserActive implements PUT /api/users/{id}/active (spec.md §3
// "deactivation is a boolean flip"): admin only, Casbin-gated on
// (admin, users, update).
func (h *Handler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		apierr.WriteError(w, r, apierr.Auth("not authenticated"))
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, r, apierr.Validation("malformed JSON body"))
		return
	}

	userID := chi.URLParam(r, "id")
	if err := h.Users.SetActive(r.Context(), subject.UserID, userID, req.Active); err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// ResetUserPassword implements PUT /api/users/{id}/password (spec.md §3
// "password reset rewrites the hash"): admin only, Casbin-gated on
// (admin, users, update).
func (h *Handler) ResetUserPassword(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		apierr.WriteError(w, r, apierr.Auth("not authenticated"))
		return
	}

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		apierr.WriteError(w, r, apierr.Validation("new_password is required"))
		return
	}

	userID := chi.URLParam(r, "id")
	if err := h.Users.ResetPassword(r.Context(), subject.UserID, userID, req.NewPassword); err != nil {
		apierr.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AccessLog implements GET /api/access-log (from original_source's
// scan-access-log.py, adapted to read the audit ledger instead of a
// local access.jsonl file): admin only, Casbin-gated on (admin,
// access_log, read). Lists recent authentication failures and
// authorization denials for operational triage.
func (h *Handler) AccessLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Ledger.GetRecentByEventTypes(r.Context(), []audit.EventType{audit.EventAuthFailure, audit.EventAuthzDenied}, 200)
	if err != nil {
		apierr.WriteError(w, r, apierr.Backend("failed to read access log", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

package auth

import (
	"context"
	"net/http"

	"github.com/tomtom215/opentestimony/internal/apierr"
)

type contextKey string

// AuthSubjectContextKey is the request-context key the session
// middleware stores the authenticated Subject under.
const AuthSubjectContextKey contextKey = "auth_subject"

// Subject is the authenticated principal for a request.
type Subject struct {
	UserID   string
	Username string
	Role     string
}

// HasRole reports whether the subject holds the given role.
func (s Subject) HasRole(role string) bool {
	return s.Role == role
}

// SessionAuthenticator validates the session cookie on each request and,
// if valid and not revoked, stores a Subject in the request context.
// The bridge uses the same JWTManager (sharing SessionSecret) but has no
// RevocationStore of its own — it trusts the signature and expiry alone,
// per spec.md §4.8's "bridge validates tokens statelessly" design.
type SessionAuthenticator struct {
	jwtManager *JWTManager
	revocation *RevocationStore // nil for the bridge's stateless mode
	cookieName string
}

// NewSessionAuthenticator builds a SessionAuthenticator. Pass a nil
// revocation store to skip revocation checks (the bridge's mode).
func NewSessionAuthenticator(jwtManager *JWTManager, revocation *RevocationStore, cookieName string) *SessionAuthenticator {
	return &SessionAuthenticator{jwtManager: jwtManager, revocation: revocation, cookieName: cookieName}
}

// Authenticate extracts and validates the session cookie, returning the
// Subject on success.
func (a *SessionAuthenticator) Authenticate(r *http.Request) (*Subject, error) {
	cookie, err := r.Cookie(a.cookieName)
	if err != nil {
		return nil, apierr.Auth("no session cookie")
	}

	claims, err := a.jwtManager.ValidateToken(cookie.Value)
	if err != nil {
		return nil, apierr.Auth("invalid or expired session")
	}

	if a.revocation != nil {
		revoked, err := a.revocation.IsRevoked(claims.ID)
		if err != nil {
			return nil, apierr.Backend("revocation check failed", err)
		}
		if revoked {
			return nil, apierr.Auth("session has been revoked")
		}
	}

	return &Subject{UserID: claims.Subject, Username: claims.Subject, Role: claims.Role}, nil
}

// Middleware authenticates every request and attaches the Subject to the
// context. On failure it writes the apierr.Auth error, which maps to 403;
// no 401 status is returned for a missing or invalid session.
func (a *SessionAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := a.Authenticate(r)
		if err != nil {
			apierr.WriteError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), AuthSubjectContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubjectFromContext retrieves the authenticated Subject the middleware
// attached, if any.
func SubjectFromContext(ctx context.Context) (*Subject, bool) {
	s, ok := ctx.Value(AuthSubjectContextKey).(*Subject)
	return s, ok
}

// RequireRole wraps a handler, rejecting with 403 unless the context's
// Subject holds role (or is admin, which satisfies any staff gate).
func RequireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := SubjectFromContext(r.Context())
		if !ok {
			apierr.WriteError(w, r, apierr.Auth("authentication required"))
			return
		}
		if subject.Role != role && !(role == RoleStaff && subject.Role == RoleAdmin) {
			apierr.WriteError(w, r, apierr.Auth("insufficient role"))
			return
		}
		next(w, r)
	}
}

// RequireStaff gates a handler to staff or admin sessions.
func RequireStaff(next http.HandlerFunc) http.HandlerFunc { return RequireRole(RoleStaff, next) }

// RequireAdmin gates a handler to admin sessions only.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc { return RequireRole(RoleAdmin, next) }

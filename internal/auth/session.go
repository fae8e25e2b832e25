// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/opentestimony/internal/config"
)

// SessionIssuer combines the user store, token manager, and revocation
// store into the login/logout operations spec.md §4.1's auth endpoints
// need.
type SessionIssuer struct {
	Users      *UserStore
	jwtManager *JWTManager
	revocation *RevocationStore
	cookieName string
	timeout    time.Duration
	secure     bool
}

// NewSessionIssuer wires a SessionIssuer from configuration. environment
// is config.Server.Environment — the cookie's Secure flag is set for
// anything other than "development", since local HTTP deployments can't
// carry a Secure cookie.
func NewSessionIssuer(users *UserStore, jwtManager *JWTManager, revocation *RevocationStore, cfg *config.SecurityConfig, environment string) *SessionIssuer {
	cookieName := cfg.SessionCookieName
	if cookieName == "" {
		cookieName = "ot_session"
	}
	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	return &SessionIssuer{
		Users:      users,
		jwtManager: jwtManager,
		revocation: revocation,
		cookieName: cookieName,
		timeout:    timeout,
		secure:     !strings.EqualFold(environment, "development"),
	}
}

// Login authenticates credentials, issues a session cookie on w, and
// returns the authenticated user.
func (si *SessionIssuer) Login(w http.ResponseWriter, r *http.Request, username, password string) (*User, error) {
	u, err := si.Users.Authenticate(r.Context(), username, password)
	if err != nil {
		return nil, err
	}

	token, _, err := si.jwtManager.GenerateToken(u.Username, u.Role)
	if err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     si.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   si.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(si.timeout),
	})

	_ = si.Users.TouchLogin(r.Context(), u.ID)
	return u, nil
}

// Logout revokes the current session's JTI (if a revocation store is
// configured) and clears the cookie.
func (si *SessionIssuer) Logout(w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(si.cookieName)
	if err == nil && si.revocation != nil {
		if claims, vErr := si.jwtManager.ValidateToken(cookie.Value); vErr == nil {
			_ = si.revocation.Revoke(claims.ID, claims.ExpiresAt.Time)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     si.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   si.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	return nil
}

// CookieName returns the session cookie name this issuer sets.
func (si *SessionIssuer) CookieName() string { return si.cookieName }

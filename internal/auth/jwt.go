// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

// Package auth implements the password + signed-session-token
// authentication spec.md §4.8 describes: bcrypt-hashed passwords, an
// HMAC-signed session token the bridge can validate statelessly against
// the same shared secret, and a Badger-backed revocation list so a
// logout actually invalidates a token before its expiry.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/opentestimony/internal/config"
)

// Claims represents the session token's payload: subject, role, and a
// unique ID so a specific token can be revoked independent of its
// expiry.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager creates and validates HMAC-signed session tokens shared
// between the ingest API (which issues them) and the bridge (which only
// validates them, holding no session store of its own).
type JWTManager struct {
	secret  []byte
	timeout time.Duration
}

// NewJWTManager builds a JWTManager from the shared session secret.
//
// The secret must be at least 32 characters in production (enforced by
// config.Validate), since a short HMAC key is brute-forceable.
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("auth: session secret is required")
	}
	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	return &JWTManager{secret: []byte(cfg.SessionSecret), timeout: timeout}, nil
}

// GenerateToken issues a signed session token for subject (the
// username) with the given role, along with the token's unique JTI so
// the caller can register it for later revocation.
func (m *JWTManager) GenerateToken(subject, role string) (token string, jti string, err error) {
	jti = uuid.NewString()
	now := time.Now()
	claims := &Claims{
		Subject: subject,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, jti, nil
}

// ValidateToken parses and verifies a session token's signature and
// expiry. It does not check revocation — callers combine this with a
// RevocationStore lookup on the returned claims' JTI.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	return claims, nil
}

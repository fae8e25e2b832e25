// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the teacher's basic-auth manager's cost/performance
// tradeoff.
const bcryptCost = 12

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. bcrypt's compare
// is already constant-time.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

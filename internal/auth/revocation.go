// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// revokedKeyPrefix namespaces revocation entries in the shared Badger
// store, mirroring the teacher's session-store key-prefix convention.
const revokedKeyPrefix = "revoked_jti:"

// RevocationStore tracks logged-out session tokens by JTI until their
// natural expiry, at which point Badger's TTL drops the entry. The
// token itself carries the session state (username, role), so unlike
// the teacher's full Session CRUD store this only needs a revoke/check
// surface.
type RevocationStore struct {
	db *badger.DB
}

// NewRevocationStore opens (or creates) a Badger database at path.
func NewRevocationStore(path string) (*RevocationStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("auth: open revocation store: %w", err)
	}
	return &RevocationStore{db: db}, nil
}

// Close releases the underlying Badger database.
func (s *RevocationStore) Close() error {
	return s.db.Close()
}

// Revoke marks jti as revoked until expiresAt, after which Badger drops
// the entry on its own (the token would have expired anyway by then).
func (s *RevocationStore) Revoke(jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already expired, nothing to track
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(revokedKeyPrefix+jti), []byte{1}).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// IsRevoked reports whether jti has been revoked (and not yet expired
// out of the store).
func (s *RevocationStore) IsRevoked(jti string) (bool, error) {
	var revoked bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(revokedKeyPrefix + jti))
		if errors.Is(err, badger.ErrKeyNotFound) {
			revoked = false
			return nil
		}
		if err != nil {
			return err
		}
		revoked = true
		return nil
	})
	return revoked, err
}

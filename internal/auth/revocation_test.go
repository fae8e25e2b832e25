package auth_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/opentestimony/internal/auth"
)

func newTestRevocationStore(t *testing.T) *auth.RevocationStore {
	t.Helper()
	s, err := auth.NewRevocationStore(filepath.Join(t.TempDir(), "revocation"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRevocationStore_UnrevokedJTIIsNotRevoked(t *testing.T) {
	s := newTestRevocationStore(t)
	revoked, err := s.IsRevoked("never-seen-jti")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRevocationStore_RevokeThenCheck(t *testing.T) {
	s := newTestRevocationStore(t)

	require.NoError(t, s.Revoke("jti-1", time.Now().Add(time.Hour)))

	revoked, err := s.IsRevoked("jti-1")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestRevocationStore_AlreadyExpiredRevokeIsNoop(t *testing.T) {
	s := newTestRevocationStore(t)

	require.NoError(t, s.Revoke("jti-past", time.Now().Add(-time.Hour)))

	revoked, err := s.IsRevoked("jti-past")
	require.NoError(t, err)
	require.False(t, revoked)
}

package devices_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/devices"
	"github.com/tomtom215/opentestimony/internal/store"
)

func newTestStore(t *testing.T) *devices.Store {
	t.Helper()
	dir := t.TempDir()
	db, err := store.New(&config.DatabaseConfig{
		Path:               filepath.Join(dir, "devices.duckdb"),
		MaxMemory:          "512MB",
		VisionEmbeddingDim: 8,
		TextEmbeddingDim:   8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return devices.NewStore(db, audit.NewLedger(db))
}

func TestRegister_CreatesNewDevice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d, err := s.Register(ctx, "dev-A", "key-material", "a phone", "hmac")
	require.NoError(t, err)
	require.Equal(t, "dev-A", d.DeviceID)
	require.Equal(t, "hmac", d.CryptoScheme)
}

func TestRegister_IdenticalIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "dev-A", "key-material", "a phone", "hmac")
	require.NoError(t, err)

	d2, err := s.Register(ctx, "dev-A", "key-material", "a phone", "hmac")
	require.NoError(t, err)
	require.Equal(t, "key-material", d2.PublicKey)
}

func TestRegister_CryptoUpgradeOverwritesKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "dev-A", "old-key", "", "hmac")
	require.NoError(t, err)

	d2, err := s.Register(ctx, "dev-A", "new-ecdsa-key", "", "ecdsa")
	require.NoError(t, err)
	require.Equal(t, "new-ecdsa-key", d2.PublicKey)
	require.Equal(t, "ecdsa", d2.CryptoScheme)

	fetched, err := s.Get(ctx, "dev-A")
	require.NoError(t, err)
	require.Equal(t, "ecdsa", fetched.CryptoScheme)
}

func TestVerifyOwnership_MismatchFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "dev-A", "the-real-key", "", "hmac")
	require.NoError(t, err)

	_, err = s.VerifyOwnership(ctx, "dev-A", "a-different-key")
	require.Error(t, err)
}

func TestVerifyOwnership_NewlineNormalizedMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "dev-A", "line1\nline2\n", "", "hmac")
	require.NoError(t, err)

	_, err = s.VerifyOwnership(ctx, "dev-A", "line1\r\nline2\r\n")
	require.NoError(t, err)
}

func TestGet_UnregisteredDeviceFails(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "does-not-exist")
	require.Error(t, err)
}

// Package devices implements registration and crypto-scheme upgrade for
// mobile capture sources (spec.md §3 Device, §4.1 "Register device").
package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/store"
)

// Device is a registered capture source.
type Device struct {
	DeviceID     string
	PublicKey    string
	Info         string
	CryptoScheme string
	RegisteredAt time.Time
}

// Store manages device registration.
type Store struct {
	db     *store.DB
	ledger *audit.Ledger
}

// NewStore wraps db/ledger for device operations.
func NewStore(db *store.DB, ledger *audit.Ledger) *Store {
	return &Store{db: db, ledger: ledger}
}

// NormalizeKey strips trailing-whitespace differences between PEM blocks
// so two byte-different-but-equivalent representations compare equal
// (spec.md §4.1 step 2: "match ... byte-for-byte after newline
// normalisation").
func NormalizeKey(key string) string {
	lines := strings.Split(strings.ReplaceAll(key, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Get returns the registered device, or apierr.Auth if unregistered.
func (s *Store) Get(ctx context.Context, deviceID string) (*Device, error) {
	var d Device
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT device_id, public_key, COALESCE(info, ''), crypto_scheme, registered_at FROM devices WHERE device_id = ?`,
		deviceID,
	).Scan(&d.DeviceID, &d.PublicKey, &d.Info, &d.CryptoScheme, &d.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.Auth("device is not registered")
	}
	if err != nil {
		return nil, fmt.Errorf("devices: get: %w", err)
	}
	return &d, nil
}

// Register creates the device if absent, or treats a differing crypto
// scheme as an upgrade (overwrite key+scheme, audit entry with action
// "crypto_upgrade"). An identical re-registration succeeds idempotently
// without writing anything (spec.md §4.1 "Register device").
func (s *Store) Register(ctx context.Context, deviceID, publicKey, info, cryptoScheme string) (*Device, error) {
	if cryptoScheme == "" {
		cryptoScheme = "hmac"
	}
	normalizedKey := NormalizeKey(publicKey)

	existing, err := s.Get(ctx, deviceID)
	switch {
	case err == nil:
		if existing.CryptoScheme == cryptoScheme && NormalizeKey(existing.PublicKey) == normalizedKey {
			return existing, nil
		}

		_, err = s.db.Conn().ExecContext(ctx,
			`UPDATE devices SET public_key = ?, info = ?, crypto_scheme = ? WHERE device_id = ?`,
			publicKey, info, cryptoScheme, deviceID,
		)
		if err != nil {
			return nil, fmt.Errorf("devices: upgrade: %w", err)
		}

		_, auditErr := s.ledger.Append(ctx, audit.AppendInput{
			EventType: audit.EventDeviceRegister,
			DeviceID:  deviceID,
			EventData: map[string]any{
				"action":          "crypto_upgrade",
				"previous_scheme": existing.CryptoScheme,
				"new_scheme":      cryptoScheme,
			},
		})
		if auditErr != nil {
			return nil, fmt.Errorf("devices: audit upgrade: %w", auditErr)
		}

		return &Device{DeviceID: deviceID, PublicKey: publicKey, Info: info, CryptoScheme: cryptoScheme, RegisteredAt: existing.RegisteredAt}, nil

	default:
		var apiErr *apierr.Error
		if !errors.As(err, &apiErr) || apiErr.Kind != apierr.KindAuth {
			return nil, err
		}
	}

	now := time.Now().UTC()
	_, err = s.db.Conn().ExecContext(ctx,
		`INSERT INTO devices (device_id, public_key, info, crypto_scheme, registered_at) VALUES (?, ?, ?, ?, ?)`,
		deviceID, publicKey, info, cryptoScheme, now,
	)
	if err != nil {
		return nil, fmt.Errorf("devices: register: %w", err)
	}

	_, auditErr := s.ledger.Append(ctx, audit.AppendInput{
		EventType: audit.EventDeviceRegister,
		DeviceID:  deviceID,
		EventData: map[string]any{"action": "create", "crypto_scheme": cryptoScheme},
	})
	if auditErr != nil {
		return nil, fmt.Errorf("devices: audit register: %w", auditErr)
	}

	return &Device{DeviceID: deviceID, PublicKey: publicKey, Info: info, CryptoScheme: cryptoScheme, RegisteredAt: now}, nil
}

// VerifyOwnership confirms the envelope's public key matches the stored
// key byte-for-byte after newline normalisation (spec.md §4.1 step 2).
func (s *Store) VerifyOwnership(ctx context.Context, deviceID, publicKeyPEM string) (*Device, error) {
	d, err := s.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if NormalizeKey(d.PublicKey) != NormalizeKey(publicKeyPEM) {
		return nil, apierr.Auth("public key does not match registered device")
	}
	return d, nil
}

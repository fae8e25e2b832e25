// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/store"
)

// Role names, matching spec.md §3's two-role split.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User is one web operator account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	DisplayName  string
	Role         string
	Active       bool
	CreatedAt    time.Time
	LastLoginAt  sql.NullTime
}

// UserStore manages the users table.
type UserStore struct {
	db     *store.DB
	ledger *audit.Ledger
}

// NewUserStore wraps db for user account operations. ledger receives a
// user_created/user_updated/password_reset entry for every mutating
// operation (spec.md §4.2's event catalogue), mirroring
// internal/media.Store's NewStore(db, ledger) constructor pattern.
func NewUserStore(db *store.DB, ledger *audit.Ledger) *UserStore {
	return &UserStore{db: db, ledger: ledger}
}

// SeedAdmin creates the initial admin account from configuration when the
// users table is empty (spec.md §3 User lifecycle).
func (s *UserStore) SeedAdmin(ctx context.Context, cfg *config.SecurityConfig) error {
	var count int
	if err := s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("auth: count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return fmt.Errorf("auth: no users exist and no admin credentials configured to seed one")
	}

	hash, err := HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	_, err = s.db.Conn().ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, display_name, role, active, created_at)
		 VALUES (?, ?, ?, ?, ?, true, ?)`,
		uuid.NewString(), cfg.AdminUsername, hash, cfg.AdminUsername, RoleAdmin, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("auth: seed admin: %w", err)
	}
	return nil
}

// GetByUsername looks up an active or inactive account by username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, username, password_hash, display_name, role, active, created_at, last_login_at
		 FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// GetByID looks up an account by id.
func (s *UserStore) GetByID(ctx context.Context, id string) (*User, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, username, password_hash, display_name, role, active, created_at, last_login_at
		 FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DisplayName, &u.Role, &u.Active, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("auth: scan user: %w", err)
	}
	return &u, nil
}

// Authenticate validates username/password and returns the user on
// success, or an apierr.KindAuth error otherwise. It does not touch
// last_login_at directly; call TouchLogin after a successful login.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) && apiErr.Kind == apierr.KindNotFound {
			return nil, apierr.Auth("invalid username or password")
		}
		return nil, err
	}
	if !u.Active {
		return nil, apierr.Auth("account is deactivated")
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, apierr.Auth("invalid username or password")
	}
	return u, nil
}

// TouchLogin stamps last_login_at to now.
func (s *UserStore) TouchLogin(ctx context.Context, userID string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("auth: touch login: %w", err)
	}
	return nil
}

// Create inserts a new user account (admin-only operation, spec.md §3
// "created by admin") and appends the matching user_created audit
// entry, actorID being the admin who performed the creation.
func (s *UserStore) Create(ctx context.Context, actorID, username, password, displayName, role string) (*User, error) {
	if role != RoleAdmin && role != RoleStaff {
		return nil, apierr.Validation("role must be admin or staff")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = s.db.Conn().ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, display_name, role, active, created_at)
		 VALUES (?, ?, ?, ?, ?, true, ?)`,
		id, username, hash, displayName, role, now,
	)
	if err != nil {
		if store.IsTransactionConflict(err) {
			return nil, apierr.Conflict("username already exists")
		}
		return nil, fmt.Errorf("auth: create user: %w", err)
	}

	if _, err := s.ledger.Append(ctx, audit.AppendInput{
		EventType: audit.EventUserCreated,
		EventData: map[string]any{"target_user_id": id, "username": username, "role": role},
		UserID:    actorID,
	}); err != nil {
		return nil, fmt.Errorf("auth: append user_created audit entry: %w", err)
	}

	return &User{ID: id, Username: username, PasswordHash: hash, DisplayName: displayName, Role: role, Active: true, CreatedAt: now}, nil
}

// SetActive flips the deactivation flag (spec.md §3 "deactivation is a
// boolean flip") and appends the matching user_updated audit entry.
func (s *UserStore) SetActive(ctx context.Context, actorID, userID string, active bool) error {
	res, err := s.db.Conn().ExecContext(ctx, `UPDATE users SET active = ? WHERE id = ?`, active, userID)
	if err != nil {
		return fmt.Errorf("auth: set active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.NotFound("user not found")
	}

	if _, err := s.ledger.Append(ctx, audit.AppendInput{
		EventType: audit.EventUserUpdated,
		EventData: map[string]any{"target_user_id": userID, "active": active},
		UserID:    actorID,
	}); err != nil {
		return fmt.Errorf("auth: append user_updated audit entry: %w", err)
	}
	return nil
}

// ResetPassword rewrites the password hash (spec.md §3 "password reset
// rewrites the hash") and appends the matching password_reset audit
// entry. The new hash itself is never part of the event payload.
func (s *UserStore) ResetPassword(ctx context.Context, actorID, userID, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	res, err := s.db.Conn().ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID)
	if err != nil {
		return fmt.Errorf("auth: reset password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.NotFound("user not found")
	}

	if _, err := s.ledger.Append(ctx, audit.AppendInput{
		EventType: audit.EventPasswordReset,
		EventData: map[string]any{"target_user_id": userID},
		UserID:    actorID,
	}); err != nil {
		return fmt.Errorf("auth: append password_reset audit entry: %w", err)
	}
	return nil
}

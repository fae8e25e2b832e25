package auth_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/auth"
	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/store"
)

func newTestUserStore(t *testing.T) (*auth.UserStore, *audit.Ledger) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.New(&config.DatabaseConfig{
		Path:               filepath.Join(dir, "users.duckdb"),
		MaxMemory:          "512MB",
		VisionEmbeddingDim: 8,
		TextEmbeddingDim:   8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ledger := audit.NewLedger(db)
	return auth.NewUserStore(db, ledger), ledger
}

func TestSeedAdmin_CreatesAdminWhenEmpty(t *testing.T) {
	s, _ := newTestUserStore(t)
	ctx := context.Background()

	err := s.SeedAdmin(ctx, &config.SecurityConfig{AdminUsername: "root", AdminPassword: "hunter2hunter2"})
	require.NoError(t, err)

	u, err := s.GetByUsername(ctx, "root")
	require.NoError(t, err)
	require.Equal(t, auth.RoleAdmin, u.Role)
	require.True(t, u.Active)
}

func TestSeedAdmin_SkipsWhenUsersExist(t *testing.T) {
	s, _ := newTestUserStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "", "existing", "password123", "Existing User", auth.RoleStaff)
	require.NoError(t, err)

	err = s.SeedAdmin(ctx, &config.SecurityConfig{AdminUsername: "root", AdminPassword: "hunter2hunter2"})
	require.NoError(t, err)

	_, err = s.GetByUsername(ctx, "root")
	require.Error(t, err, "seeding should have been skipped")
}

func TestSeedAdmin_FailsWithoutCredentials(t *testing.T) {
	s, _ := newTestUserStore(t)
	err := s.SeedAdmin(context.Background(), &config.SecurityConfig{})
	require.Error(t, err)
}

func TestCreate_RejectsUnknownRole(t *testing.T) {
	s, _ := newTestUserStore(t)
	_, err := s.Create(context.Background(), "admin-1", "bob", "password123", "Bob", "superuser")
	require.Error(t, err)
}

func TestCreate_DuplicateUsernameConflicts(t *testing.T) {
	s, _ := newTestUserStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "admin-1", "bob", "password123", "Bob", auth.RoleStaff)
	require.NoError(t, err)

	_, err = s.Create(ctx, "admin-1", "bob", "password456", "Bob Again", auth.RoleStaff)
	require.Error(t, err)
}

func TestCreate_AppendsUserCreatedAuditEntry(t *testing.T) {
	s, ledger := newTestUserStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, "admin-1", "carol", "password123", "Carol", auth.RoleStaff)
	require.NoError(t, err)

	result, err := ledger.VerifyChain(ctx, 0)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.EqualValues(t, 1, result.EntriesChecked)

	trail, err := ledger.GetRecentByEventTypes(ctx, []audit.EventType{audit.EventUserCreated}, 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.Equal(t, u.ID, trail[0].EventData["target_user_id"])
	require.Equal(t, "admin-1", trail[0].EventData["user_id"])
}

func TestAuthenticate_WrongPasswordFails(t *testing.T) {
	s, _ := newTestUserStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "admin-1", "dave", "correct-password", "Dave", auth.RoleStaff)
	require.NoError(t, err)

	_, err = s.Authenticate(ctx, "dave", "wrong-password")
	require.Error(t, err)
}

func TestAuthenticate_DeactivatedAccountFails(t *testing.T) {
	s, _ := newTestUserStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, "admin-1", "erin", "correct-password", "Erin", auth.RoleStaff)
	require.NoError(t, err)

	require.NoError(t, s.SetActive(ctx, "admin-1", u.ID, false))

	_, err = s.Authenticate(ctx, "erin", "correct-password")
	require.Error(t, err)
}

func TestSetActive_UnknownUserNotFound(t *testing.T) {
	s, _ := newTestUserStore(t)
	err := s.SetActive(context.Background(), "admin-1", "does-not-exist", false)
	require.Error(t, err)
}

func TestResetPassword_AllowsLoginWithNewPassword(t *testing.T) {
	s, _ := newTestUserStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, "admin-1", "frank", "old-password", "Frank", auth.RoleStaff)
	require.NoError(t, err)

	require.NoError(t, s.ResetPassword(ctx, "admin-1", u.ID, "new-password"))

	_, err = s.Authenticate(ctx, "frank", "old-password")
	require.Error(t, err)

	_, err = s.Authenticate(ctx, "frank", "new-password")
	require.NoError(t, err)
}

func TestTouchLogin_StampsLastLogin(t *testing.T) {
	s, _ := newTestUserStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, "admin-1", "grace", "password123", "Grace", auth.RoleStaff)
	require.NoError(t, err)
	require.False(t, u.LastLoginAt.Valid)

	require.NoError(t, s.TouchLogin(ctx, u.ID))

	fetched, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, fetched.LastLoginAt.Valid)
}

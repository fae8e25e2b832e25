package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/opentestimony/internal/auth"
	"github.com/tomtom215/opentestimony/internal/config"
)

func newTestSessionIssuer(t *testing.T) (*auth.SessionIssuer, *auth.UserStore, *auth.JWTManager, *auth.RevocationStore) {
	t.Helper()
	users, _ := newTestUserStore(t)
	jwtManager := newTestJWTManager(t)
	revocation := newTestRevocationStore(t)
	issuer := auth.NewSessionIssuer(users, jwtManager, revocation, &config.SecurityConfig{
		SessionCookieName: "ot_session",
		SessionTimeout:    time.Hour,
	}, "production")
	return issuer, users, jwtManager, revocation
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	issuer, users, jwtManager, _ := newTestSessionIssuer(t)

	_, err := users.Create(context.Background(), "admin-1", "holly", "correct-password", "Holly", auth.RoleStaff)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	u, err := issuer.Login(w, r, "holly", "correct-password")
	require.NoError(t, err)
	require.Equal(t, "holly", u.Username)

	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "ot_session" {
			found = c
		}
	}
	require.NotNil(t, found, "expected ot_session cookie to be set")
	require.True(t, found.HttpOnly)
	require.NotEmpty(t, found.Value)

	claims, err := jwtManager.ValidateToken(found.Value)
	require.NoError(t, err)
	require.Equal(t, "holly", claims.Subject)
}

func TestLogin_WrongPasswordReturnsError(t *testing.T) {
	issuer, users, _, _ := newTestSessionIssuer(t)

	_, err := users.Create(context.Background(), "admin-1", "ivan", "correct-password", "Ivan", auth.RoleStaff)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	_, err = issuer.Login(w, r, "ivan", "wrong-password")
	require.Error(t, err)
}

func TestLogout_RevokesSessionJTI(t *testing.T) {
	issuer, users, jwtManager, revocation := newTestSessionIssuer(t)

	_, err := users.Create(context.Background(), "admin-1", "jules", "correct-password", "Jules", auth.RoleStaff)
	require.NoError(t, err)

	loginW := httptest.NewRecorder()
	loginR := httptest.NewRequest(http.MethodPost, "/login", nil)
	_, err = issuer.Login(loginW, loginR, "jules", "correct-password")
	require.NoError(t, err)

	var cookie *http.Cookie
	for _, c := range loginW.Result().Cookies() {
		if c.Name == "ot_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	claims, err := jwtManager.ValidateToken(cookie.Value)
	require.NoError(t, err)

	logoutW := httptest.NewRecorder()
	logoutR := httptest.NewRequest(http.MethodPost, "/logout", nil)
	logoutR.AddCookie(cookie)

	require.NoError(t, issuer.Logout(logoutW, logoutR))

	revoked, err := revocation.IsRevoked(claims.ID)
	require.NoError(t, err)
	require.True(t, revoked)
}

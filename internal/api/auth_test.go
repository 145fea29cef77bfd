package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/code-wolf-byte/levelman/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	log := zerolog.Nop()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open(database.DriverSQLite, dsn, &log)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return NewAuth(db, AuthConfig{
		ClientID:      "client",
		ClientSecret:  "secret",
		CallbackURL:   "http://localhost:8080/auth/discord/callback",
		SessionSecret: "0123456789abcdef0123456789abcdef",
	}, &log)
}

// login stores a session for userID and returns its cookies.
func login(t *testing.T, a *Auth, userID string) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	session, err := a.store.Get(req, sessionName)
	require.NoError(t, err)
	session.Values[sessionUserKey] = userID
	require.NoError(t, session.Save(req, rec))
	return rec.Result().Cookies()
}

func TestAuth_UserID(t *testing.T) {
	a := newTestAuth(t)

	_, err := a.UserID(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range login(t, a, "42") {
		req.AddCookie(c)
	}
	id, err := a.UserID(req)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestAuth_Logout(t *testing.T) {
	a := newTestAuth(t)
	cookies := login(t, a, "42")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.logout(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// the stored session is gone even if the old cookie is replayed
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	_, err := a.UserID(req)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestAuth_BeginRedirectsToDiscord(t *testing.T) {
	a := newTestAuth(t)
	rec := httptest.NewRecorder()
	a.begin(rec, httptest.NewRequest(http.MethodGet, "/auth/discord", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "discord")
}

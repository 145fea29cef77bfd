package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/discord"
	"github.com/rs/zerolog"
	"github.com/wader/gormstore/v2"
	"gorm.io/gorm"
)

const (
	providerName   = "discord"
	sessionName    = "levelman_dashboard"
	sessionUserKey = "user_id"
	sessionMaxAge  = 7 * 24 * time.Hour
)

var ErrNotLoggedIn = errors.New("not logged in")

// Sessions resolves the dashboard user behind a request.
type Sessions interface {
	UserID(r *http.Request) (string, error)
	Mount(r chi.Router)
}

// AuthConfig holds the Discord OAuth application used by the dashboard.
type AuthConfig struct {
	ClientID      string
	ClientSecret  string
	CallbackURL   string
	SessionSecret string
}

// Auth logs dashboard users in with Discord and keeps their session in the
// database.
type Auth struct {
	store *gormstore.Store
	log   *zerolog.Logger
}

func NewAuth(db *gorm.DB, cfg AuthConfig, log *zerolog.Logger) *Auth {
	l := log.With().Str("component", "auth").Logger()

	store := gormstore.New(db, []byte(cfg.SessionSecret))
	store.SessionOpts.HttpOnly = true
	store.SessionOpts.Secure = strings.HasPrefix(cfg.CallbackURL, "https://")
	store.SessionOpts.MaxAge = int(sessionMaxAge.Seconds())
	store.SessionOpts.SameSite = http.SameSiteLaxMode

	gothic.Store = store
	goth.UseProviders(discord.New(cfg.ClientID, cfg.ClientSecret, cfg.CallbackURL, "identify"))

	return &Auth{store: store, log: &l}
}

// Cleanup removes expired sessions until quit is closed.
func (a *Auth) Cleanup(interval time.Duration, quit <-chan struct{}) {
	a.store.PeriodicCleanup(interval, quit)
}

func (a *Auth) Mount(r chi.Router) {
	r.Get("/auth/discord", a.begin)
	r.Get("/auth/discord/callback", a.callback)
	r.Post("/auth/logout", a.logout)
}

func withProvider(r *http.Request) *http.Request {
	q := r.URL.Query()
	q.Set("provider", providerName)
	r.URL.RawQuery = q.Encode()
	return r
}

func (a *Auth) begin(w http.ResponseWriter, r *http.Request) {
	gothic.BeginAuthHandler(w, withProvider(r))
}

func (a *Auth) callback(w http.ResponseWriter, r *http.Request) {
	user, err := gothic.CompleteUserAuth(w, withProvider(r))
	if err != nil {
		a.log.Warn().Err(err).Msg("discord login failed")
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}

	session, err := a.store.Get(r, sessionName)
	if session == nil {
		a.log.Error().Err(err).Msg("unable to open session")
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	session.Values[sessionUserKey] = user.UserID
	if err := session.Save(r, w); err != nil {
		a.log.Error().Err(err).Msg("unable to save session")
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	a.log.Info().Str("user_snowflake", user.UserID).Msg("dashboard login")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *Auth) logout(w http.ResponseWriter, r *http.Request) {
	session, err := a.store.Get(r, sessionName)
	if err == nil {
		session.Options.MaxAge = -1
		if err := session.Save(r, w); err != nil {
			a.log.Warn().Err(err).Msg("unable to delete session")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Auth) UserID(r *http.Request) (string, error) {
	session, err := a.store.Get(r, sessionName)
	if err != nil {
		return "", ErrNotLoggedIn
	}
	id, ok := session.Values[sessionUserKey].(string)
	if !ok || id == "" {
		return "", ErrNotLoggedIn
	}
	return id, nil
}

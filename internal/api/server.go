package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/code-wolf-byte/levelman/internal/database"
	"github.com/code-wolf-byte/levelman/internal/discord/leveling"
	"github.com/code-wolf-byte/levelman/internal/progression"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Store is the read side of the leveling data.
type Store interface {
	ServerStats(guildID string) (leveling.Stats, error)
	CountUsers(guildID string) (int64, error)
	TopUsers(guildID string, limit, offset int) ([]database.UserProgress, error)
	ReadProgress(guildID, userID string) (*database.UserProgress, error)
	RankPosition(guildID, userID string) (int64, error)
	AchievementKeys(guildID, userID string) ([]string, error)
}

// Modules manages the per-guild module row.
type Modules interface {
	Status(guildID string) (bool, error)
	Enable(guildID string) error
	Disable(guildID string) error
	Commands(guildID string) (map[string]bool, error)
	SetCommandEnabled(guildID, command string, enabled bool) error
	Config(guildID string) (leveling.ModuleConfig, error)
	SetConfig(guildID string, cfg leveling.ModuleConfig) error
}

// Authorizer decides who may change a guild's settings.
type Authorizer interface {
	IsGuildAdmin(guildID, userID string) (bool, error)
}

// Server exposes guild statistics and module settings over HTTP. Statistics
// are public; settings need a dashboard session of a guild admin. Without
// sessions the settings routes always answer 401.
type Server struct {
	store    Store
	modules  Modules
	sessions Sessions
	admins   Authorizer
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewServer(store Store, modules Modules, sessions Sessions, admins Authorizer, log *zerolog.Logger) *Server {
	l := log.With().Str("component", "api").Logger()
	return &Server{
		store:    store,
		modules:  modules,
		sessions: sessions,
		admins:   admins,
		validate: validator.New(),
		log:      &l,
	}
}

// APIResponse is the envelope of every response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type memberView struct {
	UserID       string   `json:"user_id"`
	Level        int      `json:"level"`
	XP           int64    `json:"xp"`
	XPRequired   int64    `json:"xp_required"`
	Rank         string   `json:"rank"`
	Position     int64    `json:"position"`
	Reputation   int64    `json:"reputation"`
	Background   string   `json:"background"`
	Achievements []string `json:"achievements"`
}

type leaderboardRow struct {
	Position int64  `json:"position"`
	UserID   string `json:"user_id"`
	Level    int    `json:"level"`
	XP       int64  `json:"xp"`
	Rank     string `json:"rank"`
}

type leaderboardView struct {
	Page    int              `json:"page"`
	Pages   int              `json:"pages"`
	Total   int64            `json:"total"`
	Entries []leaderboardRow `json:"entries"`
}

type moduleView struct {
	Enabled  bool                  `json:"enabled"`
	Commands map[string]bool       `json:"commands"`
	Config   leveling.ModuleConfig `json:"config"`
}

type commandToggle struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// Router creates and configures the HTTP router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.sessions != nil {
		s.sessions.Mount(r)
	}

	r.Route("/api/guilds/{guild}", func(r chi.Router) {
		r.Get("/stats", s.stats)
		r.Get("/leaderboard", s.leaderboard)
		r.Get("/members/{user}", s.member)

		r.Route("/module", func(r chi.Router) {
			r.Use(s.requireGuildAdmin)
			r.Get("/", s.module)
			r.Post("/enable", s.enable)
			r.Post("/disable", s.disable)
			r.Put("/config", s.setConfig)
			r.Put("/commands/{command}", s.setCommand)
		})
	})
	return r
}

// requestLogger logs one line per request through zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// requireGuildAdmin lets through dashboard users who administer the guild
// in the URL.
func (s *Server) requireGuildAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sessions == nil || s.admins == nil {
			s.writeJSON(w, http.StatusUnauthorized, APIResponse{Error: ErrNotLoggedIn.Error()})
			return
		}
		userID, err := s.sessions.UserID(r)
		if err != nil {
			s.writeJSON(w, http.StatusUnauthorized, APIResponse{Error: ErrNotLoggedIn.Error()})
			return
		}
		ok, err := s.admins.IsGuildAdmin(chi.URLParam(r, "guild"), userID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !ok {
			s.writeJSON(w, http.StatusForbidden, APIResponse{Error: "guild admin required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn().Err(err).Msg("unable to encode response")
	}
}

func (s *Server) writeSuccess(w http.ResponseWriter, data interface{}) {
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// writeError maps domain errors to a status; anything unknown is a 500 with
// a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	var invalid validator.ValidationErrors
	switch {
	case errors.Is(err, progression.ErrNoProgress),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, leveling.ErrUnknownCommand):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, leveling.ErrModuleAlreadyEnabled),
		errors.Is(err, leveling.ErrModuleAlreadyDisabled):
		status, msg = http.StatusConflict, err.Error()
	case errors.As(err, &invalid), errors.Is(err, errBadRequest):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		s.log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	s.writeJSON(w, status, APIResponse{Success: false, Error: msg})
}

var errBadRequest = errors.New("bad request body")

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.ServerStats(chi.URLParam(r, "guild"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, stats)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	guild := chi.URLParam(r, "guild")

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	total, err := s.store.CountUsers(guild)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pages := leveling.PageCount(total)
	page = min(page, pages)

	rows, err := s.store.TopUsers(guild, leveling.PageSize, (page-1)*leveling.PageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view := leaderboardView{Page: page, Pages: pages, Total: total, Entries: make([]leaderboardRow, 0, len(rows))}
	for idx, row := range rows {
		view.Entries = append(view.Entries, leaderboardRow{
			Position: int64((page-1)*leveling.PageSize + idx + 1),
			UserID:   row.UserSnowflake,
			Level:    row.Level,
			XP:       row.XP,
			Rank:     progression.RankFor(row.Level).Name,
		})
	}
	s.writeSuccess(w, view)
}

func (s *Server) member(w http.ResponseWriter, r *http.Request) {
	guild, user := chi.URLParam(r, "guild"), chi.URLParam(r, "user")

	p, err := s.store.ReadProgress(guild, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pos, err := s.store.RankPosition(guild, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	keys, err := s.store.AchievementKeys(guild, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeSuccess(w, memberView{
		UserID:       p.UserSnowflake,
		Level:        p.Level,
		XP:           p.XP,
		XPRequired:   progression.XPRequired(p.Level),
		Rank:         progression.RankFor(p.Level).Name,
		Position:     pos,
		Reputation:   p.Reputation,
		Background:   p.Background,
		Achievements: keys,
	})
}

func (s *Server) module(w http.ResponseWriter, r *http.Request) {
	guild := chi.URLParam(r, "guild")

	enabled, err := s.modules.Status(guild)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cmds, err := s.modules.Commands(guild)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := s.modules.Config(guild)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, moduleView{Enabled: enabled, Commands: cmds, Config: cfg})
}

func (s *Server) enable(w http.ResponseWriter, r *http.Request) {
	if err := s.modules.Enable(chi.URLParam(r, "guild")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, map[string]bool{"enabled": true})
}

func (s *Server) disable(w http.ResponseWriter, r *http.Request) {
	if err := s.modules.Disable(chi.URLParam(r, "guild")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, map[string]bool{"enabled": false})
}

func (s *Server) setConfig(w http.ResponseWriter, r *http.Request) {
	var cfg leveling.ModuleConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, r, errBadRequest)
		return
	}
	if err := s.modules.SetConfig(chi.URLParam(r, "guild"), cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, cfg)
}

func (s *Server) setCommand(w http.ResponseWriter, r *http.Request) {
	var body commandToggle
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, errBadRequest)
		return
	}
	if err := s.validate.Struct(body); err != nil {
		s.writeError(w, r, err)
		return
	}

	guild, command := chi.URLParam(r, "guild"), chi.URLParam(r, "command")
	if err := s.modules.SetCommandEnabled(guild, command, *body.Enabled); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, map[string]bool{command: *body.Enabled})
}

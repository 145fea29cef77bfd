package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/code-wolf-byte/levelman/internal/api"
	"github.com/code-wolf-byte/levelman/internal/config"
	"github.com/code-wolf-byte/levelman/internal/database"
	"github.com/code-wolf-byte/levelman/internal/discord"
	"github.com/code-wolf-byte/levelman/internal/discord/leveling"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("unable to load config")
	}

	log := newLogger(cfg)

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to open database")
	}

	bot, err := discord.New(cfg.DiscordToken, db, leveling.Options{
		Prefix:              cfg.CommandPrefix,
		PersistentChannelID: cfg.PersistentChannelID,
		TemporaryMessageTTL: cfg.TemporaryMessageTTL,
		EffectTimeout:       cfg.EffectTimeout,
		DefaultBackground:   cfg.DefaultBackground,
	}, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to create bot")
	}

	quit := make(chan struct{})
	var sessions api.Sessions
	if cfg.DashboardEnabled() {
		auth := api.NewAuth(db, api.AuthConfig{
			ClientID:      cfg.DashboardClientID,
			ClientSecret:  cfg.DashboardClientSecret,
			CallbackURL:   cfg.DashboardCallbackURL,
			SessionSecret: cfg.SessionSecret,
		}, &log)
		go auth.Cleanup(time.Hour, quit)
		sessions = auth
	} else {
		log.Warn().Msg("dashboard login not configured, module routes are disabled")
	}

	lv := bot.Leveling()
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(lv.Repository(), lv, sessions, lv, &log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Open(); err != nil {
		log.Fatal().Err(err).Msg("unable to connect to discord")
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	close(quit)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown")
	}
	if err := bot.Close(); err != nil {
		log.Warn().Err(err).Msg("discord session close")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

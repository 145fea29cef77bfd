package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	DiscordToken  string `env:"DISCORD_TOKEN" validate:"required"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"!" validate:"required,max=5"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite" validate:"oneof=sqlite postgres"`
	DatabaseDSN    string `env:"DATABASE_DSN" envDefault:"levels.db" validate:"required"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080" validate:"required,hostname_port|startswith=:"`

	// Dashboard login is enabled when a client id is set.
	DashboardClientID     string `env:"DASHBOARD_CLIENT_ID"`
	DashboardClientSecret string `env:"DASHBOARD_CLIENT_SECRET" validate:"required_with=DashboardClientID"`
	DashboardCallbackURL  string `env:"DASHBOARD_CALLBACK_URL" validate:"required_with=DashboardClientID,omitempty,url"`
	SessionSecret         string `env:"SESSION_SECRET" validate:"required_with=DashboardClientID,omitempty,min=32"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	PersistentChannelID string        `env:"PERSISTENT_CHANNEL_ID" validate:"omitempty,numeric"`
	TemporaryMessageTTL time.Duration `env:"TEMPORARY_MESSAGE_TTL" envDefault:"10s" validate:"gte=0"`
	EffectTimeout       time.Duration `env:"EFFECT_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	DefaultBackground   string        `env:"DEFAULT_BACKGROUND" envDefault:"https://i.imgur.com/4L1L4uA.png" validate:"required,url"`
}

// Load reads the given .env files, when present, then parses and validates
// the environment. Variables already set win over the files.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("unable to load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("unable to parse config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// DashboardEnabled reports whether Discord login is configured.
func (c *Config) DashboardEnabled() bool {
	return c.DashboardClientID != ""
}

package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/code-wolf-byte/levelman/internal/discord/leveling"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Bot owns the gateway session and routes its events to the modules.
type Bot struct {
	session  *discordgo.Session
	leveling *leveling.Leveling
	log      *zerolog.Logger
}

// New creates the session and the leveling module. Nothing connects until
// Open is called.
func New(token string, db *gorm.DB, opts leveling.Options, log *zerolog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("unable to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMembers |
		discordgo.IntentMessageContent

	l := log.With().Str("component", "discord").Logger()
	b := &Bot{
		session:  session,
		leveling: leveling.New(session, db, opts, log),
		log:      &l,
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onGuildCreate)
	session.AddHandler(b.leveling.OnMessageCreate)
	session.AddHandler(b.leveling.OnInteractionCreate)
	return b, nil
}

// Leveling returns the leveling module.
func (b *Bot) Leveling() *leveling.Leveling {
	return b.leveling
}

func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("unable to open discord session: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("connected to discord")
}

// onGuildCreate fires for every guild on connect and when the bot joins one.
func (b *Bot) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Unavailable {
		return
	}
	if err := b.leveling.Load(g.ID, g.Name); err != nil {
		b.log.Error().Err(err).Str("guild_snowflake", g.ID).Msg("unable to load leveling module")
	}
}

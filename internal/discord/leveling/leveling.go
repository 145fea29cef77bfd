package leveling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/code-wolf-byte/levelman/internal/database"
	"github.com/code-wolf-byte/levelman/internal/progression"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Constants matching the module pattern
const (
	name        = "Leveling"
	description = "XP, levels, ranks & achievements"
)

var (
	ErrModuleAlreadyDisabled = errors.New("module is already disabled")
	ErrModuleAlreadyEnabled  = errors.New("module is already enabled")
	ErrUnknownCommand        = errors.New("unknown command")

	errNoSession = errors.New("no discord session")
)

// messenger is the part of the Discord session that posts and removes
// messages.
type messenger interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// ModuleConfig is the per-guild JSON config stored on the module row.
type ModuleConfig struct {
	LevelUpChannelID string `json:"level_up_channel_id" validate:"omitempty,numeric"`
}

// Options are the process-wide settings of the module.
type Options struct {
	Prefix              string
	PersistentChannelID string
	TemporaryMessageTTL time.Duration
	EffectTimeout       time.Duration
	DefaultBackground   string
}

// Leveling grants XP for activity and serves the leveling commands.
type Leveling struct {
	session  *discordgo.Session
	out      messenger
	repo     *Repository
	effects  *Executor
	renderer Renderer
	opts     Options
	validate *validator.Validate
	log      *zerolog.Logger

	now  func() time.Time
	intn func(n int) int
}

// New returns an instance of the leveling module
func New(
	session *discordgo.Session,
	db *gorm.DB,
	opts Options,
	log *zerolog.Logger,
) *Leveling {
	l := log.With().
		Str("module", name).
		Logger()

	if opts.EffectTimeout <= 0 {
		opts.EffectTimeout = defaultEffectTimeout
	}

	lv := &Leveling{
		session:  session,
		repo:     NewRepository(db, opts.DefaultBackground),
		renderer: NewCardRenderer(&http.Client{Timeout: opts.EffectTimeout}),
		opts:     opts,
		validate: validator.New(),
		log:      &l,
		now:      func() time.Time { return time.Now().UTC() },
		intn:     rand.IntN,
	}
	if session != nil {
		lv.out = session
	}
	lv.effects = NewExecutor(discordRanks{session: session}, &discordNotifier{lv: lv}, opts.EffectTimeout, &l)
	return lv
}

// Repository exposes the module's store for read-only consumers.
func (l *Leveling) Repository() *Repository {
	return l.repo
}

// Load is called when a guild first becomes available or on reconnect
func (l *Leveling) Load(guildSnowflake, guildName string) error {
	log := l.log.With().
		Str("guild_name", guildName).
		Str("guild_snowflake", guildSnowflake).
		Logger()

	// 1) Check DB for existing module row or create one if none
	mod, err := l.repo.ReadModule(guildSnowflake)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Debug().Msg("leveling module not found, creating...")

		cfgJson, _ := json.Marshal(ModuleConfig{})

		cmdMap := make(map[string]bool)
		for _, cmd := range commands {
			cmdMap[cmd.Name] = true
		}
		cmdJson, _ := json.Marshal(cmdMap)

		insert := &database.Module{
			GuildSnowflake: guildSnowflake,
			Name:           name,
			Description:    description,
			Enabled:        true,
			Config:         cfgJson,
			Commands:       cmdJson,
		}
		if mod, err = l.repo.CreateModule(insert); err != nil {
			return fmt.Errorf("unable to create leveling module: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to read leveling module from DB: %w", err)
	}

	if !mod.Enabled {
		log.Debug().Msg("leveling module disabled, skipping load")
		return nil
	}

	// 2) Add commands introduced since the row was written
	cmds, err := commandStates(mod)
	if err != nil {
		return err
	}
	updated := false
	for _, cmd := range commands {
		if _, ok := cmds[cmd.Name]; !ok {
			cmds[cmd.Name] = true
			updated = true
		}
	}
	if updated {
		newCmdJson, _ := json.Marshal(cmds)
		mod.Commands = newCmdJson
		if _, err = l.repo.UpdateModule(mod); err != nil {
			return fmt.Errorf("unable to update leveling module commands: %w", err)
		}
	}

	log.Debug().Msgf("leveling module loaded for guild %s", guildName)
	return nil
}

// Enable sets the leveling module as enabled in DB
func (l *Leveling) Enable(guildSnowflake string) error {
	mod, err := l.repo.ReadModule(guildSnowflake)
	if err != nil {
		return err
	}
	if mod.Enabled {
		return ErrModuleAlreadyEnabled
	}
	mod.Enabled = true
	if _, err := l.repo.UpdateModule(mod); err != nil {
		return err
	}

	l.log.Info().Str("guild_snowflake", guildSnowflake).Msg("leveling module enabled")
	return nil
}

// Disable sets the leveling module as disabled in DB; messages in the guild
// are ignored until it is enabled again
func (l *Leveling) Disable(guildSnowflake string) error {
	mod, err := l.repo.ReadModule(guildSnowflake)
	if err != nil {
		return err
	}
	if !mod.Enabled {
		return ErrModuleAlreadyDisabled
	}
	mod.Enabled = false

	if _, err := l.repo.UpdateModule(mod); err != nil {
		return err
	}

	l.log.Info().Str("guild_snowflake", guildSnowflake).Msg("leveling module disabled")
	return nil
}

// Status returns true if the module is enabled, otherwise false
func (l *Leveling) Status(guildSnowflake string) (bool, error) {
	mod, err := l.repo.ReadModule(guildSnowflake)
	if err != nil {
		return false, err
	}
	return mod.Enabled, nil
}

// Commands returns the enabled state of every command in the guild.
func (l *Leveling) Commands(guildSnowflake string) (map[string]bool, error) {
	mod, err := l.repo.ReadModule(guildSnowflake)
	if err != nil {
		return nil, err
	}
	return commandStates(mod)
}

// SetCommandEnabled toggles a single command in the guild.
func (l *Leveling) SetCommandEnabled(guildSnowflake, command string, enabled bool) error {
	if lookupCommand(command) == nil {
		return ErrUnknownCommand
	}
	mod, err := l.repo.ReadModule(guildSnowflake)
	if err != nil {
		return err
	}
	cmds, err := commandStates(mod)
	if err != nil {
		return err
	}
	cmds[command] = enabled
	mod.Commands, _ = json.Marshal(cmds)
	_, err = l.repo.UpdateModule(mod)
	return err
}

// Config returns the guild's module config.
func (l *Leveling) Config(guildSnowflake string) (ModuleConfig, error) {
	var cfg ModuleConfig
	mod, err := l.repo.ReadModule(guildSnowflake)
	if err != nil {
		return cfg, err
	}
	if len(mod.Config) > 0 {
		if err := json.Unmarshal(mod.Config, &cfg); err != nil {
			return cfg, fmt.Errorf("unmarshal module config: %w", err)
		}
	}
	return cfg, nil
}

// SetConfig validates and stores the guild's module config.
func (l *Leveling) SetConfig(guildSnowflake string, cfg ModuleConfig) error {
	if err := l.validate.Struct(cfg); err != nil {
		return err
	}
	mod, err := l.repo.ReadModule(guildSnowflake)
	if err != nil {
		return err
	}
	mod.Config, _ = json.Marshal(cfg)
	_, err = l.repo.UpdateModule(mod)
	return err
}

func commandStates(mod *database.Module) (map[string]bool, error) {
	cmds := make(map[string]bool)
	if len(mod.Commands) == 0 {
		return cmds, nil
	}
	if err := json.Unmarshal(mod.Commands, &cmds); err != nil {
		return nil, fmt.Errorf("critical error unmarshalling command map: %w", err)
	}
	return cmds, nil
}

// OnMessageCreate is the activity entry point: it registers the author,
// runs a recognized command, or otherwise grants passive message XP.
func (l *Leveling) OnMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	mod, err := l.repo.ReadModule(m.GuildID)
	if err != nil || !mod.Enabled {
		return
	}

	log := l.log.With().
		Str("guild_snowflake", m.GuildID).
		Str("user_snowflake", m.Author.ID).
		Logger()

	now := l.now()
	ensured, err := l.repo.EnsureProgress(m.GuildID, m.Author.ID, now)
	if err != nil {
		log.Error().Err(err).Msg("unable to register member")
		return
	}
	l.runEffects(m.ChannelID, ensured.Effects)

	if cmdName, args, ok := parseCommand(l.opts.Prefix, content); ok {
		if cmd := lookupCommand(cmdName); cmd != nil {
			cmds, err := commandStates(mod)
			if err != nil {
				log.Error().Err(err).Msg("unable to read command map")
				return
			}
			if enabled, known := cmds[cmd.Name]; known && !enabled {
				log.Debug().Str("command", cmd.Name).Msg("command disabled")
				return
			}
			l.dispatch(&commandContext{s: s, m: m, args: args, now: now}, cmd)
			return
		}
	}

	out, err := l.repo.GrantMessageXP(m.GuildID, m.Author.ID, progression.RollMessageXP(l.intn), now)
	var cooldown *progression.CooldownError
	if errors.As(err, &cooldown) {
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("unable to grant message XP")
		return
	}
	l.runEffects(m.ChannelID, out.Effects)
}

// dispatch runs a command and turns its error into a reply. Panics stop
// here so the next event is still processed.
func (l *Leveling) dispatch(c *commandContext, cmd *command) {
	log := l.log.With().
		Str("command", cmd.Name).
		Str("guild_snowflake", c.m.GuildID).
		Str("user_snowflake", c.m.Author.ID).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("command panicked")
			l.reply(c, genericFailure)
		}
	}()

	if cmd.Admin && !l.isAdmin(c) {
		log.Debug().Msg("non-admin tried admin command")
		return
	}

	if err := cmd.Run(l, c); err != nil {
		msg, expected := describeError(err, l.opts.Prefix)
		if !expected {
			log.Error().Err(err).Msg("command failed")
		}
		l.reply(c, msg)
	}
}

func (l *Leveling) isAdmin(c *commandContext) bool {
	perms, err := c.s.UserChannelPermissions(c.m.Author.ID, c.m.ChannelID)
	if err != nil {
		l.log.Warn().Err(err).Msg("unable to resolve permissions")
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// runEffects executes side effects of an already committed change.
func (l *Leveling) runEffects(channelID string, effects []progression.Effect) {
	if len(effects) == 0 {
		return
	}
	l.effects.Run(context.Background(), channelID, effects)
}

// OnInteractionCreate handles the leaderboard pager and profile buttons
func (l *Leveling) OnInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Type != discordgo.InteractionMessageComponent {
		return
	}
	mod, err := l.repo.ReadModule(i.GuildID)
	if err != nil || !mod.Enabled {
		return
	}
	l.handleComponent(s, i)
}

// IsGuildAdmin reports whether the user owns the guild or holds a role with
// the Administrator permission.
func (l *Leveling) IsGuildAdmin(guildSnowflake, userSnowflake string) (bool, error) {
	if l.session == nil {
		return false, errNoSession
	}
	var guild *discordgo.Guild
	if st := l.session.State; st != nil {
		guild, _ = st.Guild(guildSnowflake)
	}
	if guild == nil {
		g, err := l.session.Guild(guildSnowflake)
		if err != nil {
			return false, fmt.Errorf("unable to read guild: %w", err)
		}
		guild = g
	}
	if guild.OwnerID == userSnowflake {
		return true, nil
	}

	member, err := l.member(guildSnowflake, userSnowflake)
	if err != nil {
		return false, nil
	}
	roles := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, r := range guild.Roles {
		roles[r.ID] = r
	}
	for _, id := range member.Roles {
		if r, ok := roles[id]; ok && r.Permissions&discordgo.PermissionAdministrator != 0 {
			return true, nil
		}
	}
	return false, nil
}

package leveling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/code-wolf-byte/levelman/internal/progression"
	"github.com/rs/zerolog"
	uuid "github.com/satori/go.uuid"
)

const defaultEffectTimeout = 5 * time.Second

// RankSyncer moves a member to the role of their current rank.
type RankSyncer interface {
	SyncRank(ctx context.Context, e progression.RankChange) error
}

// Notifier presents level-ups, reminders and unlocks. channelID is the
// channel of the activity that produced the effect.
type Notifier interface {
	Notify(ctx context.Context, channelID string, e progression.Effect) error
}

// Executor runs the effects of a committed change. Each effect gets its own
// deadline; failures are logged and never returned.
type Executor struct {
	ranks    RankSyncer
	notifier Notifier
	timeout  time.Duration
	log      *zerolog.Logger
}

func NewExecutor(ranks RankSyncer, notifier Notifier, timeout time.Duration, log *zerolog.Logger) *Executor {
	if timeout <= 0 {
		timeout = defaultEffectTimeout
	}
	return &Executor{ranks: ranks, notifier: notifier, timeout: timeout, log: log}
}

// Run executes effects in order.
func (x *Executor) Run(ctx context.Context, channelID string, effects []progression.Effect) {
	log := x.log.With().
		Str("batch_id", uuid.NewV4().String()).
		Str("channel_snowflake", channelID).
		Logger()

	for _, e := range effects {
		if err := x.run(ctx, channelID, e); err != nil {
			log.Warn().Err(err).Str("effect", fmt.Sprintf("%T", e)).Msg("side effect skipped")
		}
	}
}

func (x *Executor) run(ctx context.Context, channelID string, e progression.Effect) error {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- x.dispatch(ctx, channelID, e)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (x *Executor) dispatch(ctx context.Context, channelID string, e progression.Effect) error {
	switch e := e.(type) {
	case progression.RankChange:
		if x.ranks == nil {
			return nil
		}
		return x.ranks.SyncRank(ctx, e)
	default:
		if x.notifier == nil {
			return nil
		}
		return x.notifier.Notify(ctx, channelID, e)
	}
}

// discordRanks keeps one rank role per member, creating the role on first use.
type discordRanks struct {
	session *discordgo.Session
}

func (d discordRanks) SyncRank(ctx context.Context, e progression.RankChange) error {
	if d.session == nil {
		return errNoSession
	}
	opt := discordgo.WithContext(ctx)

	roles, err := d.session.GuildRoles(e.GuildID, opt)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	byID := make(map[string]*discordgo.Role, len(roles))
	var target *discordgo.Role
	for _, r := range roles {
		byID[r.ID] = r
		if r.Name == e.Current.Name {
			target = r
		}
	}

	if target == nil {
		color := e.Current.Color
		hoist := true
		target, err = d.session.GuildRoleCreate(e.GuildID, &discordgo.RoleParams{
			Name:  e.Current.Name,
			Color: &color,
			Hoist: &hoist,
		}, opt)
		if err != nil {
			return fmt.Errorf("create role %q: %w", e.Current.Name, err)
		}
	}

	member, err := d.session.GuildMember(e.GuildID, e.UserID, opt)
	if err != nil {
		return fmt.Errorf("read member: %w", err)
	}

	has := false
	var errs []error
	for _, id := range member.Roles {
		if id == target.ID {
			has = true
			continue
		}
		if r, ok := byID[id]; ok && progression.IsRankName(r.Name) {
			if err := d.session.GuildMemberRoleRemove(e.GuildID, e.UserID, id, opt); err != nil {
				errs = append(errs, fmt.Errorf("remove role %q: %w", r.Name, err))
			}
		}
	}
	if !has {
		if err := d.session.GuildMemberRoleAdd(e.GuildID, e.UserID, target.ID, opt); err != nil {
			errs = append(errs, fmt.Errorf("add role %q: %w", target.Name, err))
		}
	}
	return errors.Join(errs...)
}

// discordNotifier posts level-ups to the guild's level-up channel, DMs
// reminders and announces unlocks where the activity happened.
type discordNotifier struct {
	lv *Leveling
}

func (n *discordNotifier) Notify(ctx context.Context, channelID string, e progression.Effect) error {
	opt := discordgo.WithContext(ctx)

	switch e := e.(type) {
	case progression.LevelUp:
		if n.lv.out == nil {
			return errNoSession
		}
		user := n.lv.user(e.GuildID, e.UserID, opt)
		_, err := n.lv.out.ChannelMessageSendComplex(n.levelUpChannel(e.GuildID, channelID), &discordgo.MessageSend{
			Content: fmt.Sprintf("<@%s>", e.UserID),
			Embeds:  []*discordgo.MessageEmbed{levelUpEmbed(user, e)},
		}, opt)
		return err

	case progression.LevelReminder:
		if n.lv.session == nil {
			return errNoSession
		}
		dm, err := n.lv.session.UserChannelCreate(e.UserID, opt)
		if err != nil {
			return fmt.Errorf("open dm: %w", err)
		}
		_, err = n.lv.session.ChannelMessageSend(dm.ID, fmt.Sprintf("⏰ Reminder: you reached **level %d**!", e.Level), opt)
		return err

	case progression.AchievementUnlocked:
		user := n.lv.user(e.GuildID, e.UserID, opt)
		_, err := n.lv.sendTemporary(channelID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{achievementEmbed(user, e.Achievement)},
		}, opt)
		return err
	}
	return nil
}

// levelUpChannel prefers the configured channel, then the guild's system
// channel, then the channel of the activity.
func (n *discordNotifier) levelUpChannel(guildID, fallback string) string {
	if cfg, err := n.lv.Config(guildID); err == nil && cfg.LevelUpChannelID != "" {
		return cfg.LevelUpChannelID
	}
	if n.lv.session == nil {
		return fallback
	}
	if st := n.lv.session.State; st != nil {
		if g, err := st.Guild(guildID); err == nil && g.SystemChannelID != "" {
			return g.SystemChannelID
		}
	}
	return fallback
}

package leveling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/code-wolf-byte/levelman/internal/progression"
)

var started = time.Now()

// reply posts a short text answer that is removed after a while.
func (l *Leveling) reply(c *commandContext, content string) {
	if _, err := l.sendTemporary(c.m.ChannelID, &discordgo.MessageSend{
		Content:   content,
		Reference: c.m.Reference(),
	}); err != nil {
		l.log.Warn().Err(err).Str("channel_snowflake", c.m.ChannelID).Msg("unable to reply")
	}
}

// replyEmbed posts an embed that stays in the channel.
func (l *Leveling) replyEmbed(c *commandContext, embed *discordgo.MessageEmbed, components ...discordgo.MessageComponent) error {
	if l.out == nil {
		return errNoSession
	}
	_, err := l.out.ChannelMessageSendComplex(c.m.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	return err
}

// sendTemporary sends msg and deletes it after the configured TTL, unless
// the channel is the persistent one.
func (l *Leveling) sendTemporary(channelID string, msg *discordgo.MessageSend, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	if l.out == nil {
		return nil, errNoSession
	}
	sent, err := l.out.ChannelMessageSendComplex(channelID, msg, opts...)
	if err != nil {
		return nil, err
	}
	if l.opts.TemporaryMessageTTL <= 0 || channelID == l.opts.PersistentChannelID {
		return sent, nil
	}
	time.AfterFunc(l.opts.TemporaryMessageTTL, func() {
		if err := l.out.ChannelMessageDelete(sent.ChannelID, sent.ID); err != nil {
			l.log.Debug().Err(err).Str("message_snowflake", sent.ID).Msg("unable to delete temporary message")
		}
	})
	return sent, nil
}

// member resolves a guild member from the state cache, then the API.
func (l *Leveling) member(guildID, userID string, opts ...discordgo.RequestOption) (*discordgo.Member, error) {
	if l.session == nil {
		return nil, errNoSession
	}
	if st := l.session.State; st != nil {
		if m, err := st.Member(guildID, userID); err == nil {
			return m, nil
		}
	}
	return l.session.GuildMember(guildID, userID, opts...)
}

// user returns the member's user, or a placeholder holding only the id.
func (l *Leveling) user(guildID, userID string, opts ...discordgo.RequestOption) *discordgo.User {
	if m, err := l.member(guildID, userID, opts...); err == nil && m.User != nil {
		return m.User
	}
	return &discordgo.User{ID: userID, Username: "Unknown User"}
}

// mentionedUser requires a mention of someone other than the author.
func mentionedUser(c *commandContext, usage string) (*discordgo.User, error) {
	u := firstMention(c.m.Message)
	if u == nil {
		return nil, usageError(usage)
	}
	if u.ID == c.m.Author.ID {
		return nil, progression.ErrSelfTarget
	}
	return u, nil
}

func (l *Leveling) usage(cmd, args string) string {
	return fmt.Sprintf("❌ Usage: `%s%s %s`", l.opts.Prefix, cmd, args)
}

func (l *Leveling) handleRank(c *commandContext) error {
	u := targetOrAuthor(c.m.Message)
	p, err := l.repo.ReadProgress(c.m.GuildID, u.ID)
	if err != nil {
		return err
	}
	pos, err := l.repo.RankPosition(c.m.GuildID, u.ID)
	if err != nil {
		return err
	}
	return l.replyEmbed(c, rankEmbed(u, p, pos), profileButton()...)
}

func (l *Leveling) handleProfile(c *commandContext) error {
	u := targetOrAuthor(c.m.Message)
	return l.showProfile(c.s, c.m.GuildID, c.m.ChannelID, u)
}

// showProfile sends the rendered card, or the text profile when rendering
// fails.
func (l *Leveling) showProfile(s *discordgo.Session, guildID, channelID string, u *discordgo.User) error {
	p, err := l.repo.ReadProgress(guildID, u.ID)
	if err != nil {
		return err
	}
	pos, err := l.repo.RankPosition(guildID, u.ID)
	if err != nil {
		return err
	}
	keys, err := l.repo.AchievementKeys(guildID, u.ID)
	if err != nil {
		return err
	}
	unlocked := progression.Unlocked(keys)

	ctx, cancel := context.WithTimeout(context.Background(), l.opts.EffectTimeout)
	defer cancel()
	card, err := l.renderer.Render(ctx, Card{
		Username:   displayName(u),
		Level:      p.Level,
		XP:         p.XP,
		Threshold:  progression.XPRequired(p.Level),
		Rank:       progression.RankFor(p.Level),
		Background: p.Background,
		Avatar:     avatarOf(u),
	})
	if err != nil {
		l.log.Warn().Err(err).Str("user_snowflake", u.ID).Msg("card rendering failed, sending text profile")
		_, err = s.ChannelMessageSendEmbed(channelID, profileEmbed(u, p, pos, unlocked))
		return err
	}

	embed := profileEmbed(u, p, pos, unlocked)
	embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://profile.png"}
	_, err = s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Files: []*discordgo.File{{
			Name:        "profile.png",
			ContentType: "image/png",
			Reader:      bytes.NewReader(card),
		}},
	})
	return err
}

func (l *Leveling) handleInventory(c *commandContext) error {
	u := targetOrAuthor(c.m.Message)
	p, err := l.repo.ReadProgress(c.m.GuildID, u.ID)
	if err != nil {
		return err
	}
	keys, err := l.repo.AchievementKeys(c.m.GuildID, u.ID)
	if err != nil {
		return err
	}
	return l.replyEmbed(c, inventoryEmbed(u, p, progression.Unlocked(keys)))
}

func (l *Leveling) handleDaily(c *commandContext) error {
	out, err := l.repo.ClaimDaily(c.m.GuildID, c.m.Author.ID, c.now)
	if err != nil {
		return err
	}
	l.reply(c, fmt.Sprintf("🎁 You claimed **%d XP**! Level %d, %d/%d XP.",
		progression.DailyXP, out.Progress.Level, out.Progress.XP, progression.XPRequired(out.Progress.Level)))
	l.runEffects(c.m.ChannelID, out.Effects)
	return nil
}

func (l *Leveling) handleRep(c *commandContext) error {
	target, err := mentionedUser(c, l.usage("rep", "@user"))
	if err != nil {
		return err
	}
	out, err := l.repo.GiveReputation(c.m.GuildID, c.m.Author.ID, target.ID, c.now)
	if err != nil {
		return err
	}
	l.reply(c, fmt.Sprintf("❤️ You gave reputation to <@%s>! They now have **%d**.", target.ID, out.Progress.Reputation))
	l.runEffects(c.m.ChannelID, out.Effects)
	return nil
}

func (l *Leveling) handleGive(c *commandContext) error {
	usage := l.usage("give", "@user <amount>")
	target, err := mentionedUser(c, usage)
	if err != nil {
		return err
	}
	amount, ok := parseAmount(c.args)
	if !ok {
		return usageError(usage)
	}
	t, err := l.repo.TransferXP(c.m.GuildID, c.m.Author.ID, target.ID, amount, c.now)
	if err != nil {
		return err
	}
	l.reply(c, fmt.Sprintf("💸 You sent **%d XP** to <@%s> (fee %d XP, they received %d XP).", t.Amount, target.ID, t.Fee, t.Net))
	l.runEffects(c.m.ChannelID, t.Receiver.Effects)
	return nil
}

func (l *Leveling) handleVoice(c *commandContext) error {
	out, err := l.repo.AddXP(c.m.GuildID, c.m.Author.ID, progression.VoiceXP, c.now)
	if err != nil {
		return err
	}
	l.reply(c, fmt.Sprintf("🎙️ You received **%d XP** for voice activity!", progression.VoiceXP))
	l.runEffects(c.m.ChannelID, out.Effects)
	return nil
}

func (l *Leveling) handleRemind(c *commandContext) error {
	if len(c.args) == 0 {
		return progression.ErrInvalidReminder
	}
	level, err := strconv.Atoi(c.args[0])
	if err != nil {
		return progression.ErrInvalidReminder
	}
	if err := l.repo.SetReminder(c.m.GuildID, c.m.Author.ID, level); err != nil {
		return err
	}
	l.reply(c, fmt.Sprintf("⏰ I will remind you when you reach **level %d**.", level))
	return nil
}

func (l *Leveling) handleCompare(c *commandContext) error {
	other, err := mentionedUser(c, l.usage("compare", "@user"))
	if err != nil {
		return err
	}
	mine, err := l.repo.ReadProgress(c.m.GuildID, c.m.Author.ID)
	if err != nil {
		return err
	}
	theirs, err := l.repo.ReadProgress(c.m.GuildID, other.ID)
	if err != nil {
		return err
	}
	return l.replyEmbed(c, compareEmbed(c.m.Author, mine, other, theirs))
}

func (l *Leveling) handleBackgrounds(c *commandContext) error {
	return l.replyEmbed(c, backgroundsEmbed(l.opts.Prefix))
}

func (l *Leveling) handleSetBackground(c *commandContext) error {
	if len(c.args) == 0 {
		return usageError(l.usage("setbg", "<image_url>"))
	}
	url := c.args[0]
	if err := l.validate.Var(url, "required,url"); err != nil {
		return progression.ErrInvalidBackground
	}
	if err := l.repo.SetBackground(c.m.GuildID, c.m.Author.ID, url); err != nil {
		return err
	}
	l.reply(c, "🖼️ Background updated!")
	return nil
}

func (l *Leveling) handleResetBackground(c *commandContext) error {
	if err := l.repo.ResetBackground(c.m.GuildID, c.m.Author.ID); err != nil {
		return err
	}
	l.reply(c, "🖼️ Background reset to default.")
	return nil
}

func (l *Leveling) handleShop(c *commandContext) error {
	return l.replyEmbed(c, shopEmbed(l.opts.Prefix))
}

func (l *Leveling) handleBuy(c *commandContext) error {
	if len(c.args) == 0 {
		return usageError(l.usage("buy", "<item>"))
	}
	item, err := l.repo.BuyItem(c.m.GuildID, c.m.Author.ID, strings.ToLower(c.args[0]))
	if err != nil {
		return err
	}
	l.reply(c, fmt.Sprintf("🛒 You bought **%s** for %d XP!", item.Name, item.Price))
	return nil
}

func (l *Leveling) handleStats(c *commandContext) error {
	u := targetOrAuthor(c.m.Message)
	p, err := l.repo.ReadProgress(c.m.GuildID, u.ID)
	if err != nil {
		return err
	}
	pos, err := l.repo.RankPosition(c.m.GuildID, u.ID)
	if err != nil {
		return err
	}
	total, err := l.repo.CountUsers(c.m.GuildID)
	if err != nil {
		return err
	}
	keys, err := l.repo.AchievementKeys(c.m.GuildID, u.ID)
	if err != nil {
		return err
	}
	return l.replyEmbed(c, statsEmbed(u, p, pos, total, len(keys)))
}

func (l *Leveling) handleTop(c *commandContext) error {
	msg, err := l.leaderboard(c.m.GuildID, parsePage(c.args))
	if err != nil {
		return err
	}
	_, err = c.s.ChannelMessageSendComplex(c.m.ChannelID, &discordgo.MessageSend{
		Embeds:     msg.embeds,
		Components: msg.components,
	})
	return err
}

type leaderboardMessage struct {
	embeds     []*discordgo.MessageEmbed
	components []discordgo.MessageComponent
}

// leaderboard builds a page, clamped to the last one.
func (l *Leveling) leaderboard(guildID string, page int) (*leaderboardMessage, error) {
	total, err := l.repo.CountUsers(guildID)
	if err != nil {
		return nil, err
	}
	pages := PageCount(total)
	page = min(max(page, 1), pages)

	rows, err := l.repo.TopUsers(guildID, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}
	entries := make([]leaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, leaderboardEntry{
			Name:     displayName(l.user(guildID, row.UserSnowflake)),
			Progress: row,
		})
	}

	msg := &leaderboardMessage{embeds: []*discordgo.MessageEmbed{leaderboardEmbed(entries, page, pages)}}
	if pages > 1 {
		msg.components = pagerComponents(page, pages)
	}
	return msg, nil
}

func (l *Leveling) handleRanks(c *commandContext) error {
	return l.replyEmbed(c, ranksEmbed())
}

func (l *Leveling) handlePing(c *commandContext) error {
	l.reply(c, fmt.Sprintf("🏓 Pong! %s", c.s.HeartbeatLatency().Round(time.Millisecond)))
	return nil
}

func (l *Leveling) handleInfo(c *commandContext) error {
	stats, err := l.repo.ServerStats(c.m.GuildID)
	if err != nil {
		return err
	}
	guilds := 0
	if c.s.State != nil {
		guilds = len(c.s.State.Guilds)
	}
	return l.replyEmbed(c, infoEmbed(stats, guilds, c.s.HeartbeatLatency(), time.Since(started)))
}

func (l *Leveling) handleHelp(c *commandContext) error {
	return l.replyEmbed(c, helpEmbed(l.opts.Prefix, l.isAdmin(c)))
}

func (l *Leveling) handleAddXP(c *commandContext) error {
	usage := l.usage("addxp", "@user <amount>")
	target := firstMention(c.m.Message)
	amount, ok := parseAmount(c.args)
	if target == nil || !ok {
		return usageError(usage)
	}
	if amount <= 0 || amount > progression.MaxGrant {
		return usageError(grantRange)
	}
	ensured, err := l.repo.EnsureProgress(c.m.GuildID, target.ID, c.now)
	if err != nil {
		return err
	}
	out, err := l.repo.AddXP(c.m.GuildID, target.ID, amount, c.now)
	if err != nil {
		return err
	}
	l.reply(c, fmt.Sprintf("✅ Added **%d XP** to <@%s>.", amount, target.ID))
	l.runEffects(c.m.ChannelID, append(ensured.Effects, out.Effects...))
	return nil
}

var grantRange = fmt.Sprintf("❌ Amount must be between 1 and %d.", progression.MaxGrant)

// addXPAllLimit caps how many members one addxpall call touches.
const addXPAllLimit = 50

func (l *Leveling) handleAddXPAll(c *commandContext) error {
	amount, ok := parseAmount(c.args)
	if !ok {
		return usageError(l.usage("addxpall", "<amount>"))
	}
	if amount <= 0 || amount > progression.MaxGrant {
		return usageError(grantRange)
	}
	ids, err := l.repo.GuildUserIDs(c.m.GuildID, addXPAllLimit)
	if err != nil {
		return err
	}

	count := 0
	for _, id := range ids {
		m, err := l.member(c.m.GuildID, id)
		if err != nil || m.User == nil || m.User.Bot {
			continue
		}
		out, err := l.repo.AddXP(c.m.GuildID, id, amount, c.now)
		if err != nil {
			l.log.Warn().Err(err).Str("user_snowflake", id).Msg("unable to add xp")
			continue
		}
		count++
		l.runEffects(c.m.ChannelID, out.Effects)
	}
	l.reply(c, fmt.Sprintf("✅ Added **%d XP** to %d member(s).", amount, count))
	return nil
}

func (l *Leveling) handleResetDaily(c *commandContext) error {
	target := firstMention(c.m.Message)
	if target == nil {
		return usageError(l.usage("resetdaily", "@user"))
	}
	if err := l.repo.ResetDaily(c.m.GuildID, target.ID); err != nil {
		return err
	}
	l.reply(c, fmt.Sprintf("✅ Daily cooldown reset for <@%s>.", target.ID))
	return nil
}

func (l *Leveling) handleResetRep(c *commandContext) error {
	target := firstMention(c.m.Message)
	if target == nil {
		return usageError(l.usage("resetrep", "@user"))
	}
	if err := l.repo.ResetReputation(c.m.GuildID, target.ID); err != nil {
		return err
	}
	l.reply(c, fmt.Sprintf("✅ Reputation reset for <@%s>.", target.ID))
	return nil
}

func (l *Leveling) handleReset(c *commandContext) error {
	if len(c.args) > 0 && strings.EqualFold(c.args[0], "all") {
		if err := l.repo.ResetGuild(c.m.GuildID); err != nil {
			return err
		}
		l.log.Info().Str("guild_snowflake", c.m.GuildID).Str("user_snowflake", c.m.Author.ID).Msg("guild progress reset")
		l.reply(c, "✅ All progress in this server has been reset.")
		return nil
	}

	target := firstMention(c.m.Message)
	if target == nil {
		return usageError(l.usage("reset", "@user | all"))
	}
	if err := l.repo.ResetProgress(c.m.GuildID, target.ID); err != nil {
		return err
	}
	l.reply(c, fmt.Sprintf("✅ Progress reset for <@%s>.", target.ID))
	return nil
}

// handleComponent serves the leaderboard pager and the profile button.
func (l *Leveling) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	log := l.log.With().
		Str("guild_snowflake", i.GuildID).
		Str("custom_id", data.CustomID).
		Logger()

	switch {
	case strings.HasPrefix(data.CustomID, topButtonPrefix):
		page, err := strconv.Atoi(strings.TrimPrefix(data.CustomID, topButtonPrefix))
		if err != nil {
			return
		}
		msg, err := l.leaderboard(i.GuildID, page)
		if err != nil {
			log.Error().Err(err).Msg("unable to build leaderboard")
			return
		}
		components := msg.components
		if components == nil {
			components = []discordgo.MessageComponent{}
		}
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Embeds:     msg.embeds,
				Components: components,
			},
		}); err != nil {
			log.Warn().Err(err).Msg("unable to update leaderboard")
		}

	case data.CustomID == profileButtonID:
		if i.Member == nil || i.Member.User == nil {
			return
		}
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		}); err != nil {
			log.Warn().Err(err).Msg("unable to acknowledge profile button")
		}
		err := l.showProfile(s, i.GuildID, i.ChannelID, i.Member.User)
		if errors.Is(err, progression.ErrNoProgress) {
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("unable to show profile")
		}
	}
}

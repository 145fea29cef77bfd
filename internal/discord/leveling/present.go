package leveling

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/code-wolf-byte/levelman/internal/database"
	"github.com/code-wolf-byte/levelman/internal/progression"
)

const (
	colorSuccess = 0x00FF00
	colorError   = 0xFF0000
	colorInfo    = 0x3498db
	colorGold    = 0xf1c40f

	barLength = 10

	topButtonPrefix = "leveling:top:"
	profileButtonID = "leveling:profile"
)

// xpBar draws progress towards the next level. The fill color goes from red
// to green as the bar fills up.
func xpBar(xp, threshold int64) string {
	if threshold <= 0 {
		threshold = 1
	}
	ratio := float64(xp) / float64(threshold)
	switch {
	case ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}
	filled := int(ratio * barLength)

	fill := "🟩"
	switch {
	case ratio < 0.25:
		fill = "🟥"
	case ratio < 0.5:
		fill = "🟧"
	case ratio < 0.75:
		fill = "🟨"
	}
	return strings.Repeat(fill, filled) + strings.Repeat("⬛", barLength-filled)
}

func percent(xp, threshold int64) int64 {
	if threshold <= 0 {
		return 0
	}
	return xp * 100 / threshold
}

func progressField(p *database.UserProgress) *discordgo.MessageEmbedField {
	threshold := progression.XPRequired(p.Level)
	return &discordgo.MessageEmbedField{
		Name:  "Progress",
		Value: fmt.Sprintf("%s %d%%\n%d / %d XP", xpBar(p.XP, threshold), percent(p.XP, threshold), p.XP, threshold),
	}
}

func avatarOf(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	return u.AvatarURL("256")
}

func levelUpEmbed(u *discordgo.User, e progression.LevelUp) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "🎉 LEVEL UP!",
		Description: fmt.Sprintf("<@%s> reached **level %d**!", e.UserID, e.Level),
		Color:       e.Rank.Color,
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: avatarOf(u)},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Rank", Value: e.Rank.Name, Inline: true},
			{Name: "Next level", Value: fmt.Sprintf("%d / %d XP", e.XP, e.Threshold), Inline: true},
		},
	}
	if e.PreviousRank != e.Rank {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "New rank unlocked",
			Value: fmt.Sprintf("%s ➜ %s", e.PreviousRank.Name, e.Rank.Name),
		})
	}
	return embed
}

func achievementEmbed(u *discordgo.User, a progression.Achievement) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🏆 Achievement unlocked!",
		Description: fmt.Sprintf("%s unlocked %s **%s**\n%s", displayName(u), a.Emoji, a.Name, a.Description),
		Color:       colorGold,
	}
}

func rankEmbed(u *discordgo.User, p *database.UserProgress, position int64) *discordgo.MessageEmbed {
	rank := progression.RankFor(p.Level)
	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("📊 %s", displayName(u)),
		Color:     rank.Color,
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: avatarOf(u)},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Level", Value: strconv.Itoa(p.Level), Inline: true},
			{Name: "Rank", Value: rank.Name, Inline: true},
			{Name: "Position", Value: fmt.Sprintf("#%d", position), Inline: true},
			progressField(p),
		},
	}
}

func achievementLines(unlocked []progression.Achievement) string {
	if len(unlocked) == 0 {
		return "None yet"
	}
	lines := make([]string, 0, len(unlocked))
	for _, a := range unlocked {
		lines = append(lines, fmt.Sprintf("%s **%s**: %s", a.Emoji, a.Name, a.Description))
	}
	return strings.Join(lines, "\n")
}

// profileEmbed is the text profile shown when the card cannot be rendered.
func profileEmbed(u *discordgo.User, p *database.UserProgress, position int64, unlocked []progression.Achievement) *discordgo.MessageEmbed {
	embed := rankEmbed(u, p, position)
	embed.Title = fmt.Sprintf("👤 Profile of %s", displayName(u))
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Reputation", Value: fmt.Sprintf("❤️ %d", p.Reputation), Inline: true},
		&discordgo.MessageEmbedField{Name: fmt.Sprintf("Achievements (%d/%d)", len(unlocked), len(progression.Achievements)), Value: achievementLines(unlocked)},
	)
	if p.Background != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: p.Background}
	}
	return embed
}

func inventoryEmbed(u *discordgo.User, p *database.UserProgress, unlocked []progression.Achievement) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🎒 Inventory of %s", displayName(u)),
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "XP", Value: strconv.FormatInt(p.XP, 10), Inline: true},
			{Name: "Reputation", Value: strconv.FormatInt(p.Reputation, 10), Inline: true},
			{Name: "Achievements", Value: achievementLines(unlocked)},
		},
	}
}

func statsEmbed(u *discordgo.User, p *database.UserProgress, position, total int64, unlocked int) *discordgo.MessageEmbed {
	rank := progression.RankFor(p.Level)
	threshold := progression.XPRequired(p.Level)

	daily := "Available"
	if !p.DailyClaimedAt.IsZero() {
		daily = fmt.Sprintf("<t:%d:R>", p.DailyClaimedAt.Unix())
	}
	reminder := "None"
	if p.LevelReminder > 0 {
		reminder = fmt.Sprintf("Level %d", p.LevelReminder)
	}

	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("📈 Stats of %s", displayName(u)),
		Color: rank.Color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Level", Value: strconv.Itoa(p.Level), Inline: true},
			{Name: "Rank", Value: rank.Name, Inline: true},
			{Name: "Position", Value: fmt.Sprintf("#%d of %d", position, total), Inline: true},
			{Name: "XP", Value: fmt.Sprintf("%d / %d", p.XP, threshold), Inline: true},
			{Name: "XP to next level", Value: strconv.FormatInt(threshold-p.XP, 10), Inline: true},
			{Name: "Reputation", Value: strconv.FormatInt(p.Reputation, 10), Inline: true},
			{Name: "Last daily", Value: daily, Inline: true},
			{Name: "Reminder", Value: reminder, Inline: true},
			{Name: "Achievements", Value: fmt.Sprintf("%d/%d", unlocked, len(progression.Achievements)), Inline: true},
		},
	}
}

func compareEmbed(a *discordgo.User, pa *database.UserProgress, b *discordgo.User, pb *database.UserProgress) *discordgo.MessageEmbed {
	column := func(u *discordgo.User, p *database.UserProgress) *discordgo.MessageEmbedField {
		return &discordgo.MessageEmbedField{
			Name:   displayName(u),
			Value:  fmt.Sprintf("Level %d\n%s\n%d XP", p.Level, progression.RankFor(p.Level).Name, p.XP),
			Inline: true,
		}
	}
	return &discordgo.MessageEmbed{
		Title: "⚖️ Comparison",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			column(a, pa),
			column(b, pb),
			{
				Name:  "Difference",
				Value: fmt.Sprintf("%d level(s), %d XP", abs(int64(pa.Level-pb.Level)), abs(pa.XP-pb.XP)),
			},
		},
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func ranksEmbed() *discordgo.MessageEmbed {
	lines := make([]string, 0, len(progression.Ranks))
	for _, r := range progression.Ranks {
		lines = append(lines, fmt.Sprintf("%s from level **%d**", r.Name, r.MinLevel))
	}
	return &discordgo.MessageEmbed{
		Title:       "🏅 Ranks",
		Description: strings.Join(lines, "\n"),
		Color:       progression.TopRank().Color,
	}
}

// leaderboardEntry is one leaderboard line with the member's display name
// already resolved.
type leaderboardEntry struct {
	Name     string
	Progress database.UserProgress
}

// PageSize is the number of leaderboard entries per page.
const PageSize = 10

// PageCount returns the number of leaderboard pages for total members, at
// least one.
func PageCount(total int64) int {
	pages := int((total + PageSize - 1) / PageSize)
	if pages < 1 {
		return 1
	}
	return pages
}

func leaderboardEmbed(entries []leaderboardEntry, page, pages int) *discordgo.MessageEmbed {
	if len(entries) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "Leaderboard",
			Description: "No leaderboard data found!",
			Color:       colorError,
		}
	}

	medals := []string{"🥇", "🥈", "🥉"}
	lines := make([]string, 0, len(entries))
	for idx, e := range entries {
		pos := (page-1)*PageSize + idx + 1
		label := fmt.Sprintf("**%d.**", pos)
		if pos <= len(medals) {
			label = medals[pos-1]
		}
		lines = append(lines, fmt.Sprintf("%s %s: level %d (%d XP) %s",
			label, e.Name, e.Progress.Level, e.Progress.XP, progression.RankFor(e.Progress.Level).Name))
	}

	return &discordgo.MessageEmbed{
		Title:       "🏆 Leaderboard",
		Description: strings.Join(lines, "\n"),
		Color:       colorGold,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d", page, pages)},
	}
}

func pagerComponents(page, pages int) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "◀ Previous",
					Style:    discordgo.SecondaryButton,
					CustomID: topButtonPrefix + strconv.Itoa(page-1),
					Disabled: page <= 1,
				},
				discordgo.Button{
					Label:    "Next ▶",
					Style:    discordgo.SecondaryButton,
					CustomID: topButtonPrefix + strconv.Itoa(page+1),
					Disabled: page >= pages,
				},
			},
		},
	}
}

func profileButton() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "👤 Profile",
					Style:    discordgo.PrimaryButton,
					CustomID: profileButtonID,
				},
			},
		},
	}
}

func shopEmbed(prefix string) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(progression.Shop))
	for _, it := range progression.Shop {
		lines = append(lines, fmt.Sprintf("`%s` **%s**: %d XP", it.Key, it.Name, it.Price))
	}
	return &discordgo.MessageEmbed{
		Title:       "🛒 Shop",
		Description: strings.Join(lines, "\n"),
		Color:       colorGold,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Use %sbuy <item>", prefix)},
	}
}

func backgroundsEmbed(prefix string) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(progression.PublicBackgrounds))
	for _, bg := range progression.PublicBackgrounds {
		lines = append(lines, fmt.Sprintf("**%s**: %s", bg.Name, bg.URL))
	}
	return &discordgo.MessageEmbed{
		Title:       "🖼️ Public backgrounds",
		Description: strings.Join(lines, "\n"),
		Color:       colorInfo,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Use %ssetbg <url>", prefix)},
	}
}

func infoEmbed(stats Stats, guilds int, latency, uptime time.Duration) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "ℹ️ System information",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Servers", Value: strconv.Itoa(guilds), Inline: true},
			{Name: "Active users", Value: strconv.FormatInt(stats.TotalUsers, 10), Inline: true},
			{Name: "Total XP", Value: strconv.FormatInt(stats.TotalXP, 10), Inline: true},
			{Name: "Average level", Value: fmt.Sprintf("%.1f", stats.AverageLevel), Inline: true},
			{Name: "Latency", Value: latency.Round(time.Millisecond).String(), Inline: true},
			{Name: "Uptime", Value: uptime.Round(time.Second).String(), Inline: true},
		},
	}
}

func helpEmbed(prefix string, admin bool) *discordgo.MessageEmbed {
	var user, staff []string
	for _, cmd := range commands {
		line := fmt.Sprintf("`%s%s", prefix, cmd.Name)
		if cmd.Usage != "" {
			line += " " + cmd.Usage
		}
		line += "` " + cmd.Description
		if cmd.Admin {
			staff = append(staff, line)
		} else {
			user = append(user, line)
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:  "📖 Commands",
		Color:  colorInfo,
		Fields: commandFields("Leveling", user),
	}
	if admin {
		embed.Fields = append(embed.Fields, commandFields("Admin", staff)...)
	}
	return embed
}

// commandFields splits lines over several fields to stay below the embed
// field value limit.
func commandFields(title string, lines []string) []*discordgo.MessageEmbedField {
	const perField = 8
	var fields []*discordgo.MessageEmbedField
	for start := 0; start < len(lines); start += perField {
		end := min(start+perField, len(lines))
		name := title
		if start > 0 {
			name = "\u200b"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: name, Value: strings.Join(lines[start:end], "\n")})
	}
	return fields
}

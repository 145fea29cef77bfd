package leveling

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/code-wolf-byte/levelman/internal/progression"
)

const genericFailure = "❌ An error occurred."

// command is a text command of the module.
type command struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Admin       bool
	Run         func(l *Leveling, c *commandContext) error
}

// commandContext is one invocation of a command.
type commandContext struct {
	s    *discordgo.Session
	m    *discordgo.MessageCreate
	args []string
	now  time.Time
}

// commands is the list of text commands the Leveling module serves. It is
// filled in init because help refers back to it.
var commands []*command

func init() {
	commands = []*command{
		{Name: "rank", Usage: "[@user]", Description: "View rank", Run: (*Leveling).handleRank},
		{Name: "profile", Usage: "[@user]", Description: "View full profile", Run: (*Leveling).handleProfile},
		{Name: "inventory", Usage: "[@user]", Description: "View XP, reputation and achievements", Run: (*Leveling).handleInventory},
		{Name: "daily", Aliases: []string{"claim"}, Description: fmt.Sprintf("Claim daily XP (+%d)", progression.DailyXP), Run: (*Leveling).handleDaily},
		{Name: "rep", Usage: "@user", Description: "Give reputation (1/day)", Run: (*Leveling).handleRep},
		{Name: "give", Usage: "@user <amount>", Description: fmt.Sprintf("Transfer XP (%d%% fee)", progression.TransferFeePercent), Run: (*Leveling).handleGive},
		{Name: "voice", Description: "Get XP for voice activity", Run: (*Leveling).handleVoice},
		{Name: "remind", Usage: "<level>", Description: "Set level-up reminder", Run: (*Leveling).handleRemind},
		{Name: "compare", Usage: "@user", Description: "Compare stats", Run: (*Leveling).handleCompare},
		{Name: "backgrounds", Description: "View public backgrounds", Run: (*Leveling).handleBackgrounds},
		{Name: "setbg", Usage: "<image_url>", Description: "Set profile background", Run: (*Leveling).handleSetBackground},
		{Name: "resetbg", Description: "Reset profile background", Run: (*Leveling).handleResetBackground},
		{Name: "shop", Description: "Premium backgrounds", Run: (*Leveling).handleShop},
		{Name: "buy", Usage: "<item>", Description: "Buy a premium background", Run: (*Leveling).handleBuy},
		{Name: "stats", Usage: "[@user]", Description: "View detailed stats", Run: (*Leveling).handleStats},
		{Name: "top", Aliases: []string{"leaderboard"}, Usage: "[page]", Description: "View leaderboard", Run: (*Leveling).handleTop},
		{Name: "ranks", Description: "View all ranks", Run: (*Leveling).handleRanks},
		{Name: "ping", Description: "Check bot latency", Run: (*Leveling).handlePing},
		{Name: "info", Description: "System information", Run: (*Leveling).handleInfo},
		{Name: "help", Description: "Show this help", Run: (*Leveling).handleHelp},

		{Name: "addxp", Usage: "@user <amount>", Description: "Grant XP", Admin: true, Run: (*Leveling).handleAddXP},
		{Name: "addxpall", Usage: "<amount>", Description: "Grant XP to registered members", Admin: true, Run: (*Leveling).handleAddXPAll},
		{Name: "resetdaily", Usage: "@user", Description: "Reset daily cooldown", Admin: true, Run: (*Leveling).handleResetDaily},
		{Name: "resetrep", Usage: "@user", Description: "Reset reputation", Admin: true, Run: (*Leveling).handleResetRep},
		{Name: "reset", Usage: "[@user / all]", Description: "Reset progress", Admin: true, Run: (*Leveling).handleReset},
	}
}

func lookupCommand(name string) *command {
	for _, cmd := range commands {
		if cmd.Name == name {
			return cmd
		}
		for _, alias := range cmd.Aliases {
			if alias == name {
				return cmd
			}
		}
	}
	return nil
}

// usageError is a validation failure whose text is shown as is.
type usageError string

func (e usageError) Error() string { return string(e) }

// describeError maps a command error to the reply shown to the user and
// reports whether the error was an expected outcome.
func describeError(err error, prefix string) (string, bool) {
	var usage usageError
	if errors.As(err, &usage) {
		return string(usage), true
	}

	var cooldown *progression.CooldownError
	if errors.As(err, &cooldown) {
		switch cooldown.Action {
		case progression.ActionDaily:
			return fmt.Sprintf("⏳ You already claimed your daily XP. Come back in **%d minute(s)**.", cooldown.Minutes()), true
		case progression.ActionReputation:
			return fmt.Sprintf("⏳ You already gave reputation today. Come back in **%d minute(s)**.", cooldown.Minutes()), true
		default:
			return fmt.Sprintf("⏳ Slow down! Try again in **%d minute(s)**.", cooldown.Minutes()), true
		}
	}

	var insufficient *progression.InsufficientXPError
	if errors.As(err, &insufficient) {
		return fmt.Sprintf("❌ You need %d XP for that (you have %d).", insufficient.Required, insufficient.Available), true
	}

	switch {
	case errors.Is(err, progression.ErrNoProgress):
		return "❌ This user has no data yet.", true
	case errors.Is(err, progression.ErrSelfTarget):
		return "❌ Mention another user.", true
	case errors.Is(err, progression.ErrInvalidAmount):
		return fmt.Sprintf("❌ Amount must be between %d and %d.", progression.MinTransfer, progression.MaxTransfer), true
	case errors.Is(err, progression.ErrUnknownItem):
		return fmt.Sprintf("❌ Invalid item. Use `%sshop` to see available items.", prefix), true
	case errors.Is(err, progression.ErrInvalidBackground):
		return "❌ Invalid image URL. Must end with .png, .jpg, or .jpeg", true
	case errors.Is(err, progression.ErrInvalidReminder):
		return fmt.Sprintf("❌ Please specify a valid level (%d-%d).", progression.MinReminderLevel, progression.MaxReminderLevel), true
	}
	return genericFailure, false
}

package leveling

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// parseCommand splits "<prefix>name arg..." into a lowercase name and args.
func parseCommand(prefix, content string) (string, []string, bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 || prefix == "" || !strings.HasPrefix(fields[0], prefix) {
		return "", nil, false
	}
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], prefix))
	if cmd == "" {
		return "", nil, false
	}
	return cmd, fields[1:], true
}

func isMention(arg string) bool {
	return strings.HasPrefix(arg, "<@") && strings.HasSuffix(arg, ">")
}

// parseAmount returns the first non-mention argument as an integer.
func parseAmount(args []string) (int64, bool) {
	for _, a := range args {
		if isMention(a) {
			continue
		}
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// parsePage reads a 1-based page number, defaulting to 1.
func parsePage(args []string) int {
	if len(args) == 0 {
		return 1
	}
	p, err := strconv.Atoi(args[0])
	if err != nil || p < 1 {
		return 1
	}
	return p
}

// firstMention returns the first mentioned user, if any.
func firstMention(m *discordgo.Message) *discordgo.User {
	for _, u := range m.Mentions {
		if u != nil {
			return u
		}
	}
	return nil
}

// targetOrAuthor returns the first mentioned user or the author.
func targetOrAuthor(m *discordgo.Message) *discordgo.User {
	if u := firstMention(m); u != nil {
		return u
	}
	return m.Author
}

func displayName(u *discordgo.User) string {
	if u == nil {
		return "Unknown User"
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

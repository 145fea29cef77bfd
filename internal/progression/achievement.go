package progression

import "time"

const (
	AchievementFirstMessage = "first_message"
	AchievementLevel5       = "level_5"
	AchievementLevel10      = "level_10"
	AchievementLevel30      = "level_30"
	AchievementDailyStreak  = "daily_7"
	AchievementPopular      = "rep_10"
)

const (
	ReputationMilestone = 10
	StreakClaims        = 7
	StreakWindow        = 7 * 24 * time.Hour
)

type Achievement struct {
	Key         string
	Name        string
	Description string
	Emoji       string
}

// Achievements is the catalog, in display order.
var Achievements = []Achievement{
	{Key: AchievementFirstMessage, Name: "First Message", Description: "Sent your first message", Emoji: "🗣️"},
	{Key: AchievementLevel5, Name: "First Big Leap", Description: "Reached level 5", Emoji: "🚀"},
	{Key: AchievementLevel10, Name: "Serious Hacker", Description: "Reached level 10", Emoji: "💎"},
	{Key: AchievementDailyStreak, Name: "Consistent", Description: "Claimed daily XP 7 times in a week", Emoji: "🌞"},
	{Key: AchievementLevel30, Name: "Cyber God", Description: "Reached level 30", Emoji: "🤖"},
	{Key: AchievementPopular, Name: "Popular", Description: "Received 10 reputation points", Emoji: "❤️"},
}

// LevelMilestones maps milestone levels to the achievement they unlock.
var LevelMilestones = []struct {
	Level int
	Key   string
}{
	{Level: 5, Key: AchievementLevel5},
	{Level: 10, Key: AchievementLevel10},
	{Level: 30, Key: AchievementLevel30},
}

// LookupAchievement finds a catalog entry by key.
func LookupAchievement(key string) (Achievement, bool) {
	for _, a := range Achievements {
		if a.Key == key {
			return a, true
		}
	}
	return Achievement{}, false
}

// LevelAchievements returns every level milestone achievement earned at level.
func LevelAchievements(level int) []string {
	var keys []string
	for _, m := range LevelMilestones {
		if m.Level <= level {
			keys = append(keys, m.Key)
		}
	}
	return keys
}

// ReputationAchievements returns the reputation achievements earned at rep.
func ReputationAchievements(rep int64) []string {
	if rep >= ReputationMilestone {
		return []string{AchievementPopular}
	}
	return nil
}

// StreakReached reports whether at least StreakClaims distinct claims fall in
// the trailing StreakWindow ending at now. Claims are counted, not
// consecutive calendar days.
func StreakReached(claims []time.Time, now time.Time) bool {
	cutoff := now.Add(-StreakWindow)
	seen := make(map[int64]struct{}, len(claims))
	for _, c := range claims {
		if c.Before(cutoff) || c.After(now) {
			continue
		}
		seen[c.UnixNano()] = struct{}{}
	}
	return len(seen) >= StreakClaims
}

// Unlocked filters the catalog down to the given keys, keeping catalog order.
func Unlocked(keys []string) []Achievement {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	var out []Achievement
	for _, a := range Achievements {
		if _, ok := set[a.Key]; ok {
			out = append(out, a)
		}
	}
	return out
}

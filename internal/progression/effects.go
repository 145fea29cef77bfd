package progression

import "github.com/code-wolf-byte/levelman/internal/database"

// Effect is a side effect to run after the state change that produced it
// has been committed.
type Effect interface {
	effect()
}

// RankChange asks the role sink to move a member from Previous to Current.
type RankChange struct {
	GuildID  string
	UserID   string
	Previous *Rank
	Current  Rank
}

// LevelUp summarizes a level gain for presentation.
type LevelUp struct {
	GuildID       string
	UserID        string
	PreviousLevel int
	Level         int
	PreviousRank  Rank
	Rank          Rank
	XP            int64
	Threshold     int64
}

// LevelReminder fires when a member lands exactly on their reminder level.
type LevelReminder struct {
	GuildID string
	UserID  string
	Level   int
}

// AchievementUnlocked is emitted once per newly stored unlock.
type AchievementUnlocked struct {
	GuildID     string
	UserID      string
	Achievement Achievement
}

func (RankChange) effect()          {}
func (LevelUp) effect()             {}
func (LevelReminder) effect()       {}
func (AchievementUnlocked) effect() {}

// Outcome is the result of a state transition: the new state, the
// achievements it may unlock and the effects to run once it is stored.
type Outcome struct {
	Progress     database.UserProgress
	LevelsGained int
	Unlocks      []string
	Effects      []Effect
}

// Advance applies delta through ApplyXP and derives the level-up effects
// from the final level. Rank sync is only requested when the rank changed.
// The reminder fires on an exact level match only and is then cleared.
func Advance(p database.UserProgress, delta int64) Outcome {
	next, gained := ApplyXP(p, delta)
	out := Outcome{Progress: next, LevelsGained: gained}
	if gained == 0 {
		return out
	}

	prevRank, rank := RankFor(p.Level), RankFor(next.Level)
	if prevRank != rank {
		out.Effects = append(out.Effects, RankChange{
			GuildID:  next.GuildSnowflake,
			UserID:   next.UserSnowflake,
			Previous: &prevRank,
			Current:  rank,
		})
	}

	out.Unlocks = LevelAchievements(next.Level)

	out.Effects = append(out.Effects, LevelUp{
		GuildID:       next.GuildSnowflake,
		UserID:        next.UserSnowflake,
		PreviousLevel: p.Level,
		Level:         next.Level,
		PreviousRank:  prevRank,
		Rank:          rank,
		XP:            next.XP,
		Threshold:     XPRequired(next.Level),
	})

	if next.LevelReminder > 0 && next.Level == next.LevelReminder {
		out.Effects = append(out.Effects, LevelReminder{
			GuildID: next.GuildSnowflake,
			UserID:  next.UserSnowflake,
			Level:   next.Level,
		})
		out.Progress.LevelReminder = 0
	}
	return out
}

// Package progression holds the XP and leveling rules: the level curve,
// ranks, achievements and the cooldown and economy policies. Everything here
// is pure; persistence and side effects live with the callers.
package progression

import (
	"math"

	"github.com/code-wolf-byte/levelman/internal/database"
)

const (
	MessageXPMin = 15
	MessageXPMax = 25
	DailyXP      = 250
	VoiceXP      = 50

	// MaxGrant bounds a single admin grant.
	MaxGrant = 1_000_000
)

// XPRequired returns the XP needed to advance from level to level+1.
func XPRequired(level int) int64 {
	l := int64(level)
	return 5*l*l + 50*l + 100
}

// ApplyXP adds delta to the current-level XP and rolls over as many levels as
// the total covers. A non-positive delta leaves p untouched; the sum
// saturates at math.MaxInt64.
func ApplyXP(p database.UserProgress, delta int64) (database.UserProgress, int) {
	if delta <= 0 {
		return p, 0
	}

	if p.XP > math.MaxInt64-delta {
		p.XP = math.MaxInt64
	} else {
		p.XP += delta
	}
	gained := 0
	for p.XP >= XPRequired(p.Level) {
		p.XP -= XPRequired(p.Level)
		p.Level++
		gained++
	}
	return p, gained
}

// RollMessageXP draws the passive message reward in [MessageXPMin, MessageXPMax].
// intn must behave like rand.IntN.
func RollMessageXP(intn func(n int) int) int64 {
	return int64(MessageXPMin + intn(MessageXPMax-MessageXPMin+1))
}

package progression

import (
	"math"
	"testing"

	"github.com/code-wolf-byte/levelman/internal/database"
	"github.com/stretchr/testify/assert"
)

func TestXPRequired(t *testing.T) {
	assert.Equal(t, int64(100), XPRequired(0))
	assert.Equal(t, int64(155), XPRequired(1))
	assert.Equal(t, int64(1100), XPRequired(10))

	for l := 0; l < 500; l++ {
		assert.Less(t, XPRequired(l), XPRequired(l+1), "level %d", l)
	}
}

func TestApplyXP_NoLevelUp(t *testing.T) {
	p, gained := ApplyXP(database.UserProgress{XP: 10}, 20)
	assert.Equal(t, 0, gained)
	assert.Equal(t, int64(30), p.XP)
	assert.Equal(t, 0, p.Level)
}

func TestApplyXP_ExactThreshold(t *testing.T) {
	p, gained := ApplyXP(database.UserProgress{XP: 90}, 10)
	assert.Equal(t, 1, gained)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, int64(0), p.XP)
}

func TestApplyXP_NonPositiveDelta(t *testing.T) {
	start := database.UserProgress{XP: 42, Level: 3}
	for _, delta := range []int64{0, -5} {
		p, gained := ApplyXP(start, delta)
		assert.Equal(t, 0, gained)
		assert.Equal(t, start, p)
	}
}

func TestApplyXP_MultiLevelJump(t *testing.T) {
	p, gained := ApplyXP(database.UserProgress{}, 10000)

	// 100+155+220+295+380+475+580+695+820+955+1100+1255+1420 = 8450
	assert.Equal(t, 13, gained)
	assert.Equal(t, 13, p.Level)
	assert.Equal(t, int64(1550), p.XP)

	var spent int64
	for l := 0; l < p.Level; l++ {
		spent += XPRequired(l)
	}
	assert.Equal(t, int64(10000), spent+p.XP)
}

func TestApplyXP_Invariant(t *testing.T) {
	deltas := []int64{1, 7, 15, 25, 99, 100, 250, 1000, 4321, 100000}
	p := database.UserProgress{}
	for _, d := range deltas {
		p, _ = ApplyXP(p, d)
		assert.Less(t, p.XP, XPRequired(p.Level))
		assert.GreaterOrEqual(t, p.XP, int64(0))
	}
}

func TestApplyXP_Saturates(t *testing.T) {
	p, gained := ApplyXP(database.UserProgress{Level: 3000000, XP: 10}, math.MaxInt64)
	assert.Positive(t, gained)
	assert.GreaterOrEqual(t, p.XP, int64(0))
	assert.Less(t, p.XP, XPRequired(p.Level))
}

func TestRollMessageXP(t *testing.T) {
	assert.Equal(t, int64(MessageXPMin), RollMessageXP(func(int) int { return 0 }))
	assert.Equal(t, int64(MessageXPMax), RollMessageXP(func(n int) int { return n - 1 }))
}

package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankFor_Boundaries(t *testing.T) {
	for i, r := range Ranks {
		assert.Equal(t, r, RankFor(r.MinLevel), "boundary of %s", r.Name)
		if i > 0 {
			assert.Equal(t, Ranks[i-1], RankFor(r.MinLevel-1))
		}
	}
}

func TestRankFor_Table(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{0, "👶 Newbie"},
		{3, "🟢 Script Kiddie"},
		{9, "🔵 Junior Hacker"},
		{29, "🔴 Elite Hacker"},
		{30, "👑 Cyber God"},
		{500, "👑 Cyber God"},
		{-1, "👶 Newbie"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RankFor(tt.level).Name, "level %d", tt.level)
	}
}

func TestIsRankName(t *testing.T) {
	assert.True(t, IsRankName("🟣 Hacker"))
	assert.False(t, IsRankName("Moderator"))
	assert.Equal(t, 30, TopRank().MinLevel)
}

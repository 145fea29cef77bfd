package leveling

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/code-wolf-byte/levelman/internal/progression"
	"github.com/stretchr/testify/assert"
)

func TestLookupCommand(t *testing.T) {
	assert.Equal(t, "daily", lookupCommand("claim").Name)
	assert.Equal(t, "top", lookupCommand("leaderboard").Name)
	assert.True(t, lookupCommand("reset").Admin)
	assert.False(t, lookupCommand("rank").Admin)
	assert.Nil(t, lookupCommand("nope"))

	seen := map[string]bool{}
	for _, cmd := range commands {
		assert.False(t, seen[cmd.Name], "duplicate command %s", cmd.Name)
		seen[cmd.Name] = true
		assert.NotNil(t, cmd.Run, cmd.Name)
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err      error
		contains string
		expected bool
	}{
		{
			err:      &progression.CooldownError{Action: progression.ActionDaily, Remaining: 90 * time.Second},
			contains: "**2 minute(s)**",
			expected: true,
		},
		{
			err:      fmt.Errorf("claim: %w", &progression.CooldownError{Action: progression.ActionReputation, Remaining: time.Hour}),
			contains: "gave reputation",
			expected: true,
		},
		{
			err:      &progression.InsufficientXPError{Required: 5000, Available: 12},
			contains: "need 5000 XP",
			expected: true,
		},
		{err: progression.ErrNoProgress, contains: "no data", expected: true},
		{err: progression.ErrSelfTarget, contains: "another user", expected: true},
		{err: progression.ErrInvalidAmount, contains: "between 1 and 1000", expected: true},
		{err: progression.ErrUnknownItem, contains: "`!shop`", expected: true},
		{err: progression.ErrInvalidBackground, contains: ".png", expected: true},
		{err: progression.ErrInvalidReminder, contains: "(1-50)", expected: true},
		{err: usageError("❌ Usage: `!rep @user`"), contains: "!rep @user", expected: true},
		{err: errors.New("database is locked"), contains: genericFailure, expected: false},
	}
	for _, tt := range tests {
		msg, expected := describeError(tt.err, "!")
		assert.Contains(t, msg, tt.contains, tt.err.Error())
		assert.Equal(t, tt.expected, expected, tt.err.Error())
	}
}

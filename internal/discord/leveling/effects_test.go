package leveling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/code-wolf-byte/levelman/internal/progression"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRanks struct {
	mu    sync.Mutex
	calls []progression.RankChange
	err   error
}

func (f *fakeRanks) SyncRank(_ context.Context, e progression.RankChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, e)
	return f.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	channels []string
	effects  []progression.Effect
	notify   func(ctx context.Context, e progression.Effect) error
}

func (f *fakeNotifier) Notify(ctx context.Context, channelID string, e progression.Effect) error {
	f.mu.Lock()
	f.channels = append(f.channels, channelID)
	f.effects = append(f.effects, e)
	notify := f.notify
	f.mu.Unlock()
	if notify != nil {
		return notify(ctx, e)
	}
	return nil
}

func levelUpBatch() []progression.Effect {
	p := progression.RankFor(0)
	return []progression.Effect{
		progression.RankChange{GuildID: testGuild, UserID: "u1", Previous: &p, Current: progression.RankFor(1)},
		progression.LevelUp{GuildID: testGuild, UserID: "u1", Level: 1},
		progression.AchievementUnlocked{GuildID: testGuild, UserID: "u1"},
	}
}

func TestExecutor_RoutesEffects(t *testing.T) {
	ranks, notifier := &fakeRanks{}, &fakeNotifier{}
	log := zerolog.Nop()
	x := NewExecutor(ranks, notifier, time.Second, &log)

	x.Run(context.Background(), "chan-1", levelUpBatch())

	require.Len(t, ranks.calls, 1)
	assert.Equal(t, progression.RankFor(1), ranks.calls[0].Current)
	require.Len(t, notifier.effects, 2)
	assert.IsType(t, progression.LevelUp{}, notifier.effects[0])
	assert.IsType(t, progression.AchievementUnlocked{}, notifier.effects[1])
	assert.Equal(t, []string{"chan-1", "chan-1"}, notifier.channels)
}

func TestExecutor_FailuresAreSwallowed(t *testing.T) {
	ranks := &fakeRanks{err: errors.New("missing permissions")}
	notifier := &fakeNotifier{notify: func(_ context.Context, e progression.Effect) error {
		if _, ok := e.(progression.LevelUp); ok {
			panic("boom")
		}
		return nil
	}}
	log := zerolog.Nop()
	x := NewExecutor(ranks, notifier, time.Second, &log)

	assert.NotPanics(t, func() {
		x.Run(context.Background(), "chan-1", levelUpBatch())
	})
	// every effect was still attempted
	assert.Len(t, ranks.calls, 1)
	assert.Len(t, notifier.effects, 2)
}

func TestExecutor_Timeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	notifier := &fakeNotifier{notify: func(_ context.Context, _ progression.Effect) error {
		<-release
		return nil
	}}
	log := zerolog.Nop()
	x := NewExecutor(nil, notifier, 20*time.Millisecond, &log)

	start := time.Now()
	x.Run(context.Background(), "chan-1", []progression.Effect{
		progression.LevelReminder{GuildID: testGuild, UserID: "u1", Level: 3},
		progression.LevelReminder{GuildID: testGuild, UserID: "u1", Level: 3},
	})
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewExecutor_DefaultTimeout(t *testing.T) {
	log := zerolog.Nop()
	x := NewExecutor(nil, nil, 0, &log)
	assert.Equal(t, defaultEffectTimeout, x.timeout)

	// without sinks effects are dropped
	assert.NotPanics(t, func() {
		x.Run(context.Background(), "chan-1", levelUpBatch())
	})
}

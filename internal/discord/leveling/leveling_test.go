package leveling

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/code-wolf-byte/levelman/internal/progression"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModule(t *testing.T) *Leveling {
	t.Helper()
	log := zerolog.Nop()
	return New(nil, newTestDB(t), Options{Prefix: "!", DefaultBackground: testBG}, &log)
}

func TestLoad_CreatesModuleRow(t *testing.T) {
	lv := newTestModule(t)
	require.NoError(t, lv.Load(testGuild, "Test Guild"))

	enabled, err := lv.Status(testGuild)
	require.NoError(t, err)
	assert.True(t, enabled)

	cmds, err := lv.Commands(testGuild)
	require.NoError(t, err)
	assert.Len(t, cmds, len(commands))
	assert.True(t, cmds["daily"])

	// loading again keeps the row
	require.NoError(t, lv.Load(testGuild, "Test Guild"))
}

func TestLoad_AddsNewCommands(t *testing.T) {
	lv := newTestModule(t)
	require.NoError(t, lv.Load(testGuild, "Test Guild"))

	mod, err := lv.repo.ReadModule(testGuild)
	require.NoError(t, err)
	mod.Commands = []byte(`{"rank":false}`)
	_, err = lv.repo.UpdateModule(mod)
	require.NoError(t, err)

	require.NoError(t, lv.Load(testGuild, "Test Guild"))
	cmds, err := lv.Commands(testGuild)
	require.NoError(t, err)
	assert.False(t, cmds["rank"], "existing toggles are kept")
	assert.True(t, cmds["daily"])
}

func TestEnableDisable(t *testing.T) {
	lv := newTestModule(t)
	require.NoError(t, lv.Load(testGuild, "Test Guild"))

	assert.ErrorIs(t, lv.Enable(testGuild), ErrModuleAlreadyEnabled)
	require.NoError(t, lv.Disable(testGuild))
	assert.ErrorIs(t, lv.Disable(testGuild), ErrModuleAlreadyDisabled)

	enabled, err := lv.Status(testGuild)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, lv.Enable(testGuild))
}

func TestSetCommandEnabled(t *testing.T) {
	lv := newTestModule(t)
	require.NoError(t, lv.Load(testGuild, "Test Guild"))

	require.NoError(t, lv.SetCommandEnabled(testGuild, "give", false))
	cmds, err := lv.Commands(testGuild)
	require.NoError(t, err)
	assert.False(t, cmds["give"])

	assert.ErrorIs(t, lv.SetCommandEnabled(testGuild, "nope", false), ErrUnknownCommand)
}

func TestSetConfig(t *testing.T) {
	lv := newTestModule(t)
	require.NoError(t, lv.Load(testGuild, "Test Guild"))

	cfg, err := lv.Config(testGuild)
	require.NoError(t, err)
	assert.Empty(t, cfg.LevelUpChannelID)

	require.NoError(t, lv.SetConfig(testGuild, ModuleConfig{LevelUpChannelID: "123456789"}))
	cfg, err = lv.Config(testGuild)
	require.NoError(t, err)
	assert.Equal(t, "123456789", cfg.LevelUpChannelID)

	assert.Error(t, lv.SetConfig(testGuild, ModuleConfig{LevelUpChannelID: "general"}))
}

// recorder keeps every message the module posts.
type recorder struct {
	mu   sync.Mutex
	sent []*discordgo.MessageSend
}

func (r *recorder) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, data)
	return &discordgo.Message{ID: fmt.Sprintf("sent-%d", len(r.sent)), ChannelID: channelID}, nil
}

func (r *recorder) ChannelMessageDelete(string, string, ...discordgo.RequestOption) error {
	return nil
}

// replies returns the text of messages answering a command message.
func (r *recorder) replies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.sent {
		if m.Reference != nil {
			out = append(out, m.Content)
		}
	}
	return out
}

func (r *recorder) withComponents() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.sent {
		if len(m.Components) > 0 {
			n++
		}
	}
	return n
}

// newChatModule returns a loaded module whose message XP roll is always the
// minimum.
func newChatModule(t *testing.T) (*Leveling, *recorder) {
	t.Helper()
	lv := newTestModule(t)
	rec := &recorder{}
	lv.out = rec
	lv.now = func() time.Time { return t0 }
	lv.intn = func(int) int { return 0 }
	require.NoError(t, lv.Load(testGuild, "Test Guild"))
	return lv, rec
}

func chat(content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "msg-1",
		ChannelID: "chan-1",
		GuildID:   testGuild,
		Content:   content,
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
	}}
}

func xpOf(t *testing.T, lv *Leveling) int64 {
	t.Helper()
	p, err := lv.repo.ReadProgress(testGuild, "u1")
	require.NoError(t, err)
	return p.XP
}

// withCommand serves an extra command for the duration of the test.
func withCommand(t *testing.T, cmd *command) {
	saved := commands
	commands = append(slices.Clone(commands), cmd)
	t.Cleanup(func() { commands = saved })
}

func TestOnMessageCreate_PlainTextEarnsXP(t *testing.T) {
	lv, _ := newChatModule(t)

	lv.OnMessageCreate(nil, chat("hello there"))
	assert.Equal(t, int64(15), xpOf(t, lv))

	// inside the message cooldown
	lv.OnMessageCreate(nil, chat("again"))
	assert.Equal(t, int64(15), xpOf(t, lv))
}

func TestOnMessageCreate_UnknownCommandEarnsXP(t *testing.T) {
	lv, rec := newChatModule(t)

	lv.OnMessageCreate(nil, chat("!foo bar"))
	assert.Equal(t, int64(15), xpOf(t, lv))
	assert.Empty(t, rec.replies())
}

func TestOnMessageCreate_CommandEarnsNoXP(t *testing.T) {
	lv, rec := newChatModule(t)

	lv.OnMessageCreate(nil, chat("!rank"))
	assert.Equal(t, int64(0), xpOf(t, lv))
	assert.Equal(t, 1, rec.withComponents(), "rank card with profile button")
}

func TestOnMessageCreate_DisabledCommandEarnsNoXP(t *testing.T) {
	lv, rec := newChatModule(t)
	require.NoError(t, lv.SetCommandEnabled(testGuild, "rank", false))

	lv.OnMessageCreate(nil, chat("!rank"))
	assert.Equal(t, int64(0), xpOf(t, lv))
	assert.Zero(t, rec.withComponents())
}

func TestOnMessageCreate_DisabledGuildIgnored(t *testing.T) {
	lv, rec := newChatModule(t)
	require.NoError(t, lv.Disable(testGuild))

	lv.OnMessageCreate(nil, chat("hello"))
	lv.OnMessageCreate(nil, chat("!daily"))

	_, err := lv.repo.ReadProgress(testGuild, "u1")
	assert.ErrorIs(t, err, progression.ErrNoProgress)
	assert.Empty(t, rec.sent)
}

func TestOnMessageCreate_IgnoresBots(t *testing.T) {
	lv, _ := newChatModule(t)
	m := chat("hello")
	m.Author.Bot = true

	lv.OnMessageCreate(nil, m)
	_, err := lv.repo.ReadProgress(testGuild, "u1")
	assert.ErrorIs(t, err, progression.ErrNoProgress)
}

func TestDispatch_ExpectedErrorReply(t *testing.T) {
	lv, rec := newChatModule(t)

	lv.OnMessageCreate(nil, chat("!daily"))
	lv.OnMessageCreate(nil, chat("!daily"))

	replies := rec.replies()
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0], "You claimed")
	assert.Contains(t, replies[1], "already claimed your daily XP")
}

func TestDispatch_FailuresBecomeGenericReply(t *testing.T) {
	withCommand(t, &command{Name: "broken", Run: func(*Leveling, *commandContext) error {
		return errors.New("database is locked")
	}})
	withCommand(t, &command{Name: "explode", Run: func(*Leveling, *commandContext) error {
		panic("boom")
	}})
	lv, rec := newChatModule(t)

	assert.NotPanics(t, func() {
		lv.OnMessageCreate(nil, chat("!broken"))
		lv.OnMessageCreate(nil, chat("!explode"))
	})
	assert.Equal(t, []string{genericFailure, genericFailure}, rec.replies())

	// later events are still processed
	lv.OnMessageCreate(nil, chat("hello"))
	assert.Equal(t, int64(15), xpOf(t, lv))
}

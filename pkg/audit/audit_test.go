package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guildwarden/pkg/bus"
	"guildwarden/pkg/discord/discordtest"
	"guildwarden/pkg/guildconfig"
	"guildwarden/pkg/logger"
	"guildwarden/pkg/ratelimit"
)

type recordingBus struct {
	mu   sync.Mutex
	msgs []*bus.Message
	err  error
}

func (b *recordingBus) Start() error                  { return nil }
func (b *recordingBus) Stop() error                   { return nil }
func (b *recordingBus) Subscribe(string, bus.Handler) {}
func (b *recordingBus) GetMetrics() map[string]uint64 { return nil }
func (b *recordingBus) Publish(_ context.Context, m *bus.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, m)
	return b.err
}

type memSettings struct {
	settings map[string]guildconfig.Settings
	err      error
}

func (m *memSettings) Get(_ context.Context, guildID string) (guildconfig.Settings, error) {
	if m.err != nil {
		return guildconfig.Settings{}, m.err
	}
	return m.settings[guildID], nil
}

func (m *memSettings) Update(context.Context, string, func(*guildconfig.Settings) error) (guildconfig.Settings, error) {
	return guildconfig.Settings{}, errors.New("read only")
}

func TestBusNotifierPublishes(t *testing.T) {
	rb := &recordingBus{}
	n := NewBusNotifier(rb, nil, logger.NewNop())

	n.Notify(context.Background(), Entry{GuildID: "1", Action: "ban", ModeratorID: "2", TargetID: "3"})
	n.Close()

	require.Len(t, rb.msgs, 1)
	assert.Equal(t, Topic, rb.msgs[0].Topic)
	assert.Equal(t, "1", rb.msgs[0].Key)

	var got Entry
	require.NoError(t, rb.msgs[0].Decode(&got))
	assert.Equal(t, "ban", got.Action)
	assert.False(t, got.At.IsZero(), "timestamp should be filled in")
}

func TestBusNotifierSwallowsFailures(t *testing.T) {
	rb := &recordingBus{err: bus.ErrQueueFull}
	n := NewBusNotifier(rb, nil, logger.NewNop())

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), Entry{GuildID: "1", Action: "kick"})
		n.Close()
	})
	assert.Len(t, rb.msgs, 1)
}

type blockingBus struct {
	recordingBus
	entered chan struct{}
}

func (b *blockingBus) Publish(ctx context.Context, m *bus.Message) error {
	b.entered <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func TestBusNotifierDoesNotWaitForPublish(t *testing.T) {
	bb := &blockingBus{entered: make(chan struct{}, 8)}
	n := NewBusNotifier(bb, nil, logger.NewNop())
	n.timeout = 200 * time.Millisecond

	start := time.Now()
	n.Notify(context.Background(), Entry{GuildID: "1", Action: "ban"})
	n.Notify(context.Background(), Entry{GuildID: "1", Action: "kick"})
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	select {
	case <-bb.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("entry was never handed to the bus")
	}
	n.Close()
}

func TestBusNotifierDropsWhenQueueFull(t *testing.T) {
	bb := &blockingBus{entered: make(chan struct{}, DefaultQueueSize+8)}
	n := NewBusNotifier(bb, nil, logger.NewNop())
	n.timeout = time.Millisecond

	start := time.Now()
	for i := 0; i < DefaultQueueSize+4; i++ {
		n.Notify(context.Background(), Entry{GuildID: "1", Action: "purge"})
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	n.Close()

	n.Notify(context.Background(), Entry{GuildID: "1", Action: "purge"})
}

func TestBusNotifierThrottlesPerGuild(t *testing.T) {
	rb := &recordingBus{}
	n := NewBusNotifier(rb, ratelimit.New(0.001, 2, time.Minute), logger.NewNop())
	fixed := time.Unix(1700000000, 0)
	n.now = func() time.Time { return fixed }

	for i := 0; i < 5; i++ {
		n.Notify(context.Background(), Entry{GuildID: "noisy", Action: "purge"})
	}
	n.Notify(context.Background(), Entry{GuildID: "quiet", Action: "purge"})
	n.Close()

	assert.Len(t, rb.msgs, 3, "burst of 2 for the noisy guild plus 1 for the quiet guild")
}

func TestPosterUsesGuildLogChannel(t *testing.T) {
	api := new(discordtest.API)
	settings := &memSettings{settings: map[string]guildconfig.Settings{"1": {LogChannelID: "log-1"}}}
	p := NewPoster(api, settings, "fallback", logger.NewNop())

	api.On("SendMessage", mock.Anything, "log-1", mock.MatchedBy(func(m *discordgo.MessageSend) bool {
		return len(m.Embeds) == 1 && m.Embeds[0].Title == "User banned"
	})).Return(nil).Once()

	msg, err := bus.NewMessage(Topic, "1", Entry{GuildID: "1", Action: "ban", ModeratorID: "2", TargetID: "3", At: time.Now()})
	require.NoError(t, err)
	require.NoError(t, p.Handle(context.Background(), msg))
	api.AssertExpectations(t)
}

func TestPosterFallsBackAndSkips(t *testing.T) {
	api := new(discordtest.API)
	settings := &memSettings{err: errors.New("redis down")}

	api.On("SendMessage", mock.Anything, "fallback", mock.Anything).Return(nil).Once()
	msg, _ := bus.NewMessage(Topic, "1", Entry{GuildID: "1", Action: "kick"})
	require.NoError(t, NewPoster(api, settings, "fallback", logger.NewNop()).Handle(context.Background(), msg))

	// No log channel and no fallback: nothing is sent.
	require.NoError(t, NewPoster(api, &memSettings{}, "", logger.NewNop()).Handle(context.Background(), msg))
	api.AssertExpectations(t)
}

func TestEmbedFields(t *testing.T) {
	e := Embed(Entry{Action: "timeout", ModeratorID: "1", TargetID: "2", ChannelID: "3", Detail: "for 1h", At: time.Unix(0, 0)})
	assert.Equal(t, "Member timed out", e.Title)
	assert.Equal(t, "1970-01-01T00:00:00Z", e.Timestamp)

	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Moderator", "Target", "Channel", "Reason", "Details"}, names)
	assert.Equal(t, "No reason given", e.Fields[3].Value)
}

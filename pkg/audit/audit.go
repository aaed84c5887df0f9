// Package audit records successful moderation actions. Notification is
// fire-and-forget: it never blocks or fails the command that triggered it.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"guildwarden/pkg/bus"
	"guildwarden/pkg/logger"
	"guildwarden/pkg/ratelimit"
)

// Topic is the bus topic carrying audit entries.
const Topic = "audit"

// Entry describes one completed moderation action.
type Entry struct {
	GuildID     string    `json:"guild_id"`
	ChannelID   string    `json:"channel_id,omitempty"`
	Action      string    `json:"action"`
	ModeratorID string    `json:"moderator_id"`
	TargetID    string    `json:"target_id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier accepts audit entries.
type Notifier interface {
	Notify(ctx context.Context, entry Entry)
}

// Nop discards every entry.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Entry) {}

// BusNotifier publishes entries to the bus, throttled per guild. Notify
// only queues; a background worker does the publishing.
type BusNotifier struct {
	bus     bus.Bus
	limiter *ratelimit.KeyedLimiter
	log     *logger.Logger
	timeout time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan *bus.Message
	wg     sync.WaitGroup
}

// DefaultQueueSize is the number of entries waiting for publication
// before new ones are dropped.
const DefaultQueueSize = 256

// NewBusNotifier creates a notifier and starts its publisher. A nil
// limiter disables throttling. Call Close to drain it.
func NewBusNotifier(b bus.Bus, limiter *ratelimit.KeyedLimiter, log *logger.Logger) *BusNotifier {
	n := &BusNotifier{
		bus:     b,
		limiter: limiter,
		log:     log,
		timeout: 2 * time.Second,
		now:     time.Now,
		queue:   make(chan *bus.Message, DefaultQueueSize),
	}
	n.wg.Add(1)
	go n.publish()
	return n
}

// Notify queues entry for delivery and returns at once. Failures are
// logged and dropped. The caller's context is not used for publishing,
// so a finished request does not cancel its own audit entry.
func (n *BusNotifier) Notify(_ context.Context, entry Entry) {
	if entry.At.IsZero() {
		entry.At = n.now().UTC()
	}
	log := n.log.With(
		zap.String("guild_id", entry.GuildID),
		zap.String("action", entry.Action),
	)

	if !n.limiter.Allow(entry.GuildID, n.now()) {
		log.Warn("Audit entry dropped by rate limit")
		return
	}

	msg, err := bus.NewMessage(Topic, entry.GuildID, entry)
	if err != nil {
		log.Error("Failed to encode audit entry", zap.Error(err))
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		log.Warn("Audit entry dropped after shutdown")
		return
	}
	select {
	case n.queue <- msg:
	default:
		log.Warn("Audit entry dropped, publish queue full")
	}
}

func (n *BusNotifier) publish() {
	defer n.wg.Done()
	for msg := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		if err := n.bus.Publish(ctx, msg); err != nil {
			n.log.Warn("Failed to publish audit entry",
				zap.String("guild_id", msg.Key),
				zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting entries and waits until queued ones are published.
func (n *BusNotifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	n.wg.Wait()
}

var (
	_ Notifier = Nop{}
	_ Notifier = (*BusNotifier)(nil)
)

package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"guildwarden/pkg/logger"
)

// LocalBus is an in-process message bus backed by a buffered channel.
type LocalBus struct {
	log      *logger.Logger
	handlers map[string][]Handler // Topic -> handlers
	mu       sync.RWMutex

	queue   chan *Message
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats counters
}

// NewLocalBus creates a new local message bus.
func NewLocalBus(log *logger.Logger, bufferSize int) *LocalBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &LocalBus{
		log:      log,
		handlers: make(map[string][]Handler),
		queue:    make(chan *Message, bufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the delivery loop.
func (b *LocalBus) Start() error {
	b.log.Debug("Starting local message bus")
	b.wg.Add(1)
	go b.process()
	return nil
}

// Stop rejects new messages, delivers what is already queued and waits.
func (b *LocalBus) Stop() error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()
	b.cancel()
	b.log.Debug("Local message bus stopped")
	return nil
}

// Subscribe registers a handler for a topic.
func (b *LocalBus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish queues msg. It never blocks: a full queue drops the message.
func (b *LocalBus) Publish(ctx context.Context, msg *Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return ErrStopped
	}

	select {
	case b.queue <- msg:
		b.stats.published.Add(1)
		return nil
	default:
		b.stats.dropped.Add(1)
		return ErrQueueFull
	}
}

func (b *LocalBus) process() {
	defer b.wg.Done()
	for msg := range b.queue {
		b.dispatch(msg)
	}
}

func (b *LocalBus) dispatch(msg *Message) {
	b.mu.RLock()
	handlers := b.handlers[msg.Topic]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Warn("No handlers registered for topic",
			zap.String("topic", msg.Topic),
			zap.String("message_id", msg.ID))
		return
	}

	for _, handler := range handlers {
		if err := handler(b.ctx, msg); err != nil {
			b.stats.errors.Add(1)
			b.log.Error("Handler error",
				zap.String("topic", msg.Topic),
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		b.stats.delivered.Add(1)
	}
}

// GetMetrics returns current bus metrics.
func (b *LocalBus) GetMetrics() map[string]uint64 {
	return b.stats.snapshot()
}

package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"guildwarden/pkg/logger"
)

// RedisBus delivers messages through Redis pub/sub, so any replica can
// publish and every subscribed replica receives. Delivery is at most once.
type RedisBus struct {
	log    *logger.Logger
	client *redis.Client
	prefix string

	handlers map[string][]Handler
	mu       sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	pubsub *redis.PubSub

	stats counters
}

// RedisBusConfig configures the Redis bus.
type RedisBusConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisBus creates a new Redis-based message bus.
func NewRedisBus(log *logger.Logger, cfg *RedisBusConfig) (*RedisBus, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "guildwarden:bus:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	log.Info("Redis bus initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("prefix", cfg.Prefix))

	return &RedisBus{
		log:      log,
		client:   client,
		prefix:   cfg.Prefix,
		handlers: make(map[string][]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start subscribes to every topic under the prefix.
func (b *RedisBus) Start() error {
	b.pubsub = b.client.PSubscribe(b.ctx, b.prefix+"*")
	if _, err := b.pubsub.Receive(b.ctx); err != nil {
		return fmt.Errorf("subscribing to Redis: %w", err)
	}

	b.wg.Add(1)
	go b.processMessages()
	return nil
}

// Stop unsubscribes and closes the client.
func (b *RedisBus) Stop() error {
	b.cancel()
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
	b.wg.Wait()
	return b.client.Close()
}

// Subscribe registers a handler for a topic.
func (b *RedisBus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish sends msg to the topic channel.
func (b *RedisBus) Publish(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	if err := b.client.Publish(ctx, b.prefix+msg.Topic, data).Err(); err != nil {
		b.stats.dropped.Add(1)
		return fmt.Errorf("publishing to Redis: %w", err)
	}
	b.stats.published.Add(1)
	return nil
}

// GetMetrics returns current bus metrics.
func (b *RedisBus) GetMetrics() map[string]uint64 {
	return b.stats.snapshot()
}

func (b *RedisBus) processMessages() {
	defer b.wg.Done()

	ch := b.pubsub.Channel()
	for {
		select {
		case redisMsg, ok := <-ch:
			if !ok {
				return
			}
			b.handleRedisMessage(redisMsg)
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *RedisBus) handleRedisMessage(redisMsg *redis.Message) {
	var msg Message
	if err := json.Unmarshal([]byte(redisMsg.Payload), &msg); err != nil {
		b.stats.errors.Add(1)
		b.log.Error("Failed to unmarshal bus message", zap.Error(err))
		return
	}
	if msg.Topic == "" {
		msg.Topic = strings.TrimPrefix(redisMsg.Channel, b.prefix)
	}

	b.mu.RLock()
	handlers := b.handlers[msg.Topic]
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(b.ctx, &msg); err != nil {
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

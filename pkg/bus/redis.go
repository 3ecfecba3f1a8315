package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus is the production Bus backed by Redis pub/sub
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus connects to Redis and verifies the connection with a ping
func NewRedisBus(ctx context.Context, addr, password string, db int) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisBus{client: client}, nil
}

// Publish sends a payload to a topic
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers for exact topic matches
func (b *RedisBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("subscribe: at least one topic is required")
	}
	ps := b.client.Subscribe(ctx, topics...)
	// Force the subscription to be established before returning
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return newRedisSub(ps), nil
}

// PSubscribe registers for pattern matches
func (b *RedisBus) PSubscribe(ctx context.Context, patterns ...string) (Subscription, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("psubscribe: at least one pattern is required")
	}
	ps := b.client.PSubscribe(ctx, patterns...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to psubscribe: %w", err)
	}
	return newRedisSub(ps), nil
}

// Close closes the underlying Redis client
func (b *RedisBus) Close() error {
	return b.client.Close()
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan Message
	once sync.Once
}

func newRedisSub(ps *redis.PubSub) *redisSub {
	sub := &redisSub{
		ps: ps,
		ch: make(chan Message, memoryBufferSize),
	}
	go sub.pump()
	return sub
}

// pump converts go-redis messages into bus messages until the PubSub closes
func (s *redisSub) pump() {
	defer close(s.ch)
	for m := range s.ps.Channel() {
		s.ch <- Message{
			Topic:   m.Channel,
			Pattern: m.Pattern,
			Payload: []byte(m.Payload),
		}
	}
}

// Messages returns the delivery channel
func (s *redisSub) Messages() <-chan Message {
	return s.ch
}

// Unsubscribe closes the underlying PubSub, which drains and closes the
// delivery channel
func (s *redisSub) Unsubscribe() {
	s.once.Do(func() { _ = s.ps.Close() })
}

package bus

import (
	"context"
	"fmt"
	"sync"
)

// memoryBufferSize is the per-subscriber delivery buffer
const memoryBufferSize = 256

// MemoryBus is a process-local Bus used in tests and single-process demo
// mode. Publishing fans out to every matching subscriber; a subscriber whose
// buffer is full has its oldest pending message dropped.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[uint64]*memorySub
	nextID uint64
	closed bool
}

type memorySub struct {
	topics   []string
	patterns []string
	ch       chan Message
	once     sync.Once
	remove   func()
}

// NewMemoryBus creates an empty in-memory bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uint64]*memorySub)}
}

// Publish delivers the payload to every subscriber matching the topic
func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	if topic == "" {
		return fmt.Errorf("publish: topic is required")
	}

	// Delivery happens under the read lock so a concurrent Unsubscribe or
	// Close cannot close a channel mid-send. Sends never block.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("publish: bus is closed")
	}
	for _, sub := range b.subs {
		pattern, ok := sub.matches(topic)
		if !ok {
			continue
		}
		msg := Message{Topic: topic, Pattern: pattern, Payload: payload}
		select {
		case sub.ch <- msg:
		default:
			// Buffer full, drop the oldest pending message and retry once
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
	return nil
}

// Subscribe registers for exact topic matches
func (b *MemoryBus) Subscribe(_ context.Context, topics ...string) (Subscription, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("subscribe: at least one topic is required")
	}
	return b.add(topics, nil)
}

// PSubscribe registers for pattern matches
func (b *MemoryBus) PSubscribe(_ context.Context, patterns ...string) (Subscription, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("psubscribe: at least one pattern is required")
	}
	return b.add(nil, patterns)
}

func (b *MemoryBus) add(topics, patterns []string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("subscribe: bus is closed")
	}

	id := b.nextID
	b.nextID++
	sub := &memorySub{
		topics:   topics,
		patterns: patterns,
		ch:       make(chan Message, memoryBufferSize),
	}
	sub.remove = func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
	b.subs[id] = sub
	return sub, nil
}

// Close shuts down the bus and closes every subscription channel
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(b.subs, id)
	}
	return nil
}

func (s *memorySub) matches(topic string) (string, bool) {
	for _, t := range s.topics {
		if t == topic {
			return "", true
		}
	}
	for _, p := range s.patterns {
		if MatchPattern(p, topic) {
			return p, true
		}
	}
	return "", false
}

// Messages returns the delivery channel
func (s *memorySub) Messages() <-chan Message {
	return s.ch
}

// Unsubscribe removes the subscription and closes its channel
func (s *memorySub) Unsubscribe() {
	// Remove first: the write lock inside remove serializes with in-flight
	// publishes, so the channel is unreachable before it is closed.
	s.remove()
	s.once.Do(func() { close(s.ch) })
}

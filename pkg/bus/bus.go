// Package bus provides the pub/sub fabric connecting vehicle agents and the
// orchestrator. Delivery is at-most-once with per-topic FIFO ordering.
package bus

import "context"

// Message is a single published payload delivered to a subscriber
type Message struct {
	// Topic the message was published on
	Topic string
	// Pattern that matched the topic, empty for direct subscriptions
	Pattern string
	// Payload is the raw published bytes
	Payload []byte
}

// Subscription represents an active topic or pattern subscription
type Subscription interface {
	// Messages returns the delivery channel. The channel is closed when the
	// subscription is cancelled or the bus shuts down.
	Messages() <-chan Message
	// Unsubscribe cancels the subscription. Safe to call more than once.
	Unsubscribe()
}

// Bus is the transport contract shared by the Redis and in-memory fabrics
type Bus interface {
	// Publish sends a payload to a topic. Delivery to slow subscribers may
	// be dropped; publishing never blocks on consumers.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers for exact topic matches
	Subscribe(ctx context.Context, topics ...string) (Subscription, error)
	// PSubscribe registers for pattern matches, where * matches exactly one
	// colon-separated segment
	PSubscribe(ctx context.Context, patterns ...string) (Subscription, error)
	// Close shuts down the bus and all subscriptions
	Close() error
}

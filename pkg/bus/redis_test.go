package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/aegis/pkg/bus"
)

func newTestRedisBus(t *testing.T) *bus.RedisBus {
	t.Helper()
	mr := miniredis.RunT(t)

	b, err := bus.NewRedisBus(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRedisBusConnectFailure(t *testing.T) {
	_, err := bus.NewRedisBus(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}

func TestRedisBusPublishSubscribe(t *testing.T) {
	b := newTestRedisBus(t)
	ctx := context.Background()

	topic := bus.TelemetryTopic("fleet01", "AMB-001")
	sub, err := b.Subscribe(ctx, topic)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, b.Publish(ctx, topic, []byte(`{"seq":1}`)))

	msg := redisReceive(t, sub)
	assert.Equal(t, topic, msg.Topic)
	assert.Empty(t, msg.Pattern)
	assert.JSONEq(t, `{"seq":1}`, string(msg.Payload))
}

func TestRedisBusPSubscribe(t *testing.T) {
	b := newTestRedisBus(t)
	ctx := context.Background()

	sub, err := b.PSubscribe(ctx, bus.PatternAlerts)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	alertTopic := bus.AlertsTopic("fleet01", "FIRE-002")
	require.NoError(t, b.Publish(ctx, alertTopic, []byte("alert")))

	msg := redisReceive(t, sub)
	assert.Equal(t, alertTopic, msg.Topic)
	assert.Equal(t, bus.PatternAlerts, msg.Pattern)
	assert.Equal(t, "alert", string(msg.Payload))
}

func TestRedisBusUnsubscribeClosesChannel(t *testing.T) {
	b := newTestRedisBus(t)

	sub, err := b.Subscribe(context.Background(), "aegis:emergencies:new")
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()

	select {
	case _, open := <-sub.Messages():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func redisReceive(t *testing.T, sub bus.Subscription) bus.Message {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		require.True(t, ok, "subscription closed unexpectedly")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return bus.Message{}
	}
}

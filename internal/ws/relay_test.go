package ws

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeConn(t *testing.T, r *Registry, sessionID, clientID string) *Conn {
	t.Helper()
	conn := NewConn(nil, 8)
	_, ok := conn.activate(r, sessionID, clientID)
	require.True(t, ok)
	receiveWithTimeout(t, conn, time.Second) // success ack
	return conn
}

func TestRelayDeliversPublishedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	registry := NewRegistry()
	conn := activeConn(t, registry, "S1", "A")
	relay := NewRelay(client, "study:events", NewBroadcaster(registry, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	select {
	case <-relay.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}

	relay.Broadcast("S1", "summarize:done", map[string]any{"result": map[string]string{"summary": "short"}})
	relay.Broadcast("S2", "summarize:done", map[string]string{"result": "ignored"})

	got := receiveWithTimeout(t, conn, 2*time.Second)
	assert.JSONEq(t, `{"event":"summarize:done","data":{"result":{"summary":"short"}}}`, string(got))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
	assert.Empty(t, conn.SendChan())
}

func TestRelayFallsBackToLocalDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	registry := NewRegistry()
	conn := activeConn(t, registry, "S1", "A")
	relay := NewRelay(client, "study:events", NewBroadcaster(registry, nil))

	mr.Close()
	relay.Broadcast("S1", "chat:error", map[string]string{"error": "boom"})

	got := receiveWithTimeout(t, conn, 2*time.Second)
	assert.JSONEq(t, `{"event":"chat:error","data":{"error":"boom"}}`, string(got))
}

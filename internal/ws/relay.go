package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/study-assistant/backend/internal/slogging"
)

const publishTimeout = 5 * time.Second

// relayMessage is the payload published on the Redis channel.
type relayMessage struct {
	SessionID string          `json:"sessionId"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
}

// Relay fans events out across instances through Redis pub/sub. Broadcast
// publishes; Run subscribes and hands every message to the local
// broadcaster, including this instance's own.
type Relay struct {
	client  *redis.Client
	channel string
	local   *Broadcaster
	ready   chan struct{}
}

// NewRelay creates a Relay publishing on channel.
func NewRelay(client *redis.Client, channel string, local *Broadcaster) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		local:   local,
		ready:   make(chan struct{}),
	}
}

// Broadcast publishes the event for every instance. If Redis rejects the
// publish, the event is still delivered to this instance's connections.
func (r *Relay) Broadcast(sessionID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slogging.Get().Error("Failed to marshal %s event for session %s: %v", event, sessionID, err)
		return
	}

	msg, err := json.Marshal(relayMessage{SessionID: sessionID, Event: event, Data: data})
	if err != nil {
		slogging.Get().Error("Failed to marshal relay message: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		slogging.Get().Warn("Redis publish failed, delivering %s locally: %v", event, err)
		r.local.Broadcast(sessionID, event, json.RawMessage(data))
	}
}

// Ready is closed once the subscription is confirmed.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run subscribes to the channel and delivers messages until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	close(r.ready)
	slogging.Get().Info("Relaying events on Redis channel %s", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}

			var msg relayMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				slogging.Get().Warn("Dropping malformed relay message: %v", err)
				continue
			}
			r.local.Broadcast(msg.SessionID, msg.Event, msg.Data)
		}
	}
}

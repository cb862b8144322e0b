package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultChannel is the Redis channel shared by every server instance.
const DefaultChannel = "ridra:events"

const publishTimeout = 2 * time.Second

// RedisBridge publishes events on a Redis channel so that every server
// instance delivers them to its own sockets. It still never blocks the
// caller: publishing happens in the background and, if Redis is
// unreachable, the event is delivered to local sockets only.
type RedisBridge struct {
	client  *redis.Client
	hub     *Hub
	channel string
}

type envelope struct {
	UserID uint            `json:"userId,omitempty"`
	Event  json.RawMessage `json:"event"`
}

// NewRedisBridge returns a bridge delivering into hub.
func NewRedisBridge(client *redis.Client, hub *Hub) *RedisBridge {
	return &RedisBridge{client: client, hub: hub, channel: DefaultChannel}
}

// ConnectRedis parses a redis:// URL and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (b *RedisBridge) PublishToUser(userID uint, evt Event) {
	b.publish(userID, evt)
}

func (b *RedisBridge) Broadcast(evt Event) {
	b.publish(0, evt)
}

func (b *RedisBridge) publish(userID uint, evt Event) {
	payload, ok := encode(evt)
	if !ok {
		return
	}
	msg, err := json.Marshal(envelope{UserID: userID, Event: payload})
	if err != nil {
		logrus.WithError(err).WithField("event", evt.Name).Error("Failed to encode envelope.")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
			logrus.WithError(err).WithField("event", evt.Name).Warn("Redis publish failed, delivering locally only.")
			b.deliver(userID, payload)
		}
	}()
}

func (b *RedisBridge) deliver(userID uint, payload []byte) {
	if userID == 0 {
		b.hub.deliverAll(payload)
		return
	}
	b.hub.deliverToUser(userID, payload)
}

// Start subscribes to the channel and returns once the subscription is
// live. Messages are relayed to the hub until ctx is cancelled.
func (b *RedisBridge) Start(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	logrus.WithField("channel", b.channel).Info("Subscribed to Redis event channel.")

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					logrus.WithError(err).Warn("Discarding malformed Redis event.")
					continue
				}
				b.deliver(env.UserID, env.Event)
			}
		}
	}()
	return nil
}

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisRouter publishes every emission on a Redis channel. Each node runs
// a subscriber that hands received envelopes to its local Hub, the
// publishing node included. Membership stays node-local; per-user
// connection counts live in Redis so presence is cluster-wide.
type RedisRouter struct {
	hub       *Hub
	client    *redis.Client
	channel   string
	log       zerolog.Logger
	ready     chan struct{}
	readyOnce sync.Once
}

type wireEnvelope struct {
	Rooms       []string        `json:"rooms"`
	Event       string          `json:"event"`
	Data        json.RawMessage `json:"data"`
	ExceptUsers []int64         `json:"except_users,omitempty"`
}

func NewRedisRouter(hub *Hub, client *redis.Client, channel string, log zerolog.Logger) *RedisRouter {
	return &RedisRouter{
		hub:     hub,
		client:  client,
		channel: channel,
		log:     log.With().Str("component", "redis_router").Str("channel", channel).Logger(),
		ready:   make(chan struct{}),
	}
}

func (r *RedisRouter) Join(connID, room string)  { r.hub.Join(connID, room) }
func (r *RedisRouter) Leave(connID, room string) { r.hub.Leave(connID, room) }

func (r *RedisRouter) Emit(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env.Data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	payload, err := json.Marshal(wireEnvelope{
		Rooms:       env.TargetRooms(),
		Event:       env.Event,
		Data:        data,
		ExceptUsers: env.ExceptUsers,
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

func (r *RedisRouter) presenceKey(userID int64) string {
	return r.channel + ":presence:" + strconv.FormatInt(userID, 10)
}

// Connected counts one more connection for the user and reports whether
// it is their first on any node.
func (r *RedisRouter) Connected(ctx context.Context, userID int64) (bool, error) {
	n, err := r.client.Incr(ctx, r.presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("count connection: %w", err)
	}
	return n == 1, nil
}

// Disconnected drops one connection and reports whether it was the user's
// last. A count that went negative is reset to zero.
func (r *RedisRouter) Disconnected(ctx context.Context, userID int64) (bool, error) {
	key := r.presenceKey(userID)
	n, err := r.client.Decr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("count disconnection: %w", err)
	}
	if n < 0 {
		if err := r.client.IncrBy(ctx, key, -n).Err(); err != nil {
			r.log.Warn().Err(err).Int64("user_id", userID).Msg("presence count reset failed")
		}
	}
	return n <= 0, nil
}

// Ready is closed once the subscription is confirmed.
func (r *RedisRouter) Ready() <-chan struct{} { return r.ready }

// Run subscribes and delivers until ctx is cancelled.
func (r *RedisRouter) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.log.Info().Msg("subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRouter) handle(payload string) {
	var env wireEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn().Err(err).Msg("dropping malformed envelope")
		return
	}
	frame, err := json.Marshal(Frame{Event: env.Event, Data: env.Data})
	if err != nil {
		r.log.Warn().Err(err).Msg("dropping unencodable envelope")
		return
	}
	r.hub.deliver(Envelope{Rooms: env.Rooms, Event: env.Event, ExceptUsers: env.ExceptUsers}, frame)
}

// Package redisrelay mirrors an environment.Store across processes through a
// Redis pub/sub channel. Every local change is published as a JSON snapshot
// tagged with the relay's origin id; snapshots from other origins are applied
// to the local store. Nothing is persisted.
package redisrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ggoodman/langclient-go/environment"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Default connection settings.
const (
	DefaultAddr    = "localhost:6379"
	DefaultChannel = "langclient:environment"
)

// Config for a Relay. Empty fields take the defaults.
type Config struct {
	// RedisAddr like "localhost:6379".
	RedisAddr string
	// Channel carrying snapshots.
	Channel string
}

type envelope struct {
	Origin string                  `json:"origin"`
	Env    environment.Environment `json:"env"`
}

// Relay connects one Store to a channel.
type Relay struct {
	client  *redis.Client
	channel string
	origin  string
	store   *environment.Store
	log     *slog.Logger

	mu         sync.Mutex
	lastRemote []byte
}

// New connects to Redis and verifies it is reachable.
func New(cfg Config, store *environment.Store, log *slog.Logger) (*Relay, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = DefaultAddr
	}
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Relay{
		client:  cl,
		channel: channel,
		origin:  uuid.NewString(),
		store:   store,
		log:     log,
	}, nil
}

// Origin identifies this relay in published snapshots.
func (r *Relay) Origin() string { return r.origin }

// Run relays in both directions until ctx ends. The current local value is
// published when Run starts.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	// Wait for the subscription to be confirmed so no early message is lost.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	unsub := r.store.Subscribe(func(env environment.Environment) {
		r.publish(ctx, env)
	})
	defer unsub()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.apply([]byte(msg.Payload))
		}
	}
}

func (r *Relay) publish(ctx context.Context, env environment.Environment) {
	body, err := json.Marshal(env)
	if err != nil {
		r.log.Warn("redisrelay.encode.fail", slog.String("err", err.Error()))
		return
	}
	r.mu.Lock()
	echo := bytes.Equal(body, r.lastRemote)
	r.mu.Unlock()
	if echo {
		return
	}

	payload, err := json.Marshal(envelope{Origin: r.origin, Env: env})
	if err != nil {
		return
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil && ctx.Err() == nil {
		r.log.Warn("redisrelay.publish.fail", slog.String("err", err.Error()))
	}
}

func (r *Relay) apply(payload []byte) {
	var e envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		r.log.Warn("redisrelay.decode.fail", slog.String("err", err.Error()))
		return
	}
	if e.Origin == r.origin {
		return
	}
	body, err := json.Marshal(e.Env)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.lastRemote = body
	r.mu.Unlock()
	r.store.Next(e.Env)
}

// Close closes the Redis client.
func (r *Relay) Close() error { return r.client.Close() }

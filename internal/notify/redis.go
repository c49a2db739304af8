package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel notifications are published on.
const DefaultChannel = "sithafal:notifications"

// RedisSink publishes notifications to a Redis channel so other dashboard
// instances (or an external listener) can mirror them.
type RedisSink struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisSink wraps an existing client.
func NewRedisSink(client redis.UniversalClient, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{client: client, channel: channel}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int, channel string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", addr, err)
	}
	return NewRedisSink(client, channel), nil
}

// Channel returns the channel name.
func (s *RedisSink) Channel() string {
	return s.channel
}

// Publish sends n as JSON.
func (s *RedisSink) Publish(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oshokin/shared-alarm/internal/api/protocol"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/logger"
)

// tokensKeySuffix names the set holding subscribed push tokens.
const tokensKeySuffix = ":tokens"

// redisCommander is the subset of the go-redis client used by Redis.
type redisCommander interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	Close() error
}

// Redis publishes alarms on a pub/sub channel and keeps subscription tokens in a set.
type Redis struct {
	// client executes Redis commands.
	client redisCommander
	// channel is the pub/sub channel and the prefix of the token set.
	channel string
}

// NewRedisClient parses a redis:// URL and verifies the server answers a PING.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// NewRedis wraps a go-redis client. An empty channel defaults to protocol.Topic.
func NewRedis(client redisCommander, channel string) *Redis {
	if channel == "" {
		channel = protocol.Topic
	}

	return &Redis{
		client:  client,
		channel: channel,
	}
}

// Publish sends the wire form of the event on the channel. The alarm ID doubles as the message ID.
func (r *Redis) Publish(ctx context.Context, event domain.Event) (string, error) {
	payload, err := json.Marshal(protocol.NewAlarm(&event))
	if err != nil {
		return "", fmt.Errorf("marshal alarm: %w", err)
	}

	receivers, err := r.client.Publish(ctx, r.channel, payload).Result()
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", r.channel, err)
	}

	logger.DebugKV(ctx, "Alarm published to redis", "channel", r.channel, "alarm_id", event.ID, "receivers", receivers)

	return event.ID, nil
}

// Subscribe adds the token to the topic's token set.
func (r *Redis) Subscribe(ctx context.Context, token string) error {
	if err := r.client.SAdd(ctx, r.tokensKey(), token).Err(); err != nil {
		return fmt.Errorf("add token to %s: %w", r.tokensKey(), err)
	}

	return nil
}

// Unsubscribe removes the token from the topic's token set.
func (r *Redis) Unsubscribe(ctx context.Context, token string) error {
	if err := r.client.SRem(ctx, r.tokensKey(), token).Err(); err != nil {
		return fmt.Errorf("remove token from %s: %w", r.tokensKey(), err)
	}

	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) tokensKey() string {
	return r.channel + tokensKeySuffix
}

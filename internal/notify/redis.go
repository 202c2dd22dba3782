package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "ipfeed:published"

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// RedisNotifier publishes events on a Redis pub/sub channel.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
}

// NewRedisNotifier wraps an existing client.
func NewRedisNotifier(rdb *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{rdb: rdb, channel: channel}
}

// DialRedis connects and pings before returning a notifier.
func DialRedis(ctx context.Context, opts RedisOptions) (*RedisNotifier, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Address, err)
	}
	return NewRedisNotifier(rdb, opts.Channel), nil
}

// Channel returns the pub/sub channel name.
func (r *RedisNotifier) Channel() string { return r.channel }

func (r *RedisNotifier) Notify(ctx context.Context, e Event) error {
	payload, err := e.Marshal()
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, payload).Err()
}

// Subscribe calls fn for each event received until ctx is cancelled.
func (r *RedisNotifier) Subscribe(ctx context.Context, fn func(Event)) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis pubsub channel closed")
			}
			e, err := ParseEvent([]byte(msg.Payload))
			if err != nil {
				continue
			}
			fn(e)
		}
	}
}

func (r *RedisNotifier) Close() error {
	return r.rdb.Close()
}

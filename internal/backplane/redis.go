package backplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Tyrowin/relaychat/internal/config"
)

// Redis is a Backplane built on Redis pub/sub.
type Redis struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

var _ Backplane = (*Redis)(nil)

// NewRedis creates a Redis backplane from cfg. It does not dial; use Ping
// to verify connectivity.
func NewRedis(cfg config.RedisConfig, logger *slog.Logger) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		channel: cfg.Channel,
		logger:  logger.With("component", "backplane", "channel", cfg.Channel),
	}
}

// Ping checks that the Redis server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Publish implements Backplane.
func (r *Redis) Publish(ctx context.Context, frame string) error {
	if err := r.client.Publish(ctx, r.channel, frame).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe implements Backplane. It returns nil when ctx is cancelled.
func (r *Redis) Subscribe(ctx context.Context, deliver func(frame string), ready func()) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() {
		if err := sub.Close(); err != nil {
			r.logger.Debug("closing subscription", "error", err)
		}
	}()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("redis subscribe: %w", err)
	}
	r.logger.Info("subscribed to backplane")
	if ready != nil {
		ready()
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription channel closed")
			}
			deliver(msg.Payload)
		}
	}
}

// Close implements Backplane.
func (r *Redis) Close() error {
	return r.client.Close()
}

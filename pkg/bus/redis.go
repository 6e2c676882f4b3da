package bus

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "relay:"

type Redis struct {
	rdb *redis.Client
}

func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Publish(ctx context.Context, topic, payload string) error {
	return r.rdb.Publish(ctx, channelPrefix+topic, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, topic string, fn Handler) error {
	sub := r.rdb.Subscribe(ctx, channelPrefix+topic)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					log.FromContext(ctx).Warn("redis subscription closed", "topic", topic)
					return
				}
				fn(msg.Payload)
			}
		}
	}()
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Redis publishes JSON events on the pub/sub channel "<prefix>:<channel>".
type Redis struct {
	Client *redis.Client
	Prefix string
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, addr, password string, db int, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	if prefix == "" {
		prefix = "showwatch"
	}
	return &Redis{Client: client, Prefix: prefix}, nil
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Dispatch(ctx context.Context, m Message) error {
	return r.publish(ctx, event{Kind: "message", Channel: m.Channel, Content: m.Content, Summary: m.Summary, SentAt: time.Now().UTC()})
}

func (r *Redis) SetTopic(ctx context.Context, ch Channel, topic string) error {
	return r.publish(ctx, event{Kind: "topic", Channel: ch, Topic: topic, SentAt: time.Now().UTC()})
}

func (r *Redis) publish(ctx context.Context, ev event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := r.Client.Publish(ctx, r.Prefix+":"+string(ev.Channel), body).Err(); err != nil {
		return fmt.Errorf("redis: publish: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.Client.Close() }

package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/leonardcser/imoney-mcp/internal/logger"
)

// Redis is a KV backed by a Redis server. Changes are published on a
// pub/sub channel so every process watching the same server sees them.
type Redis struct {
	client  *redis.Client
	prefix  string
	channel string
}

// OpenRedis connects using a redis:// URL and verifies the server answers.
func OpenRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	r := NewRedisWithOptions(opt, prefix)
	if err := r.client.Ping(ctx).Err(); err != nil {
		_ = r.client.Close()
		return nil, err
	}
	return r, nil
}

// NewRedisWithOptions creates a Redis store from redis.Options without dialing.
func NewRedisWithOptions(opt *redis.Options, prefix string) *Redis {
	return &Redis{
		client:  redis.NewClient(opt),
		prefix:  prefix,
		channel: prefix + "changes",
	}
}

func (r *Redis) key(key string) string { return r.prefix + key }

// Close closes the underlying client.
func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	old, err := r.client.SetArgs(ctx, r.key(key), value, redis.SetArgs{Get: true}).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if errors.Is(err, redis.Nil) {
		old = nil
	}
	r.publish(ctx, Change{Key: key, OldValue: old, NewValue: value})
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	old, err := r.client.GetDel(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	r.publish(ctx, Change{Key: key, OldValue: old})
	return nil
}

// publish is best-effort: the write already succeeded.
func (r *Redis) publish(ctx context.Context, c Change) {
	b, err := json.Marshal(c)
	if err != nil {
		logger.Warnf("store: encode change for %q: %v", c.Key, err)
		return
	}
	if err := r.client.Publish(ctx, r.channel, b).Err(); err != nil {
		logger.Warnf("store: publish change for %q: %v", c.Key, err)
	}
}

func (r *Redis) Watch(ctx context.Context) (<-chan Change, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	// Wait for the subscription confirmation so no change is missed after return.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan Change, watcherBuffer)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					logger.Warnf("store: bad change payload: %v", err)
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

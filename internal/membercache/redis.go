package membercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ticketbot:member:"

// Redis shares membership results between bot instances.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	expiry    time.Duration
}

// NewRedis connects to url (redis://...). expiry bounds how long keys live
// in Redis; zero keeps them forever.
func NewRedis(ctx context.Context, url string, expiry time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisWithClient(client, "", expiry), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, keyPrefix string, expiry time.Duration) *Redis {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Redis{client: client, keyPrefix: keyPrefix, expiry: expiry}
}

func (r *Redis) Put(ctx context.Context, userID string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal member entry: %w", err)
	}
	if err := r.client.Set(ctx, r.keyPrefix+userID, data, r.expiry).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, userID string) (Entry, bool, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("unmarshal member entry: %w", err)
	}
	return e, true, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

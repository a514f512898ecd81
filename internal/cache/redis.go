package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	snapv1 "github.com/whimxiqal/journey-sub005/internal/persistence/snapshot"
)

// Redis shares entries across processes. SETNX keeps them write-once.
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Redis)

// WithTTL expires entries. Zero keeps them until Clear.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) { r.ttl = ttl }
}

func WithPrefix(prefix string) Option {
	return func(r *Redis) { r.prefix = prefix }
}

func NewRedis(address, password string, db int, opts ...Option) *Redis {
	return NewRedisFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

func NewRedisFromClient(client *backend.Client, opts ...Option) *Redis {
	r := &Redis{client: client, prefix: "journey:leg:"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(k Key) string { return r.prefix + k.String() }

func (r *Redis) Lookup(ctx context.Context, k Key) (Entry, bool, error) {
	raw, err := r.client.Get(ctx, r.key(k)).Bytes()
	if errors.Is(err, backend.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get: %w", err)
	}
	var rec snapv1.CacheEntryV1
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	_, e, err := fromRecord(rec)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (r *Redis) Insert(ctx context.Context, k Key, e Entry) (bool, error) {
	if err := validate(k, e); err != nil {
		return false, err
	}
	data, err := json.Marshal(toRecord(k, e))
	if err != nil {
		return false, fmt.Errorf("encode cache entry: %w", err)
	}
	wrote, err := r.client.SetNX(ctx, r.key(k), data, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return wrote, nil
}

// Clear deletes every key under the prefix.
func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 256).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 256 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }

package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a cache shared by every api instance.
type Redis struct {
	client    *redis.Client
	namespace string
}

// NewRedis namespaces all keys, e.g. "schoolinfo:cache:".
func NewRedis(client *redis.Client, namespace string) *Redis {
	if namespace == "" {
		namespace = "schoolinfo:cache:"
	}
	return &Redis{client: client, namespace: namespace}
}

// Get reads a key; a missing key is a miss, not an error.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set writes a key with an optional ttl.
func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.namespace+key, val, ttl).Err()
}

func (r *Redis) generationKey(resource string) string {
	return r.namespace + "_gen:" + resource
}

// Generation reads the resource counter; a missing counter is generation 0.
func (r *Redis) Generation(ctx context.Context, resource string) (int64, error) {
	gen, err := r.client.Get(ctx, r.generationKey(resource)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// InvalidatePrefix bumps the resource generation, then scans and deletes
// matching keys in batches.
func (r *Redis) InvalidatePrefix(ctx context.Context, prefix string) error {
	if err := r.client.Incr(ctx, r.generationKey(Resource(prefix))).Err(); err != nil {
		return err
	}
	iter := r.client.Scan(ctx, 0, globEscape(r.namespace+prefix)+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func globEscape(s string) string {
	return globReplacer.Replace(s)
}

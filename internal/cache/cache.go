// Package cache is a read-through cache keyed by resource and parameters.
// Entries are never patched: writers invalidate a resource prefix and the
// next read reloads from the source of truth.
//
// Every resource carries a generation that invalidation advances. Values are
// stored under the generation observed before loading, so a load that raced
// with a write can never be served after that write's invalidation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache stores opaque values under string keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// InvalidatePrefix advances the generation of the prefix's resource,
	// then deletes the keys under prefix.
	InvalidatePrefix(ctx context.Context, prefix string) error
	// Generation returns the current generation of resource.
	Generation(ctx context.Context, resource string) (int64, error)
}

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cache_lookups_total",
	Help: "Read-through cache lookups by result.",
}, []string{"result"})

const sep = ":"

// Key joins resource and parameter parts: Key("attendance", "bulk", classID) -> "attendance:bulk:<classID>".
func Key(parts ...string) string {
	return strings.Join(parts, sep)
}

// Prefix returns the invalidation prefix covering every key that starts with parts.
func Prefix(parts ...string) string {
	return Key(parts...) + sep
}

// Resource returns the resource a key or prefix belongs to: its first part.
func Resource(keyOrPrefix string) string {
	res, _, _ := strings.Cut(keyOrPrefix, sep)
	return res
}

func versioned(key string, gen int64) string {
	return key + "#" + strconv.FormatInt(gen, 10)
}

// ReadThrough returns the cached value for key or loads, stores and returns it.
// Cache failures never fail the read; the loader result is authoritative.
// A value is stored only when no invalidation of its resource happened while
// it was loading.
func ReadThrough[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}

	res := Resource(key)
	gen, err := c.Generation(ctx, res)
	if err != nil {
		lookups.WithLabelValues("error").Inc()
		return load(ctx)
	}
	stored := versioned(key, gen)

	if raw, ok, err := c.Get(ctx, stored); err != nil {
		lookups.WithLabelValues("error").Inc()
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			lookups.WithLabelValues("hit").Inc()
			return v, nil
		}
		lookups.WithLabelValues("corrupt").Inc()
	} else {
		lookups.WithLabelValues("miss").Inc()
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if now, err := c.Generation(ctx, res); err != nil || now != gen {
		lookups.WithLabelValues("stale").Inc()
		return v, nil
	}
	if raw, err := json.Marshal(v); err == nil {
		_ = c.Set(ctx, stored, raw, ttl)
	}
	return v, nil
}

// Invalidate drops every prefix and reports all failures.
func Invalidate(ctx context.Context, c Cache, prefixes ...string) error {
	if c == nil {
		return nil
	}
	var errs []error
	for _, p := range prefixes {
		if err := c.InvalidatePrefix(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

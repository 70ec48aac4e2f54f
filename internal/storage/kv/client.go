// Package kv defines the primitive key-value surface every persistent backend must offer,
// the adapters that provide it, and the retry wrapper applied to all of them.
package kv

import (
	"context"
	"time"
)

// Client is the primitive key-value API. Scan uses cursor 0 both to start an
// iteration and to signal that it is complete.
type Client interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// MGet returns one value per key; found[i] is false when keys[i] does not exist.
	MGet(ctx context.Context, keys ...string) (values []string, found []bool, err error)
	Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZRevRange returns members by descending score; stop is inclusive, -1 means the end.
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRem(ctx context.Context, key string, members ...string) error

	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRem(ctx context.Context, key string, value string) error

	Ping(ctx context.Context) error
	Close() error
}

// Reconnector is implemented by clients that can re-establish their transport
// after a transient failure.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

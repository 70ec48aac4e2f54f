package kv

import (
	"context"
	"time"

	"mediahub-be/internal/metrics"
	"mediahub-be/internal/pkg/logger"
)

const moduleRetry = "KVRetry"

type RetryPolicy struct {
	MaxRetries int           // total attempts, including the first
	BaseDelay  time.Duration // wait before attempt n+1 is BaseDelay*n
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}
}

type retryingClient struct {
	inner  Client
	policy RetryPolicy
	logger logger.ILogger
}

// WithRetry wraps every primitive operation of inner with bounded linear-backoff
// retry on transient errors. Permanent errors are returned on the first attempt.
func WithRetry(inner Client, policy RetryPolicy, log logger.ILogger) Client {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	return &retryingClient{inner: inner, policy: policy, logger: log}
}

func do[T any](ctx context.Context, r *retryingClient, op string, fn func() (T, error)) (T, error) {
	for attempt := 1; ; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}
		if !IsTransient(err) || attempt >= r.policy.MaxRetries {
			metrics.KVFailures.WithLabelValues(op).Inc()
			return res, err
		}

		metrics.KVRetries.WithLabelValues(op).Inc()
		r.logger.Warn(moduleRetry, "Transient key-value error, retrying", map[string]interface{}{
			"op":      op,
			"attempt": attempt,
			"error":   err.Error(),
		})

		if rc, ok := r.inner.(Reconnector); ok {
			if rerr := rc.Reconnect(ctx); rerr != nil {
				r.logger.Warn(moduleRetry, "Reconnect attempt failed", map[string]interface{}{"op": op, "error": rerr.Error()})
			}
		}

		timer := time.NewTimer(r.policy.BaseDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

func doErr(ctx context.Context, r *retryingClient, op string, fn func() error) error {
	_, err := do(ctx, r, op, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

type getResult struct {
	value string
	found bool
}

func (r *retryingClient) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := do(ctx, r, "get", func() (getResult, error) {
		v, ok, err := r.inner.Get(ctx, key)
		return getResult{v, ok}, err
	})
	return res.value, res.found, err
}

func (r *retryingClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return doErr(ctx, r, "set", func() error { return r.inner.Set(ctx, key, value, ttl) })
}

func (r *retryingClient) Del(ctx context.Context, keys ...string) error {
	return doErr(ctx, r, "del", func() error { return r.inner.Del(ctx, keys...) })
}

type mgetResult struct {
	values []string
	found  []bool
}

func (r *retryingClient) MGet(ctx context.Context, keys ...string) ([]string, []bool, error) {
	res, err := do(ctx, r, "mget", func() (mgetResult, error) {
		v, f, err := r.inner.MGet(ctx, keys...)
		return mgetResult{v, f}, err
	})
	return res.values, res.found, err
}

type scanResult struct {
	keys   []string
	cursor uint64
}

func (r *retryingClient) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	res, err := do(ctx, r, "scan", func() (scanResult, error) {
		k, c, err := r.inner.Scan(ctx, cursor, match, count)
		return scanResult{k, c}, err
	})
	return res.keys, res.cursor, err
}

func (r *retryingClient) SAdd(ctx context.Context, key string, members ...string) error {
	return doErr(ctx, r, "sadd", func() error { return r.inner.SAdd(ctx, key, members...) })
}

func (r *retryingClient) SRem(ctx context.Context, key string, members ...string) error {
	return doErr(ctx, r, "srem", func() error { return r.inner.SRem(ctx, key, members...) })
}

func (r *retryingClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return do(ctx, r, "smembers", func() ([]string, error) { return r.inner.SMembers(ctx, key) })
}

func (r *retryingClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return doErr(ctx, r, "zadd", func() error { return r.inner.ZAdd(ctx, key, score, member) })
}

func (r *retryingClient) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return do(ctx, r, "zrevrange", func() ([]string, error) { return r.inner.ZRevRange(ctx, key, start, stop) })
}

func (r *retryingClient) ZRem(ctx context.Context, key string, members ...string) error {
	return doErr(ctx, r, "zrem", func() error { return r.inner.ZRem(ctx, key, members...) })
}

func (r *retryingClient) LPush(ctx context.Context, key string, values ...string) error {
	return doErr(ctx, r, "lpush", func() error { return r.inner.LPush(ctx, key, values...) })
}

func (r *retryingClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return do(ctx, r, "lrange", func() ([]string, error) { return r.inner.LRange(ctx, key, start, stop) })
}

func (r *retryingClient) LTrim(ctx context.Context, key string, start, stop int64) error {
	return doErr(ctx, r, "ltrim", func() error { return r.inner.LTrim(ctx, key, start, stop) })
}

func (r *retryingClient) LRem(ctx context.Context, key string, value string) error {
	return doErr(ctx, r, "lrem", func() error { return r.inner.LRem(ctx, key, value) })
}

func (r *retryingClient) Ping(ctx context.Context) error {
	return doErr(ctx, r, "ping", func() error { return r.inner.Ping(ctx) })
}

func (r *retryingClient) Close() error {
	return r.inner.Close()
}

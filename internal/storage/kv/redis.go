package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient adapts go-redis to Client.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient accepts either a redis:// URL or a bare host:port address.
func NewRedisClient(url string) *RedisClient {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	return &RedisClient{rdb: redis.NewClient(opt)}
}

func NewRedisClientFrom(rdb *redis.Client) *RedisClient {
	return &RedisClient{rdb: rdb}
}

func toArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *RedisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *RedisClient) MGet(ctx context.Context, keys ...string) ([]string, []bool, error) {
	if len(keys) == 0 {
		return nil, nil, nil
	}
	raw, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, err
	}
	values := make([]string, len(raw))
	found := make([]bool, len(raw))
	for i, v := range raw {
		switch s := v.(type) {
		case nil:
		case string:
			values[i], found[i] = s, true
		default:
			values[i], found[i] = fmt.Sprint(s), true
		}
	}
	return values, found, nil
}

func (c *RedisClient) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	return c.rdb.Scan(ctx, cursor, match, count).Result()
}

func (c *RedisClient) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return c.rdb.SAdd(ctx, key, toArgs(members)...).Err()
}

func (c *RedisClient) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return c.rdb.SRem(ctx, key, toArgs(members)...).Err()
}

func (c *RedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.rdb.SMembers(ctx, key).Result()
}

func (c *RedisClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (c *RedisClient) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.rdb.ZRevRange(ctx, key, start, stop).Result()
}

func (c *RedisClient) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return c.rdb.ZRem(ctx, key, toArgs(members)...).Err()
}

func (c *RedisClient) LPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	return c.rdb.LPush(ctx, key, toArgs(values)...).Err()
}

func (c *RedisClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.rdb.LRange(ctx, key, start, stop).Result()
}

func (c *RedisClient) LTrim(ctx context.Context, key string, start, stop int64) error {
	return c.rdb.LTrim(ctx, key, start, stop).Err()
}

func (c *RedisClient) LRem(ctx context.Context, key string, value string) error {
	return c.rdb.LRem(ctx, key, 0, value).Err()
}

func (c *RedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Reconnect checks a pooled connection out; go-redis redials broken ones on demand.
func (c *RedisClient) Reconnect(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

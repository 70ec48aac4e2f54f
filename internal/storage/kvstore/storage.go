// Package kvstore implements storage.IStorage on top of a primitive kv.Client.
// It emulates the relational reads the application needs (listings per user,
// reverse indexes, aggregates) with cursor scans, sets and sorted sets.
package kvstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mediahub-be/internal/pkg/logger"
	"mediahub-be/internal/storage"
	"mediahub-be/internal/storage/kv"

	"github.com/goccy/go-json"
)

const moduleName = "KVStore"

const defaultScanCount = 100

var _ storage.IStorage = (*Storage)(nil)

type Storage struct {
	kv        kv.Client
	logger    logger.ILogger
	scanCount int64
	now       func() time.Time
}

type Option func(*Storage)

// WithScanCount sets the page size hint passed to every cursor scan.
func WithScanCount(n int64) Option {
	return func(s *Storage) {
		if n > 0 {
			s.scanCount = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

// New builds a Storage. client should already be wrapped with kv.WithRetry.
func New(client kv.Client, log logger.ILogger, opts ...Option) *Storage {
	s := &Storage{
		kv:        client,
		logger:    log,
		scanCount: defaultScanCount,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) Close() error {
	return s.kv.Close()
}

func (s *Storage) nowMillis() int64 {
	return s.now().UnixMilli()
}

// Key layout.

const usersKey = "users"

func passwordKey(user string) string          { return "u:" + user + ":pwd" }
func playRecordPrefix(user string) string     { return "u:" + user + ":pr:" }
func favoritePrefix(user string) string       { return "u:" + user + ":fav:" }
func skipConfigPrefix(user string) string     { return "u:" + user + ":skip:" }
func searchHistoryKey(user string) string     { return "u:" + user + ":sh" }
func loginStatsKey(user string) string        { return "u:" + user + ":login" }
func userConversationsKey(user string) string { return "u:" + user + ":convs" }
func userFriendsKey(user string) string       { return "u:" + user + ":friends" }
func userRequestsKey(user string) string      { return "u:" + user + ":freqs" }
func messageKey(id string) string             { return "msg:" + id }
func conversationKey(id string) string        { return "conv:" + id }
func conversationMsgsKey(id string) string    { return "conv:" + id + ":msgs" }
func friendKey(id string) string              { return "friend:" + id }
func friendRequestKey(id string) string       { return "freq:" + id }
func cacheKey(key string) string              { return "cache:" + key }

const pendingUserPrefix = "pending:user:"

// Codec helpers.

func (s *Storage) setJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, string(data), ttl)
}

// getJSON loads key into a new T; it returns nil, nil when the key is absent.
func getJSON[T any](ctx context.Context, s *Storage, key string) (*T, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return &v, nil
}

// scanKeys walks the whole cursor iteration for pattern and returns every distinct key.
func (s *Storage) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.kv.Scan(ctx, cursor, pattern, s.scanCount)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", pattern, err)
		}
		for _, k := range batch {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// loadRecords bulk-reads keys and decodes each value. Missing keys are skipped
// silently; corrupt values are logged, handed to onCorrupt and skipped.
func loadRecords[T any](ctx context.Context, s *Storage, keys []string, onCorrupt func(key string)) ([]string, []T, error) {
	if len(keys) == 0 {
		return nil, nil, nil
	}
	values, found, err := s.kv.MGet(ctx, keys...)
	if err != nil {
		return nil, nil, err
	}

	outKeys := make([]string, 0, len(keys))
	out := make([]T, 0, len(keys))
	for i, key := range keys {
		if !found[i] {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(values[i]), &v); err != nil {
			s.logger.Warn(moduleName, "Skipping corrupt record", map[string]interface{}{"key": key, "error": err.Error()})
			if onCorrupt != nil {
				onCorrupt(key)
			}
			continue
		}
		outKeys = append(outKeys, key)
		out = append(out, v)
	}
	return outKeys, out, nil
}

// prefixPattern matches every key under prefix and nothing else, whatever
// characters the user-supplied part of prefix contains.
func prefixPattern(prefix string) string {
	return kv.EscapeGlob(prefix) + "*"
}

// loadPrefixMap scans prefix and returns the decoded records keyed by the
// suffix after prefix.
func loadPrefixMap[T any](ctx context.Context, s *Storage, prefix string) (map[string]T, error) {
	keys, err := s.scanKeys(ctx, prefixPattern(prefix))
	if err != nil {
		return nil, err
	}
	loadedKeys, records, err := loadRecords[T](ctx, s, keys, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(records))
	for i, k := range loadedKeys {
		out[strings.TrimPrefix(k, prefix)] = records[i]
	}
	return out, nil
}

// deletePrefix removes every key under prefix.
func (s *Storage) deletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.scanKeys(ctx, prefixPattern(prefix))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.kv.Del(ctx, keys...)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

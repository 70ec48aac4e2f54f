package kvstore

import (
	"context"
	"time"

	"mediahub-be/internal/model"
	"mediahub-be/internal/storage"

	"github.com/goccy/go-json"
)

func (s *Storage) GetPlayRecord(ctx context.Context, user, key string) (*model.PlayRecord, error) {
	return getJSON[model.PlayRecord](ctx, s, playRecordPrefix(user)+key)
}

func (s *Storage) SetPlayRecord(ctx context.Context, user, key string, record model.PlayRecord) error {
	if record.SaveTime == 0 {
		record.SaveTime = s.nowMillis()
	}
	return s.setJSON(ctx, playRecordPrefix(user)+key, record, 0)
}

func (s *Storage) GetAllPlayRecords(ctx context.Context, user string) (map[string]model.PlayRecord, error) {
	return loadPrefixMap[model.PlayRecord](ctx, s, playRecordPrefix(user))
}

func (s *Storage) DeletePlayRecord(ctx context.Context, user, key string) error {
	return s.kv.Del(ctx, playRecordPrefix(user)+key)
}

func (s *Storage) GetFavorite(ctx context.Context, user, key string) (*model.Favorite, error) {
	return getJSON[model.Favorite](ctx, s, favoritePrefix(user)+key)
}

func (s *Storage) SetFavorite(ctx context.Context, user, key string, fav model.Favorite) error {
	if fav.SaveTime == 0 {
		fav.SaveTime = s.nowMillis()
	}
	return s.setJSON(ctx, favoritePrefix(user)+key, fav, 0)
}

func (s *Storage) GetAllFavorites(ctx context.Context, user string) (map[string]model.Favorite, error) {
	return loadPrefixMap[model.Favorite](ctx, s, favoritePrefix(user))
}

func (s *Storage) DeleteFavorite(ctx context.Context, user, key string) error {
	return s.kv.Del(ctx, favoritePrefix(user)+key)
}

func (s *Storage) GetSkipConfig(ctx context.Context, user, source, id string) (*model.SkipConfig, error) {
	return getJSON[model.SkipConfig](ctx, s, skipConfigPrefix(user)+storage.PlayRecordKey(source, id))
}

func (s *Storage) SetSkipConfig(ctx context.Context, user, source, id string, cfg model.SkipConfig) error {
	return s.setJSON(ctx, skipConfigPrefix(user)+storage.PlayRecordKey(source, id), cfg, 0)
}

func (s *Storage) GetAllSkipConfigs(ctx context.Context, user string) (map[string]model.SkipConfig, error) {
	return loadPrefixMap[model.SkipConfig](ctx, s, skipConfigPrefix(user))
}

func (s *Storage) DeleteSkipConfig(ctx context.Context, user, source, id string) error {
	return s.kv.Del(ctx, skipConfigPrefix(user)+storage.PlayRecordKey(source, id))
}

func (s *Storage) GetCache(ctx context.Context, key string) (json.RawMessage, bool, error) {
	raw, ok, err := s.kv.Get(ctx, cacheKey(key))
	if err != nil || !ok {
		return nil, false, err
	}
	return json.RawMessage(raw), true, nil
}

func (s *Storage) SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return s.setJSON(ctx, cacheKey(key), value, ttl)
}

func (s *Storage) DeleteCache(ctx context.Context, key string) error {
	return s.kv.Del(ctx, cacheKey(key))
}

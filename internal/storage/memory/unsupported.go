package memory

import (
	"context"

	"mediahub-be/internal/model"
)

// Play records, favorites, skip configs, search history and pending users are
// not kept in memory: writes succeed and reads come back empty.

func (s *Storage) GetPlayRecord(ctx context.Context, user, key string) (*model.PlayRecord, error) {
	return nil, nil
}

func (s *Storage) SetPlayRecord(ctx context.Context, user, key string, record model.PlayRecord) error {
	return nil
}

func (s *Storage) GetAllPlayRecords(ctx context.Context, user string) (map[string]model.PlayRecord, error) {
	return map[string]model.PlayRecord{}, nil
}

func (s *Storage) DeletePlayRecord(ctx context.Context, user, key string) error { return nil }

func (s *Storage) GetFavorite(ctx context.Context, user, key string) (*model.Favorite, error) {
	return nil, nil
}

func (s *Storage) SetFavorite(ctx context.Context, user, key string, fav model.Favorite) error {
	return nil
}

func (s *Storage) GetAllFavorites(ctx context.Context, user string) (map[string]model.Favorite, error) {
	return map[string]model.Favorite{}, nil
}

func (s *Storage) DeleteFavorite(ctx context.Context, user, key string) error { return nil }

func (s *Storage) GetSkipConfig(ctx context.Context, user, source, id string) (*model.SkipConfig, error) {
	return nil, nil
}

func (s *Storage) SetSkipConfig(ctx context.Context, user, source, id string, cfg model.SkipConfig) error {
	return nil
}

func (s *Storage) GetAllSkipConfigs(ctx context.Context, user string) (map[string]model.SkipConfig, error) {
	return map[string]model.SkipConfig{}, nil
}

func (s *Storage) DeleteSkipConfig(ctx context.Context, user, source, id string) error { return nil }

func (s *Storage) GetSearchHistory(ctx context.Context, user string) ([]string, error) {
	return []string{}, nil
}

func (s *Storage) AddSearchHistory(ctx context.Context, user, keyword string) error { return nil }

func (s *Storage) DeleteSearchHistory(ctx context.Context, user, keyword string) error { return nil }

func (s *Storage) CreatePendingUser(ctx context.Context, pending model.PendingUser) error {
	return nil
}

func (s *Storage) GetPendingUsers(ctx context.Context) ([]model.PendingUser, error) {
	return []model.PendingUser{}, nil
}

func (s *Storage) ApprovePendingUser(ctx context.Context, user string) error { return nil }

func (s *Storage) DeletePendingUser(ctx context.Context, user string) error { return nil }

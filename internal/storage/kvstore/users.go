package kvstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"mediahub-be/internal/model"
	"mediahub-be/internal/storage"

	"go.uber.org/multierr"
	"golang.org/x/crypto/bcrypt"
)

func (s *Storage) RegisterUser(ctx context.Context, user, password string) error {
	user = strings.TrimSpace(user)
	if err := storage.ValidateUsername(user); err != nil || password == "" {
		return storage.ErrInvalidArgument
	}
	exists, err := s.CheckUserExist(ctx, user)
	if err != nil {
		return err
	}
	if exists {
		return storage.ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.storeUser(ctx, user, string(hash))
}

// storeUser writes the credential record and then the user index entry.
func (s *Storage) storeUser(ctx context.Context, user, hash string) error {
	if err := s.kv.Set(ctx, passwordKey(user), hash, 0); err != nil {
		return err
	}
	return s.kv.SAdd(ctx, usersKey, user)
}

func (s *Storage) VerifyUser(ctx context.Context, user, password string) (bool, error) {
	hash, ok, err := s.kv.Get(ctx, passwordKey(user))
	if err != nil || !ok {
		return false, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *Storage) CheckUserExist(ctx context.Context, user string) (bool, error) {
	_, ok, err := s.kv.Get(ctx, passwordKey(user))
	return ok, err
}

func (s *Storage) ChangePassword(ctx context.Context, user, newPassword string) error {
	if newPassword == "" {
		return storage.ErrInvalidArgument
	}
	exists, err := s.CheckUserExist(ctx, user)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, passwordKey(user), string(hash), 0)
}

// DeleteUser removes the credential and every per-user record. Friend edges
// are removed on both sides; shared conversations are left to the other participants.
func (s *Storage) DeleteUser(ctx context.Context, user string) error {
	var errs error

	friends, err := s.GetFriends(ctx, user)
	errs = multierr.Append(errs, err)
	for _, f := range friends {
		errs = multierr.Append(errs, s.RemoveFriend(ctx, user, f.ID))
	}

	errs = multierr.Append(errs, s.kv.Del(ctx, passwordKey(user)))
	errs = multierr.Append(errs, s.kv.SRem(ctx, usersKey, user))
	errs = multierr.Append(errs, s.deletePrefix(ctx, playRecordPrefix(user)))
	errs = multierr.Append(errs, s.deletePrefix(ctx, favoritePrefix(user)))
	errs = multierr.Append(errs, s.deletePrefix(ctx, skipConfigPrefix(user)))
	errs = multierr.Append(errs, s.kv.Del(ctx,
		searchHistoryKey(user),
		loginStatsKey(user),
		userConversationsKey(user),
		userFriendsKey(user),
		userRequestsKey(user),
	))
	return errs
}

func (s *Storage) GetAllUsers(ctx context.Context) ([]string, error) {
	users, err := s.kv.SMembers(ctx, usersKey)
	if err != nil {
		return nil, err
	}
	sort.Strings(users)
	return users, nil
}

func (s *Storage) SearchUsers(ctx context.Context, query string) ([]string, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []string{}, nil
	}
	users, err := s.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0)
	for _, u := range users {
		if strings.Contains(strings.ToLower(u), query) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Storage) GetSearchHistory(ctx context.Context, user string) ([]string, error) {
	return s.kv.LRange(ctx, searchHistoryKey(user), 0, -1)
}

// AddSearchHistory moves keyword to the front and caps the list.
func (s *Storage) AddSearchHistory(ctx context.Context, user, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return storage.ErrInvalidArgument
	}
	key := searchHistoryKey(user)
	if err := s.kv.LRem(ctx, key, keyword); err != nil {
		return err
	}
	if err := s.kv.LPush(ctx, key, keyword); err != nil {
		return err
	}
	return s.kv.LTrim(ctx, key, 0, storage.SearchHistoryLimit-1)
}

func (s *Storage) DeleteSearchHistory(ctx context.Context, user, keyword string) error {
	if keyword == "" {
		return s.kv.Del(ctx, searchHistoryKey(user))
	}
	return s.kv.LRem(ctx, searchHistoryKey(user), keyword)
}

func (s *Storage) UpdateUserLoginStats(ctx context.Context, user string, loginTime time.Time, isFirstLogin bool) error {
	stats, err := s.GetUserLoginStats(ctx, user)
	if err != nil {
		return err
	}
	ms := loginTime.UnixMilli()
	stats.LoginCount++
	if isFirstLogin || stats.FirstLoginTime == 0 {
		stats.FirstLoginTime = ms
	}
	stats.LastLoginTime = ms
	stats.LastLoginDate = loginTime.Format("2006-01-02")
	return s.setJSON(ctx, loginStatsKey(user), stats, 0)
}

// GetUserLoginStats returns zeroed stats for a user that never logged in.
func (s *Storage) GetUserLoginStats(ctx context.Context, user string) (*model.UserLoginStats, error) {
	stats, err := getJSON[model.UserLoginStats](ctx, s, loginStatsKey(user))
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &model.UserLoginStats{}
	}
	return stats, nil
}

func (s *Storage) CreatePendingUser(ctx context.Context, pending model.PendingUser) error {
	pending.Username = strings.TrimSpace(pending.Username)
	if storage.ValidateUsername(pending.Username) != nil || pending.PasswordHash == "" {
		return storage.ErrInvalidArgument
	}
	exists, err := s.CheckUserExist(ctx, pending.Username)
	if err != nil {
		return err
	}
	if exists {
		return storage.ErrUserExists
	}
	if pending.CreatedAt == 0 {
		pending.CreatedAt = s.nowMillis()
	}
	return s.setJSON(ctx, pendingUserPrefix+pending.Username, pending, 0)
}

// GetPendingUsers lists pending registrations oldest first. Corrupt entries are deleted.
func (s *Storage) GetPendingUsers(ctx context.Context) ([]model.PendingUser, error) {
	keys, err := s.scanKeys(ctx, prefixPattern(pendingUserPrefix))
	if err != nil {
		return nil, err
	}
	var corrupt []string
	_, pending, err := loadRecords[model.PendingUser](ctx, s, keys, func(key string) {
		corrupt = append(corrupt, key)
	})
	if err != nil {
		return nil, err
	}
	if len(corrupt) > 0 {
		if err := s.kv.Del(ctx, corrupt...); err != nil {
			s.logger.Warn(moduleName, "Failed to delete corrupt pending users", map[string]interface{}{"error": err.Error()})
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt < pending[j].CreatedAt })
	if pending == nil {
		pending = []model.PendingUser{}
	}
	return pending, nil
}

func (s *Storage) ApprovePendingUser(ctx context.Context, user string) error {
	pending, err := getJSON[model.PendingUser](ctx, s, pendingUserPrefix+user)
	if err != nil {
		return err
	}
	if pending == nil {
		return storage.ErrNotFound
	}
	if err := s.storeUser(ctx, user, pending.PasswordHash); err != nil {
		return err
	}
	return s.kv.Del(ctx, pendingUserPrefix+user)
}

func (s *Storage) DeletePendingUser(ctx context.Context, user string) error {
	return s.kv.Del(ctx, pendingUserPrefix+user)
}

package kvstore

import (
	"context"
	"sort"

	"mediahub-be/internal/model"
	"mediahub-be/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

func (s *Storage) GetFriends(ctx context.Context, user string) ([]model.Friend, error) {
	ids, err := s.kv.SMembers(ctx, userFriendsKey(user))
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = friendKey(id)
	}
	_, friends, err := loadRecords[model.Friend](ctx, s, keys, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Friend, 0, len(friends))
	for _, f := range friends {
		if f.Owner == user {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AddedAt != out[j].AddedAt {
			return out[i].AddedAt < out[j].AddedAt
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (s *Storage) findFriend(ctx context.Context, owner, username string) (*model.Friend, error) {
	friends, err := s.GetFriends(ctx, owner)
	if err != nil {
		return nil, err
	}
	for i := range friends {
		if friends[i].Username == username {
			return &friends[i], nil
		}
	}
	return nil, nil
}

func (s *Storage) writeFriend(ctx context.Context, f model.Friend) error {
	if err := s.setJSON(ctx, friendKey(f.ID), f, 0); err != nil {
		return err
	}
	return s.kv.SAdd(ctx, userFriendsKey(f.Owner), f.ID)
}

func (s *Storage) deleteFriend(ctx context.Context, f model.Friend) error {
	err := s.kv.Del(ctx, friendKey(f.ID))
	return multierr.Append(err, s.kv.SRem(ctx, userFriendsKey(f.Owner), f.ID))
}

// AddFriend writes user's half of the edge and then the reverse half. Halves
// that already exist are kept. If the reverse write fails, the half created
// by this call is removed again so the edge never stays one-sided.
func (s *Storage) AddFriend(ctx context.Context, user string, friend model.Friend) error {
	if user == "" || friend.Username == "" || friend.Username == user {
		return storage.ErrInvalidArgument
	}

	now := s.nowMillis()
	forward, err := s.findFriend(ctx, user, friend.Username)
	if err != nil {
		return err
	}
	createdForward := false
	if forward == nil {
		friend.Owner = user
		if friend.ID == "" {
			friend.ID = uuid.NewString()
		}
		if friend.AddedAt == 0 {
			friend.AddedAt = now
		}
		if friend.Status == "" {
			friend.Status = model.FriendStatusOffline
		}
		if err := s.writeFriend(ctx, friend); err != nil {
			return err
		}
		forward = &friend
		createdForward = true
	}

	reverse, err := s.findFriend(ctx, friend.Username, user)
	if err == nil && reverse != nil {
		return nil
	}
	if err == nil {
		err = s.writeFriend(ctx, model.Friend{
			ID:       uuid.NewString(),
			Owner:    friend.Username,
			Username: user,
			Status:   model.FriendStatusOffline,
			AddedAt:  forward.AddedAt,
		})
	}
	if err != nil && createdForward {
		if cerr := s.deleteFriend(ctx, *forward); cerr != nil {
			s.logger.Error(moduleName, "Failed to roll back one-sided friend edge", map[string]interface{}{
				"owner": user, "friend": friend.Username, "error": cerr.Error(),
			})
			err = multierr.Append(err, cerr)
		}
	}
	return err
}

// RemoveFriend deletes the record friendID owned by user and the matching
// reverse half. An id that no longer resolves only clears the index entry.
func (s *Storage) RemoveFriend(ctx context.Context, user, friendID string) error {
	f, err := getJSON[model.Friend](ctx, s, friendKey(friendID))
	if err != nil {
		return err
	}
	if f == nil {
		return s.kv.SRem(ctx, userFriendsKey(user), friendID)
	}
	if f.Owner != user {
		return storage.ErrNotFound
	}

	errs := s.deleteFriend(ctx, *f)
	reverse, err := s.findFriend(ctx, f.Username, user)
	if err != nil {
		return multierr.Append(errs, err)
	}
	if reverse != nil {
		errs = multierr.Append(errs, s.deleteFriend(ctx, *reverse))
	}
	return errs
}

func (s *Storage) UpdateFriendStatus(ctx context.Context, friendID, status string) error {
	if status != model.FriendStatusOnline && status != model.FriendStatusOffline {
		return storage.ErrInvalidArgument
	}
	f, err := getJSON[model.Friend](ctx, s, friendKey(friendID))
	if err != nil {
		return err
	}
	if f == nil {
		return storage.ErrNotFound
	}
	f.Status = status
	return s.setJSON(ctx, friendKey(friendID), f, 0)
}

// GetFriendRequests returns requests sent or received by user, newest first.
func (s *Storage) GetFriendRequests(ctx context.Context, user string) ([]model.FriendRequest, error) {
	ids, err := s.kv.SMembers(ctx, userRequestsKey(user))
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = friendRequestKey(id)
	}
	_, reqs, err := loadRecords[model.FriendRequest](ctx, s, keys, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.FriendRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.FromUser == user || r.ToUser == user {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (s *Storage) CreateFriendRequest(ctx context.Context, req model.FriendRequest) error {
	if req.FromUser == "" || req.ToUser == "" || req.FromUser == req.ToUser {
		return storage.ErrInvalidArgument
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = model.FriendRequestPending
	}
	if !model.IsValidFriendRequestStatus(req.Status) {
		return storage.ErrInvalidArgument
	}
	if req.CreatedAt == 0 {
		req.CreatedAt = s.nowMillis()
	}
	if req.UpdatedAt == 0 {
		req.UpdatedAt = req.CreatedAt
	}
	if err := s.setJSON(ctx, friendRequestKey(req.ID), req, 0); err != nil {
		return err
	}
	errs := s.kv.SAdd(ctx, userRequestsKey(req.FromUser), req.ID)
	return multierr.Append(errs, s.kv.SAdd(ctx, userRequestsKey(req.ToUser), req.ID))
}

func (s *Storage) UpdateFriendRequest(ctx context.Context, id, status string) error {
	if !model.IsValidFriendRequestStatus(status) {
		return storage.ErrInvalidArgument
	}
	req, err := s.GetFriendRequest(ctx, id)
	if err != nil {
		return err
	}
	req.Status = status
	req.UpdatedAt = s.nowMillis()
	return s.setJSON(ctx, friendRequestKey(id), req, 0)
}

func (s *Storage) DeleteFriendRequest(ctx context.Context, id string) error {
	req, err := getJSON[model.FriendRequest](ctx, s, friendRequestKey(id))
	if err != nil {
		return err
	}
	if req == nil {
		return nil
	}
	errs := s.kv.Del(ctx, friendRequestKey(id))
	errs = multierr.Append(errs, s.kv.SRem(ctx, userRequestsKey(req.FromUser), id))
	return multierr.Append(errs, s.kv.SRem(ctx, userRequestsKey(req.ToUser), id))
}

func (s *Storage) GetFriendRequest(ctx context.Context, id string) (*model.FriendRequest, error) {
	req, err := getJSON[model.FriendRequest](ctx, s, friendRequestKey(id))
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, storage.ErrNotFound
	}
	return req, nil
}

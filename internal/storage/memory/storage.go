// Package memory is the process-local IStorage used when no KV backend is
// configured. It keeps chat, friends, users and cache entries; the per-user
// media concerns are accepted and dropped.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"mediahub-be/internal/model"
	"mediahub-be/internal/storage"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

const cleanupInterval = 10 * time.Minute

var _ storage.IStorage = (*Storage)(nil)

type Storage struct {
	mu sync.RWMutex

	// entries holds the TTL cache surface; records holds everything else without expiry.
	entries *cache.Cache
	records *cache.Cache

	users        map[string]struct{}
	convMessages map[string][]string // conversation id -> message ids
	userConvs    map[string]map[string]struct{}
	userFriends  map[string]map[string]struct{}
	userRequests map[string]map[string]struct{}
}

func New() *Storage {
	return &Storage{
		entries:      cache.New(cache.NoExpiration, cleanupInterval),
		records:      cache.New(cache.NoExpiration, cleanupInterval),
		users:        make(map[string]struct{}),
		convMessages: make(map[string][]string),
		userConvs:    make(map[string]map[string]struct{}),
		userFriends:  make(map[string]map[string]struct{}),
		userRequests: make(map[string]map[string]struct{}),
	}
}

func (s *Storage) Close() error {
	s.entries.Flush()
	s.records.Flush()
	return nil
}

func addIndex(idx map[string]map[string]struct{}, owner, id string) {
	set, ok := idx[owner]
	if !ok {
		set = make(map[string]struct{})
		idx[owner] = set
	}
	set[id] = struct{}{}
}

func removeIndex(idx map[string]map[string]struct{}, owner, id string) {
	if set, ok := idx[owner]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(idx, owner)
		}
	}
}

func record[T any](c *cache.Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Users

func (s *Storage) RegisterUser(ctx context.Context, user, password string) error {
	user = strings.TrimSpace(user)
	if err := storage.ValidateUsername(user); err != nil || password == "" {
		return storage.ErrInvalidArgument
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user]; ok {
		return storage.ErrUserExists
	}
	s.users[user] = struct{}{}
	s.records.Set("pwd:"+user, string(hash), cache.NoExpiration)
	return nil
}

func (s *Storage) VerifyUser(ctx context.Context, user, password string) (bool, error) {
	hash, ok := record[string](s.records, "pwd:"+user)
	if !ok {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

func (s *Storage) CheckUserExist(ctx context.Context, user string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[user]
	return ok, nil
}

func (s *Storage) ChangePassword(ctx context.Context, user, newPassword string) error {
	if newPassword == "" {
		return storage.ErrInvalidArgument
	}
	if ok, _ := s.CheckUserExist(ctx, user); !ok {
		return storage.ErrNotFound
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.records.Set("pwd:"+user, string(hash), cache.NoExpiration)
	return nil
}

func (s *Storage) DeleteUser(ctx context.Context, user string) error {
	friends, _ := s.GetFriends(ctx, user)
	for _, f := range friends {
		_ = s.RemoveFriend(ctx, user, f.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, user)
	delete(s.userConvs, user)
	delete(s.userRequests, user)
	s.records.Delete("pwd:" + user)
	s.records.Delete("login:" + user)
	return nil
}

func (s *Storage) GetAllUsers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.users))
	for u := range s.users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Storage) SearchUsers(ctx context.Context, query string) ([]string, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]string, 0)
	if query == "" {
		return out, nil
	}
	users, _ := s.GetAllUsers(ctx)
	for _, u := range users {
		if strings.Contains(strings.ToLower(u), query) {
			out = append(out, u)
		}
	}
	return out, nil
}

// Cache

func (s *Storage) GetCache(ctx context.Context, key string) (json.RawMessage, bool, error) {
	raw, ok := record[json.RawMessage](s.entries, key)
	return raw, ok, nil
}

func (s *Storage) SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	s.entries.Set(key, json.RawMessage(data), ttl)
	return nil
}

func (s *Storage) DeleteCache(ctx context.Context, key string) error {
	s.entries.Delete(key)
	return nil
}

// Login stats

func (s *Storage) UpdateUserLoginStats(ctx context.Context, user string, loginTime time.Time, isFirstLogin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, _ := record[model.UserLoginStats](s.records, "login:"+user)
	ms := loginTime.UnixMilli()
	stats.LoginCount++
	if isFirstLogin || stats.FirstLoginTime == 0 {
		stats.FirstLoginTime = ms
	}
	stats.LastLoginTime = ms
	stats.LastLoginDate = loginTime.Format("2006-01-02")
	s.records.Set("login:"+user, stats, cache.NoExpiration)
	return nil
}

func (s *Storage) GetUserLoginStats(ctx context.Context, user string) (*model.UserLoginStats, error) {
	stats, _ := record[model.UserLoginStats](s.records, "login:"+user)
	return &stats, nil
}

// Chat

func (s *Storage) SaveMessage(ctx context.Context, msg model.ChatMessage) error {
	if msg.ConversationID == "" {
		return storage.ErrInvalidArgument
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	if msg.MessageType == "" {
		msg.MessageType = model.MessageTypeText
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records.Get("msg:" + msg.ID); !exists {
		s.convMessages[msg.ConversationID] = append(s.convMessages[msg.ConversationID], msg.ID)
	}
	s.records.Set("msg:"+msg.ID, msg, cache.NoExpiration)
	return nil
}

func (s *Storage) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	all := make([]model.ChatMessage, 0, len(s.convMessages[conversationID]))
	for _, id := range s.convMessages[conversationID] {
		if m, ok := record[model.ChatMessage](s.records, "msg:"+id); ok {
			all = append(all, m)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp > all[j].Timestamp })
	if offset >= len(all) {
		return []model.ChatMessage{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *Storage) GetMessage(ctx context.Context, messageID string) (*model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := record[model.ChatMessage](s.records, "msg:"+messageID)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &m, nil
}

func (s *Storage) MarkMessageAsRead(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := record[model.ChatMessage](s.records, "msg:"+messageID)
	if !ok {
		return storage.ErrNotFound
	}
	m.IsRead = true
	s.records.Set("msg:"+messageID, m, cache.NoExpiration)
	return nil
}

func (s *Storage) GetConversations(ctx context.Context, user string) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Conversation, 0, len(s.userConvs[user]))
	for id := range s.userConvs[user] {
		if c, ok := record[model.Conversation](s.records, "conv:"+id); ok && c.HasParticipant(user) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Storage) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	c, ok := record[model.Conversation](s.records, "conv:"+id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func uniqueParticipants(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if _, ok := seen[p]; ok || p == "" {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func (s *Storage) CreateConversation(ctx context.Context, conv model.Conversation) error {
	conv.Participants = uniqueParticipants(conv.Participants)
	if conv.ID == "" || len(conv.Participants) < 2 {
		return storage.ErrInvalidArgument
	}
	if conv.CreatedAt == 0 {
		conv.CreatedAt = time.Now().UnixMilli()
	}
	if conv.UpdatedAt == 0 {
		conv.UpdatedAt = conv.CreatedAt
	}
	if conv.Type == "" {
		conv.Type = model.ConversationTypePrivate
		if conv.IsGroup || len(conv.Participants) > 2 {
			conv.Type = model.ConversationTypeGroup
		}
	}
	conv.IsGroup = conv.Type == model.ConversationTypeGroup

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records.Set("conv:"+conv.ID, conv, cache.NoExpiration)
	for _, p := range conv.Participants {
		addIndex(s.userConvs, p, conv.ID)
	}
	return nil
}

func (s *Storage) UpdateConversation(ctx context.Context, id string, update model.ConversationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := record[model.Conversation](s.records, "conv:"+id)
	if !ok {
		return storage.ErrNotFound
	}
	if update.Participants != nil {
		next := uniqueParticipants(update.Participants)
		if len(next) < 2 {
			return storage.ErrInvalidArgument
		}
		for _, p := range conv.Participants {
			removeIndex(s.userConvs, p, id)
		}
		conv.Participants = next
	}
	if update.Name != nil {
		conv.Name = *update.Name
	}
	if update.LastMessage != nil {
		conv.LastMessage = update.LastMessage
	}
	if update.UpdatedAt != nil {
		conv.UpdatedAt = *update.UpdatedAt
	} else {
		conv.UpdatedAt = time.Now().UnixMilli()
	}
	s.records.Set("conv:"+id, conv, cache.NoExpiration)
	for _, p := range conv.Participants {
		addIndex(s.userConvs, p, id)
	}
	return nil
}

func (s *Storage) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := record[model.Conversation](s.records, "conv:"+id); ok {
		for _, p := range conv.Participants {
			removeIndex(s.userConvs, p, id)
		}
	}
	for _, mid := range s.convMessages[id] {
		s.records.Delete("msg:" + mid)
	}
	delete(s.convMessages, id)
	s.records.Delete("conv:" + id)
	return nil
}

// Friends

func (s *Storage) GetFriends(ctx context.Context, user string) ([]model.Friend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.friendsLocked(user), nil
}

func (s *Storage) friendsLocked(user string) []model.Friend {
	out := make([]model.Friend, 0, len(s.userFriends[user]))
	for id := range s.userFriends[user] {
		if f, ok := record[model.Friend](s.records, "friend:"+id); ok {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AddedAt != out[j].AddedAt {
			return out[i].AddedAt < out[j].AddedAt
		}
		return out[i].Username < out[j].Username
	})
	return out
}

func (s *Storage) hasFriendLocked(owner, username string) bool {
	for _, f := range s.friendsLocked(owner) {
		if f.Username == username {
			return true
		}
	}
	return false
}

// AddFriend writes both halves under one lock, so neither is ever visible alone.
func (s *Storage) AddFriend(ctx context.Context, user string, friend model.Friend) error {
	if user == "" || friend.Username == "" || friend.Username == user {
		return storage.ErrInvalidArgument
	}
	if friend.AddedAt == 0 {
		friend.AddedAt = time.Now().UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasFriendLocked(user, friend.Username) {
		friend.Owner = user
		if friend.ID == "" {
			friend.ID = uuid.NewString()
		}
		if friend.Status == "" {
			friend.Status = model.FriendStatusOffline
		}
		s.records.Set("friend:"+friend.ID, friend, cache.NoExpiration)
		addIndex(s.userFriends, user, friend.ID)
	}
	if !s.hasFriendLocked(friend.Username, user) {
		reverse := model.Friend{
			ID:       uuid.NewString(),
			Owner:    friend.Username,
			Username: user,
			Status:   model.FriendStatusOffline,
			AddedAt:  friend.AddedAt,
		}
		s.records.Set("friend:"+reverse.ID, reverse, cache.NoExpiration)
		addIndex(s.userFriends, reverse.Owner, reverse.ID)
	}
	return nil
}

func (s *Storage) RemoveFriend(ctx context.Context, user, friendID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := record[model.Friend](s.records, "friend:"+friendID)
	if !ok {
		removeIndex(s.userFriends, user, friendID)
		return nil
	}
	if f.Owner != user {
		return storage.ErrNotFound
	}
	s.records.Delete("friend:" + f.ID)
	removeIndex(s.userFriends, user, f.ID)
	for _, r := range s.friendsLocked(f.Username) {
		if r.Username == user {
			s.records.Delete("friend:" + r.ID)
			removeIndex(s.userFriends, f.Username, r.ID)
		}
	}
	return nil
}

func (s *Storage) UpdateFriendStatus(ctx context.Context, friendID, status string) error {
	if status != model.FriendStatusOnline && status != model.FriendStatusOffline {
		return storage.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := record[model.Friend](s.records, "friend:"+friendID)
	if !ok {
		return storage.ErrNotFound
	}
	f.Status = status
	s.records.Set("friend:"+friendID, f, cache.NoExpiration)
	return nil
}

func (s *Storage) GetFriendRequests(ctx context.Context, user string) ([]model.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.FriendRequest, 0, len(s.userRequests[user]))
	for id := range s.userRequests[user] {
		if r, ok := record[model.FriendRequest](s.records, "freq:"+id); ok {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
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
		req.CreatedAt = time.Now().UnixMilli()
	}
	if req.UpdatedAt == 0 {
		req.UpdatedAt = req.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records.Set("freq:"+req.ID, req, cache.NoExpiration)
	addIndex(s.userRequests, req.FromUser, req.ID)
	addIndex(s.userRequests, req.ToUser, req.ID)
	return nil
}

func (s *Storage) UpdateFriendRequest(ctx context.Context, id, status string) error {
	if !model.IsValidFriendRequestStatus(status) {
		return storage.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := record[model.FriendRequest](s.records, "freq:"+id)
	if !ok {
		return storage.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now().UnixMilli()
	s.records.Set("freq:"+id, r, cache.NoExpiration)
	return nil
}

func (s *Storage) DeleteFriendRequest(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := record[model.FriendRequest](s.records, "freq:"+id)
	if !ok {
		return nil
	}
	s.records.Delete("freq:" + id)
	removeIndex(s.userRequests, r.FromUser, id)
	removeIndex(s.userRequests, r.ToUser, id)
	return nil
}

func (s *Storage) GetFriendRequest(ctx context.Context, id string) (*model.FriendRequest, error) {
	r, ok := record[model.FriendRequest](s.records, "freq:"+id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

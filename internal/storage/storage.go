// Package storage defines IStorage, the single persistence contract shared by every backend.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"mediahub-be/internal/model"

	"github.com/goccy/go-json"
)

var (
	ErrNotFound           = errors.New("storage: not found")
	ErrUserExists         = errors.New("storage: user already exists")
	ErrInvalidCredentials = errors.New("storage: invalid credentials")
	ErrInvalidArgument    = errors.New("storage: invalid argument")
	ErrInvalidUsername    = errors.New("storage: invalid username")
)

// KeySeparator delimits the segments of backend keys; usernames may not contain it.
const KeySeparator = ":"

// ValidateUsername rejects names that are empty or would spill into another
// user's key space.
func ValidateUsername(user string) error {
	if user == "" || strings.Contains(user, KeySeparator) {
		return ErrInvalidUsername
	}
	return nil
}

type PlayRecordStore interface {
	GetPlayRecord(ctx context.Context, user, key string) (*model.PlayRecord, error)
	SetPlayRecord(ctx context.Context, user, key string, record model.PlayRecord) error
	GetAllPlayRecords(ctx context.Context, user string) (map[string]model.PlayRecord, error)
	DeletePlayRecord(ctx context.Context, user, key string) error
}

type FavoriteStore interface {
	GetFavorite(ctx context.Context, user, key string) (*model.Favorite, error)
	SetFavorite(ctx context.Context, user, key string, fav model.Favorite) error
	GetAllFavorites(ctx context.Context, user string) (map[string]model.Favorite, error)
	DeleteFavorite(ctx context.Context, user, key string) error
}

type SkipConfigStore interface {
	GetSkipConfig(ctx context.Context, user, source, id string) (*model.SkipConfig, error)
	SetSkipConfig(ctx context.Context, user, source, id string, cfg model.SkipConfig) error
	GetAllSkipConfigs(ctx context.Context, user string) (map[string]model.SkipConfig, error)
	DeleteSkipConfig(ctx context.Context, user, source, id string) error
}

type UserStore interface {
	RegisterUser(ctx context.Context, user, password string) error
	VerifyUser(ctx context.Context, user, password string) (bool, error)
	CheckUserExist(ctx context.Context, user string) (bool, error)
	ChangePassword(ctx context.Context, user, newPassword string) error
	DeleteUser(ctx context.Context, user string) error
	GetAllUsers(ctx context.Context) ([]string, error)
	// SearchUsers is a case-insensitive substring match over every username.
	SearchUsers(ctx context.Context, query string) ([]string, error)
}

type SearchHistoryStore interface {
	GetSearchHistory(ctx context.Context, user string) ([]string, error)
	AddSearchHistory(ctx context.Context, user, keyword string) error
	// DeleteSearchHistory removes one keyword, or the whole history when keyword is empty.
	DeleteSearchHistory(ctx context.Context, user, keyword string) error
}

type CacheStore interface {
	GetCache(ctx context.Context, key string) (json.RawMessage, bool, error)
	SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteCache(ctx context.Context, key string) error
}

type ChatStore interface {
	SaveMessage(ctx context.Context, msg model.ChatMessage) error
	// GetMessages returns newest first, skipping offset and returning at most limit.
	GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.ChatMessage, error)
	// GetMessage returns ErrNotFound for an unknown id.
	GetMessage(ctx context.Context, messageID string) (*model.ChatMessage, error)
	MarkMessageAsRead(ctx context.Context, messageID string) error

	GetConversations(ctx context.Context, user string) ([]model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, conv model.Conversation) error
	UpdateConversation(ctx context.Context, id string, update model.ConversationUpdate) error
	DeleteConversation(ctx context.Context, id string) error
}

type FriendStore interface {
	GetFriends(ctx context.Context, user string) ([]model.Friend, error)
	// AddFriend writes both directed halves of the edge.
	AddFriend(ctx context.Context, user string, friend model.Friend) error
	// RemoveFriend deletes the edge identified by one of its record ids, both halves.
	RemoveFriend(ctx context.Context, user, friendID string) error
	UpdateFriendStatus(ctx context.Context, friendID, status string) error

	GetFriendRequests(ctx context.Context, user string) ([]model.FriendRequest, error)
	CreateFriendRequest(ctx context.Context, req model.FriendRequest) error
	UpdateFriendRequest(ctx context.Context, id, status string) error
	DeleteFriendRequest(ctx context.Context, id string) error
	GetFriendRequest(ctx context.Context, id string) (*model.FriendRequest, error)
}

type LoginStatsStore interface {
	UpdateUserLoginStats(ctx context.Context, user string, loginTime time.Time, isFirstLogin bool) error
	GetUserLoginStats(ctx context.Context, user string) (*model.UserLoginStats, error)
}

type PendingUserStore interface {
	CreatePendingUser(ctx context.Context, pending model.PendingUser) error
	GetPendingUsers(ctx context.Context) ([]model.PendingUser, error)
	ApprovePendingUser(ctx context.Context, user string) error
	DeletePendingUser(ctx context.Context, user string) error
}

// IStorage is the full persistence facade. Backends that cannot support a
// concern return empty results rather than errors.
type IStorage interface {
	PlayRecordStore
	FavoriteStore
	SkipConfigStore
	UserStore
	SearchHistoryStore
	CacheStore
	ChatStore
	FriendStore
	LoginStatsStore
	PendingUserStore

	Close() error
}

// SearchHistoryLimit caps the stored history per user.
const SearchHistoryLimit = 20

// PlayRecordKey builds the storage key for a title on a source.
func PlayRecordKey(source, id string) string {
	return source + "+" + id
}

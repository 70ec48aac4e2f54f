package kvstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mediahub-be/internal/model"
	"mediahub-be/internal/pkg/logger"
	"mediahub-be/internal/storage"
	"mediahub-be/internal/storage/kv"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	new  func(t *testing.T) kv.Client
}

var backends = []backend{
	{name: "redis", new: func(t *testing.T) kv.Client {
		mr := miniredis.RunT(t)
		return kv.NewRedisClientFrom(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	}},
	{name: "badger", new: func(t *testing.T) kv.Client {
		c, err := kv.NewBadgerClient("")
		require.NoError(t, err)
		return c
	}},
}

func newStorage(t *testing.T, client kv.Client) *Storage {
	t.Helper()
	s := New(client, logger.NewNopLogger(), WithScanCount(2))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s *Storage, raw kv.Client)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			client := b.new(t)
			fn(t, newStorage(t, client), client)
		})
	}
}

func TestUsers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, _ kv.Client) {
		ctx := context.Background()
		require.NoError(t, s.RegisterUser(ctx, "Alice", "pw1"))
		require.NoError(t, s.RegisterUser(ctx, "bob", "pw2"))
		require.NoError(t, s.RegisterUser(ctx, "carol", "pw3"))
		assert.ErrorIs(t, s.RegisterUser(ctx, "bob", "x"), storage.ErrUserExists)

		ok, err := s.VerifyUser(ctx, "Alice", "pw1")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.VerifyUser(ctx, "Alice", "wrong")
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = s.VerifyUser(ctx, "nobody", "pw1")
		require.NoError(t, err)
		assert.False(t, ok)

		found, err := s.SearchUsers(ctx, "AL")
		require.NoError(t, err)
		assert.Equal(t, []string{"Alice"}, found)

		found, err = s.SearchUsers(ctx, "o")
		require.NoError(t, err)
		assert.Equal(t, []string{"bob", "carol"}, found)

		found, err = s.SearchUsers(ctx, "  ")
		require.NoError(t, err)
		assert.Empty(t, found)

		require.NoError(t, s.ChangePassword(ctx, "bob", "new"))
		ok, err = s.VerifyUser(ctx, "bob", "new")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.ErrorIs(t, s.ChangePassword(ctx, "ghost", "x"), storage.ErrNotFound)

		require.NoError(t, s.DeleteUser(ctx, "carol"))
		all, err := s.GetAllUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Alice", "bob"}, all)
	})
}

func TestPlayRecordsSkipCorruptEntries(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, raw kv.Client) {
		ctx := context.Background()
		for i := 1; i <= 5; i++ {
			key := storage.PlayRecordKey("src", fmt.Sprint(i))
			require.NoError(t, s.SetPlayRecord(ctx, "alice", key, model.PlayRecord{Title: fmt.Sprint("t", i), PlayTime: int64(i)}))
		}
		require.NoError(t, raw.Set(ctx, playRecordPrefix("alice")+"src+bad", "{not json", 0))
		require.NoError(t, s.SetPlayRecord(ctx, "bob", "src+1", model.PlayRecord{Title: "other"}))

		records, err := s.GetAllPlayRecords(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, records, 5)
		assert.Equal(t, "t3", records["src+3"].Title)
		assert.NotZero(t, records["src+3"].SaveTime)

		require.NoError(t, s.DeletePlayRecord(ctx, "alice", "src+3"))
		got, err := s.GetPlayRecord(ctx, "alice", "src+3")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestPerUserListingsIgnoreWildcardNames(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, _ kv.Client) {
		ctx := context.Background()
		require.NoError(t, s.SetPlayRecord(ctx, "alice", "src+1", model.PlayRecord{Title: "secret"}))
		require.NoError(t, s.SetFavorite(ctx, "alice", "src+1", model.Favorite{Title: "secret"}))
		require.NoError(t, s.SetSkipConfig(ctx, "alice", "src", "1", model.SkipConfig{Enable: true}))

		for _, name := range []string{"al*", "*", "a?ice", "[a]lice", `al\*`} {
			records, err := s.GetAllPlayRecords(ctx, name)
			require.NoError(t, err)
			assert.Empty(t, records, name)
			favs, err := s.GetAllFavorites(ctx, name)
			require.NoError(t, err)
			assert.Empty(t, favs, name)
			skips, err := s.GetAllSkipConfigs(ctx, name)
			require.NoError(t, err)
			assert.Empty(t, skips, name)

			require.NoError(t, s.DeleteUser(ctx, name))
		}

		records, err := s.GetAllPlayRecords(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, records, 1)
		favs, err := s.GetAllFavorites(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, favs, 1)
		skips, err := s.GetAllSkipConfigs(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, skips, 1)

		require.NoError(t, s.SetPlayRecord(ctx, "al*", "src+2", model.PlayRecord{Title: "own"}))
		own, err := s.GetAllPlayRecords(ctx, "al*")
		require.NoError(t, err)
		assert.Equal(t, map[string]model.PlayRecord{"src+2": {Title: "own", SaveTime: own["src+2"].SaveTime}}, own)
	})
}

func TestRegisterRejectsKeySeparator(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, _ kv.Client) {
		assert.ErrorIs(t, s.RegisterUser(context.Background(), "a:pr:b", "pw"), storage.ErrInvalidArgument)
		exists, err := s.CheckUserExist(context.Background(), "a:pr:b")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestSearchHistory(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, _ kv.Client) {
		ctx := context.Background()
		for i := 0; i < storage.SearchHistoryLimit+5; i++ {
			require.NoError(t, s.AddSearchHistory(ctx, "alice", fmt.Sprint("kw", i)))
		}
		require.NoError(t, s.AddSearchHistory(ctx, "alice", "kw20"))

		history, err := s.GetSearchHistory(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, history, storage.SearchHistoryLimit)
		assert.Equal(t, "kw20", history[0])
		assert.Equal(t, "kw24", history[1])

		require.NoError(t, s.DeleteSearchHistory(ctx, "alice", "kw20"))
		history, err = s.GetSearchHistory(ctx, "alice")
		require.NoError(t, err)
		assert.NotContains(t, history, "kw20")

		require.NoError(t, s.DeleteSearchHistory(ctx, "alice", ""))
		history, err = s.GetSearchHistory(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestMessagesNewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, _ kv.Client) {
		ctx := context.Background()
		require.NoError(t, s.CreateConversation(ctx, model.Conversation{ID: "c1", Participants: []string{"alice", "bob"}}))
		for i, ts := range []int64{1000, 3000, 2000} {
			require.NoError(t, s.SaveMessage(ctx, model.ChatMessage{
				ID: fmt.Sprint("m", i), ConversationID: "c1", SenderID: "alice", Content: fmt.Sprint(ts), Timestamp: ts,
			}))
		}

		msgs, err := s.GetMessages(ctx, "c1", 10, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, []string{"3000", "2000", "1000"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})

		page, err := s.GetMessages(ctx, "c1", 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "2000", page[0].Content)

		require.NoError(t, s.MarkMessageAsRead(ctx, "m0"))
		msgs, err = s.GetMessages(ctx, "c1", 10, 0)
		require.NoError(t, err)
		assert.True(t, msgs[2].IsRead)
		assert.ErrorIs(t, s.MarkMessageAsRead(ctx, "missing"), storage.ErrNotFound)

		m0, err := s.GetMessage(ctx, "m0")
		require.NoError(t, err)
		assert.Equal(t, "c1", m0.ConversationID)
		assert.True(t, m0.IsRead)
		_, err = s.GetMessage(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestConversationLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, raw kv.Client) {
		ctx := context.Background()
		assert.ErrorIs(t, s.CreateConversation(ctx, model.Conversation{ID: "solo", Participants: []string{"alice", "alice"}}), storage.ErrInvalidArgument)

		require.NoError(t, s.CreateConversation(ctx, model.Conversation{ID: "g1", Participants: []string{"alice", "bob", "carol"}, UpdatedAt: 10}))
		require.NoError(t, s.CreateConversation(ctx, model.Conversation{ID: "p1", Participants: []string{"alice", "bob"}, UpdatedAt: 20}))

		for _, u := range []string{"alice", "bob"} {
			convs, err := s.GetConversations(ctx, u)
			require.NoError(t, err)
			require.Len(t, convs, 2)
			assert.Equal(t, "p1", convs[0].ID)
		}
		g1, err := s.GetConversation(ctx, "g1")
		require.NoError(t, err)
		assert.True(t, g1.IsGroup)

		require.NoError(t, s.UpdateConversation(ctx, "g1", model.ConversationUpdate{Participants: []string{"alice", "bob"}}))
		convs, err := s.GetConversations(ctx, "carol")
		require.NoError(t, err)
		assert.Empty(t, convs)

		require.NoError(t, s.SaveMessage(ctx, model.ChatMessage{ID: "m1", ConversationID: "p1", Content: "hi", Timestamp: 5}))
		require.NoError(t, s.DeleteConversation(ctx, "p1"))

		_, err = s.GetConversation(ctx, "p1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, ok, err := raw.Get(ctx, messageKey("m1"))
		require.NoError(t, err)
		assert.False(t, ok)
		for _, u := range []string{"alice", "bob"} {
			ids, err := raw.SMembers(ctx, userConversationsKey(u))
			require.NoError(t, err)
			assert.Equal(t, []string{"g1"}, ids)
		}
		assert.NoError(t, s.DeleteConversation(ctx, "p1"))
	})
}

func TestDeleteCorruptConversation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, raw kv.Client) {
		ctx := context.Background()
		require.NoError(t, s.CreateConversation(ctx, model.Conversation{ID: "c1", Participants: []string{"alice", "bob"}}))
		require.NoError(t, s.SaveMessage(ctx, model.ChatMessage{ID: "m1", ConversationID: "c1", Content: "hi", Timestamp: 5}))
		require.NoError(t, raw.Set(ctx, conversationKey("c1"), "{not json", 0))

		require.NoError(t, s.DeleteConversation(ctx, "c1"))

		_, ok, err := raw.Get(ctx, conversationKey("c1"))
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, err = raw.Get(ctx, messageKey("m1"))
		require.NoError(t, err)
		assert.False(t, ok)
		ids, err := raw.ZRevRange(ctx, conversationMsgsKey("c1"), 0, -1)
		require.NoError(t, err)
		assert.Empty(t, ids)

		convs, err := s.GetConversations(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, convs)
	})
}

func TestConversationsSkipDanglingIndex(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, raw kv.Client) {
		ctx := context.Background()
		require.NoError(t, raw.SAdd(ctx, userConversationsKey("alice"), "ghost"))
		require.NoError(t, s.CreateConversation(ctx, model.Conversation{ID: "c1", Participants: []string{"alice", "bob"}}))

		convs, err := s.GetConversations(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, convs, 1)
		assert.Equal(t, "c1", convs[0].ID)

		ids, err := raw.SMembers(ctx, userConversationsKey("alice"))
		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, ids)
	})
}

func TestFriendEdgesAreSymmetric(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, _ kv.Client) {
		ctx := context.Background()
		require.NoError(t, s.AddFriend(ctx, "alice", model.Friend{Username: "bob", Nickname: "B"}))
		require.NoError(t, s.AddFriend(ctx, "alice", model.Friend{Username: "bob"}))
		assert.ErrorIs(t, s.AddFriend(ctx, "alice", model.Friend{Username: "alice"}), storage.ErrInvalidArgument)

		aliceFriends, err := s.GetFriends(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, aliceFriends, 1)
		assert.Equal(t, "bob", aliceFriends[0].Username)
		assert.Equal(t, "B", aliceFriends[0].Nickname)

		bobFriends, err := s.GetFriends(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, bobFriends, 1)
		assert.Equal(t, "alice", bobFriends[0].Username)

		require.NoError(t, s.UpdateFriendStatus(ctx, bobFriends[0].ID, model.FriendStatusOnline))
		bobFriends, err = s.GetFriends(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, model.FriendStatusOnline, bobFriends[0].Status)

		require.NoError(t, s.RemoveFriend(ctx, "bob", bobFriends[0].ID))
		aliceFriends, err = s.GetFriends(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, aliceFriends)
		bobFriends, err = s.GetFriends(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, bobFriends)
	})
}

// failingSAdd fails SAdd for one key so the second half of a two-sided write breaks.
type failingSAdd struct {
	kv.Client
	key string
}

func (f *failingSAdd) SAdd(ctx context.Context, key string, members ...string) error {
	if key == f.key {
		return errors.New("ERR injected")
	}
	return f.Client.SAdd(ctx, key, members...)
}

func TestAddFriendRollsBackOneSidedEdge(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			client := b.new(t)
			s := newStorage(t, &failingSAdd{Client: client, key: userFriendsKey("bob")})

			require.Error(t, s.AddFriend(ctx, "alice", model.Friend{Username: "bob"}))

			friends, err := s.GetFriends(ctx, "alice")
			require.NoError(t, err)
			assert.Empty(t, friends)
			ids, err := client.SMembers(ctx, userFriendsKey("alice"))
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestFriendRequests(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, _ kv.Client) {
		ctx := context.Background()
		require.NoError(t, s.CreateFriendRequest(ctx, model.FriendRequest{ID: "r1", FromUser: "alice", ToUser: "bob", CreatedAt: 1}))
		require.NoError(t, s.CreateFriendRequest(ctx, model.FriendRequest{ID: "r2", FromUser: "carol", ToUser: "bob", CreatedAt: 2}))
		assert.ErrorIs(t, s.CreateFriendRequest(ctx, model.FriendRequest{FromUser: "bob", ToUser: "bob"}), storage.ErrInvalidArgument)

		reqs, err := s.GetFriendRequests(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, reqs, 2)
		assert.Equal(t, "r2", reqs[0].ID)

		assert.ErrorIs(t, s.UpdateFriendRequest(ctx, "r1", "maybe"), storage.ErrInvalidArgument)
		require.NoError(t, s.UpdateFriendRequest(ctx, "r1", model.FriendRequestAccepted))
		r1, err := s.GetFriendRequest(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, model.FriendRequestAccepted, r1.Status)

		require.NoError(t, s.DeleteFriendRequest(ctx, "r1"))
		reqs, err = s.GetFriendRequests(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, reqs)
		_, err = s.GetFriendRequest(ctx, "r1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestLoginStats(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, _ kv.Client) {
		ctx := context.Background()
		first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		second := first.Add(48 * time.Hour)

		stats, err := s.GetUserLoginStats(ctx, "alice")
		require.NoError(t, err)
		assert.Zero(t, stats.LoginCount)

		require.NoError(t, s.UpdateUserLoginStats(ctx, "alice", first, true))
		require.NoError(t, s.UpdateUserLoginStats(ctx, "alice", second, false))

		stats, err = s.GetUserLoginStats(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.LoginCount)
		assert.Equal(t, first.UnixMilli(), stats.FirstLoginTime)
		assert.Equal(t, second.UnixMilli(), stats.LastLoginTime)
		assert.Equal(t, "2024-03-03", stats.LastLoginDate)
	})
}

func TestPendingUsers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, raw kv.Client) {
		ctx := context.Background()
		require.NoError(t, s.CreatePendingUser(ctx, model.PendingUser{Username: "dave", PasswordHash: "$2a$10$hash", CreatedAt: 2}))
		require.NoError(t, s.CreatePendingUser(ctx, model.PendingUser{Username: "erin", PasswordHash: "$2a$10$hash", CreatedAt: 1}))
		require.NoError(t, raw.Set(ctx, pendingUserPrefix+"broken", "%%%", 0))

		pending, err := s.GetPendingUsers(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "erin", pending[0].Username)

		_, ok, err := raw.Get(ctx, pendingUserPrefix+"broken")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.ApprovePendingUser(ctx, "dave"))
		exists, err := s.CheckUserExist(ctx, "dave")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.ErrorIs(t, s.ApprovePendingUser(ctx, "dave"), storage.ErrNotFound)
		assert.ErrorIs(t, s.CreatePendingUser(ctx, model.PendingUser{Username: "dave", PasswordHash: "h"}), storage.ErrUserExists)
	})
}

func TestCache(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Storage, _ kv.Client) {
		ctx := context.Background()
		require.NoError(t, s.SetCache(ctx, "k", map[string]int{"n": 1}, time.Minute))
		raw, ok, err := s.GetCache(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `{"n":1}`, string(raw))

		require.NoError(t, s.DeleteCache(ctx, "k"))
		_, ok, err = s.GetCache(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

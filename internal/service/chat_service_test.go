package service

import (
	"context"
	"sync"
	"testing"

	"mediahub-be/internal/dto"
	"mediahub-be/internal/model"
	"mediahub-be/internal/pkg/logger"
	"mediahub-be/internal/storage"
	"mediahub-be/internal/storage/memory"
	"mediahub-be/internal/websocket"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentFrame struct {
	user  string
	frame websocket.Frame
}

type fakeDelivery struct {
	mu     sync.Mutex
	online map[string]bool
	sent   []sentFrame
}

func newFakeDelivery(online ...string) *fakeDelivery {
	d := &fakeDelivery{online: make(map[string]bool)}
	for _, u := range online {
		d.online[u] = true
	}
	return d
}

func (d *fakeDelivery) IsOnline(user string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online[user]
}

func (d *fakeDelivery) SendTo(user string, f websocket.Frame) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.online[user] {
		return false
	}
	d.sent = append(d.sent, sentFrame{user: user, frame: f})
	return true
}

func (d *fakeDelivery) frames() []sentFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentFrame(nil), d.sent...)
}

func newChatFixture(t *testing.T, online ...string) (IChatService, storage.IStorage, *fakeDelivery) {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })
	for _, u := range []string{"alice", "bob", "carol"} {
		require.NoError(t, store.RegisterUser(context.Background(), u, "pw"))
	}
	d := newFakeDelivery(online...)
	return NewChatService(store, d, logger.NewNopLogger()), store, d
}

func TestCreateConversationIncludesCaller(t *testing.T) {
	svc, _, _ := newChatFixture(t, "bob")
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "alice", &dto.CreateConversationRequest{Participants: []string{"bob", "bob", "alice"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, conv.Participants)
	assert.Equal(t, model.ConversationTypePrivate, conv.Type)

	list, err := svc.GetConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"bob"}, list[0].OnlineParticipants)

	_, err = svc.CreateConversation(ctx, "alice", &dto.CreateConversationRequest{Participants: []string{"alice"}})
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)

	_, err = svc.CreateConversation(ctx, "alice", &dto.CreateConversationRequest{Participants: []string{"ghost"}})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConversationAccessRequiresParticipant(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "alice", &dto.CreateConversationRequest{Participants: []string{"bob"}})
	require.NoError(t, err)

	_, err = svc.GetConversation(ctx, "carol", conv.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.SendMessage(ctx, "carol", conv.ID, &dto.SendMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.GetMessages(ctx, "carol", conv.ID, &dto.MessagesQuery{})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.DeleteConversation(ctx, "carol", conv.ID), ErrForbidden)

	_, err = svc.GetConversation(ctx, "alice", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSendMessageBumpsConversationAndRelays(t *testing.T) {
	svc, store, d := newChatFixture(t, "alice", "bob")
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "alice", &dto.CreateConversationRequest{Participants: []string{"bob", "carol"}})
	require.NoError(t, err)

	msg, err := svc.SendMessage(ctx, "alice", conv.ID, &dto.SendMessageRequest{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, model.MessageTypeText, msg.MessageType)

	stored, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessage)
	assert.Equal(t, msg.ID, stored.LastMessage.ID)
	assert.Equal(t, msg.Timestamp, stored.UpdatedAt)

	frames := d.frames()
	require.Len(t, frames, 1)
	assert.Equal(t, "bob", frames[0].user)
	assert.Equal(t, websocket.TypeMessage, frames[0].frame.Type)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(frames[0].frame.Data, &data))
	assert.Equal(t, "alice", data["senderId"])
	assert.Equal(t, "hello", data["content"])

	msgs, err := svc.GetMessages(ctx, "bob", conv.ID, &dto.MessagesQuery{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.NoError(t, svc.MarkAsRead(ctx, "bob", conv.ID, msg.ID))
	msgs, err = svc.GetMessages(ctx, "bob", conv.ID, &dto.MessagesQuery{})
	require.NoError(t, err)
	assert.True(t, msgs[0].IsRead)
}

func TestMarkAsReadRejectsForeignMessage(t *testing.T) {
	svc, store, _ := newChatFixture(t)
	ctx := context.Background()

	private, err := svc.CreateConversation(ctx, "alice", &dto.CreateConversationRequest{Participants: []string{"bob"}})
	require.NoError(t, err)
	other, err := svc.CreateConversation(ctx, "carol", &dto.CreateConversationRequest{Participants: []string{"bob"}})
	require.NoError(t, err)

	msg, err := svc.SendMessage(ctx, "alice", private.ID, &dto.SendMessageRequest{Content: "hello"})
	require.NoError(t, err)

	err = svc.MarkAsRead(ctx, "carol", other.ID, msg.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, svc.MarkAsRead(ctx, "carol", other.ID, "missing"), storage.ErrNotFound)

	stored, err := store.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsRead)

	require.NoError(t, svc.MarkAsRead(ctx, "bob", private.ID, msg.ID))
	stored, err = store.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRead)
}

func TestFriendRequestAcceptCreatesBothHalves(t *testing.T) {
	svc, _, d := newChatFixture(t, "alice", "bob")
	ctx := context.Background()

	fr, err := svc.SendFriendRequest(ctx, "alice", &dto.SendFriendRequestRequest{ToUser: "bob", Message: "hey"})
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestPending, fr.Status)

	_, err = svc.RespondFriendRequest(ctx, "alice", fr.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)

	accepted, err := svc.RespondFriendRequest(ctx, "bob", fr.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestAccepted, accepted.Status)

	_, err = svc.RespondFriendRequest(ctx, "bob", fr.ID, false)
	assert.ErrorIs(t, err, ErrRequestHandled)

	aliceFriends, err := svc.GetFriends(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceFriends, 1)
	assert.Equal(t, "bob", aliceFriends[0].Username)
	assert.Equal(t, model.FriendStatusOnline, aliceFriends[0].Status)

	bobFriends, err := svc.GetFriends(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobFriends, 1)
	assert.Equal(t, "alice", bobFriends[0].Username)

	_, err = svc.SendFriendRequest(ctx, "alice", &dto.SendFriendRequestRequest{ToUser: "bob"})
	assert.ErrorIs(t, err, ErrAlreadyFriends)

	types := make([]string, 0)
	for _, f := range d.frames() {
		types = append(types, f.user+":"+f.frame.Type)
	}
	assert.Equal(t, []string{"bob:" + websocket.TypeFriendRequest, "alice:" + websocket.TypeFriendAccepted}, types)

	require.NoError(t, svc.RemoveFriend(ctx, "bob", bobFriends[0].ID))
	aliceFriends, err = svc.GetFriends(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, aliceFriends)
}

func TestFriendRequestValidation(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.SendFriendRequest(ctx, "alice", &dto.SendFriendRequestRequest{ToUser: "alice"})
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)
	_, err = svc.SendFriendRequest(ctx, "alice", &dto.SendFriendRequestRequest{ToUser: "ghost"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	fr, err := svc.SendFriendRequest(ctx, "alice", &dto.SendFriendRequestRequest{ToUser: "carol"})
	require.NoError(t, err)
	rejected, err := svc.RespondFriendRequest(ctx, "carol", fr.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestRejected, rejected.Status)

	friends, err := svc.GetFriends(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestSearchUsersExcludesCaller(t *testing.T) {
	svc, _, _ := newChatFixture(t, "carol")

	res, err := svc.SearchUsers(context.Background(), "alice", "A")
	require.NoError(t, err)
	assert.Equal(t, []model.UserSearchResult{{Username: "carol", Online: true}}, res)
}

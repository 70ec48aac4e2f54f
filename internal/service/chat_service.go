package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"mediahub-be/internal/dto"
	"mediahub-be/internal/model"
	"mediahub-be/internal/pkg/logger"
	"mediahub-be/internal/storage"
	"mediahub-be/internal/websocket"

	"github.com/google/uuid"
)

// RealtimeDelivery pushes frames to connected users. Implemented by the
// websocket Manager.
type RealtimeDelivery interface {
	IsOnline(user string) bool
	SendTo(user string, f websocket.Frame) bool
}

type IChatService interface {
	GetConversations(ctx context.Context, user string) ([]dto.ConversationResponse, error)
	GetConversation(ctx context.Context, user, id string) (*dto.ConversationResponse, error)
	CreateConversation(ctx context.Context, user string, req *dto.CreateConversationRequest) (*model.Conversation, error)
	UpdateConversation(ctx context.Context, user, id string, req *dto.UpdateConversationRequest) error
	DeleteConversation(ctx context.Context, user, id string) error

	GetMessages(ctx context.Context, user, conversationID string, q *dto.MessagesQuery) ([]model.ChatMessage, error)
	SendMessage(ctx context.Context, user, conversationID string, req *dto.SendMessageRequest) (*model.ChatMessage, error)
	MarkAsRead(ctx context.Context, user, conversationID, messageID string) error

	GetFriends(ctx context.Context, user string) ([]model.Friend, error)
	RemoveFriend(ctx context.Context, user, friendID string) error
	GetFriendRequests(ctx context.Context, user string) ([]model.FriendRequest, error)
	SendFriendRequest(ctx context.Context, user string, req *dto.SendFriendRequestRequest) (*model.FriendRequest, error)
	RespondFriendRequest(ctx context.Context, user, id string, accept bool) (*model.FriendRequest, error)

	SearchUsers(ctx context.Context, user, query string) ([]model.UserSearchResult, error)
}

type chatService struct {
	store    storage.IStorage
	delivery RealtimeDelivery
	logger   logger.ILogger
	now      func() time.Time
}

func NewChatService(store storage.IStorage, delivery RealtimeDelivery, log logger.ILogger) IChatService {
	return &chatService{
		store:    store,
		delivery: delivery,
		logger:   log,
		now:      time.Now,
	}
}

func (s *chatService) GetConversations(ctx context.Context, user string) ([]dto.ConversationResponse, error) {
	convs, err := s.store.GetConversations(ctx, user)
	if err != nil {
		return nil, err
	}
	res := make([]dto.ConversationResponse, 0, len(convs))
	for _, c := range convs {
		res = append(res, s.withPresence(c))
	}
	return res, nil
}

func (s *chatService) GetConversation(ctx context.Context, user, id string) (*dto.ConversationResponse, error) {
	conv, err := s.participantConversation(ctx, user, id)
	if err != nil {
		return nil, err
	}
	res := s.withPresence(*conv)
	return &res, nil
}

func (s *chatService) CreateConversation(ctx context.Context, user string, req *dto.CreateConversationRequest) (*model.Conversation, error) {
	participants := append([]string{user}, req.Participants...)
	for _, p := range participants[1:] {
		if p == user {
			continue
		}
		exists, err := s.store.CheckUserExist(ctx, p)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("user %q: %w", p, storage.ErrNotFound)
		}
	}

	now := s.now().UnixMilli()
	conv := model.Conversation{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Participants: participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	created, err := s.store.GetConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ChatService", "Conversation created", map[string]interface{}{
		"conversation_id": created.ID,
		"participants":    len(created.Participants),
	})
	return created, nil
}

func (s *chatService) UpdateConversation(ctx context.Context, user, id string, req *dto.UpdateConversationRequest) error {
	if _, err := s.participantConversation(ctx, user, id); err != nil {
		return err
	}
	now := s.now().UnixMilli()
	return s.store.UpdateConversation(ctx, id, model.ConversationUpdate{
		Name:         req.Name,
		Participants: req.Participants,
		UpdatedAt:    &now,
	})
}

func (s *chatService) DeleteConversation(ctx context.Context, user, id string) error {
	if _, err := s.participantConversation(ctx, user, id); err != nil {
		return err
	}
	return s.store.DeleteConversation(ctx, id)
}

func (s *chatService) GetMessages(ctx context.Context, user, conversationID string, q *dto.MessagesQuery) ([]model.ChatMessage, error) {
	if _, err := s.participantConversation(ctx, user, conversationID); err != nil {
		return nil, err
	}
	return s.store.GetMessages(ctx, conversationID, q.Limit, q.Offset)
}

// SendMessage stores the message, bumps the conversation and relays it to
// every other online participant.
func (s *chatService) SendMessage(ctx context.Context, user, conversationID string, req *dto.SendMessageRequest) (*model.ChatMessage, error) {
	conv, err := s.participantConversation(ctx, user, conversationID)
	if err != nil {
		return nil, err
	}

	msg := model.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       user,
		SenderName:     user,
		Content:        req.Content,
		MessageType:    req.MessageType,
		Timestamp:      s.now().UnixMilli(),
	}
	if msg.MessageType == "" {
		msg.MessageType = model.MessageTypeText
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.store.UpdateConversation(ctx, conv.ID, model.ConversationUpdate{
		LastMessage: &msg,
		UpdatedAt:   &msg.Timestamp,
	}); err != nil {
		// The message is stored; a stale preview is recoverable.
		s.logger.Warn("ChatService", "Failed to bump conversation", map[string]interface{}{
			"conversation_id": conv.ID,
			"error":           err.Error(),
		})
	}

	frame := websocket.NewFrame(websocket.TypeMessage, messageRelay{
		ChatMessage:  msg,
		Participants: conv.Participants,
		Sender:       user,
	})
	for _, p := range conv.Participants {
		if p != user {
			s.delivery.SendTo(p, frame)
		}
	}
	return &msg, nil
}

// MarkAsRead only touches messages of a conversation the caller belongs to.
// A message from another conversation reads as not found.
func (s *chatService) MarkAsRead(ctx context.Context, user, conversationID, messageID string) error {
	if _, err := s.participantConversation(ctx, user, conversationID); err != nil {
		return err
	}
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ConversationID != conversationID {
		return fmt.Errorf("message %q: %w", messageID, storage.ErrNotFound)
	}
	return s.store.MarkMessageAsRead(ctx, messageID)
}

// GetFriends overlays the live presence on the stored status.
func (s *chatService) GetFriends(ctx context.Context, user string) ([]model.Friend, error) {
	friends, err := s.store.GetFriends(ctx, user)
	if err != nil {
		return nil, err
	}
	for i := range friends {
		friends[i].Status = model.FriendStatusOffline
		if s.delivery.IsOnline(friends[i].Username) {
			friends[i].Status = model.FriendStatusOnline
		}
	}
	return friends, nil
}

func (s *chatService) RemoveFriend(ctx context.Context, user, friendID string) error {
	return s.store.RemoveFriend(ctx, user, friendID)
}

func (s *chatService) GetFriendRequests(ctx context.Context, user string) ([]model.FriendRequest, error) {
	return s.store.GetFriendRequests(ctx, user)
}

func (s *chatService) SendFriendRequest(ctx context.Context, user string, req *dto.SendFriendRequestRequest) (*model.FriendRequest, error) {
	to := strings.TrimSpace(req.ToUser)
	if to == "" || to == user {
		return nil, fmt.Errorf("cannot befriend %q: %w", to, storage.ErrInvalidArgument)
	}
	exists, err := s.store.CheckUserExist(ctx, to)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %q: %w", to, storage.ErrNotFound)
	}

	friends, err := s.store.GetFriends(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, f := range friends {
		if f.Username == to {
			return nil, ErrAlreadyFriends
		}
	}

	now := s.now().UnixMilli()
	fr := model.FriendRequest{
		ID:        uuid.NewString(),
		FromUser:  user,
		ToUser:    to,
		Message:   req.Message,
		Status:    model.FriendRequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateFriendRequest(ctx, fr); err != nil {
		return nil, err
	}
	s.delivery.SendTo(to, websocket.NewFrame(websocket.TypeFriendRequest, friendRequestRelay{FriendRequest: fr, Sender: user}))
	return &fr, nil
}

// RespondFriendRequest is only open to the addressee. Accepting writes both
// halves of the friend edge before the request is marked accepted.
func (s *chatService) RespondFriendRequest(ctx context.Context, user, id string, accept bool) (*model.FriendRequest, error) {
	fr, err := s.store.GetFriendRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if fr.ToUser != user {
		return nil, ErrForbidden
	}
	if fr.Status != model.FriendRequestPending {
		return nil, ErrRequestHandled
	}

	status := model.FriendRequestRejected
	if accept {
		status = model.FriendRequestAccepted
		if err := s.store.AddFriend(ctx, user, model.Friend{Username: fr.FromUser}); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateFriendRequest(ctx, id, status); err != nil {
		return nil, err
	}
	fr.Status = status
	fr.UpdatedAt = s.now().UnixMilli()

	if accept {
		s.delivery.SendTo(fr.FromUser, websocket.NewFrame(websocket.TypeFriendAccepted, friendRequestRelay{FriendRequest: *fr, Sender: user}))
	}
	return fr, nil
}

func (s *chatService) SearchUsers(ctx context.Context, user, query string) ([]model.UserSearchResult, error) {
	names, err := s.store.SearchUsers(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	res := make([]model.UserSearchResult, 0, len(names))
	for _, name := range names {
		if name == user {
			continue
		}
		res = append(res, model.UserSearchResult{Username: name, Online: s.delivery.IsOnline(name)})
	}
	return res, nil
}

func (s *chatService) participantConversation(ctx context.Context, user, id string) (*model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(user) {
		return nil, ErrForbidden
	}
	return conv, nil
}

func (s *chatService) withPresence(c model.Conversation) dto.ConversationResponse {
	online := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if s.delivery.IsOnline(p) {
			online = append(online, p)
		}
	}
	sort.Strings(online)
	return dto.ConversationResponse{Conversation: c, OnlineParticipants: online}
}

// messageRelay mirrors what clients send over the socket so both paths
// render the same way.
type messageRelay struct {
	model.ChatMessage
	Participants []string `json:"participants"`
	Sender       string   `json:"senderId"`
}

type friendRequestRelay struct {
	model.FriendRequest
	Sender string `json:"senderId"`
}

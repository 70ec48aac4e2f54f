package kvstore

import (
	"context"
	"sort"

	"mediahub-be/internal/model"
	"mediahub-be/internal/storage"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const defaultMessageLimit = 50

// SaveMessage writes the message record, then its entry in the conversation time index.
func (s *Storage) SaveMessage(ctx context.Context, msg model.ChatMessage) error {
	if msg.ConversationID == "" {
		return storage.ErrInvalidArgument
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = s.nowMillis()
	}
	if msg.MessageType == "" {
		msg.MessageType = model.MessageTypeText
	}
	if err := s.setJSON(ctx, messageKey(msg.ID), msg, 0); err != nil {
		return err
	}
	return s.kv.ZAdd(ctx, conversationMsgsKey(msg.ConversationID), float64(msg.Timestamp), msg.ID)
}

func (s *Storage) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if offset < 0 {
		offset = 0
	}
	ids, err := s.kv.ZRevRange(ctx, conversationMsgsKey(conversationID), int64(offset), int64(offset+limit-1))
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = messageKey(id)
	}
	_, msgs, err := loadRecords[model.ChatMessage](ctx, s, keys, nil)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return msgs, nil
}

func (s *Storage) GetMessage(ctx context.Context, messageID string) (*model.ChatMessage, error) {
	msg, err := getJSON[model.ChatMessage](ctx, s, messageKey(messageID))
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, storage.ErrNotFound
	}
	return msg, nil
}

func (s *Storage) MarkMessageAsRead(ctx context.Context, messageID string) error {
	msg, err := getJSON[model.ChatMessage](ctx, s, messageKey(messageID))
	if err != nil {
		return err
	}
	if msg == nil {
		return storage.ErrNotFound
	}
	if msg.IsRead {
		return nil
	}
	msg.IsRead = true
	return s.setJSON(ctx, messageKey(messageID), msg, 0)
}

// GetConversations lists the user's conversations, most recently updated first.
// Index entries whose record is gone, or which no longer list the user, are pruned.
func (s *Storage) GetConversations(ctx context.Context, user string) ([]model.Conversation, error) {
	ids, err := s.kv.SMembers(ctx, userConversationsKey(user))
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = conversationKey(id)
	}
	loadedKeys, convs, err := loadRecords[model.Conversation](ctx, s, keys, nil)
	if err != nil {
		return nil, err
	}

	live := make(map[string]struct{}, len(loadedKeys))
	out := make([]model.Conversation, 0, len(convs))
	for _, c := range convs {
		if !c.HasParticipant(user) {
			continue
		}
		live[c.ID] = struct{}{}
		out = append(out, c)
	}

	var stale []string
	for _, id := range ids {
		if _, ok := live[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := s.kv.SRem(ctx, userConversationsKey(user), stale...); err != nil {
			s.logger.Warn(moduleName, "Failed to prune conversation index", map[string]interface{}{"user": user, "error": err.Error()})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out, nil
}

func (s *Storage) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := getJSON[model.Conversation](ctx, s, conversationKey(id))
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, storage.ErrNotFound
	}
	return conv, nil
}

// CreateConversation writes the record and then attempts every participant
// index entry, returning the combined error of the ones that failed.
func (s *Storage) CreateConversation(ctx context.Context, conv model.Conversation) error {
	conv.Participants = dedupe(conv.Participants)
	if conv.ID == "" || len(conv.Participants) < 2 {
		return storage.ErrInvalidArgument
	}
	now := s.nowMillis()
	if conv.CreatedAt == 0 {
		conv.CreatedAt = now
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

	if err := s.setJSON(ctx, conversationKey(conv.ID), conv, 0); err != nil {
		return err
	}
	return s.indexParticipants(ctx, conv.ID, conv.Participants)
}

func (s *Storage) indexParticipants(ctx context.Context, id string, participants []string) error {
	var errs error
	for _, p := range participants {
		errs = multierr.Append(errs, s.kv.SAdd(ctx, userConversationsKey(p), id))
	}
	return errs
}

// UpdateConversation applies the non-nil fields of update and re-asserts the
// participant index, dropping users removed from the conversation.
func (s *Storage) UpdateConversation(ctx context.Context, id string, update model.ConversationUpdate) error {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return err
	}

	var removed []string
	if update.Participants != nil {
		next := dedupe(update.Participants)
		if len(next) < 2 {
			return storage.ErrInvalidArgument
		}
		keep := make(map[string]struct{}, len(next))
		for _, p := range next {
			keep[p] = struct{}{}
		}
		for _, p := range conv.Participants {
			if _, ok := keep[p]; !ok {
				removed = append(removed, p)
			}
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
		conv.UpdatedAt = s.nowMillis()
	}

	if err := s.setJSON(ctx, conversationKey(id), conv, 0); err != nil {
		return err
	}
	errs := s.indexParticipants(ctx, id, conv.Participants)
	for _, p := range removed {
		errs = multierr.Append(errs, s.kv.SRem(ctx, userConversationsKey(p), id))
	}
	return errs
}

// DeleteConversation removes the record, every message, the time index and all
// participant index entries. Deleting an unknown conversation is a no-op. A
// corrupt record is still deleted; its participants' index entries are dropped
// lazily by GetConversations.
func (s *Storage) DeleteConversation(ctx context.Context, id string) error {
	raw, ok, err := s.kv.Get(ctx, conversationKey(id))
	if err != nil {
		return err
	}
	var conv *model.Conversation
	if ok {
		var decoded model.Conversation
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			s.logger.Warn(moduleName, "Deleting corrupt conversation", map[string]interface{}{
				"conversation_id": id,
				"error":           err.Error(),
			})
		} else {
			conv = &decoded
		}
	}

	ids, err := s.kv.ZRevRange(ctx, conversationMsgsKey(id), 0, -1)
	if err != nil {
		return err
	}

	errs := s.kv.Del(ctx, conversationKey(id))
	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, mid := range ids {
			keys[i] = messageKey(mid)
		}
		errs = multierr.Append(errs, s.kv.Del(ctx, keys...))
	}
	errs = multierr.Append(errs, s.kv.Del(ctx, conversationMsgsKey(id)))
	if conv != nil {
		for _, p := range conv.Participants {
			errs = multierr.Append(errs, s.kv.SRem(ctx, userConversationsKey(p), id))
		}
	}
	return errs
}

package model

// ChatMessage is immutable once stored except for IsRead.
type ChatMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name,omitempty"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type"` // text | image | file
	Timestamp      int64  `json:"timestamp"`    // unix millis, also the time-index score
	IsRead         bool   `json:"is_read"`
}

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

type Conversation struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Participants []string     `json:"participants"`
	Type         string       `json:"type"` // private | group
	IsGroup      bool         `json:"is_group"`
	LastMessage  *ChatMessage `json:"last_message,omitempty"`
	CreatedAt    int64        `json:"created_at"`
	UpdatedAt    int64        `json:"updated_at"`
}

const (
	ConversationTypePrivate = "private"
	ConversationTypeGroup   = "group"
)

// ConversationUpdate is a partial update; nil fields are left untouched.
type ConversationUpdate struct {
	Name         *string      `json:"name,omitempty"`
	Participants []string     `json:"participants,omitempty"`
	LastMessage  *ChatMessage `json:"last_message,omitempty"`
	UpdatedAt    *int64       `json:"updated_at,omitempty"`
}

// HasParticipant reports whether user takes part in the conversation.
func (c *Conversation) HasParticipant(user string) bool {
	for _, p := range c.Participants {
		if p == user {
			return true
		}
	}
	return false
}

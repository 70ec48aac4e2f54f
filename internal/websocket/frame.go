package websocket

import (
	"bytes"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// Inbound frame types.
const (
	TypePing           = "ping"
	TypeMessage        = "message"
	TypeTyping         = "typing"
	TypeFriendRequest  = "friend_request"
	TypeFriendAccepted = "friend_accepted"
)

// Server-originated frame types.
const (
	TypePong                = "pong"
	TypeConnectionConfirmed = "connection_confirmed"
	TypeOnlineUsers         = "online_users"
	TypeUserStatus          = "user_status"
	TypeError               = "error"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

var errEmptyType = errors.New("frame has no type")

// Frame is the JSON envelope of every text message on the socket.
type Frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type ConnectionConfirmedData struct {
	UserID string `json:"userId"`
}

type OnlineUsersData struct {
	Users []string `json:"users"`
}

type UserStatusData struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type ErrorData struct {
	Message string `json:"message"`
}

// NewFrame encodes data into a frame stamped with the current time.
func NewFrame(frameType string, data interface{}) Frame {
	f := Frame{Type: frameType, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		// Payload types in this package always marshal.
		f.Data, _ = json.Marshal(data)
	}
	return f
}

func errorFrame(message string) Frame {
	return NewFrame(TypeError, ErrorData{Message: message})
}

func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, err
	}
	if f.Type == "" {
		return Frame{}, errEmptyType
	}
	return f, nil
}

func (f Frame) encode() ([]byte, error) {
	return json.Marshal(f)
}

// stampSender decodes the frame data as an object, sets senderId on it and
// returns both the re-encoded data and the decoded fields. Numbers are kept as
// json.Number so they are re-encoded exactly as received.
func stampSender(data json.RawMessage, sender string) (json.RawMessage, map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if len(data) > 0 && string(data) != "null" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, nil, err
		}
	}
	fields["senderId"] = sender
	stamped, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, err
	}
	return stamped, fields, nil
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

func stringSliceField(fields map[string]interface{}, name string) []string {
	raw, ok := fields[name].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

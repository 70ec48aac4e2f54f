package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "USER_ONLINE").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	TypeUserOnline   = "USER_ONLINE"
	TypeUserOffline  = "USER_OFFLINE"
	TypePlayRecorded = "PLAY_RECORDED"
)

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewPresenceEvent builds USER_ONLINE or USER_OFFLINE for username.
func NewPresenceEvent(online bool, username string, at time.Time) BaseEvent {
	t := TypeUserOffline
	if online {
		t = TypeUserOnline
	}
	return BaseEvent{
		Type:       t,
		Data:       map[string]interface{}{"username": username, "timestamp": at.UnixMilli()},
		OccurredAt: at,
	}
}

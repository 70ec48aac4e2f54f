package model

// Friend is one directed half of a friend edge. Owner lists Username as a friend;
// the opposite half is stored as a separate record owned by Username.
type Friend struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Username string `json:"username"`
	Nickname string `json:"nickname,omitempty"`
	Status   string `json:"status"` // online | offline
	AddedAt  int64  `json:"added_at"`
}

const (
	FriendStatusOnline  = "online"
	FriendStatusOffline = "offline"
)

type FriendRequest struct {
	ID        string `json:"id"`
	FromUser  string `json:"from_user"`
	ToUser    string `json:"to_user"`
	Message   string `json:"message,omitempty"`
	Status    string `json:"status"` // pending | accepted | rejected
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
	FriendRequestRejected = "rejected"
)

func IsValidFriendRequestStatus(status string) bool {
	switch status {
	case FriendRequestPending, FriendRequestAccepted, FriendRequestRejected:
		return true
	}
	return false
}

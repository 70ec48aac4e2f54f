package model

type PendingUser struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Reason       string `json:"reason,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

type UserLoginStats struct {
	LoginCount     int64  `json:"login_count"`
	FirstLoginTime int64  `json:"first_login_time"`
	LastLoginTime  int64  `json:"last_login_time"`
	LastLoginDate  string `json:"last_login_date"` // YYYY-MM-DD
}

// UserSearchResult is what user search returns; it never carries credentials.
type UserSearchResult struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

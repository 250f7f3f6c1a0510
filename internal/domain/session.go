package domain

import "time"

// Session is an authenticated session token, created by the (out-of-scope)
// auth flow and consumed read-only by the session validator.
type Session struct {
	SessionID    string    `json:"sessionId"`
	SessionToken string    `json:"sessionToken"`
	UserID       string    `json:"userId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// User is the account a Session belongs to.
type User struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

package domain

import "time"

// TokenStatus represents the lifecycle state of an admission token
type TokenStatus string

const (
	TokenStatusWaiting TokenStatus = "WAITING"
	TokenStatusActive  TokenStatus = "ACTIVE"
	TokenStatusExpired TokenStatus = "EXPIRED"
)

// Token represents a client's place in, or clearance through, the waiting room
type Token struct {
	ID          string      `json:"id"`
	UserID      int64       `json:"user_id"`
	Status      TokenStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	ActivatedAt *time.Time  `json:"activated_at,omitempty"`
}

// NewToken creates a new waiting token for a user
func NewToken(id string, userID int64) *Token {
	return &Token{
		ID:        id,
		UserID:    userID,
		Status:    TokenStatusWaiting,
		CreatedAt: time.Now(),
	}
}

// IsLive reports whether the token still occupies a queue or active slot
func (t *Token) IsLive() bool {
	return t.Status == TokenStatusWaiting || t.Status == TokenStatusActive
}

// IsActive reports whether the token grants access to reservation operations
func (t *Token) IsActive() bool {
	return t.Status == TokenStatusActive
}

// ActiveSince returns how long the token has been active, or zero if it never was
func (t *Token) ActiveSince(now time.Time) time.Duration {
	if t.ActivatedAt == nil {
		return 0
	}
	return now.Sub(*t.ActivatedAt)
}

// Validate validates the token fields
func (t *Token) Validate() error {
	if t.ID == "" {
		return ErrInvalidTokenID
	}
	if t.UserID <= 0 {
		return ErrInvalidUserID
	}
	return nil
}

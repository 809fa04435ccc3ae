package dto

import "time"

// IssueTokenRequest represents a request to enter the waiting room
type IssueTokenRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// TokenResponse represents an issued or re-issued waiting room token
type TokenResponse struct {
	TokenID       string    `json:"token_id"`
	Status        string    `json:"status"`
	Position      int64     `json:"position,omitempty"`
	TotalWaiting  int64     `json:"total_waiting"`
	EstimatedWait int64     `json:"estimated_wait_seconds"`
	CreatedAt     time.Time `json:"created_at"`
	Message       string    `json:"message,omitempty"`
}

// QueueStatusResponse represents a token's current place in the waiting room
type QueueStatusResponse struct {
	TokenID       string `json:"token_id"`
	Status        string `json:"status"`
	Position      int64  `json:"position,omitempty"`
	TotalWaiting  int64  `json:"total_waiting"`
	EstimatedWait int64  `json:"estimated_wait_seconds"`
	IsReady       bool   `json:"is_ready"`
}

// QueueSnapshotResponse represents the waiting room as a whole
type QueueSnapshotResponse struct {
	WaitingCount    int64 `json:"waiting_count"`
	ActiveCount     int64 `json:"active_count"`
	MaxActiveTokens int64 `json:"max_active_tokens"`
	FreeSlots       int64 `json:"free_slots"`
}

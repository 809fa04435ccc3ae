package repository

import (
	"context"
	"time"

	"github.com/teerapat-l/seatgate/internal/domain"
)

// QueueStats is a point-in-time view of the waiting room
type QueueStats struct {
	WaitingCount int64
	ActiveCount  int64
}

// TokenStore persists admission tokens and the FIFO waiting queue.
// A user has at most one live (WAITING or ACTIVE) token at a time.
type TokenStore interface {
	// IssueToken saves a new waiting token and appends it to the queue,
	// returning its 1-based position. Fails with ErrInvalidTokenID if a
	// token with the same ID already exists.
	IssueToken(ctx context.Context, token *domain.Token) (int64, error)

	// FindByID returns the token or ErrTokenNotFound
	FindByID(ctx context.Context, tokenID string) (*domain.Token, error)

	// FindLiveByUser returns the user's WAITING or ACTIVE token,
	// or ErrTokenNotFound if the user has none
	FindLiveByUser(ctx context.Context, userID int64) (*domain.Token, error)

	// QueuePosition returns the 1-based position of a waiting token,
	// or ErrTokenNotQueued if the token is not waiting
	QueuePosition(ctx context.Context, tokenID string) (int64, error)

	// QueueSize returns the number of waiting tokens
	QueueSize(ctx context.Context) (int64, error)

	// CountActive returns the number of active tokens
	CountActive(ctx context.Context) (int64, error)

	// ActivateNextBatch promotes up to batchSize waiting tokens in FIFO
	// order, never letting the active count exceed maxActive. The check
	// and the promotion happen as one atomic step. Returns the promoted
	// tokens, oldest first.
	ActivateNextBatch(ctx context.Context, batchSize, maxActive int) ([]*domain.Token, error)

	// Expire transitions a token to EXPIRED and removes it from the
	// queue or active set. Expiring an already expired or missing
	// token is a no-op.
	Expire(ctx context.Context, tokenID string) error

	// FindActiveOlderThan returns active tokens whose session has
	// outlived the TTL
	FindActiveOlderThan(ctx context.Context, ttl time.Duration, now time.Time) ([]*domain.Token, error)

	// Stats returns queue and active counts in one call
	Stats(ctx context.Context) (*QueueStats, error)
}

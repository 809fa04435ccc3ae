package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teerapat-l/seatgate/internal/domain"
	"github.com/teerapat-l/seatgate/internal/dto"
	"github.com/teerapat-l/seatgate/internal/repository"
)

func newTestTokenService(store repository.TokenStore, cfg *TokenServiceConfig) TokenService {
	if cfg == nil {
		cfg = &TokenServiceConfig{
			MaxActiveTokens:    3,
			PromotionBatchSize: 2,
			PromotionInterval:  5 * time.Second,
			ActiveTTL:          10 * time.Minute,
		}
	}
	return NewTokenService(store, cfg)
}

func TestTokenService_IssueToken(t *testing.T) {
	store := repository.NewMemoryTokenStore()
	svc := newTestTokenService(store, nil)
	ctx := context.Background()

	resp, err := svc.IssueToken(ctx, &dto.IssueTokenRequest{UserID: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.TokenID)
	assert.Equal(t, string(domain.TokenStatusWaiting), resp.Status)
	assert.Equal(t, int64(1), resp.Position)
	assert.Equal(t, int64(1), resp.TotalWaiting)
	assert.Greater(t, resp.EstimatedWait, int64(0))
}

func TestTokenService_IssueToken_InvalidUser(t *testing.T) {
	svc := newTestTokenService(repository.NewMemoryTokenStore(), nil)

	_, err := svc.IssueToken(context.Background(), &dto.IssueTokenRequest{UserID: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)

	_, err = svc.IssueToken(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)
}

func TestTokenService_IssueToken_ReentryIsIdempotent(t *testing.T) {
	store := repository.NewMemoryTokenStore()
	svc := newTestTokenService(store, nil)
	ctx := context.Background()

	first, err := svc.IssueToken(ctx, &dto.IssueTokenRequest{UserID: 1})
	require.NoError(t, err)

	second, err := svc.IssueToken(ctx, &dto.IssueTokenRequest{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, first.TokenID, second.TokenID)

	// Only one queue entry exists
	status, err := svc.GetQueueStatus(ctx, first.TokenID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.TotalWaiting)
}

// racingTokenStore misses the first live-token lookup, so a concurrent
// issue for the same user is only caught by the store-level guard.
type racingTokenStore struct {
	*repository.MemoryTokenStore
	missed bool
}

func (s *racingTokenStore) FindLiveByUser(ctx context.Context, userID int64) (*domain.Token, error) {
	token, err := s.MemoryTokenStore.FindLiveByUser(ctx, userID)
	if err == nil && !s.missed {
		s.missed = true
		return nil, domain.ErrTokenNotFound
	}
	return token, err
}

func TestTokenService_IssueToken_ConcurrentDuplicateRecovers(t *testing.T) {
	store := &racingTokenStore{MemoryTokenStore: repository.NewMemoryTokenStore()}
	svc := newTestTokenService(store, nil)
	ctx := context.Background()

	first, err := svc.IssueToken(ctx, &dto.IssueTokenRequest{UserID: 1})
	require.NoError(t, err)

	// The pre-check misses, the store rejects the duplicate, and the
	// caller still gets the token that won
	second, err := svc.IssueToken(ctx, &dto.IssueTokenRequest{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, first.TokenID, second.TokenID)
}

func TestTokenService_GetQueueStatus_Waiting(t *testing.T) {
	store := repository.NewMemoryTokenStore()
	svc := newTestTokenService(store, nil)
	ctx := context.Background()

	_, err := svc.IssueToken(ctx, &dto.IssueTokenRequest{UserID: 1})
	require.NoError(t, err)
	resp, err := svc.IssueToken(ctx, &dto.IssueTokenRequest{UserID: 2})
	require.NoError(t, err)

	status, err := svc.GetQueueStatus(ctx, resp.TokenID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.TokenStatusWaiting), status.Status)
	assert.Equal(t, int64(2), status.Position)
	assert.False(t, status.IsReady)
}

func TestTokenService_GetQueueStatus_NotFound(t *testing.T) {
	svc := newTestTokenService(repository.NewMemoryTokenStore(), nil)

	_, err := svc.GetQueueStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestTokenService_PromoteBatch_RespectsCapacity(t *testing.T) {
	store := repository.NewMemoryTokenStore()
	svc := newTestTokenService(store, &TokenServiceConfig{
		MaxActiveTokens:    3,
		PromotionBatchSize: 2,
		PromotionInterval:  5 * time.Second,
		ActiveTTL:          10 * time.Minute,
	})
	ctx := context.Background()

	tokens := make([]string, 0, 6)
	for i := int64(1); i <= 6; i++ {
		resp, err := svc.IssueToken(ctx, &dto.IssueTokenRequest{UserID: i})
		require.NoError(t, err)
		tokens = append(tokens, resp.TokenID)
	}

	// First batch fills two of three slots
	promoted, err := svc.PromoteBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, promoted)

	// Second batch only has one slot left
	promoted, err = svc.PromoteBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	// Capacity is full
	promoted, err = svc.PromoteBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, promoted)

	status, err := svc.GetQueueStatus(ctx, tokens[0])
	require.NoError(t, err)
	assert.True(t, status.IsReady)

	status, err = svc.GetQueueStatus(ctx, tokens[3])
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Position)
}

func TestTokenService_ValidateActive(t *testing.T) {
	store := repository.NewMemoryTokenStore()
	svc := newTestTokenService(store, nil)
	ctx := context.Background()

	resp, err := svc.IssueToken(ctx, &dto.IssueTokenRequest{UserID: 1})
	require.NoError(t, err)

	// Waiting tokens grant no access
	err = svc.ValidateActive(ctx, resp.TokenID)
	assert.ErrorIs(t, err, domain.ErrTokenNotActive)

	_, err = svc.PromoteBatch(ctx)
	require.NoError(t, err)

	assert.NoError(t, svc.ValidateActive(ctx, resp.TokenID))

	// Expired tokens are rejected
	require.NoError(t, svc.CompleteUserToken(ctx, 1))
	err = svc.ValidateActive(ctx, resp.TokenID)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)

	assert.ErrorIs(t, svc.ValidateActive(ctx, "missing"), domain.ErrTokenNotFound)
}

func TestTokenService_CleanupExpiredActive(t *testing.T) {
	store := repository.NewMemoryTokenStore()
	svc := newTestTokenService(store, &TokenServiceConfig{
		MaxActiveTokens:    5,
		PromotionBatchSize: 5,
		PromotionInterval:  5 * time.Second,
		ActiveTTL:          time.Nanosecond,
	})
	ctx := context.Background()

	resp, err := svc.IssueToken(ctx, &dto.IssueTokenRequest{UserID: 1})
	require.NoError(t, err)

	_, err = svc.PromoteBatch(ctx)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	expired, err := svc.CleanupExpiredActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	_, err = svc.GetQueueStatus(ctx, resp.TokenID)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

// An expired token is archived: the status lookup reports it as missing,
// while ValidateActive still distinguishes expired from unknown.
func TestTokenService_GetQueueStatus_ExpiredLooksAbsent(t *testing.T) {
	store := repository.NewMemoryTokenStore()
	svc := newTestTokenService(store, nil)
	ctx := context.Background()

	resp, err := svc.IssueToken(ctx, &dto.IssueTokenRequest{UserID: 1})
	require.NoError(t, err)

	_, err = svc.PromoteBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.CompleteUserToken(ctx, 1))

	_, err = svc.GetQueueStatus(ctx, resp.TokenID)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	assert.ErrorIs(t, svc.ValidateActive(ctx, resp.TokenID), domain.ErrTokenExpired)
}

func TestTokenService_CompleteUserToken_NoLiveToken(t *testing.T) {
	svc := newTestTokenService(repository.NewMemoryTokenStore(), nil)

	// Completing with no token is a no-op
	assert.NoError(t, svc.CompleteUserToken(context.Background(), 42))
}

func TestTokenService_Snapshot(t *testing.T) {
	store := repository.NewMemoryTokenStore()
	svc := newTestTokenService(store, &TokenServiceConfig{
		MaxActiveTokens:    3,
		PromotionBatchSize: 2,
		PromotionInterval:  5 * time.Second,
		ActiveTTL:          10 * time.Minute,
	})
	ctx := context.Background()

	for i := int64(1); i <= 4; i++ {
		_, err := svc.IssueToken(ctx, &dto.IssueTokenRequest{UserID: i})
		require.NoError(t, err)
	}
	_, err := svc.PromoteBatch(ctx)
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.WaitingCount)
	assert.Equal(t, int64(2), snap.ActiveCount)
	assert.Equal(t, int64(3), snap.MaxActiveTokens)
	assert.Equal(t, int64(1), snap.FreeSlots)
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/teerapat-l/seatgate/internal/domain"
	"github.com/teerapat-l/seatgate/internal/dto"
	"github.com/teerapat-l/seatgate/internal/repository"
	"github.com/teerapat-l/seatgate/pkg/logger"
	"github.com/teerapat-l/seatgate/pkg/telemetry"
)

// TokenService defines the interface for waiting room business logic
type TokenService interface {
	// IssueToken places a user in the waiting room. Re-issuing for a
	// user with a live token returns that token instead of a new one.
	IssueToken(ctx context.Context, req *dto.IssueTokenRequest) (*dto.TokenResponse, error)

	// GetQueueStatus returns a token's current place in the waiting room
	GetQueueStatus(ctx context.Context, tokenID string) (*dto.QueueStatusResponse, error)

	// ValidateActive checks that a token grants access to reservation
	// operations right now
	ValidateActive(ctx context.Context, tokenID string) error

	// PromoteBatch activates the next batch of waiting tokens, bounded
	// by the active capacity. Returns the number promoted.
	PromoteBatch(ctx context.Context) (int, error)

	// CleanupExpiredActive expires active sessions past their TTL.
	// Returns the number expired.
	CleanupExpiredActive(ctx context.Context) (int, error)

	// CompleteUserToken retires the user's active token after a
	// successful purchase
	CompleteUserToken(ctx context.Context, userID int64) error

	// Snapshot returns the waiting room as a whole
	Snapshot(ctx context.Context) (*dto.QueueSnapshotResponse, error)
}

// tokenService implements TokenService
type tokenService struct {
	tokens             repository.TokenStore
	maxActiveTokens    int
	promotionBatchSize int
	promotionInterval  time.Duration
	activeTTL          time.Duration
}

// TokenServiceConfig contains configuration for the token service
type TokenServiceConfig struct {
	MaxActiveTokens    int
	PromotionBatchSize int
	PromotionInterval  time.Duration
	ActiveTTL          time.Duration
}

// NewTokenService creates a new token service
func NewTokenService(tokens repository.TokenStore, cfg *TokenServiceConfig) TokenService {
	maxActive := 100
	batchSize := 50
	interval := 5 * time.Second
	activeTTL := 10 * time.Minute

	if cfg != nil {
		if cfg.MaxActiveTokens > 0 {
			maxActive = cfg.MaxActiveTokens
		}
		if cfg.PromotionBatchSize > 0 {
			batchSize = cfg.PromotionBatchSize
		}
		if cfg.PromotionInterval > 0 {
			interval = cfg.PromotionInterval
		}
		if cfg.ActiveTTL > 0 {
			activeTTL = cfg.ActiveTTL
		}
	}

	return &tokenService{
		tokens:             tokens,
		maxActiveTokens:    maxActive,
		promotionBatchSize: batchSize,
		promotionInterval:  interval,
		activeTTL:          activeTTL,
	}
}

// IssueToken places a user in the waiting room
func (s *tokenService) IssueToken(ctx context.Context, req *dto.IssueTokenRequest) (*dto.TokenResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.token.issue")
	defer span.End()

	if req == nil || req.UserID <= 0 {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	span.SetAttributes(attribute.Int64("user_id", req.UserID))

	// Re-issue is idempotent: a user with a live token gets it back
	if existing, err := s.tokens.FindLiveByUser(ctx, req.UserID); err == nil {
		return s.tokenResponse(ctx, existing, "already in the waiting room")
	}

	token := domain.NewToken(generateTokenID(), req.UserID)
	position, err := s.tokens.IssueToken(ctx, token)
	if err != nil {
		// A concurrent issue for the same user slipped in after the
		// pre-check; hand back the token that won
		if errors.Is(err, domain.ErrUserHasLiveToken) {
			if existing, findErr := s.tokens.FindLiveByUser(ctx, req.UserID); findErr == nil {
				return s.tokenResponse(ctx, existing, "already in the waiting room")
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	total, _ := s.tokens.QueueSize(ctx)

	span.SetAttributes(
		attribute.String("token_id", token.ID),
		attribute.Int64("position", position),
	)
	span.SetStatus(codes.Ok, "")
	return &dto.TokenResponse{
		TokenID:       token.ID,
		Status:        string(token.Status),
		Position:      position,
		TotalWaiting:  total,
		EstimatedWait: s.estimatedWaitSeconds(position),
		CreatedAt:     token.CreatedAt,
		Message:       "joined the waiting room",
	}, nil
}

// GetQueueStatus returns a token's current place in the waiting room
func (s *tokenService) GetQueueStatus(ctx context.Context, tokenID string) (*dto.QueueStatusResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.token.status")
	defer span.End()

	if tokenID == "" {
		span.SetStatus(codes.Error, "invalid token_id")
		return nil, domain.ErrInvalidTokenID
	}

	span.SetAttributes(attribute.String("token_id", tokenID))

	token, err := s.tokens.FindByID(ctx, tokenID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	status := &dto.QueueStatusResponse{
		TokenID: token.ID,
		Status:  string(token.Status),
	}

	switch token.Status {
	case domain.TokenStatusWaiting:
		position, err := s.tokens.QueuePosition(ctx, tokenID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		total, _ := s.tokens.QueueSize(ctx)
		status.Position = position
		status.TotalWaiting = total
		status.EstimatedWait = s.estimatedWaitSeconds(position)
	case domain.TokenStatusActive:
		status.IsReady = true
	case domain.TokenStatusExpired:
		// Expired tokens are archived; the status endpoint treats them
		// as gone. ValidateActive keeps the expired/not-found split.
		span.SetStatus(codes.Error, "token expired")
		return nil, domain.ErrTokenNotFound
	}

	span.SetStatus(codes.Ok, "")
	return status, nil
}

// ValidateActive checks that a token grants access right now
func (s *tokenService) ValidateActive(ctx context.Context, tokenID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.token.validate")
	defer span.End()

	if tokenID == "" {
		span.SetStatus(codes.Error, "invalid token_id")
		return domain.ErrInvalidTokenID
	}

	token, err := s.tokens.FindByID(ctx, tokenID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	switch token.Status {
	case domain.TokenStatusActive:
		span.SetStatus(codes.Ok, "")
		return nil
	case domain.TokenStatusWaiting:
		span.SetStatus(codes.Error, "token not active")
		return domain.ErrTokenNotActive
	default:
		span.SetStatus(codes.Error, "token expired")
		return domain.ErrTokenExpired
	}
}

// PromoteBatch activates the next batch of waiting tokens
func (s *tokenService) PromoteBatch(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.token.promote_batch")
	defer span.End()

	promoted, err := s.tokens.ActivateNextBatch(ctx, s.promotionBatchSize, s.maxActiveTokens)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	if len(promoted) > 0 {
		logger.Get().Info("promoted waiting tokens",
			zap.Int("count", len(promoted)),
			zap.Int("max_active", s.maxActiveTokens),
		)
	}

	span.SetAttributes(attribute.Int("promoted", len(promoted)))
	span.SetStatus(codes.Ok, "")
	return len(promoted), nil
}

// CleanupExpiredActive expires active sessions past their TTL
func (s *tokenService) CleanupExpiredActive(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.token.cleanup_expired")
	defer span.End()

	stale, err := s.tokens.FindActiveOlderThan(ctx, s.activeTTL, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	expired := 0
	for _, token := range stale {
		if err := s.tokens.Expire(ctx, token.ID); err != nil {
			logger.Get().Error("failed to expire stale token",
				zap.String("token_id", token.ID),
				zap.Error(err),
			)
			continue
		}
		expired++
	}

	if expired > 0 {
		logger.Get().Info("expired stale active sessions", zap.Int("count", expired))
	}

	span.SetAttributes(attribute.Int("expired", expired))
	span.SetStatus(codes.Ok, "")
	return expired, nil
}

// CompleteUserToken retires the user's active token after purchase
func (s *tokenService) CompleteUserToken(ctx context.Context, userID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "service.token.complete")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	token, err := s.tokens.FindLiveByUser(ctx, userID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			span.SetStatus(codes.Ok, "no live token")
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := s.tokens.Expire(ctx, token.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Snapshot returns the waiting room as a whole
func (s *tokenService) Snapshot(ctx context.Context) (*dto.QueueSnapshotResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.token.snapshot")
	defer span.End()

	stats, err := s.tokens.Stats(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	freeSlots := int64(s.maxActiveTokens) - stats.ActiveCount
	if freeSlots < 0 {
		freeSlots = 0
	}

	span.SetStatus(codes.Ok, "")
	return &dto.QueueSnapshotResponse{
		WaitingCount:    stats.WaitingCount,
		ActiveCount:     stats.ActiveCount,
		MaxActiveTokens: int64(s.maxActiveTokens),
		FreeSlots:       freeSlots,
	}, nil
}

// tokenResponse builds the response for an already live token
func (s *tokenService) tokenResponse(ctx context.Context, token *domain.Token, message string) (*dto.TokenResponse, error) {
	resp := &dto.TokenResponse{
		TokenID:   token.ID,
		Status:    string(token.Status),
		CreatedAt: token.CreatedAt,
		Message:   message,
	}

	if token.Status == domain.TokenStatusWaiting {
		if position, err := s.tokens.QueuePosition(ctx, token.ID); err == nil {
			resp.Position = position
			resp.EstimatedWait = s.estimatedWaitSeconds(position)
		}
		resp.TotalWaiting, _ = s.tokens.QueueSize(ctx)
	}

	return resp, nil
}

// estimatedWaitSeconds estimates time until promotion from the queue
// position: full batches ahead of the token times the promotion cadence
func (s *tokenService) estimatedWaitSeconds(position int64) int64 {
	if position <= 0 {
		return 0
	}
	batches := (position + int64(s.promotionBatchSize) - 1) / int64(s.promotionBatchSize)
	return batches * int64(s.promotionInterval.Seconds())
}

// generateTokenID generates an opaque random token identifier
func generateTokenID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand failing is unrecoverable
		panic(err)
	}
	return hex.EncodeToString(bytes)
}

package repository

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/teerapat-l/seatgate/internal/domain"
	pkgredis "github.com/teerapat-l/seatgate/pkg/redis"
	"github.com/teerapat-l/seatgate/pkg/telemetry"
)

//go:embed scripts/issue_token.lua
var issueTokenScript string

//go:embed scripts/promote_batch.lua
var promoteBatchScript string

//go:embed scripts/expire_token.lua
var expireTokenScript string

// Script names for caching
const (
	scriptIssueToken   = "issue_token"
	scriptPromoteBatch = "promote_batch"
	scriptExpireToken  = "expire_token"
)

// Redis key layout for the waiting room
const (
	tokenKeyPrefix  = "admission:token:"
	userTokenPrefix = "admission:user:"
	waitingQueueKey = "admission:queue"
	activeTokensKey = "admission:active"
)

// RedisTokenStore implements TokenStore using Redis sorted sets and
// Lua scripts for the atomic multi-key transitions
type RedisTokenStore struct {
	client *pkgredis.Client
}

// NewRedisTokenStore creates a new RedisTokenStore
func NewRedisTokenStore(client *pkgredis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

// LoadScripts loads all admission Lua scripts into Redis
func (s *RedisTokenStore) LoadScripts(ctx context.Context) error {
	scripts := map[string]string{
		scriptIssueToken:   issueTokenScript,
		scriptPromoteBatch: promoteBatchScript,
		scriptExpireToken:  expireTokenScript,
	}

	for name, script := range scripts {
		if _, err := s.client.LoadScript(ctx, name, script); err != nil {
			return fmt.Errorf("failed to load script %s: %w", name, err)
		}
	}

	return nil
}

// IssueToken saves a waiting token and appends it to the queue atomically
func (s *RedisTokenStore) IssueToken(ctx context.Context, token *domain.Token) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.token.issue")
	defer span.End()

	span.SetAttributes(
		attribute.String("token_id", token.ID),
		attribute.Int64("user_id", token.UserID),
	)

	if err := token.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	keys := []string{
		tokenKeyPrefix + token.ID,
		fmt.Sprintf("%s%d", userTokenPrefix, token.UserID),
		waitingQueueKey,
	}
	args := []interface{}{
		token.ID,                    // ARGV[1]: token_id
		token.UserID,                // ARGV[2]: user_id
		token.CreatedAt.UnixMilli(), // ARGV[3]: created_at / queue score
	}

	result := s.client.EvalWithFallback(ctx, scriptIssueToken, issueTokenScript, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return 0, fmt.Errorf("failed to execute issue_token script: %w", result.Err())
	}

	values, err := result.Slice()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to parse script result: %w", err)
	}
	if len(values) < 2 {
		span.SetStatus(codes.Error, "unexpected result length")
		return 0, fmt.Errorf("unexpected script result length: %d", len(values))
	}

	success, _ := toInt64(values[0])
	if success != 1 {
		errorCode, _ := values[1].(string)
		span.SetAttributes(attribute.String("error_code", errorCode))
		span.SetStatus(codes.Error, errorCode)
		switch errorCode {
		case "USER_HAS_TOKEN":
			// A concurrent issue for the same user won the race
			return 0, domain.ErrUserHasLiveToken
		default:
			return 0, domain.ErrInvalidTokenID
		}
	}

	position, _ := toInt64(values[1])
	span.SetAttributes(attribute.Int64("position", position))
	span.SetStatus(codes.Ok, "")
	return position, nil
}

// FindByID returns the token or ErrTokenNotFound
func (s *RedisTokenStore) FindByID(ctx context.Context, tokenID string) (*domain.Token, error) {
	fields, err := s.client.HGetAll(ctx, tokenKeyPrefix+tokenID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrTokenNotFound
	}
	return parseTokenHash(fields)
}

// FindLiveByUser returns the user's waiting or active token
func (s *RedisTokenStore) FindLiveByUser(ctx context.Context, userID int64) (*domain.Token, error) {
	tokenID, err := s.client.Get(ctx, fmt.Sprintf("%s%d", userTokenPrefix, userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get user live token: %w", err)
	}

	token, err := s.FindByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if !token.IsLive() {
		return nil, domain.ErrTokenNotFound
	}
	return token, nil
}

// QueuePosition returns the 1-based rank of a waiting token
func (s *RedisTokenStore) QueuePosition(ctx context.Context, tokenID string) (int64, error) {
	rank, err := s.client.ZRank(ctx, waitingQueueKey, tokenID).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, domain.ErrTokenNotQueued
		}
		return 0, fmt.Errorf("failed to get queue position: %w", err)
	}
	return rank + 1, nil
}

// QueueSize returns the number of waiting tokens
func (s *RedisTokenStore) QueueSize(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, waitingQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue size: %w", err)
	}
	return count, nil
}

// CountActive returns the number of active tokens
func (s *RedisTokenStore) CountActive(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, activeTokensKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count active tokens: %w", err)
	}
	return count, nil
}

// ActivateNextBatch promotes waiting tokens in FIFO order atomically
func (s *RedisTokenStore) ActivateNextBatch(ctx context.Context, batchSize, maxActive int) ([]*domain.Token, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.token.promote_batch")
	defer span.End()

	keys := []string{waitingQueueKey, activeTokensKey}
	args := []interface{}{
		batchSize,              // ARGV[1]: batch_size
		maxActive,              // ARGV[2]: max_active
		time.Now().UnixMilli(), // ARGV[3]: now
		tokenKeyPrefix,         // ARGV[4]: token key prefix
	}

	result := s.client.EvalWithFallback(ctx, scriptPromoteBatch, promoteBatchScript, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return nil, fmt.Errorf("failed to execute promote_batch script: %w", result.Err())
	}

	ids, err := result.StringSlice()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to parse script result: %w", err)
	}

	promoted := make([]*domain.Token, 0, len(ids))
	for _, id := range ids {
		token, err := s.FindByID(ctx, id)
		if err != nil {
			continue
		}
		promoted = append(promoted, token)
	}

	span.SetAttributes(attribute.Int("promoted", len(promoted)))
	span.SetStatus(codes.Ok, "")
	return promoted, nil
}

// Expire marks a token EXPIRED and removes it from queue and active set
func (s *RedisTokenStore) Expire(ctx context.Context, tokenID string) error {
	keys := []string{
		tokenKeyPrefix + tokenID,
		waitingQueueKey,
		activeTokensKey,
	}
	args := []interface{}{tokenID, userTokenPrefix}

	result := s.client.EvalWithFallback(ctx, scriptExpireToken, expireTokenScript, keys, args...)
	if result.Err() != nil {
		return fmt.Errorf("failed to execute expire_token script: %w", result.Err())
	}
	return nil
}

// FindActiveOlderThan returns active tokens past the session TTL
func (s *RedisTokenStore) FindActiveOlderThan(ctx context.Context, ttl time.Duration, now time.Time) ([]*domain.Token, error) {
	cutoff := now.Add(-ttl).UnixMilli()

	ids, err := s.client.ZRangeByScore(ctx, activeTokensKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan stale active tokens: %w", err)
	}

	stale := make([]*domain.Token, 0, len(ids))
	for _, id := range ids {
		token, err := s.FindByID(ctx, id)
		if err != nil {
			continue
		}
		stale = append(stale, token)
	}
	return stale, nil
}

// Stats returns queue and active counts
func (s *RedisTokenStore) Stats(ctx context.Context) (*QueueStats, error) {
	waiting, err := s.QueueSize(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	return &QueueStats{WaitingCount: waiting, ActiveCount: active}, nil
}

func parseTokenHash(fields map[string]string) (*domain.Token, error) {
	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token user_id: %w", err)
	}

	token := &domain.Token{
		ID:     fields["id"],
		UserID: userID,
		Status: domain.TokenStatus(fields["status"]),
	}

	if ms, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		token.CreatedAt = time.UnixMilli(ms)
	}
	if raw, ok := fields["activated_at"]; ok && raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			activatedAt := time.UnixMilli(ms)
			token.ActivatedAt = &activatedAt
		}
	}

	return token, nil
}

// Helper function to convert interface{} to int64
func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case string:
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// Ensure RedisTokenStore implements TokenStore
var _ TokenStore = (*RedisTokenStore)(nil)

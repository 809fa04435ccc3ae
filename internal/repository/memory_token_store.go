package repository

import (
	"context"
	"sync"
	"time"

	"github.com/teerapat-l/seatgate/internal/domain"
)

// MemoryTokenStore is an in-memory TokenStore for tests and local development
type MemoryTokenStore struct {
	mu       sync.Mutex
	tokens   map[string]*domain.Token
	liveUser map[int64]string // userID -> live tokenID
	queue    []string         // waiting tokenIDs, FIFO
	active   map[string]struct{}
}

// NewMemoryTokenStore creates an empty in-memory token store
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens:   make(map[string]*domain.Token),
		liveUser: make(map[int64]string),
		active:   make(map[string]struct{}),
	}
}

// IssueToken saves a waiting token and appends it to the queue
func (s *MemoryTokenStore) IssueToken(_ context.Context, token *domain.Token) (int64, error) {
	if err := token.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[token.ID]; exists {
		return 0, domain.ErrInvalidTokenID
	}
	if existingID, ok := s.liveUser[token.UserID]; ok {
		if existing, found := s.tokens[existingID]; found && existing.IsLive() {
			return 0, domain.ErrUserHasLiveToken
		}
	}

	cp := *token
	cp.Status = domain.TokenStatusWaiting
	s.tokens[cp.ID] = &cp
	s.liveUser[cp.UserID] = cp.ID
	s.queue = append(s.queue, cp.ID)

	return int64(len(s.queue)), nil
}

// FindByID returns a copy of the token
func (s *MemoryTokenStore) FindByID(_ context.Context, tokenID string) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[tokenID]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	cp := *token
	return &cp, nil
}

// FindLiveByUser returns the user's waiting or active token
func (s *MemoryTokenStore) FindLiveByUser(_ context.Context, userID int64) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokenID, ok := s.liveUser[userID]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	token, ok := s.tokens[tokenID]
	if !ok || !token.IsLive() {
		return nil, domain.ErrTokenNotFound
	}
	cp := *token
	return &cp, nil
}

// QueuePosition returns the 1-based position of a waiting token
func (s *MemoryTokenStore) QueuePosition(_ context.Context, tokenID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, id := range s.queue {
		if id == tokenID {
			return int64(i + 1), nil
		}
	}
	return 0, domain.ErrTokenNotQueued
}

// QueueSize returns the number of waiting tokens
func (s *MemoryTokenStore) QueueSize(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.queue)), nil
}

// CountActive returns the number of active tokens
func (s *MemoryTokenStore) CountActive(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.active)), nil
}

// ActivateNextBatch promotes waiting tokens in FIFO order up to the
// batch size and the active capacity, atomically
func (s *MemoryTokenStore) ActivateNextBatch(_ context.Context, batchSize, maxActive int) ([]*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := maxActive - len(s.active)
	if slots <= 0 {
		return nil, nil
	}

	n := batchSize
	if n > slots {
		n = slots
	}
	if n > len(s.queue) {
		n = len(s.queue)
	}
	if n <= 0 {
		return nil, nil
	}

	now := time.Now()
	promoted := make([]*domain.Token, 0, n)
	for _, id := range s.queue[:n] {
		token := s.tokens[id]
		token.Status = domain.TokenStatusActive
		activatedAt := now
		token.ActivatedAt = &activatedAt
		s.active[id] = struct{}{}

		cp := *token
		promoted = append(promoted, &cp)
	}
	s.queue = s.queue[n:]

	return promoted, nil
}

// Expire marks a token EXPIRED and removes it from queue and active set
func (s *MemoryTokenStore) Expire(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[tokenID]
	if !ok || token.Status == domain.TokenStatusExpired {
		return nil
	}

	token.Status = domain.TokenStatusExpired
	delete(s.active, tokenID)
	for i, id := range s.queue {
		if id == tokenID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	if live, ok := s.liveUser[token.UserID]; ok && live == tokenID {
		delete(s.liveUser, token.UserID)
	}

	return nil
}

// FindActiveOlderThan returns active tokens past the session TTL
func (s *MemoryTokenStore) FindActiveOlderThan(_ context.Context, ttl time.Duration, now time.Time) ([]*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []*domain.Token
	for id := range s.active {
		token := s.tokens[id]
		if token.ActivatedAt != nil && now.Sub(*token.ActivatedAt) >= ttl {
			cp := *token
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

// Stats returns queue and active counts
func (s *MemoryTokenStore) Stats(_ context.Context) (*QueueStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &QueueStats{
		WaitingCount: int64(len(s.queue)),
		ActiveCount:  int64(len(s.active)),
	}, nil
}

var _ TokenStore = (*MemoryTokenStore)(nil)

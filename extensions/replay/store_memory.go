package replay

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a Store for single-instance deployments.
//
// Expired entries are removed lazily, on the next Claim after they expire.
type InMemoryStore struct {
	mu     sync.Mutex
	expiry map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

// NewInMemoryStore creates a store that remembers claims for ttl.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		expiry: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Claim marks txHash as used and reports whether it was unused before.
func (s *InMemoryStore) Claim(ctx context.Context, txHash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := Key(txHash)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, exists := s.expiry[key]; exists {
		if expiry.IsZero() || now.Before(expiry) {
			return false, nil
		}
	}

	var expiry time.Time
	if s.ttl > 0 {
		expiry = now.Add(s.ttl)
	}
	s.expiry[key] = expiry

	s.cleanupExpiredLocked(now)
	return true, nil
}

// Release removes the claim on txHash. Releasing an unclaimed hash is a no-op.
func (s *InMemoryStore) Release(ctx context.Context, txHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expiry, Key(txHash))
	return nil
}

// Len returns the number of live entries.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiry)
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (s *InMemoryStore) cleanupExpiredLocked(now time.Time) {
	for key, expiry := range s.expiry {
		if !expiry.IsZero() && !now.Before(expiry) {
			delete(s.expiry, key)
		}
	}
}

var _ Store = (*InMemoryStore)(nil)

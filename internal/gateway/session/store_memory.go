package session

import (
	"context"
	"sync"
	"time"

	id "trustgate/pkg/domain"
	"trustgate/pkg/platform/sentinel"
	"trustgate/pkg/requestcontext"
)

// InMemoryRevocationList is the single-process revocation set.
type InMemoryRevocationList struct {
	mu      sync.RWMutex
	revoked map[id.SessionID]time.Time
}

// NewRevocationList creates an empty in-memory revocation list.
func NewRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{revoked: make(map[id.SessionID]time.Time)}
}

// Revoke marks a session id revoked until its TTL lapses.
func (l *InMemoryRevocationList) Revoke(ctx context.Context, sessionID id.SessionID, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[sessionID] = requestcontext.Now(ctx).Add(ttl)
	return nil
}

// IsRevoked reports whether the session id is currently revoked. Lapsed
// entries are dropped opportunistically.
func (l *InMemoryRevocationList) IsRevoked(ctx context.Context, sessionID id.SessionID) (bool, error) {
	l.mu.RLock()
	until, ok := l.revoked[sessionID]
	l.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if requestcontext.Now(ctx).After(until) {
		l.mu.Lock()
		delete(l.revoked, sessionID)
		l.mu.Unlock()
		return false, nil
	}
	return true, nil
}

type usage struct {
	requests  int
	cost      float64
	expiresAt time.Time
}

// InMemoryUsageStore tracks per-credential consumption in-process.
type InMemoryUsageStore struct {
	mu    sync.Mutex
	usage map[id.SessionID]*usage
}

// NewUsageStore creates an empty in-memory usage store.
func NewUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{usage: make(map[id.SessionID]*usage)}
}

// Consume atomically checks both budgets and commits the use, or commits
// nothing.
func (s *InMemoryUsageStore) Consume(ctx context.Context, sessionID id.SessionID, cost float64, maxRequests int, maxCost float64, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	u, ok := s.usage[sessionID]
	if !ok || now.After(u.expiresAt) {
		u = &usage{expiresAt: now.Add(ttl)}
		s.usage[sessionID] = u
	}

	if u.requests+1 > maxRequests {
		return u.requests, sentinel.ErrExhausted
	}
	if maxCost > 0 && u.cost+cost > maxCost {
		return u.requests, sentinel.ErrExhausted
	}

	u.requests++
	u.cost += cost
	return u.requests, nil
}

package memory

import (
	"context"
	"sync"

	"trustgate/internal/crossdomain"
	id "trustgate/pkg/domain"
	"trustgate/pkg/platform/sentinel"
)

// InMemoryTrustStore holds trusted remote configuration.
type InMemoryTrustStore struct {
	mu      sync.RWMutex
	remotes map[id.DomainID]crossdomain.AuthorityKey
}

// NewTrustStore creates an empty trust store.
func NewTrustStore() *InMemoryTrustStore {
	return &InMemoryTrustStore{remotes: make(map[id.DomainID]crossdomain.AuthorityKey)}
}

// Upsert sets the authority key for a domain; last write wins.
func (s *InMemoryTrustStore) Upsert(ctx context.Context, domain id.DomainID, key crossdomain.AuthorityKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remotes[domain] = key
	return nil
}

// Find returns the configured authority key for a domain.
func (s *InMemoryTrustStore) Find(ctx context.Context, domain id.DomainID) (crossdomain.AuthorityKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.remotes[domain]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return key, nil
}

// List returns a copy of the full configuration set.
func (s *InMemoryTrustStore) List(ctx context.Context) (map[id.DomainID]crossdomain.AuthorityKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.DomainID]crossdomain.AuthorityKey, len(s.remotes))
	for d, k := range s.remotes {
		out[d] = k
	}
	return out, nil
}

type pairKey struct {
	subject id.SubjectKey
	domain  id.DomainID
}

// InMemoryRemoteStore caches last-known remote opinions.
type InMemoryRemoteStore struct {
	mu      sync.RWMutex
	entries map[pairKey]crossdomain.RemoteEntry
}

// NewRemoteStore creates an empty remote entry store.
func NewRemoteStore() *InMemoryRemoteStore {
	return &InMemoryRemoteStore{entries: make(map[pairKey]crossdomain.RemoteEntry)}
}

// Put overwrites the entry for (subject, domain) unconditionally.
func (s *InMemoryRemoteStore) Put(ctx context.Context, entry crossdomain.RemoteEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[pairKey{entry.Subject, entry.Domain}] = entry
	return nil
}

// Find returns the cached entry for (subject, domain).
func (s *InMemoryRemoteStore) Find(ctx context.Context, subject id.SubjectKey, domain id.DomainID) (crossdomain.RemoteEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[pairKey{subject, domain}]
	if !ok {
		return crossdomain.RemoteEntry{}, sentinel.ErrNotFound
	}
	return entry, nil
}

// ListBySubject returns all cached entries for a subject.
func (s *InMemoryRemoteStore) ListBySubject(ctx context.Context, subject id.SubjectKey) ([]crossdomain.RemoteEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crossdomain.RemoteEntry
	for k, e := range s.entries {
		if k.subject == subject {
			out = append(out, e)
		}
	}
	return out, nil
}

package memory

import (
	"context"
	"sync"

	"trustgate/internal/reputation"
	id "trustgate/pkg/domain"
	"trustgate/pkg/platform/sentinel"
)

// InMemoryFeedbackStore keeps the append-only record log and per-subject
// aggregates under one mutex so Append stays atomic.
type InMemoryFeedbackStore struct {
	mu         sync.RWMutex
	records    map[id.SubjectKey][]reputation.FeedbackRecord
	aggregates map[id.SubjectKey]reputation.Aggregate
}

// New creates an empty in-memory feedback store.
func New() *InMemoryFeedbackStore {
	return &InMemoryFeedbackStore{
		records:    make(map[id.SubjectKey][]reputation.FeedbackRecord),
		aggregates: make(map[id.SubjectKey]reputation.Aggregate),
	}
}

// Append stores the record and folds it into the subject's aggregate.
func (s *InMemoryFeedbackStore) Append(ctx context.Context, rec reputation.FeedbackRecord) (reputation.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, ok := s.aggregates[rec.Subject]
	if !ok {
		agg = reputation.Aggregate{Subject: rec.Subject}
	}
	agg.Apply(rec)

	s.records[rec.Subject] = append(s.records[rec.Subject], rec)
	s.aggregates[rec.Subject] = agg
	return agg, nil
}

// FindAggregate returns the current aggregate for a subject.
func (s *InMemoryFeedbackStore) FindAggregate(ctx context.Context, subject id.SubjectKey) (reputation.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg, ok := s.aggregates[subject]
	if !ok {
		return reputation.Aggregate{}, sentinel.ErrNotFound
	}
	return agg, nil
}

// ListBySubject returns the subject's records in submission order.
func (s *InMemoryFeedbackStore) ListBySubject(ctx context.Context, subject id.SubjectKey) ([]reputation.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.records[subject]
	out := make([]reputation.FeedbackRecord, len(recs))
	copy(out, recs)
	return out, nil
}

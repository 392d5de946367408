package reputation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	id "trustgate/pkg/domain"
	dErrors "trustgate/pkg/domain-errors"
	"trustgate/pkg/platform/sentinel"
	"trustgate/pkg/requestcontext"
)

// Registry answers whether a subject has a ledger registration. Registration
// itself is an external concern; the ledger only checks the precondition.
type Registry interface {
	IsRegistered(ctx context.Context, subject id.SubjectKey) (bool, error)
}

// Service is the append-only reputation ledger. There is deliberately no
// deletion or correction API: history stays auditable and disputes are
// resolved with compensating feedback.
type Service struct {
	store    FeedbackStore
	registry Registry
	logger   *slog.Logger

	obsMu     sync.RWMutex
	observers []Observer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs the ledger service.
func NewService(feedback FeedbackStore, registry Registry, opts ...Option) (*Service, error) {
	if feedback == nil {
		return nil, fmt.Errorf("feedback store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	svc := &Service{
		store:    feedback,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Subscribe registers an observer for FeedbackRecorded events.
func (s *Service) Subscribe(obs Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, obs)
}

// SubmitFeedback validates and appends one feedback record, then notifies
// observers with the post-update score.
//
// Errors: CodeInvalidInput for a score outside {-1,0,1} or a negative weight;
// CodeUnknownSubject when the subject has no registration. On any error the
// ledger is left unchanged.
func (s *Service) SubmitFeedback(ctx context.Context, rec FeedbackRecord) error {
	if !rec.Score.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "feedback score must be -1, 0, or 1")
	}
	if rec.Weight < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "feedback weight cannot be negative")
	}
	if rec.Subject.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "feedback subject is required")
	}

	registered, err := s.registry.IsRegistered(ctx, rec.Subject)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "registration lookup failed")
	}
	if !registered {
		return dErrors.Newf(dErrors.CodeUnknownSubject, "subject %s has no registration", rec.Subject)
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = requestcontext.Now(ctx)
	}

	agg, err := s.store.Append(ctx, rec)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "append feedback record")
	}

	s.notify(ctx, FeedbackRecorded{
		Subject:    rec.Subject,
		Submitter:  rec.Submitter,
		Score:      rec.Score,
		Weight:     rec.Weight,
		NewScore:   agg.Score(),
		RecordedAt: rec.Timestamp,
	})
	return nil
}

// Score returns the subject's derived [0,100] score; a subject with no
// feedback scores neutral. Pure read, no side effects.
func (s *Service) Score(ctx context.Context, subject id.SubjectKey) (int, error) {
	agg, err := s.store.FindAggregate(ctx, subject)
	if errors.Is(err, sentinel.ErrNotFound) {
		return NeutralScore, nil
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read aggregate")
	}
	return agg.Score(), nil
}

// MeetsThreshold reports whether the subject's score is at least minScore.
// Shares the Score derivation to avoid recomputation drift.
func (s *Service) MeetsThreshold(ctx context.Context, subject id.SubjectKey, minScore int) (bool, error) {
	score, err := s.Score(ctx, subject)
	if err != nil {
		return false, err
	}
	return score >= minScore, nil
}

// FeedbackCount returns the number of records for a subject. Monotonically
// non-decreasing.
func (s *Service) FeedbackCount(ctx context.Context, subject id.SubjectKey) (int64, error) {
	agg, err := s.store.FindAggregate(ctx, subject)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read aggregate")
	}
	return agg.FeedbackCount, nil
}

// Aggregate exposes the raw rollup for observability surfaces.
func (s *Service) Aggregate(ctx context.Context, subject id.SubjectKey) (Aggregate, error) {
	agg, err := s.store.FindAggregate(ctx, subject)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Aggregate{Subject: subject}, nil
	}
	if err != nil {
		return Aggregate{}, dErrors.Wrap(err, dErrors.CodeInternal, "read aggregate")
	}
	return agg, nil
}

func (s *Service) notify(ctx context.Context, event FeedbackRecorded) {
	s.obsMu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.obsMu.RUnlock()

	for _, obs := range observers {
		obs.OnFeedbackRecorded(ctx, event)
	}
}

package reputation

import (
	"context"
	"time"

	id "trustgate/pkg/domain"
)

// FeedbackRecorded is emitted after a record has been durably appended.
// Observers see the post-update score so they can propagate it without a
// second read.
type FeedbackRecorded struct {
	Subject    id.SubjectKey
	Submitter  id.SubjectKey
	Score      FeedbackScore
	Weight     float64
	NewScore   int
	RecordedAt time.Time
}

// Observer receives ledger events. Registration is explicit (no implicit side
// effects) so propagation can be tested by asserting on emitted events.
// Observer failures are logged, never propagated back to the submitter.
type Observer interface {
	OnFeedbackRecorded(ctx context.Context, event FeedbackRecorded)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, event FeedbackRecorded)

func (f ObserverFunc) OnFeedbackRecorded(ctx context.Context, event FeedbackRecorded) {
	f(ctx, event)
}

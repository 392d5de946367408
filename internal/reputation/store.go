package reputation

import (
	"context"

	id "trustgate/pkg/domain"
)

// FeedbackStore persists feedback records and their derived aggregates.
// Implementations live under store/.
//
// Append must be atomic: either the record and the updated aggregate are both
// visible, or neither is. FindAggregate returns sentinel.ErrNotFound for a
// subject with no feedback; callers translate that into the neutral score.
type FeedbackStore interface {
	Append(ctx context.Context, rec FeedbackRecord) (Aggregate, error)
	FindAggregate(ctx context.Context, subject id.SubjectKey) (Aggregate, error)
	ListBySubject(ctx context.Context, subject id.SubjectKey) ([]FeedbackRecord, error)
}

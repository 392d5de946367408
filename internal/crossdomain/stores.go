package crossdomain

import (
	"context"

	id "trustgate/pkg/domain"
)

// TrustStore holds the remote domain -> authority key configuration set.
// Upsert is idempotent, last write wins.
type TrustStore interface {
	Upsert(ctx context.Context, domain id.DomainID, key AuthorityKey) error
	Find(ctx context.Context, domain id.DomainID) (AuthorityKey, error)
	List(ctx context.Context) (map[id.DomainID]AuthorityKey, error)
}

// RemoteStore caches the last accepted remote opinion per (subject, domain).
// Put overwrites unconditionally; concurrent puts for the same pair are safe
// because last-write-wins is the defined semantics.
type RemoteStore interface {
	Put(ctx context.Context, entry RemoteEntry) error
	Find(ctx context.Context, subject id.SubjectKey, domain id.DomainID) (RemoteEntry, error)
	ListBySubject(ctx context.Context, subject id.SubjectKey) ([]RemoteEntry, error)
}

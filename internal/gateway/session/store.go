package session

import (
	"context"
	"time"

	id "trustgate/pkg/domain"
)

// RevocationList is the server-side kill switch for individual credentials.
// Entries carry a TTL matching the credential's remaining lifetime; after
// that the credential is dead by expiry anyway.
type RevocationList interface {
	Revoke(ctx context.Context, sessionID id.SessionID, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID id.SessionID) (bool, error)
}

// UsageStore tracks per-credential consumption. Consume must be atomic:
// two concurrent uses of the same credential must never both pass a budget
// with one slot left.
//
// Returns sentinel.ErrExhausted when either budget would be exceeded; the
// counters are left unchanged in that case.
type UsageStore interface {
	Consume(ctx context.Context, sessionID id.SessionID, cost float64, maxRequests int, maxCost float64, ttl time.Duration) (requests int, err error)
}

// Package ports defines the gateway's external collaborator interfaces.
// Registration, staking, payment settlement, and enrichment are independent
// systems; the gateway consumes their answers and never reimplements them.
package ports

import (
	"context"

	id "trustgate/pkg/domain"
)

// Registration resolves caller-supplied identifiers to subjects and answers
// whether a subject has a ledger registration.
type Registration interface {
	IsRegistered(ctx context.Context, subject id.SubjectKey) (bool, error)
	// ResolveSubject maps an external identifier to a subject key. Returns
	// the zero key, nil when the identifier is unknown.
	ResolveSubject(ctx context.Context, identifier string) (id.SubjectKey, error)
}

// Stake reports the effective stake a subject has locked up.
type Stake interface {
	EffectiveStake(ctx context.Context, subject id.SubjectKey) (float64, error)
}

// PaymentRequirement is what the verifier checks a payment evidence blob
// against.
type PaymentRequirement struct {
	Amount    float64
	Recipient string
}

// PaymentResult is the verifier's verdict.
type PaymentResult struct {
	Accepted      bool
	SettledAmount float64
	Reference     string
	FailureReason string
}

// PaymentVerifier checks that a transfer happened and was sufficient.
// Consulted only for its output; settlement correctness is its problem.
type PaymentVerifier interface {
	Verify(ctx context.Context, evidence []byte, required PaymentRequirement) (PaymentResult, error)
}

// Enrichment is the output of one enrichment provider.
type Enrichment struct {
	ScoreAdjustment int
	Flags           []string
}

// Enricher is a third-party behavioral-score or credential-verification
// provider. Enrichers run after core admission and never gate it; failures
// degrade to neutral output.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, subject id.SubjectKey) (Enrichment, error)
}

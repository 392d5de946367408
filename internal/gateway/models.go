package gateway

import (
	"trustgate/internal/gateway/ports"
	"trustgate/internal/gateway/pow"
	"trustgate/internal/gateway/pricing"
	id "trustgate/pkg/domain"
	dErrors "trustgate/pkg/domain-errors"
)

// Outcome is the gateway's verdict on one request.
type Outcome string

const (
	// OutcomeAdmitted: the request proceeds; a session credential is attached.
	OutcomeAdmitted Outcome = "admitted"
	// OutcomeChallengeRequired: retryable; solve the attached challenge first.
	OutcomeChallengeRequired Outcome = "challenge-required"
	// OutcomePaymentRequired: retryable; pay the attached quote first.
	OutcomePaymentRequired Outcome = "payment-required"
	// OutcomeDenied: policy rejection; the reason carries the missing margin.
	OutcomeDenied Outcome = "denied"
)

// AdmitRequest is one inbound access request.
type AdmitRequest struct {
	// Identifier is the caller-supplied identity; resolved to a subject in
	// step 3 unless Subject is already set.
	Identifier string
	Subject    id.SubjectKey

	// Path is the API path the caller wants; admission scopes the issued
	// credential to it.
	Path string
	// Cost is the request's metered cost; defaults to the quoted price for
	// session budget accounting.
	Cost float64
	// PayloadSize feeds the oversized-payload risk penalty.
	PayloadSize int64

	// Credential is an optional bearer session credential (fast path).
	Credential string

	// Challenge solution, when replying to challenge-required.
	ChallengeID       string
	ChallengeSolution string

	// PaymentEvidence is the opaque settlement proof, when present.
	PaymentEvidence []byte

	// Domains restricts which remote opinions aggregate into the reputation
	// view; empty means all trusted remotes.
	Domains []id.DomainID
}

// TrustBreakdown explains the signals behind a decision.
type TrustBreakdown struct {
	Reputation           int      `json:"reputation"`
	AggregatedReputation int      `json:"aggregated_reputation"`
	Risk                 int      `json:"risk"`
	RiskFactors          []string `json:"risk_factors,omitempty"`
	Stake                float64  `json:"stake"`
	IsNewSubject         bool     `json:"is_new_subject"`
}

// EnrichmentResult is one provider's post-admission contribution.
type EnrichmentResult struct {
	Provider   string           `json:"provider"`
	Enrichment ports.Enrichment `json:"enrichment"`
	Degraded   bool             `json:"degraded,omitempty"`
}

// Decision is the structured response for every outcome.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	// Code classifies denials machine-readably; empty for other outcomes.
	Code  dErrors.Code   `json:"code,omitempty"`
	Trust TrustBreakdown `json:"trust"`

	// Price is set for payment-required and admitted outcomes.
	Price *pricing.Quote `json:"price,omitempty"`

	// Challenge is set for challenge-required outcomes.
	Challenge *pow.Challenge `json:"challenge,omitempty"`

	// Credential and SessionID are set on admission.
	Credential string       `json:"credential,omitempty"`
	SessionID  id.SessionID `json:"session_id,omitempty"`

	// Payment echoes the verifier's view of attached evidence, when any.
	Payment *ports.PaymentResult `json:"payment,omitempty"`

	// Enrichments carry optional provider output; never part of the verdict.
	Enrichments []EnrichmentResult `json:"enrichments,omitempty"`

	// FastPath marks decisions served from a valid session credential.
	FastPath bool `json:"fast_path,omitempty"`
}

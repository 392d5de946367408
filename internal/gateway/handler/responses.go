package handler

import (
	"net/http"

	"trustgate/internal/gateway"
	"trustgate/internal/reputation"
)

// StatusFor maps a decision outcome to its HTTP status. Retryable decision
// states are not errors; they use 4xx codes that carry the exact terms to
// satisfy.
func StatusFor(outcome gateway.Outcome) int {
	switch outcome {
	case gateway.OutcomeAdmitted:
		return http.StatusOK
	case gateway.OutcomeChallengeRequired:
		return http.StatusTooManyRequests
	case gateway.OutcomePaymentRequired:
		return http.StatusPaymentRequired
	case gateway.OutcomeDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ScoreResponse is the wire shape for GET /v1/score/{subject}.
type ScoreResponse struct {
	Subject       string `json:"subject"`
	Score         int    `json:"score"`
	FeedbackCount int64  `json:"feedback_count"`
}

// AggregatedScoreResponse is the wire shape for the aggregated variant.
type AggregatedScoreResponse struct {
	Subject         string        `json:"subject"`
	LocalScore      int           `json:"local_score"`
	AggregatedScore int           `json:"aggregated_score"`
	Remotes         []RemoteView  `json:"remotes,omitempty"`
	Aggregate       ledgerRollout `json:"aggregate"`
}

// RemoteView is one remote domain's cached opinion.
type RemoteView struct {
	Domain     string `json:"domain"`
	Score      int    `json:"score"`
	ObservedAt string `json:"observed_at"`
}

type ledgerRollout struct {
	PositiveWeight float64 `json:"positive_weight"`
	NegativeWeight float64 `json:"negative_weight"`
	TotalWeight    float64 `json:"total_weight"`
}

func rolloutFrom(agg reputation.Aggregate) ledgerRollout {
	return ledgerRollout{
		PositiveWeight: agg.PositiveWeight,
		NegativeWeight: agg.NegativeWeight,
		TotalWeight:    agg.TotalWeight,
	}
}

package reputation

import (
	"math"
	"time"

	id "trustgate/pkg/domain"
)

// NeutralScore is the score of a subject nobody has ever rated.
const NeutralScore = 50

// FeedbackScore is the signed outcome of a single interaction.
type FeedbackScore int

const (
	ScoreNegative FeedbackScore = -1
	ScoreNeutral  FeedbackScore = 0
	ScorePositive FeedbackScore = 1
)

// IsValid checks if the feedback score is one of the supported values.
func (s FeedbackScore) IsValid() bool {
	return s == ScoreNegative || s == ScoreNeutral || s == ScorePositive
}

// FeedbackRecord is one append-only observation about a subject. Records are
// never mutated or deleted; disputes are handled by submitting compensating
// feedback.
type FeedbackRecord struct {
	Subject   id.SubjectKey `json:"subject"`
	Submitter id.SubjectKey `json:"submitter"`
	Score     FeedbackScore `json:"score"`
	// Weight is a non-negative magnitude, typically the payment size backing
	// the interaction, so paid interactions count more than free ones.
	Weight    float64   `json:"weight"`
	Evidence  string    `json:"evidence,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Aggregate is the derived per-subject rollup. Invariant:
// PositiveWeight + NegativeWeight <= TotalWeight (neutral feedback
// contributes to TotalWeight only).
type Aggregate struct {
	Subject        id.SubjectKey `json:"subject"`
	PositiveWeight float64       `json:"positive_weight"`
	NegativeWeight float64       `json:"negative_weight"`
	TotalWeight    float64       `json:"total_weight"`
	FeedbackCount  int64         `json:"feedback_count"`
	LastUpdated    time.Time     `json:"last_updated"`
}

// Apply folds one record into the aggregate.
func (a *Aggregate) Apply(rec FeedbackRecord) {
	switch rec.Score {
	case ScorePositive:
		a.PositiveWeight += rec.Weight
	case ScoreNegative:
		a.NegativeWeight += rec.Weight
	}
	a.TotalWeight += rec.Weight
	a.FeedbackCount++
	a.LastUpdated = rec.Timestamp
}

// Score derives the [0,100] reputation score. It is never stored
// independently; every read path shares this one derivation so thresholds and
// score reads cannot drift apart.
func (a Aggregate) Score() int {
	if a.TotalWeight == 0 {
		return NeutralScore
	}
	score := int(math.Round(a.PositiveWeight * 100 / a.TotalWeight))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Package pricing derives the per-request price from trust signals. Factors
// are an explicit, ordered list applied left-to-right over an accumulator so
// new policy knobs slot in without touching existing ones. All factors
// multiply; the floor is applied last.
package pricing

import "fmt"

// Input carries the trust signals a quote is computed from.
type Input struct {
	Reputation int
	Risk       int
	Stake      float64
	IsNew      bool
}

// Step records one factor's contribution for the auditable breakdown.
type Step struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
	Price      float64 `json:"price"` // running price after this step
}

// Quote is the final price with its full derivation. Callers rejected with
// payment-required must be able to see why they were charged that amount.
type Quote struct {
	BasePrice  float64 `json:"base_price"`
	FinalPrice float64 `json:"final_price"`
	Steps      []Step  `json:"steps"`
}

// Factor is one pricing rule: returns its multiplier (1.0 for no effect) and
// a stable name for the breakdown.
type Factor func(in Input) (name string, multiplier float64)

// Engine applies its factor list in order.
type Engine struct {
	basePrice float64
	factors   []Factor
	floor     float64 // fraction of basePrice the final price cannot go below
}

// Config tunes the standard factor set.
type Config struct {
	BasePrice            float64
	StakeDiscountCeiling float64
}

// NewEngine builds the standard engine: reputation tier, risk surcharge,
// stake discount, new-subject surcharge, floored at 25% of base.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		basePrice: cfg.BasePrice,
		floor:     0.25,
		factors: []Factor{
			ReputationTier,
			RiskSurcharge,
			StakeDiscount(cfg.StakeDiscountCeiling),
			NewSubjectSurcharge,
		},
	}
}

// Quote runs the factor chain and applies the floor.
func (e *Engine) Quote(in Input) Quote {
	q := Quote{BasePrice: e.basePrice, FinalPrice: e.basePrice}
	for _, f := range e.factors {
		name, mult := f(in)
		q.FinalPrice *= mult
		q.Steps = append(q.Steps, Step{Name: name, Multiplier: mult, Price: q.FinalPrice})
	}
	if floor := e.basePrice * e.floor; q.FinalPrice < floor {
		q.Steps = append(q.Steps, Step{
			Name:       fmt.Sprintf("floor_%.0f%%", e.floor*100),
			Multiplier: floor / q.FinalPrice,
			Price:      floor,
		})
		q.FinalPrice = floor
	}
	return q
}

// ReputationTier discounts well-reputed subjects and surcharges poor ones.
func ReputationTier(in Input) (string, float64) {
	switch {
	case in.Reputation >= 90:
		return "reputation_tier", 0.5
	case in.Reputation >= 70:
		return "reputation_tier", 0.75
	case in.Reputation < 50:
		return "reputation_tier", 1.5
	default:
		return "reputation_tier", 1.0
	}
}

// RiskSurcharge charges for elevated behavioral risk.
func RiskSurcharge(in Input) (string, float64) {
	switch {
	case in.Risk > 50:
		return "risk_surcharge", 1.5
	case in.Risk > 25:
		return "risk_surcharge", 1.25
	default:
		return "risk_surcharge", 1.0
	}
}

// StakeDiscount rewards locked stake linearly, capped at -20% once stake
// reaches the configured ceiling.
func StakeDiscount(ceiling float64) Factor {
	return func(in Input) (string, float64) {
		if ceiling <= 0 || in.Stake <= 0 {
			return "stake_discount", 1.0
		}
		fraction := in.Stake / ceiling
		if fraction > 1 {
			fraction = 1
		}
		return "stake_discount", 1.0 - 0.2*fraction
	}
}

// NewSubjectSurcharge prices in the uncertainty of a thin history.
func NewSubjectSurcharge(in Input) (string, float64) {
	if in.IsNew {
		return "new_subject_surcharge", 1.25
	}
	return "new_subject_surcharge", 1.0
}

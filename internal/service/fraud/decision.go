package fraud

import (
	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
)

// DecisionMaker maps an aggregate score to a level and action. Manual review
// starts at the high threshold; blocking starts at the critical threshold.
type DecisionMaker struct {
	thresholds risk.Thresholds
}

// NewDecisionMaker builds a decision maker from configured thresholds.
func NewDecisionMaker(thresholds risk.Thresholds) *DecisionMaker {
	return &DecisionMaker{thresholds: thresholds}
}

// Decide is a pure function of the score.
func (d *DecisionMaker) Decide(score int) Decision {
	return Decision{
		Level:                d.thresholds.LevelFor(score),
		RequiresManualReview: score >= d.thresholds.High,
		ShouldBlock:          score >= d.thresholds.Critical,
	}
}

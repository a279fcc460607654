package risk

import (
	"time"

	"github.com/google/uuid"
)

// AssessmentRecord is the full audit trail entry for one assessment. It is
// persisted best-effort after the score has been returned to the caller.
type AssessmentRecord struct {
	ID           uuid.UUID     `json:"id"`
	RequestID    uuid.UUID     `json:"request_id"`
	DeviceID     string        `json:"device_id"`
	BusinessType string        `json:"business_type"`
	Method       string        `json:"payment_method"`
	Amount       string        `json:"amount"`
	Currency     string        `json:"currency"`
	Score        int           `json:"score"`
	Level        Level         `json:"level"`
	Reasons      []string      `json:"reasons"`
	RuleOutcomes []RuleOutcome `json:"rule_outcomes"`
	ShouldBlock  bool          `json:"should_block"`
	ManualReview bool          `json:"manual_review"`
	CreatedAt    time.Time     `json:"created_at"`
}

package risk

import (
	"time"

	"github.com/google/uuid"
)

// Level is the coarse risk bucket derived from the numeric score.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Score bounds. Every assessment lands in [ScoreMin, ScoreMax].
const (
	ScoreMin = 0
	ScoreMax = 100
)

// Thresholds maps a numeric score to a Level. Scores below Medium are low.
type Thresholds struct {
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// DefaultThresholds returns the platform default score thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Medium:   40,
		High:     70,
		Critical: 85,
	}
}

// LevelFor returns the risk level for a score under these thresholds.
func (t Thresholds) LevelFor(score int) Level {
	switch {
	case score >= t.Critical:
		return LevelCritical
	case score >= t.High:
		return LevelHigh
	case score >= t.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// RuleOutcome records how a single rule evaluated within one assessment.
type RuleOutcome struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Weight      int    `json:"weight"`
	Triggered   bool   `json:"triggered"`
	Failed      bool   `json:"failed,omitempty"`
}

// SumWeights reduces rule outcomes to the aggregate score: the sum of
// triggered weights, capped at ScoreMax. Failed rules contribute nothing.
// The reduction is deliberately not normalized by the total enabled weight.
func SumWeights(outcomes []RuleOutcome) int {
	sum := 0
	for _, o := range outcomes {
		if o.Triggered && !o.Failed {
			sum += o.Weight
		}
	}
	if sum > ScoreMax {
		return ScoreMax
	}
	if sum < ScoreMin {
		return ScoreMin
	}
	return sum
}

// FraudScore is the immutable output of one risk assessment.
type FraudScore struct {
	ID                   uuid.UUID     `json:"id"`
	Score                int           `json:"score"`
	Level                Level         `json:"level"`
	Reasons              []string      `json:"reasons"`
	RuleOutcomes         []RuleOutcome `json:"rule_outcomes"`
	RequiresManualReview bool          `json:"requires_manual_review"`
	ShouldBlock          bool          `json:"should_block"`
	AssessedAt           time.Time     `json:"assessed_at"`
}

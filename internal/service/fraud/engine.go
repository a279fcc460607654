package fraud

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/helixpay/payment-risk-backend/internal/domain/payment"
	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
)

// RuleEngine evaluates a rule snapshot against one request. Every enabled
// rule runs in its own goroutine; a predicate error or panic marks that rule
// as failed (zero weight) and never disturbs its siblings. The engine waits
// for all rules to settle before aggregating anything.
type RuleEngine struct {
	logger  *zap.Logger
	metrics MetricsCollector
}

// NewRuleEngine builds an engine. The metrics collector may be nil.
func NewRuleEngine(logger *zap.Logger, metrics MetricsCollector) *RuleEngine {
	return &RuleEngine{
		logger:  logger,
		metrics: metrics,
	}
}

// Evaluate runs the snapshot's enabled rules and returns one outcome per
// enabled rule, in registration order.
func (e *RuleEngine) Evaluate(ctx context.Context, req *payment.Request, actx *risk.AssessmentContext, snapshot []RuleSnapshot) []risk.RuleOutcome {
	enabled := make([]RuleSnapshot, 0, len(snapshot))
	for _, rule := range snapshot {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}

	outcomes := make([]risk.RuleOutcome, len(enabled))

	var wg sync.WaitGroup
	for i, rule := range enabled {
		wg.Add(1)
		go func(i int, rule RuleSnapshot) {
			defer wg.Done()
			outcomes[i] = e.runRule(ctx, req, actx, rule)
		}(i, rule)
	}
	wg.Wait()

	return outcomes
}

func (e *RuleEngine) runRule(ctx context.Context, req *payment.Request, actx *risk.AssessmentContext, rule RuleSnapshot) (outcome risk.RuleOutcome) {
	outcome = risk.RuleOutcome{
		Name:        rule.Name,
		Description: rule.Description,
		Weight:      rule.Weight,
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Triggered = false
			outcome.Failed = true
			e.logger.Error("rule predicate panicked",
				zap.String("rule", rule.Name),
				zap.Any("panic", r))
			if e.metrics != nil {
				e.metrics.RecordRuleFault(rule.Name)
			}
		}
	}()

	triggered, err := rule.Predicate(ctx, req, actx)
	if err != nil {
		outcome.Failed = true
		e.logger.Warn("rule predicate failed, treating as not triggered",
			zap.String("rule", rule.Name),
			zap.Error(err))
		if e.metrics != nil {
			e.metrics.RecordRuleFault(rule.Name)
		}
		return outcome
	}

	outcome.Triggered = triggered
	return outcome
}

package fraud

import (
	"context"
	"fmt"
	"sync"

	"github.com/helixpay/payment-risk-backend/internal/domain/errors"
	"github.com/helixpay/payment-risk-backend/internal/domain/payment"
	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
)

// Predicate decides whether a rule triggers for one request. Predicates may
// read the store; a returned error counts as not-triggered.
type Predicate func(ctx context.Context, req *payment.Request, actx *risk.AssessmentContext) (bool, error)

// Rule is one weighted fraud signal. Name is the unique registry key.
type Rule struct {
	Name        string
	Description string
	Weight      int
	Enabled     bool
	Predicate   Predicate
}

// RuleSnapshot is the immutable per-assessment view of one rule. Snapshots
// are value copies, so concurrent administrative mutation of the registry can
// never produce a torn read within a single assessment.
type RuleSnapshot struct {
	Name        string
	Description string
	Weight      int
	Enabled     bool
	Predicate   Predicate
}

// RuleRegistry is the process-wide mutable rule set. Assessments interact
// with it exclusively through Snapshot; administrative mutations affect
// future snapshots only.
type RuleRegistry struct {
	mu    sync.RWMutex
	order []string
	rules map[string]*Rule
}

// NewRuleRegistry returns an empty registry.
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{
		rules: make(map[string]*Rule),
	}
}

// Register adds a rule. Names must be unique and weights positive.
func (r *RuleRegistry) Register(rule *Rule) error {
	if rule == nil {
		return errors.NewValidationError("INVALID_RULE", "rule cannot be nil")
	}
	if rule.Name == "" {
		return errors.NewValidationError("INVALID_RULE", "rule name is required")
	}
	if rule.Weight <= 0 {
		return errors.NewValidationError("INVALID_RULE",
			fmt.Sprintf("rule %q weight must be positive, got %d", rule.Name, rule.Weight))
	}
	if rule.Predicate == nil {
		return errors.NewValidationError("INVALID_RULE",
			fmt.Sprintf("rule %q has no predicate", rule.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.Name]; exists {
		return errors.NewConflictError(fmt.Sprintf("rule %q already registered", rule.Name))
	}

	clone := *rule
	r.rules[rule.Name] = &clone
	r.order = append(r.order, rule.Name)
	return nil
}

// Remove deletes a rule by name.
func (r *RuleRegistry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[name]; !exists {
		return errors.NewNotFoundError(fmt.Sprintf("rule %q", name))
	}

	delete(r.rules, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Enable turns a rule on for future assessments.
func (r *RuleRegistry) Enable(name string) error {
	return r.setEnabled(name, true)
}

// Disable turns a rule off for future assessments.
func (r *RuleRegistry) Disable(name string) error {
	return r.setEnabled(name, false)
}

func (r *RuleRegistry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, exists := r.rules[name]
	if !exists {
		return errors.NewNotFoundError(fmt.Sprintf("rule %q", name))
	}
	rule.Enabled = enabled
	return nil
}

// SetWeight updates a rule's weight for future assessments.
func (r *RuleRegistry) SetWeight(name string, weight int) error {
	if weight <= 0 {
		return errors.NewValidationError("INVALID_WEIGHT",
			fmt.Sprintf("rule weight must be positive, got %d", weight))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rule, exists := r.rules[name]
	if !exists {
		return errors.NewNotFoundError(fmt.Sprintf("rule %q", name))
	}
	rule.Weight = weight
	return nil
}

// Snapshot returns an immutable copy of the rule set in registration order.
// Each assessment takes exactly one snapshot at its start.
func (r *RuleRegistry) Snapshot() []RuleSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]RuleSnapshot, 0, len(r.order))
	for _, name := range r.order {
		rule := r.rules[name]
		snapshot = append(snapshot, RuleSnapshot{
			Name:        rule.Name,
			Description: rule.Description,
			Weight:      rule.Weight,
			Enabled:     rule.Enabled,
			Predicate:   rule.Predicate,
		})
	}
	return snapshot
}

// Status returns the administrative view of every rule in registration order.
func (r *RuleRegistry) Status() []RuleStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make([]RuleStatus, 0, len(r.order))
	for _, name := range r.order {
		rule := r.rules[name]
		status = append(status, RuleStatus{
			Name:        rule.Name,
			Description: rule.Description,
			Weight:      rule.Weight,
			Enabled:     rule.Enabled,
		})
	}
	return status
}

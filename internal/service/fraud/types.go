package fraud

import (
	"github.com/shopspring/decimal"

	"github.com/helixpay/payment-risk-backend/internal/domain/payment"
	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
)

// FraudCheckLevel indicates how aggressively a business type is screened.
type FraudCheckLevel string

const (
	FraudCheckLow    FraudCheckLevel = "low"
	FraudCheckMedium FraudCheckLevel = "medium"
	FraudCheckHigh   FraudCheckLevel = "high"
)

// BusinessPolicy bounds what a business type may transact. Policies are
// created at startup from a fixed table and mutated only through explicit
// UpdatePolicy calls.
type BusinessPolicy struct {
	BusinessType         payment.BusinessType           `json:"business_type"`
	MinAmount            decimal.Decimal                `json:"min_amount"`
	MaxAmount            decimal.Decimal                `json:"max_amount"`
	AllowedCurrencies    map[string]bool                `json:"allowed_currencies"`
	AllowedMethods       map[payment.PaymentMethod]bool `json:"allowed_methods"`
	RequiresVerification bool                           `json:"requires_verification"`
	FraudCheckLevel      FraudCheckLevel                `json:"fraud_check_level"`
}

// clone deep-copies the policy so Validate never reads shared mutable maps.
func (p BusinessPolicy) clone() BusinessPolicy {
	currencies := make(map[string]bool, len(p.AllowedCurrencies))
	for k, v := range p.AllowedCurrencies {
		currencies[k] = v
	}
	methods := make(map[payment.PaymentMethod]bool, len(p.AllowedMethods))
	for k, v := range p.AllowedMethods {
		methods[k] = v
	}
	p.AllowedCurrencies = currencies
	p.AllowedMethods = methods
	return p
}

// PolicyPatch carries partial policy updates; nil fields are left untouched.
// The caller is responsible for the patch's internal consistency.
type PolicyPatch struct {
	MinAmount            *decimal.Decimal                `json:"min_amount,omitempty"`
	MaxAmount            *decimal.Decimal                `json:"max_amount,omitempty"`
	AllowedCurrencies    *map[string]bool                `json:"allowed_currencies,omitempty"`
	AllowedMethods       *map[payment.PaymentMethod]bool `json:"allowed_methods,omitempty"`
	RequiresVerification *bool                           `json:"requires_verification,omitempty"`
	FraudCheckLevel      *FraudCheckLevel                `json:"fraud_check_level,omitempty"`
}

// RuleStatus is the administrative view of one registered rule.
type RuleStatus struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
	Enabled     bool   `json:"enabled"`
}

// Decision is the action mapping derived from an aggregate score.
type Decision struct {
	Level                risk.Level `json:"level"`
	RequiresManualReview bool       `json:"requires_manual_review"`
	ShouldBlock          bool       `json:"should_block"`
}

package fraud

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/helixpay/payment-risk-backend/internal/domain/payment"
	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
)

// Service is the risk assessment entry point plus its administrative surface.
type Service interface {
	// Assess gates a payment: policy validation first, then weighted rule
	// scoring. A policy violation or missing policy comes back as an error;
	// block and review outcomes are carried on the FraudScore.
	Assess(ctx context.Context, req *payment.Request) (*risk.FraudScore, error)

	// Rule administration. Mutations affect future assessments only.
	EnableRule(name string) error
	DisableRule(name string) error
	UpdateRuleWeight(name string, weight int) error
	AddRule(rule *Rule) error
	RemoveRule(name string) error
	RuleStatus() []RuleStatus

	// Policy administration.
	GetPolicy(businessType payment.BusinessType) (BusinessPolicy, error)
	UpdatePolicy(businessType payment.BusinessType, patch PolicyPatch) error
}

// BlacklistKind selects which blacklist a lookup consults.
type BlacklistKind string

const (
	BlacklistDevice BlacklistKind = "device"
	BlacklistEmail  BlacklistKind = "email"
	BlacklistIP     BlacklistKind = "ip"
)

// Store is the persistent historical data the policy gate and the scoring
// rules read. Implementations live in infrastructure.
type Store interface {
	// CountRecentTransactions returns the device's transaction count within
	// the lookback window.
	CountRecentTransactions(ctx context.Context, deviceID string, window time.Duration) (int, error)
	// GetDeviceAggregate returns the device's historical aggregate. Unknown
	// devices yield a zero-valued aggregate with Known=false, not an error.
	GetDeviceAggregate(ctx context.Context, deviceID string) (risk.DeviceHistory, error)
	// GetCustomerAggregate returns the customer's historical aggregate by email.
	GetCustomerAggregate(ctx context.Context, email string) (risk.CustomerHistory, error)
	// GetBusinessTypeAverageAmount returns the average completed amount for a
	// business type over the trailing number of days.
	GetBusinessTypeAverageAmount(ctx context.Context, businessType payment.BusinessType, days int) (decimal.Decimal, error)
	// IsBlacklisted checks one blacklist for an active entry.
	IsBlacklisted(ctx context.Context, kind BlacklistKind, value string) (bool, error)
	// GetDeviceAuthorizationFlag reports whether the device is authorized for
	// automated payments.
	GetDeviceAuthorizationFlag(ctx context.Context, deviceID string) (bool, error)
	// GetTodaySpend returns the device's completed spend since local midnight.
	GetTodaySpend(ctx context.Context, deviceID string) (decimal.Decimal, error)
	// GetMonthlySpend returns the device's completed month-to-date spend.
	GetMonthlySpend(ctx context.Context, deviceID string) (decimal.Decimal, error)
	// HasActiveSubscription reports an active subscription for merchant+email.
	HasActiveSubscription(ctx context.Context, merchantID, email string) (bool, error)
	// CountSignupAttempts returns subscription signup attempts for the email
	// within the lookback window.
	CountSignupAttempts(ctx context.Context, email string, window time.Duration) (int, error)
}

// AuditSink persists assessment records. Writes are best-effort: the caller
// fires them without blocking the assessment result and drops failures.
type AuditSink interface {
	Record(ctx context.Context, record *risk.AssessmentRecord) error
}

// MLScorer is the reserved hook behind the ml_risk_score rule: an external
// model's boolean threshold decision.
type MLScorer interface {
	Score(ctx context.Context, req *payment.Request, actx *risk.AssessmentContext) (bool, error)
}

// MetricsCollector receives assessment telemetry. A nil collector disables it.
type MetricsCollector interface {
	RecordAssessment(businessType, level string, elapsed time.Duration)
	RecordPolicyRejection(businessType, check string)
	RecordRuleFault(rule string)
	RecordAuditWriteFailure()
}

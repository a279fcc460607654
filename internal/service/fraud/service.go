package fraud

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/helixpay/payment-risk-backend/internal/domain/errors"
	"github.com/helixpay/payment-risk-backend/internal/domain/payment"
	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
	"github.com/helixpay/payment-risk-backend/internal/infrastructure/config"
)

const tracerName = "helixpay.risk"

// service implements the Service interface
type service struct {
	policies *PolicyRegistry
	gatherer *ContextGatherer
	registry *RuleRegistry
	engine   *RuleEngine
	decider  *DecisionMaker
	audit    AuditSink
	logger   *zap.Logger
	metrics  MetricsCollector
	validate *validator.Validate
	tracer   trace.Tracer

	auditTimeout time.Duration
	now          func() time.Time
}

// NewService wires the full assessment pipeline: policy gate, context
// gatherer, rule engine with the default rule set, and decision maker.
// The audit sink and metrics collector may be nil; the ML scorer backs the
// disabled ml_risk_score rule and may also be nil.
func NewService(
	store Store,
	audit AuditSink,
	cfg config.RiskConfig,
	logger *zap.Logger,
	metrics MetricsCollector,
	mlScorer MLScorer,
) (Service, error) {
	if store == nil {
		return nil, errors.NewValidationError("INVALID_STORE", "store cannot be nil")
	}
	if logger == nil {
		return nil, errors.NewValidationError("INVALID_LOGGER", "logger cannot be nil")
	}

	registry := NewRuleRegistry()
	for _, rule := range DefaultRules(store, cfg, mlScorer) {
		if err := registry.Register(rule); err != nil {
			return nil, err
		}
	}

	auditTimeout := cfg.AuditTimeout
	if auditTimeout <= 0 {
		auditTimeout = 5 * time.Second
	}

	return &service{
		policies: NewPolicyRegistry(store, cfg, logger),
		gatherer: NewContextGatherer(store, logger),
		registry: registry,
		engine:   NewRuleEngine(logger, metrics),
		decider: NewDecisionMaker(risk.Thresholds{
			Medium:   cfg.Thresholds.Medium,
			High:     cfg.Thresholds.High,
			Critical: cfg.Thresholds.Critical,
		}),
		audit:        audit,
		logger:       logger,
		metrics:      metrics,
		validate:     validator.New(),
		tracer:       otel.Tracer(tracerName),
		auditTimeout: auditTimeout,
		now:          time.Now,
	}, nil
}

// Assess gates one payment request. Policy violations reject before any
// scoring; otherwise the request is scored against a snapshot of the current
// rule set and the decision comes back on the FraudScore.
func (s *service) Assess(ctx context.Context, req *payment.Request) (*risk.FraudScore, error) {
	if req == nil {
		return nil, errors.NewValidationError("INVALID_REQUEST", "payment request cannot be nil")
	}

	start := s.now()

	ctx, span := s.tracer.Start(ctx, "risk.assess",
		trace.WithAttributes(
			attribute.String("payment.business_type", req.BusinessType.String()),
			attribute.String("payment.method", req.Method.String()),
			attribute.String("payment.device_type", req.DeviceType.String()),
		))
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewValidationError("INVALID_REQUEST", "malformed payment request").WithCause(err)
	}

	if err := s.policies.Validate(ctx, req); err != nil {
		if errors.IsPolicyViolation(err) {
			span.SetAttributes(attribute.Bool("risk.policy_rejected", true))
			if s.metrics != nil {
				s.metrics.RecordPolicyRejection(req.BusinessType.String(), policyCheckName(err))
			}
			s.logger.Info("payment rejected by policy",
				zap.String("device_id", req.DeviceID),
				zap.String("business_type", req.BusinessType.String()),
				zap.String("reason", err.Error()))
		}
		return nil, err
	}

	actx := s.gatherer.Gather(ctx, req.DeviceID, req.CustomerEmail)

	snapshot := s.registry.Snapshot()
	outcomes := s.engine.Evaluate(ctx, req, actx, snapshot)

	score := risk.SumWeights(outcomes)
	reasons := triggeredReasons(outcomes)
	decision := s.decider.Decide(score)

	result := &risk.FraudScore{
		ID:                   uuid.New(),
		Score:                score,
		Level:                decision.Level,
		Reasons:              reasons,
		RuleOutcomes:         outcomes,
		RequiresManualReview: decision.RequiresManualReview,
		ShouldBlock:          decision.ShouldBlock,
		AssessedAt:           s.now(),
	}

	span.SetAttributes(
		attribute.Int("risk.score", score),
		attribute.String("risk.level", string(decision.Level)),
		attribute.Bool("risk.should_block", decision.ShouldBlock),
	)

	if s.metrics != nil {
		s.metrics.RecordAssessment(req.BusinessType.String(), string(decision.Level), s.now().Sub(start))
	}

	if decision.ShouldBlock {
		s.logger.Warn("payment blocked by risk score",
			zap.String("device_id", req.DeviceID),
			zap.Int("score", score),
			zap.Strings("reasons", reasons))
	}

	s.writeAudit(req, result)

	return result, nil
}

// writeAudit persists the assessment record without blocking the caller.
// Failures are logged and dropped, never retried.
func (s *service) writeAudit(req *payment.Request, result *risk.FraudScore) {
	if s.audit == nil {
		return
	}

	record := &risk.AssessmentRecord{
		ID:           uuid.New(),
		RequestID:    req.ID,
		DeviceID:     req.DeviceID,
		BusinessType: req.BusinessType.String(),
		Method:       req.Method.String(),
		Amount:       req.Amount.Amount().String(),
		Currency:     req.Amount.Currency(),
		Score:        result.Score,
		Level:        result.Level,
		Reasons:      result.Reasons,
		RuleOutcomes: result.RuleOutcomes,
		ShouldBlock:  result.ShouldBlock,
		ManualReview: result.RequiresManualReview,
		CreatedAt:    result.AssessedAt,
	}

	go func() {
		auditCtx, cancel := context.WithTimeout(context.Background(), s.auditTimeout)
		defer cancel()

		if err := s.audit.Record(auditCtx, record); err != nil {
			s.logger.Error("audit write failed, dropping record",
				zap.String("request_id", record.RequestID.String()),
				zap.Error(err))
			if s.metrics != nil {
				s.metrics.RecordAuditWriteFailure()
			}
		}
	}()
}

// Rule administration.

func (s *service) EnableRule(name string) error {
	return s.registry.Enable(name)
}

func (s *service) DisableRule(name string) error {
	return s.registry.Disable(name)
}

func (s *service) UpdateRuleWeight(name string, weight int) error {
	return s.registry.SetWeight(name, weight)
}

func (s *service) AddRule(rule *Rule) error {
	return s.registry.Register(rule)
}

func (s *service) RemoveRule(name string) error {
	return s.registry.Remove(name)
}

func (s *service) RuleStatus() []RuleStatus {
	return s.registry.Status()
}

// Policy administration.

func (s *service) GetPolicy(businessType payment.BusinessType) (BusinessPolicy, error) {
	return s.policies.GetPolicy(businessType)
}

func (s *service) UpdatePolicy(businessType payment.BusinessType, patch PolicyPatch) error {
	return s.policies.UpdatePolicy(businessType, patch)
}

// triggeredReasons collects descriptions of triggered rules in registration
// order.
func triggeredReasons(outcomes []risk.RuleOutcome) []string {
	reasons := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Triggered && !o.Failed {
			reasons = append(reasons, o.Description)
		}
	}
	return reasons
}

// policyCheckName extracts the failed check label from a policy violation.
func policyCheckName(err error) string {
	var appErr *errors.AppError
	if e, ok := err.(*errors.AppError); ok {
		appErr = e
	}
	if appErr == nil || appErr.Details == nil {
		return "unknown"
	}
	if check, ok := appErr.Details["check"].(string); ok {
		return check
	}
	return "unknown"
}

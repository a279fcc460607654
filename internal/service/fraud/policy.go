package fraud

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/helixpay/payment-risk-backend/internal/domain/errors"
	"github.com/helixpay/payment-risk-backend/internal/domain/payment"
	"github.com/helixpay/payment-risk-backend/internal/infrastructure/config"
)

// secondaryCheck is a business-type-specific policy rule. It runs after the
// generic bounds checks and may consult the store.
type secondaryCheck func(ctx context.Context, req *payment.Request, policy BusinessPolicy) error

// PolicyRegistry is the first gate on every payment: per-business-type bounds
// plus a strategy map of specialized checks. Checks run in fixed precedence
// and short-circuit on the first failure.
type PolicyRegistry struct {
	store  Store
	logger *zap.Logger
	cfg    config.RiskConfig
	now    func() time.Time

	mu        sync.RWMutex
	policies  map[payment.BusinessType]BusinessPolicy
	secondary map[payment.BusinessType]secondaryCheck
}

// NewPolicyRegistry builds the registry with the fixed default policy table.
func NewPolicyRegistry(store Store, cfg config.RiskConfig, logger *zap.Logger) *PolicyRegistry {
	r := &PolicyRegistry{
		store:    store,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		policies: defaultPolicies(),
	}

	r.secondary = map[payment.BusinessType]secondaryCheck{
		payment.BusinessTypeRetail:       r.checkRetail,
		payment.BusinessTypeRestaurant:   r.checkRestaurant,
		payment.BusinessTypeService:      r.checkService,
		payment.BusinessTypeSubscription: r.checkSubscription,
		payment.BusinessTypeGaming:       r.checkGaming,
		payment.BusinessTypeIoT:          r.checkIoT,
	}

	return r
}

// Validate runs the policy checks in precedence order: amount bounds,
// currency, payment method, device capability, then the business-specific
// rule. The first failure rejects the payment.
func (r *PolicyRegistry) Validate(ctx context.Context, req *payment.Request) error {
	r.mu.RLock()
	policy, ok := r.policies[req.BusinessType]
	if ok {
		policy = policy.clone()
	}
	r.mu.RUnlock()

	if !ok {
		// A business type in use with no policy is a deployment defect, not a
		// customer input problem.
		return errors.NewConfigurationError(
			fmt.Sprintf("no policy registered for business type %q", req.BusinessType))
	}

	amount := req.Amount.Amount()

	if amount.LessThan(policy.MinAmount) {
		return errors.NewPolicyViolationError("amount",
			fmt.Sprintf("amount below minimum $%s", policy.MinAmount.StringFixed(2)))
	}
	if amount.GreaterThan(policy.MaxAmount) {
		return errors.NewPolicyViolationError("amount",
			fmt.Sprintf("amount above maximum $%s", policy.MaxAmount.StringFixed(2)))
	}

	if !policy.AllowedCurrencies[req.Amount.Currency()] {
		return errors.NewPolicyViolationError("currency",
			fmt.Sprintf("currency %s not allowed for %s", req.Amount.Currency(), req.BusinessType))
	}

	if !policy.AllowedMethods[req.Method] {
		return errors.NewPolicyViolationError("payment_method",
			fmt.Sprintf("payment method %s not allowed for %s", req.Method, req.BusinessType))
	}

	if !req.DeviceType.Supports(req.Method) {
		return errors.NewPolicyViolationError("device_capability",
			fmt.Sprintf("device type %s does not support %s payments", req.DeviceType, req.Method))
	}

	if check, ok := r.secondary[req.BusinessType]; ok {
		if err := check(ctx, req, policy); err != nil {
			return err
		}
	}

	return nil
}

// GetPolicy returns a copy of the policy for the business type.
func (r *PolicyRegistry) GetPolicy(businessType payment.BusinessType) (BusinessPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	policy, ok := r.policies[businessType]
	if !ok {
		return BusinessPolicy{}, errors.NewNotFoundError(
			fmt.Sprintf("policy for business type %q", businessType))
	}
	return policy.clone(), nil
}

// UpdatePolicy merges the patch into the existing policy. The patch itself is
// not validated; that is the administrative caller's responsibility.
func (r *PolicyRegistry) UpdatePolicy(businessType payment.BusinessType, patch PolicyPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	policy, ok := r.policies[businessType]
	if !ok {
		return errors.NewNotFoundError(
			fmt.Sprintf("policy for business type %q", businessType))
	}

	if patch.MinAmount != nil {
		policy.MinAmount = *patch.MinAmount
	}
	if patch.MaxAmount != nil {
		policy.MaxAmount = *patch.MaxAmount
	}
	if patch.AllowedCurrencies != nil {
		policy.AllowedCurrencies = *patch.AllowedCurrencies
	}
	if patch.AllowedMethods != nil {
		policy.AllowedMethods = *patch.AllowedMethods
	}
	if patch.RequiresVerification != nil {
		policy.RequiresVerification = *patch.RequiresVerification
	}
	if patch.FraudCheckLevel != nil {
		policy.FraudCheckLevel = *patch.FraudCheckLevel
	}

	r.policies[businessType] = policy
	return nil
}

// Business-specific secondary checks. Store reads degrade to conservative
// defaults on error; the failure is logged, never surfaced.

func (r *PolicyRegistry) checkRetail(ctx context.Context, req *payment.Request, _ BusinessPolicy) error {
	if req.Amount.Amount().GreaterThan(retailEmailRequiredAbove) && !req.HasCustomerEmail() {
		return errors.NewPolicyViolationError("retail",
			fmt.Sprintf("purchases above $%s require a customer email", retailEmailRequiredAbove.StringFixed(2)))
	}

	count := r.countOrZero(ctx, req.DeviceID, time.Hour)
	if count > retailHourlyDeviceTxnLimit {
		return errors.NewPolicyViolationError("retail",
			fmt.Sprintf("device exceeded %d transactions in the last hour", retailHourlyDeviceTxnLimit))
	}

	return nil
}

func (r *PolicyRegistry) checkRestaurant(_ context.Context, req *payment.Request, _ BusinessPolicy) error {
	hour := r.now().Hour()
	outsideHours := hour < restaurantOpenHour || hour >= restaurantCloseHour
	if outsideHours && req.Amount.Amount().GreaterThan(restaurantLateNightAmount) {
		r.logger.Warn("large restaurant payment outside operating hours",
			zap.String("device_id", req.DeviceID),
			zap.String("amount", req.Amount.String()),
			zap.Int("hour", hour))
	}

	if tip := req.MetadataValue(MetaTipAmount); tip != "" {
		tipAmount, err := decimal.NewFromString(tip)
		if err != nil {
			return errors.NewPolicyViolationError("restaurant",
				fmt.Sprintf("unparseable tip amount %q", tip))
		}
		maxTip := req.Amount.Amount().Mul(restaurantTipMaxFraction)
		if tipAmount.GreaterThan(maxTip) {
			return errors.NewPolicyViolationError("restaurant",
				"tip exceeds 50% of the payment amount")
		}
	}

	return nil
}

func (r *PolicyRegistry) checkService(ctx context.Context, req *payment.Request, _ BusinessPolicy) error {
	amount := req.Amount.Amount()

	if amount.GreaterThan(serviceEmailRequiredAbove) && !req.HasCustomerEmail() {
		return errors.NewPolicyViolationError("service",
			fmt.Sprintf("service payments above $%s require a customer email", serviceEmailRequiredAbove.StringFixed(2)))
	}

	if amount.GreaterThan(serviceFirstTimeCap) && req.HasCustomerEmail() {
		history, err := r.store.GetCustomerAggregate(ctx, req.CustomerEmail.String())
		if err != nil {
			// Unknown history counts as first-time: the cap stays in force.
			r.logReadFault("customer_aggregate", req.DeviceID, err)
			history.Count = 0
		}
		if history.Count == 0 {
			return errors.NewPolicyViolationError("service",
				fmt.Sprintf("first-time customers are capped at $%s", serviceFirstTimeCap.StringFixed(2)))
		}
	}

	return nil
}

func (r *PolicyRegistry) checkSubscription(ctx context.Context, req *payment.Request, _ BusinessPolicy) error {
	if !req.HasCustomerEmail() {
		return errors.NewPolicyViolationError("subscription",
			"subscription payments require a customer email")
	}

	if req.MetadataFlag(MetaInitial) {
		merchantID := req.MetadataValue(MetaMerchantID)
		active, err := r.store.HasActiveSubscription(ctx, merchantID, req.CustomerEmail.String())
		if err != nil {
			r.logReadFault("active_subscription", req.DeviceID, err)
			active = false
		}
		if active {
			return errors.NewPolicyViolationError("subscription",
				"an active subscription already exists for this merchant and email")
		}
	}

	return nil
}

func (r *PolicyRegistry) checkGaming(ctx context.Context, req *payment.Request, _ BusinessPolicy) error {
	spend, err := r.store.GetTodaySpend(ctx, req.DeviceID)
	if err != nil {
		r.logReadFault("today_spend", req.DeviceID, err)
		spend = decimal.Zero
	}

	limit := decimal.NewFromFloat(r.cfg.GamingDailyLimit)
	if spend.Add(req.Amount.Amount()).GreaterThan(limit) {
		return errors.NewPolicyViolationError("gaming",
			fmt.Sprintf("device daily gaming limit of $%s exceeded", limit.StringFixed(2)))
	}

	if req.MetadataFlag(MetaAgeRestricted) && !req.MetadataFlag(MetaAgeVerified) {
		return errors.NewPolicyViolationError("gaming",
			"age-restricted purchase without age verification")
	}

	return nil
}

func (r *PolicyRegistry) checkIoT(ctx context.Context, req *payment.Request, _ BusinessPolicy) error {
	if !req.MetadataFlag(MetaAutomated) {
		return errors.NewPolicyViolationError("iot",
			"iot purchases must be marked as automated")
	}

	authorized, err := r.store.GetDeviceAuthorizationFlag(ctx, req.DeviceID)
	if err != nil {
		// Authorization cannot be confirmed: reject.
		r.logReadFault("device_authorization", req.DeviceID, err)
		authorized = false
	}
	if !authorized {
		return errors.NewPolicyViolationError("iot",
			"device is not authorized for automated payments")
	}

	spend, err := r.store.GetMonthlySpend(ctx, req.DeviceID)
	if err != nil {
		r.logReadFault("monthly_spend", req.DeviceID, err)
		spend = decimal.Zero
	}

	limit := decimal.NewFromFloat(r.cfg.IoTMonthlyLimit)
	if spend.Add(req.Amount.Amount()).GreaterThan(limit) {
		return errors.NewPolicyViolationError("iot",
			fmt.Sprintf("device monthly iot limit of $%s exceeded", limit.StringFixed(2)))
	}

	return nil
}

func (r *PolicyRegistry) countOrZero(ctx context.Context, deviceID string, window time.Duration) int {
	count, err := r.store.CountRecentTransactions(ctx, deviceID, window)
	if err != nil {
		r.logReadFault("recent_transactions", deviceID, err)
		return 0
	}
	return count
}

func (r *PolicyRegistry) logReadFault(read, deviceID string, err error) {
	r.logger.Warn("policy check store read failed, using default",
		zap.String("read", read),
		zap.String("device_id", deviceID),
		zap.Error(err))
}

package fraud

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/helixpay/payment-risk-backend/internal/domain/payment"
	"github.com/helixpay/payment-risk-backend/internal/domain/values"
)

// Default rule names.
const (
	RuleVelocity          = "velocity"
	RuleAmountAnomaly     = "amount_anomaly"
	RuleDeviceFingerprint = "device_fingerprint"
	RuleLocationAnomaly   = "location_anomaly"
	RuleTimePattern       = "time_pattern"
	RuleBlacklist         = "blacklist"
	RuleBusinessLogic     = "business_logic"
	RuleMLRiskScore       = "ml_risk_score"
)

// Default rule weights.
const (
	WeightVelocity          = 25
	WeightAmountAnomaly     = 20
	WeightDeviceFingerprint = 15
	WeightLocationAnomaly   = 20
	WeightTimePattern       = 10
	WeightBlacklist         = 50
	WeightBusinessLogic     = 15
	WeightMLRiskScore       = 30
)

// Request metadata keys the policy gate and rules interpret.
const (
	MetaTipAmount     = "tip_amount"
	MetaInitial       = "initial"
	MetaAgeRestricted = "age_restricted"
	MetaAgeVerified   = "age_verified"
	MetaAutomated     = "automated"
	MetaMerchantID    = "merchant_id"
	MetaLatitude      = "latitude"
	MetaLongitude     = "longitude"
)

// Velocity rule tuning.
const (
	// velocityShortWindowMax is the 5-minute burst ceiling; more than this
	// many transactions triggers the velocity rule regardless of type.
	velocityShortWindowMax = 3
	// defaultVelocityThreshold applies to business types without an entry in
	// velocityThresholds.
	defaultVelocityThreshold = 5
	// amountAnomalyLookbackDays bounds the business-type average query.
	amountAnomalyLookbackDays = 30
	// newDeviceWindow: a device registered more recently than this is treated
	// as a fingerprint risk.
	newDeviceWindow = 5 * time.Minute
	// signupAttemptWindow bounds the subscription signup-attempt count.
	signupAttemptWindow = time.Hour
	// signupAttemptMax triggers business_logic for subscriptions when exceeded.
	signupAttemptMax = 3
)

// velocityThresholds is the per-business-type hourly transaction ceiling for
// the velocity rule.
var velocityThresholds = map[payment.BusinessType]int{
	payment.BusinessTypeRetail:       10,
	payment.BusinessTypeRestaurant:   5,
	payment.BusinessTypeService:      3,
	payment.BusinessTypeSubscription: 2,
	payment.BusinessTypeGaming:       15,
	payment.BusinessTypeIoT:          20,
}

// velocityThresholdFor returns the hourly ceiling for a business type.
func velocityThresholdFor(businessType payment.BusinessType) int {
	if v, ok := velocityThresholds[businessType]; ok {
		return v
	}
	return defaultVelocityThreshold
}

// Secondary policy check constants.
var (
	retailEmailRequiredAbove   = decimal.NewFromInt(5000)
	retailHourlyDeviceTxnLimit = 10
	restaurantLateNightAmount  = decimal.NewFromInt(200)
	restaurantTipMaxFraction   = decimal.NewFromFloat(0.5)
	serviceEmailRequiredAbove  = decimal.NewFromInt(500)
	serviceFirstTimeCap        = decimal.NewFromInt(1000)
)

// Restaurant operating hours; payments outside [open, close) with a large
// amount are logged, never rejected.
const (
	restaurantOpenHour  = 6
	restaurantCloseHour = 23
)

// defaultPolicies is the fixed per-business-type policy table loaded at
// process start.
func defaultPolicies() map[payment.BusinessType]BusinessPolicy {
	usdEurGbp := func() map[string]bool {
		return map[string]bool{values.USD: true, values.EUR: true, values.GBP: true}
	}

	return map[payment.BusinessType]BusinessPolicy{
		payment.BusinessTypeRetail: {
			BusinessType:      payment.BusinessTypeRetail,
			MinAmount:         decimal.NewFromFloat(0.50),
			MaxAmount:         decimal.NewFromInt(10000),
			AllowedCurrencies: map[string]bool{values.USD: true, values.EUR: true, values.GBP: true, values.CAD: true},
			AllowedMethods: map[payment.PaymentMethod]bool{
				payment.MethodCard:         true,
				payment.MethodMobileWallet: true,
				payment.MethodNFC:          true,
				payment.MethodQR:           true,
				payment.MethodBiometric:    true,
			},
			RequiresVerification: false,
			FraudCheckLevel:      FraudCheckMedium,
		},
		payment.BusinessTypeRestaurant: {
			BusinessType:      payment.BusinessTypeRestaurant,
			MinAmount:         decimal.NewFromInt(1),
			MaxAmount:         decimal.NewFromInt(2000),
			AllowedCurrencies: usdEurGbp(),
			AllowedMethods: map[payment.PaymentMethod]bool{
				payment.MethodCard:         true,
				payment.MethodMobileWallet: true,
				payment.MethodNFC:          true,
				payment.MethodQR:           true,
			},
			RequiresVerification: false,
			FraudCheckLevel:      FraudCheckLow,
		},
		payment.BusinessTypeService: {
			BusinessType:      payment.BusinessTypeService,
			MinAmount:         decimal.NewFromInt(5),
			MaxAmount:         decimal.NewFromInt(25000),
			AllowedCurrencies: usdEurGbp(),
			AllowedMethods: map[payment.PaymentMethod]bool{
				payment.MethodCard:         true,
				payment.MethodMobileWallet: true,
			},
			RequiresVerification: true,
			FraudCheckLevel:      FraudCheckMedium,
		},
		payment.BusinessTypeSubscription: {
			BusinessType:      payment.BusinessTypeSubscription,
			MinAmount:         decimal.NewFromInt(1),
			MaxAmount:         decimal.NewFromInt(500),
			AllowedCurrencies: map[string]bool{values.USD: true, values.EUR: true, values.GBP: true, values.AUD: true},
			AllowedMethods: map[payment.PaymentMethod]bool{
				payment.MethodCard:         true,
				payment.MethodMobileWallet: true,
			},
			RequiresVerification: true,
			FraudCheckLevel:      FraudCheckHigh,
		},
		payment.BusinessTypeGaming: {
			BusinessType:      payment.BusinessTypeGaming,
			MinAmount:         decimal.NewFromFloat(0.99),
			MaxAmount:         decimal.NewFromInt(1000),
			AllowedCurrencies: usdEurGbp(),
			AllowedMethods: map[payment.PaymentMethod]bool{
				payment.MethodCard:         true,
				payment.MethodMobileWallet: true,
				payment.MethodBiometric:    true,
			},
			RequiresVerification: true,
			FraudCheckLevel:      FraudCheckHigh,
		},
		payment.BusinessTypeIoT: {
			BusinessType:      payment.BusinessTypeIoT,
			MinAmount:         decimal.NewFromFloat(0.01),
			MaxAmount:         decimal.NewFromInt(100),
			AllowedCurrencies: map[string]bool{values.USD: true, values.EUR: true},
			AllowedMethods: map[payment.PaymentMethod]bool{
				payment.MethodCard: true,
			},
			RequiresVerification: false,
			FraudCheckLevel:      FraudCheckHigh,
		},
	}
}

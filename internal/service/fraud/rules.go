package fraud

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/helixpay/payment-risk-backend/internal/domain/payment"
	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
	"github.com/helixpay/payment-risk-backend/internal/infrastructure/config"
)

// ruleSet builds the default rules. It holds the collaborators the
// predicates close over.
type ruleSet struct {
	store  Store
	cfg    config.RiskConfig
	ml     MLScorer
	now    func() time.Time
}

// DefaultRules returns the platform's standard rule set in its canonical
// registration order. The mlScorer may be nil; the ml_risk_score rule ships
// disabled either way.
func DefaultRules(store Store, cfg config.RiskConfig, mlScorer MLScorer) []*Rule {
	rs := &ruleSet{
		store: store,
		cfg:   cfg,
		ml:    mlScorer,
		now:   time.Now,
	}
	return rs.build()
}

func (rs *ruleSet) build() []*Rule {
	return []*Rule{
		{
			Name:        RuleVelocity,
			Description: "transaction velocity exceeds the business-type threshold",
			Weight:      WeightVelocity,
			Enabled:     true,
			Predicate:   rs.velocity,
		},
		{
			Name:        RuleAmountAnomaly,
			Description: "amount deviates sharply from the device's history",
			Weight:      WeightAmountAnomaly,
			Enabled:     true,
			Predicate:   rs.amountAnomaly,
		},
		{
			Name:        RuleDeviceFingerprint,
			Description: "device is unknown, incomplete, or just registered",
			Weight:      WeightDeviceFingerprint,
			Enabled:     true,
			Predicate:   rs.deviceFingerprint,
		},
		{
			Name:        RuleLocationAnomaly,
			Description: "implausible travel distance since the last transaction",
			Weight:      WeightLocationAnomaly,
			Enabled:     true,
			Predicate:   rs.locationAnomaly,
		},
		{
			Name:        RuleTimePattern,
			Description: "in-person purchase during quiet hours",
			Weight:      WeightTimePattern,
			Enabled:     true,
			Predicate:   rs.timePattern,
		},
		{
			Name:        RuleBlacklist,
			Description: "device, email, or source IP is blacklisted",
			Weight:      WeightBlacklist,
			Enabled:     true,
			Predicate:   rs.blacklist,
		},
		{
			Name:        RuleBusinessLogic,
			Description: "business-type-specific risk pattern detected",
			Weight:      WeightBusinessLogic,
			Enabled:     true,
			Predicate:   rs.businessLogic,
		},
		{
			Name:        RuleMLRiskScore,
			Description: "external model flagged the transaction",
			Weight:      WeightMLRiskScore,
			Enabled:     false,
			Predicate:   rs.mlRiskScore,
		},
	}
}

func (rs *ruleSet) velocity(_ context.Context, req *payment.Request, actx *risk.AssessmentContext) (bool, error) {
	if actx.RecentCount(risk.WindowHour) >= velocityThresholdFor(req.BusinessType) {
		return true, nil
	}
	return actx.RecentCount(risk.WindowShort) > velocityShortWindowMax, nil
}

func (rs *ruleSet) amountAnomaly(ctx context.Context, req *payment.Request, actx *risk.AssessmentContext) (bool, error) {
	amount := req.Amount.Amount()

	deviceAvg := actx.Device.AvgAmount
	if actx.Device.Count == 0 || deviceAvg.IsZero() {
		// No device history: compare against the business-type average.
		businessAvg, err := rs.store.GetBusinessTypeAverageAmount(ctx, req.BusinessType, amountAnomalyLookbackDays)
		if err != nil {
			return false, fmt.Errorf("business average lookup: %w", err)
		}
		if businessAvg.IsZero() {
			return false, nil
		}
		return amount.GreaterThan(businessAvg.Mul(decimal.NewFromInt(5))), nil
	}

	deviation := amount.Sub(deviceAvg).Abs().Div(deviceAvg)
	return deviation.GreaterThan(decimal.NewFromInt(3)), nil
}

func (rs *ruleSet) deviceFingerprint(_ context.Context, _ *payment.Request, actx *risk.AssessmentContext) (bool, error) {
	if !actx.Device.Known {
		return true, nil
	}
	if len(actx.Device.Capabilities) == 0 {
		return true, nil
	}
	if actx.Device.FirstSeen != nil && rs.now().Sub(*actx.Device.FirstSeen) < newDeviceWindow {
		return true, nil
	}
	return false, nil
}

func (rs *ruleSet) locationAnomaly(_ context.Context, req *payment.Request, actx *risk.AssessmentContext) (bool, error) {
	last := actx.Device.LastLocation
	lastTime := actx.Device.LastTransactionTime
	if last == nil || lastTime == nil {
		return false, nil
	}

	current, ok := requestLocation(req)
	if !ok {
		return false, nil
	}

	distance := risk.HaversineKm(*last, current)
	elapsed := rs.now().Sub(*lastTime)

	return distance > rs.cfg.LocationMaxDistanceKm && elapsed < rs.cfg.LocationMaxElapsed, nil
}

func (rs *ruleSet) timePattern(_ context.Context, req *payment.Request, _ *risk.AssessmentContext) (bool, error) {
	if req.BusinessType != payment.BusinessTypeRetail && req.BusinessType != payment.BusinessTypeRestaurant {
		return false, nil
	}
	hour := rs.now().Hour()
	return hour >= rs.cfg.QuietHoursStart && hour < rs.cfg.QuietHoursEnd, nil
}

func (rs *ruleSet) blacklist(ctx context.Context, req *payment.Request, _ *risk.AssessmentContext) (bool, error) {
	lookups := []struct {
		kind  BlacklistKind
		value string
	}{
		{BlacklistDevice, req.DeviceID},
		{BlacklistEmail, req.CustomerEmail.String()},
		{BlacklistIP, req.SourceIP},
	}

	var firstErr error
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		matched, err := rs.store.IsBlacklisted(ctx, l.kind, l.value)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s blacklist lookup: %w", l.kind, err)
			}
			continue
		}
		if matched {
			return true, nil
		}
	}

	return false, firstErr
}

func (rs *ruleSet) businessLogic(ctx context.Context, req *payment.Request, _ *risk.AssessmentContext) (bool, error) {
	switch req.BusinessType {
	case payment.BusinessTypeGaming:
		spend, err := rs.store.GetTodaySpend(ctx, req.DeviceID)
		if err != nil {
			return false, fmt.Errorf("today spend lookup: %w", err)
		}
		limit := decimal.NewFromFloat(rs.cfg.GamingRuleDailyLimit)
		return spend.Add(req.Amount.Amount()).GreaterThan(limit), nil

	case payment.BusinessTypeSubscription:
		if req.CustomerEmail.IsEmpty() {
			return false, nil
		}
		attempts, err := rs.store.CountSignupAttempts(ctx, req.CustomerEmail.String(), signupAttemptWindow)
		if err != nil {
			return false, fmt.Errorf("signup attempts lookup: %w", err)
		}
		return attempts > signupAttemptMax, nil

	case payment.BusinessTypeIoT:
		if !req.MetadataFlag(MetaAutomated) {
			return true, nil
		}
		spend, err := rs.store.GetMonthlySpend(ctx, req.DeviceID)
		if err != nil {
			return false, fmt.Errorf("monthly spend lookup: %w", err)
		}
		return spend.GreaterThan(decimal.NewFromFloat(rs.cfg.IoTRuleMonthlyLimit)), nil
	}

	return false, nil
}

func (rs *ruleSet) mlRiskScore(ctx context.Context, req *payment.Request, actx *risk.AssessmentContext) (bool, error) {
	if rs.ml == nil {
		return false, nil
	}
	return rs.ml.Score(ctx, req, actx)
}

// requestLocation parses the coordinates the edge attached to the request.
func requestLocation(req *payment.Request) (risk.GeoPoint, bool) {
	latStr := req.MetadataValue(MetaLatitude)
	lonStr := req.MetadataValue(MetaLongitude)
	if latStr == "" || lonStr == "" {
		return risk.GeoPoint{}, false
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return risk.GeoPoint{}, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return risk.GeoPoint{}, false
	}

	return risk.GeoPoint{Latitude: lat, Longitude: lon}, true
}

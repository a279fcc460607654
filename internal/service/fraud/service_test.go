package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixpay/payment-risk-backend/internal/domain/errors"
	"github.com/helixpay/payment-risk-backend/internal/domain/payment"
	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
)

func newTestService(t *testing.T, store *mockStore, audit AuditSink, metrics MetricsCollector) Service {
	t.Helper()
	svc, err := NewService(store, audit, testRiskConfig(), testLogger(), metrics, nil)
	require.NoError(t, err)
	return svc
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(nil, nil, testRiskConfig(), testLogger(), nil, nil)
	assert.Error(t, err)

	_, err = NewService(&mockStore{}, nil, testRiskConfig(), nil, nil, nil)
	assert.Error(t, err)
}

func TestAssessNilRequest(t *testing.T) {
	store := &mockStore{}
	applyStoreDefaults(store)
	svc := newTestService(t, store, nil, nil)

	_, err := svc.Assess(context.Background(), nil)
	assert.Error(t, err)
}

func TestAssessMalformedRequest(t *testing.T) {
	store := &mockStore{}
	applyStoreDefaults(store)
	svc := newTestService(t, store, nil, nil)

	req := newServiceRequest(t, 50)
	req.DeviceID = ""

	_, err := svc.Assess(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeValidation, errors.GetType(err))

	bad := newServiceRequest(t, 50)
	bad.SourceIP = "not-an-ip"
	_, err = svc.Assess(context.Background(), bad)
	assert.Error(t, err)
}

func TestAssessCleanPayment(t *testing.T) {
	store := &mockStore{}
	applyStoreDefaults(store)
	audit := newMockAuditSink()
	svc := newTestService(t, store, audit, nil)

	req := newServiceRequest(t, 50)
	score, err := svc.Assess(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0, score.Score)
	assert.Equal(t, risk.LevelLow, score.Level)
	assert.False(t, score.RequiresManualReview)
	assert.False(t, score.ShouldBlock)
	assert.Empty(t, score.Reasons)
	assert.Len(t, score.RuleOutcomes, 7, "every enabled default rule reports an outcome")
	assert.False(t, score.AssessedAt.IsZero())

	require.True(t, audit.waitForWrite(2*time.Second), "audit record never landed")
	record := audit.last()
	assert.Equal(t, req.ID, record.RequestID)
	assert.Equal(t, "device-001", record.DeviceID)
	assert.Equal(t, 0, record.Score)
}

func TestAssessRetailScenarioPasses(t *testing.T) {
	store := &mockStore{}
	applyStoreDefaults(store)
	svc := newTestService(t, store, nil, nil)

	// $50 retail card purchase on a smartphone sails through the policy gate.
	score, err := svc.Assess(context.Background(), newRetailRequest(t, 50))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score.Score, risk.ScoreMin)
	assert.LessOrEqual(t, score.Score, risk.ScoreMax)
}

func TestAssessPolicyRejection(t *testing.T) {
	store := &mockStore{}
	applyStoreDefaults(store)
	audit := newMockAuditSink()
	metrics := newCountingMetrics()
	svc := newTestService(t, store, audit, metrics)

	_, err := svc.Assess(context.Background(), newRetailRequest(t, 0.10))
	require.Error(t, err)
	assert.True(t, errors.IsPolicyViolation(err))
	assert.Contains(t, err.Error(), "amount below minimum $0.50")
	assert.Equal(t, 1, metrics.rejectionsFor("amount"))

	// Rejected payments are never scored and never audited.
	assert.False(t, audit.waitForWrite(100*time.Millisecond))
	assert.Zero(t, audit.count())
}

func TestAssessBlacklistAloneIsMedium(t *testing.T) {
	store := &mockStore{}
	store.On("IsBlacklisted", mock.Anything, BlacklistDevice, "device-001").Return(true, nil)
	applyStoreDefaults(store)
	svc := newTestService(t, store, nil, nil)

	score, err := svc.Assess(context.Background(), newServiceRequest(t, 50))
	require.NoError(t, err)

	assert.Equal(t, 50, score.Score)
	assert.Equal(t, risk.LevelMedium, score.Level)
	assert.False(t, score.RequiresManualReview)
	assert.False(t, score.ShouldBlock)
	require.Len(t, score.Reasons, 1)
	assert.Contains(t, score.Reasons[0], "blacklisted")
}

func TestAssessHighScoreRequiresReview(t *testing.T) {
	store := &mockStore{}
	store.On("IsBlacklisted", mock.Anything, BlacklistDevice, "device-001").Return(true, nil)
	// Device averages $10; a $50 payment is a 400% deviation.
	firstSeen := time.Now().Add(-90 * 24 * time.Hour)
	store.On("GetDeviceAggregate", mock.Anything, "device-001").Return(risk.DeviceHistory{
		Known:        true,
		Count:        40,
		AvgAmount:    decimal.NewFromInt(10),
		FirstSeen:    &firstSeen,
		Capabilities: []string{"card", "nfc"},
	}, nil)
	applyStoreDefaults(store)
	svc := newTestService(t, store, nil, nil)

	score, err := svc.Assess(context.Background(), newServiceRequest(t, 50))
	require.NoError(t, err)

	assert.Equal(t, 70, score.Score, "blacklist 50 + amount_anomaly 20")
	assert.Equal(t, risk.LevelHigh, score.Level)
	assert.True(t, score.RequiresManualReview)
	assert.False(t, score.ShouldBlock)
}

func TestAssessCriticalScoreBlocks(t *testing.T) {
	store := &mockStore{}
	store.On("IsBlacklisted", mock.Anything, BlacklistDevice, "device-001").Return(true, nil)
	firstSeen := time.Now().Add(-90 * 24 * time.Hour)
	store.On("GetDeviceAggregate", mock.Anything, "device-001").Return(risk.DeviceHistory{
		Known:        true,
		Count:        40,
		AvgAmount:    decimal.NewFromInt(10),
		FirstSeen:    &firstSeen,
		Capabilities: []string{"card", "nfc"},
	}, nil)
	// Three transactions in the hour meets the service velocity threshold.
	store.On("CountRecentTransactions", mock.Anything, "device-001", risk.WindowHour).Return(3, nil)
	applyStoreDefaults(store)
	svc := newTestService(t, store, nil, nil)

	score, err := svc.Assess(context.Background(), newServiceRequest(t, 50))
	require.NoError(t, err)

	assert.Equal(t, 95, score.Score, "blacklist 50 + amount_anomaly 20 + velocity 25")
	assert.Equal(t, risk.LevelCritical, score.Level)
	assert.True(t, score.RequiresManualReview)
	assert.True(t, score.ShouldBlock)
}

func TestAssessUnknownDeviceAnomaly(t *testing.T) {
	store := &mockStore{}
	store.On("GetDeviceAggregate", mock.Anything, "device-001").Return(risk.DeviceHistory{}, nil)
	store.On("GetBusinessTypeAverageAmount", mock.Anything, mock.Anything, mock.Anything).
		Return(decimal.NewFromInt(50), nil)
	applyStoreDefaults(store)
	svc := newTestService(t, store, nil, nil)

	// $300 is six times the business average; the device has no record.
	score, err := svc.Assess(context.Background(), newServiceRequest(t, 300))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, score.Score, WeightDeviceFingerprint+WeightAmountAnomaly)

	triggered := map[string]bool{}
	for _, o := range score.RuleOutcomes {
		if o.Triggered {
			triggered[o.Name] = true
		}
	}
	assert.True(t, triggered[RuleDeviceFingerprint])
	assert.True(t, triggered[RuleAmountAnomaly])
}

func TestAssessIdempotence(t *testing.T) {
	store := &mockStore{}
	store.On("IsBlacklisted", mock.Anything, BlacklistDevice, "device-001").Return(true, nil)
	applyStoreDefaults(store)
	svc := newTestService(t, store, nil, nil)

	req := newServiceRequest(t, 50)

	first, err := svc.Assess(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Assess(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Level, second.Level)
	assert.Equal(t, first.Reasons, second.Reasons)
	assert.NotEqual(t, first.ID, second.ID, "each assessment gets its own identity")
}

func TestAssessWithAllRulesDisabled(t *testing.T) {
	store := &mockStore{}
	store.On("IsBlacklisted", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	applyStoreDefaults(store)
	svc := newTestService(t, store, nil, nil)

	for _, status := range svc.RuleStatus() {
		require.NoError(t, svc.DisableRule(status.Name))
	}

	score, err := svc.Assess(context.Background(), newServiceRequest(t, 50))
	require.NoError(t, err)
	assert.Equal(t, 0, score.Score)
	assert.Equal(t, risk.LevelLow, score.Level)
	assert.Empty(t, score.RuleOutcomes)
}

func TestRuleAdministrationAffectsFutureAssessments(t *testing.T) {
	store := &mockStore{}
	store.On("IsBlacklisted", mock.Anything, BlacklistDevice, "device-001").Return(true, nil)
	applyStoreDefaults(store)
	svc := newTestService(t, store, nil, nil)

	require.NoError(t, svc.UpdateRuleWeight(RuleBlacklist, 60))

	score, err := svc.Assess(context.Background(), newServiceRequest(t, 50))
	require.NoError(t, err)
	assert.Equal(t, 60, score.Score)

	require.NoError(t, svc.DisableRule(RuleBlacklist))
	score, err = svc.Assess(context.Background(), newServiceRequest(t, 50))
	require.NoError(t, err)
	assert.Equal(t, 0, score.Score)
}

func TestMLRuleShipsDisabled(t *testing.T) {
	store := &mockStore{}
	applyStoreDefaults(store)
	svc := newTestService(t, store, nil, nil)

	for _, status := range svc.RuleStatus() {
		if status.Name == RuleMLRiskScore {
			assert.False(t, status.Enabled)
			assert.Equal(t, WeightMLRiskScore, status.Weight)
			return
		}
	}
	t.Fatal("ml_risk_score rule not registered")
}

func TestEnabledMLRuleScores(t *testing.T) {
	scorer := &mockMLScorer{}
	scorer.On("Score", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	store := &mockStore{}
	applyStoreDefaults(store)
	svc, err := NewService(store, nil, testRiskConfig(), testLogger(), nil, scorer)
	require.NoError(t, err)

	require.NoError(t, svc.EnableRule(RuleMLRiskScore))

	score, assessErr := svc.Assess(context.Background(), newServiceRequest(t, 50))
	require.NoError(t, assessErr)
	assert.Equal(t, WeightMLRiskScore, score.Score)
}

func TestAddAndRemoveCustomRule(t *testing.T) {
	store := &mockStore{}
	applyStoreDefaults(store)
	svc := newTestService(t, store, nil, nil)

	custom := &Rule{
		Name:        "always_on",
		Description: "synthetic signal",
		Weight:      42,
		Enabled:     true,
		Predicate: func(context.Context, *payment.Request, *risk.AssessmentContext) (bool, error) {
			return true, nil
		},
	}
	require.NoError(t, svc.AddRule(custom))

	score, err := svc.Assess(context.Background(), newServiceRequest(t, 50))
	require.NoError(t, err)
	assert.Equal(t, 42, score.Score)
	assert.Contains(t, score.Reasons, "synthetic signal")

	require.NoError(t, svc.RemoveRule("always_on"))
	score, err = svc.Assess(context.Background(), newServiceRequest(t, 50))
	require.NoError(t, err)
	assert.Equal(t, 0, score.Score)
}

func TestAuditWriteFailureIsDropped(t *testing.T) {
	store := &mockStore{}
	applyStoreDefaults(store)
	audit := newMockAuditSink()
	audit.err = assert.AnError
	metrics := newCountingMetrics()
	svc := newTestService(t, store, audit, metrics)

	score, err := svc.Assess(context.Background(), newServiceRequest(t, 50))
	require.NoError(t, err, "audit failures never surface to the caller")
	require.NotNil(t, score)

	assert.Eventually(t, func() bool {
		return metrics.auditFailureCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

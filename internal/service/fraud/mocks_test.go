package fraud

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/helixpay/payment-risk-backend/internal/domain/payment"
	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
	"github.com/helixpay/payment-risk-backend/internal/domain/values"
	"github.com/helixpay/payment-risk-backend/internal/infrastructure/config"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CountRecentTransactions(ctx context.Context, deviceID string, window time.Duration) (int, error) {
	args := m.Called(ctx, deviceID, window)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) GetDeviceAggregate(ctx context.Context, deviceID string) (risk.DeviceHistory, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).(risk.DeviceHistory), args.Error(1)
}

func (m *mockStore) GetCustomerAggregate(ctx context.Context, email string) (risk.CustomerHistory, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(risk.CustomerHistory), args.Error(1)
}

func (m *mockStore) GetBusinessTypeAverageAmount(ctx context.Context, businessType payment.BusinessType, days int) (decimal.Decimal, error) {
	args := m.Called(ctx, businessType, days)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockStore) IsBlacklisted(ctx context.Context, kind BlacklistKind, value string) (bool, error) {
	args := m.Called(ctx, kind, value)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) GetDeviceAuthorizationFlag(ctx context.Context, deviceID string) (bool, error) {
	args := m.Called(ctx, deviceID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) GetTodaySpend(ctx context.Context, deviceID string) (decimal.Decimal, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockStore) GetMonthlySpend(ctx context.Context, deviceID string) (decimal.Decimal, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockStore) HasActiveSubscription(ctx context.Context, merchantID, email string) (bool, error) {
	args := m.Called(ctx, merchantID, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CountSignupAttempts(ctx context.Context, email string, window time.Duration) (int, error) {
	args := m.Called(ctx, email, window)
	return args.Int(0), args.Error(1)
}

// applyStoreDefaults registers benign catch-all expectations: a seasoned
// device, no blacklist hits, no recent activity. Tests register their
// specific expectations first so those win.
func applyStoreDefaults(s *mockStore) {
	s.On("CountRecentTransactions", mock.Anything, mock.Anything, mock.Anything).Return(0, nil).Maybe()
	s.On("GetDeviceAggregate", mock.Anything, mock.Anything).Return(seasonedDevice(), nil).Maybe()
	s.On("GetCustomerAggregate", mock.Anything, mock.Anything).Return(risk.CustomerHistory{
		Count:       12,
		AvgAmount:   decimal.NewFromInt(50),
		TotalAmount: decimal.NewFromInt(600),
	}, nil).Maybe()
	s.On("GetBusinessTypeAverageAmount", mock.Anything, mock.Anything, mock.Anything).Return(decimal.NewFromInt(50), nil).Maybe()
	s.On("IsBlacklisted", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Maybe()
	s.On("GetDeviceAuthorizationFlag", mock.Anything, mock.Anything).Return(true, nil).Maybe()
	s.On("GetTodaySpend", mock.Anything, mock.Anything).Return(decimal.Zero, nil).Maybe()
	s.On("GetMonthlySpend", mock.Anything, mock.Anything).Return(decimal.Zero, nil).Maybe()
	s.On("HasActiveSubscription", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Maybe()
	s.On("CountSignupAttempts", mock.Anything, mock.Anything, mock.Anything).Return(0, nil).Maybe()
}

// seasonedDevice is a device with enough history that no default rule fires
// on it.
func seasonedDevice() risk.DeviceHistory {
	firstSeen := time.Now().Add(-90 * 24 * time.Hour)
	return risk.DeviceHistory{
		Known:        true,
		Count:        40,
		AvgAmount:    decimal.NewFromInt(50),
		FirstSeen:    &firstSeen,
		Capabilities: []string{"card", "nfc"},
	}
}

type mockAuditSink struct {
	mu      sync.Mutex
	records []*risk.AssessmentRecord
	written chan struct{}
	err     error
}

func newMockAuditSink() *mockAuditSink {
	return &mockAuditSink{written: make(chan struct{}, 16)}
}

func (m *mockAuditSink) Record(_ context.Context, record *risk.AssessmentRecord) error {
	m.mu.Lock()
	m.records = append(m.records, record)
	m.mu.Unlock()
	m.written <- struct{}{}
	return m.err
}

// waitForWrite blocks until one audit record lands or the deadline passes.
func (m *mockAuditSink) waitForWrite(timeout time.Duration) bool {
	select {
	case <-m.written:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (m *mockAuditSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *mockAuditSink) last() *risk.AssessmentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return nil
	}
	return m.records[len(m.records)-1]
}

type mockMLScorer struct {
	mock.Mock
}

func (m *mockMLScorer) Score(ctx context.Context, req *payment.Request, actx *risk.AssessmentContext) (bool, error) {
	args := m.Called(ctx, req, actx)
	return args.Bool(0), args.Error(1)
}

// countingMetrics is a threadsafe MetricsCollector for assertions.
type countingMetrics struct {
	mu               sync.Mutex
	assessments      int
	policyRejections map[string]int
	ruleFaults       map[string]int
	auditFailures    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		policyRejections: make(map[string]int),
		ruleFaults:       make(map[string]int),
	}
}

func (c *countingMetrics) RecordAssessment(_, _ string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assessments++
}

func (c *countingMetrics) RecordPolicyRejection(_, check string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policyRejections[check]++
}

func (c *countingMetrics) RecordRuleFault(rule string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ruleFaults[rule]++
}

func (c *countingMetrics) RecordAuditWriteFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auditFailures++
}

func (c *countingMetrics) faultsFor(rule string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ruleFaults[rule]
}

func (c *countingMetrics) rejectionsFor(check string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policyRejections[check]
}

func (c *countingMetrics) auditFailureCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auditFailures
}

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		Thresholds: config.ThresholdConfig{
			Medium:   40,
			High:     70,
			Critical: 85,
		},
		LocationMaxDistanceKm: 1000,
		LocationMaxElapsed:    time.Hour,
		QuietHoursStart:       2,
		QuietHoursEnd:         5,
		GamingDailyLimit:      200,
		GamingRuleDailyLimit:  500,
		IoTMonthlyLimit:       500,
		IoTRuleMonthlyLimit:   1000,
		AuditTimeout:          time.Second,
	}
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// newServiceRequest builds a request for the service business type, which
// keeps the time-of-day rule out of scoring tests.
func newServiceRequest(t interface{ Fatalf(string, ...interface{}) }, amount float64) *payment.Request {
	req, err := payment.NewRequest(
		values.MustNewMoneyFromFloat(amount, values.USD),
		"device-001", payment.DeviceSmartphone, payment.BusinessTypeService, payment.MethodCard,
	)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	return req.WithCustomerEmail(values.MustNewEmail("customer@example.com"))
}

func newRetailRequest(t interface{ Fatalf(string, ...interface{}) }, amount float64) *payment.Request {
	req, err := payment.NewRequest(
		values.MustNewMoneyFromFloat(amount, values.USD),
		"device-001", payment.DeviceSmartphone, payment.BusinessTypeRetail, payment.MethodCard,
	)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	return req
}

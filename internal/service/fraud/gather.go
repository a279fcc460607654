package fraud

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
	"github.com/helixpay/payment-risk-backend/internal/domain/values"
)

// ContextGatherer assembles the historical aggregates the scoring rules read.
// All reads fan out concurrently and the gather joins on every one of them;
// an individual failure degrades to a conservative zero value instead of
// failing the assessment.
type ContextGatherer struct {
	store   Store
	logger  *zap.Logger
	windows []time.Duration
	now     func() time.Time
}

// NewContextGatherer builds a gatherer using the standard lookback windows.
func NewContextGatherer(store Store, logger *zap.Logger) *ContextGatherer {
	return &ContextGatherer{
		store:   store,
		logger:  logger,
		windows: []time.Duration{risk.WindowShort, risk.WindowHour, risk.WindowDay},
		now:     time.Now,
	}
}

// Gather builds a fresh AssessmentContext for one request. It never fails:
// every read that errors leaves its conservative default in place.
func (g *ContextGatherer) Gather(ctx context.Context, deviceID string, email values.Email) *risk.AssessmentContext {
	actx := &risk.AssessmentContext{
		RecentCounts: make(map[time.Duration]int, len(g.windows)),
		GatheredAt:   g.now(),
	}

	counts := make([]int, len(g.windows))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		device, err := g.store.GetDeviceAggregate(ctx, deviceID)
		if err != nil {
			// Zero aggregate reads as an unknown device, which deliberately
			// biases the fingerprint and anomaly rules toward triggering.
			g.logReadFault("device_aggregate", deviceID, err)
			return
		}
		actx.Device = device
	}()

	if !email.IsEmpty() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			customer, err := g.store.GetCustomerAggregate(ctx, email.String())
			if err != nil {
				g.logReadFault("customer_aggregate", deviceID, err)
				return
			}
			actx.Customer = &customer
		}()
	}

	for i, window := range g.windows {
		wg.Add(1)
		go func(i int, window time.Duration) {
			defer wg.Done()
			count, err := g.store.CountRecentTransactions(ctx, deviceID, window)
			if err != nil {
				g.logReadFault("recent_transactions", deviceID, err)
				return
			}
			counts[i] = count
		}(i, window)
	}

	wg.Wait()

	for i, window := range g.windows {
		actx.RecentCounts[window] = counts[i]
	}

	return actx
}

func (g *ContextGatherer) logReadFault(read, deviceID string, err error) {
	g.logger.Warn("context read failed, using conservative default",
		zap.String("read", read),
		zap.String("device_id", deviceID),
		zap.Error(err))
}

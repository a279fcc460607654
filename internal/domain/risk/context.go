package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lookback windows used for recent-transaction counts.
const (
	WindowShort  = 5 * time.Minute
	WindowHour   = time.Hour
	WindowDay    = 24 * time.Hour
)

// DeviceHistory aggregates a device's transaction record. Zero values mean
// the device is unknown to the store, which is itself a risk signal.
type DeviceHistory struct {
	Known               bool             `json:"known"`
	Count               int64            `json:"count"`
	AvgAmount           decimal.Decimal  `json:"avg_amount"`
	LastLocation        *GeoPoint        `json:"last_location,omitempty"`
	LastTransactionTime *time.Time       `json:"last_transaction_time,omitempty"`
	FirstSeen           *time.Time       `json:"first_seen,omitempty"`
	Capabilities        []string         `json:"capabilities,omitempty"`
}

// CustomerHistory aggregates a customer's transaction record by email.
type CustomerHistory struct {
	Count                int64           `json:"count"`
	AvgAmount            decimal.Decimal `json:"avg_amount"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	FirstTransactionDate *time.Time      `json:"first_transaction_date,omitempty"`
}

// AssessmentContext carries the historical aggregates the scoring rules read.
// It is built fresh for each assessment and treated as read-only afterwards.
type AssessmentContext struct {
	Device       DeviceHistory          `json:"device"`
	Customer     *CustomerHistory       `json:"customer,omitempty"`
	RecentCounts map[time.Duration]int  `json:"-"`
	GatheredAt   time.Time              `json:"gathered_at"`
}

// RecentCount returns the transaction count observed in the lookback window,
// or zero when the window was never gathered.
func (c *AssessmentContext) RecentCount(window time.Duration) int {
	if c.RecentCounts == nil {
		return 0
	}
	return c.RecentCounts[window]
}

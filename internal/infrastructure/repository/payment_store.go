package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/helixpay/payment-risk-backend/internal/domain/payment"
	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
	"github.com/helixpay/payment-risk-backend/internal/service/fraud"
)

// paymentStore implements fraud.Store using PostgreSQL
type paymentStore struct {
	db *sql.DB
}

// NewPaymentStore creates a new payment history store
func NewPaymentStore(db *sql.DB) fraud.Store {
	return &paymentStore{db: db}
}

// CountRecentTransactions returns the device's transaction count within the
// lookback window.
func (s *paymentStore) CountRecentTransactions(ctx context.Context, deviceID string, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM transactions
		WHERE device_id = $1 AND created_at > $2
	`

	var count int
	cutoff := time.Now().Add(-window)
	if err := s.db.QueryRowContext(ctx, query, deviceID, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting recent transactions: %w", err)
	}

	return count, nil
}

// GetDeviceAggregate returns the device's historical aggregate. An unknown
// device yields a zero aggregate with Known=false.
func (s *paymentStore) GetDeviceAggregate(ctx context.Context, deviceID string) (risk.DeviceHistory, error) {
	var history risk.DeviceHistory

	deviceQuery := `
		SELECT registered_at, capabilities
		FROM devices
		WHERE device_id = $1
	`

	var registeredAt time.Time
	var capabilitiesJSON []byte
	err := s.db.QueryRowContext(ctx, deviceQuery, deviceID).Scan(&registeredAt, &capabilitiesJSON)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return history, nil
	case err != nil:
		return history, fmt.Errorf("loading device record: %w", err)
	}

	history.Known = true
	history.FirstSeen = &registeredAt
	if len(capabilitiesJSON) > 0 {
		if err := json.Unmarshal(capabilitiesJSON, &history.Capabilities); err != nil {
			return history, fmt.Errorf("decoding device capabilities: %w", err)
		}
	}

	aggQuery := `
		SELECT COUNT(*), COALESCE(AVG(amount), 0)
		FROM transactions
		WHERE device_id = $1 AND status = 'completed'
	`

	var avg decimal.Decimal
	if err := s.db.QueryRowContext(ctx, aggQuery, deviceID).Scan(&history.Count, &avg); err != nil {
		return history, fmt.Errorf("aggregating device transactions: %w", err)
	}
	history.AvgAmount = avg

	lastQuery := `
		SELECT location_lat, location_lon, created_at
		FROM transactions
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var lat, lon sql.NullFloat64
	var lastAt time.Time
	err = s.db.QueryRowContext(ctx, lastQuery, deviceID).Scan(&lat, &lon, &lastAt)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return history, nil
	case err != nil:
		return history, fmt.Errorf("loading last transaction: %w", err)
	}

	history.LastTransactionTime = &lastAt
	if lat.Valid && lon.Valid {
		history.LastLocation = &risk.GeoPoint{Latitude: lat.Float64, Longitude: lon.Float64}
	}

	return history, nil
}

// GetCustomerAggregate returns the customer's completed-payment aggregate.
func (s *paymentStore) GetCustomerAggregate(ctx context.Context, email string) (risk.CustomerHistory, error) {
	query := `
		SELECT COUNT(*), COALESCE(AVG(amount), 0), COALESCE(SUM(amount), 0), MIN(created_at)
		FROM transactions
		WHERE customer_email = $1 AND status = 'completed'
	`

	var history risk.CustomerHistory
	var avg, total decimal.Decimal
	var first sql.NullTime
	if err := s.db.QueryRowContext(ctx, query, email).Scan(&history.Count, &avg, &total, &first); err != nil {
		return history, fmt.Errorf("aggregating customer transactions: %w", err)
	}

	history.AvgAmount = avg
	history.TotalAmount = total
	if first.Valid {
		history.FirstTransactionDate = &first.Time
	}

	return history, nil
}

// GetBusinessTypeAverageAmount returns the trailing average completed amount
// for a business type.
func (s *paymentStore) GetBusinessTypeAverageAmount(ctx context.Context, businessType payment.BusinessType, days int) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(AVG(amount), 0)
		FROM transactions
		WHERE business_type = $1 AND status = 'completed' AND created_at > $2
	`

	var avg decimal.Decimal
	cutoff := time.Now().AddDate(0, 0, -days)
	if err := s.db.QueryRowContext(ctx, query, businessType.String(), cutoff).Scan(&avg); err != nil {
		return decimal.Zero, fmt.Errorf("averaging business type amounts: %w", err)
	}

	return avg, nil
}

// IsBlacklisted checks one blacklist for an active entry.
func (s *paymentStore) IsBlacklisted(ctx context.Context, kind fraud.BlacklistKind, value string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM blacklist_entries
			WHERE kind = $1 AND value = $2 AND active
		)
	`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, string(kind), value).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking %s blacklist: %w", kind, err)
	}

	return exists, nil
}

// GetDeviceAuthorizationFlag reports whether the device may make automated
// payments. Unknown devices are unauthorized.
func (s *paymentStore) GetDeviceAuthorizationFlag(ctx context.Context, deviceID string) (bool, error) {
	query := `
		SELECT automated_payments_enabled
		FROM devices
		WHERE device_id = $1
	`

	var enabled bool
	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(&enabled)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("loading device authorization flag: %w", err)
	}

	return enabled, nil
}

// GetTodaySpend returns the device's completed spend since midnight.
func (s *paymentStore) GetTodaySpend(ctx context.Context, deviceID string) (decimal.Decimal, error) {
	return s.sumSpendSince(ctx, deviceID, "date_trunc('day', now())")
}

// GetMonthlySpend returns the device's completed month-to-date spend.
func (s *paymentStore) GetMonthlySpend(ctx context.Context, deviceID string) (decimal.Decimal, error) {
	return s.sumSpendSince(ctx, deviceID, "date_trunc('month', now())")
}

func (s *paymentStore) sumSpendSince(ctx context.Context, deviceID, truncExpr string) (decimal.Decimal, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE device_id = $1 AND status = 'completed' AND created_at >= %s
	`, truncExpr)

	var sum decimal.Decimal
	if err := s.db.QueryRowContext(ctx, query, deviceID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("summing device spend: %w", err)
	}

	return sum, nil
}

// HasActiveSubscription reports an active subscription for merchant+email.
func (s *paymentStore) HasActiveSubscription(ctx context.Context, merchantID, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE merchant_id = $1 AND customer_email = $2 AND status = 'active'
		)
	`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, merchantID, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking active subscription: %w", err)
	}

	return exists, nil
}

// CountSignupAttempts returns subscription signup attempts for the email in
// the lookback window.
func (s *paymentStore) CountSignupAttempts(ctx context.Context, email string, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM subscription_signup_attempts
		WHERE customer_email = $1 AND created_at > $2
	`

	var count int
	cutoff := time.Now().Add(-window)
	if err := s.db.QueryRowContext(ctx, query, email, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting signup attempts: %w", err)
	}

	return count, nil
}

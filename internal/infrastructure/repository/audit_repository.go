package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
)

// AuditRepository persists assessment records to PostgreSQL. It backs the
// fire-and-forget audit sink; callers never block on it.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new assessment audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record stores one assessment record.
func (r *AuditRepository) Record(ctx context.Context, record *risk.AssessmentRecord) error {
	reasonsJSON, err := json.Marshal(record.Reasons)
	if err != nil {
		return fmt.Errorf("marshaling reasons: %w", err)
	}

	outcomesJSON, err := json.Marshal(record.RuleOutcomes)
	if err != nil {
		return fmt.Errorf("marshaling rule outcomes: %w", err)
	}

	query := `
		INSERT INTO risk_assessments (
			id, request_id, device_id, business_type, payment_method,
			amount, currency, score, level, reasons, rule_outcomes,
			should_block, manual_review, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID, record.RequestID, record.DeviceID, record.BusinessType, record.Method,
		record.Amount, record.Currency, record.Score, string(record.Level), reasonsJSON, outcomesJSON,
		record.ShouldBlock, record.ManualReview, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting assessment record: %w", err)
	}

	return nil
}

// GetRecentByDevice returns the device's most recent assessment records,
// newest first. Used by review tooling, not by the assessment hot path.
func (r *AuditRepository) GetRecentByDevice(ctx context.Context, deviceID string, limit int) ([]*risk.AssessmentRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, request_id, device_id, business_type, payment_method,
		       amount, currency, score, level, reasons, rule_outcomes,
		       should_block, manual_review, created_at
		FROM risk_assessments
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying assessment records: %w", err)
	}
	defer rows.Close()

	var records []*risk.AssessmentRecord
	for rows.Next() {
		record := &risk.AssessmentRecord{}
		var id, requestID string
		var level string
		var reasonsJSON, outcomesJSON []byte

		if err := rows.Scan(
			&id, &requestID, &record.DeviceID, &record.BusinessType, &record.Method,
			&record.Amount, &record.Currency, &record.Score, &level, &reasonsJSON, &outcomesJSON,
			&record.ShouldBlock, &record.ManualReview, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning assessment record: %w", err)
		}

		record.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parsing record id: %w", err)
		}
		record.RequestID, err = uuid.Parse(requestID)
		if err != nil {
			return nil, fmt.Errorf("parsing request id: %w", err)
		}
		record.Level = risk.Level(level)

		if err := json.Unmarshal(reasonsJSON, &record.Reasons); err != nil {
			return nil, fmt.Errorf("decoding reasons: %w", err)
		}
		if err := json.Unmarshal(outcomesJSON, &record.RuleOutcomes); err != nil {
			return nil, fmt.Errorf("decoding rule outcomes: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assessment records: %w", err)
	}

	return records, nil
}

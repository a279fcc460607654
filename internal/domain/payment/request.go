package payment

import (
	"time"

	"github.com/google/uuid"

	"github.com/helixpay/payment-risk-backend/internal/domain/errors"
	"github.com/helixpay/payment-risk-backend/internal/domain/values"
)

// Request is an immutable payment request entering the risk pipeline.
// Construct it with NewRequest; nothing mutates it afterwards.
type Request struct {
	ID            uuid.UUID         `json:"id"`
	Amount        values.Money      `json:"amount" validate:"required"`
	DeviceID      string            `json:"device_id" validate:"required,max=128"`
	DeviceType    DeviceType        `json:"device_type" validate:"required"`
	CustomerEmail values.Email      `json:"customer_email,omitempty"`
	BusinessType  BusinessType      `json:"business_type" validate:"required"`
	Method        PaymentMethod     `json:"payment_method" validate:"required"`
	SourceIP      string            `json:"source_ip,omitempty" validate:"omitempty,ip"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewRequest builds a validated payment request. The metadata map is copied
// so callers cannot mutate the request after construction.
func NewRequest(amount values.Money, deviceID string, deviceType DeviceType, businessType BusinessType, method PaymentMethod) (*Request, error) {
	if amount.IsNegative() {
		return nil, errors.NewValidationError("INVALID_AMOUNT", "amount cannot be negative")
	}
	if deviceID == "" {
		return nil, errors.NewValidationError("INVALID_DEVICE", "device ID is required")
	}
	if !deviceType.IsValid() {
		return nil, errors.NewValidationError("INVALID_DEVICE_TYPE", "unknown device type: "+deviceType.String())
	}
	if !businessType.IsValid() {
		return nil, errors.NewValidationError("INVALID_BUSINESS_TYPE", "unknown business type: "+businessType.String())
	}
	if !method.IsValid() {
		return nil, errors.NewValidationError("INVALID_PAYMENT_METHOD", "unknown payment method: "+method.String())
	}

	return &Request{
		ID:           uuid.New(),
		Amount:       amount,
		DeviceID:     deviceID,
		DeviceType:   deviceType,
		BusinessType: businessType,
		Method:       method,
		Metadata:     make(map[string]string),
		CreatedAt:    time.Now(),
	}, nil
}

// WithCustomerEmail returns a copy of the request carrying the customer email.
func (r *Request) WithCustomerEmail(email values.Email) *Request {
	clone := r.clone()
	clone.CustomerEmail = email
	return clone
}

// WithSourceIP returns a copy of the request carrying the source IP address.
func (r *Request) WithSourceIP(ip string) *Request {
	clone := r.clone()
	clone.SourceIP = ip
	return clone
}

// WithMetadata returns a copy of the request with the key/value added.
func (r *Request) WithMetadata(key, value string) *Request {
	clone := r.clone()
	clone.Metadata[key] = value
	return clone
}

// HasCustomerEmail reports whether the request carries a customer email.
func (r *Request) HasCustomerEmail() bool {
	return !r.CustomerEmail.IsEmpty()
}

// MetadataValue returns the metadata value for key, or "" when absent.
func (r *Request) MetadataValue(key string) string {
	return r.Metadata[key]
}

// MetadataFlag interprets the metadata value for key as a boolean flag.
func (r *Request) MetadataFlag(key string) bool {
	switch r.Metadata[key] {
	case "true", "1", "yes":
		return true
	}
	return false
}

func (r *Request) clone() *Request {
	clone := *r
	clone.Metadata = make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		clone.Metadata[k] = v
	}
	return &clone
}

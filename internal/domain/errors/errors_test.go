package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyViolationError(t *testing.T) {
	err := NewPolicyViolationError("amount", "amount below minimum $0.50")

	assert.True(t, IsPolicyViolation(err))
	assert.False(t, IsConfigurationError(err))
	assert.Equal(t, ErrorTypePolicyViolation, GetType(err))
	assert.Equal(t, 422, err.StatusCode)
	assert.False(t, err.Retryable)
	assert.Equal(t, "amount", err.Details["check"])
	assert.Contains(t, err.Error(), "amount below minimum $0.50")
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError(`no policy registered for business type "drone"`)

	assert.True(t, IsConfigurationError(err))
	assert.False(t, IsPolicyViolation(err))
	assert.Equal(t, 500, err.StatusCode)
}

func TestClassifiersUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("assessing payment: %w", NewPolicyViolationError("currency", "currency JPY not allowed"))
	assert.True(t, IsPolicyViolation(wrapped))

	notFound := fmt.Errorf("lookup: %w", NewNotFoundError(`rule "velocity"`))
	assert.True(t, IsNotFound(notFound))

	assert.False(t, IsPolicyViolation(fmt.Errorf("plain failure")))
	assert.Equal(t, ErrorTypeInternal, GetType(fmt.Errorf("plain failure")))
}

func TestWithCause(t *testing.T) {
	cause := fmt.Errorf("field DeviceID required")
	err := NewValidationError("INVALID_REQUEST", "malformed payment request").WithCause(cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorTypeValidation, GetType(err))
}

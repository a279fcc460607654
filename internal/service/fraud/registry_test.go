package fraud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixpay/payment-risk-backend/internal/domain/errors"
	"github.com/helixpay/payment-risk-backend/internal/domain/payment"
	"github.com/helixpay/payment-risk-backend/internal/domain/risk"
)

func alwaysFalse(context.Context, *payment.Request, *risk.AssessmentContext) (bool, error) {
	return false, nil
}

func testRule(name string, weight int) *Rule {
	return &Rule{
		Name:      name,
		Weight:    weight,
		Enabled:   true,
		Predicate: alwaysFalse,
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		rule *Rule
	}{
		{name: "nil rule", rule: nil},
		{name: "empty name", rule: &Rule{Weight: 10, Predicate: alwaysFalse}},
		{name: "zero weight", rule: &Rule{Name: "r", Predicate: alwaysFalse}},
		{name: "negative weight", rule: &Rule{Name: "r", Weight: -5, Predicate: alwaysFalse}},
		{name: "nil predicate", rule: &Rule{Name: "r", Weight: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRuleRegistry()
			assert.Error(t, registry.Register(tt.rule))
		})
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	registry := NewRuleRegistry()
	require.NoError(t, registry.Register(testRule("velocity", 25)))

	err := registry.Register(testRule("velocity", 30))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConflict, errors.GetType(err))
}

func TestRegistryMutations(t *testing.T) {
	registry := NewRuleRegistry()
	require.NoError(t, registry.Register(testRule("alpha", 10)))
	require.NoError(t, registry.Register(testRule("beta", 20)))

	require.NoError(t, registry.Disable("alpha"))
	require.NoError(t, registry.SetWeight("beta", 35))

	status := registry.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "alpha", status[0].Name)
	assert.False(t, status[0].Enabled)
	assert.Equal(t, "beta", status[1].Name)
	assert.Equal(t, 35, status[1].Weight)

	require.NoError(t, registry.Enable("alpha"))
	assert.True(t, registry.Status()[0].Enabled)

	require.NoError(t, registry.Remove("alpha"))
	status = registry.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "beta", status[0].Name)

	assert.True(t, errors.IsNotFound(registry.Enable("alpha")))
	assert.True(t, errors.IsNotFound(registry.Disable("missing")))
	assert.True(t, errors.IsNotFound(registry.SetWeight("missing", 10)))
	assert.True(t, errors.IsNotFound(registry.Remove("missing")))
	assert.Error(t, registry.SetWeight("beta", 0))
}

func TestSnapshotIsolation(t *testing.T) {
	registry := NewRuleRegistry()
	require.NoError(t, registry.Register(testRule("alpha", 10)))
	require.NoError(t, registry.Register(testRule("beta", 20)))

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 2)

	// Mutations after the snapshot never leak into it.
	require.NoError(t, registry.SetWeight("alpha", 99))
	require.NoError(t, registry.Disable("beta"))
	require.NoError(t, registry.Remove("alpha"))

	assert.Equal(t, "alpha", snapshot[0].Name)
	assert.Equal(t, 10, snapshot[0].Weight)
	assert.True(t, snapshot[1].Enabled)

	fresh := registry.Snapshot()
	require.Len(t, fresh, 1)
	assert.Equal(t, "beta", fresh[0].Name)
	assert.False(t, fresh[0].Enabled)
}

func TestSnapshotPreservesRegistrationOrder(t *testing.T) {
	registry := NewRuleRegistry()
	names := []string{"velocity", "amount_anomaly", "blacklist", "custom"}
	for i, name := range names {
		require.NoError(t, registry.Register(testRule(name, 10+i)))
	}

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, len(names))
	for i, name := range names {
		assert.Equal(t, name, snapshot[i].Name)
	}
}

func TestRegisterCopiesRule(t *testing.T) {
	registry := NewRuleRegistry()
	rule := testRule("alpha", 10)
	require.NoError(t, registry.Register(rule))

	// Mutating the caller's struct after registration changes nothing.
	rule.Weight = 77
	rule.Enabled = false

	status := registry.Status()
	assert.Equal(t, 10, status[0].Weight)
	assert.True(t, status[0].Enabled)
}

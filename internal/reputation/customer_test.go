package reputation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

func newCustomer(role model.Role, warnings int) *model.Account {
	tier := model.TierRegistered
	if role == model.RoleVIP {
		tier = model.TierVIP
	}
	return &model.Account{
		ID:   1,
		Role: role,
		Customer: &model.CustomerProfile{
			Warnings:     warnings,
			Tier:         tier,
			PreviousType: model.RoleCustomer,
		},
	}
}

func TestAddCustomerWarning_VIPRevertsToRegistered(t *testing.T) {
	p := DefaultPolicy()
	a := newCustomer(model.RoleVIP, 1)

	ts := p.AddCustomerWarning(a, "dismissed complaint")

	require.True(t, Has(ts, model.AuditWarning))
	require.True(t, Has(ts, model.AuditVIPDemotion))
	assert.Equal(t, model.TierRegistered, a.Customer.Tier)
	assert.Equal(t, model.RoleCustomer, a.Role)
	assert.Equal(t, 0, a.Customer.Warnings)
	assert.Equal(t, model.RoleVIP, a.Customer.PreviousType)
	assert.False(t, a.Customer.IsBlacklisted)
}

func TestAddCustomerWarning_ThirdWarningBlacklists(t *testing.T) {
	p := DefaultPolicy()
	a := newCustomer(model.RoleCustomer, 2)

	ts := p.AddCustomerWarning(a, "complaint upheld")

	require.True(t, Has(ts, model.AuditBlacklist))
	assert.Equal(t, model.TierDeregistered, a.Customer.Tier)
	assert.True(t, a.Customer.IsBlacklisted)
	assert.GreaterOrEqual(t, a.Customer.Warnings, 3)
}

func TestAddCustomerWarning_BelowThreshold(t *testing.T) {
	p := DefaultPolicy()
	a := newCustomer(model.RoleCustomer, 0)

	ts := p.AddCustomerWarning(a, "insufficient funds")

	require.Len(t, ts, 1)
	assert.Equal(t, 1, a.Customer.Warnings)
	assert.Equal(t, model.TierRegistered, a.Customer.Tier)
}

func TestAddCustomerWarning_DeregisteredIsTerminal(t *testing.T) {
	p := DefaultPolicy()
	a := newCustomer(model.RoleCustomer, 3)
	a.Customer.Tier = model.TierDeregistered
	a.Customer.IsBlacklisted = true

	assert.Empty(t, p.AddCustomerWarning(a, "late"))
	assert.Equal(t, 3, a.Customer.Warnings)
}

func TestVIPEligible(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name       string
		spent      int64
		orders     int
		previous   model.Role
		unresolved int
		want       bool
	}{
		{name: "spend threshold", spent: p.VIPSpendThreshold, previous: model.RoleCustomer, want: true},
		{name: "order threshold", orders: p.VIPOrderThreshold, previous: model.RoleCustomer, want: true},
		{name: "below thresholds", spent: 10, orders: 1, previous: model.RoleCustomer, want: false},
		{name: "unresolved complaints", spent: p.VIPSpendThreshold, previous: model.RoleCustomer, unresolved: 1, want: false},
		{name: "former vip never re-promoted", spent: p.VIPSpendThreshold * 10, previous: model.RoleVIP, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newCustomer(model.RoleCustomer, 0)
			a.Customer.TotalSpent = tt.spent
			a.Customer.CompletedOrdersCount = tt.orders
			a.Customer.PreviousType = tt.previous

			assert.Equal(t, tt.want, p.VIPEligible(a, tt.unresolved))
		})
	}
}

func TestPromoteVIP(t *testing.T) {
	a := newCustomer(model.RoleCustomer, 0)

	tr := PromoteVIP(a)

	assert.Equal(t, model.AuditVIPPromotion, tr.Action)
	assert.Equal(t, model.RoleVIP, a.Role)
	assert.Equal(t, model.TierVIP, a.Customer.Tier)
}

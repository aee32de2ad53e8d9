package complaint

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

var now = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func account(id int64, role model.Role) *model.Account {
	a := &model.Account{ID: id, Role: role}
	switch {
	case role.IsCustomer():
		a.Customer = &model.CustomerProfile{Tier: model.TierRegistered}
	case role.IsEmployee():
		a.Employee = &model.EmployeeProfile{Status: model.EmploymentActive}
	}
	return a
}

func ptr[T any](v T) *T { return &v }

// Покупатель 1 сделал заказы 100 (повар 10, курьер 20) и 101 (повар 11, не назначен).
var history = []model.OrderParticipants{
	{OrderID: 100, CustomerID: 1, ChefIDs: []int64{10}, DeliveryPersonID: 20},
	{OrderID: 101, CustomerID: 1, ChefIDs: []int64{11}},
}

func TestCheckFiling_Accepts(t *testing.T) {
	tests := []struct {
		name string
		f    Filing
	}{
		{
			name: "customer against chef of any order",
			f:    Filing{Filer: account(1, model.RoleCustomer), Target: account(11, model.RoleChef), Orders: history},
		},
		{
			name: "vip against chef of the named order",
			f:    Filing{Filer: account(1, model.RoleVIP), Target: account(10, model.RoleChef), OrderID: ptr(int64(100)), Orders: history},
		},
		{
			name: "customer against assigned delivery person",
			f:    Filing{Filer: account(1, model.RoleCustomer), Target: account(20, model.RoleDelivery), Orders: history},
		},
		{
			name: "delivery person against customer",
			f:    Filing{Filer: account(20, model.RoleDelivery), Target: account(1, model.RoleCustomer), Orders: history[:1]},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.f.Kind = model.KindComplaint
			tt.f.Description = "cold soup"
			assert.NoError(t, CheckFiling(tt.f))
		})
	}
}

func TestCheckFiling_Rejects(t *testing.T) {
	blacklisted := account(1, model.RoleCustomer)
	blacklisted.Customer.IsBlacklisted = true
	blacklisted.Customer.Tier = model.TierDeregistered

	tests := []struct {
		name     string
		f        Filing
		wantKind model.ErrorKind
		contains string
	}{
		{
			name:     "chef not in the named order",
			f:        Filing{Filer: account(1, model.RoleCustomer), Target: account(11, model.RoleChef), OrderID: ptr(int64(100)), Orders: history},
			wantKind: model.KindValidation,
			contains: "chef did not prepare any dishes in this order",
		},
		{
			name:     "delivery person never assigned",
			f:        Filing{Filer: account(1, model.RoleCustomer), Target: account(21, model.RoleDelivery), Orders: history},
			wantKind: model.KindValidation,
			contains: "delivery person did not deliver",
		},
		{
			name:     "foreign order",
			f:        Filing{Filer: account(1, model.RoleCustomer), Target: account(10, model.RoleChef), OrderID: ptr(int64(999)), Orders: history},
			wantKind: model.KindValidation,
			contains: "order 999",
		},
		{
			name:     "against a manager",
			f:        Filing{Filer: account(1, model.RoleCustomer), Target: account(50, model.RoleManager), Orders: history},
			wantKind: model.KindValidation,
		},
		{
			name:     "chef files",
			f:        Filing{Filer: account(10, model.RoleChef), Target: account(1, model.RoleCustomer), Orders: history},
			wantKind: model.KindValidation,
		},
		{
			name:     "self",
			f:        Filing{Filer: account(1, model.RoleCustomer), Target: account(1, model.RoleCustomer)},
			wantKind: model.KindValidation,
		},
		{
			name:     "blacklisted filer",
			f:        Filing{Filer: blacklisted, Target: account(10, model.RoleChef), Orders: history},
			wantKind: model.KindState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.f.Kind = model.KindComplaint
			tt.f.Description = "late and cold"

			err := CheckFiling(tt.f)

			var merr *model.Error
			require.True(t, errors.As(err, &merr), "unexpected error %v", err)
			assert.Equal(t, tt.wantKind, merr.Kind)
			if tt.contains != "" {
				assert.Contains(t, merr.Reason, tt.contains)
			}
		})
	}
}

func TestDispute(t *testing.T) {
	c := &model.Complaint{ID: 1, Kind: model.KindComplaint, TargetID: 10, Status: model.ComplaintPending}

	assert.ErrorIs(t, Dispute(c, 11, "not my order at all", now), model.ErrForbidden)
	assert.ErrorIs(t, Dispute(c, 10, "too short", now), model.ErrValidation)

	require.NoError(t, Dispute(c, 10, "  the dish left the kitchen hot  ", now))
	assert.Equal(t, model.ComplaintDisputed, c.Status)
	assert.True(t, c.Disputed)
	assert.Equal(t, "the dish left the kitchen hot", c.DisputeReason)
	require.NotNil(t, c.DisputedAt)

	assert.ErrorIs(t, Dispute(c, 10, "disputing once more", now), model.ErrState)
}

func TestDispute_Compliment(t *testing.T) {
	c := &model.Complaint{ID: 2, Kind: model.KindCompliment, TargetID: 10, Status: model.ComplaintPending}

	err := Dispute(c, 10, strings.Repeat("x", 20), now)

	assert.ErrorIs(t, err, model.ErrValidation)
	assert.False(t, c.Disputed)
}

func TestResolve(t *testing.T) {
	c := &model.Complaint{ID: 3, Kind: model.KindComplaint, Status: model.ComplaintDisputed}

	assert.ErrorIs(t, Resolve(c, 50, model.ResolutionCanceledByCompliment, "", now), model.ErrValidation)

	require.NoError(t, Resolve(c, 50, model.ResolutionWarningIssued, " confirmed ", now))
	assert.Equal(t, model.ComplaintResolved, c.Status)
	assert.Equal(t, model.ResolutionWarningIssued, c.Resolution)
	assert.Equal(t, "confirmed", c.ResolutionNotes)
	require.NotNil(t, c.ResolvedBy)
	assert.Equal(t, int64(50), *c.ResolvedBy)

	err := Resolve(c, 50, model.ResolutionDismissed, "", now)
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, model.ResolutionWarningIssued, c.Resolution)
}

func TestOldestPending(t *testing.T) {
	cs := []model.Complaint{
		{ID: 4, Kind: model.KindComplaint, TargetID: 10, Status: model.ComplaintPending, CreatedAt: now.Add(time.Hour)},
		{ID: 1, Kind: model.KindComplaint, TargetID: 10, Status: model.ComplaintResolved, CreatedAt: now.Add(-time.Hour)},
		{ID: 2, Kind: model.KindComplaint, TargetID: 10, Status: model.ComplaintDisputed, CreatedAt: now.Add(-time.Hour)},
		{ID: 3, Kind: model.KindComplaint, TargetID: 10, Status: model.ComplaintPending, CreatedAt: now},
		{ID: 5, Kind: model.KindComplaint, TargetID: 11, Status: model.ComplaintPending, CreatedAt: now.Add(-2 * time.Hour)},
	}

	c, ok := OldestPending(cs, 10)
	require.True(t, ok)
	assert.Equal(t, int64(3), c.ID)

	_, ok = OldestPending(cs, 12)
	assert.False(t, ok)
}

func TestCancel_ClosesBothAsPair(t *testing.T) {
	c := &model.Complaint{ID: 3, Kind: model.KindComplaint, TargetID: 10, Status: model.ComplaintPending}
	k := &model.Complaint{ID: 9, Kind: model.KindCompliment, TargetID: 10, Status: model.ComplaintPending}

	require.NoError(t, Cancel(c, k, now))

	assert.Equal(t, model.ResolutionCanceledByCompliment, c.Resolution)
	assert.Equal(t, model.ResolutionCanceledComplaint, k.Resolution)
	assert.Equal(t, model.ComplaintResolved, c.Status)
	assert.Equal(t, model.ComplaintResolved, k.Status)

	assert.ErrorIs(t, Cancel(c, k, now), model.ErrState)
}

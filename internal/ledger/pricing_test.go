package ledger

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

var testDishes = map[int64]model.Dish{
	1: {ID: 1, ChefID: 10, Name: "Borscht", Price: 1250},
	2: {ID: 2, ChefID: 11, Name: "Pelmeni", Price: 999},
}

func customer(role model.Role, credits int) *model.Account {
	return &model.Account{
		ID:   5,
		Role: role,
		Customer: &model.CustomerProfile{
			Tier:                model.TierRegistered,
			FreeDeliveryCredits: credits,
		},
	}
}

func TestQuote(t *testing.T) {
	p := DefaultPricing()
	lines := []Line{{DishID: 1, Quantity: 2}, {DishID: 2, Quantity: 1}}

	tests := []struct {
		name string
		acc  *model.Account
		want Quote
	}{
		{
			name: "registered customer pays flat fee",
			acc:  customer(model.RoleCustomer, 0),
			want: Quote{Subtotal: 3499, Discount: 0, DeliveryFee: 500, FinalCost: 3999},
		},
		{
			name: "vip discount is floored",
			acc:  customer(model.RoleVIP, 0),
			want: Quote{Subtotal: 3499, Discount: 174, DeliveryFee: 500, FinalCost: 3825},
		},
		{
			name: "free delivery credit",
			acc:  customer(model.RoleVIP, 1),
			want: Quote{Subtotal: 3499, Discount: 174, DeliveryFee: 0, FinalCost: 3325, UsesFreeCredit: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Quote(tt.acc, lines, testDishes)
			require.NoError(t, err)

			got.Items = nil
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("quote mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQuote_CapturesPrices(t *testing.T) {
	q, err := DefaultPricing().Quote(customer(model.RoleCustomer, 0), []Line{{DishID: 2, Quantity: 3}}, testDishes)
	require.NoError(t, err)

	want := []model.OrderItem{{DishID: 2, Quantity: 3, UnitPrice: 999}}
	if diff := cmp.Diff(want, q.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestQuote_Invalid(t *testing.T) {
	dishes := map[int64]model.Dish{
		1: testDishes[1],
		7: {ID: 7, ChefID: 10, Name: "Caviar", Price: 1 << 62},
		8: {ID: 8, ChefID: 10, Name: "Truffle", Price: math.MaxInt64 / 2},
		9: {ID: 9, ChefID: 10, Name: "Gift", Price: 0},
	}

	tests := []struct {
		name    string
		lines   []Line
		wantErr error
	}{
		{name: "no lines", wantErr: model.ErrValidation},
		{name: "zero quantity", lines: []Line{{DishID: 1, Quantity: 0}}, wantErr: model.ErrValidation},
		{name: "quantity above limit", lines: []Line{{DishID: 1, Quantity: MaxQuantity + 1}}, wantErr: model.ErrValidation},
		{name: "unknown dish", lines: []Line{{DishID: 42, Quantity: 1}}, wantErr: model.ErrNotFound},
		{name: "line total overflows", lines: []Line{{DishID: 7, Quantity: 2}}, wantErr: model.ErrValidation},
		{name: "subtotal overflows", lines: []Line{{DishID: 8, Quantity: 1}, {DishID: 8, Quantity: 1}, {DishID: 1, Quantity: 1}}, wantErr: model.ErrValidation},
		{name: "delivery fee overflows", lines: []Line{{DishID: 8, Quantity: 1}, {DishID: 8, Quantity: 1}}, wantErr: model.ErrValidation},
		{name: "non-positive price", lines: []Line{{DishID: 9, Quantity: 1}}, wantErr: model.ErrValidation},
	}

	p := DefaultPricing()
	acc := customer(model.RoleCustomer, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := p.Quote(acc, tt.lines, dishes)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, q.FinalCost)
		})
	}
}

func TestQuote_LargestOrderFits(t *testing.T) {
	dishes := map[int64]model.Dish{1: {ID: 1, Price: MaxDishPrice}}
	q, err := DefaultPricing().Quote(customer(model.RoleVIP, 0), []Line{{DishID: 1, Quantity: MaxQuantity}}, dishes)
	require.NoError(t, err)
	assert.Equal(t, MaxDishPrice*MaxQuantity, q.Subtotal)
	assert.Positive(t, q.FinalCost)
}

func TestRecordPayment_FreeDeliveryEveryNthOrder(t *testing.T) {
	p := DefaultPricing()
	acc := customer(model.RoleVIP, 0)

	var granted int
	for i := 0; i < 6; i++ {
		q := Quote{FinalCost: 1000}
		if p.RecordPayment(acc, q) {
			granted++
		}
	}

	assert.Equal(t, 2, granted)
	assert.Equal(t, 2, acc.Customer.FreeDeliveryCredits)
	assert.Equal(t, 6, acc.Customer.CompletedOrdersCount)
	assert.Equal(t, int64(6000), acc.Customer.TotalSpent)
}

func TestRecordPayment_ConsumesCredit(t *testing.T) {
	p := DefaultPricing()
	acc := customer(model.RoleCustomer, 1)

	granted := p.RecordPayment(acc, Quote{FinalCost: 500, UsesFreeCredit: true})

	assert.False(t, granted, "registered customers do not accrue credits")
	assert.Equal(t, 0, acc.Customer.FreeDeliveryCredits)
}

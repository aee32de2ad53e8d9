package ledger

import (
	"math"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

// Ограничения позиции заказа. При них стоимость заказа не переполняет int64.
const (
	MaxDishPrice int64 = 10_000_000
	MaxQuantity        = 100
)

// Pricing задаёт параметры расчёта стоимости заказа.
type Pricing struct {
	DiscountPct       int64
	DeliveryFee       int64
	FreeDeliveryEvery int
}

// DefaultPricing возвращает параметры по умолчанию.
func DefaultPricing() Pricing {
	return Pricing{
		DiscountPct:       5,
		DeliveryFee:       500,
		FreeDeliveryEvery: 3,
	}
}

// Line описывает запрошенную позицию заказа.
type Line struct {
	DishID   int64
	Quantity int
}

// Quote содержит рассчитанную стоимость заказа.
type Quote struct {
	Items          []model.OrderItem
	Subtotal       int64
	Discount       int64
	DeliveryFee    int64
	FinalCost      int64
	UsesFreeCredit bool
}

// Quote рассчитывает стоимость заказа по ценам блюд на текущий момент.
func (p Pricing) Quote(a *model.Account, lines []Line, dishes map[int64]model.Dish) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, model.Validationf("order must contain at least one item")
	}

	var q Quote
	for _, l := range lines {
		if l.Quantity <= 0 || l.Quantity > MaxQuantity {
			return Quote{}, model.Validationf("quantity for dish %d must be between 1 and %d", l.DishID, MaxQuantity)
		}
		d, ok := dishes[l.DishID]
		if !ok {
			return Quote{}, model.NotFoundf("dish %d not found", l.DishID)
		}
		q.Items = append(q.Items, model.OrderItem{
			DishID:    d.ID,
			Quantity:  l.Quantity,
			UnitPrice: d.Price,
		})
		if d.Price <= 0 || d.Price > math.MaxInt64/int64(l.Quantity) {
			return Quote{}, model.Validationf("price of dish %d is out of range", d.ID)
		}
		line := d.Price * int64(l.Quantity)
		if q.Subtotal > math.MaxInt64-line {
			return Quote{}, model.Validationf("order total is too large")
		}
		q.Subtotal += line
	}

	if a.Role == model.RoleVIP {
		q.Discount = q.Subtotal * p.DiscountPct / 100
	}

	q.DeliveryFee = p.DeliveryFee
	if a.Customer != nil && a.Customer.FreeDeliveryCredits > 0 {
		q.DeliveryFee = 0
		q.UsesFreeCredit = true
	}

	if q.Subtotal-q.Discount > math.MaxInt64-q.DeliveryFee {
		return Quote{}, model.Validationf("order total is too large")
	}
	q.FinalCost = q.Subtotal - q.Discount + q.DeliveryFee
	if q.FinalCost <= 0 {
		return Quote{}, model.Validationf("order total must be positive")
	}
	return q, nil
}

// RecordPayment обновляет счётчики покупателя после успешной оплаты и возвращает
// true, если за этот заказ начислен бесплатный кредит на доставку.
func (p Pricing) RecordPayment(a *model.Account, q Quote) bool {
	c := a.Customer
	if q.UsesFreeCredit && c.FreeDeliveryCredits > 0 {
		c.FreeDeliveryCredits--
	}
	c.CompletedOrdersCount++
	c.TotalSpent += q.FinalCost

	if a.Role == model.RoleVIP && p.FreeDeliveryEvery > 0 && c.CompletedOrdersCount%p.FreeDeliveryEvery == 0 {
		c.FreeDeliveryCredits++
		return true
	}
	return false
}

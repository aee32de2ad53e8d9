// Package bidding реализует правила торгов курьеров за доставку: приём ставок,
// ограничение частоты, окно торгов, выбор минимальной ставки и назначение.
package bidding

import (
	"sort"
	"strings"
	"time"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

// Policy задаёт окно торгов и минимальный интервал между ставками одного курьера.
type Policy struct {
	Window   time.Duration
	Throttle time.Duration
}

// DefaultPolicy возвращает параметры по умолчанию.
func DefaultPolicy() Policy {
	return Policy{
		Window:   30 * time.Minute,
		Throttle: 30 * time.Second,
	}
}

// Placement содержит входные данные для проверки новой ставки.
type Placement struct {
	Order  *model.Order
	Bidder *model.Account
	// Bids содержит уже принятые ставки по заказу.
	Bids []model.Bid
	// LastBidAt хранит время последней ставки курьера по любому заказу.
	LastBidAt        *time.Time
	Amount           int64
	EstimatedMinutes int
}

// CheckPlacement проверяет ставку и возвращает момент закрытия окна торгов. Если окно
// ещё не открыто, первая ставка открывает его.
func (p Policy) CheckPlacement(now time.Time, in Placement) (time.Time, error) {
	if in.Amount <= 0 {
		return time.Time{}, model.Validationf("bid amount must be positive")
	}
	if in.EstimatedMinutes <= 0 {
		return time.Time{}, model.Validationf("estimated minutes must be positive")
	}
	if in.Bidder.Role != model.RoleDelivery || in.Bidder.Employee == nil {
		return time.Time{}, model.Forbiddenf("only delivery personnel can bid")
	}
	if in.Bidder.Employee.Status == model.EmploymentFired {
		return time.Time{}, model.Statef("delivery person %d is fired", in.Bidder.ID)
	}
	if in.Order.Status != model.OrderStatusPaid {
		return time.Time{}, model.Statef("order %d is not open for bidding", in.Order.ID)
	}

	for _, b := range in.Bids {
		if b.DeliveryPersonID == in.Bidder.ID {
			return time.Time{}, model.Conflictf("delivery person %d already bid on order %d", in.Bidder.ID, in.Order.ID)
		}
	}

	closesAt := now.Add(p.Window)
	if in.Order.BiddingClosesAt != nil {
		closesAt = *in.Order.BiddingClosesAt
		if now.After(closesAt) {
			return time.Time{}, model.Statef("bidding window for order %d closed at %s", in.Order.ID, closesAt.Format(time.RFC3339))
		}
	}

	if in.LastBidAt != nil {
		if elapsed := now.Sub(*in.LastBidAt); elapsed < p.Throttle {
			return time.Time{}, model.Throttled(p.Throttle - elapsed)
		}
	}

	return closesAt, nil
}

// Lowest возвращает минимальную ставку. При равных суммах побеждает более ранняя
// (по времени создания, затем по идентификатору).
func Lowest(bids []model.Bid) (model.Bid, bool) {
	if len(bids) == 0 {
		return model.Bid{}, false
	}
	sorted := make([]model.Bid, len(bids))
	copy(sorted, bids)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Amount != b.Amount {
			return a.Amount < b.Amount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return sorted[0], true
}

// CheckAssignment проверяет выбор ставки менеджером. Выбор не минимальной ставки
// требует непустого обоснования. Возвращает очищенный текст обоснования.
func CheckAssignment(order *model.Order, bids []model.Bid, selected model.Bid, memo string) (string, error) {
	if order.Status != model.OrderStatusPaid {
		return "", model.Statef("order %d is %s and cannot be assigned", order.ID, order.Status)
	}
	if selected.OrderID != order.ID {
		return "", model.Validationf("bid %d does not belong to order %d", selected.ID, order.ID)
	}

	memo = strings.TrimSpace(memo)
	lowest, _ := Lowest(bids)
	if selected.ID != lowest.ID && memo == "" {
		return "", model.Validationf("memo is required: bid %d is not the lowest (lowest is %d)", selected.ID, lowest.ID)
	}
	return memo, nil
}

// OnTime сравнивает фактическое время доставки с обещанным в ставке.
func OnTime(order *model.Order, bid model.Bid, deliveredAt time.Time) (bool, int) {
	deadline := order.CreatedAt.Add(time.Duration(bid.EstimatedMinutes) * time.Minute)
	minutes := int(deliveredAt.Sub(order.CreatedAt).Round(time.Minute) / time.Minute)
	return !deliveredAt.After(deadline), minutes
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmeshcher/restaurant-marketplace/internal/audit"
	"github.com/mmeshcher/restaurant-marketplace/internal/ledger"
	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/repository"
	"github.com/mmeshcher/restaurant-marketplace/internal/reputation"
)

// CreateDish добавляет блюдо в меню повара.
func (s *Service) CreateDish(ctx context.Context, chefID int64, name string, price int64) (*model.Dish, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.Validationf("dish name is required")
	}
	if price <= 0 || price > ledger.MaxDishPrice {
		return nil, model.Validationf("dish price must be between 1 and %d", ledger.MaxDishPrice)
	}

	d := &model.Dish{ChefID: chefID, Name: name, Price: price, CreatedAt: s.now()}
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		chef, err := tx.GetAccount(ctx, chefID)
		if err != nil {
			return err
		}
		if err := requireRole(chef, model.RoleChef); err != nil {
			return err
		}
		if chef.Employee.Status == model.EmploymentFired {
			return model.Statef("chef %d is fired", chefID)
		}
		return tx.CreateDish(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDishes возвращает меню.
func (s *Service) ListDishes(ctx context.Context) ([]model.Dish, error) {
	var res []model.Dish
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ListDishes(ctx)
		return err
	})
	return res, err
}

// PlaceOrder оформляет и оплачивает заказ. При нехватке средств заказ и запись журнала
// не создаются, а покупателю начисляется предупреждение, которое фиксируется вместе с
// возвратом ошибки model.KindInsufficientFunds.
func (s *Service) PlaceOrder(ctx context.Context, customerID int64, lines []ledger.Line, address string) (*model.Order, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, model.Validationf("delivery address is required")
	}

	var (
		order   *model.Order
		failure error
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		order, failure = nil, nil

		a, err := tx.LockAccount(ctx, customerID)
		if err != nil {
			return err
		}
		if !a.Role.IsCustomer() || a.Customer == nil {
			return model.Forbiddenf("only customers may place orders")
		}
		if a.Customer.IsBlacklisted || a.Customer.Tier == model.TierDeregistered {
			return model.Statef("account %d is deregistered", a.ID)
		}

		ids := make([]int64, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.DishID)
		}
		dishes, err := tx.GetDishes(ctx, ids)
		if err != nil {
			return err
		}

		q, err := s.opts.Pricing.Quote(a, lines, dishes)
		if err != nil {
			return err
		}

		em := s.emitter(tx, &a.ID)
		if a.Balance < q.FinalCost {
			failure = model.InsufficientFunds(q.FinalCost - a.Balance)
			return s.warnCustomer(ctx, tx, em, a, "insufficient_funds", audit.Ref{}, nil)
		}

		o := &model.Order{
			CustomerID:      a.ID,
			Items:           q.Items,
			DeliveryAddress: address,
			Status:          model.OrderStatusPaid,
			Subtotal:        q.Subtotal,
			Discount:        q.Discount,
			DeliveryFee:     q.DeliveryFee,
			FinalCost:       q.FinalCost,
			CreatedAt:       s.now(),
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}
		if _, err := ledger.Post(ctx, tx, a, -q.FinalCost, model.TxOrderPayment, fmt.Sprintf("order:%d", o.ID)); err != nil {
			return err
		}

		s.opts.Pricing.RecordPayment(a, q)

		var ts []reputation.Transition
		unresolved, err := tx.CountUnresolvedFiled(ctx, a.ID)
		if err != nil {
			return err
		}
		if s.opts.Reputation.VIPEligible(a, unresolved) {
			ts = append(ts, reputation.PromoteVIP(a))
		}

		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		if err := em.Transitions(ctx, a.ID, audit.Ref{OrderID: &o.ID}, ts); err != nil {
			return err
		}

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	return order, nil
}

// ListOrders возвращает заказы покупателя или курьера.
func (s *Service) ListOrders(ctx context.Context, accountID int64) ([]model.Order, error) {
	var res []model.Order
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ListOrders(ctx, accountID)
		return err
	})
	return res, err
}

// ListOpenOrders возвращает заказы, принимающие ставки. Доступно курьерам и менеджерам.
func (s *Service) ListOpenOrders(ctx context.Context, actorID int64) ([]model.Order, error) {
	var res []model.Order
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		actor, err := tx.GetAccount(ctx, actorID)
		if err != nil {
			return err
		}
		if err := requireRole(actor, model.RoleDelivery, model.RoleManager); err != nil {
			return err
		}
		res, err = tx.ListOpenOrders(ctx)
		return err
	})
	return res, err
}

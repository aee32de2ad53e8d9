package service

import (
	"context"

	"github.com/mmeshcher/restaurant-marketplace/internal/audit"
	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/repository"
	"github.com/mmeshcher/restaurant-marketplace/internal/reputation"
)

// RatingInput содержит оценку повара или курьера по доставленному заказу.
type RatingInput struct {
	RaterID  int64
	TargetID int64
	OrderID  int64
	Score    int
	OnTime   *bool
}

// SubmitRating принимает оценку покупателя. Оценка пересчитывает скользящее среднее
// сотрудника и может привести к понижению, увольнению или премии.
func (s *Service) SubmitRating(ctx context.Context, in RatingInput) (*model.Rating, error) {
	if in.Score < 1 || in.Score > 5 {
		return nil, model.Validationf("score must be between 1 and 5")
	}

	var result *model.Rating
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		order, err := tx.LockOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if order.CustomerID != in.RaterID {
			return model.Forbiddenf("order %d does not belong to account %d", order.ID, in.RaterID)
		}
		if order.Status != model.OrderStatusDelivered {
			return model.Statef("order %d is %s, not delivered", order.ID, order.Status)
		}

		courier, err := s.isOrderCourier(ctx, tx, order, in.TargetID)
		if err != nil {
			return err
		}
		if !courier {
			chef, err := s.isOrderChef(ctx, tx, order, in.TargetID)
			if err != nil {
				return err
			}
			if !chef {
				return model.Validationf("account %d did not prepare or deliver order %d", in.TargetID, order.ID)
			}
		}

		target, err := tx.LockAccount(ctx, in.TargetID)
		if err != nil {
			return err
		}
		if target.Employee == nil {
			return model.Validationf("account %d is not an employee", target.ID)
		}

		r := &model.Rating{
			OrderID:   order.ID,
			RaterID:   in.RaterID,
			TargetID:  target.ID,
			Score:     in.Score,
			OnTime:    in.OnTime,
			CreatedAt: s.now(),
		}
		if err := tx.CreateRating(ctx, r); err != nil {
			return err
		}
		if courier {
			if err := tx.SetDeliveryReviewRating(ctx, order.ID, in.Score); err != nil {
				return err
			}
		}

		before := alertOf(s.opts.Reputation, target)
		ts := []reputation.Transition{reputation.ApplyRating(target.Employee, in.Score)}
		ts = append(ts, s.opts.Reputation.OnRating(target.Employee)...)

		em := s.emitter(tx, &in.RaterID)
		if err := s.saveEmployee(ctx, tx, em, target, audit.Ref{OrderID: &order.ID}, before, ts); err != nil {
			return err
		}

		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) isOrderCourier(ctx context.Context, tx repository.Tx, order *model.Order, accountID int64) (bool, error) {
	if order.AssignedBidID == nil {
		return false, nil
	}
	bid, err := tx.GetBid(ctx, *order.AssignedBidID)
	if err != nil {
		return false, err
	}
	return bid.DeliveryPersonID == accountID, nil
}

func (s *Service) isOrderChef(ctx context.Context, tx repository.Tx, order *model.Order, accountID int64) (bool, error) {
	ids := make([]int64, 0, len(order.Items))
	for _, it := range order.Items {
		ids = append(ids, it.DishID)
	}
	dishes, err := tx.GetDishes(ctx, ids)
	if err != nil {
		return false, err
	}
	for _, d := range dishes {
		if d.ChefID == accountID {
			return true, nil
		}
	}
	return false, nil
}

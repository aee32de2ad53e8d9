package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/restaurant-marketplace/internal/audit"
	"github.com/mmeshcher/restaurant-marketplace/internal/bidding"
	"github.com/mmeshcher/restaurant-marketplace/internal/ledger"
	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/repository"
)

// BidView дополняет ставку признаком минимальной по заказу.
type BidView struct {
	model.Bid
	Lowest bool
}

// PlaceBid принимает ставку курьера. Первая ставка по заказу открывает окно торгов.
func (s *Service) PlaceBid(ctx context.Context, deliveryPersonID, orderID, amount int64, estimatedMinutes int) (*model.Bid, error) {
	var bid *model.Bid
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		bidder, err := tx.LockAccount(ctx, deliveryPersonID)
		if err != nil {
			return err
		}
		bids, err := tx.ListBids(ctx, orderID)
		if err != nil {
			return err
		}
		last, err := tx.LastBidAt(ctx, deliveryPersonID)
		if err != nil {
			return err
		}

		now := s.now()
		closesAt, err := s.opts.Bidding.CheckPlacement(now, bidding.Placement{
			Order:            order,
			Bidder:           bidder,
			Bids:             bids,
			LastBidAt:        last,
			Amount:           amount,
			EstimatedMinutes: estimatedMinutes,
		})
		if err != nil {
			return err
		}

		if order.BiddingClosesAt == nil {
			order.BiddingClosesAt = &closesAt
			if err := tx.UpdateOrder(ctx, order); err != nil {
				return err
			}
		}

		b := &model.Bid{
			OrderID:          orderID,
			DeliveryPersonID: deliveryPersonID,
			Amount:           amount,
			EstimatedMinutes: estimatedMinutes,
			CreatedAt:        now,
		}
		if err := tx.CreateBid(ctx, b); err != nil {
			return err
		}
		bid = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// ListBids возвращает ставки по заказу. Доступно менеджерам, курьерам и покупателю заказа.
func (s *Service) ListBids(ctx context.Context, actorID, orderID int64) ([]BidView, error) {
	var res []BidView
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		actor, err := tx.GetAccount(ctx, actorID)
		if err != nil {
			return err
		}
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if actor.Role != model.RoleManager && actor.Role != model.RoleDelivery && order.CustomerID != actor.ID {
			return model.Forbiddenf("bids on order %d are not visible to account %d", orderID, actorID)
		}

		bids, err := tx.ListBids(ctx, orderID)
		if err != nil {
			return err
		}
		lowest, _ := bidding.Lowest(bids)
		res = make([]BidView, 0, len(bids))
		for _, b := range bids {
			res = append(res, BidView{Bid: b, Lowest: b.ID == lowest.ID})
		}
		return nil
	})
	return res, err
}

// AssignDelivery назначает заказ курьеру по его ставке. Выбор не минимальной ставки
// требует обоснования.
func (s *Service) AssignDelivery(ctx context.Context, managerID, orderID, deliveryPersonID int64, memo string) (*model.Order, error) {
	var result *model.Order
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := requireManager(ctx, tx, managerID); err != nil {
			return err
		}
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		bids, err := tx.ListBids(ctx, orderID)
		if err != nil {
			return err
		}

		var selected *model.Bid
		for i := range bids {
			if bids[i].DeliveryPersonID == deliveryPersonID {
				selected = &bids[i]
				break
			}
		}
		if selected == nil {
			return model.NotFoundf("no bid from delivery person %d on order %d", deliveryPersonID, orderID)
		}

		courier, err := tx.LockAccount(ctx, deliveryPersonID)
		if err != nil {
			return err
		}
		if courier.Employee == nil || courier.Employee.Status == model.EmploymentFired {
			return model.Statef("delivery person %d cannot be assigned", deliveryPersonID)
		}

		cleaned, err := bidding.CheckAssignment(order, bids, *selected, memo)
		if err != nil {
			return err
		}

		order.Status = model.OrderStatusAssigned
		order.AssignedBidID = &selected.ID
		order.AssignmentMemo = cleaned
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}

		lowest, _ := bidding.Lowest(bids)
		err = s.emitter(tx, &managerID).Record(ctx, model.AuditAssignment, deliveryPersonID, audit.Ref{OrderID: &order.ID}, map[string]any{
			"bid_id":        selected.ID,
			"amount":        selected.Amount,
			"lowest_bid_id": lowest.ID,
			"memo":          cleaned,
		})
		if err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkDelivered завершает доставку: фиксирует своевременность, пересчитываемую
// статистику курьера и выплату по ставке.
func (s *Service) MarkDelivered(ctx context.Context, deliveryPersonID, orderID int64) (*model.Order, error) {
	var result *model.Order
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderStatusAssigned || order.AssignedBidID == nil {
			return model.Statef("order %d is %s, not assigned", orderID, order.Status)
		}
		bid, err := tx.GetBid(ctx, *order.AssignedBidID)
		if err != nil {
			return err
		}
		if bid.DeliveryPersonID != deliveryPersonID {
			return model.Forbiddenf("order %d is assigned to another delivery person", orderID)
		}
		courier, err := tx.LockAccount(ctx, deliveryPersonID)
		if err != nil {
			return err
		}

		now := s.now()
		onTime, minutes := bidding.OnTime(order, *bid, now)

		order.Status = model.OrderStatusDelivered
		order.DeliveredAt = &now
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.CreateDeliveryReview(ctx, &model.DeliveryReview{
			OrderID:          order.ID,
			DeliveryPersonID: deliveryPersonID,
			OnTime:           onTime,
			DeliveryMinutes:  minutes,
			DeliveredAt:      now,
		}); err != nil {
			return err
		}
		if _, err := ledger.Post(ctx, tx, courier, bid.Amount, model.TxDeliveryPayout, fmt.Sprintf("order:%d", order.ID)); err != nil {
			return err
		}

		err = s.emitter(tx, &deliveryPersonID).Record(ctx, model.AuditDelivery, deliveryPersonID, audit.Ref{OrderID: &order.ID}, map[string]any{
			"on_time":           onTime,
			"delivery_minutes":  minutes,
			"estimated_minutes": bid.EstimatedMinutes,
			"payout":            bid.Amount,
		})
		if err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetDeliveryRating пересчитывает статистику курьера по истории доставок.
func (s *Service) GetDeliveryRating(ctx context.Context, deliveryPersonID int64) (model.DeliveryRating, error) {
	var res model.DeliveryRating
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		courier, err := tx.GetAccount(ctx, deliveryPersonID)
		if err != nil {
			return err
		}
		if courier.Role != model.RoleDelivery {
			return model.NotFoundf("delivery person %d", deliveryPersonID)
		}
		reviews, err := tx.ListDeliveryReviews(ctx, deliveryPersonID)
		if err != nil {
			return err
		}
		res = bidding.Rollup(deliveryPersonID, reviews)
		return nil
	})
	return res, err
}

package handler

import (
	"time"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/service"
)

type employeeResponse struct {
	RollingAvgRating float64 `json:"rolling_avg_rating"`
	TotalRatingCount int     `json:"total_rating_count"`
	ComplaintCount   int     `json:"complaint_count"`
	ComplimentCount  int     `json:"compliment_count"`
	TimesDemoted     int     `json:"times_demoted"`
	EmploymentStatus string  `json:"employment_status"`
	IsFired          bool    `json:"is_fired"`
	Wage             int64   `json:"wage"`
}

type customerResponse struct {
	Warnings             int    `json:"warnings"`
	CustomerTier         string `json:"customer_tier"`
	PreviousType         string `json:"previous_type,omitempty"`
	IsBlacklisted        bool   `json:"is_blacklisted"`
	FreeDeliveryCredits  int    `json:"free_delivery_credits"`
	CompletedOrdersCount int    `json:"completed_orders_count"`
	TotalSpent           int64  `json:"total_spent"`
}

type accountResponse struct {
	ID        int64             `json:"id"`
	Email     string            `json:"email"`
	Name      string            `json:"name,omitempty"`
	Role      string            `json:"role"`
	Balance   int64             `json:"balance"`
	CreatedAt string            `json:"created_at"`
	Employee  *employeeResponse `json:"employee,omitempty"`
	Customer  *customerResponse `json:"customer,omitempty"`
}

func toAccount(a *model.Account) accountResponse {
	resp := accountResponse{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Role:      string(a.Role),
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if e := a.Employee; e != nil {
		resp.Employee = &employeeResponse{
			RollingAvgRating: e.RollingAvgRating,
			TotalRatingCount: e.TotalRatingCount,
			ComplaintCount:   e.ComplaintCount,
			ComplimentCount:  e.ComplimentCount,
			TimesDemoted:     e.TimesDemoted,
			EmploymentStatus: string(e.Status),
			IsFired:          e.IsFired,
			Wage:             e.Wage,
		}
	}
	if c := a.Customer; c != nil {
		resp.Customer = &customerResponse{
			Warnings:             c.Warnings,
			CustomerTier:         string(c.Tier),
			PreviousType:         string(c.PreviousType),
			IsBlacklisted:        c.IsBlacklisted,
			FreeDeliveryCredits:  c.FreeDeliveryCredits,
			CompletedOrdersCount: c.CompletedOrdersCount,
			TotalSpent:           c.TotalSpent,
		}
	}
	return resp
}

type transactionResponse struct {
	ID            int64  `json:"id"`
	Amount        int64  `json:"amount"`
	BalanceBefore int64  `json:"balance_before"`
	BalanceAfter  int64  `json:"balance_after"`
	Type          string `json:"type"`
	Reference     string `json:"reference,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toTransaction(t model.Transaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID,
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		Type:          string(t.Type),
		Reference:     t.Reference,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
	}
}

type dishResponse struct {
	ID     int64  `json:"id"`
	ChefID int64  `json:"chef_id"`
	Name   string `json:"name"`
	Price  int64  `json:"price"`
}

func toDish(d model.Dish) dishResponse {
	return dishResponse{ID: d.ID, ChefID: d.ChefID, Name: d.Name, Price: d.Price}
}

type orderItemResponse struct {
	DishID    int64 `json:"dish_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	CustomerID      int64               `json:"customer_id"`
	Items           []orderItemResponse `json:"items"`
	DeliveryAddress string              `json:"delivery_address"`
	Status          string              `json:"status"`
	Subtotal        int64               `json:"subtotal"`
	Discount        int64               `json:"discount"`
	DeliveryFee     int64               `json:"delivery_fee"`
	FinalCost       int64               `json:"final_cost"`
	AssignedBidID   *int64              `json:"assigned_bid_id,omitempty"`
	AssignmentMemo  string              `json:"assignment_memo,omitempty"`
	BiddingClosesAt *time.Time          `json:"bidding_closes_at,omitempty"`
	CreatedAt       string              `json:"created_at"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
}

func toOrder(o *model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{DishID: it.DishID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Items:           items,
		DeliveryAddress: o.DeliveryAddress,
		Status:          string(o.Status),
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		DeliveryFee:     o.DeliveryFee,
		FinalCost:       o.FinalCost,
		AssignedBidID:   o.AssignedBidID,
		AssignmentMemo:  o.AssignmentMemo,
		BiddingClosesAt: o.BiddingClosesAt,
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
		DeliveredAt:     o.DeliveredAt,
	}
}

func toOrders(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrder(&orders[i]))
	}
	return resp
}

type bidResponse struct {
	ID               int64  `json:"id"`
	OrderID          int64  `json:"order_id"`
	DeliveryPersonID int64  `json:"delivery_person_id"`
	Amount           int64  `json:"amount"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	Lowest           bool   `json:"lowest"`
	CreatedAt        string `json:"created_at"`
}

func toBid(b model.Bid, lowest bool) bidResponse {
	return bidResponse{
		ID:               b.ID,
		OrderID:          b.OrderID,
		DeliveryPersonID: b.DeliveryPersonID,
		Amount:           b.Amount,
		EstimatedMinutes: b.EstimatedMinutes,
		Lowest:           lowest,
		CreatedAt:        b.CreatedAt.Format(time.RFC3339),
	}
}

func toBids(views []service.BidView) []bidResponse {
	resp := make([]bidResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toBid(v.Bid, v.Lowest))
	}
	return resp
}

type complaintResponse struct {
	ID              int64      `json:"id"`
	Kind            string     `json:"kind"`
	FilerID         int64      `json:"filer_id"`
	TargetID        int64      `json:"target_id"`
	OrderID         *int64     `json:"order_id,omitempty"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	Resolution      string     `json:"resolution,omitempty"`
	Disputed        bool       `json:"disputed"`
	DisputeReason   string     `json:"dispute_reason,omitempty"`
	ResolvedBy      *int64     `json:"resolved_by,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	CreatedAt       string     `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

func toComplaint(c *model.Complaint) complaintResponse {
	return complaintResponse{
		ID:              c.ID,
		Kind:            string(c.Kind),
		FilerID:         c.FilerID,
		TargetID:        c.TargetID,
		OrderID:         c.OrderID,
		Description:     c.Description,
		Status:          string(c.Status),
		Resolution:      string(c.Resolution),
		Disputed:        c.Disputed,
		DisputeReason:   c.DisputeReason,
		ResolvedBy:      c.ResolvedBy,
		ResolutionNotes: c.ResolutionNotes,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
		ResolvedAt:      c.ResolvedAt,
	}
}

type ratingResponse struct {
	ID       int64 `json:"id"`
	OrderID  int64 `json:"order_id"`
	TargetID int64 `json:"target_id"`
	Score    int   `json:"score"`
	OnTime   *bool `json:"on_time,omitempty"`
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

func (t *pgTx) CreateDish(ctx context.Context, d *model.Dish) error {
	d.CreatedAt = stamp(d.CreatedAt)
	err := t.tx.QueryRow(ctx,
		`INSERT INTO dishes (chef_id, name, price, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		d.ChefID, d.Name, d.Price, d.CreatedAt,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("create dish: %w", err)
	}
	return nil
}

func (t *pgTx) ListDishes(ctx context.Context) ([]model.Dish, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, chef_id, name, price, created_at FROM dishes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select dishes: %w", err)
	}
	return collectDishes(rows)
}

// GetDishes возвращает найденные блюда по идентификаторам. Отсутствующие пропускаются.
func (t *pgTx) GetDishes(ctx context.Context, ids []int64) (map[int64]model.Dish, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, chef_id, name, price, created_at FROM dishes WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select dishes: %w", err)
	}
	dishes, err := collectDishes(rows)
	if err != nil {
		return nil, err
	}

	res := make(map[int64]model.Dish, len(dishes))
	for _, d := range dishes {
		res[d.ID] = d
	}
	return res, nil
}

func collectDishes(rows pgx.Rows) ([]model.Dish, error) {
	defer rows.Close()

	var res []model.Dish
	for rows.Next() {
		var d model.Dish
		if err := rows.Scan(&d.ID, &d.ChefID, &d.Name, &d.Price, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dish: %w", err)
		}
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

const orderColumns = `o.id, o.customer_id, o.delivery_address, o.status, o.subtotal, o.discount,
	o.delivery_fee, o.final_cost, o.assigned_bid_id, o.assignment_memo, o.bidding_closes_at,
	o.created_at, o.delivered_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		status string
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.DeliveryAddress, &status, &o.Subtotal, &o.Discount,
		&o.DeliveryFee, &o.FinalCost, &o.AssignedBidID, &o.AssignmentMemo, &o.BiddingClosesAt,
		&o.CreatedAt, &o.DeliveredAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// CreateOrder сохраняет заказ вместе с позициями.
func (t *pgTx) CreateOrder(ctx context.Context, o *model.Order) error {
	o.CreatedAt = stamp(o.CreatedAt)
	err := t.tx.QueryRow(ctx,
		`INSERT INTO orders (customer_id, delivery_address, status, subtotal, discount, delivery_fee, final_cost, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		o.CustomerID, o.DeliveryAddress, string(o.Status), o.Subtotal, o.Discount, o.DeliveryFee, o.FinalCost, o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(
			`INSERT INTO order_items (order_id, dish_id, quantity, unit_price) VALUES ($1, $2, $3, $4)`,
			o.ID, it.DishID, it.Quantity, it.UnitPrice,
		)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		if isUniqueViolation(err) {
			return model.Validationf("each dish may appear only once per order")
		}
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (t *pgTx) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return t.getOrder(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id)
}

// LockOrder читает заказ с блокировкой строки до конца транзакции.
func (t *pgTx) LockOrder(ctx context.Context, id int64) (*model.Order, error) {
	return t.getOrder(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, id)
}

func (t *pgTx) getOrder(ctx context.Context, query string, id int64) (*model.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "order %d", id)
	}
	if err := t.loadItems(ctx, []*model.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (t *pgTx) loadItems(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[int64]*model.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := t.tx.Query(ctx,
		`SELECT order_id, dish_id, quantity, unit_price FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, dish_id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			it      model.OrderItem
		)
		if err := rows.Scan(&orderID, &it.DishID, &it.Quantity, &it.UnitPrice); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		byID[orderID].Items = append(byID[orderID].Items, it)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *model.Order) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE orders SET status = $2, assigned_bid_id = $3, assignment_memo = $4,
			bidding_closes_at = $5, delivered_at = $6
		 WHERE id = $1`,
		o.ID, string(o.Status), o.AssignedBidID, o.AssignmentMemo, o.BiddingClosesAt, o.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("order %d", o.ID)
	}
	return nil
}

// ListOrders возвращает заказы покупателя и заказы, назначенные курьеру.
func (t *pgTx) ListOrders(ctx context.Context, accountID int64) ([]model.Order, error) {
	return t.listOrders(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o
		 LEFT JOIN bids b ON b.id = o.assigned_bid_id
		 WHERE o.customer_id = $1 OR b.delivery_person_id = $1
		 ORDER BY o.created_at DESC, o.id DESC`,
		accountID,
	)
}

// ListOpenOrders возвращает оплаченные заказы, ожидающие назначения курьера.
func (t *pgTx) ListOpenOrders(ctx context.Context) ([]model.Order, error) {
	return t.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.status = $1 ORDER BY o.created_at, o.id`,
		string(model.OrderStatusPaid),
	)
}

func (t *pgTx) listOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}

	var ptrs []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		ptrs = append(ptrs, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := t.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}

	res := make([]model.Order, 0, len(ptrs))
	for _, o := range ptrs {
		res = append(res, *o)
	}
	return res, nil
}

// ListOrderParticipants возвращает участников заказов, где учётная запись была
// покупателем или назначенным курьером.
func (t *pgTx) ListOrderParticipants(ctx context.Context, accountID int64) ([]model.OrderParticipants, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT o.id, o.customer_id, COALESCE(b.delivery_person_id, 0),
			COALESCE(array_agg(DISTINCT d.chef_id) FILTER (WHERE d.chef_id IS NOT NULL), '{}')
		 FROM orders o
		 LEFT JOIN bids b ON b.id = o.assigned_bid_id
		 LEFT JOIN order_items i ON i.order_id = o.id
		 LEFT JOIN dishes d ON d.id = i.dish_id
		 WHERE o.customer_id = $1 OR b.delivery_person_id = $1
		 GROUP BY o.id, o.customer_id, b.delivery_person_id
		 ORDER BY o.id`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order participants: %w", err)
	}
	defer rows.Close()

	var res []model.OrderParticipants
	for rows.Next() {
		var p model.OrderParticipants
		if err := rows.Scan(&p.OrderID, &p.CustomerID, &p.DeliveryPersonID, &p.ChefIDs); err != nil {
			return nil, fmt.Errorf("scan order participants: %w", err)
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// CreateBid сохраняет ставку. Повторная ставка курьера по заказу возвращает ошибку
// конфликта.
func (t *pgTx) CreateBid(ctx context.Context, b *model.Bid) error {
	b.CreatedAt = stamp(b.CreatedAt)
	err := t.tx.QueryRow(ctx,
		`INSERT INTO bids (order_id, delivery_person_id, amount, estimated_minutes, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		b.OrderID, b.DeliveryPersonID, b.Amount, b.EstimatedMinutes, b.CreatedAt,
	).Scan(&b.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Conflictf("delivery person %d already bid on order %d", b.DeliveryPersonID, b.OrderID)
		}
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

func (t *pgTx) GetBid(ctx context.Context, id int64) (*model.Bid, error) {
	var b model.Bid
	err := t.tx.QueryRow(ctx,
		`SELECT id, order_id, delivery_person_id, amount, estimated_minutes, created_at FROM bids WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.OrderID, &b.DeliveryPersonID, &b.Amount, &b.EstimatedMinutes, &b.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "bid %d", id)
	}
	return &b, nil
}

// ListBids возвращает ставки по заказу в порядке поступления.
func (t *pgTx) ListBids(ctx context.Context, orderID int64) ([]model.Bid, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, order_id, delivery_person_id, amount, estimated_minutes, created_at
		 FROM bids WHERE order_id = $1 ORDER BY created_at, id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select bids: %w", err)
	}
	defer rows.Close()

	var res []model.Bid
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.ID, &b.OrderID, &b.DeliveryPersonID, &b.Amount, &b.EstimatedMinutes, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		res = append(res, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// LastBidAt возвращает время последней ставки курьера по любому заказу.
func (t *pgTx) LastBidAt(ctx context.Context, deliveryPersonID int64) (*time.Time, error) {
	var last *time.Time
	err := t.tx.QueryRow(ctx,
		`SELECT max(created_at) FROM bids WHERE delivery_person_id = $1`,
		deliveryPersonID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("select last bid: %w", err)
	}
	return last, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

const complaintColumns = `id, kind, filer_id, target_id, order_id, description, status, resolution,
	disputed, dispute_reason, disputed_at, resolved_by, resolution_notes, created_at, resolved_at`

func scanComplaint(row pgx.Row) (*model.Complaint, error) {
	var (
		c                        model.Complaint
		kind, status, resolution string
	)
	err := row.Scan(&c.ID, &kind, &c.FilerID, &c.TargetID, &c.OrderID, &c.Description, &status, &resolution,
		&c.Disputed, &c.DisputeReason, &c.DisputedAt, &c.ResolvedBy, &c.ResolutionNotes, &c.CreatedAt, &c.ResolvedAt)
	if err != nil {
		return nil, err
	}
	c.Kind = model.ComplaintKind(kind)
	c.Status = model.ComplaintStatus(status)
	c.Resolution = model.Resolution(resolution)
	return &c, nil
}

func (t *pgTx) CreateComplaint(ctx context.Context, c *model.Complaint) error {
	c.CreatedAt = stamp(c.CreatedAt)
	err := t.tx.QueryRow(ctx,
		`INSERT INTO complaints (kind, filer_id, target_id, order_id, description, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		string(c.Kind), c.FilerID, c.TargetID, c.OrderID, c.Description, string(c.Status), c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}
	return nil
}

// GetComplaint читает жалобу без блокировки строки.
func (t *pgTx) GetComplaint(ctx context.Context, id int64) (*model.Complaint, error) {
	c, err := scanComplaint(t.tx.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "complaint %d", id)
	}
	return c, nil
}

// LockComplaint читает жалобу с блокировкой строки. Учётные записи участников
// блокируются раньше жалобы.
func (t *pgTx) LockComplaint(ctx context.Context, id int64) (*model.Complaint, error) {
	c, err := scanComplaint(t.tx.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFoundOr(err, "complaint %d", id)
	}
	return c, nil
}

func (t *pgTx) UpdateComplaint(ctx context.Context, c *model.Complaint) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE complaints SET status = $2, resolution = $3, disputed = $4, dispute_reason = $5,
			disputed_at = $6, resolved_by = $7, resolution_notes = $8, resolved_at = $9
		 WHERE id = $1`,
		c.ID, string(c.Status), string(c.Resolution), c.Disputed, c.DisputeReason,
		c.DisputedAt, c.ResolvedBy, c.ResolutionNotes, c.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("update complaint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("complaint %d", c.ID)
	}
	return nil
}

// LockOldestPendingComplaint блокирует самую раннюю жалобу в статусе pending против
// адресата. Возвращает nil, если такой нет.
func (t *pgTx) LockOldestPendingComplaint(ctx context.Context, targetID int64) (*model.Complaint, error) {
	c, err := scanComplaint(t.tx.QueryRow(ctx,
		`SELECT `+complaintColumns+` FROM complaints
		 WHERE target_id = $1 AND kind = $2 AND status = $3
		 ORDER BY created_at, id
		 LIMIT 1
		 FOR UPDATE`,
		targetID, string(model.KindComplaint), string(model.ComplaintPending),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select oldest pending complaint: %w", err)
	}
	return c, nil
}

// CountUnresolvedFiled считает нерассмотренные жалобы, поданные учётной записью.
func (t *pgTx) CountUnresolvedFiled(ctx context.Context, filerID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT count(*) FROM complaints WHERE filer_id = $1 AND kind = $2 AND status <> $3`,
		filerID, string(model.KindComplaint), string(model.ComplaintResolved),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unresolved complaints: %w", err)
	}
	return n, nil
}

// ListComplaints возвращает жалобы в указанном статусе или все при пустом статусе.
func (t *pgTx) ListComplaints(ctx context.Context, status model.ComplaintStatus) ([]model.Complaint, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+complaintColumns+` FROM complaints
		 WHERE $1 = '' OR status = $1
		 ORDER BY created_at, id`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select complaints: %w", err)
	}
	defer rows.Close()

	var res []model.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		res = append(res, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// CreateRating сохраняет оценку. Повторная оценка той же стороны по заказу возвращает
// ошибку конфликта.
func (t *pgTx) CreateRating(ctx context.Context, r *model.Rating) error {
	r.CreatedAt = stamp(r.CreatedAt)
	err := t.tx.QueryRow(ctx,
		`INSERT INTO ratings (order_id, rater_id, target_id, score, on_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		r.OrderID, r.RaterID, r.TargetID, r.Score, r.OnTime, r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Conflictf("account %d is already rated for order %d", r.TargetID, r.OrderID)
		}
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func (t *pgTx) CreateDeliveryReview(ctx context.Context, r *model.DeliveryReview) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO delivery_reviews (order_id, delivery_person_id, rating, on_time, delivery_minutes, delivered_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.OrderID, r.DeliveryPersonID, r.Rating, r.OnTime, r.DeliveryMinutes, stamp(r.DeliveredAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Conflictf("order %d is already delivered", r.OrderID)
		}
		return fmt.Errorf("insert delivery review: %w", err)
	}
	return nil
}

func (t *pgTx) SetDeliveryReviewRating(ctx context.Context, orderID int64, score int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE delivery_reviews SET rating = $2 WHERE order_id = $1`, orderID, score)
	if err != nil {
		return fmt.Errorf("update delivery review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("delivery review for order %d", orderID)
	}
	return nil
}

func (t *pgTx) ListDeliveryReviews(ctx context.Context, deliveryPersonID int64) ([]model.DeliveryReview, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT order_id, delivery_person_id, rating, on_time, delivery_minutes, delivered_at
		 FROM delivery_reviews WHERE delivery_person_id = $1 ORDER BY delivered_at`,
		deliveryPersonID,
	)
	if err != nil {
		return nil, fmt.Errorf("select delivery reviews: %w", err)
	}
	defer rows.Close()

	var res []model.DeliveryReview
	for rows.Next() {
		var r model.DeliveryReview
		if err := rows.Scan(&r.OrderID, &r.DeliveryPersonID, &r.Rating, &r.OnTime, &r.DeliveryMinutes, &r.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan delivery review: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

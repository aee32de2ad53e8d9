package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

func (t *pgTx) InsertTransaction(ctx context.Context, tr *model.Transaction) error {
	tr.CreatedAt = stamp(tr.CreatedAt)
	err := t.tx.QueryRow(ctx,
		`INSERT INTO transactions (account_id, amount, balance_before, balance_after, type, reference, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		tr.AccountID, tr.Amount, tr.BalanceBefore, tr.BalanceAfter, string(tr.Type), tr.Reference, tr.CreatedAt,
	).Scan(&tr.ID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListTransactions возвращает журнал операций учётной записи в порядке записи.
func (t *pgTx) ListTransactions(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, account_id, amount, balance_before, balance_after, type, reference, created_at
		 FROM transactions WHERE account_id = $1 ORDER BY id`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		var (
			tr  model.Transaction
			typ string
		)
		if err := rows.Scan(&tr.ID, &tr.AccountID, &tr.Amount, &tr.BalanceBefore, &tr.BalanceAfter, &typ, &tr.Reference, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tr.Type = model.TransactionType(typ)
		res = append(res, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func (t *pgTx) InsertAuditLog(ctx context.Context, l *model.AuditLog) error {
	l.CreatedAt = stamp(l.CreatedAt)
	err := t.tx.QueryRow(ctx,
		`INSERT INTO audit_logs (action_type, actor_id, target_id, complaint_id, order_id, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		string(l.ActionType), l.ActorID, l.TargetID, l.ComplaintID, l.OrderID, l.Details, l.CreatedAt,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs возвращает последние записи аудита, при targetID != nil только по
// одной учётной записи.
func (t *pgTx) ListAuditLogs(ctx context.Context, targetID *int64, limit int) ([]model.AuditLog, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, action_type, actor_id, target_id, complaint_id, order_id, details, created_at
		 FROM audit_logs
		 WHERE $1::bigint IS NULL OR target_id = $1
		 ORDER BY id DESC
		 LIMIT $2`,
		targetID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select audit logs: %w", err)
	}
	defer rows.Close()

	var res []model.AuditLog
	for rows.Next() {
		var (
			l      model.AuditLog
			action string
		)
		if err := rows.Scan(&l.ID, &action, &l.ActorID, &l.TargetID, &l.ComplaintID, &l.OrderID, &l.Details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		l.ActionType = model.AuditAction(action)
		res = append(res, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func (t *pgTx) InsertNotification(ctx context.Context, n *model.Notification) error {
	n.CreatedAt = stamp(n.CreatedAt)
	err := t.tx.QueryRow(ctx,
		`INSERT INTO notifications (kind, subject_id, message, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		string(n.Kind), n.SubjectID, n.Message, n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (t *pgTx) ListNotifications(ctx context.Context, unreadOnly bool) ([]model.Notification, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, kind, subject_id, message, read, created_at
		 FROM notifications
		 WHERE NOT $1 OR NOT read
		 ORDER BY id DESC`,
		unreadOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var (
			n    model.Notification
			kind string
		)
		if err := rows.Scan(&n.ID, &kind, &n.SubjectID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = model.NotificationKind(kind)
		res = append(res, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func (t *pgTx) MarkNotificationRead(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("notification %d", id)
	}
	return nil
}

func (t *pgTx) InsertBlacklist(ctx context.Context, b *model.Blacklist) error {
	b.CreatedAt = stamp(b.CreatedAt)
	err := t.tx.QueryRow(ctx,
		`INSERT INTO blacklist (account_id, manager_id, reason, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		b.AccountID, b.ManagerID, b.Reason, b.CreatedAt,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("insert blacklist: %w", err)
	}
	return nil
}

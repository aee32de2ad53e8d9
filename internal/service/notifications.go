package service

import (
	"context"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/repository"
)

// ListNotifications возвращает уведомления менеджеров.
func (s *Service) ListNotifications(ctx context.Context, managerID int64, unreadOnly bool) ([]model.Notification, error) {
	var res []model.Notification
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := requireManager(ctx, tx, managerID); err != nil {
			return err
		}
		var err error
		res, err = tx.ListNotifications(ctx, unreadOnly)
		return err
	})
	return res, err
}

// MarkNotificationRead помечает уведомление прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, managerID, notificationID int64) error {
	return s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := requireManager(ctx, tx, managerID); err != nil {
			return err
		}
		return tx.MarkNotificationRead(ctx, notificationID)
	})
}

// ListAuditLogs возвращает записи аудита. Менеджер видит все записи, остальные только
// записи о себе.
func (s *Service) ListAuditLogs(ctx context.Context, actorID int64, targetID *int64, limit int) ([]model.AuditLog, error) {
	switch {
	case limit <= 0:
		limit = 100
	case limit > 500:
		limit = 500
	}

	var res []model.AuditLog
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		actor, err := tx.GetAccount(ctx, actorID)
		if err != nil {
			return err
		}
		if actor.Role != model.RoleManager {
			if targetID != nil && *targetID != actorID {
				return model.Forbiddenf("audit log of account %d is not visible to account %d", *targetID, actorID)
			}
			targetID = &actorID
		}
		res, err = tx.ListAuditLogs(ctx, targetID, limit)
		return err
	})
	return res, err
}

package service

import (
	"context"

	"github.com/mmeshcher/restaurant-marketplace/internal/audit"
	"github.com/mmeshcher/restaurant-marketplace/internal/repository"
	"github.com/mmeshcher/restaurant-marketplace/internal/reputation"
)

// SweepCandidates возвращает учётные записи, изменившиеся с момента последнего обхода.
func (s *Service) SweepCandidates(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		ids, err = tx.ListSweepCandidates(ctx)
		return err
	})
	return ids, err
}

// SweepAccount повторно оценивает одну учётную запись под блокировкой строки. Обход
// только уведомляет и повышает до VIP: понижения применяются исключительно запросами,
// поэтому обход не может применить их повторно. Возвращает false, если запись уже
// обработана в текущей версии.
func (s *Service) SweepAccount(ctx context.Context, accountID int64) (bool, error) {
	var swept bool
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		swept = false

		a, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if a.Version == a.SweptVersion {
			return nil
		}

		em := s.emitter(tx, nil)
		switch {
		case a.Employee != nil:
			if kind, ok := s.opts.Reputation.PerformanceAlert(a.Employee); ok {
				if err := em.Notify(ctx, kind, a.ID, "%s %d: rating %.2f, complaints %d",
					a.Role, a.ID, a.Employee.RollingAvgRating, a.Employee.ComplaintCount); err != nil {
					return err
				}
			}
		case a.Customer != nil:
			unresolved, err := tx.CountUnresolvedFiled(ctx, a.ID)
			if err != nil {
				return err
			}
			if s.opts.Reputation.VIPEligible(a, unresolved) {
				t := reputation.PromoteVIP(a)
				if err := tx.SaveAccount(ctx, a); err != nil {
					return err
				}
				if err := em.Transitions(ctx, a.ID, audit.Ref{}, []reputation.Transition{t}); err != nil {
					return err
				}
			}
		}

		if err := tx.MarkSwept(ctx, a.ID, a.Version); err != nil {
			return err
		}
		swept = true
		return nil
	})
	return swept, err
}

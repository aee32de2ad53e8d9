package service

import (
	"context"
	"time"

	"github.com/mmeshcher/restaurant-marketplace/internal/audit"
	"github.com/mmeshcher/restaurant-marketplace/internal/complaint"
	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/repository"
	"github.com/mmeshcher/restaurant-marketplace/internal/reputation"
)

// ComplaintInput содержит данные новой жалобы или благодарности.
type ComplaintInput struct {
	FilerID     int64
	TargetID    int64
	Kind        model.ComplaintKind
	Description string
	OrderID     *int64
}

// FileComplaint регистрирует жалобу или благодарность. Жалоба влияет на сотрудника
// только после решения warning_issued, благодарность сначала погашает самую раннюю
// ожидающую жалобу на того же адресата.
func (s *Service) FileComplaint(ctx context.Context, in ComplaintInput) (*model.Complaint, error) {
	if in.FilerID == in.TargetID {
		return nil, model.Validationf("cannot file a %s against yourself", in.Kind)
	}

	var result *model.Complaint
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		filer, target, err := lockAccounts(ctx, tx, in.FilerID, in.TargetID)
		if err != nil {
			return err
		}
		orders, err := tx.ListOrderParticipants(ctx, filer.ID)
		if err != nil {
			return err
		}

		f := complaint.Filing{
			Filer:       filer,
			Target:      target,
			Kind:        in.Kind,
			Description: in.Description,
			OrderID:     in.OrderID,
			Orders:      orders,
		}
		if err := complaint.CheckFiling(f); err != nil {
			return err
		}

		now := s.now()
		c := complaint.New(f, now)
		if err := tx.CreateComplaint(ctx, c); err != nil {
			return err
		}

		em := s.emitter(tx, &filer.ID)
		ref := audit.Ref{ComplaintID: &c.ID, OrderID: c.OrderID}
		action := model.AuditComplaintFiled
		if c.Kind == model.KindCompliment {
			action = model.AuditComplimentFiled
		}
		if err := em.Record(ctx, action, target.ID, ref, map[string]any{"filer_role": string(filer.Role)}); err != nil {
			return err
		}

		if c.Kind == model.KindComplaint {
			err = em.Notify(ctx, model.NotifyNewComplaint, target.ID,
				"complaint %d filed against %s %d", c.ID, target.Role, target.ID)
		} else {
			err = s.onComplimentFiled(ctx, tx, em, c, target, ref, now)
		}
		if err != nil {
			return err
		}

		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) onComplimentFiled(ctx context.Context, tx repository.Tx, em *audit.Emitter, c *model.Complaint, target *model.Account, ref audit.Ref, now time.Time) error {
	pending, err := tx.LockOldestPendingComplaint(ctx, target.ID)
	if err != nil {
		return err
	}

	var before model.NotificationKind
	if target.Employee != nil {
		before = alertOf(s.opts.Reputation, target)
	}

	if pending != nil {
		if err := complaint.Cancel(pending, c, now); err != nil {
			return err
		}
		if err := tx.UpdateComplaint(ctx, pending); err != nil {
			return err
		}
		if err := tx.UpdateComplaint(ctx, c); err != nil {
			return err
		}
		if target.Employee != nil {
			reputation.CancelComplaint(target.Employee)
		}
		err := em.Record(ctx, model.AuditCancellation, target.ID, audit.Ref{ComplaintID: &pending.ID, OrderID: pending.OrderID}, map[string]any{
			"compliment_id": c.ID,
			"complaint_id":  pending.ID,
		})
		if err != nil {
			return err
		}
	}

	if target.Employee == nil {
		return nil
	}
	ts := s.opts.Reputation.OnCompliment(target.Employee)
	return s.saveEmployee(ctx, tx, em, target, ref, before, ts)
}

// DisputeComplaint оспаривает жалобу от имени её адресата.
func (s *Service) DisputeComplaint(ctx context.Context, targetID, complaintID int64, reason string) (*model.Complaint, error) {
	var result *model.Complaint
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		c, err := tx.LockComplaint(ctx, complaintID)
		if err != nil {
			return err
		}
		if err := complaint.Dispute(c, targetID, reason, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateComplaint(ctx, c); err != nil {
			return err
		}

		err = s.emitter(tx, &targetID).Record(ctx, model.AuditDispute, targetID, audit.Ref{ComplaintID: &c.ID, OrderID: c.OrderID}, map[string]any{
			"reason": c.DisputeReason,
		})
		if err != nil {
			return err
		}

		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ResolveComplaint фиксирует решение менеджера. Отклонённая жалоба даёт предупреждение
// подавшему покупателю. Обоснованная даёт предупреждение адресату-покупателю, а для
// сотрудника учитывается в счётчике жалоб с проверкой условия понижения.
func (s *Service) ResolveComplaint(ctx context.Context, managerID, complaintID int64, resolution model.Resolution, notes string) (*model.Complaint, error) {
	var result *model.Complaint
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := requireManager(ctx, tx, managerID); err != nil {
			return err
		}
		// Участники жалобы неизменны, поэтому их можно прочитать до блокировки и
		// заблокировать учётные записи раньше жалобы, как FileComplaint.
		peek, err := tx.GetComplaint(ctx, complaintID)
		if err != nil {
			return err
		}
		filer, target, err := lockAccounts(ctx, tx, peek.FilerID, peek.TargetID)
		if err != nil {
			return err
		}
		c, err := tx.LockComplaint(ctx, complaintID)
		if err != nil {
			return err
		}
		if err := complaint.Resolve(c, managerID, resolution, notes, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateComplaint(ctx, c); err != nil {
			return err
		}

		em := s.emitter(tx, &managerID)
		ref := audit.Ref{ComplaintID: &c.ID, OrderID: c.OrderID}
		if err := em.Record(ctx, model.AuditResolution, c.TargetID, ref, map[string]any{
			"resolution": string(c.Resolution),
			"disputed":   c.Disputed,
			"notes":      c.ResolutionNotes,
		}); err != nil {
			return err
		}

		switch c.Resolution {
		case model.ResolutionDismissed:
			if filer.Customer != nil {
				if err := s.warnCustomer(ctx, tx, em, filer, "dismissed_complaint", ref, &managerID); err != nil {
					return err
				}
			}
		case model.ResolutionWarningIssued:
			switch {
			case target.Customer != nil:
				err = s.warnCustomer(ctx, tx, em, target, "complaint_upheld", ref, &managerID)
			case target.Employee != nil:
				before := alertOf(s.opts.Reputation, target)
				err = s.saveEmployee(ctx, tx, em, target, ref, before, s.opts.Reputation.OnComplaint(target.Employee))
			}
			if err != nil {
				return err
			}
		}

		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListComplaints возвращает жалобы: менеджеру все, остальным поданные ими или на них.
func (s *Service) ListComplaints(ctx context.Context, actorID int64, status model.ComplaintStatus) ([]model.Complaint, error) {
	var res []model.Complaint
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		actor, err := tx.GetAccount(ctx, actorID)
		if err != nil {
			return err
		}
		all, err := tx.ListComplaints(ctx, status)
		if err != nil {
			return err
		}
		if actor.Role == model.RoleManager {
			res = all
			return nil
		}
		res = res[:0]
		for _, c := range all {
			if c.FilerID == actorID || c.TargetID == actorID {
				res = append(res, c)
			}
		}
		return nil
	})
	return res, err
}

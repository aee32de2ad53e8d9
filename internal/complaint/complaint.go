// Package complaint реализует журнал жалоб и благодарностей: проверку права подачи по
// общей истории заказов, оспаривание, рассмотрение менеджером и взаимное погашение
// жалобы благодарностью.
package complaint

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

// MinDisputeReason задаёт минимальную длину обоснования при оспаривании.
const MinDisputeReason = 10

// Filing содержит входные данные для проверки новой жалобы или благодарности.
type Filing struct {
	Filer       *model.Account
	Target      *model.Account
	Kind        model.ComplaintKind
	Description string
	OrderID     *int64
	// Orders содержит заказы, в которых участвовал подающий.
	Orders []model.OrderParticipants
}

// CheckFiling проверяет, что пара подающий/адресат подтверждается общим заказом.
func CheckFiling(f Filing) error {
	if f.Kind != model.KindComplaint && f.Kind != model.KindCompliment {
		return model.Validationf("unknown kind %q", f.Kind)
	}
	if strings.TrimSpace(f.Description) == "" {
		return model.Validationf("description is required")
	}
	if f.Filer.ID == f.Target.ID {
		return model.Validationf("cannot file a %s against yourself", f.Kind)
	}
	if c := f.Filer.Customer; c != nil && (c.IsBlacklisted || c.Tier == model.TierDeregistered) {
		return model.Statef("account %d is deregistered", f.Filer.ID)
	}
	if e := f.Filer.Employee; e != nil && e.Status == model.EmploymentFired {
		return model.Statef("account %d is fired", f.Filer.ID)
	}

	orders := f.Orders
	if f.OrderID != nil {
		orders = nil
		for _, o := range f.Orders {
			if o.OrderID == *f.OrderID {
				orders = append(orders, o)
			}
		}
		if len(orders) == 0 {
			return model.Validationf("order %d is not one of your orders", *f.OrderID)
		}
	}

	switch {
	case f.Filer.Role.IsCustomer():
		return checkCustomerFiling(f.Filer, f.Target, orders)
	case f.Filer.Role == model.RoleDelivery:
		return checkDeliveryFiling(f.Filer, f.Target, orders)
	default:
		return model.Validationf("role %s cannot file complaints or compliments", f.Filer.Role)
	}
}

func checkCustomerFiling(filer, target *model.Account, orders []model.OrderParticipants) error {
	switch target.Role {
	case model.RoleChef:
		for _, o := range orders {
			if o.CustomerID == filer.ID && slices.Contains(o.ChefIDs, target.ID) {
				return nil
			}
		}
		return model.Validationf("chef did not prepare any dishes in %s", scope(orders))
	case model.RoleDelivery:
		for _, o := range orders {
			if o.CustomerID == filer.ID && o.DeliveryPersonID == target.ID {
				return nil
			}
		}
		return model.Validationf("delivery person did not deliver %s", scope(orders))
	default:
		return model.Validationf("customers may only file against chefs or delivery personnel, target is %s", target.Role)
	}
}

func checkDeliveryFiling(filer, target *model.Account, orders []model.OrderParticipants) error {
	if !target.Role.IsCustomer() {
		return model.Validationf("delivery personnel may only file against customers, target is %s", target.Role)
	}
	for _, o := range orders {
		if o.DeliveryPersonID == filer.ID && o.CustomerID == target.ID {
			return nil
		}
	}
	return model.Validationf("customer did not place %s delivered by you", scope(orders))
}

func scope(orders []model.OrderParticipants) string {
	if len(orders) == 1 {
		return "this order"
	}
	return "any of your orders"
}

// New создаёт запись в статусе pending.
func New(f Filing, now time.Time) *model.Complaint {
	return &model.Complaint{
		Kind:        f.Kind,
		FilerID:     f.Filer.ID,
		TargetID:    f.Target.ID,
		OrderID:     f.OrderID,
		Description: strings.TrimSpace(f.Description),
		Status:      model.ComplaintPending,
		CreatedAt:   now,
	}
}

// Dispute переводит жалобу в статус disputed. Оспорить может только адресат и только
// жалобу в статусе pending.
func Dispute(c *model.Complaint, disputerID int64, reason string, now time.Time) error {
	if c.Kind == model.KindCompliment {
		return model.Validationf("compliments cannot be disputed")
	}
	if c.TargetID != disputerID {
		return model.Forbiddenf("only the target may dispute complaint %d", c.ID)
	}
	if c.Status != model.ComplaintPending {
		return model.Statef("complaint %d is %s, not pending", c.ID, c.Status)
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < MinDisputeReason {
		return model.Validationf("dispute reason must be at least %d characters", MinDisputeReason)
	}

	c.Status = model.ComplaintDisputed
	c.Disputed = true
	c.DisputeReason = reason
	c.DisputedAt = &now
	return nil
}

// Resolve фиксирует решение менеджера по жалобе в статусе pending или disputed.
func Resolve(c *model.Complaint, managerID int64, r model.Resolution, notes string, now time.Time) error {
	if c.Status == model.ComplaintResolved {
		return model.Conflictf("complaint %d is already resolved", c.ID)
	}
	if c.Kind == model.KindCompliment {
		return model.Validationf("compliments are not adjudicated")
	}
	if r != model.ResolutionDismissed && r != model.ResolutionWarningIssued {
		return model.Validationf("resolution must be %s or %s", model.ResolutionDismissed, model.ResolutionWarningIssued)
	}

	c.Status = model.ComplaintResolved
	c.Resolution = r
	c.ResolvedBy = &managerID
	c.ResolutionNotes = strings.TrimSpace(notes)
	c.ResolvedAt = &now
	return nil
}

// OldestPending выбирает самую раннюю жалобу в статусе pending против адресата.
func OldestPending(cs []model.Complaint, targetID int64) (model.Complaint, bool) {
	var (
		best  model.Complaint
		found bool
	)
	for _, c := range cs {
		if c.Kind != model.KindComplaint || c.TargetID != targetID || c.Status != model.ComplaintPending {
			continue
		}
		if !found || c.CreatedAt.Before(best.CreatedAt) || (c.CreatedAt.Equal(best.CreatedAt) && c.ID < best.ID) {
			best, found = c, true
		}
	}
	return best, found
}

// Cancel погашает жалобу благодарностью: обе записи закрываются парой.
func Cancel(complaint, compliment *model.Complaint, now time.Time) error {
	if complaint.Kind != model.KindComplaint || compliment.Kind != model.KindCompliment {
		return model.Validationf("cancellation pairs a complaint with a compliment")
	}
	if complaint.Status != model.ComplaintPending {
		return model.Statef("complaint %d is %s, not pending", complaint.ID, complaint.Status)
	}
	if complaint.TargetID != compliment.TargetID {
		return model.Validationf("complaint %d and compliment %d have different targets", complaint.ID, compliment.ID)
	}

	complaint.Status = model.ComplaintResolved
	complaint.Resolution = model.ResolutionCanceledByCompliment
	complaint.ResolvedAt = &now

	compliment.Status = model.ComplaintResolved
	compliment.Resolution = model.ResolutionCanceledComplaint
	compliment.ResolvedAt = &now
	return nil
}

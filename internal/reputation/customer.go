package reputation

import (
	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

// AddCustomerWarning начисляет покупателю предупреждение и применяет правила трека:
// VIP при достижении порога возвращается в обычные покупатели с обнулением
// предупреждений, обычный покупатель при достижении порога блокируется.
// Переход с действием AuditBlacklist означает, что вызывающий должен создать запись
// чёрного списка.
func (p Policy) AddCustomerWarning(a *model.Account, reason string) []Transition {
	c := a.Customer
	if c == nil || c.Tier == model.TierDeregistered {
		return nil
	}

	c.Warnings++
	ts := []Transition{{
		Action: model.AuditWarning,
		Details: map[string]any{
			"reason":   reason,
			"warnings": c.Warnings,
			"track":    "customer",
			"tier":     string(c.Tier),
		},
	}}

	switch c.Tier {
	case model.TierVIP:
		if c.Warnings >= p.VIPDemotionWarnings {
			warnings := c.Warnings
			c.Tier = model.TierRegistered
			c.PreviousType = model.RoleVIP
			c.Warnings = 0
			a.Role = model.RoleCustomer
			ts = append(ts, Transition{
				Action: model.AuditVIPDemotion,
				Details: map[string]any{
					"warnings_before": warnings,
					"previous_type":   string(model.RoleVIP),
				},
			})
		}
	case model.TierRegistered:
		if c.Warnings >= p.BlacklistWarnings {
			c.Tier = model.TierDeregistered
			c.IsBlacklisted = true
			ts = append(ts, Transition{
				Action: model.AuditBlacklist,
				Details: map[string]any{
					"warnings": c.Warnings,
					"reason":   reason,
				},
			})
		}
	}
	return ts
}

// VIPEligible проверяет право на повышение до VIP. Учётная запись, уже бывшая VIP,
// автоматически повторно не повышается.
func (p Policy) VIPEligible(a *model.Account, unresolvedFiled int) bool {
	c := a.Customer
	if c == nil || c.Tier != model.TierRegistered || c.IsBlacklisted {
		return false
	}
	if c.PreviousType == model.RoleVIP {
		return false
	}
	if unresolvedFiled > 0 {
		return false
	}
	return c.TotalSpent >= p.VIPSpendThreshold || c.CompletedOrdersCount >= p.VIPOrderThreshold
}

// PromoteVIP переводит покупателя в VIP. Перед вызовом нужно проверить VIPEligible.
func PromoteVIP(a *model.Account) Transition {
	c := a.Customer
	c.PreviousType = a.Role
	c.Tier = model.TierVIP
	a.Role = model.RoleVIP
	return Transition{
		Action: model.AuditVIPPromotion,
		Details: map[string]any{
			"total_spent":      c.TotalSpent,
			"completed_orders": c.CompletedOrdersCount,
		},
	}
}

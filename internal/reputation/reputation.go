// Package reputation реализует автомат состояний учётных записей: трек эффективности
// сотрудников и трек уровня доверия покупателей.
package reputation

import (
	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

// Policy задаёт пороги и суммы, используемые автоматом.
type Policy struct {
	DemotionComplaints int
	DemotionRating     float64
	BonusCompliments   int
	BonusRating        float64
	WageCut            int64
	BonusAmount        int64

	WarningRating float64

	BlacklistWarnings   int
	VIPDemotionWarnings int
	VIPSpendThreshold   int64
	VIPOrderThreshold   int
}

// DefaultPolicy возвращает пороги по умолчанию.
func DefaultPolicy() Policy {
	return Policy{
		DemotionComplaints:  3,
		DemotionRating:      2,
		BonusCompliments:    3,
		BonusRating:         4,
		WageCut:             1000,
		BonusAmount:         1000,
		WarningRating:       2.5,
		BlacklistWarnings:   3,
		VIPDemotionWarnings: 2,
		VIPSpendThreshold:   10000,
		VIPOrderThreshold:   5,
	}
}

// Transition описывает один произошедший переход для записи в аудит.
type Transition struct {
	Action  model.AuditAction
	Details map[string]any
}

// Has сообщает, содержит ли список переход указанного типа.
func Has(ts []Transition, action model.AuditAction) bool {
	for _, t := range ts {
		if t.Action == action {
			return true
		}
	}
	return false
}

package reputation

import (
	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

// ApplyRating пересчитывает скользящее среднее без обращения к полной истории оценок.
func ApplyRating(e *model.EmployeeProfile, score int) Transition {
	before := e.RollingAvgRating
	total := e.RollingAvgRating*float64(e.TotalRatingCount) + float64(score)
	e.TotalRatingCount++
	e.RollingAvgRating = total / float64(e.TotalRatingCount)

	return Transition{
		Action: model.AuditRating,
		Details: map[string]any{
			"score":      score,
			"avg_before": before,
			"avg_after":  e.RollingAvgRating,
			"count":      e.TotalRatingCount,
		},
	}
}

// OnRating оценивает пороги после новой оценки. Новая оценка не меняет число жалоб,
// поэтому понижение здесь возможно только по среднему.
func (p Policy) OnRating(e *model.EmployeeProfile) []Transition {
	if e.Status == model.EmploymentFired {
		return nil
	}

	var ts []Transition
	if p.lowRated(e) {
		ts = append(ts, p.demote(e, "rating"))
	}
	if e.Status != model.EmploymentFired && e.RollingAvgRating > p.BonusRating {
		ts = append(ts, p.bonus(e, "rating"))
	}
	return ts
}

// OnComplaint учитывает обоснованную жалобу на сотрудника и оценивает условие
// понижения. Счётчик жалоб после понижения не сбрасывается.
func (p Policy) OnComplaint(e *model.EmployeeProfile) []Transition {
	e.ComplaintCount++
	if e.Status == model.EmploymentFired {
		return nil
	}

	if e.ComplaintCount >= p.DemotionComplaints || p.lowRated(e) {
		reason := "complaints"
		if e.ComplaintCount < p.DemotionComplaints {
			reason = "rating"
		}
		return []Transition{p.demote(e, reason)}
	}
	return nil
}

// OnCompliment учитывает благодарность и оценивает условие премии. Отмену жалобы
// благодарностью вызывающий выполняет до этого вызова через CancelComplaint.
func (p Policy) OnCompliment(e *model.EmployeeProfile) []Transition {
	e.ComplimentCount++
	if e.Status == model.EmploymentFired {
		return nil
	}

	if e.ComplimentCount >= p.BonusCompliments || e.RollingAvgRating > p.BonusRating {
		reason := "compliments"
		if e.ComplimentCount < p.BonusCompliments {
			reason = "rating"
		}
		return []Transition{p.bonus(e, reason)}
	}
	return nil
}

// CancelComplaint уменьшает счётчик жалоб ровно на одну, не опускаясь ниже нуля.
func CancelComplaint(e *model.EmployeeProfile) {
	if e.ComplaintCount > 0 {
		e.ComplaintCount--
	}
}

// PerformanceAlert определяет, требует ли состояние сотрудника уведомления менеджера.
func (p Policy) PerformanceAlert(e *model.EmployeeProfile) (model.NotificationKind, bool) {
	if e.Status == model.EmploymentFired {
		return "", false
	}
	if e.ComplaintCount >= p.DemotionComplaints || p.lowRated(e) {
		return model.NotifyPerformanceCritical, true
	}
	if e.TotalRatingCount > 0 && e.RollingAvgRating < p.WarningRating {
		return model.NotifyPerformanceWarning, true
	}
	return "", false
}

// lowRated сообщает, что среднее ниже порога понижения. Без оценок среднего нет.
func (p Policy) lowRated(e *model.EmployeeProfile) bool {
	return e.TotalRatingCount > 0 && e.RollingAvgRating < p.DemotionRating
}

// demote понижает сотрудника, а уже пониженного увольняет.
func (p Policy) demote(e *model.EmployeeProfile, reason string) Transition {
	wageBefore := e.Wage
	if e.TimesDemoted >= 1 {
		e.Status = model.EmploymentFired
		e.IsFired = true
		e.TimesDemoted++
		return Transition{
			Action: model.AuditFiring,
			Details: map[string]any{
				"reason":          reason,
				"times_demoted":   e.TimesDemoted,
				"complaint_count": e.ComplaintCount,
				"rolling_avg":     e.RollingAvgRating,
			},
		}
	}

	e.Status = model.EmploymentDemoted
	e.TimesDemoted++
	e.Wage -= p.WageCut
	if e.Wage < 0 {
		e.Wage = 0
	}
	return Transition{
		Action: model.AuditDemotion,
		Details: map[string]any{
			"reason":          reason,
			"times_demoted":   e.TimesDemoted,
			"wage_before":     wageBefore,
			"wage_after":      e.Wage,
			"complaint_count": e.ComplaintCount,
			"rolling_avg":     e.RollingAvgRating,
		},
	}
}

func (p Policy) bonus(e *model.EmployeeProfile, reason string) Transition {
	wageBefore := e.Wage
	e.Wage += p.BonusAmount
	return Transition{
		Action: model.AuditBonus,
		Details: map[string]any{
			"reason":           reason,
			"wage_before":      wageBefore,
			"wage_after":       e.Wage,
			"compliment_count": e.ComplimentCount,
			"rolling_avg":      e.RollingAvgRating,
		},
	}
}

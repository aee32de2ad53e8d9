// Package service реализует бизнес-операции маркетплейса. Каждая операция выполняется
// одной транзакцией хранилища: изменения баланса, состояния учётных записей, аудит и
// уведомления фиксируются вместе или не фиксируются вовсе.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/mmeshcher/restaurant-marketplace/internal/audit"
	"github.com/mmeshcher/restaurant-marketplace/internal/bidding"
	"github.com/mmeshcher/restaurant-marketplace/internal/ledger"
	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/repository"
	"github.com/mmeshcher/restaurant-marketplace/internal/reputation"
)

// ErrInvalidCredentials возвращается при неверном email или пароле.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Store описывает транзакционное хранилище, используемое сервисом.
type Store interface {
	InTx(ctx context.Context, fn func(tx repository.Tx) error) error
	Close() error
}

// Options содержит параметры бизнес-правил.
type Options struct {
	Reputation reputation.Policy
	Pricing    ledger.Pricing
	Bidding    bidding.Policy
	// StartingWage задаёт оклад нового повара или курьера.
	StartingWage int64
	// PasswordCost задаёт стоимость bcrypt, ноль означает bcrypt.DefaultCost.
	PasswordCost int
}

// DefaultOptions возвращает параметры по умолчанию.
func DefaultOptions() Options {
	return Options{
		Reputation:   reputation.DefaultPolicy(),
		Pricing:      ledger.DefaultPricing(),
		Bidding:      bidding.DefaultPolicy(),
		StartingWage: 50000,
	}
}

// Service содержит бизнес-логику маркетплейса.
type Service struct {
	store Store
	opts  Options
	now   func() time.Time
}

// NewService создаёт новый сервис поверх хранилища.
func NewService(store Store, opts Options) *Service {
	return &Service{
		store: store,
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func requireRole(a *model.Account, roles ...model.Role) error {
	for _, r := range roles {
		if a.Role == r {
			return nil
		}
	}
	return model.Forbiddenf("role %s may not perform this operation", a.Role)
}

func requireManager(ctx context.Context, tx repository.Tx, id int64) (*model.Account, error) {
	m, err := tx.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireRole(m, model.RoleManager); err != nil {
		return nil, err
	}
	return m, nil
}

// lockAccounts блокирует учётные записи в порядке возрастания идентификаторов.
func lockAccounts(ctx context.Context, tx repository.Tx, a, b int64) (*model.Account, *model.Account, error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	locked := map[int64]*model.Account{}
	for _, id := range []int64{first, second} {
		if _, ok := locked[id]; ok {
			continue
		}
		acc, err := tx.LockAccount(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		locked[id] = acc
	}
	return locked[a], locked[b], nil
}

// emitter создаёт Emitter аудита с часами сервиса.
func (s *Service) emitter(tx repository.Tx, actorID *int64) *audit.Emitter {
	return audit.New(tx, actorID, s.now)
}

func alertOf(p reputation.Policy, a *model.Account) model.NotificationKind {
	if a.Employee == nil {
		return ""
	}
	kind, _ := p.PerformanceAlert(a.Employee)
	return kind
}

// saveEmployee сохраняет сотрудника, пишет аудит переходов и уведомляет менеджеров,
// если сотрудник пересёк порог предупреждения.
func (s *Service) saveEmployee(ctx context.Context, tx repository.Tx, em *audit.Emitter, a *model.Account, ref audit.Ref, before model.NotificationKind, ts []reputation.Transition) error {
	if err := tx.SaveAccount(ctx, a); err != nil {
		return err
	}
	if err := em.Transitions(ctx, a.ID, ref, ts); err != nil {
		return err
	}

	after := alertOf(s.opts.Reputation, a)
	if after != "" && after != before {
		return em.Notify(ctx, after, a.ID,
			"%s %d: rating %.2f, complaints %d", a.Role, a.ID, a.Employee.RollingAvgRating, a.Employee.ComplaintCount)
	}
	return nil
}

// warnCustomer начисляет покупателю предупреждение и оформляет блокировку, если она
// наступила.
func (s *Service) warnCustomer(ctx context.Context, tx repository.Tx, em *audit.Emitter, a *model.Account, reason string, ref audit.Ref, managerID *int64) error {
	ts := s.opts.Reputation.AddCustomerWarning(a, reason)
	if len(ts) == 0 {
		return nil
	}
	if err := tx.SaveAccount(ctx, a); err != nil {
		return err
	}
	if err := em.Transitions(ctx, a.ID, ref, ts); err != nil {
		return err
	}

	if !reputation.Has(ts, model.AuditBlacklist) {
		return nil
	}
	if err := tx.InsertBlacklist(ctx, &model.Blacklist{
		AccountID: a.ID,
		ManagerID: managerID,
		Reason:    reason,
		CreatedAt: s.now(),
	}); err != nil {
		return err
	}
	return em.Notify(ctx, model.NotifyDeregistration, a.ID,
		"customer %d deregistered after %d warnings", a.ID, a.Customer.Warnings)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/restaurant-marketplace/internal/ledger"
	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/repository"
)

// AccountInput содержит данные для создания учётной записи.
type AccountInput struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
}

func (s *Service) newAccount(in AccountInput) (*model.Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, model.Validationf("email and password are required")
	}

	cost := s.opts.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	a := &model.Account{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		CreatedAt:    s.now(),
	}
	switch {
	case in.Role.IsCustomer():
		a.Role = model.RoleCustomer
		a.Customer = &model.CustomerProfile{Tier: model.TierRegistered}
	case in.Role.IsEmployee():
		a.Employee = &model.EmployeeProfile{Status: model.EmploymentActive, Wage: s.opts.StartingWage}
	}
	return a, nil
}

// Register создаёт учётную запись покупателя.
func (s *Service) Register(ctx context.Context, in AccountInput) (*model.Account, error) {
	in.Role = model.RoleCustomer
	a, err := s.newAccount(in)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.CreateAccount(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Hire создаёт учётную запись повара, курьера или менеджера от имени менеджера.
func (s *Service) Hire(ctx context.Context, managerID int64, in AccountInput) (*model.Account, error) {
	if !in.Role.IsEmployee() && in.Role != model.RoleManager {
		return nil, model.Validationf("role must be chef, delivery or manager")
	}
	a, err := s.newAccount(in)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := requireManager(ctx, tx, managerID); err != nil {
			return err
		}
		return tx.CreateAccount(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// EnsureManager создаёт менеджера с указанными учётными данными, если такого email ещё нет.
func (s *Service) EnsureManager(ctx context.Context, email, password string) error {
	a, err := s.newAccount(AccountInput{Email: email, Password: password, Name: "manager", Role: model.RoleManager})
	if err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx repository.Tx) error {
		_, err := tx.GetAccountByEmail(ctx, a.Email)
		if err == nil {
			return nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return err
		}
		return tx.CreateAccount(ctx, a)
	})
}

// Login проверяет email и пароль и возвращает учётную запись.
func (s *Service) Login(ctx context.Context, email, password string) (*model.Account, error) {
	var a *model.Account
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		a, err = tx.GetAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
		return err
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// GetAccount возвращает учётную запись.
func (s *Service) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	var a *model.Account
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		a, err = tx.GetAccount(ctx, id)
		return err
	})
	return a, err
}

// Deposit пополняет баланс.
func (s *Service) Deposit(ctx context.Context, accountID, amount int64) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, model.Validationf("deposit amount must be positive")
	}
	return s.post(ctx, accountID, amount, model.TxDeposit)
}

// Withdraw списывает средства с баланса. Нехватка средств не начисляет предупреждений.
func (s *Service) Withdraw(ctx context.Context, accountID, amount int64) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, model.Validationf("withdrawal amount must be positive")
	}
	return s.post(ctx, accountID, -amount, model.TxWithdrawal)
}

func (s *Service) post(ctx context.Context, accountID, amount int64, typ model.TransactionType) (*model.Transaction, error) {
	var t *model.Transaction
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if c := a.Customer; c != nil && c.IsBlacklisted && typ == model.TxDeposit {
			return model.Statef("account %d is deregistered", a.ID)
		}
		t, err = ledger.Post(ctx, tx, a, amount, typ, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions возвращает журнал операций учётной записи.
func (s *Service) ListTransactions(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	var res []model.Transaction
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ListTransactions(ctx, accountID)
		return err
	})
	return res, err
}

// Package ledger реализует журнал операций по балансу: каждое изменение баланса
// сопровождается неизменяемой записью с балансом до и после операции.
package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

// Writer описывает операции хранилища, которые нужны журналу. Вызывающий обязан
// выполнять Post внутри транзакции БД, заблокировав строку учётной записи.
type Writer interface {
	InsertTransaction(ctx context.Context, t *model.Transaction) error
	UpdateBalance(ctx context.Context, accountID int64, balance int64) error
}

// Post записывает операцию на сумму amount (со знаком) и применяет новый баланс.
// Списание, уводящее баланс в минус, отклоняется без записи в журнал. Оплата
// заказа всегда списание.
func Post(ctx context.Context, w Writer, a *model.Account, amount int64, typ model.TransactionType, ref string) (*model.Transaction, error) {
	if amount == 0 {
		return nil, model.Validationf("amount must not be zero")
	}
	if typ == model.TxOrderPayment && amount > 0 {
		return nil, model.Validationf("order payment must debit the account")
	}
	if amount > 0 && a.Balance > math.MaxInt64-amount {
		return nil, model.Validationf("balance overflow")
	}

	after := a.Balance + amount
	if after < 0 {
		return nil, model.InsufficientFunds(-after)
	}

	t := &model.Transaction{
		AccountID:     a.ID,
		Amount:        amount,
		BalanceBefore: a.Balance,
		BalanceAfter:  after,
		Type:          typ,
		Reference:     ref,
	}
	if err := w.InsertTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	if err := w.UpdateBalance(ctx, a.ID, after); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	a.Balance = after
	return t, nil
}

// Reconcile проверяет, что журнал образует непрерывную цепочку от нуля и что его
// сумма совпадает с текущим балансом. Записи должны идти в порядке создания.
func Reconcile(balance int64, txs []model.Transaction) error {
	var running int64
	for _, t := range txs {
		if t.BalanceBefore != running {
			return fmt.Errorf("transaction %d: balance_before %d, expected %d", t.ID, t.BalanceBefore, running)
		}
		if t.BalanceAfter != t.BalanceBefore+t.Amount {
			return fmt.Errorf("transaction %d: balance_after %d != %d%+d", t.ID, t.BalanceAfter, t.BalanceBefore, t.Amount)
		}
		running = t.BalanceAfter
	}
	if running != balance {
		return fmt.Errorf("ledger sum %d does not match balance %d", running, balance)
	}
	return nil
}

package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// InTx выполняет fn в одной транзакции. Транзакция повторяется целиком при конфликте
// сериализации, взаимной блокировке или обрыве соединения, поэтому fn должна заново
// читать всё, что использует.
func (r *PostgresRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(&pgTx{tx: tx}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil || !retryable(err) || i == len(r.delays) {
			return err
		}

		timer := time.NewTimer(r.delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// pgTx реализует Tx поверх pgx.Tx.
type pgTx struct {
	tx pgx.Tx
}

var _ Tx = (*pgTx)(nil)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NotFoundf(format, args...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

const accountColumns = `id, email, password_hash, name, role, balance, version, swept_version, created_at,
	rolling_avg_rating, total_rating_count, complaint_count, compliment_count, times_demoted,
	employment_status, is_fired, wage,
	warnings, customer_tier, previous_type, is_blacklisted, free_delivery_credits,
	completed_orders_count, total_spent`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a                        model.Account
		e                        model.EmployeeProfile
		c                        model.CustomerProfile
		role, status, tier, prev string
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Name, &role, &a.Balance, &a.Version, &a.SweptVersion, &a.CreatedAt,
		&e.RollingAvgRating, &e.TotalRatingCount, &e.ComplaintCount, &e.ComplimentCount, &e.TimesDemoted,
		&status, &e.IsFired, &e.Wage,
		&c.Warnings, &tier, &prev, &c.IsBlacklisted, &c.FreeDeliveryCredits,
		&c.CompletedOrdersCount, &c.TotalSpent,
	)
	if err != nil {
		return nil, err
	}

	a.Role = model.Role(role)
	switch {
	case a.Role.IsEmployee():
		e.Status = model.EmploymentStatus(status)
		a.Employee = &e
	case a.Role.IsCustomer():
		c.Tier = model.CustomerTier(tier)
		c.PreviousType = model.Role(prev)
		a.Customer = &c
	}
	return &a, nil
}

// CreateAccount создаёт учётную запись. Повторный email возвращает ошибку конфликта.
func (t *pgTx) CreateAccount(ctx context.Context, a *model.Account) error {
	a.CreatedAt = stamp(a.CreatedAt)
	e, c := profiles(a)
	err := t.tx.QueryRow(ctx,
		`INSERT INTO accounts (email, password_hash, name, role, created_at,
			employment_status, wage, customer_tier, previous_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, version`,
		a.Email, a.PasswordHash, a.Name, string(a.Role), a.CreatedAt,
		string(e.Status), e.Wage, string(c.Tier), string(c.PreviousType),
	).Scan(&a.ID, &a.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Conflictf("email %s is already registered", a.Email)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// profiles возвращает профили для записи, подставляя значения по умолчанию для
// отсутствующих.
func profiles(a *model.Account) (model.EmployeeProfile, model.CustomerProfile) {
	e := model.EmployeeProfile{Status: model.EmploymentActive}
	if a.Employee != nil {
		e = *a.Employee
	}
	c := model.CustomerProfile{Tier: model.TierRegistered}
	if a.Customer != nil {
		c = *a.Customer
	}
	return e, c
}

func (t *pgTx) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "account %d", id)
	}
	return a, nil
}

func (t *pgTx) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if err != nil {
		return nil, notFoundOr(err, "account %s", email)
	}
	return a, nil
}

// LockAccount читает учётную запись с блокировкой строки до конца транзакции.
func (t *pgTx) LockAccount(ctx context.Context, id int64) (*model.Account, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFoundOr(err, "account %d", id)
	}
	return a, nil
}

// SaveAccount сохраняет роль и профили и увеличивает версию. Баланс меняется только
// через UpdateBalance.
func (t *pgTx) SaveAccount(ctx context.Context, a *model.Account) error {
	e, c := profiles(a)
	err := t.tx.QueryRow(ctx,
		`UPDATE accounts SET
			name = $2, role = $3, version = version + 1,
			rolling_avg_rating = $4, total_rating_count = $5, complaint_count = $6,
			compliment_count = $7, times_demoted = $8, employment_status = $9,
			is_fired = $10, wage = $11,
			warnings = $12, customer_tier = $13, previous_type = $14, is_blacklisted = $15,
			free_delivery_credits = $16, completed_orders_count = $17, total_spent = $18
		 WHERE id = $1
		 RETURNING version`,
		a.ID, a.Name, string(a.Role),
		e.RollingAvgRating, e.TotalRatingCount, e.ComplaintCount,
		e.ComplimentCount, e.TimesDemoted, string(e.Status),
		e.IsFired, e.Wage,
		c.Warnings, string(c.Tier), string(c.PreviousType), c.IsBlacklisted,
		c.FreeDeliveryCredits, c.CompletedOrdersCount, c.TotalSpent,
	).Scan(&a.Version)
	if err != nil {
		return notFoundOr(err, "save account %d", a.ID)
	}
	return nil
}

func (t *pgTx) UpdateBalance(ctx context.Context, accountID int64, balance int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET balance = $2 WHERE id = $1`, accountID, balance)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("account %d", accountID)
	}
	return nil
}

// ListSweepCandidates возвращает покупателей и сотрудников, изменившихся с прошлой
// фоновой проверки.
func (t *pgTx) ListSweepCandidates(ctx context.Context) ([]int64, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id FROM accounts
		 WHERE role = ANY($1) AND version <> swept_version
		 ORDER BY id`,
		[]string{string(model.RoleChef), string(model.RoleDelivery), string(model.RoleCustomer), string(model.RoleVIP)},
	)
	if err != nil {
		return nil, fmt.Errorf("select sweep candidates: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect sweep candidates: %w", err)
	}
	return ids, nil
}

func (t *pgTx) MarkSwept(ctx context.Context, accountID int64, version int64) error {
	if _, err := t.tx.Exec(ctx, `UPDATE accounts SET swept_version = $2 WHERE id = $1`, accountID, version); err != nil {
		return fmt.Errorf("mark swept: %w", err)
	}
	return nil
}

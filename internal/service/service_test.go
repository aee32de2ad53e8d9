package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/restaurant-marketplace/internal/ledger"
	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/repository"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc  *Service
	repo *repository.MemoryRepository
	clk  *clock
	ctx  context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	opts := DefaultOptions()
	opts.PasswordCost = bcrypt.MinCost

	repo := repository.NewMemoryRepository()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(repo, opts)
	svc.now = clk.now
	t.Cleanup(func() { _ = svc.Close() })

	return &fixture{svc: svc, repo: repo, clk: clk, ctx: context.Background()}
}

func (f *fixture) seed(t *testing.T, a *model.Account) *model.Account {
	t.Helper()
	require.NoError(t, f.repo.InTx(f.ctx, func(tx repository.Tx) error {
		return tx.CreateAccount(f.ctx, a)
	}))
	return a
}

func (f *fixture) employee(t *testing.T, role model.Role, email string, mutate func(*model.EmployeeProfile)) *model.Account {
	t.Helper()
	e := &model.EmployeeProfile{Status: model.EmploymentActive, Wage: 50000}
	if mutate != nil {
		mutate(e)
	}
	return f.seed(t, &model.Account{Email: email, Role: role, Employee: e})
}

func (f *fixture) customer(t *testing.T, email string, mutate func(*model.Account)) *model.Account {
	t.Helper()
	a := &model.Account{
		Email:    email,
		Role:     model.RoleCustomer,
		Customer: &model.CustomerProfile{Tier: model.TierRegistered},
	}
	if mutate != nil {
		mutate(a)
	}
	return f.seed(t, a)
}

func (f *fixture) manager(t *testing.T) *model.Account {
	t.Helper()
	return f.seed(t, &model.Account{Email: "boss@example.com", Role: model.RoleManager})
}

func (f *fixture) account(t *testing.T, id int64) *model.Account {
	t.Helper()
	a, err := f.svc.GetAccount(f.ctx, id)
	require.NoError(t, err)
	return a
}

// order создаёт блюдо повара, пополняет баланс покупателя и оформляет заказ.
func (f *fixture) order(t *testing.T, customerID, chefID, price int64) *model.Order {
	t.Helper()
	d, err := f.svc.CreateDish(f.ctx, chefID, "Borscht", price)
	require.NoError(t, err)
	_, err = f.svc.Deposit(f.ctx, customerID, 10*price+1000)
	require.NoError(t, err)
	o, err := f.svc.PlaceOrder(f.ctx, customerID, []ledger.Line{{DishID: d.ID, Quantity: 1}}, "Main st 1")
	require.NoError(t, err)
	return o
}

func (f *fixture) notifications(t *testing.T, managerID int64, kind model.NotificationKind) []model.Notification {
	t.Helper()
	all, err := f.svc.ListNotifications(f.ctx, managerID, false)
	require.NoError(t, err)
	var res []model.Notification
	for _, n := range all {
		if n.Kind == kind {
			res = append(res, n)
		}
	}
	return res
}

func complaintAgainst(filer, target int64, orderID *int64) ComplaintInput {
	return ComplaintInput{
		FilerID:     filer,
		TargetID:    target,
		Kind:        model.KindComplaint,
		Description: "soup was cold",
		OrderID:     orderID,
	}
}

func TestAccounts_RegisterLoginHire(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.Register(f.ctx, AccountInput{Email: "Ann@Example.com", Password: "secret", Name: "Ann", Role: model.RoleManager})
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, a.Role)
	assert.Equal(t, "ann@example.com", a.Email)
	require.NotNil(t, a.Customer)

	_, err = f.svc.Register(f.ctx, AccountInput{Email: "ann@example.com", Password: "other"})
	assert.ErrorIs(t, err, model.ErrConflict)

	got, err := f.svc.Login(f.ctx, "ANN@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = f.svc.Login(f.ctx, "ann@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(f.ctx, "nobody@example.com", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Hire(f.ctx, a.ID, AccountInput{Email: "chef@example.com", Password: "x", Role: model.RoleChef})
	assert.ErrorIs(t, err, model.ErrForbidden)

	require.NoError(t, f.svc.EnsureManager(f.ctx, "boss@example.com", "pw"))
	require.NoError(t, f.svc.EnsureManager(f.ctx, "boss@example.com", "pw"))
	m, err := f.svc.Login(f.ctx, "boss@example.com", "pw")
	require.NoError(t, err)

	chef, err := f.svc.Hire(f.ctx, m.ID, AccountInput{Email: "chef@example.com", Password: "x", Role: model.RoleChef})
	require.NoError(t, err)
	require.NotNil(t, chef.Employee)
	assert.Equal(t, int64(50000), chef.Employee.Wage)
	assert.Equal(t, model.EmploymentActive, chef.Employee.Status)
}

func TestLedger_DepositWithdrawReconcile(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "c@example.com", nil)

	_, err := f.svc.Deposit(f.ctx, c.ID, 0)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.Deposit(f.ctx, c.ID, 3000)
	require.NoError(t, err)
	tr, err := f.svc.Withdraw(f.ctx, c.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), tr.BalanceBefore)
	assert.Equal(t, int64(2000), tr.BalanceAfter)

	_, err = f.svc.Withdraw(f.ctx, c.ID, 5000)
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	acc := f.account(t, c.ID)
	assert.Equal(t, 0, acc.Customer.Warnings)
	txs, err := f.svc.ListTransactions(f.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.NoError(t, ledger.Reconcile(acc.Balance, txs))
}

// Повар с двумя жалобами и средним 2.5 получает третью обоснованную жалобу и понижается.
func TestComplaint_ThirdComplaintDemotesChef(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", func(e *model.EmployeeProfile) {
		e.ComplaintCount = 2
		e.RollingAvgRating = 2.5
		e.TotalRatingCount = 4
	})
	c := f.customer(t, "c@example.com", nil)
	o := f.order(t, c.ID, chef.ID, 1000)

	cm, err := f.svc.FileComplaint(f.ctx, complaintAgainst(c.ID, chef.ID, &o.ID))
	require.NoError(t, err)

	pending := f.account(t, chef.ID).Employee
	assert.Equal(t, 2, pending.ComplaintCount)
	assert.Equal(t, model.EmploymentActive, pending.Status)

	_, err = f.svc.ResolveComplaint(f.ctx, m.ID, cm.ID, model.ResolutionWarningIssued, "cold soup")
	require.NoError(t, err)

	got := f.account(t, chef.ID).Employee
	assert.Equal(t, 3, got.ComplaintCount)
	assert.Equal(t, model.EmploymentDemoted, got.Status)
	assert.Equal(t, 1, got.TimesDemoted)
	assert.Equal(t, int64(49000), got.Wage)

	assert.Len(t, f.notifications(t, m.ID, model.NotifyNewComplaint), 1)
	assert.Len(t, f.notifications(t, m.ID, model.NotifyPerformanceCritical), 1)

	logs, err := f.svc.ListAuditLogs(f.ctx, m.ID, &chef.ID, 10)
	require.NoError(t, err)
	var actions []model.AuditAction
	for _, l := range logs {
		actions = append(actions, l.ActionType)
	}
	assert.Equal(t, []model.AuditAction{model.AuditDemotion, model.AuditResolution, model.AuditComplaintFiled}, actions)
	for _, l := range logs {
		assert.Equal(t, f.clk.now(), l.CreatedAt)
	}
}

// Уже пониженный повар при новом условии понижения увольняется.
func TestComplaint_SecondDemotionFiresChef(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", func(e *model.EmployeeProfile) {
		e.ComplaintCount = 3
		e.TimesDemoted = 1
		e.Status = model.EmploymentDemoted
	})
	c := f.customer(t, "c@example.com", nil)
	o := f.order(t, c.ID, chef.ID, 1000)

	cm, err := f.svc.FileComplaint(f.ctx, complaintAgainst(c.ID, chef.ID, &o.ID))
	require.NoError(t, err)
	_, err = f.svc.ResolveComplaint(f.ctx, m.ID, cm.ID, model.ResolutionWarningIssued, "")
	require.NoError(t, err)

	got := f.account(t, chef.ID).Employee
	assert.Equal(t, model.EmploymentFired, got.Status)
	assert.True(t, got.IsFired)
	assert.GreaterOrEqual(t, got.TimesDemoted, 2)

	_, err = f.svc.CreateDish(f.ctx, chef.ID, "Pelmeni", 900)
	assert.ErrorIs(t, err, model.ErrState)
}

// VIP с одним предупреждением получает второе за отклонённую жалобу и теряет статус.
func TestResolve_DismissedComplaintDemotesVIP(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", nil)
	c := f.customer(t, "vip@example.com", func(a *model.Account) {
		a.Role = model.RoleVIP
		a.Customer.Tier = model.TierVIP
		a.Customer.Warnings = 1
	})
	o := f.order(t, c.ID, chef.ID, 1000)
	assert.Equal(t, int64(50), o.Discount)

	cm, err := f.svc.FileComplaint(f.ctx, complaintAgainst(c.ID, chef.ID, &o.ID))
	require.NoError(t, err)

	res, err := f.svc.ResolveComplaint(f.ctx, m.ID, cm.ID, model.ResolutionDismissed, " unfounded ")
	require.NoError(t, err)
	assert.Equal(t, model.ComplaintResolved, res.Status)
	assert.Equal(t, "unfounded", res.ResolutionNotes)

	got := f.account(t, c.ID)
	assert.Equal(t, model.RoleCustomer, got.Role)
	assert.Equal(t, model.TierRegistered, got.Customer.Tier)
	assert.Equal(t, 0, got.Customer.Warnings)
	assert.Equal(t, model.RoleVIP, got.Customer.PreviousType)

	_, err = f.svc.ResolveComplaint(f.ctx, m.ID, cm.ID, model.ResolutionWarningIssued, "")
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestResolve_ManagerOnly(t *testing.T) {
	f := newFixture(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", nil)
	c := f.customer(t, "c@example.com", nil)
	o := f.order(t, c.ID, chef.ID, 1000)

	cm, err := f.svc.FileComplaint(f.ctx, complaintAgainst(c.ID, chef.ID, &o.ID))
	require.NoError(t, err)

	_, err = f.svc.ResolveComplaint(f.ctx, c.ID, cm.ID, model.ResolutionDismissed, "")
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestResolve_WarningIssuedAgainstEmployee(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", nil)
	c := f.customer(t, "c@example.com", nil)
	o := f.order(t, c.ID, chef.ID, 1000)

	cm, err := f.svc.FileComplaint(f.ctx, complaintAgainst(c.ID, chef.ID, &o.ID))
	require.NoError(t, err)

	_, err = f.svc.DisputeComplaint(f.ctx, c.ID, cm.ID, "this is not mine")
	assert.ErrorIs(t, err, model.ErrForbidden)
	_, err = f.svc.DisputeComplaint(f.ctx, chef.ID, cm.ID, "short")
	assert.ErrorIs(t, err, model.ErrValidation)
	disputed, err := f.svc.DisputeComplaint(f.ctx, chef.ID, cm.ID, "the soup left the kitchen hot")
	require.NoError(t, err)
	assert.Equal(t, model.ComplaintDisputed, disputed.Status)

	res, err := f.svc.ResolveComplaint(f.ctx, m.ID, cm.ID, model.ResolutionWarningIssued, "")
	require.NoError(t, err)
	assert.True(t, res.Disputed)

	got := f.account(t, chef.ID).Employee
	assert.Equal(t, 1, got.ComplaintCount)
	assert.Equal(t, model.EmploymentActive, got.Status)
	assert.Equal(t, int64(50000), got.Wage)
	assert.Equal(t, 0, f.account(t, c.ID).Customer.Warnings)
}

// Нехватка средств: заказ отклонён, предупреждение начислено, журнал не тронут.
func TestPlaceOrder_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", nil)
	c := f.customer(t, "c@example.com", nil)

	d, err := f.svc.CreateDish(f.ctx, chef.ID, "Steak", 700)
	require.NoError(t, err)
	_, err = f.svc.Deposit(f.ctx, c.ID, 1000)
	require.NoError(t, err)

	for attempt := 1; attempt <= 2; attempt++ {
		_, err = f.svc.PlaceOrder(f.ctx, c.ID, []ledger.Line{{DishID: d.ID, Quantity: 1}}, "Main st 1")
		require.ErrorIs(t, err, model.ErrInsufficientFunds)

		var merr *model.Error
		require.True(t, errors.As(err, &merr))
		assert.Equal(t, int64(200), merr.Shortfall)

		got := f.account(t, c.ID)
		assert.Equal(t, int64(1000), got.Balance)
		assert.Equal(t, attempt, got.Customer.Warnings)

		txs, err := f.svc.ListTransactions(f.ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, model.TxDeposit, txs[0].Type)
	}

	orders, err := f.svc.ListOrders(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrder_ThirdWarningBlacklists(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", nil)
	c := f.customer(t, "c@example.com", func(a *model.Account) { a.Customer.Warnings = 2 })

	d, err := f.svc.CreateDish(f.ctx, chef.ID, "Steak", 700)
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(f.ctx, c.ID, []ledger.Line{{DishID: d.ID, Quantity: 1}}, "Main st 1")
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	got := f.account(t, c.ID).Customer
	assert.True(t, got.IsBlacklisted)
	assert.Equal(t, model.TierDeregistered, got.Tier)
	assert.Equal(t, 3, got.Warnings)
	assert.Len(t, f.notifications(t, m.ID, model.NotifyDeregistration), 1)

	_, err = f.svc.Deposit(f.ctx, c.ID, 5000)
	assert.ErrorIs(t, err, model.ErrState)
	_, err = f.svc.PlaceOrder(f.ctx, c.ID, []ledger.Line{{DishID: d.ID, Quantity: 1}}, "Main st 1")
	assert.ErrorIs(t, err, model.ErrState)
}

func TestPlaceOrder_PromotesToVIP(t *testing.T) {
	f := newFixture(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", nil)
	c := f.customer(t, "c@example.com", func(a *model.Account) { a.Customer.CompletedOrdersCount = 4 })

	f.order(t, c.ID, chef.ID, 1000)

	got := f.account(t, c.ID)
	assert.Equal(t, model.RoleVIP, got.Role)
	assert.Equal(t, model.TierVIP, got.Customer.Tier)
	assert.Equal(t, 5, got.Customer.CompletedOrdersCount)
	assert.Equal(t, int64(1500), got.Customer.TotalSpent)

	txs, err := f.svc.ListTransactions(f.ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, ledger.Reconcile(got.Balance, txs))
}

// Благодарность гасит ровно одну ожидающую жалобу на того же адресата.
func TestCompliment_CancelsOldestPendingComplaint(t *testing.T) {
	f := newFixture(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", func(e *model.EmployeeProfile) {
		e.ComplaintCount = 2
	})
	c := f.customer(t, "c@example.com", nil)
	o := f.order(t, c.ID, chef.ID, 1000)

	first, err := f.svc.FileComplaint(f.ctx, complaintAgainst(c.ID, chef.ID, &o.ID))
	require.NoError(t, err)
	f.clk.advance(time.Minute)
	second, err := f.svc.FileComplaint(f.ctx, complaintAgainst(c.ID, chef.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, 2, f.account(t, chef.ID).Employee.ComplaintCount)

	f.clk.advance(time.Minute)
	cp, err := f.svc.FileComplaint(f.ctx, ComplaintInput{
		FilerID:     c.ID,
		TargetID:    chef.ID,
		Kind:        model.KindCompliment,
		Description: "great borscht",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ComplaintResolved, cp.Status)
	assert.Equal(t, model.ResolutionCanceledComplaint, cp.Resolution)

	got := f.account(t, chef.ID).Employee
	assert.Equal(t, 1, got.ComplaintCount)
	assert.Equal(t, 1, got.ComplimentCount)

	all, err := f.svc.ListComplaints(f.ctx, c.ID, "")
	require.NoError(t, err)
	byID := map[int64]model.Complaint{}
	for _, x := range all {
		byID[x.ID] = x
	}
	assert.Equal(t, model.ResolutionCanceledByCompliment, byID[first.ID].Resolution)
	assert.Equal(t, model.ComplaintPending, byID[second.ID].Status)
}

func TestFileComplaint_Rejections(t *testing.T) {
	f := newFixture(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", nil)
	other := f.employee(t, model.RoleChef, "other@example.com", nil)
	c := f.customer(t, "c@example.com", nil)
	o := f.order(t, c.ID, chef.ID, 1000)

	_, err := f.svc.FileComplaint(f.ctx, complaintAgainst(c.ID, other.ID, &o.ID))
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.FileComplaint(f.ctx, complaintAgainst(c.ID, c.ID, nil))
	assert.ErrorIs(t, err, model.ErrValidation)

	missing := o.ID + 1000
	_, err = f.svc.FileComplaint(f.ctx, complaintAgainst(c.ID, chef.ID, &missing))
	assert.ErrorIs(t, err, model.ErrValidation)

	assert.Equal(t, 0, f.account(t, other.ID).Employee.ComplaintCount)
}

// Жалобы влияют на сотрудника только после решения warning_issued.
func TestResolve_EmployeeStateFollowsResolution(t *testing.T) {
	tests := []struct {
		name       string
		rated      bool
		resolution model.Resolution
		wantCount  int
	}{
		{name: "dismissed against rated chef", rated: true, resolution: model.ResolutionDismissed, wantCount: 0},
		{name: "dismissed against unrated chef", resolution: model.ResolutionDismissed, wantCount: 0},
		{name: "upheld against unrated chef", resolution: model.ResolutionWarningIssued, wantCount: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			m := f.manager(t)
			chef := f.employee(t, model.RoleChef, "chef@example.com", func(e *model.EmployeeProfile) {
				if tt.rated {
					e.RollingAvgRating = 4
					e.TotalRatingCount = 10
				}
			})
			c := f.customer(t, "c@example.com", nil)
			o := f.order(t, c.ID, chef.ID, 1000)

			for i := 0; i < 3; i++ {
				before := f.account(t, chef.ID).Employee
				cm, err := f.svc.FileComplaint(f.ctx, complaintAgainst(c.ID, chef.ID, &o.ID))
				require.NoError(t, err)
				assert.Equal(t, before.ComplaintCount, f.account(t, chef.ID).Employee.ComplaintCount)
				if i < 2 {
					assert.Equal(t, model.EmploymentActive, before.Status)
				}
				_, err = f.svc.ResolveComplaint(f.ctx, m.ID, cm.ID, tt.resolution, "")
				require.NoError(t, err)
			}

			got := f.account(t, chef.ID).Employee
			assert.Equal(t, tt.wantCount, got.ComplaintCount)
			if tt.wantCount >= 3 {
				assert.Equal(t, model.EmploymentDemoted, got.Status)
				assert.Equal(t, int64(49000), got.Wage)
				return
			}
			assert.Equal(t, model.EmploymentActive, got.Status)
			assert.Equal(t, 0, got.TimesDemoted)
			assert.Equal(t, int64(50000), got.Wage)
			assert.Empty(t, f.notifications(t, m.ID, model.NotifyPerformanceCritical))
		})
	}
}

// Заказ с ценой позиции вне допустимого диапазона отклоняется без движения по балансу.
func TestPlaceOrder_OversizedTotalRejected(t *testing.T) {
	f := newFixture(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", nil)
	c := f.customer(t, "c@example.com", nil)

	_, err := f.svc.CreateDish(f.ctx, chef.ID, "Caviar", 1<<62)
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = f.svc.CreateDish(f.ctx, chef.ID, "Caviar", ledger.MaxDishPrice+1)
	assert.ErrorIs(t, err, model.ErrValidation)

	legacy := &model.Dish{ChefID: chef.ID, Name: "Caviar", Price: 1 << 62}
	require.NoError(t, f.repo.InTx(f.ctx, func(tx repository.Tx) error {
		return tx.CreateDish(f.ctx, legacy)
	}))
	_, err = f.svc.Deposit(f.ctx, c.ID, 1000)
	require.NoError(t, err)

	for _, lines := range [][]ledger.Line{
		{{DishID: legacy.ID, Quantity: 2}},
		{{DishID: legacy.ID, Quantity: ledger.MaxQuantity + 1}},
	} {
		_, err = f.svc.PlaceOrder(f.ctx, c.ID, lines, "Main st 1")
		assert.ErrorIs(t, err, model.ErrValidation)
	}

	got := f.account(t, c.ID)
	assert.Equal(t, int64(1000), got.Balance)
	assert.Equal(t, 0, got.Customer.Warnings)
	txs, err := f.svc.ListTransactions(f.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.NoError(t, ledger.Reconcile(got.Balance, txs))
}

type biddingFixture struct {
	*fixture
	manager  *model.Account
	customer *model.Account
	fast     *model.Account
	cheap    *model.Account
	order    *model.Order
}

func newBiddingFixture(t *testing.T) *biddingFixture {
	f := newFixture(t)
	b := &biddingFixture{fixture: f}
	b.manager = f.manager(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", nil)
	b.customer = f.customer(t, "c@example.com", nil)
	b.fast = f.employee(t, model.RoleDelivery, "fast@example.com", nil)
	b.cheap = f.employee(t, model.RoleDelivery, "cheap@example.com", nil)
	b.order = f.order(t, b.customer.ID, chef.ID, 1000)
	return b
}

// Две ставки: 400 (раньше) и 350 (позже). Выбор не минимальной требует обоснования.
func TestAssignDelivery_MemoRequiredForNonLowest(t *testing.T) {
	f := newBiddingFixture(t)

	b1, err := f.svc.PlaceBid(f.ctx, f.fast.ID, f.order.ID, 400, 20)
	require.NoError(t, err)
	f.clk.advance(time.Minute)
	b2, err := f.svc.PlaceBid(f.ctx, f.cheap.ID, f.order.ID, 350, 40)
	require.NoError(t, err)

	views, err := f.svc.ListBids(f.ctx, f.customer.ID, f.order.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, v.ID == b2.ID, v.Lowest)
	}

	_, err = f.svc.AssignDelivery(f.ctx, f.manager.ID, f.order.ID, f.fast.ID, "  ")
	require.ErrorIs(t, err, model.ErrValidation)

	o, err := f.svc.AssignDelivery(f.ctx, f.manager.ID, f.order.ID, f.fast.ID, "faster ETA")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusAssigned, o.Status)
	assert.Equal(t, "faster ETA", o.AssignmentMemo)
	require.NotNil(t, o.AssignedBidID)
	assert.Equal(t, b1.ID, *o.AssignedBidID)

	_, err = f.svc.AssignDelivery(f.ctx, f.manager.ID, f.order.ID, f.cheap.ID, "")
	assert.ErrorIs(t, err, model.ErrState)
}

func TestPlaceBid_Rules(t *testing.T) {
	f := newBiddingFixture(t)

	_, err := f.svc.PlaceBid(f.ctx, f.customer.ID, f.order.ID, 400, 20)
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.svc.PlaceBid(f.ctx, f.fast.ID, f.order.ID, 400, 20)
	require.NoError(t, err)

	_, err = f.svc.PlaceBid(f.ctx, f.fast.ID, f.order.ID, 300, 20)
	assert.ErrorIs(t, err, model.ErrConflict)

	chef := f.employee(t, model.RoleChef, "chef2@example.com", nil)
	second := f.fixture.order(t, f.customer.ID, chef.ID, 800)

	f.clk.advance(10 * time.Second)
	_, err = f.svc.PlaceBid(f.ctx, f.fast.ID, second.ID, 300, 20)
	require.ErrorIs(t, err, model.ErrThrottled)
	var merr *model.Error
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, 20*time.Second, merr.RetryAfter)

	f.clk.advance(31 * time.Minute)
	_, err = f.svc.PlaceBid(f.ctx, f.cheap.ID, f.order.ID, 350, 20)
	assert.ErrorIs(t, err, model.ErrState)

	_, err = f.svc.PlaceBid(f.ctx, f.cheap.ID, second.ID, 350, 20)
	assert.NoError(t, err)
}

func TestDeliveryAndRating(t *testing.T) {
	f := newBiddingFixture(t)

	_, err := f.svc.PlaceBid(f.ctx, f.cheap.ID, f.order.ID, 350, 25)
	require.NoError(t, err)
	_, err = f.svc.AssignDelivery(f.ctx, f.manager.ID, f.order.ID, f.cheap.ID, "")
	require.NoError(t, err)

	_, err = f.svc.SubmitRating(f.ctx, RatingInput{RaterID: f.customer.ID, TargetID: f.cheap.ID, OrderID: f.order.ID, Score: 5})
	assert.ErrorIs(t, err, model.ErrState)

	f.clk.advance(20 * time.Minute)
	_, err = f.svc.MarkDelivered(f.ctx, f.fast.ID, f.order.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)
	o, err := f.svc.MarkDelivered(f.ctx, f.cheap.ID, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, o.Status)

	courier := f.account(t, f.cheap.ID)
	assert.Equal(t, int64(350), courier.Balance)
	txs, err := f.svc.ListTransactions(f.ctx, f.cheap.ID)
	require.NoError(t, err)
	require.NoError(t, ledger.Reconcile(courier.Balance, txs))
	assert.Equal(t, model.TxDeliveryPayout, txs[0].Type)

	_, err = f.svc.SubmitRating(f.ctx, RatingInput{RaterID: f.customer.ID, TargetID: f.fast.ID, OrderID: f.order.ID, Score: 5})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = f.svc.SubmitRating(f.ctx, RatingInput{RaterID: f.customer.ID, TargetID: f.cheap.ID, OrderID: f.order.ID, Score: 6})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.SubmitRating(f.ctx, RatingInput{RaterID: f.customer.ID, TargetID: f.cheap.ID, OrderID: f.order.ID, Score: 5})
	require.NoError(t, err)
	_, err = f.svc.SubmitRating(f.ctx, RatingInput{RaterID: f.customer.ID, TargetID: f.cheap.ID, OrderID: f.order.ID, Score: 4})
	assert.ErrorIs(t, err, model.ErrConflict)

	rating, err := f.svc.GetDeliveryRating(f.ctx, f.cheap.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryRating{
		DeliveryPersonID:   f.cheap.ID,
		AverageRating:      5,
		Reviews:            1,
		TotalDeliveries:    1,
		OnTimeDeliveries:   1,
		AvgDeliveryMinutes: 20,
	}, rating)

	e := f.account(t, f.cheap.ID).Employee
	assert.Equal(t, 5.0, e.RollingAvgRating)
	assert.Equal(t, 1, e.TotalRatingCount)
	assert.Equal(t, int64(51000), e.Wage)
}

func TestSweep_IdempotentPerVersion(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", func(e *model.EmployeeProfile) {
		e.RollingAvgRating = 2.2
		e.TotalRatingCount = 5
	})
	c := f.customer(t, "c@example.com", func(a *model.Account) { a.Customer.TotalSpent = 20000 })

	ids, err := f.svc.SweepCandidates(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{chef.ID, c.ID}, ids)

	for _, id := range ids {
		swept, err := f.svc.SweepAccount(f.ctx, id)
		require.NoError(t, err)
		assert.True(t, swept)
	}
	for _, id := range ids {
		swept, err := f.svc.SweepAccount(f.ctx, id)
		require.NoError(t, err)
		assert.False(t, swept)
	}

	assert.Len(t, f.notifications(t, m.ID, model.NotifyPerformanceWarning), 1)
	assert.Equal(t, model.RoleVIP, f.account(t, c.ID).Role)

	ids, err = f.svc.SweepCandidates(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNotifications_MarkRead(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	chef := f.employee(t, model.RoleChef, "chef@example.com", nil)
	c := f.customer(t, "c@example.com", nil)
	o := f.order(t, c.ID, chef.ID, 1000)

	_, err := f.svc.FileComplaint(f.ctx, complaintAgainst(c.ID, chef.ID, &o.ID))
	require.NoError(t, err)

	_, err = f.svc.ListNotifications(f.ctx, c.ID, true)
	assert.ErrorIs(t, err, model.ErrForbidden)

	unread, err := f.svc.ListNotifications(f.ctx, m.ID, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	require.NoError(t, f.svc.MarkNotificationRead(f.ctx, m.ID, unread[0].ID))
	unread, err = f.svc.ListNotifications(f.ctx, m.ID, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	_, err = f.svc.ListAuditLogs(f.ctx, c.ID, &chef.ID, 10)
	assert.ErrorIs(t, err, model.ErrForbidden)
}

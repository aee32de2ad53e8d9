package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

// MemoryRepository хранит данные в памяти процесса. Транзакции выполняются строго по
// одной над копией состояния и применяются целиком только при успехе, что эквивалентно
// блокировкам строк в PostgreSQL.
type MemoryRepository struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryRepository создаёт пустое хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: &memState{
		accounts:   map[int64]model.Account{},
		dishes:     map[int64]model.Dish{},
		orders:     map[int64]model.Order{},
		complaints: map[int64]model.Complaint{},
		reviews:    map[int64]model.DeliveryReview{},
	}}
}

// InTx выполняет fn над копией состояния и публикует её, если fn завершилась без ошибки.
func (r *MemoryRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	next := r.state.clone()
	if err := fn(&memTx{s: next}); err != nil {
		return err
	}
	r.state = next
	return nil
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}

type memState struct {
	seq int64

	accounts      map[int64]model.Account
	dishes        map[int64]model.Dish
	orders        map[int64]model.Order
	bids          []model.Bid
	complaints    map[int64]model.Complaint
	transactions  []model.Transaction
	ratings       []model.Rating
	reviews       map[int64]model.DeliveryReview
	audit         []model.AuditLog
	notifications []model.Notification
	blacklist     []model.Blacklist
}

func (s *memState) clone() *memState {
	c := *s
	c.accounts = maps.Clone(s.accounts)
	c.dishes = maps.Clone(s.dishes)
	c.orders = maps.Clone(s.orders)
	c.bids = slices.Clone(s.bids)
	c.complaints = maps.Clone(s.complaints)
	c.transactions = slices.Clone(s.transactions)
	c.ratings = slices.Clone(s.ratings)
	c.reviews = maps.Clone(s.reviews)
	c.audit = slices.Clone(s.audit)
	c.notifications = slices.Clone(s.notifications)
	c.blacklist = slices.Clone(s.blacklist)
	return &c
}

func (s *memState) nextID() int64 {
	s.seq++
	return s.seq
}

type memTx struct {
	s *memState
}

var _ Tx = (*memTx)(nil)

// copyAccount возвращает независимую копию, чтобы изменения вызывающего не попадали в
// состояние до SaveAccount.
func copyAccount(a model.Account) *model.Account {
	if a.Employee != nil {
		e := *a.Employee
		a.Employee = &e
	}
	if a.Customer != nil {
		c := *a.Customer
		a.Customer = &c
	}
	a.PasswordHash = slices.Clone(a.PasswordHash)
	return &a
}

func (t *memTx) CreateAccount(ctx context.Context, a *model.Account) error {
	for _, existing := range t.s.accounts {
		if existing.Email == a.Email {
			return model.Conflictf("email %s is already registered", a.Email)
		}
	}
	a.ID = t.s.nextID()
	a.Version = 1
	a.CreatedAt = stamp(a.CreatedAt)
	t.s.accounts[a.ID] = *copyAccount(*a)
	return nil
}

func (t *memTx) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	a, ok := t.s.accounts[id]
	if !ok {
		return nil, model.NotFoundf("account %d", id)
	}
	return copyAccount(a), nil
}

func (t *memTx) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	for _, a := range t.s.accounts {
		if a.Email == email {
			return copyAccount(a), nil
		}
	}
	return nil, model.NotFoundf("account %s", email)
}

func (t *memTx) LockAccount(ctx context.Context, id int64) (*model.Account, error) {
	return t.GetAccount(ctx, id)
}

func (t *memTx) SaveAccount(ctx context.Context, a *model.Account) error {
	stored, ok := t.s.accounts[a.ID]
	if !ok {
		return model.NotFoundf("account %d", a.ID)
	}
	next := *copyAccount(*a)
	next.Balance = stored.Balance
	next.Email = stored.Email
	next.PasswordHash = stored.PasswordHash
	next.SweptVersion = stored.SweptVersion
	next.Version = stored.Version + 1
	t.s.accounts[a.ID] = next
	a.Version = next.Version
	return nil
}

func (t *memTx) UpdateBalance(ctx context.Context, accountID int64, balance int64) error {
	a, ok := t.s.accounts[accountID]
	if !ok {
		return model.NotFoundf("account %d", accountID)
	}
	a.Balance = balance
	t.s.accounts[accountID] = a
	return nil
}

func (t *memTx) ListSweepCandidates(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id, a := range t.s.accounts {
		if (a.Role.IsEmployee() || a.Role.IsCustomer()) && a.Version != a.SweptVersion {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (t *memTx) MarkSwept(ctx context.Context, accountID int64, version int64) error {
	a, ok := t.s.accounts[accountID]
	if !ok {
		return model.NotFoundf("account %d", accountID)
	}
	a.SweptVersion = version
	t.s.accounts[accountID] = a
	return nil
}

func (t *memTx) CreateDish(ctx context.Context, d *model.Dish) error {
	d.ID = t.s.nextID()
	d.CreatedAt = stamp(d.CreatedAt)
	t.s.dishes[d.ID] = *d
	return nil
}

func (t *memTx) ListDishes(ctx context.Context) ([]model.Dish, error) {
	res := slices.Collect(maps.Values(t.s.dishes))
	slices.SortFunc(res, func(a, b model.Dish) int { return cmp.Compare(a.ID, b.ID) })
	return res, nil
}

func (t *memTx) GetDishes(ctx context.Context, ids []int64) (map[int64]model.Dish, error) {
	res := make(map[int64]model.Dish, len(ids))
	for _, id := range ids {
		if d, ok := t.s.dishes[id]; ok {
			res[id] = d
		}
	}
	return res, nil
}

func (t *memTx) CreateOrder(ctx context.Context, o *model.Order) error {
	seen := map[int64]bool{}
	for _, it := range o.Items {
		if seen[it.DishID] {
			return model.Validationf("each dish may appear only once per order")
		}
		seen[it.DishID] = true
	}
	o.ID = t.s.nextID()
	o.CreatedAt = stamp(o.CreatedAt)
	stored := *o
	stored.Items = slices.Clone(o.Items)
	t.s.orders[o.ID] = stored
	return nil
}

func (t *memTx) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, model.NotFoundf("order %d", id)
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

func (t *memTx) LockOrder(ctx context.Context, id int64) (*model.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *memTx) UpdateOrder(ctx context.Context, o *model.Order) error {
	stored, ok := t.s.orders[o.ID]
	if !ok {
		return model.NotFoundf("order %d", o.ID)
	}
	stored.Status = o.Status
	stored.AssignedBidID = o.AssignedBidID
	stored.AssignmentMemo = o.AssignmentMemo
	stored.BiddingClosesAt = o.BiddingClosesAt
	stored.DeliveredAt = o.DeliveredAt
	t.s.orders[o.ID] = stored
	return nil
}

func (t *memTx) assignee(o model.Order) int64 {
	if o.AssignedBidID == nil {
		return 0
	}
	for _, b := range t.s.bids {
		if b.ID == *o.AssignedBidID {
			return b.DeliveryPersonID
		}
	}
	return 0
}

func (t *memTx) ListOrders(ctx context.Context, accountID int64) ([]model.Order, error) {
	var res []model.Order
	for _, o := range t.s.orders {
		if o.CustomerID == accountID || t.assignee(o) == accountID {
			res = append(res, o)
		}
	}
	slices.SortFunc(res, func(a, b model.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return res, nil
}

func (t *memTx) ListOpenOrders(ctx context.Context) ([]model.Order, error) {
	var res []model.Order
	for _, o := range t.s.orders {
		if o.Status == model.OrderStatusPaid {
			res = append(res, o)
		}
	}
	slices.SortFunc(res, func(a, b model.Order) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return res, nil
}

func (t *memTx) ListOrderParticipants(ctx context.Context, accountID int64) ([]model.OrderParticipants, error) {
	var res []model.OrderParticipants
	for _, o := range t.s.orders {
		courier := t.assignee(o)
		if o.CustomerID != accountID && courier != accountID {
			continue
		}
		p := model.OrderParticipants{OrderID: o.ID, CustomerID: o.CustomerID, DeliveryPersonID: courier, ChefIDs: []int64{}}
		for _, it := range o.Items {
			if d, ok := t.s.dishes[it.DishID]; ok && !slices.Contains(p.ChefIDs, d.ChefID) {
				p.ChefIDs = append(p.ChefIDs, d.ChefID)
			}
		}
		res = append(res, p)
	}
	slices.SortFunc(res, func(a, b model.OrderParticipants) int { return cmp.Compare(a.OrderID, b.OrderID) })
	return res, nil
}

func (t *memTx) CreateBid(ctx context.Context, b *model.Bid) error {
	for _, existing := range t.s.bids {
		if existing.OrderID == b.OrderID && existing.DeliveryPersonID == b.DeliveryPersonID {
			return model.Conflictf("delivery person %d already bid on order %d", b.DeliveryPersonID, b.OrderID)
		}
	}
	b.ID = t.s.nextID()
	b.CreatedAt = stamp(b.CreatedAt)
	t.s.bids = append(t.s.bids, *b)
	return nil
}

func (t *memTx) GetBid(ctx context.Context, id int64) (*model.Bid, error) {
	for _, b := range t.s.bids {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, model.NotFoundf("bid %d", id)
}

func (t *memTx) ListBids(ctx context.Context, orderID int64) ([]model.Bid, error) {
	var res []model.Bid
	for _, b := range t.s.bids {
		if b.OrderID == orderID {
			res = append(res, b)
		}
	}
	return res, nil
}

func (t *memTx) LastBidAt(ctx context.Context, deliveryPersonID int64) (*time.Time, error) {
	var last *time.Time
	for _, b := range t.s.bids {
		if b.DeliveryPersonID == deliveryPersonID && (last == nil || b.CreatedAt.After(*last)) {
			at := b.CreatedAt
			last = &at
		}
	}
	return last, nil
}

func (t *memTx) CreateComplaint(ctx context.Context, c *model.Complaint) error {
	c.ID = t.s.nextID()
	c.CreatedAt = stamp(c.CreatedAt)
	t.s.complaints[c.ID] = *c
	return nil
}

func (t *memTx) GetComplaint(ctx context.Context, id int64) (*model.Complaint, error) {
	return t.LockComplaint(ctx, id)
}

func (t *memTx) LockComplaint(ctx context.Context, id int64) (*model.Complaint, error) {
	c, ok := t.s.complaints[id]
	if !ok {
		return nil, model.NotFoundf("complaint %d", id)
	}
	return &c, nil
}

func (t *memTx) UpdateComplaint(ctx context.Context, c *model.Complaint) error {
	if _, ok := t.s.complaints[c.ID]; !ok {
		return model.NotFoundf("complaint %d", c.ID)
	}
	t.s.complaints[c.ID] = *c
	return nil
}

func (t *memTx) LockOldestPendingComplaint(ctx context.Context, targetID int64) (*model.Complaint, error) {
	var best *model.Complaint
	for _, c := range t.s.complaints {
		if c.Kind != model.KindComplaint || c.TargetID != targetID || c.Status != model.ComplaintPending {
			continue
		}
		if best == nil || c.CreatedAt.Before(best.CreatedAt) || (c.CreatedAt.Equal(best.CreatedAt) && c.ID < best.ID) {
			found := c
			best = &found
		}
	}
	return best, nil
}

func (t *memTx) CountUnresolvedFiled(ctx context.Context, filerID int64) (int, error) {
	var n int
	for _, c := range t.s.complaints {
		if c.FilerID == filerID && c.Kind == model.KindComplaint && c.Status != model.ComplaintResolved {
			n++
		}
	}
	return n, nil
}

func (t *memTx) ListComplaints(ctx context.Context, status model.ComplaintStatus) ([]model.Complaint, error) {
	var res []model.Complaint
	for _, c := range t.s.complaints {
		if status == "" || c.Status == status {
			res = append(res, c)
		}
	}
	slices.SortFunc(res, func(a, b model.Complaint) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return res, nil
}

func (t *memTx) InsertTransaction(ctx context.Context, tr *model.Transaction) error {
	tr.ID = t.s.nextID()
	tr.CreatedAt = stamp(tr.CreatedAt)
	t.s.transactions = append(t.s.transactions, *tr)
	return nil
}

func (t *memTx) ListTransactions(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	var res []model.Transaction
	for _, tr := range t.s.transactions {
		if tr.AccountID == accountID {
			res = append(res, tr)
		}
	}
	return res, nil
}

func (t *memTx) CreateRating(ctx context.Context, r *model.Rating) error {
	for _, existing := range t.s.ratings {
		if existing.OrderID == r.OrderID && existing.TargetID == r.TargetID {
			return model.Conflictf("account %d is already rated for order %d", r.TargetID, r.OrderID)
		}
	}
	r.ID = t.s.nextID()
	r.CreatedAt = stamp(r.CreatedAt)
	t.s.ratings = append(t.s.ratings, *r)
	return nil
}

func (t *memTx) CreateDeliveryReview(ctx context.Context, r *model.DeliveryReview) error {
	if _, ok := t.s.reviews[r.OrderID]; ok {
		return model.Conflictf("order %d is already delivered", r.OrderID)
	}
	r.DeliveredAt = stamp(r.DeliveredAt)
	t.s.reviews[r.OrderID] = *r
	return nil
}

func (t *memTx) SetDeliveryReviewRating(ctx context.Context, orderID int64, score int) error {
	r, ok := t.s.reviews[orderID]
	if !ok {
		return model.NotFoundf("delivery review for order %d", orderID)
	}
	r.Rating = &score
	t.s.reviews[orderID] = r
	return nil
}

func (t *memTx) ListDeliveryReviews(ctx context.Context, deliveryPersonID int64) ([]model.DeliveryReview, error) {
	var res []model.DeliveryReview
	for _, r := range t.s.reviews {
		if r.DeliveryPersonID == deliveryPersonID {
			res = append(res, r)
		}
	}
	slices.SortFunc(res, func(a, b model.DeliveryReview) int { return a.DeliveredAt.Compare(b.DeliveredAt) })
	return res, nil
}

func (t *memTx) InsertAuditLog(ctx context.Context, l *model.AuditLog) error {
	l.ID = t.s.nextID()
	l.CreatedAt = stamp(l.CreatedAt)
	stored := *l
	stored.Details = maps.Clone(l.Details)
	t.s.audit = append(t.s.audit, stored)
	return nil
}

func (t *memTx) ListAuditLogs(ctx context.Context, targetID *int64, limit int) ([]model.AuditLog, error) {
	var res []model.AuditLog
	for i := len(t.s.audit) - 1; i >= 0 && len(res) < limit; i-- {
		l := t.s.audit[i]
		if targetID == nil || l.TargetID == *targetID {
			res = append(res, l)
		}
	}
	return res, nil
}

func (t *memTx) InsertNotification(ctx context.Context, n *model.Notification) error {
	n.ID = t.s.nextID()
	n.CreatedAt = stamp(n.CreatedAt)
	t.s.notifications = append(t.s.notifications, *n)
	return nil
}

func (t *memTx) ListNotifications(ctx context.Context, unreadOnly bool) ([]model.Notification, error) {
	var res []model.Notification
	for i := len(t.s.notifications) - 1; i >= 0; i-- {
		n := t.s.notifications[i]
		if !unreadOnly || !n.Read {
			res = append(res, n)
		}
	}
	return res, nil
}

func (t *memTx) MarkNotificationRead(ctx context.Context, id int64) error {
	for i := range t.s.notifications {
		if t.s.notifications[i].ID == id {
			t.s.notifications[i].Read = true
			return nil
		}
	}
	return model.NotFoundf("notification %d", id)
}

func (t *memTx) InsertBlacklist(ctx context.Context, b *model.Blacklist) error {
	b.ID = t.s.nextID()
	b.CreatedAt = stamp(b.CreatedAt)
	t.s.blacklist = append(t.s.blacklist, *b)
	return nil
}

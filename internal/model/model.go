// Package model содержит доменные сущности маркетплейса ресторана.
package model

import "time"

// Role описывает роль учётной записи.
type Role string

const (
	RoleVisitor  Role = "visitor"
	RoleCustomer Role = "customer"
	RoleVIP      Role = "vip"
	RoleChef     Role = "chef"
	RoleDelivery Role = "delivery"
	RoleManager  Role = "manager"
)

// IsEmployee сообщает, относится ли роль к сотрудникам (повар или курьер).
func (r Role) IsEmployee() bool {
	return r == RoleChef || r == RoleDelivery
}

// IsCustomer сообщает, относится ли роль к покупателям.
func (r Role) IsCustomer() bool {
	return r == RoleCustomer || r == RoleVIP
}

// EmploymentStatus описывает состояние сотрудника.
type EmploymentStatus string

const (
	EmploymentActive  EmploymentStatus = "active"
	EmploymentDemoted EmploymentStatus = "demoted"
	EmploymentFired   EmploymentStatus = "fired"
)

// CustomerTier описывает уровень доверия покупателя.
type CustomerTier string

const (
	TierRegistered   CustomerTier = "registered"
	TierVIP          CustomerTier = "vip"
	TierDeregistered CustomerTier = "deregistered"
)

// Account представляет учётную запись. Ровно один из профилей Employee или Customer
// заполнен в зависимости от роли; у менеджера и посетителя оба пусты.
type Account struct {
	ID           int64
	Email        string
	PasswordHash []byte
	Name         string
	Role         Role
	Balance      int64
	Version      int64
	SweptVersion int64
	CreatedAt    time.Time

	Employee *EmployeeProfile
	Customer *CustomerProfile
}

// EmployeeProfile содержит показатели эффективности повара или курьера.
type EmployeeProfile struct {
	RollingAvgRating float64
	TotalRatingCount int
	ComplaintCount   int
	ComplimentCount  int
	TimesDemoted     int
	Status           EmploymentStatus
	IsFired          bool
	Wage             int64
}

// CustomerProfile содержит состояние покупателя.
type CustomerProfile struct {
	Warnings             int
	Tier                 CustomerTier
	PreviousType         Role
	IsBlacklisted        bool
	FreeDeliveryCredits  int
	CompletedOrdersCount int
	TotalSpent           int64
}

// Dish описывает блюдо, приготовленное конкретным поваром.
type Dish struct {
	ID        int64
	ChefID    int64
	Name      string
	Price     int64
	CreatedAt time.Time
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusAssigned  OrderStatus = "assigned"
	OrderStatusDelivered OrderStatus = "delivered"
)

// OrderItem описывает позицию заказа с ценой, зафиксированной в момент оформления.
type OrderItem struct {
	DishID    int64
	Quantity  int
	UnitPrice int64
}

// Order описывает оплаченный заказ покупателя.
type Order struct {
	ID              int64
	CustomerID      int64
	Items           []OrderItem
	DeliveryAddress string
	Status          OrderStatus
	Subtotal        int64
	Discount        int64
	DeliveryFee     int64
	FinalCost       int64
	AssignedBidID   *int64
	AssignmentMemo  string
	BiddingClosesAt *time.Time
	CreatedAt       time.Time
	DeliveredAt     *time.Time
}

// OrderParticipants перечисляет участников заказа, по которым проверяется право подать жалобу.
type OrderParticipants struct {
	OrderID    int64
	CustomerID int64
	ChefIDs    []int64
	// DeliveryPersonID равен нулю, пока заказ не назначен.
	DeliveryPersonID int64
}

// Bid описывает ставку курьера на доставку заказа. После создания не изменяется.
type Bid struct {
	ID               int64
	OrderID          int64
	DeliveryPersonID int64
	Amount           int64
	EstimatedMinutes int
	CreatedAt        time.Time
}

// ComplaintKind различает жалобы и благодарности.
type ComplaintKind string

const (
	KindComplaint  ComplaintKind = "complaint"
	KindCompliment ComplaintKind = "compliment"
)

// ComplaintStatus описывает этап рассмотрения жалобы.
type ComplaintStatus string

const (
	ComplaintPending  ComplaintStatus = "pending"
	ComplaintDisputed ComplaintStatus = "disputed"
	ComplaintResolved ComplaintStatus = "resolved"
)

// Resolution описывает итог рассмотрения.
type Resolution string

const (
	ResolutionNone                 Resolution = ""
	ResolutionDismissed            Resolution = "dismissed"
	ResolutionWarningIssued        Resolution = "warning_issued"
	ResolutionCanceledByCompliment Resolution = "canceled_by_compliment"
	ResolutionCanceledComplaint    Resolution = "canceled_complaint"
)

// Complaint описывает жалобу или благодарность (поле Kind).
type Complaint struct {
	ID              int64
	Kind            ComplaintKind
	FilerID         int64
	TargetID        int64
	OrderID         *int64
	Description     string
	Status          ComplaintStatus
	Resolution      Resolution
	Disputed        bool
	DisputeReason   string
	DisputedAt      *time.Time
	ResolvedBy      *int64
	ResolutionNotes string
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// TransactionType описывает вид операции по балансу.
type TransactionType string

const (
	TxDeposit        TransactionType = "deposit"
	TxWithdrawal     TransactionType = "withdrawal"
	TxOrderPayment   TransactionType = "order_payment"
	TxRefund         TransactionType = "refund"
	TxDeliveryPayout TransactionType = "delivery_payout"
)

// Transaction описывает неизменяемую запись журнала операций по балансу.
type Transaction struct {
	ID            int64
	AccountID     int64
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	Type          TransactionType
	Reference     string
	CreatedAt     time.Time
}

// Rating описывает оценку, выставленную покупателем повару или курьеру по заказу.
type Rating struct {
	ID        int64
	OrderID   int64
	RaterID   int64
	TargetID  int64
	Score     int
	OnTime    *bool
	CreatedAt time.Time
}

// DeliveryReview содержит данные об одной выполненной доставке.
type DeliveryReview struct {
	OrderID          int64
	DeliveryPersonID int64
	Rating           *int
	OnTime           bool
	DeliveryMinutes  int
	DeliveredAt      time.Time
}

// DeliveryRating содержит агрегат по курьеру, всегда пересчитываемый из DeliveryReview.
type DeliveryRating struct {
	DeliveryPersonID   int64   `json:"delivery_person_id"`
	AverageRating      float64 `json:"average_rating"`
	Reviews            int     `json:"reviews"`
	TotalDeliveries    int     `json:"total_deliveries"`
	OnTimeDeliveries   int     `json:"on_time_deliveries"`
	AvgDeliveryMinutes float64 `json:"avg_delivery_minutes"`
}

// AuditAction описывает тип записи аудита.
type AuditAction string

const (
	AuditRating          AuditAction = "rating"
	AuditComplaintFiled  AuditAction = "complaint_filed"
	AuditComplimentFiled AuditAction = "compliment_filed"
	AuditDemotion        AuditAction = "demotion"
	AuditFiring          AuditAction = "firing"
	AuditBonus           AuditAction = "bonus"
	AuditWarning         AuditAction = "warning"
	AuditVIPDemotion     AuditAction = "vip_demotion"
	AuditVIPPromotion    AuditAction = "vip_promotion"
	AuditBlacklist       AuditAction = "blacklist"
	AuditDispute         AuditAction = "dispute"
	AuditResolution      AuditAction = "resolution"
	AuditCancellation    AuditAction = "cancellation"
	AuditAssignment      AuditAction = "assignment"
	AuditDelivery        AuditAction = "delivery"
)

// AuditLog описывает неизменяемую запись о переходе, влияющем на репутацию.
type AuditLog struct {
	ID          int64          `json:"id"`
	ActionType  AuditAction    `json:"action_type"`
	ActorID     *int64         `json:"actor_id,omitempty"`
	TargetID    int64          `json:"target_id"`
	ComplaintID *int64         `json:"complaint_id,omitempty"`
	OrderID     *int64         `json:"order_id,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NotificationKind описывает тип уведомления менеджера.
type NotificationKind string

const (
	NotifyPerformanceWarning  NotificationKind = "performance_warning"
	NotifyPerformanceCritical NotificationKind = "performance_critical"
	NotifyNewComplaint        NotificationKind = "new_complaint"
	NotifyDeregistration      NotificationKind = "deregistration"
)

// Notification описывает уведомление для менеджеров. Не отзывается, только помечается прочитанным.
type Notification struct {
	ID        int64            `json:"id"`
	Kind      NotificationKind `json:"kind"`
	SubjectID int64            `json:"subject_id"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// Blacklist фиксирует причину и автора блокировки покупателя.
type Blacklist struct {
	ID        int64
	AccountID int64
	ManagerID *int64
	Reason    string
	CreatedAt time.Time
}

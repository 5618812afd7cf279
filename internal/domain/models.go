package domain

import (
	"encoding/json"
	"time"
)

// PointThreshold is the minimum discounted subtotal for redeeming or earning points.
const PointThreshold int64 = 5000

// OtherDistrict is the fallback row of a branch delivery fee table.
const OtherDistrict = "기타"

type Actor struct {
	Username string
	Role     string
	BranchID string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	BranchID    string `json:"branch_id"`
	ExpiresAt   string `json:"expires_at"`
}

type OrderItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Price           int64  `json:"price"`
	Quantity        int    `json:"quantity"`
	IsCustomProduct bool   `json:"is_custom_product"`
}

func (i OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}

type Party struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type Driver struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
}

type OrderSummary struct {
	Subtotal       int64   `json:"subtotal"`
	DiscountRate   float64 `json:"discount_rate"`
	DiscountAmount int64   `json:"discount_amount"`
	DeliveryFee    int64   `json:"delivery_fee"`
	PointsUsed     int64   `json:"points_used"`
	PointsEarned   int64   `json:"points_earned"`
	Total          int64   `json:"total"`
}

// DiscountedSubtotal is the subtotal after the discount, before points and delivery.
func (s OrderSummary) DiscountedSubtotal() int64 {
	return s.Subtotal - s.DiscountAmount
}

type Payment struct {
	Method              string     `json:"method"`
	Status              string     `json:"status"`
	FirstPaymentAmount  int64      `json:"first_payment_amount,omitempty"`
	FirstPaymentMethod  string     `json:"first_payment_method,omitempty"`
	SecondPaymentMethod string     `json:"second_payment_method,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

func (p Payment) IsSplit() bool {
	return p.Status == PaymentStatusSplit || (p.FirstPaymentMethod != "" && p.SecondPaymentMethod != "")
}

// SecondPaymentAmount is always derived from the order total.
func (p Payment) SecondPaymentAmount(total int64) int64 {
	if !p.IsSplit() {
		return 0
	}
	return total - p.FirstPaymentAmount
}

type DeliveryCostRecord struct {
	CustomerFee int64      `json:"customer_fee"`
	ActualCost  int64      `json:"actual_cost"`
	Profit      int64      `json:"profit"`
	Status      string     `json:"status"`
	RecordedAt  *time.Time `json:"recorded_at,omitempty"`
}

type Order struct {
	ID              string              `json:"id"`
	IdempotencyKey  string              `json:"idempotency_key"`
	BranchID        string              `json:"branch_id"`
	CustomerID      string              `json:"customer_id,omitempty"`
	Orderer         Party               `json:"orderer"`
	Items           []OrderItem         `json:"items"`
	Summary         OrderSummary        `json:"summary"`
	Payment         Payment             `json:"payment"`
	Fulfillment     Fulfillment         `json:"-"`
	Status          string              `json:"status"`
	SystemGenerated bool                `json:"system_generated"`
	EntryPath       string              `json:"entry_path"`
	Driver          *Driver             `json:"driver,omitempty"`
	DeliveryCost    *DeliveryCostRecord `json:"delivery_cost,omitempty"`
	Memo            string              `json:"memo,omitempty"`
	CreatedBy       string              `json:"created_by"`
	CreatedAt       time.Time           `json:"created_at"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	type alias Order
	return json.Marshal(struct {
		alias
		Fulfillment FulfillmentRecord `json:"fulfillment"`
	}{alias: alias(o), Fulfillment: RecordOf(o.Fulfillment)})
}

func (o *Order) UnmarshalJSON(data []byte) error {
	type alias Order
	aux := struct {
		*alias
		Fulfillment FulfillmentRecord `json:"fulfillment"`
	}{alias: (*alias)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	f, err := aux.Fulfillment.Decode()
	if err != nil {
		return err
	}
	o.Fulfillment = f
	return nil
}

type DistrictFee struct {
	District string `json:"district" validate:"required"`
	Fee      int64  `json:"fee" validate:"gte=0"`
}

type Surcharges struct {
	Medium  int64 `json:"medium" validate:"gte=0"`
	Large   int64 `json:"large" validate:"gte=0"`
	Express int64 `json:"express" validate:"gte=0"`
}

type DeliveryFeeTable struct {
	Rows       []DistrictFee `json:"rows" validate:"dive"`
	Surcharges Surcharges    `json:"surcharges"`
}

type Branch struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	DeliveryFees *DeliveryFeeTable `json:"delivery_fees,omitempty"`
}

type DiscountTier struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Rate        float64   `json:"rate"`
	BranchID    string    `json:"branch_id,omitempty"`
	MinSubtotal int64     `json:"min_subtotal"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Customer struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Type              string    `json:"type"`
	BranchID          string    `json:"branch_id"`
	Contact           string    `json:"contact,omitempty"`
	Points            int64     `json:"points"`
	MonthlyPaymentDay string    `json:"monthly_payment_day,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type Expense struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	Category  string    `json:"category"`
	Supplier  string    `json:"supplier"`
	Amount    int64     `json:"amount"`
	SourceID  string    `json:"source_id"`
	Memo      string    `json:"memo,omitempty"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

type OutsourceRecord struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"order_id"`
	BranchID        string     `json:"branch_id"`
	PartnerBranchID string     `json:"partner_branch_id"`
	State           string     `json:"state"`
	OrderRevenue    int64      `json:"order_revenue"`
	PartnerPrice    int64      `json:"partner_price"`
	Profit          int64      `json:"profit"`
	Note            string     `json:"note,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CanceledAt      *time.Time `json:"canceled_at,omitempty"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	BranchID      string    `json:"branch_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type StaffCreateRequest struct {
	Username string `json:"username" validate:"required,min=4"`
	Password string `json:"password" validate:"required,min=6"`
	BranchID string `json:"branch_id" validate:"required"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	BranchID  string    `json:"branch_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	BranchID  string
	Active    bool
	CreatedAt time.Time
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	BranchTypeHeadquarters = "headquarters"
	BranchTypeFranchise    = "franchise"
)

const (
	CustomerTypeIndividual = "individual"
	CustomerTypeCompany    = "company"
)

const (
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCanceled   = "canceled"
)

const (
	EntryPathFull       = "full"
	EntryPathSimplified = "simplified"
)

const (
	PaymentMethodCard         = "card"
	PaymentMethodCash         = "cash"
	PaymentMethodTransfer     = "transfer"
	PaymentMethodHouseAccount = "house_account"
	PaymentMethodMarketplace  = "marketplace"
	PaymentMethodEPay         = "epay"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusCompleted = "completed"
	PaymentStatusSplit     = "split"
)

const (
	DeliveryCostPending   = "pending"
	DeliveryCostCompleted = "completed"
)

const (
	OutsourcePending   = "pending"
	OutsourceAccepted  = "accepted"
	OutsourceCompleted = "completed"
	OutsourceCanceled  = "canceled"
)

const ExpenseCategoryTransport = "TRANSPORT"

func IsPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCard, PaymentMethodCash, PaymentMethodTransfer,
		PaymentMethodHouseAccount, PaymentMethodMarketplace, PaymentMethodEPay:
		return true
	default:
		return false
	}
}

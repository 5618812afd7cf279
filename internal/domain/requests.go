package domain

import "time"

type DiscountRequest struct {
	SelectedTierRate float64 `json:"selected_tier_rate" validate:"gte=0,lte=100"`
	CustomRate       float64 `json:"custom_rate" validate:"gte=0,lte=50"`
}

type DeliveryFeeRequest struct {
	Mode      string `json:"mode" validate:"omitempty,oneof=auto manual"`
	ManualFee int64  `json:"manual_fee"`
	District  string `json:"district"`
}

type QuoteRequest struct {
	BranchID        string             `json:"branch_id"`
	CustomerID      string             `json:"customer_id"`
	Items           []OrderItem        `json:"items" validate:"required,min=1"`
	Discount        DiscountRequest    `json:"discount"`
	Fulfillment     FulfillmentRecord  `json:"fulfillment"`
	DeliveryFee     DeliveryFeeRequest `json:"delivery_fee"`
	PointsRequested int64              `json:"points_requested"`
	EntryPath       string             `json:"entry_path" validate:"omitempty,oneof=full simplified"`
}

type QuoteResponse struct {
	Summary             OrderSummary `json:"summary"`
	DiscountedSubtotal  int64        `json:"discounted_subtotal"`
	MaxRedeemablePoints int64        `json:"max_redeemable_points"`
	CustomerPoints      int64        `json:"customer_points"`
	FeeMode             string       `json:"fee_mode"`
	Surcharges          *Surcharges  `json:"surcharges,omitempty"`
}

type PaymentRequest struct {
	Method              string `json:"method" validate:"omitempty,oneof=card cash transfer house_account marketplace epay"`
	Status              string `json:"status" validate:"omitempty,oneof=pending paid completed split"`
	FirstPaymentAmount  int64  `json:"first_payment_amount"`
	FirstPaymentMethod  string `json:"first_payment_method"`
	SecondPaymentMethod string `json:"second_payment_method"`
}

type CreateOrderRequest struct {
	QuoteRequest
	IdempotencyKey  string         `json:"idempotency_key"`
	Orderer         Party          `json:"orderer"`
	Payment         PaymentRequest `json:"payment"`
	Memo            string         `json:"memo"`
	SystemGenerated bool           `json:"system_generated"`
}

type SplitAmounts struct {
	First  int64 `json:"first"`
	Second int64 `json:"second"`
}

type CreateOrderResponse struct {
	Order     Order         `json:"order"`
	Split     *SplitAmounts `json:"split,omitempty"`
	Duplicate bool          `json:"duplicate"`
}

type CancelOrderRequest struct {
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin" validate:"required"`
}

type AssignDriverRequest struct {
	Name        string `json:"name" validate:"required"`
	Affiliation string `json:"affiliation"`
}

type DeliveryCostRequest struct {
	ActualCost int64 `json:"actual_cost" validate:"gte=0"`
}

type FulfillmentSwitchRequest struct {
	Current FulfillmentRecord `json:"current"`
	To      FulfillmentType   `json:"to" validate:"required"`
	Orderer Party             `json:"orderer"`
}

type OutsourceCreateRequest struct {
	OrderID         string `json:"order_id" validate:"required"`
	PartnerBranchID string `json:"partner_branch_id" validate:"required"`
	PartnerPrice    int64  `json:"partner_price" validate:"gte=0"`
	Note            string `json:"note"`
}

type OutsourceTransitionRequest struct {
	State string `json:"state" validate:"required,oneof=pending accepted completed canceled"`
}

type OutsourceUpdateRequest struct {
	PartnerPrice *int64  `json:"partner_price" validate:"omitempty,gte=0"`
	Note         *string `json:"note"`
}

type DiscountTierCreateRequest struct {
	Label       string  `json:"label" validate:"required"`
	Rate        float64 `json:"rate" validate:"gte=0,lte=50"`
	BranchID    string  `json:"branch_id"`
	MinSubtotal int64   `json:"min_subtotal" validate:"gte=0"`
}

type DiscountTierUpdateRequest struct {
	Active bool `json:"active"`
}

type CustomerCreateRequest struct {
	Name              string `json:"name" validate:"required"`
	Type              string `json:"type" validate:"omitempty,oneof=individual company"`
	BranchID          string `json:"branch_id"`
	Contact           string `json:"contact"`
	Points            int64  `json:"points" validate:"gte=0"`
	MonthlyPaymentDay string `json:"monthly_payment_day"`
}

type CalendarEntryUpdateRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
	Status      *string    `json:"status"`
	Color       *string    `json:"color"`
}

type RevenueByMethod struct {
	Method   string `json:"method"`
	Tranches int    `json:"tranches"`
	Amount   int64  `json:"amount"`
}

// RevenueReport sums the revenue tranches recognised on one day.
type RevenueReport struct {
	BranchID       string            `json:"branch_id"`
	Date           string            `json:"date"`
	Orders         int               `json:"orders"`
	Recognized     int64             `json:"recognized"`
	Deferred       int64             `json:"deferred"`
	DeliveryFees   int64             `json:"delivery_fees"`
	PointsRedeemed int64             `json:"points_redeemed"`
	ByMethod       []RevenueByMethod `json:"by_method"`
}

package domain

import "time"

type EntryOriginKind string

const (
	OriginManual          EntryOriginKind = "manual"
	OriginOrder           EntryOriginKind = "order"
	OriginPaymentSchedule EntryOriginKind = "payment_schedule"
)

// EntryOrigin tags where a calendar entry came from. RefID is the order id or the
// customer id for derived entries and empty for manual ones.
type EntryOrigin struct {
	Kind  EntryOriginKind `json:"kind"`
	RefID string          `json:"ref_id,omitempty"`
}

func (o EntryOrigin) IsDerived() bool {
	return o.Kind == OriginOrder || o.Kind == OriginPaymentSchedule
}

const (
	EntryTypeDelivery = "delivery"
	EntryTypePickup   = "pickup"
	EntryTypeMaterial = "material"
	EntryTypeEmployee = "employee"
	EntryTypeNotice   = "notice"
	EntryTypePayment  = "payment"
)

type CalendarEntry struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Start       time.Time   `json:"start"`
	End         *time.Time  `json:"end,omitempty"`
	BranchID    string      `json:"branch_id"`
	Status      string      `json:"status"`
	Color       string      `json:"color,omitempty"`
	Origin      EntryOrigin `json:"origin"`
	CreatedBy   string      `json:"created_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// RelatedOrderID returns the originating order id for order-derived entries.
func (e CalendarEntry) RelatedOrderID() string {
	if e.Origin.Kind != OriginOrder {
		return ""
	}
	return e.Origin.RefID
}

type CalendarEntryRequest struct {
	Type        string     `json:"type" validate:"required,oneof=delivery pickup material employee notice payment"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Start       time.Time  `json:"start" validate:"required"`
	End         *time.Time `json:"end,omitempty"`
	BranchID    string     `json:"branch_id"`
	Status      string     `json:"status"`
	Color       string     `json:"color"`
}

type CalendarResponse struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Entries []CalendarEntry `json:"entries"`
}

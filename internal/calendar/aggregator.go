package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/fulfillment"
)

const (
	DefaultPickupTime   = "09:00"
	DefaultDeliveryTime = "14:00"
	DefaultPaymentTime  = "10:00"
)

const (
	ColorPickup    = "#10b981"
	ColorDelivery  = "#3b82f6"
	ColorPayment   = "#f59e0b"
	ColorCompleted = "#9ca3af"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
)

const (
	orderPrefix   = "order-"
	paymentPrefix = "payment-"
)

type Viewer struct {
	Username string
	BranchID string
	IsAdmin  bool
}

// Aggregator merges manual entries with the entries derived from orders and customer payment
// days. It never writes.
type Aggregator struct {
	HeadquartersBranchID string
	Location             *time.Location
}

func New(headquartersBranchID string, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{HeadquartersBranchID: headquartersBranchID, Location: loc}
}

// Aggregate returns the entries within window that viewer may see, ordered by start.
func (a *Aggregator) Aggregate(manual []domain.CalendarEntry, orders []domain.Order, customers []domain.Customer, window Window, viewer Viewer) []domain.CalendarEntry {
	entries := make([]domain.CalendarEntry, 0, len(manual)+len(orders))
	for _, e := range manual {
		if window.Overlaps(e.Start, e.End) {
			entries = append(entries, e)
		}
	}
	for _, o := range orders {
		e, ok := a.FromOrder(o)
		if ok && window.Contains(e.Start) {
			entries = append(entries, e)
		}
	}
	for _, c := range customers {
		entries = append(entries, a.PaymentReminders(c, window)...)
	}

	visible := entries[:0]
	for _, e := range entries {
		if a.Visible(e, viewer) {
			visible = append(visible, e)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		if !visible[i].Start.Equal(visible[j].Start) {
			return visible[i].Start.Before(visible[j].Start)
		}
		return visible[i].ID < visible[j].ID
	})
	return visible
}

// FromOrder derives the pickup or delivery entry of a reserved order that is still live.
func (a *Aggregator) FromOrder(o domain.Order) (domain.CalendarEntry, bool) {
	if o.Status != domain.OrderStatusProcessing && o.Status != domain.OrderStatusCompleted {
		return domain.CalendarEntry{}, false
	}

	var (
		entryType string
		title     string
		clock     string
		color     string
	)
	switch f := o.Fulfillment.(type) {
	case domain.ReservedPickup:
		entryType, clock, color = domain.EntryTypePickup, DefaultPickupTime, ColorPickup
		title = "픽업: " + firstNonEmpty(f.PickerName, o.Orderer.Name)
	case domain.ReservedDelivery:
		entryType, clock, color = domain.EntryTypeDelivery, DefaultDeliveryTime, ColorDelivery
		title = "배송: " + firstNonEmpty(f.RecipientName, o.Orderer.Name)
		if f.District != "" {
			title += " (" + f.District + ")"
		}
	default:
		return domain.CalendarEntry{}, false
	}

	start, ok := fulfillment.ScheduledAt(o.Fulfillment, clock, a.Location)
	if !ok {
		return domain.CalendarEntry{}, false
	}

	status := StatusScheduled
	if o.Status == domain.OrderStatusCompleted {
		status, color = StatusCompleted, ColorCompleted
	}
	return domain.CalendarEntry{
		ID:          orderPrefix + o.ID,
		Type:        entryType,
		Title:       title,
		Description: itemSummary(o.Items),
		Start:       start,
		BranchID:    o.BranchID,
		Status:      status,
		Color:       color,
		Origin:      domain.EntryOrigin{Kind: domain.OriginOrder, RefID: o.ID},
		CreatedBy:   o.CreatedBy,
		CreatedAt:   o.CreatedAt,
	}, true
}

// PaymentReminders yields one entry per month of the window for a company customer with a
// monthly payment day. A day the month does not have is skipped, never rolled over.
func (a *Aggregator) PaymentReminders(c domain.Customer, window Window) []domain.CalendarEntry {
	if c.Type != domain.CustomerTypeCompany {
		return nil
	}
	day, ok := ParsePaymentDay(c.MonthlyPaymentDay)
	if !ok {
		return nil
	}
	hour, minute := clockParts(DefaultPaymentTime)

	var entries []domain.CalendarEntry
	for _, month := range window.Months() {
		if day > daysIn(month) {
			continue
		}
		start := time.Date(month.Year(), month.Month(), day, hour, minute, 0, 0, a.Location)
		entries = append(entries, domain.CalendarEntry{
			ID:       fmt.Sprintf("%s%s-%s", paymentPrefix, c.ID, month.Format("2006-01")),
			Type:     domain.EntryTypePayment,
			Title:    c.Name + " 결제일",
			Start:    start,
			BranchID: c.BranchID,
			Status:   StatusScheduled,
			Color:    ColorPayment,
			Origin:   domain.EntryOrigin{Kind: domain.OriginPaymentSchedule, RefID: c.ID},
		})
	}
	return entries
}

// Visible applies the branch rules. Administrators see everything. Notices scoped to the head
// office reach every branch. Everything else stays inside its branch.
func (a *Aggregator) Visible(e domain.CalendarEntry, viewer Viewer) bool {
	if viewer.IsAdmin {
		return true
	}
	if e.Type == domain.EntryTypeNotice && e.BranchID == a.HeadquartersBranchID {
		return true
	}
	return viewer.BranchID != "" && e.BranchID == viewer.BranchID
}

// ParsePaymentDay accepts a blank-trimmed day of month between 1 and 31.
func ParsePaymentDay(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	day, err := strconv.Atoi(raw)
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}
	return day, true
}

func itemSummary(items []domain.OrderItem) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, fmt.Sprintf("%s x%d", item.Name, item.Quantity))
	}
	return strings.Join(names, ", ")
}

func clockParts(clock string) (int, int) {
	t, err := time.Parse(fulfillment.TimeLayout, clock)
	if err != nil {
		return 0, 0
	}
	return t.Hour(), t.Minute()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

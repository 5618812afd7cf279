package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flowershop/backend/internal/domain"
)

// DefaultSupplier is booked when the driver has no affiliation.
const DefaultSupplier = "carrier"

// CostRecorder stores the delivery cost of an order together with its expense, keyed by the
// expense SourceID, as long as the order still has expectedStatus. Recording the same source
// twice replaces the earlier expense.
type CostRecorder interface {
	RecordDeliveryCost(ctx context.Context, order domain.Order, expectedStatus string, expense domain.Expense) (*domain.Order, error)
}

type DeliveryCostLedger struct {
	recorder CostRecorder
	now      func() time.Time
}

func NewDeliveryCostLedger(recorder CostRecorder, now func() time.Time) *DeliveryCostLedger {
	if now == nil {
		now = time.Now
	}
	return &DeliveryCostLedger{recorder: recorder, now: now}
}

// OpenDeliveryCost is the empty record attached to a reserved delivery when it is committed.
func OpenDeliveryCost(order domain.Order) *domain.DeliveryCostRecord {
	if _, ok := order.Fulfillment.(domain.ReservedDelivery); !ok {
		return nil
	}
	return &domain.DeliveryCostRecord{CustomerFee: order.Summary.DeliveryFee, Status: domain.DeliveryCostPending}
}

// RecordActualCost fills the delivery cost of an order and books the matching transport
// expense in one store call. Entering a cost again overwrites both the record and the expense.
func (l *DeliveryCostLedger) RecordActualCost(ctx context.Context, order domain.Order, actualCost int64) (*domain.Order, error) {
	if _, ok := order.Fulfillment.(domain.ReservedDelivery); !ok {
		return nil, fmt.Errorf("%w: order %s is not a delivery", domain.ErrValidation, order.ID)
	}
	if order.Status == domain.OrderStatusCanceled {
		return nil, fmt.Errorf("%w: order %s is canceled", domain.ErrInvalidStateTransition, order.ID)
	}
	if actualCost < 0 {
		return nil, fmt.Errorf("%w: actual cost cannot be negative", domain.ErrValidation)
	}

	now := l.now()
	order.DeliveryCost = &domain.DeliveryCostRecord{
		CustomerFee: order.Summary.DeliveryFee,
		ActualCost:  actualCost,
		Profit:      order.Summary.DeliveryFee - actualCost,
		Status:      domain.DeliveryCostCompleted,
		RecordedAt:  &now,
	}
	expense := domain.Expense{
		BranchID: order.BranchID,
		Category: domain.ExpenseCategoryTransport,
		Supplier: supplierOf(order.Driver),
		Amount:   actualCost,
		SourceID: order.ID,
		Memo:     "delivery " + order.ID,
		Date:     now,
	}

	stored, err := l.recorder.RecordDeliveryCost(ctx, order, order.Status, expense)
	if err != nil {
		return nil, fmt.Errorf("record delivery cost: %w", err)
	}
	return stored, nil
}

func supplierOf(driver *domain.Driver) string {
	if driver == nil {
		return DefaultSupplier
	}
	if affiliation := strings.TrimSpace(driver.Affiliation); affiliation != "" {
		return affiliation
	}
	return DefaultSupplier
}

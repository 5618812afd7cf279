package ledger

import (
	"fmt"
	"strings"
	"time"

	"flowershop/backend/internal/domain"
)

var outsourceTransitions = map[string][]string{
	domain.OutsourcePending:  {domain.OutsourceAccepted, domain.OutsourceCanceled},
	domain.OutsourceAccepted: {domain.OutsourceCompleted, domain.OutsourceCanceled},
}

func CanTransition(from string, to string) bool {
	for _, s := range outsourceTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(state string) bool {
	return state == domain.OutsourceCompleted || state == domain.OutsourceCanceled
}

// NewOutsourceRecord routes an order to a partner branch in the pending state.
func NewOutsourceRecord(id string, order domain.Order, partnerBranchID string, partnerPrice int64, note string, at time.Time) (domain.OutsourceRecord, error) {
	partnerBranchID = strings.TrimSpace(partnerBranchID)
	if partnerBranchID == "" {
		return domain.OutsourceRecord{}, fmt.Errorf("%w: partner branch is required", domain.ErrValidation)
	}
	if partnerBranchID == order.BranchID {
		return domain.OutsourceRecord{}, fmt.Errorf("%w: partner must be another branch", domain.ErrValidation)
	}
	if order.Status == domain.OrderStatusCanceled {
		return domain.OutsourceRecord{}, fmt.Errorf("%w: order %s is canceled", domain.ErrInvalidStateTransition, order.ID)
	}
	if partnerPrice < 0 {
		return domain.OutsourceRecord{}, fmt.Errorf("%w: partner price cannot be negative", domain.ErrValidation)
	}

	return domain.OutsourceRecord{
		ID:              id,
		OrderID:         order.ID,
		BranchID:        order.BranchID,
		PartnerBranchID: partnerBranchID,
		State:           domain.OutsourcePending,
		OrderRevenue:    order.Summary.Total,
		PartnerPrice:    partnerPrice,
		Profit:          order.Summary.Total - partnerPrice,
		Note:            strings.TrimSpace(note),
		CreatedAt:       at,
	}, nil
}

// Transition moves a record along pending -> accepted -> completed, or to canceled from either
// open state. Completed and canceled are terminal.
func Transition(record domain.OutsourceRecord, next string, at time.Time) (domain.OutsourceRecord, error) {
	if !CanTransition(record.State, next) {
		return domain.OutsourceRecord{}, fmt.Errorf("%w: outsource %s cannot move from %s to %s",
			domain.ErrInvalidStateTransition, record.ID, record.State, next)
	}
	record.State = next
	switch next {
	case domain.OutsourceAccepted:
		record.AcceptedAt = &at
	case domain.OutsourceCompleted:
		record.CompletedAt = &at
	case domain.OutsourceCanceled:
		record.CanceledAt = &at
	}
	return record, nil
}

// SetPartnerPrice changes what the partner is paid and recomputes the margin.
func SetPartnerPrice(record domain.OutsourceRecord, price int64) (domain.OutsourceRecord, error) {
	if IsTerminal(record.State) {
		return domain.OutsourceRecord{}, fmt.Errorf("%w: outsource %s is %s", domain.ErrInvalidStateTransition, record.ID, record.State)
	}
	if price < 0 {
		return domain.OutsourceRecord{}, fmt.Errorf("%w: partner price cannot be negative", domain.ErrValidation)
	}
	record.PartnerPrice = price
	record.Profit = record.OrderRevenue - price
	return record, nil
}

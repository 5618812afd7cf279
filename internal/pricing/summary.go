package pricing

import (
	"fmt"

	"flowershop/backend/internal/domain"
)

// Calculator composes the resolvers into an order summary. It holds only the point policy and
// is safe for concurrent use.
type Calculator struct {
	policy PointPolicy
}

func NewCalculator(policy PointPolicy) *Calculator {
	return &Calculator{policy: policy}
}

func (c *Calculator) Policy() PointPolicy {
	return c.policy
}

// Compute builds the summary for a cart. It never touches a point balance; deduction happens
// when the order is committed.
func (c *Calculator) Compute(items []domain.OrderItem, discount DiscountInputs, delivery DeliveryInputs, points PointInputs) (domain.OrderSummary, error) {
	subtotal, err := Subtotal(items)
	if err != nil {
		return domain.OrderSummary{}, err
	}

	fulfillment := delivery.Fulfillment
	if fulfillment == nil {
		fulfillment = domain.ImmediatePickup{}
	}
	if !domain.IsPickup(fulfillment) && delivery.BranchID == "" {
		return domain.OrderSummary{}, fmt.Errorf("%w: branch is required for delivery", domain.ErrValidation)
	}

	d := ResolveDiscount(subtotal, discount)
	discounted := subtotal - d.Amount

	var used int64
	if points.CustomerSelected {
		used = RedeemPoints(points.Balance, discounted, points.Requested)
	}

	fee := ResolveDeliveryFee(fulfillment, delivery.Mode, delivery.ManualFee, delivery.Table, delivery.District)

	var earned int64
	if points.CustomerSelected && discounted >= domain.PointThreshold {
		earned = EarnPoints(discounted-used, c.policy.EarnsOn(points.EntryPath))
	}

	return domain.OrderSummary{
		Subtotal:       subtotal,
		DiscountRate:   d.Rate,
		DiscountAmount: d.Amount,
		DeliveryFee:    fee,
		PointsUsed:     used,
		PointsEarned:   earned,
		Total:          discounted - used + fee,
	}, nil
}

// Subtotal sums price * quantity. Only custom items may carry a zero quantity.
func Subtotal(items []domain.OrderItem) (int64, error) {
	var subtotal int64
	for _, item := range items {
		if item.Price < 0 {
			return 0, fmt.Errorf("%w: item %q has a negative price", domain.ErrValidation, item.Name)
		}
		if item.Quantity < 0 {
			return 0, fmt.Errorf("%w: item %q has a negative quantity", domain.ErrValidation, item.Name)
		}
		if item.Quantity == 0 && !item.IsCustomProduct {
			return 0, fmt.Errorf("%w: item %q quantity must be at least 1", domain.ErrValidation, item.Name)
		}
		subtotal += item.LineTotal()
	}
	return subtotal, nil
}

package pricing

import (
	"github.com/shopspring/decimal"

	"flowershop/backend/internal/domain"
)

var earnRate = decimal.RequireFromString("0.02")

// PointPolicy holds the global point settings. SimplifiedPathEarns controls whether orders
// entered through the simplified entry path accrue points; it is off by default so that path
// keeps earning nothing.
type PointPolicy struct {
	AccumulationEnabled bool
	SimplifiedPathEarns bool
}

func DefaultPointPolicy() PointPolicy {
	return PointPolicy{AccumulationEnabled: true}
}

func (p PointPolicy) EarnsOn(entryPath string) bool {
	if !p.AccumulationEnabled {
		return false
	}
	if entryPath == domain.EntryPathSimplified {
		return p.SimplifiedPathEarns
	}
	return true
}

type PointInputs struct {
	CustomerSelected bool
	Balance          int64
	Requested        int64
	EntryPath        string
}

func CanRedeem(customerSelected bool, discountedSubtotal int64) bool {
	return customerSelected && discountedSubtotal >= domain.PointThreshold
}

// MaxRedeemable is min(balance, discountedSubtotal), or zero below the threshold.
func MaxRedeemable(balance int64, discountedSubtotal int64) int64 {
	if discountedSubtotal < domain.PointThreshold || balance <= 0 {
		return 0
	}
	return min(balance, discountedSubtotal)
}

// RedeemPoints clamps a request to what the balance and subtotal allow. Requests above the
// cap are reduced, never rejected.
func RedeemPoints(balance int64, discountedSubtotal int64, requested int64) int64 {
	if requested <= 0 {
		return 0
	}
	return min(requested, MaxRedeemable(balance, discountedSubtotal))
}

// EarnPoints returns floor(netPayable * 2%).
func EarnPoints(netPayable int64, accumulationEnabled bool) int64 {
	if !accumulationEnabled || netPayable <= 0 {
		return 0
	}
	return decimal.NewFromInt(netPayable).Mul(earnRate).Floor().IntPart()
}

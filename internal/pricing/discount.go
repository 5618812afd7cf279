package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"flowershop/backend/internal/domain"
)

// MaxCustomRate caps a manually typed discount rate.
const MaxCustomRate = 50.0

type selectionKind int

const (
	selectionNone selectionKind = iota
	selectionTier
	selectionCustom
)

// DiscountSelection is the single discount choice made at order entry: a configured tier,
// a custom typed rate, or nothing.
type DiscountSelection struct {
	kind selectionKind
	rate float64
}

func NoDiscount() DiscountSelection {
	return DiscountSelection{}
}

func TierDiscount(rate float64) DiscountSelection {
	return DiscountSelection{kind: selectionTier, rate: rate}
}

func CustomDiscount(rate float64) DiscountSelection {
	return DiscountSelection{kind: selectionCustom, rate: rate}
}

// SelectionFromRates resolves the two raw rates the entry screens send. A nonzero tier
// rate wins over the custom rate.
func SelectionFromRates(selectedTierRate float64, customRate float64) DiscountSelection {
	if selectedTierRate > 0 {
		return TierDiscount(selectedTierRate)
	}
	if customRate > 0 {
		return CustomDiscount(customRate)
	}
	return NoDiscount()
}

// SelectTier checks the raw entry rates against the configured tiers. A tier rate must be the
// rate of an active tier offered to branchID; a custom rate must lie within [0, MaxCustomRate].
func SelectTier(tiers []domain.DiscountTier, branchID string, selectedTierRate float64, customRate float64) (DiscountSelection, error) {
	if customRate < 0 || customRate > MaxCustomRate {
		return NoDiscount(), fmt.Errorf("%w: custom discount rate must be between 0 and %.0f", domain.ErrValidation, MaxCustomRate)
	}
	if selectedTierRate < 0 {
		return NoDiscount(), fmt.Errorf("%w: discount tier rate cannot be negative", domain.ErrValidation)
	}
	if selectedTierRate == 0 {
		return SelectionFromRates(0, customRate), nil
	}
	for _, tier := range tiers {
		if !tier.Active || (tier.BranchID != "" && tier.BranchID != branchID) {
			continue
		}
		if tier.Rate == selectedTierRate {
			return TierDiscount(tier.Rate), nil
		}
	}
	return NoDiscount(), fmt.Errorf("%w: no active discount tier at %g%% for branch %s", domain.ErrValidation, selectedTierRate, branchID)
}

func (s DiscountSelection) IsCustom() bool {
	return s.kind == selectionCustom
}

// EffectiveRate is the percentage that will be applied when the order is eligible.
func (s DiscountSelection) EffectiveRate() float64 {
	switch s.kind {
	case selectionTier:
		return clampRate(s.rate, 0, 100)
	case selectionCustom:
		return clampRate(s.rate, 0, MaxCustomRate)
	default:
		return 0
	}
}

// Eligibility decides whether a branch/subtotal pair may receive any discount.
type Eligibility func(branchID string, subtotal int64) bool

// TierEligibility is eligible when an active tier scoped to the branch (or to every branch)
// has a minimum subtotal the order meets.
func TierEligibility(tiers []domain.DiscountTier) Eligibility {
	return func(branchID string, subtotal int64) bool {
		for _, tier := range tiers {
			if !tier.Active {
				continue
			}
			if tier.BranchID != "" && tier.BranchID != branchID {
				continue
			}
			if subtotal >= tier.MinSubtotal {
				return true
			}
		}
		return false
	}
}

type DiscountInputs struct {
	BranchID  string
	Tiers     []domain.DiscountTier
	Selection DiscountSelection
	// Eligible overrides the tier-derived predicate when set.
	Eligible Eligibility
}

type Discount struct {
	Rate   float64 `json:"rate"`
	Amount int64   `json:"amount"`
}

func ResolveDiscount(subtotal int64, in DiscountInputs) Discount {
	if subtotal <= 0 {
		return Discount{}
	}
	eligible := in.Eligible
	if eligible == nil {
		eligible = TierEligibility(in.Tiers)
	}
	if !eligible(in.BranchID, subtotal) {
		return Discount{}
	}

	rate := in.Selection.EffectiveRate()
	if rate <= 0 {
		return Discount{}
	}
	return Discount{Rate: rate, Amount: percentOf(subtotal, decimal.NewFromFloat(rate))}
}

// percentOf returns floor(amount * rate / 100).
func percentOf(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Div(decimal.NewFromInt(100)).Floor().IntPart()
}

func clampRate(rate float64, lo float64, hi float64) float64 {
	if rate < lo {
		return lo
	}
	if rate > hi {
		return hi
	}
	return rate
}

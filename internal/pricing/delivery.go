package pricing

import (
	"strings"

	"flowershop/backend/internal/domain"
)

type FeeMode string

const (
	FeeModeAuto   FeeMode = "auto"
	FeeModeManual FeeMode = "manual"
)

type SurchargeKind string

const (
	SurchargeMedium  SurchargeKind = "medium"
	SurchargeLarge   SurchargeKind = "large"
	SurchargeExpress SurchargeKind = "express"
)

type DeliveryInputs struct {
	BranchID    string
	Fulfillment domain.Fulfillment
	Mode        FeeMode
	ManualFee   int64
	Table       *domain.DeliveryFeeTable
	// District overrides the district carried by the delivery variant.
	District string
}

// ResolveDeliveryFee returns the charge for a fulfillment. Pickups are always free. Manual
// mode returns the manual fee untouched. Auto mode looks the district up, falls back to the
// "기타" row and finally to zero. A branch without a table resolves to zero in auto mode;
// switching such branches to manual is up to the caller.
func ResolveDeliveryFee(f domain.Fulfillment, mode FeeMode, manualFee int64, table *domain.DeliveryFeeTable, district string) int64 {
	delivery, ok := f.(domain.ReservedDelivery)
	if !ok {
		return 0
	}
	if mode == FeeModeManual {
		return manualFee
	}
	if strings.TrimSpace(district) == "" {
		district = delivery.District
	}
	return LookupDistrictFee(table, district)
}

func LookupDistrictFee(table *domain.DeliveryFeeTable, district string) int64 {
	if table == nil {
		return 0
	}
	district = strings.TrimSpace(district)
	var fallback int64
	for _, row := range table.Rows {
		if row.District == district && district != "" {
			return row.Fee
		}
		if row.District == domain.OtherDistrict {
			fallback = row.Fee
		}
	}
	return fallback
}

// LookupSurcharge exposes the configured surcharge amounts. The resolver never adds them to
// the delivery fee.
func LookupSurcharge(table *domain.DeliveryFeeTable, kind SurchargeKind) (int64, bool) {
	if table == nil {
		return 0, false
	}
	switch kind {
	case SurchargeMedium:
		return table.Surcharges.Medium, true
	case SurchargeLarge:
		return table.Surcharges.Large, true
	case SurchargeExpress:
		return table.Surcharges.Express, true
	default:
		return 0, false
	}
}

package domain

import "fmt"

type FulfillmentType string

const (
	FulfillmentImmediatePickup  FulfillmentType = "immediate_pickup"
	FulfillmentReservedPickup   FulfillmentType = "pickup_reservation"
	FulfillmentReservedDelivery FulfillmentType = "delivery_reservation"
)

// Fulfillment is one of ImmediatePickup, ReservedPickup or ReservedDelivery.
type Fulfillment interface {
	Type() FulfillmentType
	isFulfillment()
}

type ImmediatePickup struct{}

type ReservedPickup struct {
	Date          string `json:"date"`
	Time          string `json:"time,omitempty"`
	PickerName    string `json:"picker_name"`
	PickerContact string `json:"picker_contact"`
}

type ReservedDelivery struct {
	Date             string `json:"date"`
	Time             string `json:"time,omitempty"`
	RecipientName    string `json:"recipient_name"`
	RecipientContact string `json:"recipient_contact"`
	Address          string `json:"address"`
	District         string `json:"district"`
}

func (ImmediatePickup) Type() FulfillmentType  { return FulfillmentImmediatePickup }
func (ReservedPickup) Type() FulfillmentType   { return FulfillmentReservedPickup }
func (ReservedDelivery) Type() FulfillmentType { return FulfillmentReservedDelivery }

func (ImmediatePickup) isFulfillment()  {}
func (ReservedPickup) isFulfillment()   {}
func (ReservedDelivery) isFulfillment() {}

func IsPickup(f Fulfillment) bool {
	switch f.(type) {
	case ImmediatePickup, ReservedPickup:
		return true
	default:
		return false
	}
}

// FulfillmentRecord is the flat wire and storage form of a Fulfillment.
type FulfillmentRecord struct {
	Type     FulfillmentType `json:"type"`
	Date     string          `json:"date,omitempty"`
	Time     string          `json:"time,omitempty"`
	Name     string          `json:"name,omitempty"`
	Contact  string          `json:"contact,omitempty"`
	Address  string          `json:"address,omitempty"`
	District string          `json:"district,omitempty"`
}

func RecordOf(f Fulfillment) FulfillmentRecord {
	switch v := f.(type) {
	case ReservedPickup:
		return FulfillmentRecord{Type: FulfillmentReservedPickup, Date: v.Date, Time: v.Time, Name: v.PickerName, Contact: v.PickerContact}
	case ReservedDelivery:
		return FulfillmentRecord{
			Type:     FulfillmentReservedDelivery,
			Date:     v.Date,
			Time:     v.Time,
			Name:     v.RecipientName,
			Contact:  v.RecipientContact,
			Address:  v.Address,
			District: v.District,
		}
	default:
		return FulfillmentRecord{Type: FulfillmentImmediatePickup}
	}
}

// Decode turns a record back into its variant. Pickup records carrying an address or
// district are rejected.
func (r FulfillmentRecord) Decode() (Fulfillment, error) {
	switch r.Type {
	case "", FulfillmentImmediatePickup:
		if r.Address != "" || r.District != "" {
			return nil, fmt.Errorf("%w: pickup cannot carry a delivery address", ErrValidation)
		}
		return ImmediatePickup{}, nil
	case FulfillmentReservedPickup:
		if r.Address != "" || r.District != "" {
			return nil, fmt.Errorf("%w: pickup cannot carry a delivery address", ErrValidation)
		}
		return ReservedPickup{Date: r.Date, Time: r.Time, PickerName: r.Name, PickerContact: r.Contact}, nil
	case FulfillmentReservedDelivery:
		return ReservedDelivery{
			Date:             r.Date,
			Time:             r.Time,
			RecipientName:    r.Name,
			RecipientContact: r.Contact,
			Address:          r.Address,
			District:         r.District,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown fulfillment type %q", ErrValidation, r.Type)
	}
}

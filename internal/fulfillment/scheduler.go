package fulfillment

import (
	"fmt"
	"strings"
	"time"

	"flowershop/backend/internal/domain"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Schedule turns a flat draft into exactly one fulfillment variant. Reservations need a date,
// deliveries also need an address. Time is optional.
func Schedule(draft domain.FulfillmentRecord) (domain.Fulfillment, error) {
	draft = trimRecord(draft)
	f, err := draft.Decode()
	if err != nil {
		return nil, err
	}

	switch v := f.(type) {
	case domain.ReservedPickup:
		if err := validateSlot(v.Date, v.Time); err != nil {
			return nil, err
		}
	case domain.ReservedDelivery:
		if err := validateSlot(v.Date, v.Time); err != nil {
			return nil, err
		}
		if v.Address == "" {
			return nil, fmt.Errorf("%w: delivery address is required", domain.ErrValidation)
		}
	}
	return f, nil
}

// Switch changes the fulfillment type while keeping the reserved date and time. The orderer is
// copied into the picker or recipient fields as an editable default. Switching to the current
// type returns the fulfillment untouched.
func Switch(current domain.Fulfillment, to domain.FulfillmentType, orderer domain.Party) (domain.Fulfillment, error) {
	if current == nil {
		current = domain.ImmediatePickup{}
	}
	if current.Type() == to {
		return current, nil
	}

	date, clock := slotOf(current)
	switch to {
	case domain.FulfillmentImmediatePickup:
		return domain.ImmediatePickup{}, nil
	case domain.FulfillmentReservedPickup:
		return domain.ReservedPickup{
			Date:          date,
			Time:          clock,
			PickerName:    orderer.Name,
			PickerContact: orderer.Contact,
		}, nil
	case domain.FulfillmentReservedDelivery:
		return domain.ReservedDelivery{
			Date:             date,
			Time:             clock,
			RecipientName:    orderer.Name,
			RecipientContact: orderer.Contact,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown fulfillment type %q", domain.ErrValidation, to)
	}
}

// ScheduledAt returns the reserved instant in loc, falling back to defaultClock when the
// reservation has no time. Immediate pickups have no slot.
func ScheduledAt(f domain.Fulfillment, defaultClock string, loc *time.Location) (time.Time, bool) {
	date, clock := slotOf(f)
	if date == "" {
		return time.Time{}, false
	}
	if clock == "" {
		clock = defaultClock
	}
	at, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		day, dayErr := time.ParseInLocation(DateLayout, date, loc)
		if dayErr != nil {
			return time.Time{}, false
		}
		return day, true
	}
	return at, true
}

func slotOf(f domain.Fulfillment) (string, string) {
	switch v := f.(type) {
	case domain.ReservedPickup:
		return v.Date, v.Time
	case domain.ReservedDelivery:
		return v.Date, v.Time
	default:
		return "", ""
	}
}

func validateSlot(date string, clock string) error {
	if date == "" {
		return fmt.Errorf("%w: reservation date is required", domain.ErrValidation)
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: reservation date must be YYYY-MM-DD", domain.ErrValidation)
	}
	if clock == "" {
		return nil
	}
	if _, err := time.Parse(TimeLayout, clock); err != nil {
		return fmt.Errorf("%w: reservation time must be HH:MM", domain.ErrValidation)
	}
	return nil
}

func trimRecord(r domain.FulfillmentRecord) domain.FulfillmentRecord {
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.Name = strings.TrimSpace(r.Name)
	r.Contact = strings.TrimSpace(r.Contact)
	r.Address = strings.TrimSpace(r.Address)
	r.District = strings.TrimSpace(r.District)
	return r
}

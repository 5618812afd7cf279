package calendar

import (
	"fmt"
	"strings"

	"flowershop/backend/internal/domain"
)

// Editable is false for every derived entry.
func Editable(e domain.CalendarEntry) bool {
	return !e.Origin.IsDerived()
}

func CheckEditable(e domain.CalendarEntry) error {
	if Editable(e) {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrImmutableEntry, e.ID)
}

// OriginOf recovers the origin from an entry id. Derived entries are never stored, so an edit
// or delete request can only name them by id.
func OriginOf(id string) domain.EntryOrigin {
	switch {
	case strings.HasPrefix(id, orderPrefix) && len(id) > len(orderPrefix):
		return domain.EntryOrigin{Kind: domain.OriginOrder, RefID: strings.TrimPrefix(id, orderPrefix)}
	case strings.HasPrefix(id, paymentPrefix) && len(id) > len(paymentPrefix):
		ref := strings.TrimPrefix(id, paymentPrefix)
		// strip the trailing -YYYY-MM
		if len(ref) > 8 {
			ref = ref[:len(ref)-8]
		}
		return domain.EntryOrigin{Kind: domain.OriginPaymentSchedule, RefID: ref}
	default:
		return domain.EntryOrigin{Kind: domain.OriginManual}
	}
}

// CheckEditableID rejects ids that belong to derived entries.
func CheckEditableID(id string) error {
	return CheckEditable(domain.CalendarEntry{ID: id, Origin: OriginOf(id)})
}

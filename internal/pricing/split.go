package pricing

import (
	"time"

	"flowershop/backend/internal/domain"
)

type Split struct {
	First  int64 `json:"first"`
	Second int64 `json:"second"`
}

// SplitPayment clamps the first tranche to [0, total]; the second is whatever remains.
func SplitPayment(total int64, requestedFirst int64) Split {
	if total < 0 {
		total = 0
	}
	first := min(max(requestedFirst, 0), total)
	return Split{First: first, Second: total - first}
}

// RevenueTranche is one slice of an order's revenue and the date it is recognised on.
// RecognizedAt is nil while the tranche is still outstanding.
type RevenueTranche struct {
	Sequence     int        `json:"sequence"`
	Method       string     `json:"method"`
	Amount       int64      `json:"amount"`
	RecognizedAt *time.Time `json:"recognized_at,omitempty"`
}

func (t RevenueTranche) Recognized() bool {
	return t.RecognizedAt != nil
}

// RevenueTranches splits an order's total into the amounts the books should record. A split
// order recognises its first tranche on the creation date and its second on the payment
// completion date. Any other order is a single tranche recognised when its payment completed.
// Canceled orders carry no revenue.
func RevenueTranches(order domain.Order) []RevenueTranche {
	if order.Status == domain.OrderStatusCanceled {
		return nil
	}
	total := order.Summary.Total

	if order.Payment.IsSplit() {
		split := SplitPayment(total, order.Payment.FirstPaymentAmount)
		created := order.CreatedAt
		first := RevenueTranche{
			Sequence:     1,
			Method:       firstNonEmpty(order.Payment.FirstPaymentMethod, order.Payment.Method),
			Amount:       split.First,
			RecognizedAt: &created,
		}
		second := RevenueTranche{
			Sequence: 2,
			Method:   order.Payment.SecondPaymentMethod,
			Amount:   split.Second,
		}
		if order.Payment.CompletedAt != nil {
			at := *order.Payment.CompletedAt
			second.RecognizedAt = &at
		}
		return []RevenueTranche{first, second}
	}

	single := RevenueTranche{Sequence: 1, Method: order.Payment.Method, Amount: total}
	if order.Payment.CompletedAt != nil {
		at := *order.Payment.CompletedAt
		single.RecognizedAt = &at
	}
	return []RevenueTranche{single}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

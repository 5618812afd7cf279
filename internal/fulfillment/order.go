package fulfillment

import (
	"fmt"
	"strings"
	"time"

	"flowershop/backend/internal/domain"
)

// allowedTransitions lists the order statuses reachable from each status.
var allowedTransitions = map[string][]string{
	domain.OrderStatusProcessing: {domain.OrderStatusCompleted, domain.OrderStatusCanceled},
}

func validateStatusTransition(current string, next string) error {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: order cannot move from %s to %s", domain.ErrInvalidStateTransition, current, next)
}

// EnsureMutable rejects corrections to orders another subsystem generated.
func EnsureMutable(order domain.Order) error {
	if order.SystemGenerated {
		return fmt.Errorf("%w: order %s was generated by the system", domain.ErrImmutableEntry, order.ID)
	}
	return nil
}

// AssignDriver records who delivers a reserved delivery. The fulfillment itself is not changed.
func AssignDriver(order domain.Order, driver domain.Driver) (domain.Order, error) {
	if _, ok := order.Fulfillment.(domain.ReservedDelivery); !ok {
		return domain.Order{}, fmt.Errorf("%w: only delivery orders take a driver", domain.ErrValidation)
	}
	if order.Status == domain.OrderStatusCanceled {
		return domain.Order{}, fmt.Errorf("%w: order %s is canceled", domain.ErrInvalidStateTransition, order.ID)
	}
	driver.Name = strings.TrimSpace(driver.Name)
	driver.Affiliation = strings.TrimSpace(driver.Affiliation)
	if driver.Name == "" {
		return domain.Order{}, fmt.Errorf("%w: driver name is required", domain.ErrValidation)
	}
	order.Driver = &driver
	return order, nil
}

// Complete closes a processing order. A split or still-pending payment is settled at the same
// instant, which is when the deferred tranche is recognised.
func Complete(order domain.Order, at time.Time) (domain.Order, error) {
	if err := validateStatusTransition(order.Status, domain.OrderStatusCompleted); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatusCompleted
	order.CompletedAt = &at
	if order.Payment.CompletedAt == nil {
		order.Payment.CompletedAt = &at
	}
	if !order.Payment.IsSplit() {
		order.Payment.Status = domain.PaymentStatusCompleted
	}
	return order, nil
}

func Cancel(order domain.Order) (domain.Order, error) {
	if err := EnsureMutable(order); err != nil {
		return domain.Order{}, err
	}
	if err := validateStatusTransition(order.Status, domain.OrderStatusCanceled); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatusCanceled
	return order, nil
}

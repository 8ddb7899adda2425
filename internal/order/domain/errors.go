package domain

import (
	"errors"
	"fmt"

	"github.com/datamartgh/datamart/internal/dupcheck"
)

var (
	ErrOrderNotFound            = errors.New("order_not_found")
	ErrNoItems                  = errors.New("order_has_no_items")
	ErrNotOwner                 = errors.New("order_not_owned_by_caller")
	ErrInvalidStatusTransition  = errors.New("invalid_status_transition")
	ErrOrderNumberExhausted     = errors.New("order_number_attempts_exhausted")
	ErrReportWindowClosed       = errors.New("report_window_closed")
	ErrDuplicateOrder           = errors.New("duplicate_order_detected")
	ErrStorefrontNotAwaiting    = errors.New("storefront_order_not_awaiting_payment")
	ErrNoDraftOrders            = errors.New("no_draft_orders")
)

// InvalidTransitionError reports the concrete states involved; it is a
// programmer or data error and is never silently coerced.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidStatusTransition
}

// DuplicateOrderError carries the structured duplicate-check result so
// callers can surface the matched prior orders and, for bulk, the
// duplicate/safe partition.
type DuplicateOrderError struct {
	Result *dupcheck.Result
}

func (e *DuplicateOrderError) Error() string {
	return e.Result.Message
}

func (e *DuplicateOrderError) Is(target error) bool {
	return target == ErrDuplicateOrder
}

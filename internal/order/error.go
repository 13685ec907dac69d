package order

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrMissingTrackingInfo = errors.New("courier name and tracking number are required to ship")
	ErrValidation          = errors.New("invalid order input")

	// ErrConcurrentUpdate means the conditional status write matched no
	// row: someone else moved the order first.
	ErrConcurrentUpdate = errors.New("order was updated concurrently")
)

// InvalidTransitionError reports a transition the table does not allow.
// State is left untouched when it is returned.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition from %s to %s", e.From, e.To)
}

// ValidationError wraps ErrValidation with the offending field.
func ValidationError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

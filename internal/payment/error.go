package payment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature    = errors.New("invalid callback signature")
	ErrTransactionNotFound = errors.New("payment transaction not found")
)

// GatewayError surfaces a non-2xx gateway response with the raw status
// and body for diagnostics. Never swallowed.
type GatewayError struct {
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Body)
}

package coupon

import (
	"errors"
	"fmt"
)

type RejectReason string

const (
	ReasonNotFound           RejectReason = "NotFound"
	ReasonExpired            RejectReason = "Expired"
	ReasonInactive           RejectReason = "Inactive"
	ReasonBelowMinimum       RejectReason = "BelowMinimum"
	ReasonGlobalLimitReached RejectReason = "GlobalLimitReached"
	ReasonUserLimitReached   RejectReason = "UserLimitReached"
)

var ErrCouponNotFound = errors.New("coupon not found")

// RejectionError carries the specific reason a coupon could not be
// applied so the checkout can render an actionable message.
type RejectionError struct {
	Code   string
	Reason RejectReason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

// Rejected reports whether err is a coupon rejection and returns it.
func Rejected(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

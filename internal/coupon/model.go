package coupon

import (
	"strings"
	"time"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

type Coupon struct {
	Code         string
	Type         DiscountType
	Value        int64 // percent for PERCENTAGE, minor units for FIXED
	MinOrder     int64
	MaxDiscount  int64 // 0 means uncapped
	UsageLimit   int
	PerUserLimit int
	ExpiresAt    time.Time
	Status       Status
	UsedCount    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeCode makes coupon matching case-insensitive and
// whitespace-tolerant. Codes are stored normalized.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DiscountFor computes the raw discount for a subtotal, capped at
// MaxDiscount and never exceeding the subtotal itself.
func (c *Coupon) DiscountFor(subtotal int64) int64 {
	var discount int64
	switch c.Type {
	case DiscountPercentage:
		discount = subtotal * c.Value / 100
	case DiscountFixed:
		discount = c.Value
	}

	if c.MaxDiscount > 0 && discount > c.MaxDiscount {
		discount = c.MaxDiscount
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

package order

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending        Status = "PENDING"
	StatusProcessing     Status = "PROCESSING"
	StatusShipped        Status = "SHIPPED"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	MethodCOD    PaymentMethod = "COD"
	MethodOnline PaymentMethod = "ONLINE"
)

// Order is the canonical lifecycle record. All money fields are minor
// units (paise). Mutation goes through the service's Transition only.
type Order struct {
	ID          uuid.UUID
	OrderNumber string
	UserID      string

	Items    []OrderItem
	Subtotal int64
	Discount int64
	Shipping int64
	Total    int64
	Currency string

	CouponCode string

	Status        Status
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod

	CourierName    string
	TrackingNumber string

	// StockReserved is set once inventory has been decremented for this
	// order, so cancellation knows whether to restore.
	StockReserved bool

	ShippingName    string
	ShippingPhone   string
	ShippingAddress string

	CreatedAt        time.Time
	ShippedAt        *time.Time
	OutForDeliveryAt *time.Time
	DeliveredAt      *time.Time

	Timeline []TimelineEntry
}

// OrderItem is a price snapshot taken at creation, immutable after.
type OrderItem struct {
	ID        int64
	OrderID   uuid.UUID
	ProductID string
	Size      string
	Quantity  int
	UnitPrice int64
}

func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// TimelineEntry records one accepted transition. The timeline is
// append-only and written in the same transaction as the status change.
type TimelineEntry struct {
	Status    Status
	CreatedAt time.Time
}

// TrackingInfo must accompany the transition into Shipped.
type TrackingInfo struct {
	CourierName    string
	TrackingNumber string
}

type CreateOrderInput struct {
	UserID          string
	Items           []CreateOrderItem
	PaymentMethod   PaymentMethod
	CouponCode      string
	ShippingName    string
	ShippingPhone   string
	ShippingAddress string
	Mobile          string
}

type CreateOrderItem struct {
	ProductID string
	Size      string
	Quantity  int
}

// ListFilter narrows the staff order listing. Zero values mean "any".
type ListFilter struct {
	Status        Status
	PaymentStatus PaymentStatus
	UserID        string
	Limit         int
	Offset        int
}

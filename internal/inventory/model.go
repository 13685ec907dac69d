package inventory

import "time"

// Variant is one sellable size of a product. Stock is owned exclusively
// by this package; other modules request adjustments through the service.
type Variant struct {
	ProductID     string
	Size          string
	Price         int64
	OriginalPrice int64
	StockQuantity int
	UpdatedAt     time.Time
}

func (v *Variant) InStock() bool {
	return v.StockQuantity > 0
}

// Item references a variant and a quantity, the unit the order module
// hands to DecrementForOrder/RestoreForOrder.
type Item struct {
	ProductID string
	Size      string
	Quantity  int
}

type AdjustOp string

const (
	OpAdd AdjustOp = "ADD"
	OpSet AdjustOp = "SET"
)

// StockLevel is the post-update quantity of one variant, used for
// low-stock signaling after decrements.
type StockLevel struct {
	ProductID string
	Size      string
	Remaining int
}

// LowStockEvent is emitted when a decrement lands at or below the
// configured threshold. Consumers decide how to alert.
type LowStockEvent struct {
	ProductID string
	Size      string
	Remaining int
	At        time.Time
}

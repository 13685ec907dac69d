package inventory

import (
	"context"
	"sync"
	"time"

	"stitchwear-be/internal/logger"
	"stitchwear-be/internal/metrics"

	"go.uber.org/zap"
)

const DefaultLowStockThreshold = 10

type Service interface {
	GetVariant(ctx context.Context, productID, size string) (*Variant, error)
	UpsertVariant(ctx context.Context, v *Variant) error

	// Adjust applies a single stock adjustment. OpAdd takes a signed
	// delta, OpSet forces the quantity. Results below zero are rejected,
	// never clamped.
	Adjust(ctx context.Context, productID, size string, op AdjustOp, amount int) (int, error)

	// DecrementForOrder / RestoreForOrder are the all-or-nothing entry
	// points used at order confirmation and cancellation.
	DecrementForOrder(ctx context.Context, items []Item) error
	RestoreForOrder(ctx context.Context, items []Item) error

	// Subscribe returns a stream of low-stock events. Slow subscribers
	// drop events rather than block a decrement.
	Subscribe() <-chan LowStockEvent
}

type service struct {
	repo      Repository
	threshold int

	mu   sync.Mutex
	subs []chan LowStockEvent
}

func NewService(repo Repository, lowStockThreshold int) Service {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	return &service{repo: repo, threshold: lowStockThreshold}
}

func (s *service) GetVariant(ctx context.Context, productID, size string) (*Variant, error) {
	return s.repo.GetVariant(ctx, productID, size)
}

func (s *service) UpsertVariant(ctx context.Context, v *Variant) error {
	if v.StockQuantity < 0 {
		return ErrInvalidQuantity
	}
	if v.Price <= 0 || v.OriginalPrice < v.Price {
		return ErrInvalidPrice
	}
	return s.repo.UpsertVariant(ctx, v)
}

func (s *service) Adjust(ctx context.Context, productID, size string, op AdjustOp, amount int) (int, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("product_id", productID),
		zap.String("size", size),
		zap.String("op", string(op)),
		zap.Int("amount", amount),
	)

	var (
		quantity int
		err      error
	)

	switch op {
	case OpAdd:
		quantity, err = s.repo.AddStock(ctx, productID, size, amount)
	case OpSet:
		if amount < 0 {
			return 0, ErrInvalidQuantity
		}
		quantity, err = s.repo.SetStock(ctx, productID, size, amount)
	default:
		return 0, ErrInvalidOp
	}

	if err != nil {
		log.Warn("stock adjustment rejected", zap.Error(err))
		return 0, err
	}

	log.Info("stock adjusted", zap.Int("stock_quantity", quantity))

	if op == OpAdd && amount < 0 {
		s.signalLowStock(ctx, []StockLevel{{ProductID: productID, Size: size, Remaining: quantity}})
	}
	return quantity, nil
}

func (s *service) DecrementForOrder(ctx context.Context, items []Item) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}

	levels, err := s.repo.DecrementForOrder(ctx, items)
	if err != nil {
		return err
	}

	s.signalLowStock(ctx, levels)
	return nil
}

func (s *service) RestoreForOrder(ctx context.Context, items []Item) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	return s.repo.RestoreForOrder(ctx, items)
}

func (s *service) Subscribe() <-chan LowStockEvent {
	ch := make(chan LowStockEvent, 16)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *service) signalLowStock(ctx context.Context, levels []StockLevel) {
	now := time.Now()
	for _, level := range levels {
		if level.Remaining > s.threshold {
			continue
		}

		metrics.LowStockAlerts.Inc()
		logger.FromCtx(ctx).Warn("low stock",
			zap.String("product_id", level.ProductID),
			zap.String("size", level.Size),
			zap.Int("remaining", level.Remaining),
		)

		event := LowStockEvent{
			ProductID: level.ProductID,
			Size:      level.Size,
			Remaining: level.Remaining,
			At:        now,
		}

		s.mu.Lock()
		for _, sub := range s.subs {
			select {
			case sub <- event:
			default:
			}
		}
		s.mu.Unlock()
	}
}

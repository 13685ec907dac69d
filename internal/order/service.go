package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stitchwear-be/internal/config"
	"stitchwear-be/internal/coupon"
	"stitchwear-be/internal/inventory"
	"stitchwear-be/internal/logger"
	"stitchwear-be/internal/metrics"
	"stitchwear-be/internal/payment"
	"stitchwear-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	// CreateOrder runs checkout: price snapshots, optional coupon,
	// totals, then persistence. COD orders are confirmed immediately
	// (stock decremented, coupon consumed); online orders stay Pending
	// untouched until the payment callback, and the returned
	// CreateResponse carries the gateway redirect.
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, *payment.CreateResponse, error)

	// Transition moves an order along the lifecycle. Serialized per
	// order; idempotent when target equals the current status.
	Transition(ctx context.Context, id uuid.UUID, target Status, tracking TrackingInfo) (*Order, error)

	// ConfirmPayment and FailPayment are the verified-callback entry
	// points. ConfirmPayment decrements stock, consumes the coupon and
	// moves Pending to Processing; FailPayment marks the payment Failed
	// and leaves the order Pending.
	ConfirmPayment(ctx context.Context, orderNumber, transactionID string) error
	FailPayment(ctx context.Context, orderNumber string) error

	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]*Order, error)
}

type service struct {
	repo      Repository
	inventory inventory.Service
	coupons   coupon.Service
	gateway   payment.Gateway

	shippingFee int64
	currency    string

	// Per-order serialization so a callback-driven transition and a
	// staff-driven one for the same order never interleave.
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewService(
	repo Repository,
	inv inventory.Service,
	coupons coupon.Service,
	gateway payment.Gateway,
	cfg *config.Config,
) Service {
	return &service{
		repo:        repo,
		inventory:   inv,
		coupons:     coupons,
		gateway:     gateway,
		shippingFee: cfg.ShippingFee,
		currency:    cfg.Currency,
		locks:       make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *service) lockFor(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// forgetLock evicts the per-order mutex once the order is terminal and
// can no longer change; without eviction the map grows with every
// order ever touched.
func (s *service) forgetLock(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, id)
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, *payment.CreateResponse, error) {
	log := logger.FromCtx(ctx).With(zap.String("user_id", input.UserID))

	if err := validateInput(input); err != nil {
		return nil, nil, err
	}

	id := uuid.New()
	now := time.Now()

	o := &Order{
		ID:              id,
		OrderNumber:     utils.OrderNumberFromID(id),
		UserID:          input.UserID,
		Currency:        s.currency,
		Shipping:        s.shippingFee,
		CouponCode:      coupon.NormalizeCode(input.CouponCode),
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   input.PaymentMethod,
		ShippingName:    input.ShippingName,
		ShippingPhone:   input.ShippingPhone,
		ShippingAddress: input.ShippingAddress,
		CreatedAt:       now,
		Timeline:        []TimelineEntry{{Status: StatusPending, CreatedAt: now}},
	}

	// Price snapshots come from the ledger at this moment; later price
	// changes never touch an existing order.
	for _, it := range input.Items {
		v, err := s.inventory.GetVariant(ctx, it.ProductID, it.Size)
		if err != nil {
			return nil, nil, err
		}
		o.Items = append(o.Items, OrderItem{
			ProductID: it.ProductID,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: v.Price,
		})
		o.Subtotal += v.Price * int64(it.Quantity)
	}

	if o.CouponCode != "" {
		discount, err := s.coupons.Validate(ctx, o.CouponCode, o.Subtotal, o.UserID, now)
		if err != nil {
			return nil, nil, err
		}
		o.Discount = discount
	}
	o.Total = o.Subtotal - o.Discount + o.Shipping

	log = log.With(
		zap.String("order_number", o.OrderNumber),
		zap.Int64("total", o.Total),
		zap.String("payment_method", string(o.PaymentMethod)),
	)

	if o.PaymentMethod == MethodCOD {
		// COD has no payment step: creation is confirmation, so stock
		// and coupon use are committed here.
		if err := s.reserve(ctx, o); err != nil {
			return nil, nil, err
		}
		if err := s.repo.CreateOrder(ctx, o); err != nil {
			s.release(ctx, o)
			return nil, nil, err
		}

		log.Info("cod order created")
		metrics.OrdersCreated.WithLabelValues(string(MethodCOD)).Inc()
		return o, nil, nil
	}

	// Online orders persist first and reserve nothing yet; the verified
	// callback confirms them.
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, nil, err
	}
	metrics.OrdersCreated.WithLabelValues(string(MethodOnline)).Inc()

	payResp, err := s.gateway.CreatePayment(ctx, payment.CreateRequest{
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Amount:      o.Total,
		Mobile:      input.Mobile,
	})
	if err != nil {
		// Order stays Pending/payment Pending. The storefront can retry
		// payment initiation against the same order.
		log.Error("failed to initiate gateway payment", zap.Error(err))
		return o, nil, err
	}

	log.Info("online order created, awaiting payment")
	return o, payResp, nil
}

// reserve commits stock and coupon use for a confirmed order.
func (s *service) reserve(ctx context.Context, o *Order) error {
	if err := s.inventory.DecrementForOrder(ctx, ledgerItems(o)); err != nil {
		return err
	}

	if o.CouponCode != "" {
		if err := s.coupons.Consume(ctx, o.CouponCode, o.UserID, o.OrderNumber); err != nil {
			// The coupon sold out between validation and confirmation.
			// Give the stock back and fail the whole confirmation.
			if restoreErr := s.inventory.RestoreForOrder(ctx, ledgerItems(o)); restoreErr != nil {
				logger.FromCtx(ctx).Error("failed to restore stock after coupon rejection",
					zap.String("order_number", o.OrderNumber),
					zap.Error(restoreErr),
				)
			}
			return err
		}
	}

	o.StockReserved = true
	return nil
}

// release undoes a reserve whose order failed afterwards: stock goes
// back and any coupon use burned for the order is handed back, so the
// allowance is never charged for an order that did not complete.
func (s *service) release(ctx context.Context, o *Order) {
	log := logger.FromCtx(ctx).With(zap.String("order_number", o.OrderNumber))

	if err := s.inventory.RestoreForOrder(ctx, ledgerItems(o)); err != nil {
		log.Error("failed to restore stock", zap.Error(err))
	} else {
		o.StockReserved = false
	}

	if o.CouponCode != "" {
		if err := s.coupons.Unconsume(ctx, o.CouponCode, o.OrderNumber); err != nil {
			log.Error("failed to reverse coupon consumption", zap.Error(err))
		}
	}
}

func ledgerItems(o *Order) []inventory.Item {
	items := make([]inventory.Item, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, inventory.Item{
			ProductID: it.ProductID,
			Size:      it.Size,
			Quantity:  it.Quantity,
		})
	}
	return items
}

func (s *service) Transition(ctx context.Context, id uuid.UUID, target Status, tracking TrackingInfo) (*Order, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.transitionLocked(ctx, o, target, tracking)
}

func (s *service) transitionLocked(ctx context.Context, o *Order, target Status, tracking TrackingInfo) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_number", o.OrderNumber),
		zap.String("from", string(o.Status)),
		zap.String("to", string(target)),
	)

	// Re-requesting the current status tolerates retries.
	if o.Status == target {
		return o, nil
	}

	if !CanTransition(o.Status, target) {
		return nil, &InvalidTransitionError{From: o.Status, To: target}
	}

	if target == StatusShipped && (tracking.CourierName == "" || tracking.TrackingNumber == "") {
		return nil, ErrMissingTrackingInfo
	}

	restored := false
	if target == StatusCancelled && o.StockReserved {
		// Inventory consistency outranks status consistency: if the
		// stock cannot be returned, the cancellation is rejected.
		if err := s.inventory.RestoreForOrder(ctx, ledgerItems(o)); err != nil {
			log.Error("cancellation rejected, stock restore failed", zap.Error(err))
			return nil, fmt.Errorf("failed to restore stock for cancellation: %w", err)
		}
		o.StockReserved = false
		restored = true

		if o.PaymentStatus == PaymentPaid {
			o.PaymentStatus = PaymentRefunded
		}
	}

	from := o.Status
	applyTransition(o, target, tracking, time.Now())

	if err := s.repo.UpdateTransition(ctx, o, from); err != nil {
		if restored {
			// Undo the restore so stock matches the still-current state.
			if redoErr := s.inventory.DecrementForOrder(ctx, ledgerItems(o)); redoErr != nil {
				log.Error("failed to re-reserve stock after rejected cancellation", zap.Error(redoErr))
			} else {
				o.StockReserved = true
			}
		}
		return nil, err
	}

	log.Info("order transitioned")
	metrics.OrderTransitions.WithLabelValues(string(target)).Inc()

	if IsTerminal(target) {
		s.forgetLock(o.ID)
	}
	return o, nil
}

func (s *service) ConfirmPayment(ctx context.Context, orderNumber, transactionID string) error {
	o, err := s.repo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return err
	}

	lock := s.lockFor(o.ID)
	lock.Lock()
	defer lock.Unlock()

	// Reload under the lock so a racing staff action is visible.
	o, err = s.repo.GetOrder(ctx, o.ID)
	if err != nil {
		return err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("order_number", orderNumber),
		zap.String("transaction_id", transactionID),
	)

	if o.PaymentStatus == PaymentPaid {
		log.Info("payment already confirmed")
		return nil
	}
	if o.Status != StatusPending {
		return fmt.Errorf("order %s is not awaiting payment: %w",
			orderNumber, &InvalidTransitionError{From: o.Status, To: StatusProcessing})
	}

	if err := s.reserve(ctx, o); err != nil {
		return err
	}

	o.PaymentStatus = PaymentPaid
	if _, err := s.transitionLocked(ctx, o, StatusProcessing, TrackingInfo{}); err != nil {
		s.release(ctx, o)
		return err
	}

	log.Info("payment confirmed")
	return nil
}

func (s *service) FailPayment(ctx context.Context, orderNumber string) error {
	o, err := s.repo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return err
	}

	lock := s.lockFor(o.ID)
	lock.Lock()
	defer lock.Unlock()

	o, err = s.repo.GetOrder(ctx, o.ID)
	if err != nil {
		return err
	}

	if o.PaymentStatus == PaymentFailed {
		return nil
	}
	if o.PaymentStatus == PaymentPaid {
		return fmt.Errorf("order %s already paid, refusing to mark failed", orderNumber)
	}

	// A failed payment never auto-cancels: staff or a timeout policy
	// decides what happens to the order.
	if err := s.repo.UpdatePaymentStatus(ctx, o.ID, PaymentFailed); err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("payment failed",
		zap.String("order_number", orderNumber),
	)
	return nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *service) GetByOrderNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return s.repo.GetByOrderNumber(ctx, orderNumber)
}

func (s *service) ListOrders(ctx context.Context, f ListFilter) ([]*Order, error) {
	return s.repo.ListOrders(ctx, f)
}

func validateInput(input CreateOrderInput) error {
	if input.UserID == "" {
		return ValidationError("userId", "is required")
	}
	if len(input.Items) == 0 {
		return ValidationError("items", "must not be empty")
	}
	for _, it := range input.Items {
		if it.ProductID == "" || it.Size == "" {
			return ValidationError("items", "must name a product and size")
		}
		if it.Quantity <= 0 {
			return ValidationError("items", "quantity must be positive")
		}
	}
	if input.PaymentMethod != MethodCOD && input.PaymentMethod != MethodOnline {
		return ValidationError("paymentMethod", "must be COD or ONLINE")
	}
	if input.ShippingName == "" || input.ShippingAddress == "" {
		return ValidationError("shipping", "name and address are required")
	}
	return nil
}

package coupon

import (
	"context"
	"errors"
	"time"

	"stitchwear-be/internal/logger"
	"stitchwear-be/internal/metrics"

	"go.uber.org/zap"
)

type Service interface {
	// Validate is side-effect free: it never burns a use. Consumption
	// happens only when the order that applied the coupon is confirmed.
	Validate(ctx context.Context, code string, subtotal int64, userID string, now time.Time) (int64, error)

	// Consume increments used_count exactly once per confirmed order.
	Consume(ctx context.Context, code, userID, orderID string) error

	// Unconsume hands back a use burned by Consume when the order it
	// served is rolled back before completing.
	Unconsume(ctx context.Context, code, orderID string) error

	Create(ctx context.Context, c *Coupon) error
	SetStatus(ctx context.Context, code string, status Status) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Validate(ctx context.Context, code string, subtotal int64, userID string, now time.Time) (int64, error) {
	code = NormalizeCode(code)

	c, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, ErrCouponNotFound) {
		return 0, &RejectionError{Code: code, Reason: ReasonNotFound}
	}
	if err != nil {
		return 0, err
	}

	if c.Status != StatusActive {
		return 0, &RejectionError{Code: code, Reason: ReasonInactive}
	}
	if now.After(c.ExpiresAt) {
		return 0, &RejectionError{Code: code, Reason: ReasonExpired}
	}
	if subtotal < c.MinOrder {
		return 0, &RejectionError{Code: code, Reason: ReasonBelowMinimum}
	}
	if c.UsedCount >= c.UsageLimit {
		return 0, &RejectionError{Code: code, Reason: ReasonGlobalLimitReached}
	}

	if c.PerUserLimit > 0 && userID != "" {
		used, err := s.repo.CountRedemptions(ctx, code, userID)
		if err != nil {
			return 0, err
		}
		if used >= c.PerUserLimit {
			return 0, &RejectionError{Code: code, Reason: ReasonUserLimitReached}
		}
	}

	return c.DiscountFor(subtotal), nil
}

func (s *service) Consume(ctx context.Context, code, userID, orderID string) error {
	code = NormalizeCode(code)

	log := logger.FromCtx(ctx).With(
		zap.String("coupon", code),
		zap.String("order_id", orderID),
	)

	ok, err := s.repo.Consume(ctx, code)
	if err != nil {
		log.Error("coupon consume failed", zap.Error(err))
		return err
	}
	if !ok {
		// Another order confirmed first and exhausted the limit.
		log.Warn("coupon usage limit exhausted at consumption")
		return &RejectionError{Code: code, Reason: ReasonGlobalLimitReached}
	}

	if err := s.repo.RecordRedemption(ctx, code, userID, orderID); err != nil {
		log.Error("failed to record coupon redemption", zap.Error(err))
		return err
	}

	metrics.CouponRedemptions.Inc()
	log.Info("coupon consumed")
	return nil
}

func (s *service) Unconsume(ctx context.Context, code, orderID string) error {
	code = NormalizeCode(code)

	log := logger.FromCtx(ctx).With(
		zap.String("coupon", code),
		zap.String("order_id", orderID),
	)

	if err := s.repo.Unconsume(ctx, code, orderID); err != nil {
		log.Error("failed to reverse coupon consumption", zap.Error(err))
		return err
	}

	log.Info("coupon consumption reversed")
	return nil
}

func (s *service) Create(ctx context.Context, c *Coupon) error {
	if c.Code == "" {
		return errors.New("coupon code is required")
	}
	if c.Type != DiscountPercentage && c.Type != DiscountFixed {
		return errors.New("invalid discount type")
	}
	if c.Value <= 0 {
		return errors.New("discount value must be positive")
	}
	if c.Type == DiscountPercentage && c.Value > 100 {
		return errors.New("percentage discount cannot exceed 100")
	}
	if c.UsageLimit <= 0 {
		return errors.New("usage limit must be positive")
	}

	if c.Status == "" {
		c.Status = StatusActive
	}
	c.Code = NormalizeCode(c.Code)

	return s.repo.Create(ctx, c)
}

func (s *service) SetStatus(ctx context.Context, code string, status Status) error {
	if status != StatusActive && status != StatusInactive {
		return errors.New("invalid coupon status")
	}
	return s.repo.SetStatus(ctx, code, status)
}

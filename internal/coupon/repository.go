package coupon

import (
	"context"
	"database/sql"
	"errors"
)

type Repository interface {
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	CountRedemptions(ctx context.Context, code, userID string) (int, error)

	// Consume atomically increments used_count, guarded by the usage
	// limit in the same statement. Returns false when the limit is
	// already exhausted.
	Consume(ctx context.Context, code string) (bool, error)
	RecordRedemption(ctx context.Context, code, userID, orderID string) error

	// Unconsume reverses a consumption whose order was rolled back:
	// the redemption row is deleted and used_count decremented in one
	// transaction. A missing redemption row means there is nothing to
	// reverse.
	Unconsume(ctx context.Context, code, orderID string) error

	Create(ctx context.Context, c *Coupon) error
	SetStatus(ctx context.Context, code string, status Status) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT code, discount_type, value, min_order, max_discount,
		       usage_limit, per_user_limit, expires_at, status, used_count,
		       created_at, updated_at
		FROM coupons
		WHERE code = $1
	`, NormalizeCode(code))

	var c Coupon
	err := row.Scan(
		&c.Code, &c.Type, &c.Value, &c.MinOrder, &c.MaxDiscount,
		&c.UsageLimit, &c.PerUserLimit, &c.ExpiresAt, &c.Status, &c.UsedCount,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) CountRedemptions(ctx context.Context, code, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM coupon_redemptions
		WHERE coupon_code = $1 AND user_id = $2
	`, NormalizeCode(code), userID).Scan(&count)
	return count, err
}

func (r *repository) Consume(ctx context.Context, code string) (bool, error) {
	// Check-then-increment as one statement so two concurrent
	// confirmations cannot both pass the limit.
	res, err := r.db.ExecContext(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1, updated_at = now()
		WHERE code = $1 AND used_count < usage_limit
	`, NormalizeCode(code))
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *repository) RecordRedemption(ctx context.Context, code, userID, orderID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO coupon_redemptions (coupon_code, user_id, order_id)
		VALUES ($1, $2, $3)
	`, NormalizeCode(code), userID, orderID)
	return err
}

func (r *repository) Unconsume(ctx context.Context, code, orderID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM coupon_redemptions
		WHERE coupon_code = $1 AND order_id = $2
	`, NormalizeCode(code), orderID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// The consumption was never recorded for this order.
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE coupons
		SET used_count = used_count - 1, updated_at = now()
		WHERE code = $1 AND used_count > 0
	`, NormalizeCode(code)); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) Create(ctx context.Context, c *Coupon) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO coupons (
			code, discount_type, value, min_order, max_discount,
			usage_limit, per_user_limit, expires_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		NormalizeCode(c.Code), c.Type, c.Value, c.MinOrder, c.MaxDiscount,
		c.UsageLimit, c.PerUserLimit, c.ExpiresAt, c.Status,
	)
	return err
}

func (r *repository) SetStatus(ctx context.Context, code string, status Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE coupons SET status = $1, updated_at = now() WHERE code = $2
	`, status, NormalizeCode(code))
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCouponNotFound
	}
	return nil
}

package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Repository interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)

	// UpdateTransition persists an accepted transition: the status write
	// is conditional on the order still being in from, and the timeline
	// entry is inserted in the same transaction.
	UpdateTransition(ctx context.Context, o *Order, from Status) error

	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error
	ListOrders(ctx context.Context, f ListFilter) ([]*Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, user_id,
			subtotal, discount, shipping_fee, total, currency,
			coupon_code, order_status, payment_status, payment_method,
			stock_reserved,
			shipping_name, shipping_phone, shipping_address,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		o.ID, o.OrderNumber, o.UserID,
		o.Subtotal, o.Discount, o.Shipping, o.Total, o.Currency,
		o.CouponCode, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.StockReserved,
		o.ShippingName, o.ShippingPhone, o.ShippingAddress,
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, size, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id
		`, o.ID, item.ProductID, item.Size, item.Quantity, item.UnitPrice).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	for _, entry := range o.Timeline {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_timeline (order_id, status, created_at)
			VALUES ($1,$2,$3)
		`, o.ID, entry.Status, entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert timeline entry: %w", err)
		}
	}

	return tx.Commit()
}

const orderColumns = `
	id, order_number, user_id,
	subtotal, discount, shipping_fee, total, currency,
	coupon_code, order_status, payment_status, payment_method,
	stock_reserved,
	courier_name, tracking_number,
	shipping_name, shipping_phone, shipping_address,
	created_at, shipped_at, out_for_delivery_at, delivered_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*Order, error) {
	var o Order
	var courier, tracking sql.NullString
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID,
		&o.Subtotal, &o.Discount, &o.Shipping, &o.Total, &o.Currency,
		&o.CouponCode, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.StockReserved,
		&courier, &tracking,
		&o.ShippingName, &o.ShippingPhone, &o.ShippingAddress,
		&o.CreatedAt, &o.ShippedAt, &o.OutForDeliveryAt, &o.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	o.CourierName = courier.String
	o.TrackingNumber = tracking.String
	return &o, nil
}

func (r *repository) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return r.hydrate(ctx, row)
}

func (r *repository) GetByOrderNumber(ctx context.Context, orderNumber string) (*Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
	return r.hydrate(ctx, row)
}

func (r *repository) hydrate(ctx context.Context, row *sql.Row) (*Order, error) {
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	if err := r.loadTimeline(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, size, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		item := OrderItem{OrderID: o.ID}
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Size, &item.Quantity, &item.UnitPrice); err != nil {
			return err
		}
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

func (r *repository) loadTimeline(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, created_at
		FROM order_timeline
		WHERE order_id = $1
		ORDER BY created_at, id
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.Status, &e.CreatedAt); err != nil {
			return err
		}
		o.Timeline = append(o.Timeline, e)
	}
	return rows.Err()
}

func (r *repository) UpdateTransition(ctx context.Context, o *Order, from Status) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET order_status = $1,
		    payment_status = $2,
		    stock_reserved = $3,
		    courier_name = $4,
		    tracking_number = $5,
		    shipped_at = $6,
		    out_for_delivery_at = $7,
		    delivered_at = $8
		WHERE id = $9 AND order_status = $10
	`,
		o.Status, o.PaymentStatus, o.StockReserved,
		nullable(o.CourierName), nullable(o.TrackingNumber),
		o.ShippedAt, o.OutForDeliveryAt, o.DeliveredAt,
		o.ID, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// The order moved out of from between our read and this write.
		return ErrConcurrentUpdate
	}

	entry := o.Timeline[len(o.Timeline)-1]
	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_timeline (order_id, status, created_at)
		VALUES ($1,$2,$3)
	`, o.ID, entry.Status, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert timeline entry: %w", err)
	}

	return tx.Commit()
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = $1 WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) ListOrders(ctx context.Context, f ListFilter) ([]*Order, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders`)

	var conds []string
	var args []interface{}

	addCond := func(column string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if f.Status != "" {
		addCond("order_status", f.Status)
	}
	if f.PaymentStatus != "" {
		addCond("payment_status", f.PaymentStatus)
	}
	if f.UserID != "" {
		addCond("user_id", f.UserID)
	}

	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC")

	if f.Limit > 0 {
		args = append(args, f.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package inventory

import (
	"context"
	"database/sql"
	"errors"
)

type Repository interface {
	GetVariant(ctx context.Context, productID, size string) (*Variant, error)

	// AddStock applies a signed delta. The statement refuses to take the
	// quantity below zero; an underflowing delta is rejected, not floored.
	AddStock(ctx context.Context, productID, size string, delta int) (int, error)
	SetStock(ctx context.Context, productID, size string, quantity int) (int, error)

	// DecrementForOrder decrements every line in one transaction.
	// Either all lines succeed or none apply.
	DecrementForOrder(ctx context.Context, items []Item) ([]StockLevel, error)
	RestoreForOrder(ctx context.Context, items []Item) error

	UpsertVariant(ctx context.Context, v *Variant) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetVariant(ctx context.Context, productID, size string) (*Variant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT product_id, size, price, original_price, stock_quantity, updated_at
		FROM product_variants
		WHERE product_id = $1 AND size = $2
	`, productID, size)

	var v Variant
	err := row.Scan(&v.ProductID, &v.Size, &v.Price, &v.OriginalPrice, &v.StockQuantity, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repository) AddStock(ctx context.Context, productID, size string, delta int) (int, error) {
	var quantity int
	err := r.db.QueryRowContext(ctx, `
		UPDATE product_variants
		SET stock_quantity = stock_quantity + $3, updated_at = now()
		WHERE product_id = $1 AND size = $2 AND stock_quantity + $3 >= 0
		RETURNING stock_quantity
	`, productID, size, delta).Scan(&quantity)

	if errors.Is(err, sql.ErrNoRows) {
		// Either the variant does not exist or the delta would underflow.
		if _, lookupErr := r.GetVariant(ctx, productID, size); lookupErr != nil {
			return 0, lookupErr
		}
		return 0, &InsufficientStockError{ProductID: productID, Size: size}
	}
	if err != nil {
		return 0, err
	}
	return quantity, nil
}

func (r *repository) SetStock(ctx context.Context, productID, size string, quantity int) (int, error) {
	var newQuantity int
	err := r.db.QueryRowContext(ctx, `
		UPDATE product_variants
		SET stock_quantity = $3, updated_at = now()
		WHERE product_id = $1 AND size = $2
		RETURNING stock_quantity
	`, productID, size, quantity).Scan(&newQuantity)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrVariantNotFound
	}
	if err != nil {
		return 0, err
	}
	return newQuantity, nil
}

func (r *repository) DecrementForOrder(ctx context.Context, items []Item) ([]StockLevel, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	levels := make([]StockLevel, 0, len(items))
	for _, item := range items {
		var remaining int
		err := tx.QueryRowContext(ctx, `
			UPDATE product_variants
			SET stock_quantity = stock_quantity - $3, updated_at = now()
			WHERE product_id = $1 AND size = $2 AND stock_quantity >= $3
			RETURNING stock_quantity
		`, item.ProductID, item.Size, item.Quantity).Scan(&remaining)

		if errors.Is(err, sql.ErrNoRows) {
			// Rollback releases every decrement already applied.
			return nil, &InsufficientStockError{ProductID: item.ProductID, Size: item.Size}
		}
		if err != nil {
			return nil, err
		}

		levels = append(levels, StockLevel{
			ProductID: item.ProductID,
			Size:      item.Size,
			Remaining: remaining,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return levels, nil
}

func (r *repository) RestoreForOrder(ctx context.Context, items []Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range items {
		res, err := tx.ExecContext(ctx, `
			UPDATE product_variants
			SET stock_quantity = stock_quantity + $3, updated_at = now()
			WHERE product_id = $1 AND size = $2
		`, item.ProductID, item.Size, item.Quantity)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrVariantNotFound
		}
	}

	return tx.Commit()
}

func (r *repository) UpsertVariant(ctx context.Context, v *Variant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO product_variants (product_id, size, price, original_price, stock_quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, size)
		DO UPDATE SET price = $3, original_price = $4, stock_quantity = $5, updated_at = now()
	`, v.ProductID, v.Size, v.Price, v.OriginalPrice, v.StockQuantity)
	return err
}

package payment

import (
	"context"
	"database/sql"
	"errors"
)

type Repository interface {
	// SaveTransaction records a callback's transaction exactly once.
	// A redelivered transaction id is reported as a duplicate instead
	// of a new row.
	SaveTransaction(ctx context.Context, t *Transaction) (id int64, isDuplicate bool, err error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Transaction, error)
	MarkProcessed(ctx context.Context, id int64, outcome string) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SaveTransaction(ctx context.Context, t *Transaction) (int64, bool, error) {
	const q = `
	INSERT INTO payment_transactions (
		transaction_id,
		order_number,
		amount,
		signature,
		verified
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (transaction_id)
	DO NOTHING
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(ctx, q,
		t.TransactionID,
		t.OrderNumber,
		t.Amount,
		t.Signature,
		t.Verified,
	).Scan(&id)

	if err != nil {
		// Conflict swallowed by DO NOTHING: already recorded.
		if errors.Is(err, sql.ErrNoRows) {
			return 0, true, nil
		}
		return 0, false, err
	}

	return id, false, nil
}

func (r *repository) GetByTransactionID(ctx context.Context, transactionID string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, transaction_id, order_number, amount, signature,
		       verified, processed, outcome, created_at, processed_at
		FROM payment_transactions
		WHERE transaction_id = $1
	`, transactionID)

	var t Transaction
	err := row.Scan(
		&t.ID, &t.TransactionID, &t.OrderNumber, &t.Amount, &t.Signature,
		&t.Verified, &t.Processed, &t.Outcome, &t.CreatedAt, &t.ProcessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id int64, outcome string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payment_transactions
		SET processed = TRUE, outcome = $2, processed_at = now()
		WHERE id = $1
	`, id, outcome)
	return err
}

func (r *repository) MarkFailed(ctx context.Context, id int64, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payment_transactions
		SET process_error = $2
		WHERE id = $1
	`, id, reason)
	return err
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/adilcse/okneppo-sub001/internal/model"
)

// PaymentRepository handles database operations for the payment ledger
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, registration_id, order_id, payment_id, status, amount, currency,
	method, fee, tax, captured, error_code, error_description, created_at, updated_at`

// FindForReconcile finds the payment row a gateway event should merge into:
// same order ID and either the same payment ID or no payment ID yet. This one
// query covers both the pending record created at checkout and a redelivered
// webhook for an already-resolved payment.
func (r *PaymentRepository) FindForReconcile(ctx context.Context, orderID, paymentID string) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = ? AND (payment_id = ? OR payment_id IS NULL)
		ORDER BY id DESC
		LIMIT 1
	`, orderID, paymentID)
	return scanPayment(row)
}

// FindAnyByOrderID finds the most recent payment row for an order regardless
// of payment ID. Used to detect a fresh payment attempt against an order that
// already resolved a different payment.
func (r *PaymentRepository) FindAnyByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, orderID)
	return scanPayment(row)
}

// Insert saves a new payment row and fills in its ID
func (r *PaymentRepository) Insert(ctx context.Context, p *model.Payment) error {
	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (registration_id, order_id, payment_id, status, amount, currency,
			method, fee, tax, captured, error_code, error_description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.RegistrationID, p.OrderID, nullString(p.PaymentID), p.Status, p.Amount, p.Currency,
		nullString(p.Method), p.Fee, p.Tax, p.Captured, nullString(p.ErrorCode),
		nullString(p.ErrorDescription), now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdateProviderData merges gateway-provided fields into an existing row as a
// whole snapshot
func (r *PaymentRepository) UpdateProviderData(ctx context.Context, id int64, p *model.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET payment_id = ?, status = ?, method = ?, fee = ?, tax = ?, captured = ?,
			error_code = ?, error_description = ?, updated_at = ?
		WHERE id = ?
	`, nullString(p.PaymentID), p.Status, nullString(p.Method), p.Fee, p.Tax, p.Captured,
		nullString(p.ErrorCode), nullString(p.ErrorDescription), time.Now(), id)
	return err
}

// CountByOrderID returns the number of payment rows for an order
func (r *PaymentRepository) CountByOrderID(ctx context.Context, orderID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE order_id = ?`, orderID).Scan(&count)
	return count, err
}

func scanPayment(row *sql.Row) (*model.Payment, error) {
	var p model.Payment
	var paymentID, method, errorCode, errorDescription sql.NullString
	err := row.Scan(
		&p.ID,
		&p.RegistrationID,
		&p.OrderID,
		&paymentID,
		&p.Status,
		&p.Amount,
		&p.Currency,
		&method,
		&p.Fee,
		&p.Tax,
		&p.Captured,
		&errorCode,
		&errorDescription,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.PaymentID = paymentID.String
	p.Method = method.String
	p.ErrorCode = errorCode.String
	p.ErrorDescription = errorDescription.String
	return &p, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// PaymentRepo persists payment records.  A booking has at most one
// payment (unique booking_id); status changes are compare-and-set so a
// refund can only follow a completed charge.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, booking_id, amount, refunded_amount, method, status, transaction_id,
	refund_transaction_id, processed_at, created_at`

// Create inserts a payment row and sets its ID.  A second payment for the
// same booking fails with ErrConflict.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (booking_id, amount, method, status, transaction_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, q, p.BookingID, p.Amount, p.Method, p.Status, p.TransactionID, p.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByID loads a payment by primary key.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (*model.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
}

// GetByBooking loads the payment of a booking.  ErrNotFound means the
// booking was never charged.
func (r *PaymentRepo) GetByBooking(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = ?`, bookingID)
}

// Resolve settles a PENDING payment as COMPLETED or FAILED.
func (r *PaymentRepo) Resolve(ctx context.Context, id uint64, status model.PaymentStatus, at time.Time) error {
	const q = `UPDATE payments SET status = ?, processed_at = ? WHERE id = ? AND status = 'PENDING'`
	return r.expectOne(r.db.ExecContext(ctx, q, status, at, id))
}

// MarkRefunded moves a COMPLETED payment to REFUNDED.  The amount guard
// is repeated in SQL so a refund larger than the charge is never stored.
func (r *PaymentRepo) MarkRefunded(ctx context.Context, id uint64, amount decimal.Decimal, refundTxID string, at time.Time) error {
	const q = `UPDATE payments
		SET status = 'REFUNDED', refunded_amount = ?, refund_transaction_id = ?, processed_at = ?
		WHERE id = ? AND status = 'COMPLETED' AND amount >= ?`
	return r.expectOne(r.db.ExecContext(ctx, q, amount, refundTxID, at, id, amount))
}

func (r *PaymentRepo) expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *PaymentRepo) getOne(ctx context.Context, q string, arg any) (*model.Payment, error) {
	var (
		p           model.Payment
		refunded    decimal.NullDecimal
		refundTx    sql.NullString
		processedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&p.ID, &p.BookingID, &p.Amount, &refunded, &p.Method, &p.Status, &p.TransactionID,
		&refundTx, &processedAt, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if refunded.Valid {
		d := refunded.Decimal
		p.RefundedAmount = &d
	}
	if refundTx.Valid {
		s := refundTx.String
		p.RefundTransactionID = &s
	}
	if processedAt.Valid {
		t := processedAt.Time
		p.ProcessedAt = &t
	}
	return &p, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// LoyaltyRepo stores loyalty accounts and their append-only points
// ledger.  Every balance change is written in the same SQL transaction as
// the ledger row that explains it, so the balance always equals the sum
// of the account's deltas.
type LoyaltyRepo struct {
	db *sql.DB
}

// NewLoyaltyRepo returns a LoyaltyRepo bound to the given database.
func NewLoyaltyRepo(db *sql.DB) *LoyaltyRepo { return &LoyaltyRepo{db: db} }

// EnsureAccount creates the user's account if it does not exist yet.
func (r *LoyaltyRepo) EnsureAccount(ctx context.Context, userID uint64) error {
	const q = `INSERT INTO loyalty_accounts (user_id, points_balance, total_earned) VALUES (?, 0, 0)
		ON DUPLICATE KEY UPDATE user_id = user_id`
	_, err := r.db.ExecContext(ctx, q, userID)
	return err
}

// GetAccount loads a user's account.
func (r *LoyaltyRepo) GetAccount(ctx context.Context, userID uint64) (*model.LoyaltyAccount, error) {
	const q = `SELECT user_id, points_balance, total_earned, created_at, updated_at FROM loyalty_accounts WHERE user_id = ?`
	var a model.LoyaltyAccount
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&a.UserID, &a.PointsBalance, &a.TotalEarned, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Append records a points transaction and applies its delta to the
// account balance atomically.  Kinds that require cover only apply when
// the balance can absorb the debit; otherwise ErrInsufficientPoints is
// returned and nothing is written.  A duplicate (booking, kind) pair
// returns ErrConflict.  The new balance is returned.
func (r *LoyaltyRepo) Append(ctx context.Context, e *model.PointsTransaction) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	// Insert first: the unique (booking_id, kind) index rejects a
	// duplicate before the balance is touched.
	const ins = `INSERT INTO points_transactions (user_id, booking_id, kind, delta, description, ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins, e.UserID, nullUint(e.BookingID), e.Kind, e.Delta, e.Description, nullString(e.Ref), e.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	earned := int64(0)
	if e.Kind.CountsAsEarned() && e.Delta > 0 {
		earned = e.Delta
	}
	upd := `UPDATE loyalty_accounts SET points_balance = points_balance + ?, total_earned = total_earned + ?,
		updated_at = UTC_TIMESTAMP() WHERE user_id = ?`
	args := []any{e.Delta, earned, e.UserID}
	if e.Kind.RequiresCover() && e.Delta < 0 {
		upd += ` AND points_balance >= ?`
		args = append(args, -e.Delta)
	}
	ures, err := tx.ExecContext(ctx, upd, args...)
	if err != nil {
		return 0, err
	}
	n, err := ures.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		if e.Kind.RequiresCover() {
			return 0, ErrInsufficientPoints
		}
		return 0, ErrNotFound
	}

	var balance int64
	if err := tx.QueryRowContext(ctx, `SELECT points_balance FROM loyalty_accounts WHERE user_id = ?`, e.UserID).Scan(&balance); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	e.ID = uint64(id)
	return balance, nil
}

// FindByBooking returns the transaction of the given kind recorded for a
// booking, or ErrNotFound.
func (r *LoyaltyRepo) FindByBooking(ctx context.Context, userID, bookingID uint64, kind model.PointsKind) (*model.PointsTransaction, error) {
	const q = `SELECT id, user_id, booking_id, kind, delta, description, ref, created_at
		FROM points_transactions WHERE user_id = ? AND booking_id = ? AND kind = ? LIMIT 1`
	t, err := scanPoints(r.db.QueryRowContext(ctx, q, userID, bookingID, kind))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// LinkRef attaches a booking to the unlinked transaction carrying ref.
func (r *LoyaltyRepo) LinkRef(ctx context.Context, ref string, bookingID uint64) error {
	const q = `UPDATE points_transactions SET booking_id = ? WHERE ref = ? AND booking_id IS NULL`
	res, err := r.db.ExecContext(ctx, q, bookingID, ref)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// History lists a user's transactions, newest first.
func (r *LoyaltyRepo) History(ctx context.Context, userID uint64, limit int) ([]model.PointsTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, user_id, booking_id, kind, delta, description, ref, created_at
		FROM points_transactions WHERE user_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PointsTransaction, 0)
	for rows.Next() {
		t, err := scanPoints(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// SumDeltas returns the sum of all deltas recorded for the user.
func (r *LoyaltyRepo) SumDeltas(ctx context.Context, userID uint64) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(delta), 0) FROM points_transactions WHERE user_id = ?`, userID).Scan(&sum)
	return sum, err
}

func scanPoints(s rowScanner) (*model.PointsTransaction, error) {
	var (
		t         model.PointsTransaction
		bookingID sql.NullInt64
		ref       sql.NullString
	)
	if err := s.Scan(&t.ID, &t.UserID, &bookingID, &t.Kind, &t.Delta, &t.Description, &ref, &t.CreatedAt); err != nil {
		return nil, err
	}
	if bookingID.Valid {
		id := uint64(bookingID.Int64)
		t.BookingID = &id
	}
	if ref.Valid {
		s := ref.String
		t.Ref = &s
	}
	return &t, nil
}

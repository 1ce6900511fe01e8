package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// BookingRepo provides persistence for bookings.  Status changes go
// through TransitionStatus, a compare-and-set on the current status, so
// a cancelled booking can never be resurrected.  All timestamps are
// stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, hotel_id, user_id, check_in, check_out, guests, total_amount,
	points_redeemed, discount_amount, redemption_ref, status, created_at, updated_at`

// Create inserts a booking and populates its generated ID and timestamps.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (hotel_id, user_id, check_in, check_out, guests, total_amount,
		points_redeemed, discount_amount, redemption_ref, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var discount decimal.NullDecimal
	if b.DiscountAmount != nil {
		discount = decimal.NewNullDecimal(*b.DiscountAmount)
	}
	res, err := r.db.ExecContext(ctx, q,
		b.HotelID, nullUint(b.UserID), model.DateOnly(b.CheckIn), model.DateOnly(b.CheckOut), b.Guests,
		b.TotalAmount, nullInt(b.PointsRedeemed), discount, nullString(b.RedemptionRef), b.Status,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate timestamps and defaults
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*b = *created
	return nil
}

// GetByID loads a booking.  ErrNotFound is returned when it does not exist.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// HasOverlap reports whether the user holds a CONFIRMED booking at the
// hotel whose stay intersects [checkIn, checkOut).
func (r *BookingRepo) HasOverlap(ctx context.Context, userID, hotelID uint64, checkIn, checkOut time.Time) (bool, error) {
	const q = `SELECT EXISTS(
		SELECT 1 FROM bookings
		WHERE user_id = ? AND hotel_id = ? AND status = 'CONFIRMED'
		  AND check_in < ? AND check_out > ?)`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, userID, hotelID, model.DateOnly(checkOut), model.DateOnly(checkIn)).Scan(&exists)
	return exists, err
}

// TransitionStatus moves a booking from one status to another.  When the
// booking is no longer in the expected status ErrStaleState is returned
// and nothing is written.
func (r *BookingRepo) TransitionStatus(ctx context.Context, id uint64, from, to model.BookingStatus) error {
	const q = `UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, to, id, from)
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

// ListDue returns up to limit CONFIRMED bookings whose check-out day has
// passed and whose payment completed, oldest first.  The caller moves
// each one to COMPLETED through TransitionStatus.
func (r *BookingRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	const q = `SELECT b.id FROM bookings b
		JOIN payments p ON p.booking_id = b.id
		WHERE b.status = 'CONFIRMED' AND p.status = 'COMPLETED' AND b.check_out <= ?
		ORDER BY b.id LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, model.DateOnly(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkReleasePending records that a cancelled booking still holds its
// room because the inventory release failed.
func (r *BookingRepo) MarkReleasePending(ctx context.Context, id uint64) error {
	const q = `UPDATE bookings SET release_pending = 1, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = 'CANCELLED'`
	res, err := r.db.ExecContext(ctx, q, id)
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

// ClaimRelease clears the release_pending flag.  Only one caller wins the
// claim; the others get ErrStaleState, so a room is given back once.
func (r *BookingRepo) ClaimRelease(ctx context.Context, id uint64) error {
	const q = `UPDATE bookings SET release_pending = 0, updated_at = UTC_TIMESTAMP() WHERE id = ? AND release_pending = 1`
	res, err := r.db.ExecContext(ctx, q, id)
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

// ListReleasePending returns up to limit bookings (ID and HotelID only)
// whose room release is still owed.
func (r *BookingRepo) ListReleasePending(ctx context.Context, limit int) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, hotel_id FROM bookings WHERE release_pending = 1 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.HotelID); err != nil {
			return nil, err
		}
		b.Status = model.BookingCancelled
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	var (
		b        model.Booking
		userID   sql.NullInt64
		points   sql.NullInt64
		discount decimal.NullDecimal
		ref      sql.NullString
	)
	if err := s.Scan(
		&b.ID, &b.HotelID, &userID, &b.CheckIn, &b.CheckOut, &b.Guests, &b.TotalAmount,
		&points, &discount, &ref, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if userID.Valid {
		uid := uint64(userID.Int64)
		b.UserID = &uid
	}
	if points.Valid {
		p := points.Int64
		b.PointsRedeemed = &p
	}
	if discount.Valid {
		d := discount.Decimal
		b.DiscountAmount = &d
	}
	if ref.Valid {
		s := ref.String
		b.RedemptionRef = &s
	}
	return &b, nil
}

func nullUint(v *uint64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// HotelRepo persists hotels and owns the available-room counter.  Counter
// changes are single conditional UPDATE statements so that concurrent
// bookings for the same hotel cannot oversell it.
type HotelRepo struct {
	db *sql.DB
}

// NewHotelRepo returns a HotelRepo bound to the given database.
func NewHotelRepo(db *sql.DB) *HotelRepo { return &HotelRepo{db: db} }

// Create inserts a hotel.  AvailableRooms starts equal to TotalRooms.
func (r *HotelRepo) Create(ctx context.Context, h *model.Hotel) error {
	const q = `INSERT INTO hotels (name, city, nightly_rate, total_rooms, available_rooms) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, h.Name, h.City, h.NightlyRate, h.TotalRooms, h.TotalRooms)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*h = *created
	return nil
}

// GetByID loads a hotel.  ErrNotFound is returned when it does not exist.
func (r *HotelRepo) GetByID(ctx context.Context, id uint64) (*model.Hotel, error) {
	const q = `SELECT id, name, city, nightly_rate, total_rooms, available_rooms, created_at FROM hotels WHERE id = ?`
	var h model.Hotel
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&h.ID, &h.Name, &h.City, &h.NightlyRate, &h.TotalRooms, &h.AvailableRooms, &h.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// DecrementAvailable takes one room if and only if at least one is
// available.  The check and the write are the same statement.
func (r *HotelRepo) DecrementAvailable(ctx context.Context, id uint64) error {
	const q = `UPDATE hotels SET available_rooms = available_rooms - 1 WHERE id = ? AND available_rooms > 0`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if err := r.exists(ctx, id); err != nil {
		return err
	}
	return ErrNoRooms
}

// IncrementAvailable gives one room back.  The counter is clamped to
// total_rooms so a stray release cannot inflate inventory.
func (r *HotelRepo) IncrementAvailable(ctx context.Context, id uint64) error {
	const q = `UPDATE hotels SET available_rooms = LEAST(available_rooms + 1, total_rooms) WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// MySQL reports zero affected rows when the value did not change
	// (counter already at total_rooms), so zero only means "missing" if
	// the row is really gone.
	return r.exists(ctx, id)
}

func (r *HotelRepo) exists(ctx context.Context, id uint64) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM hotels WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

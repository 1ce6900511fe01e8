package service

import (
	"context"
	"errors"

	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

// HotelStore is the storage contract of the inventory ledger.  Both
// counter methods must be single atomic conditional statements.
type HotelStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Hotel, error)
	DecrementAvailable(ctx context.Context, id uint64) error
	IncrementAvailable(ctx context.Context, id uint64) error
}

// InventoryLedger owns the available-room counter of each hotel.  It
// issues no reservation tokens: a caller releases at most once per
// successful Reserve.
type InventoryLedger struct {
	hotels HotelStore
}

func NewInventoryLedger(hotels HotelStore) *InventoryLedger {
	return &InventoryLedger{hotels: hotels}
}

// GetHotel returns the hotel with its current counter.
func (l *InventoryLedger) GetHotel(ctx context.Context, hotelID uint64) (*model.Hotel, error) {
	h, err := l.hotels.GetByID(ctx, hotelID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("hotel")
	}
	if err != nil {
		return nil, internal("get hotel", err)
	}
	return h, nil
}

// Reserve takes one room if any is available.  A sold-out hotel is an
// expected outcome reported as KindUnavailable.
func (l *InventoryLedger) Reserve(ctx context.Context, hotelID uint64) error {
	err := l.hotels.DecrementAvailable(ctx, hotelID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNoRooms):
		return unavailable("no rooms available", err)
	case errors.Is(err, repository.ErrNotFound):
		return notFound("hotel")
	default:
		return internal("reserve room", err)
	}
}

// Release gives one room back.
func (l *InventoryLedger) Release(ctx context.Context, hotelID uint64) error {
	err := l.hotels.IncrementAvailable(ctx, hotelID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound("hotel")
	default:
		return internal("release room", err)
	}
}

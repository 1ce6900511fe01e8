package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking.  Transitions are
// one-directional: CONFIRMED may become CANCELLED or COMPLETED and
// neither terminal state is ever left again.
type BookingStatus string

const (
    BookingConfirmed BookingStatus = "CONFIRMED"
    BookingCancelled BookingStatus = "CANCELLED"
    BookingCompleted BookingStatus = "COMPLETED"
)

// Booking records a stay at a hotel.  A booking is created CONFIRMED
// regardless of payment; settlement is tracked on its Payment.
//
// Fields:
//  ID             – primary key identifier.
//  HotelID        – hotel whose room counter was decremented.
//  UserID         – booking owner (nil for walk-in guest bookings).
//  CheckIn        – first night (date, UTC).
//  CheckOut       – departure day (date, UTC); always after CheckIn.
//  Guests         – number of guests.
//  TotalAmount    – amount due after the loyalty discount.
//  PointsRedeemed – loyalty points spent on this booking (nullable).
//  DiscountAmount – money value of the redeemed points (nullable).
//  RedemptionRef  – reference of the REDEEM points transaction (nullable).
//  Status         – CONFIRMED, CANCELLED or COMPLETED.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Booking struct {
    ID             uint64           `json:"id"`              // bookings.id
    HotelID        uint64           `json:"hotel_id"`        // bookings.hotel_id
    UserID         *uint64          `json:"user_id"`         // bookings.user_id (nullable)
    CheckIn        time.Time        `json:"check_in"`        // bookings.check_in
    CheckOut       time.Time        `json:"check_out"`       // bookings.check_out
    Guests         int              `json:"guests"`          // bookings.guests
    TotalAmount    decimal.Decimal  `json:"total_amount"`    // bookings.total_amount
    PointsRedeemed *int64           `json:"points_redeemed"` // bookings.points_redeemed (nullable)
    DiscountAmount *decimal.Decimal `json:"discount_amount"` // bookings.discount_amount (nullable)
    RedemptionRef  *string          `json:"-"`               // bookings.redemption_ref (nullable)
    Status         BookingStatus    `json:"status"`          // bookings.status
    CreatedAt      time.Time        `json:"created_at"`      // bookings.created_at
    UpdatedAt      time.Time        `json:"updated_at"`      // bookings.updated_at
}

// Nights returns the number of nights between check-in and check-out.
func (b *Booking) Nights() int {
    return NightsBetween(b.CheckIn, b.CheckOut)
}

// OwnedBy reports whether the booking belongs to the given user.  Walk-in
// bookings have no owner.
func (b *Booking) OwnedBy(userID uint64) bool {
    return b.UserID != nil && userID != 0 && *b.UserID == userID
}

// RedeemedPoints returns the redeemed point count or zero.
func (b *Booking) RedeemedPoints() int64 {
    if b.PointsRedeemed == nil {
        return 0
    }
    return *b.PointsRedeemed
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
    y, m, d := t.UTC().Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NightsBetween counts calendar nights from checkIn to checkOut.
func NightsBetween(checkIn, checkOut time.Time) int {
    return int(DateOnly(checkOut).Sub(DateOnly(checkIn)).Hours() / 24)
}

// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "time"

    "github.com/shopspring/decimal"
)

// EventType names a booking lifecycle transition.
type EventType string

const (
    EventBookingCreated  EventType = "booking.created"
    EventBookingPaid     EventType = "booking.paid"
    EventPaymentFailed   EventType = "booking.payment_failed"
    EventBookingCanceled EventType = "booking.cancelled"
)

// BookingEvent is published after each booking state change.  It carries
// enough information for downstream consumers to log, notify, or trigger
// analytics without querying the primary database.
type BookingEvent struct {
    Type           EventType        `json:"type"`
    BookingID      uint64           `json:"booking_id"`
    UserID         *uint64          `json:"user_id,omitempty"`
    HotelID        uint64           `json:"hotel_id"`
    Status         string           `json:"status"`
    Amount         decimal.Decimal  `json:"amount"`
    Refunded       *decimal.Decimal `json:"refunded,omitempty"`
    PointsRedeemed int64            `json:"points_redeemed,omitempty"`
    PointsAwarded  int64            `json:"points_awarded,omitempty"`
    PaymentStatus  string           `json:"payment_status,omitempty"`
    OccurredAt     time.Time        `json:"occurred_at"`
}

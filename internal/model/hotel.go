package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Hotel carries the fields of a hotel that the booking workflow needs.
// AvailableRooms is the shared inventory counter; it never drops below
// zero and never rises above TotalRooms.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – display name.
//  City           – city the hotel is located in.
//  NightlyRate    – price of one night.
//  TotalRooms     – rooms the hotel owns.
//  AvailableRooms – rooms not held by a live booking.
//  CreatedAt      – creation timestamp.
type Hotel struct {
    ID             uint64          `json:"id"`              // hotels.id
    Name           string          `json:"name"`            // hotels.name
    City           string          `json:"city"`            // hotels.city
    NightlyRate    decimal.Decimal `json:"nightly_rate"`    // hotels.nightly_rate
    TotalRooms     int             `json:"total_rooms"`     // hotels.total_rooms
    AvailableRooms int             `json:"available_rooms"` // hotels.available_rooms
    CreatedAt      time.Time       `json:"created_at"`      // hotels.created_at
}

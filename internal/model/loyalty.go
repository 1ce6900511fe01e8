package model

import "time"

// LoyaltyAccount holds a user's points.  PointsBalance always equals the
// sum of the account's transaction deltas; TotalEarned only grows.
type LoyaltyAccount struct {
    UserID        uint64    `json:"user_id"`        // loyalty_accounts.user_id
    PointsBalance int64     `json:"points_balance"` // loyalty_accounts.points_balance
    TotalEarned   int64     `json:"total_earned"`   // loyalty_accounts.total_earned
    CreatedAt     time.Time `json:"created_at"`     // loyalty_accounts.created_at
    UpdatedAt     time.Time `json:"updated_at"`     // loyalty_accounts.updated_at
}

// PointsKind classifies a points transaction.
type PointsKind string

const (
    PointsEarn           PointsKind = "EARN"
    PointsRedeem         PointsKind = "REDEEM"
    PointsRedeemReversal PointsKind = "REDEEM_REVERSAL"
    PointsEarnRevocation PointsKind = "EARN_REVOCATION"
)

// RequiresCover reports whether applying the kind must not push the
// balance below zero.  Revocations are allowed to.
func (k PointsKind) RequiresCover() bool { return k == PointsRedeem }

// CountsAsEarned reports whether the delta also adds to TotalEarned.
func (k PointsKind) CountsAsEarned() bool { return k == PointsEarn }

// PointsTransaction is an append-only ledger entry.  Positive deltas
// credit the account, negative deltas debit it.
type PointsTransaction struct {
    ID          uint64     `json:"id"`                   // points_transactions.id
    UserID      uint64     `json:"user_id"`              // points_transactions.user_id
    BookingID   *uint64    `json:"booking_id,omitempty"` // points_transactions.booking_id (nullable)
    Kind        PointsKind `json:"kind"`                 // points_transactions.kind
    Delta       int64      `json:"delta"`                // points_transactions.delta
    Description string     `json:"description"`          // points_transactions.description
    Ref         *string    `json:"ref,omitempty"`        // points_transactions.ref (nullable)
    CreatedAt   time.Time  `json:"created_at"`           // points_transactions.created_at
}

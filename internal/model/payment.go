package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
    PaymentPending   PaymentStatus = "PENDING"
    PaymentCompleted PaymentStatus = "COMPLETED"
    PaymentFailed    PaymentStatus = "FAILED"
    PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Payment is the single payment record of a booking.  A REFUNDED payment
// was COMPLETED before and RefundedAmount never exceeds Amount.
type Payment struct {
    ID                  uint64           `json:"id"`                              // payments.id
    BookingID           uint64           `json:"booking_id"`                      // payments.booking_id
    Amount              decimal.Decimal  `json:"amount"`                          // payments.amount
    RefundedAmount      *decimal.Decimal `json:"refunded_amount,omitempty"`       // payments.refunded_amount (nullable)
    Method              string           `json:"method"`                          // payments.method
    Status              PaymentStatus    `json:"status"`                          // payments.status
    TransactionID       string           `json:"transaction_id"`                  // payments.transaction_id
    RefundTransactionID *string          `json:"refund_transaction_id,omitempty"` // payments.refund_transaction_id (nullable)
    ProcessedAt         *time.Time       `json:"processed_at,omitempty"`          // payments.processed_at (nullable)
    CreatedAt           time.Time        `json:"created_at"`                      // payments.created_at
}

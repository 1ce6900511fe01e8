package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking/internal/config"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

// PaymentStore persists payment records for the simulated gateway.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByID(ctx context.Context, id uint64) (*model.Payment, error)
	GetByBooking(ctx context.Context, bookingID uint64) (*model.Payment, error)
	Resolve(ctx context.Context, id uint64, status model.PaymentStatus, at time.Time) error
	MarkRefunded(ctx context.Context, id uint64, amount decimal.Decimal, refundTxID string, at time.Time) error
}

// PaymentGateway simulates an external card processor.  A charge is
// stored as PENDING, resolved after an artificial delay and settled as
// COMPLETED or FAILED by a weighted coin flip.  The gateway does not
// deduplicate: callers must not charge a booking twice.
//
// A payment never stays PENDING for good.  When the outcome cannot be
// stored the charge is settled FAILED instead, and Expire fails any charge
// left PENDING past the pending timeout.
type PaymentGateway struct {
	store          PaymentStore
	successRate    float64
	refundRate     float64
	delay          time.Duration
	pendingTimeout time.Duration
	draw           func() float64
	sleep       func(time.Duration)
	now         func() time.Time
	log         *log.Logger
}

// GatewayOption customizes a PaymentGateway.
type GatewayOption func(*PaymentGateway)

// WithRandom replaces the random source.  draw must return values in
// [0, 1); a charge succeeds when draw() < success rate.
func WithRandom(draw func() float64) GatewayOption {
	return func(g *PaymentGateway) { g.draw = draw }
}

// WithDelay replaces the simulated network latency.
func WithDelay(d time.Duration) GatewayOption {
	return func(g *PaymentGateway) { g.delay = d }
}

// WithClock replaces the clock used for processed timestamps.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *PaymentGateway) { g.now = now }
}

func NewPaymentGateway(store PaymentStore, cfg config.PaymentConfig, opts ...GatewayOption) *PaymentGateway {
	g := &PaymentGateway{
		store:          store,
		successRate:    cfg.SuccessRate,
		refundRate:     cfg.RefundSuccessRate,
		delay:          cfg.Delay,
		pendingTimeout: cfg.PendingTimeout,
		draw:           rand.Float64,
		sleep:          time.Sleep,
		now:            func() time.Time { return time.Now().UTC() },
		log:            log.New("payment"),
	}
	for _, o := range opts {
		o(g)
	}
	if g.pendingTimeout <= 0 {
		g.pendingTimeout = g.delay + time.Minute
	}
	return g
}

// Charge records and resolves a payment for a booking.  A declined charge
// is an outcome, not an error: the FAILED payment is returned with a nil
// error.  Once started, the charge runs to completion even if ctx is
// cancelled.
func (g *PaymentGateway) Charge(ctx context.Context, bookingID uint64, amount decimal.Decimal, method string) (*model.Payment, error) {
	if amount.IsNegative() {
		return nil, validation("payment amount cannot be negative")
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return nil, validation("payment method is required")
	}
	ctx = context.WithoutCancel(ctx)

	p := &model.Payment{
		BookingID:     bookingID,
		Amount:        amount,
		Method:        method,
		Status:        model.PaymentPending,
		TransactionID: "TXN-" + uuid.NewString(),
		CreatedAt:     g.now(),
	}
	if err := g.store.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, conflict("booking already has a payment")
		}
		return nil, internal("create payment", err)
	}

	if g.delay > 0 {
		g.sleep(g.delay)
	}

	status := model.PaymentFailed
	if g.draw() < g.successRate {
		status = model.PaymentCompleted
	}
	at := g.now()
	if err := g.store.Resolve(ctx, p.ID, status, at); err != nil {
		g.log.Errorj(log.JSON{"booking_id": bookingID, "payment_id": p.ID, "step": "resolve", "status": status, "error": err.Error()})
		// An outcome that was not recorded did not happen: settle FAILED so
		// the booking can be cancelled and its room released.
		status, at = model.PaymentFailed, g.now()
		if ferr := g.store.Resolve(ctx, p.ID, status, at); ferr != nil {
			return nil, internal("resolve payment", err)
		}
	}
	p.Status = status
	p.ProcessedAt = &at
	g.log.Infoj(log.JSON{"booking_id": bookingID, "payment_id": p.ID, "transaction_id": p.TransactionID, "status": status})
	return p, nil
}

// Expire settles p as FAILED when it has been PENDING longer than the
// pending timeout, as happens when the process dies mid-charge.  Any other
// payment is returned unchanged.
func (g *PaymentGateway) Expire(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	if p == nil || p.Status != model.PaymentPending || g.now().Sub(p.CreatedAt) < g.pendingTimeout {
		return p, nil
	}
	at := g.now()
	err := g.store.Resolve(ctx, p.ID, model.PaymentFailed, at)
	if errors.Is(err, repository.ErrStaleState) {
		// resolved meanwhile; report what is stored
		cur, gerr := g.store.GetByID(ctx, p.ID)
		if gerr != nil {
			return nil, internal("reload payment", gerr)
		}
		return cur, nil
	}
	if err != nil {
		return nil, internal("expire payment", err)
	}
	g.log.Warnj(log.JSON{"booking_id": p.BookingID, "payment_id": p.ID, "step": "expire", "pending_since": p.CreatedAt})
	expired := *p
	expired.Status = model.PaymentFailed
	expired.ProcessedAt = &at
	return &expired, nil
}

// Refund returns amount of a completed payment to the payer.  A declined
// refund leaves the stored payment untouched and is reported as a FAILED
// result with a nil error.
func (g *PaymentGateway) Refund(ctx context.Context, paymentID uint64, amount decimal.Decimal) (*model.Payment, error) {
	ctx = context.WithoutCancel(ctx)
	p, err := g.store.GetByID(ctx, paymentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("payment")
	}
	if err != nil {
		return nil, internal("load payment", err)
	}
	if p.Status != model.PaymentCompleted {
		return nil, validation("only completed payments can be refunded")
	}
	if amount.IsNegative() || amount.GreaterThan(p.Amount) {
		return nil, validation("refund amount must not be negative or exceed the original amount")
	}

	if g.delay > 0 {
		g.sleep(g.delay)
	}

	at := g.now()
	if g.draw() >= g.refundRate {
		g.log.Warnj(log.JSON{"payment_id": p.ID, "step": "refund", "status": model.PaymentFailed})
		declined := *p
		declined.Status = model.PaymentFailed
		declined.ProcessedAt = &at
		return &declined, nil
	}

	refundTx := "RFD-" + uuid.NewString()
	if err := g.store.MarkRefunded(ctx, p.ID, amount, refundTx, at); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, conflict("payment changed while refunding")
		}
		return nil, internal("mark refunded", err)
	}
	p.Status = model.PaymentRefunded
	p.RefundedAmount = &amount
	p.RefundTransactionID = &refundTx
	p.ProcessedAt = &at
	g.log.Infoj(log.JSON{"booking_id": p.BookingID, "payment_id": p.ID, "refund_transaction_id": refundTx, "status": p.Status})
	return p, nil
}

// ForBooking returns the payment recorded for a booking, or nil.
func (g *PaymentGateway) ForBooking(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	p, err := g.store.GetByBooking(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internal("load payment", err)
	}
	return p, nil
}

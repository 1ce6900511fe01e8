package service

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking/internal/config"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/queue"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

// HotelLookup reads hotel rates and counters.
type HotelLookup interface {
	GetHotel(ctx context.Context, hotelID uint64) (*model.Hotel, error)
}

// Inventory reserves and releases rooms.
type Inventory interface {
	Reserve(ctx context.Context, hotelID uint64) error
	Release(ctx context.Context, hotelID uint64) error
}

// Payments charges and refunds bookings.
type Payments interface {
	Charge(ctx context.Context, bookingID uint64, amount decimal.Decimal, method string) (*model.Payment, error)
	Refund(ctx context.Context, paymentID uint64, amount decimal.Decimal) (*model.Payment, error)
	ForBooking(ctx context.Context, bookingID uint64) (*model.Payment, error)
	Expire(ctx context.Context, p *model.Payment) (*model.Payment, error)
}

// Loyalty is the part of the loyalty ledger the orchestrator drives.
type Loyalty interface {
	Quote(points int64) decimal.Decimal
	Redeem(ctx context.Context, userID uint64, points int64) (Redemption, error)
	LinkRedemption(ctx context.Context, ref string, bookingID uint64) error
	Award(ctx context.Context, userID, bookingID uint64, paid decimal.Decimal) (int64, error)
	ReverseRedemption(ctx context.Context, userID, bookingID uint64, points int64) (int64, error)
	RevokeEarned(ctx context.Context, userID, bookingID uint64) (int64, error)
}

// BookingStore persists bookings.  TransitionStatus and ClaimRelease are
// compare-and-sets returning repository.ErrStaleState when they lose.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	HasOverlap(ctx context.Context, userID, hotelID uint64, checkIn, checkOut time.Time) (bool, error)
	TransitionStatus(ctx context.Context, id uint64, from, to model.BookingStatus) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	MarkReleasePending(ctx context.Context, id uint64) error
	ClaimRelease(ctx context.Context, id uint64) error
	ListReleasePending(ctx context.Context, limit int) ([]model.Booking, error)
}

// EventPublisher receives booking lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// Deps are the collaborators of a BookingService.
type Deps struct {
	Hotels    HotelLookup
	Inventory Inventory
	Payments  Payments
	Loyalty   Loyalty
	Bookings  BookingStore
	Events    EventPublisher // optional
	Guard     Guard          // optional, defaults to a LocalGuard
}

// BookingService drives booking creation, payment settlement and
// cancellation across inventory, payments and loyalty.  None of these
// share a transaction: every multi-step operation either completes or
// compensates the steps it already applied.
type BookingService struct {
	hotels    HotelLookup
	inventory Inventory
	payments  Payments
	loyalty   Loyalty
	bookings  BookingStore
	events    EventPublisher
	guard     Guard

	cfg             config.BookingConfig
	reverseOnFailed bool
	now             func() time.Time
	log             *log.Logger
}

// NewBookingService wires the orchestrator.  reverseOnFailedPayment
// decides whether redeemed points are returned when a charge is declined.
func NewBookingService(d Deps, cfg config.BookingConfig, reverseOnFailedPayment bool) *BookingService {
	s := &BookingService{
		hotels:          d.Hotels,
		inventory:       d.Inventory,
		payments:        d.Payments,
		loyalty:         d.Loyalty,
		bookings:        d.Bookings,
		events:          d.Events,
		guard:           d.Guard,
		cfg:             cfg,
		reverseOnFailed: reverseOnFailedPayment,
		now:             func() time.Time { return time.Now().UTC() },
		log:             log.New("booking"),
	}
	if s.events == nil {
		s.events = queue.NopPublisher{}
	}
	if s.guard == nil {
		s.guard = NewLocalGuard()
	}
	return s
}

// SetClock replaces the clock used for date validation and sweeps.
func (s *BookingService) SetClock(now func() time.Time) { s.now = now }

// CreateBookingRequest is the input of CreateBooking.  WalkIn books for
// a guest without an account and needs the ManageAny capability.
type CreateBookingRequest struct {
	HotelID      uint64    `json:"hotel_id"`
	CheckIn      time.Time `json:"check_in"`
	CheckOut     time.Time `json:"check_out"`
	Guests       int       `json:"guests"`
	RedeemPoints int64     `json:"redeem_points"`
	WalkIn       bool      `json:"walk_in"`
}

// BookingResult is returned by CreateBooking.  Payment is always still
// required: creation never charges.
type BookingResult struct {
	Booking         *model.Booking  `json:"booking"`
	BaseAmount      decimal.Decimal `json:"base_amount"`
	PaymentRequired bool            `json:"payment_required"`
}

// PaymentDetails is the input of SettlePayment.
type PaymentDetails struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

// PaymentResult reports a settlement attempt.  A declined charge is a
// result with Status FAILED and BookingStatus CANCELLED, not an error.
// ReleasePending is set when the booking was cancelled but its room could
// not be returned yet; the release sweep retries it.
type PaymentResult struct {
	PaymentID      uint64              `json:"payment_id"`
	BookingID      uint64              `json:"booking_id"`
	TransactionID  string              `json:"transaction_id"`
	Amount         decimal.Decimal     `json:"amount"`
	Status         model.PaymentStatus `json:"status"`
	ProcessedAt    *time.Time          `json:"processed_at,omitempty"`
	PointsAwarded  int64               `json:"points_awarded"`
	PointsRestored int64               `json:"points_restored,omitempty"`
	BookingStatus  model.BookingStatus `json:"booking_status"`
	ReleasePending bool                `json:"room_release_pending,omitempty"`
}

// CancelResult reports a cancellation.  Refund is nil when nothing had
// been paid.
type CancelResult struct {
	Booking        *model.Booking `json:"booking"`
	Refund         *model.Payment `json:"refund,omitempty"`
	PointsRestored int64          `json:"points_restored"`
	PointsRevoked  int64          `json:"points_revoked"`
	ReleasePending bool           `json:"room_release_pending,omitempty"`
}

// BookingView is a booking together with its payment, if any.
type BookingView struct {
	Booking *model.Booking `json:"booking"`
	Payment *model.Payment `json:"payment,omitempty"`
}

// CreateBooking validates the request, redeems points, reserves a room
// and stores the booking as CONFIRMED.  The three mutations run as a saga:
// when one fails, the ones before it are undone in reverse order.
func (s *BookingService) CreateBooking(ctx context.Context, caller Caller, req CreateBookingRequest) (*BookingResult, error) {
	var owner *uint64
	switch {
	case req.WalkIn:
		if !caller.Caps.ManageAny {
			return nil, unauthorized("only staff can book for walk-in guests")
		}
	case caller.authenticated():
		uid := caller.UserID
		owner = &uid
	default:
		return nil, unauthorized("sign in required")
	}

	checkIn, checkOut := model.DateOnly(req.CheckIn), model.DateOnly(req.CheckOut)
	if err := s.validateStay(caller, checkIn, checkOut, req.Guests); err != nil {
		return nil, err
	}
	if req.RedeemPoints < 0 {
		return nil, validation("points to redeem cannot be negative")
	}
	if req.RedeemPoints > 0 && owner == nil {
		return nil, validation("walk-in bookings cannot redeem points")
	}

	hotel, err := s.hotels.GetHotel(ctx, req.HotelID)
	if err != nil {
		return nil, asServiceError("get hotel", err)
	}
	if hotel.AvailableRooms <= 0 {
		return nil, unavailable("no rooms available", repository.ErrNoRooms)
	}
	if owner != nil && !caller.Caps.WaiveOverlap {
		overlap, err := s.bookings.HasOverlap(ctx, *owner, hotel.ID, checkIn, checkOut)
		if err != nil {
			return nil, internal("check overlap", err)
		}
		if overlap {
			return nil, conflict("you already have a booking at this hotel for these dates")
		}
	}

	nights := model.NightsBetween(checkIn, checkOut)
	base := hotel.NightlyRate.Mul(decimal.NewFromInt(int64(nights)))
	if req.RedeemPoints > 0 && s.loyalty.Quote(req.RedeemPoints).GreaterThan(base) {
		return nil, validation("points discount exceeds the booking amount")
	}

	b := &model.Booking{
		HotelID:     hotel.ID,
		UserID:      owner,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Guests:      req.Guests,
		TotalAmount: base,
		Status:      model.BookingConfirmed,
	}
	var red Redemption

	saga := NewSaga("create_booking", s.log)
	if req.RedeemPoints > 0 {
		saga.Step("redeem_points",
			func(ctx context.Context) error {
				r, err := s.loyalty.Redeem(ctx, *owner, req.RedeemPoints)
				if err != nil {
					return asServiceError("redeem points", err)
				}
				red = r
				b.PointsRedeemed = &r.Points
				b.DiscountAmount = &r.Discount
				b.RedemptionRef = &r.Ref
				b.TotalAmount = base.Sub(r.Discount)
				return nil
			},
			func(ctx context.Context) error {
				_, err := s.loyalty.ReverseRedemption(ctx, *owner, 0, red.Points)
				return err
			})
	}
	saga.Step("reserve_room",
		func(ctx context.Context) error {
			return asServiceError("reserve room", s.inventory.Reserve(ctx, hotel.ID))
		},
		func(ctx context.Context) error {
			return s.inventory.Release(ctx, hotel.ID)
		})
	saga.Step("persist_booking",
		func(ctx context.Context) error {
			if err := s.bookings.Create(ctx, b); err != nil {
				return internal("persist booking", err)
			}
			return nil
		}, nil)

	if err := saga.Run(ctx); err != nil {
		return nil, err
	}

	if red.Ref != "" {
		if err := s.loyalty.LinkRedemption(ctx, red.Ref, b.ID); err != nil {
			s.log.Warnj(log.JSON{"booking_id": b.ID, "step": "link_redemption", "error": err.Error()})
		}
	}
	s.log.Infoj(log.JSON{"booking_id": b.ID, "hotel_id": b.HotelID, "step": "created", "total": b.TotalAmount.StringFixed(2)})
	s.publish(ctx, queue.EventBookingCreated, b, nil, 0)
	return &BookingResult{Booking: b, BaseAmount: base, PaymentRequired: true}, nil
}

func (s *BookingService) validateStay(caller Caller, checkIn, checkOut time.Time, guests int) error {
	if !checkIn.Before(checkOut) {
		return validation("check-in must be before check-out")
	}
	if checkIn.Before(model.DateOnly(s.now())) {
		return validation("check-in cannot be in the past")
	}
	if guests < 1 || guests > s.cfg.MaxGuests {
		return validation("guest count out of range")
	}
	if s.cfg.MaxNights > 0 && !caller.Caps.WaiveStayLimit && model.NightsBetween(checkIn, checkOut) > s.cfg.MaxNights {
		return validation("stay exceeds the maximum number of nights")
	}
	return nil
}

// SettlePayment charges the booking total.  On success the booking stays
// CONFIRMED and loyalty points are awarded on a best-effort basis.  On a
// declined charge the booking is cancelled and its room released.
func (s *BookingService) SettlePayment(ctx context.Context, caller Caller, bookingID uint64, pd PaymentDetails) (*PaymentResult, error) {
	release, err := s.lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer release()

	b, err := s.load(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case model.BookingCancelled:
		return nil, conflict("booking is cancelled")
	case model.BookingCompleted:
		return nil, conflict("booking is already completed")
	}
	prior, err := s.priorPayment(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		switch prior.Status {
		case model.PaymentPending:
			return nil, conflict("payment is still processing")
		case model.PaymentFailed:
			// The charge failed but the booking was never cancelled, e.g. an
			// expired charge or a crash after the decline.  Finish that now.
			return s.settleFailed(ctx, b, prior)
		default:
			return nil, conflict("booking is already paid")
		}
	}
	if !pd.Amount.Equal(b.TotalAmount) {
		return nil, validation("payment amount must equal the booking total")
	}

	p, err := s.payments.Charge(ctx, b.ID, pd.Amount, pd.Method)
	if err != nil {
		return nil, asServiceError("charge", err)
	}
	// Past this point the money moved (or was declined) and the outcome
	// must be recorded even if the caller went away.
	ctx = context.WithoutCancel(ctx)

	if p.Status != model.PaymentCompleted {
		return s.settleFailed(ctx, b, p)
	}
	res := paymentResult(b, p)
	if b.UserID != nil {
		pts, err := s.loyalty.Award(ctx, *b.UserID, b.ID, p.Amount)
		if err != nil {
			s.log.Warnj(log.JSON{"booking_id": b.ID, "user_id": *b.UserID, "step": "award", "error": err.Error()})
		}
		res.PointsAwarded = pts
	}
	s.publish(ctx, queue.EventBookingPaid, b, p, res.PointsAwarded)
	return res, nil
}

// settleFailed cancels a booking whose charge p failed and gives its room
// back.  Redeemed points are returned only when configured.
func (s *BookingService) settleFailed(ctx context.Context, b *model.Booking, p *model.Payment) (*PaymentResult, error) {
	ctx = context.WithoutCancel(ctx)
	res := paymentResult(b, p)
	pending, err := s.cancelAndRelease(ctx, b)
	if err != nil {
		return nil, err
	}
	res.BookingStatus = b.Status
	res.ReleasePending = pending
	if s.reverseOnFailed && b.UserID != nil && b.RedeemedPoints() > 0 {
		pts, err := s.loyalty.ReverseRedemption(ctx, *b.UserID, b.ID, b.RedeemedPoints())
		if err != nil {
			s.log.Warnj(log.JSON{"booking_id": b.ID, "user_id": *b.UserID, "step": "reverse_redemption", "error": err.Error()})
		}
		res.PointsRestored = pts
	}
	s.log.Infoj(log.JSON{"booking_id": b.ID, "step": "payment_failed", "payment_id": p.ID})
	s.publish(ctx, queue.EventPaymentFailed, b, p, 0)
	return res, nil
}

func paymentResult(b *model.Booking, p *model.Payment) *PaymentResult {
	return &PaymentResult{
		PaymentID:     p.ID,
		BookingID:     b.ID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Status:        p.Status,
		ProcessedAt:   p.ProcessedAt,
		BookingStatus: b.Status,
	}
}

// priorPayment loads the booking's payment, failing it first when it has
// been stuck in PENDING past the gateway's timeout.
func (s *BookingService) priorPayment(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	p, err := s.payments.ForBooking(ctx, bookingID)
	if err != nil {
		return nil, asServiceError("load payment", err)
	}
	if p == nil || p.Status != model.PaymentPending {
		return p, nil
	}
	p, err = s.payments.Expire(ctx, p)
	if err != nil {
		return nil, asServiceError("expire payment", err)
	}
	return p, nil
}

// CancelBooking refunds a paid booking, reverses its loyalty effects and
// releases its room.  A declined refund aborts the cancellation and
// leaves the booking untouched.
func (s *BookingService) CancelBooking(ctx context.Context, caller Caller, bookingID uint64) (*CancelResult, error) {
	release, err := s.lock(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer release()

	b, err := s.load(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case model.BookingCancelled:
		return nil, conflict("booking is already cancelled")
	case model.BookingCompleted:
		return nil, conflict("completed bookings cannot be cancelled")
	}

	p, err := s.priorPayment(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	res := &CancelResult{Booking: b}
	paid := false
	if p != nil {
		switch p.Status {
		case model.PaymentPending:
			return nil, conflict("payment is still processing")
		case model.PaymentCompleted:
			refund, err := s.payments.Refund(ctx, p.ID, p.Amount)
			if err != nil {
				return nil, asServiceError("refund", err)
			}
			if refund.Status != model.PaymentRefunded {
				s.log.Warnj(log.JSON{"booking_id": b.ID, "payment_id": p.ID, "step": "refund", "status": refund.Status})
				return nil, external("refund declined, booking not cancelled")
			}
			res.Refund = refund
			paid = true
		case model.PaymentRefunded:
			// An earlier attempt refunded but did not finish cancelling.
			res.Refund = p
			paid = true
		}
	}
	ctx = context.WithoutCancel(ctx)

	if b.UserID != nil {
		uid := *b.UserID
		if pts := b.RedeemedPoints(); pts > 0 {
			restored, err := s.loyalty.ReverseRedemption(ctx, uid, b.ID, pts)
			if err != nil {
				s.log.Warnj(log.JSON{"booking_id": b.ID, "user_id": uid, "step": "reverse_redemption", "error": err.Error()})
			}
			res.PointsRestored = restored
		}
		if paid {
			revoked, err := s.loyalty.RevokeEarned(ctx, uid, b.ID)
			if err != nil {
				s.log.Warnj(log.JSON{"booking_id": b.ID, "user_id": uid, "step": "revoke_earned", "error": err.Error()})
			}
			res.PointsRevoked = revoked
		}
	}

	pending, err := s.cancelAndRelease(ctx, b)
	if err != nil {
		return nil, err
	}
	res.ReleasePending = pending
	s.log.Infoj(log.JSON{"booking_id": b.ID, "step": "cancelled", "refunded": paid})
	s.publish(ctx, queue.EventBookingCanceled, b, res.Refund, 0)
	return res, nil
}

// cancelAndRelease moves b to CANCELLED and gives its room back.  The
// status compare-and-set gates the release, so a room is released at
// most once per booking.  Once the status has changed the cancellation
// stands: a failed release is recorded as pending for RetryReleases and
// reported through the returned flag.
func (s *BookingService) cancelAndRelease(ctx context.Context, b *model.Booking) (releasePending bool, err error) {
	err = s.bookings.TransitionStatus(ctx, b.ID, model.BookingConfirmed, model.BookingCancelled)
	if errors.Is(err, repository.ErrStaleState) {
		return false, conflict("booking changed during the operation")
	}
	if err != nil {
		return false, internal("cancel booking", err)
	}
	b.Status = model.BookingCancelled
	if err := s.inventory.Release(ctx, b.HotelID); err != nil {
		s.log.Errorj(log.JSON{"booking_id": b.ID, "hotel_id": b.HotelID, "step": "release_room", "error": err.Error()})
		if merr := s.bookings.MarkReleasePending(ctx, b.ID); merr != nil {
			s.log.Errorj(log.JSON{"booking_id": b.ID, "hotel_id": b.HotelID, "step": "mark_release_pending", "error": merr.Error()})
		}
		return true, nil
	}
	return false, nil
}

// GetBooking returns a booking the caller may see, with its payment.
func (s *BookingService) GetBooking(ctx context.Context, caller Caller, bookingID uint64) (*BookingView, error) {
	b, err := s.load(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}
	p, err := s.payments.ForBooking(ctx, b.ID)
	if err != nil {
		return nil, asServiceError("load payment", err)
	}
	return &BookingView{Booking: b, Payment: p}, nil
}

// ListBookings returns the caller's own bookings, newest first.
func (s *BookingService) ListBookings(ctx context.Context, caller Caller) ([]model.Booking, error) {
	if !caller.authenticated() {
		return nil, unauthorized("sign in required")
	}
	items, err := s.bookings.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, internal("list bookings", err)
	}
	return items, nil
}

// sweepBatch bounds how many bookings one sweep pass touches.
const sweepBatch = 100

// CompleteDue marks paid bookings whose stay has ended as COMPLETED.  Each
// booking is completed under its guard, so a sweep never interleaves with
// a cancellation in flight; busy bookings are left for the next pass.
func (s *BookingService) CompleteDue(ctx context.Context) (int64, error) {
	ids, err := s.bookings.ListDue(ctx, s.now(), sweepBatch)
	if err != nil {
		return 0, internal("list due bookings", err)
	}
	var n int64
	for _, id := range ids {
		ok, err := s.completeOne(ctx, id)
		if err != nil {
			s.log.Warnj(log.JSON{"booking_id": id, "step": "complete", "error": err.Error()})
			continue
		}
		if ok {
			n++
		}
	}
	if n > 0 {
		s.log.Infoj(log.JSON{"step": "complete_due", "completed": n})
	}
	return n, nil
}

func (s *BookingService) completeOne(ctx context.Context, id uint64) (bool, error) {
	release, err := s.lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer release()

	// Re-check under the guard: a cancellation may have refunded since
	// the listing.
	p, err := s.payments.ForBooking(ctx, id)
	if err != nil {
		return false, err
	}
	if p == nil || p.Status != model.PaymentCompleted {
		return false, nil
	}
	err = s.bookings.TransitionStatus(ctx, id, model.BookingConfirmed, model.BookingCompleted)
	if errors.Is(err, repository.ErrStaleState) {
		return false, nil
	}
	return err == nil, err
}

// RetryReleases gives back rooms of cancelled bookings whose release
// failed.  The flag is claimed before releasing, so a room is returned at
// most once even with several sweepers.
func (s *BookingService) RetryReleases(ctx context.Context) (int, error) {
	items, err := s.bookings.ListReleasePending(ctx, sweepBatch)
	if err != nil {
		return 0, internal("list pending releases", err)
	}
	n := 0
	for _, b := range items {
		err := s.bookings.ClaimRelease(ctx, b.ID)
		if errors.Is(err, repository.ErrStaleState) {
			continue
		}
		if err != nil {
			s.log.Warnj(log.JSON{"booking_id": b.ID, "step": "claim_release", "error": err.Error()})
			continue
		}
		if err := s.inventory.Release(ctx, b.HotelID); err != nil {
			s.log.Errorj(log.JSON{"booking_id": b.ID, "hotel_id": b.HotelID, "step": "retry_release", "error": err.Error()})
			if merr := s.bookings.MarkReleasePending(ctx, b.ID); merr != nil {
				s.log.Errorj(log.JSON{"booking_id": b.ID, "step": "mark_release_pending", "error": merr.Error()})
			}
			continue
		}
		n++
	}
	if n > 0 {
		s.log.Infoj(log.JSON{"step": "retry_releases", "released": n})
	}
	return n, nil
}

// RunCompletionSweep calls CompleteDue every interval until ctx ends.
func (s *BookingService) RunCompletionSweep(ctx context.Context, every time.Duration) {
	s.runEvery(ctx, every, "completion sweep", func(ctx context.Context) error {
		_, err := s.CompleteDue(ctx)
		return err
	})
}

// RunReleaseSweep calls RetryReleases every interval until ctx ends.
func (s *BookingService) RunReleaseSweep(ctx context.Context, every time.Duration) {
	s.runEvery(ctx, every, "release sweep", func(ctx context.Context) error {
		_, err := s.RetryReleases(ctx)
		return err
	})
}

func (s *BookingService) runEvery(ctx context.Context, every time.Duration, name string, fn func(context.Context) error) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := fn(ctx); err != nil {
				s.log.Errorf("%s: %v", name, err)
			}
		}
	}
}

func (s *BookingService) lock(ctx context.Context, bookingID uint64) (func(), error) {
	release, err := s.guard.Acquire(ctx, bookingKey(bookingID))
	if errors.Is(err, ErrBusy) {
		return nil, conflict("booking operation already in progress")
	}
	if err != nil {
		return nil, internal("acquire booking guard", err)
	}
	return release, nil
}

func (s *BookingService) load(ctx context.Context, caller Caller, bookingID uint64) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("booking")
	}
	if err != nil {
		return nil, internal("load booking", err)
	}
	if !caller.canAccess(b) {
		return nil, unauthorized("not allowed to access this booking")
	}
	return b, nil
}

func (s *BookingService) publish(ctx context.Context, typ queue.EventType, b *model.Booking, p *model.Payment, awarded int64) {
	ev := queue.BookingEvent{
		Type:           typ,
		BookingID:      b.ID,
		UserID:         b.UserID,
		HotelID:        b.HotelID,
		Status:         string(b.Status),
		Amount:         b.TotalAmount,
		PointsRedeemed: b.RedeemedPoints(),
		PointsAwarded:  awarded,
		OccurredAt:     s.now(),
	}
	if p != nil {
		ev.PaymentStatus = string(p.Status)
		ev.Refunded = p.RefundedAmount
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.events.Publish(pctx, ev); err != nil {
		s.log.Warnj(log.JSON{"booking_id": b.ID, "event": typ, "error": err.Error()})
	}
}

// asServiceError passes typed errors through and wraps anything else as
// internal.
func asServiceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return internal(op, err)
}

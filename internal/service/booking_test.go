package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-booking/internal/config"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/queue"
)

var (
	testNow  = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	checkIn  = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	checkOut = time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

	guest   = NewCaller(7, model.RoleGuest)
	other   = NewCaller(8, model.RoleGuest)
	manager = NewCaller(2, model.RoleManager)
)

type fixture struct {
	svc      *BookingService
	hotels   *memHotels
	bookings *memBookings
	payments *memPayments
	loyalty  *memLoyalty
	events   *recordingPublisher
	guard    *LocalGuard
	gwNow    time.Time // gateway clock
}

type fixtureOpts struct {
	rooms           int
	draws           []float64
	reverseOnFailed bool
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()
	if len(o.draws) == 0 {
		o.draws = []float64{0.1}
	}
	f := &fixture{
		hotels:   newMemHotels(testHotel(1, o.rooms)),
		bookings: newMemBookings(),
		payments: newMemPayments(),
		loyalty:  newMemLoyalty(),
		events:   &recordingPublisher{},
		guard:    NewLocalGuard(),
		gwNow:    testNow,
	}
	f.bookings.paid = f.payments.completed
	inv := NewInventoryLedger(f.hotels)
	gw := NewPaymentGateway(f.payments,
		config.PaymentConfig{SuccessRate: 0.9, RefundSuccessRate: 0.95, PendingTimeout: time.Minute},
		WithDelay(0), WithRandom(scriptedDraw(o.draws...)), WithClock(func() time.Time { return f.gwNow }))
	ll := NewLoyaltyLedger(f.loyalty, testLoyaltyConfig())
	f.svc = NewBookingService(Deps{
		Hotels:    inv,
		Inventory: inv,
		Payments:  gw,
		Loyalty:   ll,
		Bookings:  f.bookings,
		Events:    f.events,
		Guard:     f.guard,
	}, config.BookingConfig{MaxGuests: 4, MaxNights: 14}, o.reverseOnFailed)
	f.svc.SetClock(func() time.Time { return testNow })
	return f
}

func stay(points int64) CreateBookingRequest {
	return CreateBookingRequest{HotelID: 1, CheckIn: checkIn, CheckOut: checkOut, Guests: 2, RedeemPoints: points}
}

func (f *fixture) createPaid(t *testing.T, points int64) *model.Booking {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.CreateBooking(ctx, guest, stay(points))
	require.NoError(t, err)
	pay, err := f.svc.SettlePayment(ctx, guest, res.Booking.ID, PaymentDetails{Amount: res.Booking.TotalAmount, Method: "card"})
	require.NoError(t, err)
	require.Equal(t, model.PaymentCompleted, pay.Status)
	return res.Booking
}

func TestCreateRedeemAndSettle(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1})
	f.loyalty.seed(7, 100)
	ctx := context.Background()

	res, err := f.svc.CreateBooking(ctx, guest, stay(50))
	require.NoError(t, err)
	assert.True(t, res.PaymentRequired)
	assert.Equal(t, "200", res.BaseAmount.String())
	assert.Equal(t, "150", res.Booking.TotalAmount.String())
	assert.Equal(t, model.BookingConfirmed, res.Booking.Status)
	require.NotNil(t, res.Booking.PointsRedeemed)
	assert.Equal(t, int64(50), *res.Booking.PointsRedeemed)
	assert.Equal(t, "50", res.Booking.DiscountAmount.String())
	assert.Equal(t, 0, f.hotels.available(1))
	assert.Equal(t, int64(50), f.loyalty.balance(7))

	redeem, err := f.loyalty.FindByBooking(ctx, 7, res.Booking.ID, model.PointsRedeem)
	require.NoError(t, err, "redemption is linked to the booking")
	assert.Equal(t, int64(-50), redeem.Delta)

	pay, err := f.svc.SettlePayment(ctx, guest, res.Booking.ID, PaymentDetails{Amount: decimal.NewFromInt(150), Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, pay.Status)
	assert.Equal(t, model.BookingConfirmed, pay.BookingStatus)
	assert.Equal(t, int64(15), pay.PointsAwarded, "10% of 150, not of 200")
	assert.Equal(t, int64(65), f.loyalty.balance(7))
	assert.Equal(t, []queue.EventType{queue.EventBookingCreated, queue.EventBookingPaid}, f.events.types())
}

func TestCancelPaidBookingRestoresEverything(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1})
	f.loyalty.seed(7, 100)
	b := f.createPaid(t, 50)

	res, err := f.svc.CancelBooking(context.Background(), guest, b.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Refund)
	assert.Equal(t, model.PaymentRefunded, res.Refund.Status)
	assert.Equal(t, "150", res.Refund.RefundedAmount.String())
	assert.Equal(t, int64(50), res.PointsRestored)
	assert.Equal(t, int64(15), res.PointsRevoked)
	assert.Equal(t, model.BookingCancelled, res.Booking.Status)

	assert.Equal(t, model.BookingCancelled, f.bookings.status(b.ID))
	assert.Equal(t, 1, f.hotels.available(1))
	assert.Equal(t, int64(100), f.loyalty.balance(7))
	assert.Equal(t, queue.EventBookingCanceled, f.events.types()[2])
}

func TestFailedChargeCancelsAndReleases(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1, draws: []float64{0.99}})
	f.loyalty.seed(7, 100)
	ctx := context.Background()

	res, err := f.svc.CreateBooking(ctx, guest, stay(50))
	require.NoError(t, err)
	pay, err := f.svc.SettlePayment(ctx, guest, res.Booking.ID, PaymentDetails{Amount: res.Booking.TotalAmount, Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, pay.Status)
	assert.Equal(t, model.BookingCancelled, pay.BookingStatus)
	assert.Zero(t, pay.PointsAwarded)

	assert.Equal(t, model.BookingCancelled, f.bookings.status(res.Booking.ID))
	assert.Equal(t, 1, f.hotels.available(1))
	assert.Equal(t, int64(50), f.loyalty.balance(7), "redeemed points stay spent by default")
	assert.Equal(t, queue.EventPaymentFailed, f.events.types()[1])
}

func TestFailedChargeReversesRedemptionWhenConfigured(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1, draws: []float64{0.99}, reverseOnFailed: true})
	f.loyalty.seed(7, 100)
	ctx := context.Background()

	res, err := f.svc.CreateBooking(ctx, guest, stay(50))
	require.NoError(t, err)
	pay, err := f.svc.SettlePayment(ctx, guest, res.Booking.ID, PaymentDetails{Amount: res.Booking.TotalAmount, Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, int64(50), pay.PointsRestored)
	assert.Equal(t, int64(100), f.loyalty.balance(7))
}

func TestCancelWithDeclinedRefundLeavesBookingConfirmed(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1, draws: []float64{0.1, 0.99}})
	b := f.createPaid(t, 0)
	balance := f.loyalty.balance(7)

	_, err := f.svc.CancelBooking(context.Background(), guest, b.ID)
	require.Error(t, err)
	assert.Equal(t, KindExternal, KindOf(err))
	assert.Equal(t, model.BookingConfirmed, f.bookings.status(b.ID))
	assert.Equal(t, 0, f.hotels.available(1))
	assert.Equal(t, balance, f.loyalty.balance(7))

	p, err := f.payments.GetByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, p.Status)
}

func TestCreateWithNoRooms(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 0})
	f.loyalty.seed(7, 100)

	_, err := f.svc.CreateBooking(context.Background(), guest, stay(50))
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, 0, f.hotels.available(1))
	assert.Zero(t, f.bookings.count())
	assert.Equal(t, int64(100), f.loyalty.balance(7))
}

// staleLookup reports a room that the inventory no longer has, as when
// another booking takes it between validation and reservation.
type staleLookup struct{ h model.Hotel }

func (s staleLookup) GetHotel(context.Context, uint64) (*model.Hotel, error) {
	h := s.h
	return &h, nil
}

func TestLostRaceForRoomReversesRedemption(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 0})
	f.svc.hotels = staleLookup{h: testHotel(1, 1)}
	f.loyalty.seed(7, 100)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, guest, stay(50))
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, int64(100), f.loyalty.balance(7))
	assert.Equal(t, 0, f.hotels.available(1))

	sum, err := f.loyalty.SumDeltas(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(100), sum)
	hist, err := f.loyalty.History(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, model.PointsRedeemReversal, hist[0].Kind)
}

func TestPersistFailureUnwindsReservationAndRedemption(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 2})
	f.loyalty.seed(7, 100)
	f.bookings.failNext = errors.New("connection reset")

	_, err := f.svc.CreateBooking(context.Background(), guest, stay(50))
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, 2, f.hotels.available(1))
	assert.Equal(t, int64(100), f.loyalty.balance(7))
	assert.Empty(t, f.events.types())
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 5})
	f.loyalty.seed(7, 1000)
	ctx := context.Background()

	cases := map[string]struct {
		caller Caller
		req    CreateBookingRequest
		kind   Kind
	}{
		"reversed dates":   {guest, CreateBookingRequest{HotelID: 1, CheckIn: checkOut, CheckOut: checkIn, Guests: 1}, KindValidation},
		"same day":         {guest, CreateBookingRequest{HotelID: 1, CheckIn: checkIn, CheckOut: checkIn, Guests: 1}, KindValidation},
		"past check-in":    {guest, CreateBookingRequest{HotelID: 1, CheckIn: testNow.AddDate(0, 0, -1), CheckOut: checkOut, Guests: 1}, KindValidation},
		"no guests":        {guest, CreateBookingRequest{HotelID: 1, CheckIn: checkIn, CheckOut: checkOut}, KindValidation},
		"too many guests":  {guest, CreateBookingRequest{HotelID: 1, CheckIn: checkIn, CheckOut: checkOut, Guests: 5}, KindValidation},
		"too long":         {guest, CreateBookingRequest{HotelID: 1, CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 15), Guests: 1}, KindValidation},
		"negative points":  {guest, CreateBookingRequest{HotelID: 1, CheckIn: checkIn, CheckOut: checkOut, Guests: 1, RedeemPoints: -1}, KindValidation},
		"discount too big": {guest, CreateBookingRequest{HotelID: 1, CheckIn: checkIn, CheckOut: checkOut, Guests: 1, RedeemPoints: 201}, KindValidation},
		"unknown hotel":    {guest, CreateBookingRequest{HotelID: 9, CheckIn: checkIn, CheckOut: checkOut, Guests: 1}, KindNotFound},
		"anonymous":        {Caller{}, stay(0), KindUnauthorized},
		"guest walk-in":    {guest, CreateBookingRequest{HotelID: 1, CheckIn: checkIn, CheckOut: checkOut, Guests: 1, WalkIn: true}, KindUnauthorized},
		"walk-in redeem":   {manager, CreateBookingRequest{HotelID: 1, CheckIn: checkIn, CheckOut: checkOut, Guests: 1, WalkIn: true, RedeemPoints: 5}, KindValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(ctx, tc.caller, tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err), ReasonOf(err))
		})
	}
	assert.Equal(t, 5, f.hotels.available(1))
	assert.Equal(t, int64(1000), f.loyalty.balance(7))
}

func TestStaffWaivers(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 5})
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, guest, stay(0))
	require.NoError(t, err)
	_, err = f.svc.CreateBooking(ctx, guest, stay(0))
	assert.Equal(t, KindConflict, KindOf(err), "overlapping stay")

	long := CreateBookingRequest{HotelID: 1, CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 20), Guests: 1}
	_, err = f.svc.CreateBooking(ctx, manager, long)
	require.NoError(t, err)
	_, err = f.svc.CreateBooking(ctx, manager, long)
	require.NoError(t, err, "managers may overlap")

	walkIn, err := f.svc.CreateBooking(ctx, manager, CreateBookingRequest{HotelID: 1, CheckIn: checkIn, CheckOut: checkOut, Guests: 1, WalkIn: true})
	require.NoError(t, err)
	assert.Nil(t, walkIn.Booking.UserID)

	_, err = f.svc.SettlePayment(ctx, guest, walkIn.Booking.ID, PaymentDetails{Amount: walkIn.Booking.TotalAmount, Method: "cash"})
	assert.Equal(t, KindUnauthorized, KindOf(err))
	pay, err := f.svc.SettlePayment(ctx, manager, walkIn.Booking.ID, PaymentDetails{Amount: walkIn.Booking.TotalAmount, Method: "cash"})
	require.NoError(t, err)
	assert.Zero(t, pay.PointsAwarded)
	assert.Equal(t, 1, f.hotels.available(1))
}

func TestSettleValidation(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 2})
	ctx := context.Background()
	res, err := f.svc.CreateBooking(ctx, guest, stay(0))
	require.NoError(t, err)
	id := res.Booking.ID

	_, err = f.svc.SettlePayment(ctx, guest, id, PaymentDetails{Amount: decimal.NewFromInt(199), Method: "card"})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = f.svc.SettlePayment(ctx, other, id, PaymentDetails{Amount: decimal.NewFromInt(200), Method: "card"})
	assert.Equal(t, KindUnauthorized, KindOf(err))
	_, err = f.svc.SettlePayment(ctx, guest, 999, PaymentDetails{Amount: decimal.NewFromInt(200), Method: "card"})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.svc.SettlePayment(ctx, guest, id, PaymentDetails{Amount: decimal.NewFromInt(200), Method: "card"})
	require.NoError(t, err)
	_, err = f.svc.SettlePayment(ctx, guest, id, PaymentDetails{Amount: decimal.NewFromInt(200), Method: "card"})
	assert.Equal(t, KindConflict, KindOf(err), "already paid")
	assert.Equal(t, int64(20), f.loyalty.balance(7), "awarded once")
}

func TestSettleCancelledBooking(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1})
	ctx := context.Background()
	res, err := f.svc.CreateBooking(ctx, guest, stay(0))
	require.NoError(t, err)
	_, err = f.svc.CancelBooking(ctx, guest, res.Booking.ID)
	require.NoError(t, err)

	_, err = f.svc.SettlePayment(ctx, guest, res.Booking.ID, PaymentDetails{Amount: res.Booking.TotalAmount, Method: "card"})
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestCancelUnpaidBookingTwice(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1})
	f.loyalty.seed(7, 100)
	ctx := context.Background()
	res, err := f.svc.CreateBooking(ctx, guest, stay(30))
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, other, res.Booking.ID)
	assert.Equal(t, KindUnauthorized, KindOf(err))

	out, err := f.svc.CancelBooking(ctx, guest, res.Booking.ID)
	require.NoError(t, err)
	assert.Nil(t, out.Refund)
	assert.Equal(t, int64(30), out.PointsRestored)
	assert.Zero(t, out.PointsRevoked)

	_, err = f.svc.CancelBooking(ctx, guest, res.Booking.ID)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, 1, f.hotels.available(1))
	assert.Equal(t, int64(100), f.loyalty.balance(7))
}

func TestManagerCancelsGuestBooking(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1})
	b := f.createPaid(t, 0)

	res, err := f.svc.CancelBooking(context.Background(), manager, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.PointsRevoked)
	assert.Equal(t, int64(0), f.loyalty.balance(7))
}

func TestAwardFailureDoesNotFailSettlement(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1})
	f.loyalty.failAppend[model.PointsEarn] = errors.New("lock wait timeout")
	ctx := context.Background()
	res, err := f.svc.CreateBooking(ctx, guest, stay(0))
	require.NoError(t, err)

	pay, err := f.svc.SettlePayment(ctx, guest, res.Booking.ID, PaymentDetails{Amount: res.Booking.TotalAmount, Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, pay.Status)
	assert.Zero(t, pay.PointsAwarded)
}

func TestLoyaltyFailureDoesNotBlockCancellation(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1})
	f.loyalty.seed(7, 100)
	b := f.createPaid(t, 50)
	f.loyalty.failAppend[model.PointsRedeemReversal] = errors.New("deadlock")
	f.loyalty.failAppend[model.PointsEarnRevocation] = errors.New("deadlock")

	res, err := f.svc.CancelBooking(context.Background(), guest, b.ID)
	require.NoError(t, err)
	assert.Zero(t, res.PointsRestored)
	assert.Zero(t, res.PointsRevoked)
	assert.Equal(t, model.BookingCancelled, f.bookings.status(b.ID))
	assert.Equal(t, 1, f.hotels.available(1))
}

func TestConcurrentOperationOnSameBookingIsRejected(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1})
	ctx := context.Background()
	res, err := f.svc.CreateBooking(ctx, guest, stay(0))
	require.NoError(t, err)

	release, err := f.guard.Acquire(ctx, bookingKey(res.Booking.ID))
	require.NoError(t, err)
	_, err = f.svc.CancelBooking(ctx, guest, res.Booking.ID)
	assert.Equal(t, KindConflict, KindOf(err))
	release()

	_, err = f.svc.CancelBooking(ctx, guest, res.Booking.ID)
	require.NoError(t, err)
}

func TestConcurrentCreatesNeverOverbook(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 2})
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			if _, err := f.svc.CreateBooking(ctx, NewCaller(uid, model.RoleGuest), stay(0)); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(uint64(100 + i))
	}
	wg.Wait()
	assert.Equal(t, 2, created)
	assert.Equal(t, 0, f.hotels.available(1))
}

func TestGetAndListBookings(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 3})
	ctx := context.Background()
	b := f.createPaid(t, 0)

	view, err := f.svc.GetBooking(ctx, guest, b.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Payment)
	assert.Equal(t, model.PaymentCompleted, view.Payment.Status)

	_, err = f.svc.GetBooking(ctx, other, b.ID)
	assert.Equal(t, KindUnauthorized, KindOf(err))

	items, err := f.svc.ListBookings(ctx, guest)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	items, err = f.svc.ListBookings(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, items)
	_, err = f.svc.ListBookings(ctx, Caller{})
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestCallerCapabilities(t *testing.T) {
	assert.Equal(t, Capabilities{}, NewCaller(1, model.RoleGuest).Caps)
	assert.True(t, NewCaller(1, model.RoleAdmin).Caps.ManageAny)
	assert.True(t, NewCaller(1, model.RoleManager).Caps.WaiveOverlap)
	assert.Equal(t, Capabilities{}, NewCaller(1, "SOMETHING").Caps)
}

func TestCompleteDueOnlyFinishesPaidStays(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 3})
	ctx := context.Background()
	paid := f.createPaid(t, 0)
	unpaid, err := f.svc.CreateBooking(ctx, other, stay(0))
	require.NoError(t, err)

	n, err := f.svc.CompleteDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "stay has not ended yet")

	f.svc.SetClock(func() time.Time { return checkOut.Add(12 * time.Hour) })
	n, err = f.svc.CompleteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, model.BookingCompleted, f.bookings.status(paid.ID))
	assert.Equal(t, model.BookingConfirmed, f.bookings.status(unpaid.Booking.ID))

	_, err = f.svc.CancelBooking(ctx, guest, paid.ID)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestUnrecordedChargeOutcomeCancelsAndReleases(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1})
	f.payments.failResolve = 1
	ctx := context.Background()
	res, err := f.svc.CreateBooking(ctx, guest, stay(0))
	require.NoError(t, err)

	pay, err := f.svc.SettlePayment(ctx, guest, res.Booking.ID, PaymentDetails{Amount: res.Booking.TotalAmount, Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, pay.Status)
	assert.Equal(t, model.BookingCancelled, pay.BookingStatus)
	assert.Equal(t, model.BookingCancelled, f.bookings.status(res.Booking.ID))
	assert.Equal(t, 1, f.hotels.available(1))
	assert.Zero(t, f.loyalty.balance(7))
}

func TestStuckPendingPaymentExpires(t *testing.T) {
	settle := func(f *fixture, id uint64) (*PaymentResult, error) {
		return f.svc.SettlePayment(context.Background(), guest, id, PaymentDetails{Amount: decimal.NewFromInt(200), Method: "card"})
	}
	stuck := func(t *testing.T) (*fixture, uint64) {
		f := newFixture(t, fixtureOpts{rooms: 1})
		f.payments.failResolve = 2
		res, err := f.svc.CreateBooking(context.Background(), guest, stay(0))
		require.NoError(t, err)
		id := res.Booking.ID

		_, err = settle(f, id)
		require.Equal(t, KindInternal, KindOf(err))
		_, err = settle(f, id)
		assert.Equal(t, KindConflict, KindOf(err), "payment is still processing")
		_, err = f.svc.CancelBooking(context.Background(), manager, id)
		assert.Equal(t, KindConflict, KindOf(err))
		assert.Equal(t, 0, f.hotels.available(1))

		f.gwNow = f.gwNow.Add(2 * time.Minute)
		return f, id
	}

	t.Run("settle", func(t *testing.T) {
		f, id := stuck(t)
		pay, err := settle(f, id)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentFailed, pay.Status)
		assert.Equal(t, model.BookingCancelled, pay.BookingStatus)
		assert.Equal(t, model.BookingCancelled, f.bookings.status(id))
		assert.Equal(t, 1, f.hotels.available(1))

		_, err = settle(f, id)
		assert.Equal(t, KindConflict, KindOf(err))
		assert.Equal(t, 1, f.hotels.available(1), "released once")
	})
	t.Run("cancel", func(t *testing.T) {
		f, id := stuck(t)
		res, err := f.svc.CancelBooking(context.Background(), guest, id)
		require.NoError(t, err)
		assert.Nil(t, res.Refund)
		assert.Equal(t, model.BookingCancelled, f.bookings.status(id))
		assert.Equal(t, 1, f.hotels.available(1))

		p, err := f.payments.GetByBooking(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentFailed, p.Status)
	})
}

func TestFailedReleaseKeepsCancellationAndIsRetried(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1})
	ctx := context.Background()
	b := f.createPaid(t, 0)
	f.hotels.failRelease = errors.New("lock wait timeout")

	res, err := f.svc.CancelBooking(ctx, guest, b.ID)
	require.NoError(t, err, "the refund went through, so the cancellation stands")
	assert.True(t, res.ReleasePending)
	require.NotNil(t, res.Refund)
	assert.Equal(t, model.PaymentRefunded, res.Refund.Status)
	assert.Equal(t, model.BookingCancelled, f.bookings.status(b.ID))
	assert.Equal(t, 0, f.hotels.available(1))
	assert.True(t, f.bookings.releaseOwed(b.ID))

	n, err := f.svc.RetryReleases(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, f.bookings.releaseOwed(b.ID), "still owed after another failure")

	f.hotels.failRelease = nil
	n, err = f.svc.RetryReleases(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.hotels.available(1))
	assert.False(t, f.bookings.releaseOwed(b.ID))

	n, err = f.svc.RetryReleases(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, f.hotels.available(1))
}

func TestCompletionSweepWaitsForBookingGuard(t *testing.T) {
	f := newFixture(t, fixtureOpts{rooms: 1})
	ctx := context.Background()
	b := f.createPaid(t, 0)
	f.svc.SetClock(func() time.Time { return checkOut.Add(time.Hour) })

	release, err := f.guard.Acquire(ctx, bookingKey(b.ID))
	require.NoError(t, err)
	n, err := f.svc.CompleteDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, model.BookingConfirmed, f.bookings.status(b.ID))
	release()

	n, err = f.svc.CompleteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, model.BookingCompleted, f.bookings.status(b.ID))
}

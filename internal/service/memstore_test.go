package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/queue"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

// In-memory stores with the same conditional-update semantics as the
// MySQL repositories.

type memHotels struct {
	mu     sync.Mutex
	hotels map[uint64]*model.Hotel
	// failRelease makes IncrementAvailable fail, to exercise error paths.
	failRelease error
}

func newMemHotels(hs ...model.Hotel) *memHotels {
	m := &memHotels{hotels: map[uint64]*model.Hotel{}}
	for i := range hs {
		h := hs[i]
		m.hotels[h.ID] = &h
	}
	return m
}

func (m *memHotels) GetByID(_ context.Context, id uint64) (*model.Hotel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hotels[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (m *memHotels) DecrementAvailable(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hotels[id]
	if !ok {
		return repository.ErrNotFound
	}
	if h.AvailableRooms <= 0 {
		return repository.ErrNoRooms
	}
	h.AvailableRooms--
	return nil
}

func (m *memHotels) IncrementAvailable(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRelease != nil {
		return m.failRelease
	}
	h, ok := m.hotels[id]
	if !ok {
		return repository.ErrNotFound
	}
	if h.AvailableRooms < h.TotalRooms {
		h.AvailableRooms++
	}
	return nil
}

func (m *memHotels) available(id uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hotels[id].AvailableRooms
}

type memBookings struct {
	mu       sync.Mutex
	seq      uint64
	bookings map[uint64]*model.Booking
	failNext error
	paid     func(bookingID uint64) bool
	owed     map[uint64]bool // release_pending
}

func newMemBookings() *memBookings {
	return &memBookings{bookings: map[uint64]*model.Booking{}, owed: map[uint64]bool{}}
}

func (m *memBookings) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	m.seq++
	b.ID = m.seq
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memBookings) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range m.bookings {
		if b.OwnedBy(userID) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memBookings) HasOverlap(_ context.Context, userID, hotelID uint64, checkIn, checkOut time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.OwnedBy(userID) && b.HotelID == hotelID && b.Status == model.BookingConfirmed &&
			b.CheckIn.Before(checkOut) && b.CheckOut.After(checkIn) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memBookings) TransitionStatus(_ context.Context, id uint64, from, to model.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return repository.ErrStaleState
	}
	b.Status = to
	return nil
}

func (m *memBookings) ListDue(_ context.Context, now time.Time, limit int) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	for _, b := range m.bookings {
		if b.Status == model.BookingConfirmed && !b.CheckOut.After(now) && m.paid != nil && m.paid(b.ID) {
			ids = append(ids, b.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memBookings) MarkReleasePending(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != model.BookingCancelled {
		return repository.ErrStaleState
	}
	m.owed[id] = true
	return nil
}

func (m *memBookings) ClaimRelease(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.owed[id] {
		return repository.ErrStaleState
	}
	delete(m.owed, id)
	return nil
}

func (m *memBookings) ListReleasePending(_ context.Context, limit int) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for id := range m.owed {
		out = append(out, model.Booking{ID: id, HotelID: m.bookings[id].HotelID, Status: model.BookingCancelled})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memBookings) releaseOwed(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owed[id]
}

func (m *memBookings) status(id uint64) model.BookingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id].Status
}

func (m *memBookings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

type memPayments struct {
	mu       sync.Mutex
	seq      uint64
	payments map[uint64]*model.Payment
	// failResolve makes the next N Resolve calls fail, as on a lost
	// connection between writing the charge and recording its outcome.
	failResolve int
}

func newMemPayments() *memPayments { return &memPayments{payments: map[uint64]*model.Payment{}} }

func (m *memPayments) Create(_ context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.payments {
		if q.BookingID == p.BookingID {
			return repository.ErrConflict
		}
	}
	m.seq++
	p.ID = m.seq
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memPayments) completed(bookingID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.BookingID == bookingID && p.Status == model.PaymentCompleted {
			return true
		}
	}
	return false
}

func (m *memPayments) GetByID(_ context.Context, id uint64) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPayments) GetByBooking(_ context.Context, bookingID uint64) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memPayments) Resolve(_ context.Context, id uint64, status model.PaymentStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failResolve > 0 {
		m.failResolve--
		return errors.New("db blip")
	}
	p, ok := m.payments[id]
	if !ok || p.Status != model.PaymentPending {
		return repository.ErrStaleState
	}
	p.Status = status
	p.ProcessedAt = &at
	return nil
}

func (m *memPayments) MarkRefunded(_ context.Context, id uint64, amount decimal.Decimal, refundTxID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != model.PaymentCompleted || amount.GreaterThan(p.Amount) {
		return repository.ErrStaleState
	}
	p.Status = model.PaymentRefunded
	p.RefundedAmount = &amount
	p.RefundTransactionID = &refundTxID
	p.ProcessedAt = &at
	return nil
}

type memLoyalty struct {
	mu       sync.Mutex
	seq      uint64
	accounts map[uint64]*model.LoyaltyAccount
	txs      []model.PointsTransaction
	// failAppend makes Append fail for the given kind.
	failAppend map[model.PointsKind]error
}

func newMemLoyalty() *memLoyalty {
	return &memLoyalty{accounts: map[uint64]*model.LoyaltyAccount{}, failAppend: map[model.PointsKind]error{}}
}

func (m *memLoyalty) EnsureAccount(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[userID]; !ok {
		m.accounts[userID] = &model.LoyaltyAccount{UserID: userID}
	}
	return nil
}

func (m *memLoyalty) GetAccount(_ context.Context, userID uint64) (*model.LoyaltyAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memLoyalty) Append(_ context.Context, t *model.PointsTransaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failAppend[t.Kind]; err != nil {
		return 0, err
	}
	if t.BookingID != nil {
		for _, x := range m.txs {
			if x.BookingID != nil && *x.BookingID == *t.BookingID && x.Kind == t.Kind {
				return 0, repository.ErrConflict
			}
		}
	}
	a, ok := m.accounts[t.UserID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if t.Kind.RequiresCover() && a.PointsBalance+t.Delta < 0 {
		return 0, repository.ErrInsufficientPoints
	}
	a.PointsBalance += t.Delta
	if t.Kind.CountsAsEarned() && t.Delta > 0 {
		a.TotalEarned += t.Delta
	}
	m.seq++
	t.ID = m.seq
	t.CreatedAt = time.Now().UTC()
	m.txs = append(m.txs, *t)
	return a.PointsBalance, nil
}

func (m *memLoyalty) FindByBooking(_ context.Context, userID, bookingID uint64, kind model.PointsKind) (*model.PointsTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.txs {
		if x.UserID == userID && x.BookingID != nil && *x.BookingID == bookingID && x.Kind == kind {
			cp := x
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memLoyalty) LinkRef(_ context.Context, ref string, bookingID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.txs {
		x := &m.txs[i]
		if x.Ref != nil && *x.Ref == ref && x.BookingID == nil {
			id := bookingID
			x.BookingID = &id
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memLoyalty) History(_ context.Context, userID uint64, limit int) ([]model.PointsTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PointsTransaction, 0)
	for i := len(m.txs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.txs[i].UserID == userID {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}

func (m *memLoyalty) SumDeltas(_ context.Context, userID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, x := range m.txs {
		if x.UserID == userID {
			sum += x.Delta
		}
	}
	return sum, nil
}

func (m *memLoyalty) balance(userID uint64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[userID]; ok {
		return a.PointsBalance
	}
	return 0
}

func (m *memLoyalty) seed(userID uint64, points int64) {
	_ = m.EnsureAccount(context.Background(), userID)
	_, _ = m.Append(context.Background(), &model.PointsTransaction{UserID: userID, Kind: model.PointsEarn, Delta: points, Description: "seed"})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (r *recordingPublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) types() []queue.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// scriptedDraw returns the given values in order, then repeats the last.
func scriptedDraw(vals ...float64) func() float64 {
	var mu sync.Mutex
	i := 0
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		v := vals[i]
		if i < len(vals)-1 {
			i++
		}
		return v
	}
}

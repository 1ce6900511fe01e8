package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking/internal/config"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

// LoyaltyStore persists accounts and the append-only points ledger.
// Append must apply the transaction and its balance change atomically.
type LoyaltyStore interface {
	EnsureAccount(ctx context.Context, userID uint64) error
	GetAccount(ctx context.Context, userID uint64) (*model.LoyaltyAccount, error)
	Append(ctx context.Context, t *model.PointsTransaction) (int64, error)
	FindByBooking(ctx context.Context, userID, bookingID uint64, kind model.PointsKind) (*model.PointsTransaction, error)
	LinkRef(ctx context.Context, ref string, bookingID uint64) error
	History(ctx context.Context, userID uint64, limit int) ([]model.PointsTransaction, error)
	SumDeltas(ctx context.Context, userID uint64) (int64, error)
}

// Redemption is the result of spending points on a discount.  Ref
// identifies the ledger entry until it is linked to a booking.
type Redemption struct {
	Points   int64           `json:"points"`
	Discount decimal.Decimal `json:"discount"`
	Ref      string          `json:"-"`
}

// LoyaltyLedger credits points for paid bookings and converts points
// into discounts.  All arithmetic is decimal; fractional results round
// half away from zero.
type LoyaltyLedger struct {
	store LoyaltyStore
	cfg   config.LoyaltyConfig
	log   *log.Logger
}

func NewLoyaltyLedger(store LoyaltyStore, cfg config.LoyaltyConfig) *LoyaltyLedger {
	return &LoyaltyLedger{store: store, cfg: cfg, log: log.New("loyalty")}
}

var hundred = decimal.NewFromInt(100)

// PointsFor returns the points earned by paying amount.
func (l *LoyaltyLedger) PointsFor(paid decimal.Decimal) int64 {
	if !paid.IsPositive() {
		return 0
	}
	pts := paid.Mul(l.cfg.EarnPercent).Div(hundred).Round(0).IntPart()
	if l.cfg.MinAward > 0 && pts < l.cfg.MinAward {
		pts = l.cfg.MinAward
	}
	if l.cfg.MaxAward > 0 && pts > l.cfg.MaxAward {
		pts = l.cfg.MaxAward
	}
	return pts
}

// Quote returns the discount granted for redeeming points.
func (l *LoyaltyLedger) Quote(points int64) decimal.Decimal {
	if points <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(points).Mul(l.cfg.PointValue).Round(0)
}

// Award credits the points earned by a paid booking.  A second award for
// the same booking is a no-op returning zero.
func (l *LoyaltyLedger) Award(ctx context.Context, userID, bookingID uint64, paid decimal.Decimal) (int64, error) {
	if err := l.store.EnsureAccount(ctx, userID); err != nil {
		return 0, internal("ensure loyalty account", err)
	}
	if _, err := l.store.FindByBooking(ctx, userID, bookingID, model.PointsEarn); err == nil {
		return 0, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return 0, internal("find earn transaction", err)
	}

	pts := l.PointsFor(paid)
	if pts == 0 {
		return 0, nil
	}
	_, err := l.store.Append(ctx, &model.PointsTransaction{
		UserID:      userID,
		BookingID:   &bookingID,
		Kind:        model.PointsEarn,
		Delta:       pts,
		Description: fmt.Sprintf("earned for booking #%d (paid %s)", bookingID, paid.StringFixed(2)),
	})
	if errors.Is(err, repository.ErrConflict) {
		return 0, nil
	}
	if err != nil {
		return 0, internal("append earn transaction", err)
	}
	l.log.Infoj(log.JSON{"user_id": userID, "booking_id": bookingID, "step": "award", "points": pts})
	return pts, nil
}

// Redeem deducts points immediately and returns the discount they buy.
// The ledger entry is not tied to a booking yet; LinkRedemption does that
// once the booking row exists.
func (l *LoyaltyLedger) Redeem(ctx context.Context, userID uint64, points int64) (Redemption, error) {
	if points <= 0 {
		return Redemption{}, validation("points to redeem must be positive")
	}
	if err := l.store.EnsureAccount(ctx, userID); err != nil {
		return Redemption{}, internal("ensure loyalty account", err)
	}
	ref := "RDM-" + uuid.NewString()
	_, err := l.store.Append(ctx, &model.PointsTransaction{
		UserID:      userID,
		Kind:        model.PointsRedeem,
		Delta:       -points,
		Description: fmt.Sprintf("redeemed %d points", points),
		Ref:         &ref,
	})
	if errors.Is(err, repository.ErrInsufficientPoints) {
		return Redemption{}, unavailable("insufficient points", err)
	}
	if err != nil {
		return Redemption{}, internal("append redeem transaction", err)
	}
	return Redemption{Points: points, Discount: l.Quote(points), Ref: ref}, nil
}

// LinkRedemption attaches the booking to the redemption entry ref.
func (l *LoyaltyLedger) LinkRedemption(ctx context.Context, ref string, bookingID uint64) error {
	if err := l.store.LinkRef(ctx, ref, bookingID); err != nil {
		return internal("link redemption", err)
	}
	return nil
}

// ReverseRedemption gives back points redeemed for a booking.  With a
// non-zero bookingID the call is idempotent per booking; a zero bookingID
// reverses a redemption whose booking was never created.
func (l *LoyaltyLedger) ReverseRedemption(ctx context.Context, userID, bookingID uint64, points int64) (int64, error) {
	if points <= 0 {
		return 0, nil
	}
	t := &model.PointsTransaction{
		UserID:      userID,
		Kind:        model.PointsRedeemReversal,
		Delta:       points,
		Description: fmt.Sprintf("returned %d redeemed points", points),
	}
	if bookingID != 0 {
		if _, err := l.store.FindByBooking(ctx, userID, bookingID, model.PointsRedeemReversal); err == nil {
			return 0, nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return 0, internal("find reversal", err)
		}
		t.BookingID = &bookingID
		t.Description = fmt.Sprintf("returned %d points redeemed for booking #%d", points, bookingID)
	}
	_, err := l.store.Append(ctx, t)
	if errors.Is(err, repository.ErrConflict) {
		return 0, nil
	}
	if err != nil {
		return 0, internal("append reversal", err)
	}
	l.log.Infoj(log.JSON{"user_id": userID, "booking_id": bookingID, "step": "reverse_redemption", "points": points})
	return points, nil
}

// RevokeEarned takes back the points awarded for a booking.  The balance
// may go negative when those points were already spent.
func (l *LoyaltyLedger) RevokeEarned(ctx context.Context, userID, bookingID uint64) (int64, error) {
	earn, err := l.store.FindByBooking(ctx, userID, bookingID, model.PointsEarn)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, internal("find earn transaction", err)
	}
	if earn.Delta <= 0 {
		return 0, nil
	}
	if _, err := l.store.FindByBooking(ctx, userID, bookingID, model.PointsEarnRevocation); err == nil {
		return 0, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return 0, internal("find revocation", err)
	}

	_, err = l.store.Append(ctx, &model.PointsTransaction{
		UserID:      userID,
		BookingID:   &bookingID,
		Kind:        model.PointsEarnRevocation,
		Delta:       -earn.Delta,
		Description: fmt.Sprintf("revoked points earned for booking #%d", bookingID),
	})
	if errors.Is(err, repository.ErrConflict) {
		return 0, nil
	}
	if err != nil {
		return 0, internal("append revocation", err)
	}
	l.log.Infoj(log.JSON{"user_id": userID, "booking_id": bookingID, "step": "revoke_earned", "points": earn.Delta})
	return earn.Delta, nil
}

// Account returns the user's account, creating it on first use.
func (l *LoyaltyLedger) Account(ctx context.Context, userID uint64) (*model.LoyaltyAccount, error) {
	if err := l.store.EnsureAccount(ctx, userID); err != nil {
		return nil, internal("ensure loyalty account", err)
	}
	a, err := l.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, internal("load loyalty account", err)
	}
	return a, nil
}

// History lists the user's most recent points transactions.
func (l *LoyaltyLedger) History(ctx context.Context, userID uint64, limit int) ([]model.PointsTransaction, error) {
	items, err := l.store.History(ctx, userID, limit)
	if err != nil {
		return nil, internal("load points history", err)
	}
	return items, nil
}

// Reconcile compares the stored balance with the sum of ledger deltas.
func (l *LoyaltyLedger) Reconcile(ctx context.Context, userID uint64) (balance, sum int64, err error) {
	a, err := l.Account(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	sum, err = l.store.SumDeltas(ctx, userID)
	if err != nil {
		return 0, 0, internal("sum points", err)
	}
	if a.PointsBalance != sum {
		l.log.Errorj(log.JSON{"user_id": userID, "balance": a.PointsBalance, "ledger_sum": sum, "step": "reconcile"})
	}
	return a.PointsBalance, sum, nil
}

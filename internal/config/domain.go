package config

import (
    "time"

    "github.com/shopspring/decimal"
)

// LoyaltyConfig controls how points are earned and what they are worth.
//
// EarnPercent is the share of the paid amount credited as points.
// MinAward/MaxAward bound a single award (0 disables the bound).
// PointValue is the currency value of one redeemed point.
// ReverseOnPaymentFailure gives redeemed points back when the charge for
// a booking is declined; off by default (points spent are spent).
type LoyaltyConfig struct {
    EarnPercent             decimal.Decimal
    MinAward                int64
    MaxAward                int64
    PointValue              decimal.Decimal
    ReverseOnPaymentFailure bool
}

// PaymentConfig tunes the simulated payment gateway.  A payment still
// PENDING after PendingTimeout is treated as abandoned and settled FAILED.
type PaymentConfig struct {
    SuccessRate       float64
    RefundSuccessRate float64
    Delay             time.Duration
    PendingTimeout    time.Duration
}

// BookingConfig bounds booking requests and schedules the sweeps.
// ReleaseEvery is how often rooms whose release failed are retried.
type BookingConfig struct {
    MaxGuests     int
    MaxNights     int
    GuardTTL      time.Duration
    CompleteEvery time.Duration
    ReleaseEvery  time.Duration
}

func LoadLoyaltyConfig() LoyaltyConfig {
    cfg := LoyaltyConfig{
        EarnPercent:             envDecimal("LOYALTY_EARN_PERCENT", decimal.NewFromInt(10)),
        MinAward:                envInt64("LOYALTY_MIN_AWARD", 0),
        MaxAward:                envInt64("LOYALTY_MAX_AWARD", 0),
        PointValue:              envDecimal("LOYALTY_POINT_VALUE", decimal.NewFromInt(1)),
        ReverseOnPaymentFailure: envBool("LOYALTY_REVERSE_ON_PAYMENT_FAILURE", false),
    }
    if cfg.EarnPercent.IsNegative() { cfg.EarnPercent = decimal.Zero }
    if !cfg.PointValue.IsPositive() { cfg.PointValue = decimal.NewFromInt(1) }
    if cfg.MinAward < 0 { cfg.MinAward = 0 }
    if cfg.MaxAward < 0 { cfg.MaxAward = 0 }
    return cfg
}

func LoadPaymentConfig() PaymentConfig {
    cfg := PaymentConfig{
        SuccessRate:       envFloat("PAYMENT_SUCCESS_RATE", 0.90),
        RefundSuccessRate: envFloat("PAYMENT_REFUND_SUCCESS_RATE", 0.95),
        Delay:             envDur("PAYMENT_DELAY", 500*time.Millisecond),
        PendingTimeout:    envDur("PAYMENT_PENDING_TIMEOUT", time.Minute),
    }
    cfg.SuccessRate = clamp01(cfg.SuccessRate)
    cfg.RefundSuccessRate = clamp01(cfg.RefundSuccessRate)
    if cfg.Delay < 0 { cfg.Delay = 0 }
    // never expire a charge that may still be inside its own delay
    if minTimeout := cfg.Delay + pendingMargin; cfg.PendingTimeout < minTimeout { cfg.PendingTimeout = minTimeout }
    return cfg
}

func LoadBookingConfig() BookingConfig {
    cfg := BookingConfig{
        MaxGuests:     envInt("BOOKING_MAX_GUESTS", 10),
        MaxNights:     envInt("BOOKING_MAX_NIGHTS", 30),
        GuardTTL:      envDur("BOOKING_GUARD_TTL", 30*time.Second),
        CompleteEvery: envDur("BOOKING_COMPLETE_EVERY", time.Hour),
        ReleaseEvery:  envDur("BOOKING_RELEASE_RETRY_EVERY", time.Minute),
    }
    if cfg.MaxGuests < 1 { cfg.MaxGuests = 1 }
    if cfg.GuardTTL <= 0 { cfg.GuardTTL = 30 * time.Second }
    return cfg
}

const pendingMargin = 5 * time.Second

func clamp01(f float64) float64 {
    if f < 0 { return 0 }
    if f > 1 { return 1 }
    return f
}

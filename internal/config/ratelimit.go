package config

import (
    "fmt"
    "strings"
    "time"
)

// Rate limit scopes.  ScopeAPI covers every authenticated /v1 route;
// ScopeBooking is stacked on the routes that create bookings, charge or
// refund, where each call reserves a room or moves money.
const (
    ScopeAPI     = "api"
    ScopeBooking = "booking"
)

// RateLimitConfig configures one Redis token bucket.
type RateLimitConfig struct {
    Scope          string
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// bucketDefaults are the per-scope defaults.  The booking bucket allows a
// short burst and then about one mutation every six seconds per user.
var bucketDefaults = map[string]RateLimitConfig{
    ScopeAPI:     {Capacity: 60, RefillTokens: 1, RefillInterval: time.Second, KeyStrategy: "ip_user_route"},
    ScopeBooking: {Capacity: 5, RefillTokens: 1, RefillInterval: 6 * time.Second, KeyStrategy: "user"},
}

// LoadRateLimitConfig reads RATE_LIMIT_<SCOPE>_* variables, e.g.
// RATE_LIMIT_BOOKING_CAPACITY.  RATE_LIMIT_ENABLED and RATE_LIMIT_DEBUG
// apply to every scope.
func LoadRateLimitConfig(scope string) RateLimitConfig {
    def, ok := bucketDefaults[scope]
    if !ok {
        def = bucketDefaults[ScopeAPI]
    }
    env := "RATE_LIMIT_" + strings.ToUpper(scope) + "_"
    cfg := RateLimitConfig{
        Scope:          scope,
        Enabled:        envBool("RATE_LIMIT_ENABLED", true) && envBool(env+"ENABLED", true),
        Capacity:       envInt(env+"CAPACITY", def.Capacity),
        RefillTokens:   envInt(env+"REFILL_TOKENS", def.RefillTokens),
        RefillInterval: envDur(env+"REFILL_INTERVAL", def.RefillInterval),
        TTL:            envDur(env+"TTL", 10*time.Minute),
        KeyStrategy:    envStr(env+"KEY_STRATEGY", def.KeyStrategy),
        Prefix:         fmt.Sprintf("%s:%s", envStr("RATE_LIMIT_PREFIX", "rl"), scope),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if cfg.Capacity < 1 { cfg.Capacity = 1 }
    if cfg.RefillTokens < 1 { cfg.RefillTokens = 1 }
    if cfg.RefillInterval <= 0 { cfg.RefillInterval = time.Second }
    if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL { cfg.TTL = minTTL }
    return cfg
}

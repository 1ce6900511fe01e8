package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/gommon/log"
    "github.com/shopspring/decimal"
)

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

func envStr(k, d string) string { if v := strings.TrimSpace(os.Getenv(k)); v != "" { return v }; return d }

func envBool(k string, d bool) bool {
    switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}

func envInt64(k string, d int64) int64 {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.ParseInt(v, 10, 64); err == nil { return n }
    return d
}

func envFloat(k string, d float64) float64 {
    v := os.Getenv(k); if v == "" { return d }
    if f, err := strconv.ParseFloat(v, 64); err == nil { return f }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}

// envDecimal parses a decimal value such as "10" or "0.5".  Money and
// percentages never go through float64.
func envDecimal(k string, d decimal.Decimal) decimal.Decimal {
    v := strings.TrimSpace(os.Getenv(k)); if v == "" { return d }
    if dec, err := decimal.NewFromString(v); err == nil { return dec }
    return d
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}

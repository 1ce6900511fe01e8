package config // package config loads application configuration from environment variables

import "os"

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; the nested sections carry the booking workflow
// settings.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time-to-live in minutes
    RefreshTTLDays int    // refresh token time-to-live in days
    BcryptCost     int    // bcrypt cost for password hashing
    RabbitURL      string // AMQP URL; empty disables event publishing
    BookingLogDir  string // directory the booking event consumer writes to

    Loyalty LoyaltyConfig
    Payment PaymentConfig
    Booking BookingConfig
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),
        Port:           must("APP_PORT"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"),
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:     mustInt("BCRYPT_COST"),
        RabbitURL:      envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
        BookingLogDir:  envStr("BOOKING_LOG_DIR", "logs"),
        Loyalty:        LoadLoyaltyConfig(),
        Payment:        LoadPaymentConfig(),
        Booking:        LoadBookingConfig(),
    }
}

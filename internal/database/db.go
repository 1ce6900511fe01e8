// Package database opens the MySQL pool and bootstraps the schema the
// booking workflow runs against.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Settings is the subset of the process configuration needed to connect.
type Settings struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

// DSN renders the driver connection string.  DATETIME and DATE columns
// are parsed into time.Time in UTC.
func (s Settings) DSN() string {
	c := mysql.NewConfig()
	c.User = s.User
	c.Passwd = s.Pass
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%s", s.Host, s.Port)
	c.DBName = s.Name
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(s Settings) (*sql.DB, error) {
	db, err := sql.Open("mysql", s.DSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates any missing tables.  Statements are idempotent, so it
// runs on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(16)  NOT NULL DEFAULT 'GUEST',
		is_active     TINYINT(1)   NOT NULL DEFAULT 1,
		created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64)        NOT NULL,
		expires_at DATETIME        NOT NULL,
		revoked_at DATETIME        NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_hash (token_hash),
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS hotels (
		id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name            VARCHAR(255)  NOT NULL,
		city            VARCHAR(128)  NOT NULL,
		nightly_rate    DECIMAL(12,2) NOT NULL,
		total_rooms     INT           NOT NULL,
		available_rooms INT           NOT NULL,
		created_at      DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT chk_hotels_rooms CHECK (available_rooms >= 0 AND available_rooms <= total_rooms)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		hotel_id        BIGINT UNSIGNED NOT NULL,
		user_id         BIGINT UNSIGNED NULL,
		check_in        DATE            NOT NULL,
		check_out       DATE            NOT NULL,
		guests          INT             NOT NULL,
		total_amount    DECIMAL(12,2)   NOT NULL,
		points_redeemed BIGINT          NULL,
		discount_amount DECIMAL(12,2)   NULL,
		redemption_ref  VARCHAR(64)     NULL,
		status          VARCHAR(16)     NOT NULL DEFAULT 'CONFIRMED',
		release_pending TINYINT(1)      NOT NULL DEFAULT 0,
		created_at      DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_bookings_user_hotel (user_id, hotel_id, status),
		KEY idx_bookings_status_checkout (status, check_out),
		KEY idx_bookings_release_pending (release_pending),
		CONSTRAINT fk_bookings_hotel FOREIGN KEY (hotel_id) REFERENCES hotels(id),
		CONSTRAINT chk_bookings_dates CHECK (check_in < check_out),
		CONSTRAINT chk_bookings_total CHECK (total_amount >= 0)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS payments (
		id                    BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		booking_id            BIGINT UNSIGNED NOT NULL,
		amount                DECIMAL(12,2)   NOT NULL,
		refunded_amount       DECIMAL(12,2)   NULL,
		method                VARCHAR(32)     NOT NULL,
		status                VARCHAR(16)     NOT NULL,
		transaction_id        VARCHAR(64)     NOT NULL,
		refund_transaction_id VARCHAR(64)     NULL,
		processed_at          DATETIME        NULL,
		created_at            DATETIME        NOT NULL,
		UNIQUE KEY uq_payments_booking (booking_id),
		UNIQUE KEY uq_payments_txn (transaction_id),
		CONSTRAINT fk_payments_booking FOREIGN KEY (booking_id) REFERENCES bookings(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS loyalty_accounts (
		user_id        BIGINT UNSIGNED PRIMARY KEY,
		points_balance BIGINT   NOT NULL DEFAULT 0,
		total_earned   BIGINT   NOT NULL DEFAULT 0,
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS points_transactions (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id     BIGINT UNSIGNED NOT NULL,
		booking_id  BIGINT UNSIGNED NULL,
		kind        VARCHAR(24)     NOT NULL,
		delta       BIGINT          NOT NULL,
		description VARCHAR(255)    NOT NULL,
		ref         VARCHAR(64)     NULL,
		created_at  DATETIME        NOT NULL,
		UNIQUE KEY uq_points_booking_kind (booking_id, kind),
		KEY idx_points_user (user_id, id),
		KEY idx_points_ref (ref),
		CONSTRAINT fk_points_account FOREIGN KEY (user_id) REFERENCES loyalty_accounts(user_id)
	) ENGINE=InnoDB`,
}

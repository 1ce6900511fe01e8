// Package repository defines the MySQL data access layer and the error
// values shared across repositories.  These sentinel values allow higher
// layers to distinguish between different failure scenarios without
// inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write collides with an existing row,
// for example a second EARN transaction for the same booking.
var ErrConflict = errors.New("conflict")

// ErrNoRooms is returned by the conditional inventory decrement when the
// hotel exists but has no available rooms left.
var ErrNoRooms = errors.New("no rooms available")

// ErrInsufficientPoints is returned when a redemption would take the
// loyalty balance below zero.
var ErrInsufficientPoints = errors.New("insufficient points")

// ErrStaleState is returned by compare-and-set updates when the row is no
// longer in the expected state.
var ErrStaleState = errors.New("stale state")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// isDuplicateKey reports whether err is MySQL error 1062 (duplicate entry).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

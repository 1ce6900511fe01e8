package service

import "github.com/iliyamo/hotel-booking/internal/model"

// Capabilities are the privileges a caller holds.  Business rules read
// these flags and never the role name.
type Capabilities struct {
	WaiveOverlap   bool // may hold overlapping stays at one hotel
	WaiveStayLimit bool // may exceed the maximum number of nights
	ManageAny      bool // may act on bookings owned by others, and book for walk-in guests
}

// Caller identifies who is invoking a booking operation.  A zero UserID
// means an unauthenticated caller.
type Caller struct {
	UserID uint64
	Role   string
	Caps   Capabilities
}

// NewCaller derives capabilities from the role once, at the boundary.
func NewCaller(userID uint64, role string) Caller {
	c := Caller{UserID: userID, Role: role}
	switch role {
	case model.RoleManager, model.RoleAdmin:
		c.Caps = Capabilities{WaiveOverlap: true, WaiveStayLimit: true, ManageAny: true}
	}
	return c
}

func (c Caller) authenticated() bool { return c.UserID != 0 }

// canAccess reports whether the caller may read or change b.
func (c Caller) canAccess(b *model.Booking) bool {
	return c.Caps.ManageAny || b.OwnedBy(c.UserID)
}

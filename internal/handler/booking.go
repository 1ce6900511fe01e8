package handler

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/hotel-booking/internal/model"
    "github.com/iliyamo/hotel-booking/internal/service"
)

// BookingAPI is the orchestrator surface exposed over HTTP.
type BookingAPI interface {
	CreateBooking(ctx context.Context, caller service.Caller, req service.CreateBookingRequest) (*service.BookingResult, error)
	SettlePayment(ctx context.Context, caller service.Caller, bookingID uint64, pd service.PaymentDetails) (*service.PaymentResult, error)
	CancelBooking(ctx context.Context, caller service.Caller, bookingID uint64) (*service.CancelResult, error)
	GetBooking(ctx context.Context, caller service.Caller, bookingID uint64) (*service.BookingView, error)
	ListBookings(ctx context.Context, caller service.Caller) ([]model.Booking, error)
}

// BookingHandler maps booking endpoints onto the orchestrator.
type BookingHandler struct {
	Bookings BookingAPI
	Timeout  time.Duration
}

func NewBookingHandler(b BookingAPI) *BookingHandler {
	// Payment simulation sleeps up to a few seconds, so the budget is wider
	// than the 5s used for plain queries.
	return &BookingHandler{Bookings: b, Timeout: 15 * time.Second}
}

type createBookingReq struct {
	HotelID      uint64 `json:"hotel_id"`
	CheckIn      string `json:"check_in"`  // YYYY-MM-DD
	CheckOut     string `json:"check_out"` // YYYY-MM-DD
	Guests       int    `json:"guests"`
	RedeemPoints int64  `json:"redeem_points"`
	WalkIn       bool   `json:"walk_in"`
}

type payReq struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

// CreateBooking handles POST /v1/bookings.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	checkIn, err := time.Parse(dateLayout, strings.TrimSpace(req.CheckIn))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_in must be YYYY-MM-DD"})
	}
	checkOut, err := time.Parse(dateLayout, strings.TrimSpace(req.CheckOut))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "check_out must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	res, err := h.Bookings.CreateBooking(ctx, callerFrom(c), service.CreateBookingRequest{
		HotelID:      req.HotelID,
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		Guests:       req.Guests,
		RedeemPoints: req.RedeemPoints,
		WalkIn:       req.WalkIn,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// GetBooking handles GET /v1/bookings/:id.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	view, err := h.Bookings.GetBooking(ctx, callerFrom(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// ListMyBookings handles GET /v1/my-bookings.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Bookings.ListBookings(ctx, callerFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	if items == nil {
		items = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Pay handles POST /v1/bookings/:id/payment.  A declined charge answers
// 402 with the FAILED payment in the body.
func (h *BookingHandler) Pay(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req payReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	res, err := h.Bookings.SettlePayment(ctx, callerFrom(c), id, service.PaymentDetails{
		Amount: req.Amount,
		Method: req.Method,
	})
	if err != nil {
		return writeError(c, err)
	}
	if res.Status == model.PaymentFailed {
		return c.JSON(http.StatusPaymentRequired, res)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	res, err := h.Bookings.CancelBooking(ctx, callerFrom(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

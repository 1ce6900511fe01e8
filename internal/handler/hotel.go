package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/hotel-booking/internal/model"
    "github.com/iliyamo/hotel-booking/internal/repository"
)

// HotelStore is what the hotel endpoints need from persistence.
type HotelStore interface {
	Create(ctx context.Context, h *model.Hotel) error
	GetByID(ctx context.Context, id uint64) (*model.Hotel, error)
}

// HotelHandler serves hotel creation (managers) and public lookup.
type HotelHandler struct {
	Hotels HotelStore
}

func NewHotelHandler(h HotelStore) *HotelHandler { return &HotelHandler{Hotels: h} }

type createHotelReq struct {
	Name        string          `json:"name"`
	City        string          `json:"city"`
	NightlyRate decimal.Decimal `json:"nightly_rate"`
	TotalRooms  int             `json:"total_rooms"`
}

// CreateHotel handles POST /v1/hotels.
func (h *HotelHandler) CreateHotel(c echo.Context) error {
	var req createHotelReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if !req.NightlyRate.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nightly_rate must be positive"})
	}
	if req.TotalRooms <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_rooms must be positive"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hotel := &model.Hotel{
		Name:        req.Name,
		City:        strings.TrimSpace(req.City),
		NightlyRate: req.NightlyRate.Round(2),
		TotalRooms:  req.TotalRooms,
	}
	if err := h.Hotels.Create(ctx, hotel); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create hotel failed"})
	}
	return c.JSON(http.StatusCreated, hotel)
}

// GetHotel handles GET /v1/hotels/:id.  The response includes the live
// room counter.
func (h *HotelHandler) GetHotel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hotel id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hotel, err := h.Hotels.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hotel not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, hotel)
}

package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/hotel-booking/internal/model"
    "github.com/iliyamo/hotel-booking/internal/service"
)

// RoomHandler exposes read-only room endpoints to guests.
type RoomHandler struct {
    Svc *service.BookingService
    Log *logrus.Entry
}

func NewRoomHandler(svc *service.BookingService, log *logrus.Entry) *RoomHandler {
    if svc == nil {
        panic("nil service passed to NewRoomHandler")
    }
    if log == nil {
        log = logrus.NewEntry(logrus.StandardLogger())
    }
    return &RoomHandler{Svc: svc, Log: log}
}

type quoteQuery struct {
    Type     string `query:"type" validate:"omitempty,oneof=hourly overnight daily"`
    CheckIn  string `query:"checkIn" validate:"required"`
    CheckOut string `query:"checkOut"`
    Duration int    `query:"duration" validate:"gte=0,lte=720"`
}

type availabilityQuery struct {
    CheckIn  string `query:"checkIn" validate:"required"`
    CheckOut string `query:"checkOut" validate:"required"`
}

// GetRoom handles GET /v1/rooms/:id.
func (h *RoomHandler) GetRoom(c echo.Context) error {
    room, err := h.Svc.GetRoom(c.Request().Context(), c.Param("id"))
    if err != nil {
        return fail(c, h.Log, err, "database error")
    }
    return c.JSON(http.StatusOK, room)
}

// Quote handles GET /v1/rooms/:id/quote.  type defaults to hourly.
func (h *RoomHandler) Quote(c echo.Context) error {
    var q quoteQuery
    if err := c.Bind(&q); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid query"})
    }
    if err := c.Validate(&q); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    mode := model.BookingType(q.Type)
    if mode == "" {
        mode = model.BookingHourly
    }
    out, err := h.Svc.Quote(c.Request().Context(), c.Param("id"), mode, q.CheckIn, q.CheckOut, q.Duration)
    if err != nil {
        return fail(c, h.Log, err, "failed to quote")
    }
    return c.JSON(http.StatusOK, out)
}

// Availability handles GET /v1/rooms/:id/availability.
func (h *RoomHandler) Availability(c echo.Context) error {
    var q availabilityQuery
    if err := c.Bind(&q); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid query"})
    }
    if err := c.Validate(&q); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    out, err := h.Svc.Availability(c.Request().Context(), c.Param("id"), q.CheckIn, q.CheckOut)
    if err != nil {
        return fail(c, h.Log, err, "failed to check availability")
    }
    return c.JSON(http.StatusOK, out)
}

package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/hotel-booking/internal/middleware"
    "github.com/iliyamo/hotel-booking/internal/model"
    "github.com/iliyamo/hotel-booking/internal/service"
)

// StaffHandler serves the front-desk endpoints under /v1/staff.  All
// methods assume JWTAuth and RequireRole already ran.
type StaffHandler struct {
    Svc *service.BookingService
    Log *logrus.Entry
}

func NewStaffHandler(svc *service.BookingService, log *logrus.Entry) *StaffHandler {
    if svc == nil {
        panic("nil service passed to NewStaffHandler")
    }
    if log == nil {
        log = logrus.NewEntry(logrus.StandardLogger())
    }
    return &StaffHandler{Svc: svc, Log: log}
}

type statusBody struct {
    Status string `json:"status" validate:"required,oneof=pending confirmed cancelled completed"`
}

type rangeQuery struct {
    From string `query:"from" validate:"required"`
    To   string `query:"to" validate:"required"`
}

// CreateReservation handles POST /v1/staff/reservations.  It returns 201
// with the reservation and, when the room has a price, the order to pay.
func (h *StaffHandler) CreateReservation(c echo.Context) error {
    var in service.StaffReservationInput
    if err := c.Bind(&in); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if err := c.Validate(&in); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    out, err := h.Svc.CreateReservation(c.Request().Context(), in)
    if err != nil {
        return fail(c, h.Log, err, "failed to create reservation")
    }
    h.Log.WithFields(logrus.Fields{
        "reservation_id": out.Reservation.ID,
        "staff_id":       middleware.StaffID(c),
    }).Info("staff reservation created")
    return c.JSON(http.StatusCreated, out)
}

// UpdateStatus handles PATCH /v1/staff/reservations/:id/status.
func (h *StaffHandler) UpdateStatus(c echo.Context) error {
    var body statusBody
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if err := c.Validate(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    res, err := h.Svc.UpdateReservationStatus(c.Request().Context(), c.Param("id"), model.ReservationStatus(body.Status))
    if err != nil {
        return fail(c, h.Log, err, "failed to update reservation")
    }
    return c.JSON(http.StatusOK, res)
}

// ListRoomReservations handles GET /v1/staff/rooms/:id/reservations.
func (h *StaffHandler) ListRoomReservations(c echo.Context) error {
    var q rangeQuery
    if err := c.Bind(&q); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid query"})
    }
    if err := c.Validate(&q); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    list, err := h.Svc.ListRoomReservations(c.Request().Context(), c.Param("id"), q.From, q.To)
    if err != nil {
        return fail(c, h.Log, err, "failed to list reservations")
    }
    if list == nil {
        list = []model.Reservation{}
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

// GetOrder handles GET /v1/staff/orders/:id.
func (h *StaffHandler) GetOrder(c echo.Context) error {
    o, err := h.Svc.GetOrder(c.Request().Context(), c.Param("id"))
    if err != nil {
        return fail(c, h.Log, err, "database error")
    }
    return c.JSON(http.StatusOK, o)
}

// ExpireOrders handles POST /v1/staff/orders/expire and runs one sweep.
func (h *StaffHandler) ExpireOrders(c echo.Context) error {
    n, err := h.Svc.ExpireStale(c.Request().Context())
    if err != nil {
        return fail(c, h.Log, err, "failed to expire orders")
    }
    return c.JSON(http.StatusOK, echo.Map{"expired": n})
}

package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/hotel-booking/internal/service"
)

// clientErrors are service errors whose message is safe to return as is.
var clientErrors = map[error]int{
    service.ErrEmptyCart:           http.StatusBadRequest,
    service.ErrInvalidCustomer:     http.StatusBadRequest,
    service.ErrInvalidDates:        http.StatusBadRequest,
    service.ErrInvalidAmount:       http.StatusBadRequest,
    service.ErrInvalidBookingType:  http.StatusBadRequest,
    service.ErrUnavailable:         http.StatusBadRequest,
    service.ErrMissingOrderID:      http.StatusBadRequest,
    service.ErrInvalidWebhook:      http.StatusBadRequest,
    service.ErrPriceMismatch:       http.StatusConflict,
    service.ErrInvalidTransition:   http.StatusConflict,
    service.ErrOrderNotFound:       http.StatusNotFound,
    service.ErrRoomNotFound:        http.StatusNotFound,
    service.ErrReservationNotFound: http.StatusNotFound,
}

// statusOf maps err to an HTTP status.  ok is false for unexpected errors.
func statusOf(err error) (int, bool) {
    for target, status := range clientErrors {
        if errors.Is(err, target) {
            return status, true
        }
    }
    return http.StatusInternalServerError, false
}

// fail writes err as {"error": ...}.  Unexpected errors are logged and
// answered with generic instead of their text.
func fail(c echo.Context, log *logrus.Entry, err error, generic string) error {
    status, ok := statusOf(err)
    if !ok {
        log.WithError(err).WithFields(logrus.Fields{
            "method": c.Request().Method,
            "path":   c.Path(),
        }).Error(generic)
        return c.JSON(status, echo.Map{"error": generic})
    }
    return c.JSON(status, echo.Map{"error": err.Error()})
}

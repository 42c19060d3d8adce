package handler

import (
    "encoding/json"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/hotel-booking/internal/payment"
    "github.com/iliyamo/hotel-booking/internal/service"
)

// PaymentHandler serves the storefront checkout and the SePay webhook.
type PaymentHandler struct {
    Svc *service.BookingService
    Log *logrus.Entry
}

// NewPaymentHandler panics when svc is nil.
func NewPaymentHandler(svc *service.BookingService, log *logrus.Entry) *PaymentHandler {
    if svc == nil {
        panic("nil service passed to NewPaymentHandler")
    }
    if log == nil {
        log = logrus.NewEntry(logrus.StandardLogger())
    }
    return &PaymentHandler{Svc: svc, Log: log}
}

// CreatePayment handles POST /create-payment.  The body is the cart, the
// client total and the booking details; the response carries the order id
// and the bank-transfer instructions.
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
    var in service.CreateOrderInput
    if err := json.NewDecoder(c.Request().Body).Decode(&in); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    out, err := h.Svc.CreateOrder(c.Request().Context(), in)
    if err != nil {
        return fail(c, h.Log, err, "Failed to create payment")
    }
    return c.JSON(http.StatusCreated, out)
}

// CheckPaymentStatus handles GET /check-payment-status?orderId=.  An order
// past its payment window is expired here and reported as idled.
func (h *PaymentHandler) CheckPaymentStatus(c echo.Context) error {
    out, err := h.Svc.PollStatus(c.Request().Context(), c.QueryParam("orderId"))
    if err != nil {
        return fail(c, h.Log, err, "Failed to check payment status")
    }
    return c.JSON(http.StatusOK, out)
}

// Webhook handles POST /webhook.  Authentication is done by middleware.
// Mismatches are answered with 200 and success=false so SePay does not
// retry them.
func (h *PaymentHandler) Webhook(c echo.Context) error {
    var p payment.WebhookPayload
    if err := json.NewDecoder(c.Request().Body).Decode(&p); err != nil {
        h.Log.WithError(err).Warn("webhook: invalid JSON payload")
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid JSON payload"})
    }
    out, err := h.Svc.ConfirmPayment(c.Request().Context(), p)
    if err != nil {
        return fail(c, h.Log, err, "Failed to process webhook")
    }
    return c.JSON(http.StatusOK, out)
}

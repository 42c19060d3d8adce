package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/middleware"
)

// RegisterBooking registers the checkout endpoints the storefront calls and
// the SePay webhook.  Checkout routes are rate limited per client; the
// webhook requires the shared SePay API key instead.
func RegisterBooking(e *echo.Echo, h *handler.PaymentHandler, o Options) {
	limit := middleware.NewTokenBucket(o.RateLimit, o.Redis, o.Log)

	e.POST("/create-payment", h.CreatePayment, limit)
	e.GET("/check-payment-status", h.CheckPaymentStatus, limit)

	e.POST("/webhook", h.Webhook, middleware.WebhookAuth(o.WebhookKey, o.Log))
}

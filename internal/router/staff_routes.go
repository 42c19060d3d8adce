package router

// This file registers the front-desk routes.  Staff tokens are issued by
// the back-office identity service and verified here.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/middleware"
)

// RegisterStaff registers routes under /v1/staff.  All of them require a
// JWT carrying the STAFF or ADMIN role.
func RegisterStaff(e *echo.Echo, h *handler.StaffHandler, o Options) {
	g := e.Group(
		"/v1/staff",
		middleware.JWTAuth(o.JWTSecret),
		middleware.RequireRole(middleware.RoleStaff, middleware.RoleAdmin),
	)
	// Reservations entered at the desk or by phone
	g.POST("/reservations", h.CreateReservation)
	g.PATCH("/reservations/:id/status", h.UpdateStatus)
	// Occupancy of one room over a date range
	g.GET("/rooms/:id/reservations", h.ListRoomReservations)
	// Orders and a manual expiry sweep
	g.GET("/orders/:id", h.GetOrder)
	g.POST("/orders/expire", h.ExpireOrders)
}

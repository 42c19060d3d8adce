package middleware

// identity.go holds the context keys written by JWTAuth and the accessors
// handlers and other middleware use to read them back.

import "github.com/labstack/echo/v4"

const (
    ctxStaffID = "staff_id"
    ctxRole    = "role"
)

// Staff roles accepted on the back-office routes.
const (
    RoleStaff = "STAFF"
    RoleAdmin = "ADMIN"
)

// StaffID returns the authenticated staff subject, or "" on public routes.
func StaffID(c echo.Context) string {
    if s, ok := c.Get(ctxStaffID).(string); ok {
        return s
    }
    return ""
}

// Role returns the upper-cased role claim, or "" when unauthenticated.
func Role(c echo.Context) string {
    if s, ok := c.Get(ctxRole).(string); ok {
        return s
    }
    return ""
}

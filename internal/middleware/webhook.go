package middleware

import (
    "crypto/subtle"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"
)

// WebhookAuth accepts a request only when its Authorization header is
// "Apikey <key>" or "Bearer <key>".  An empty key rejects every request.
func WebhookAuth(key string, log *logrus.Entry) echo.MiddlewareFunc {
    want := []byte(key)
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            got := webhookToken(c.Request().Header.Get(echo.HeaderAuthorization))
            if len(want) == 0 || got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
                log.WithField("remote_ip", c.RealIP()).Warn("webhook: rejected unauthenticated request")
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
            }
            return next(c)
        }
    }
}

func webhookToken(h string) string {
    h = strings.TrimSpace(h)
    scheme, token, ok := strings.Cut(h, " ")
    if !ok {
        return ""
    }
    switch strings.ToLower(scheme) {
    case "apikey", "bearer":
        return strings.TrimSpace(token)
    }
    return ""
}

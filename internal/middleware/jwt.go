package middleware

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// StaffClaims are the claims carried by staff access tokens.  Tokens are
// issued by the back-office identity service; this service only verifies
// them.
type StaffClaims struct {
    Role string `json:"role"`
    jwt.RegisteredClaims
}

// JWTAuth validates an HS256 Bearer token signed with secret and stores
// the subject and role in the context (see StaffID and Role).
func JWTAuth(secret string) echo.MiddlewareFunc {
    parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            claims := &StaffClaims{}
            tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            c.Set(ctxStaffID, claims.Subject)
            c.Set(ctxRole, strings.ToUpper(claims.Role))
            return next(c)
        }
    }
}

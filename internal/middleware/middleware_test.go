package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-booking/internal/config"
)

func nullLog() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAuth(t *testing.T) {
	e := echo.New()
	e.POST("/webhook", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		WebhookAuth("s3cret", nullLog()))

	cases := []struct {
		header string
		want   int
	}{
		{"Apikey s3cret", http.StatusOK},
		{"apikey s3cret", http.StatusOK},
		{"Bearer s3cret", http.StatusOK},
		{"Apikey wrong", http.StatusUnauthorized},
		{"Basic s3cret", http.StatusUnauthorized},
		{"s3cret", http.StatusUnauthorized},
		{"", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		if tc.header != "" {
			req.Header.Set(echo.HeaderAuthorization, tc.header)
		}
		require.Equal(t, tc.want, serve(e, req).Code, tc.header)
	}
}

func TestWebhookAuthRejectsEverythingWithoutKey(t *testing.T) {
	e := echo.New()
	e.POST("/webhook", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, WebhookAuth("", nullLog()))
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set(echo.HeaderAuthorization, "Apikey ")
	require.Equal(t, http.StatusUnauthorized, serve(e, req).Code)
}

func sign(t *testing.T, method jwt.SigningMethod, key any, role string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, StaffClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-7",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func staffEcho() *echo.Echo {
	e := echo.New()
	g := e.Group("/staff", JWTAuth("jwt-secret"), RequireRole(RoleStaff, RoleAdmin))
	g.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"id": StaffID(c), "role": Role(c)})
	})
	return e
}

func TestJWTAuthAndRole(t *testing.T) {
	e := staffEcho()
	future := time.Now().Add(time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/staff/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+sign(t, jwt.SigningMethodHS256, []byte("jwt-secret"), "staff", future))
	rec := serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":"staff-7","role":"STAFF"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/staff/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+sign(t, jwt.SigningMethodHS256, []byte("jwt-secret"), "CUSTOMER", future))
	require.Equal(t, http.StatusForbidden, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/staff/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+sign(t, jwt.SigningMethodHS256, []byte("other"), "ADMIN", future))
	require.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/staff/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+sign(t, jwt.SigningMethodHS384, []byte("jwt-secret"), "ADMIN", future))
	require.Equal(t, http.StatusUnauthorized, serve(e, req).Code, "only HS256 is accepted")

	req = httptest.NewRequest(http.MethodGet, "/staff/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+sign(t, jwt.SigningMethodHS256, []byte("jwt-secret"), "ADMIN", time.Now().Add(-time.Minute)))
	require.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/staff/me", nil)
	require.Equal(t, http.StatusUnauthorized, serve(e, req).Code)
}

func TestCacheKeyUsesConcretePath(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "hotel:cache", KeyStrategy: "route_query"}
	e := echo.New()
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/rooms/:id/quote")
		return cacheKeyFrom(cfg, c)
	}
	a := key("/v1/rooms/a/quote?type=hourly&checkIn=x")
	require.Equal(t, a, key("/v1/rooms/a/quote?checkIn=x&type=hourly"))
	require.NotEqual(t, a, key("/v1/rooms/b/quote?type=hourly&checkIn=x"))
	require.Contains(t, a, "hotel:cache:")
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)
	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, hdr, got)
	require.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{1, 2})
	require.False(t, ok)
}

func TestRedisMiddlewaresPassThroughWithoutClient(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nullLog()),
		NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil, nullLog()))

	for i := 0; i < 3; i++ {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/x", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Header().Get("X-Cache"))
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/create-payment", nil)
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/create-payment")

	cfg := config.RateLimitConfig{Prefix: "hotel:rl", KeyStrategy: "ip_route"}
	require.Equal(t, "hotel:rl:ip:203.0.113.9:route:POST /create-payment", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	require.Equal(t, "hotel:rl:user:anon", buildRateKey(cfg, c))
	c.Set(ctxStaffID, "staff-1")
	require.Equal(t, "hotel:rl:user:staff-1", buildRateKey(cfg, c))
}

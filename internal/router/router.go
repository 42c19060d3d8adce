package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-booking/internal/config"
	"github.com/iliyamo/hotel-booking/internal/handler"    // import the handlers that implement the endpoints
	"github.com/iliyamo/hotel-booking/internal/middleware" // import middleware for auth, rate limiting and caching
)

// Options carries what the route groups need besides their handlers.
// Redis may be nil, in which case rate limiting and caching are skipped.
type Options struct {
	JWTSecret  string
	WebhookKey string
	RateLimit  config.RateLimitConfig
	Cache      config.CacheConfig
	Redis      *redis.Client
	DB         handler.Pinger
	Log        *logrus.Entry
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the liveness and readiness probes.
func RegisterRoutes(e *echo.Echo, o Options) {
	// Load balancers hit /healthz; /readyz also checks the database.
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(o.DB))
}

// RegisterPublic registers the guest-facing room endpoints.  Room details
// and quotes are served through the Redis cache; availability never is.
func RegisterPublic(e *echo.Echo, r *handler.RoomHandler, o Options) {
	cache := middleware.NewRedisCache(o.Cache, o.Redis, o.Log)
	limit := middleware.NewTokenBucket(o.RateLimit, o.Redis, o.Log)

	g := e.Group("/v1/rooms")
	g.GET("/:id", r.GetRoom, cache)
	g.GET("/:id/quote", r.Quote, cache)
	g.GET("/:id/availability", r.Availability, limit)
}

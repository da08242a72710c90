package router // router defines how HTTP routes are registered for the API

import (
	"log"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-ticketing/internal/accounts"
	"github.com/iliyamo/cinema-ticketing/internal/authz"
	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// Deps is everything the HTTP layer needs.  Redis may be nil; rate
// limiting and the response cache are then disabled.
type Deps struct {
	Cfg       config.Config
	Stores    repository.Stores
	Accounts  *accounts.Service
	Engine    *booking.Engine
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// New builds the Echo instance with the global middleware chain and every
// route registered.  Identity runs first so that the limiter and the cache
// can key by actor.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger())
	e.Use(middleware.Identity(d.Cfg.JWTSecret))
	e.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis))

	cache := middleware.NewResponseCache(d.Cache, d.Redis)

	RegisterRoutes(e)
	RegisterAuth(e, handler.NewAuthHandler(d.Cfg, d.Accounts, d.Stores.Accounts, d.Stores.Tokens))
	RegisterAccounts(e, d.Accounts, d.Engine)
	RegisterMovies(e, handler.NewMovieHandler(d.Engine, cache), cache)
	RegisterTickets(e, handler.NewTicketHandler(d.Engine))
	return e
}

func requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Printf("%s %s %d %s id=%s actor=%s",
				v.Method, v.URI, v.Status, v.Latency, v.RequestID, middleware.ActorFrom(c).ID)
			return nil
		},
	})
}

// RegisterRoutes registers routes that do not touch the domain.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers registration, login and session routes.  Register
// and login exist once per account kind; the stored role must match the
// kind in the path.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	for _, k := range []struct {
		path string
		kind authz.Kind
	}{
		{"client", authz.Client},
		{"staff", authz.Staff},
		{"admin", authz.Admin},
	} {
		g.POST("/register/"+k.path, a.Register(k.kind))
		g.POST("/login/"+k.path, a.Login(k.kind))
	}
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.RequireAuthenticated())
}

// RegisterAccounts mounts one AccountHandler per account kind.  Every
// account route requires an identity; who may see or change what is
// decided per request.
func RegisterAccounts(e *echo.Echo, svc *accounts.Service, eng *booking.Engine) {
	for _, k := range []struct {
		prefix string
		kind   authz.Kind
	}{
		{"/v1/clients", authz.Client},
		{"/v1/staff", authz.Staff},
		{"/v1/admins", authz.Admin},
	} {
		h := handler.NewAccountHandler(k.kind, svc, eng)
		g := e.Group(k.prefix, middleware.RequireAuthenticated())
		g.GET("", h.List)
		g.GET("/self", h.Self)
		g.GET("/login/:login", h.GetByLogin)
		g.GET("/:id", h.Get)
		g.PUT("/:id", h.Update)
		g.POST("/:id/activate", h.Activate)
		g.POST("/:id/deactivate", h.Deactivate)
		if k.kind == authz.Client {
			g.GET("/self/tickets", h.SelfTickets)
			g.GET("/:id/tickets", h.ClientTickets)
		}
	}
}

// RegisterMovies registers the movie routes.  Only the listing goes
// through the response cache; movie writes purge it.
func RegisterMovies(e *echo.Echo, h *handler.MovieHandler, cache *middleware.ResponseCache) {
	g := e.Group("/v1/movies")
	g.GET("", h.List, cache.Middleware())
	g.GET("/:id", h.Get)
	g.GET("/:id/availability", h.Availability)
	g.GET("/:id/tickets", h.Tickets)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// RegisterTickets registers the ticket routes.  Only clients and staff
// ever hold tickets, so anonymous callers are turned away early.
func RegisterTickets(e *echo.Echo, h *handler.TicketHandler) {
	g := e.Group("/v1/tickets", middleware.RequireAuthenticated())
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/handler"
	"github.com/iliyamo/cinema-ebooking/internal/metrics"
	"github.com/iliyamo/cinema-ebooking/internal/middleware"
)

// Handlers is everything mounted by Register.
type Handlers struct {
	Health        *handler.HealthHandler
	Auth          *handler.AuthHandler
	Profile       *handler.ProfileHandler
	Payments      *handler.PaymentMethodHandler
	Movies        *handler.MovieHandler
	Promotions    *handler.PromotionHandler
	Subscriptions *handler.SubscriptionHandler
	Users         *handler.UserAdminHandler
}

// Options carries the middleware dependencies.  Nil limiter or cache mean
// pass-through.
type Options struct {
	JWTSecret   string
	CORSOrigins []string
	Limiter     echo.MiddlewareFunc
	Cache       echo.MiddlewareFunc
	Metrics     *metrics.Metrics
	Log         *zap.Logger
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}

// Register installs the global middleware stack and every route group.
func Register(e *echo.Echo, h Handlers, o Options) {
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(o.Log))
	e.Use(middleware.Metrics(o.Metrics))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     o.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	RegisterRoutes(e, h.Health, o.Metrics)
	RegisterAuth(e, h.Auth, o.JWTSecret, orPass(o.Limiter))
	RegisterAccount(e, h.Profile, h.Payments, o.JWTSecret)
	RegisterPublic(e, h.Movies, h.Promotions, orPass(o.Cache))
	RegisterAdmin(e, h.Promotions, h.Subscriptions, h.Users, o.JWTSecret)
}

// RegisterRoutes exposes the operational endpoints.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler, m *metrics.Metrics) {
	e.GET("/healthz", health.Health)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
}

// RegisterAuth registers the account lifecycle endpoints under /api/auth.
// The limiter guards every route of the group.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/api/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/verify-email", a.VerifyEmail)
	g.POST("/resend-verification", a.ResendVerification)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
	g.PUT("/profile", a.UpdateProfile)
	g.POST("/profile", a.UpdateProfile)
	// Deletion needs to know who is asking.
	g.DELETE("/profile/:id", a.DeleteAccount, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the catalogue and promotion reads.  Movie
// listings go through the response cache.
func RegisterPublic(e *echo.Echo, m *handler.MovieHandler, p *handler.PromotionHandler, cache echo.MiddlewareFunc) {
	e.GET("/api/movies", m.List, cache)
	// ping is static and must win over :id
	e.GET("/api/movies/ping", m.Ping)
	e.GET("/api/movies/:id", m.Get, cache)

	e.GET("/api/promotions", p.List)
	e.GET("/api/promotions/:id", p.Get)
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ebooking/internal/handler"
)

// optionalJWT stores the caller identity when a valid bearer token is sent
// and otherwise lets the request through, so the ?userId= form keeps
// working for the browser frontend.
func optionalJWT(jwtSecret string) echo.MiddlewareFunc {
	strict := jwtAuth(jwtSecret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := strict(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return next(c)
			}
			return guarded(c)
		}
	}
}

// RegisterAccount registers the self-service profile and payment method
// endpoints.
func RegisterAccount(e *echo.Echo, p *handler.ProfileHandler, pm *handler.PaymentMethodHandler, jwtSecret string) {
	u := e.Group("/api/users", optionalJWT(jwtSecret))
	u.GET("/profile", p.Get)
	u.PUT("/profile", p.Update)
	u.PUT("/change-password", p.ChangePassword)

	g := e.Group("/api/payment-methods")
	g.GET("", pm.List)
	g.POST("", pm.Create)
	g.PUT("/:id", pm.Update)
	g.DELETE("/:id", pm.Delete)
}

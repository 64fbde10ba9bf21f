package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ebooking/internal/handler"
	"github.com/iliyamo/cinema-ebooking/internal/middleware"
	"github.com/iliyamo/cinema-ebooking/internal/model"
)

func jwtAuth(secret string) echo.MiddlewareFunc { return middleware.JWTAuth(secret) }

// RegisterAdmin registers admin-scoped endpoints under /api.  All routes
// require a valid JWT and the admin role.
func RegisterAdmin(e *echo.Echo, p *handler.PromotionHandler, s *handler.SubscriptionHandler,
	u *handler.UserAdminHandler, jwtSecret string) {
	g := e.Group(
		"/api",
		jwtAuth(jwtSecret),
		middleware.RequireRole(model.RoleName(model.RoleAdmin)),
	)

	// ---- Promotions ----
	g.POST("/promotions", p.Create)
	g.PUT("/promotions/:id", p.Update)
	g.DELETE("/promotions/:id", p.Delete)
	g.GET("/promotions/:id/codes", p.ListCodes)
	g.POST("/promotions/:id/codes", p.AddCode)
	g.DELETE("/promotions/codes/:codeId", p.DeleteCode)

	// ---- Subscribers ----
	g.GET("/subscribed-users", s.SubscribedUsers)
	g.POST("/send-promotion/:id", s.SendPromotion)

	// ---- Users ----
	g.GET("/users", u.List)
	g.POST("/users", u.Create)
	g.GET("/users/:id", u.Get)
	g.PUT("/users/:id", u.Update)
	g.DELETE("/users/:id", u.Delete)
}

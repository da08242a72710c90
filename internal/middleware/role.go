package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// RequireAuthenticated rejects anonymous requests with 401.  Fine-grained
// decisions (which role may do what to whose resource) belong to package
// authz and are made by the handlers once they know the resource owner;
// this middleware only keeps anonymous traffic away from routes that
// never serve it.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ActorFrom(c).IsAnonymous() {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			return next(c)
		}
	}
}

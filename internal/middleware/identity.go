package middleware

// identity.go holds the helpers that read the actor resolved by Identity
// from the Echo context.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/authz"
)

const actorKey = "actor"

// ActorFrom returns the actor stored by Identity, or the anonymous actor
// when the middleware did not run.
func ActorFrom(c echo.Context) authz.Actor {
	if a, ok := c.Get(actorKey).(authz.Actor); ok {
		return a
	}
	return authz.Anonymous
}

// actorLabel identifies the actor in rate limit and cache keys.
func actorLabel(c echo.Context) string {
	a := ActorFrom(c)
	if a.IsAnonymous() {
		return "anon"
	}
	return a.ID.String()
}

// roleLabel is the actor's role, or "ANONYMOUS".
func roleLabel(c echo.Context) string {
	a := ActorFrom(c)
	if a.IsAnonymous() {
		return "ANONYMOUS"
	}
	return string(a.Role)
}

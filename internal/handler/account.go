package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/accounts"
	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/authz"
	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// AccountHandler serves one account kind (clients, staff or admins).  The
// same handler type is mounted three times with a different Kind.
type AccountHandler struct {
	Kind     authz.Kind
	Accounts *accounts.Service
	Engine   *booking.Engine
}

func NewAccountHandler(kind authz.Kind, svc *accounts.Service, eng *booking.Engine) *AccountHandler {
	return &AccountHandler{Kind: kind, Accounts: svc, Engine: eng}
}

// accountUpdateReq is the body of PUT /v1/{kind}/:id.  Everything except
// the password is compared with the stored account and must not change.
type accountUpdateReq struct {
	ID       string  `json:"id"`
	Login    *string `json:"login"`
	Password *string `json:"password"`
	Role     string  `json:"role"`
	Active   *bool   `json:"active"`
}

// List handles GET /v1/{kind}?login=.
func (h *AccountHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.Accounts.List(ctx, middleware.ActorFrom(c), h.Kind, c.QueryParam("login"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": mapSlice(list, toAccountResp)})
}

// Self returns the caller's own account with its ETag.
func (h *AccountHandler) Self(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	if actor.IsAnonymous() {
		return respondError(c, apperr.ErrUnauthenticated)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, tok, err := h.Accounts.Get(ctx, actor, h.Kind, actor.ID)
	if err != nil {
		return respondError(c, err)
	}
	setETag(c, tok)
	return c.JSON(http.StatusOK, toAccountResp(a))
}

// Get handles GET /v1/{kind}/:id.  The ETag is only sent to the owner,
// the only caller allowed to update the account.
func (h *AccountHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	actor := middleware.ActorFrom(c)
	a, tok, err := h.Accounts.Get(ctx, actor, h.Kind, id)
	if err != nil {
		return respondError(c, err)
	}
	if actor.ID == a.ID {
		setETag(c, tok)
	}
	return c.JSON(http.StatusOK, toAccountResp(a))
}

// GetByLogin handles GET /v1/{kind}/login/:login.
func (h *AccountHandler) GetByLogin(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	actor := middleware.ActorFrom(c)
	a, tok, err := h.Accounts.GetByLogin(ctx, actor, h.Kind, c.Param("login"))
	if err != nil {
		return respondError(c, err)
	}
	if actor.ID == a.ID {
		setETag(c, tok)
	}
	return c.JSON(http.StatusOK, toAccountResp(a))
}

// Update handles PUT /v1/{kind}/:id with If-Match.
func (h *AccountHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req accountUpdateReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	bodyID, err := optionalUUID(req.ID, "id")
	if err != nil {
		return respondError(c, err)
	}
	changes := accounts.Changes{
		ID:       bodyID,
		Login:    req.Login,
		Password: req.Password,
		Role:     model.Role(req.Role),
		Active:   req.Active,
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	a, tok, err := h.Accounts.Update(ctx, middleware.ActorFrom(c), h.Kind, id, changes, ifMatch(c))
	if err != nil {
		return respondError(c, err)
	}
	setETag(c, tok)
	return c.JSON(http.StatusOK, toAccountResp(a))
}

func (h *AccountHandler) setActive(c echo.Context, active bool) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, _, err := h.Accounts.SetActive(ctx, middleware.ActorFrom(c), h.Kind, id, active)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toAccountResp(a))
}

// Activate handles POST /v1/{kind}/:id/activate.
func (h *AccountHandler) Activate(c echo.Context) error { return h.setActive(c, true) }

// Deactivate handles POST /v1/{kind}/:id/deactivate.
func (h *AccountHandler) Deactivate(c echo.Context) error { return h.setActive(c, false) }

// SelfTickets lists the calling client's tickets.
func (h *AccountHandler) SelfTickets(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	if actor.IsAnonymous() {
		return respondError(c, apperr.ErrUnauthenticated)
	}
	return h.tickets(c, actor, repository.TicketFilter{ClientID: actor.ID})
}

// ClientTickets handles GET /v1/clients/:id/tickets.
func (h *AccountHandler) ClientTickets(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	return h.tickets(c, middleware.ActorFrom(c), repository.TicketFilter{ClientID: id})
}

func (h *AccountHandler) tickets(c echo.Context, actor authz.Actor, f repository.TicketFilter) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.Engine.ListTickets(ctx, actor, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": mapSlice(list, toTicketResp)})
}

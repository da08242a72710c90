package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// TicketHandler serves /v1/tickets.
type TicketHandler struct {
	Engine *booking.Engine
}

func NewTicketHandler(eng *booking.Engine) *TicketHandler {
	return &TicketHandler{Engine: eng}
}

// ticketReq is shared by create and update.  On create the client id
// defaults to the caller and the price is ignored (the movie's base price
// is charged); on update only showing_time may change.
type ticketReq struct {
	ID          string    `json:"id"`
	ShowingTime time.Time `json:"showing_time"`
	ClientID    string    `json:"client_id"`
	MovieID     string    `json:"movie_id"`
	FinalPrice  *float64  `json:"final_price"`
}

func (r ticketReq) input() (booking.TicketInput, error) {
	id, err := optionalUUID(r.ID, "id")
	if err != nil {
		return booking.TicketInput{}, err
	}
	clientID, err := optionalUUID(r.ClientID, "client_id")
	if err != nil {
		return booking.TicketInput{}, err
	}
	movieID, err := optionalUUID(r.MovieID, "movie_id")
	if err != nil {
		return booking.TicketInput{}, err
	}
	return booking.TicketInput{
		ID:          id,
		ShowingTime: r.ShowingTime,
		ClientID:    clientID,
		MovieID:     movieID,
		FinalPrice:  r.FinalPrice,
	}, nil
}

// Create handles POST /v1/tickets.
func (h *TicketHandler) Create(c echo.Context) error {
	var req ticketReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	in, err := req.input()
	if err != nil {
		return respondError(c, err)
	}
	actor := middleware.ActorFrom(c)
	if in.ClientID == uuid.Nil {
		in.ClientID = actor.ID
	}
	in.ID, in.FinalPrice = uuid.Nil, nil

	ctx, cancel := requestContext(c)
	defer cancel()

	t, tok, err := h.Engine.CreateTicket(ctx, actor, in)
	if err != nil {
		return respondError(c, err)
	}
	setETag(c, tok)
	return c.JSON(http.StatusCreated, toTicketResp(t))
}

// List handles GET /v1/tickets with optional client_id and movie_id
// filters.
func (h *TicketHandler) List(c echo.Context) error {
	clientID, err := optionalUUID(c.QueryParam("client_id"), "client_id")
	if err != nil {
		return respondError(c, err)
	}
	movieID, err := optionalUUID(c.QueryParam("movie_id"), "movie_id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	f := repository.TicketFilter{ClientID: clientID, MovieID: movieID}
	list, err := h.Engine.ListTickets(ctx, middleware.ActorFrom(c), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": mapSlice(list, toTicketResp)})
}

// Get handles GET /v1/tickets/:id.  The ETag is sent to the owning client.
func (h *TicketHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	actor := middleware.ActorFrom(c)
	t, tok, err := h.Engine.GetTicket(ctx, actor, id)
	if err != nil {
		return respondError(c, err)
	}
	if actor.ID == t.ClientID {
		setETag(c, tok)
	}
	return c.JSON(http.StatusOK, toTicketResp(t))
}

// Update handles PUT /v1/tickets/:id with If-Match.
func (h *TicketHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req ticketReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	in, err := req.input()
	if err != nil {
		return respondError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	t, tok, err := h.Engine.UpdateTicket(ctx, middleware.ActorFrom(c), id, in, ifMatch(c))
	if err != nil {
		return respondError(c, err)
	}
	setETag(c, tok)
	return c.JSON(http.StatusOK, toTicketResp(t))
}

// Delete handles DELETE /v1/tickets/:id.
func (h *TicketHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Engine.DeleteTicket(ctx, middleware.ActorFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

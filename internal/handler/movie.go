package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// Purger drops cached listings after a write.
type Purger interface {
	Purge(ctx context.Context)
}

// MovieHandler serves /v1/movies.
type MovieHandler struct {
	Engine *booking.Engine
	Cache  Purger // may be nil
}

func NewMovieHandler(eng *booking.Engine, cache Purger) *MovieHandler {
	return &MovieHandler{Engine: eng, Cache: cache}
}

type movieReq struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	BasePrice      float64 `json:"base_price"`
	ScreeningRoom  int     `json:"screening_room"`
	AvailableSeats int     `json:"available_seats"`
}

func (r movieReq) movie() model.Movie {
	return model.Movie{
		Title:          r.Title,
		BasePrice:      r.BasePrice,
		ScreeningRoom:  r.ScreeningRoom,
		AvailableSeats: r.AvailableSeats,
	}
}

func (h *MovieHandler) purge(c echo.Context) {
	if h.Cache == nil {
		return
	}
	h.Cache.Purge(c.Request().Context())
}

// Create handles POST /v1/movies.
func (h *MovieHandler) Create(c echo.Context) error {
	var req movieReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m, tok, err := h.Engine.CreateMovie(ctx, middleware.ActorFrom(c), req.movie())
	if err != nil {
		return respondError(c, err)
	}
	h.purge(c)
	setETag(c, tok)
	return c.JSON(http.StatusCreated, toMovieResp(m))
}

// List handles GET /v1/movies.
func (h *MovieHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.Engine.ListMovies(ctx, middleware.ActorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": mapSlice(list, toMovieResp)})
}

// Get handles GET /v1/movies/:id.
func (h *MovieHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m, tok, err := h.Engine.GetMovie(ctx, middleware.ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	setETag(c, tok)
	return c.JSON(http.StatusOK, toMovieResp(m))
}

// Update handles PUT /v1/movies/:id.  The body replaces every field; the
// If-Match header must carry the movie's current ETag.
func (h *MovieHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req movieReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	in := req.movie()
	if in.ID, err = optionalUUID(req.ID, "id"); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	m, tok, err := h.Engine.UpdateMovie(ctx, middleware.ActorFrom(c), id, in, ifMatch(c))
	if err != nil {
		return respondError(c, err)
	}
	h.purge(c)
	setETag(c, tok)
	return c.JSON(http.StatusOK, toMovieResp(m))
}

// Delete handles DELETE /v1/movies/:id.
func (h *MovieHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Engine.DeleteMovie(ctx, middleware.ActorFrom(c), id); err != nil {
		return respondError(c, err)
	}
	h.purge(c)
	return c.NoContent(http.StatusNoContent)
}

// Tickets handles GET /v1/movies/:id/tickets.
func (h *MovieHandler) Tickets(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.Engine.ListTickets(ctx, middleware.ActorFrom(c), repository.TicketFilter{MovieID: id})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": mapSlice(list, toTicketResp)})
}

// Availability handles GET /v1/movies/:id/availability.
func (h *MovieHandler) Availability(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	av, err := h.Engine.Availability(ctx, middleware.ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, av)
}

package handler // handler defines http handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/guard"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// requestTimeout bounds store calls and lock waits of one request.
const requestTimeout = 5 * time.Second

const (
	headerETag    = "ETag"
	headerIfMatch = "If-Match"
)

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// respondError writes {"error": "..."} with the status of the error kind.
// Unexpected errors are logged and reported without detail.
func respondError(c echo.Context, err error) error {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

// pathID parses a UUID path parameter.
func pathID(c echo.Context, name string) (uuid.UUID, error) {
	return parseUUID(c.Param(name), name)
}

func parseUUID(s, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid id", apperr.ErrInvalidInput, field)
	}
	return id, nil
}

// optionalUUID parses s when present and returns uuid.Nil otherwise.
func optionalUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, nil
	}
	return parseUUID(s, field)
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return fmt.Errorf("%w: invalid body", apperr.ErrInvalidInput)
	}
	return nil
}

func setETag(c echo.Context, token string) {
	if token != "" {
		c.Response().Header().Set(headerETag, guard.Quote(token))
	}
}

func ifMatch(c echo.Context) string {
	return c.Request().Header.Get(headerIfMatch)
}

// ----- response DTOs -----

type accountResp struct {
	ID     uuid.UUID `json:"id"`
	Login  string    `json:"login"`
	Role   string    `json:"role"`
	Active bool      `json:"active"`
}

func toAccountResp(a model.Account) accountResp {
	return accountResp{ID: a.ID, Login: a.Login, Role: string(a.Role), Active: a.Active}
}

type movieResp struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	BasePrice      float64   `json:"base_price"`
	ScreeningRoom  int       `json:"screening_room"`
	AvailableSeats int       `json:"available_seats"`
}

func toMovieResp(m model.Movie) movieResp {
	return movieResp{ID: m.ID, Title: m.Title, BasePrice: m.BasePrice, ScreeningRoom: m.ScreeningRoom, AvailableSeats: m.AvailableSeats}
}

type ticketResp struct {
	ID          uuid.UUID `json:"id"`
	ShowingTime time.Time `json:"showing_time"`
	FinalPrice  float64   `json:"final_price"`
	ClientID    uuid.UUID `json:"client_id"`
	MovieID     uuid.UUID `json:"movie_id"`
}

func toTicketResp(t model.Ticket) ticketResp {
	return ticketResp{ID: t.ID, ShowingTime: t.ShowingTime, FinalPrice: t.FinalPrice, ClientID: t.ClientID, MovieID: t.MovieID}
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cinema-ticketing/internal/accounts"
	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/guard"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/router"
)

type testAPI struct {
	t *testing.T
	e *echo.Echo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := config.Config{
		Env:            "test",
		StoreDriver:    config.StoreMemory,
		JWTSecret:      "test-jwt-secret",
		ETagSecret:     "test-etag-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 1,
		BcryptCost:     bcrypt.MinCost,
		LockBackend:    config.LockLocal,
	}
	stores := repository.NewMemoryStores()
	g := guard.New(guard.NewSigner(cfg.ETagSecret), nil)
	svc := accounts.NewService(stores, g, cfg.BcryptCost)

	created, err := svc.SeedAdmin(context.Background(), "root", "root-password")
	require.NoError(t, err)
	require.True(t, created)

	e := router.New(router.Deps{
		Cfg:      cfg,
		Stores:   stores,
		Accounts: svc,
		Engine:   booking.NewEngine(stores, g, nil),
	})
	return &testAPI{t: t, e: e}
}

type call struct {
	method  string
	path    string
	token   string
	ifMatch string
	body    any
}

func (a *testAPI) do(c call) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	if c.body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if c.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.token)
	}
	if c.ifMatch != "" {
		req.Header.Set("If-Match", c.ifMatch)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

type session struct {
	Account struct {
		ID     string `json:"id"`
		Login  string `json:"login"`
		Role   string `json:"role"`
		Active bool   `json:"active"`
	} `json:"account"`
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

type movieBody struct {
	ID             string  `json:"id,omitempty"`
	Title          string  `json:"title"`
	BasePrice      float64 `json:"base_price"`
	ScreeningRoom  int     `json:"screening_room"`
	AvailableSeats int     `json:"available_seats"`
}

type ticketBody struct {
	ID          string  `json:"id"`
	ShowingTime string  `json:"showing_time"`
	FinalPrice  float64 `json:"final_price"`
	ClientID    string  `json:"client_id"`
	MovieID     string  `json:"movie_id"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) login(kind, login, password string) session {
	a.t.Helper()
	rec := a.do(call{method: http.MethodPost, path: "/v1/auth/login/" + kind, body: map[string]string{"login": login, "password": password}})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[session](a.t, rec)
}

func (a *testAPI) registerClient(login string) session {
	a.t.Helper()
	rec := a.do(call{method: http.MethodPost, path: "/v1/auth/register/client", body: map[string]string{"login": login, "password": "client-password"}})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[session](a.t, rec)
}

// staff registers a staff account through the seeded admin and logs in.
func (a *testAPI) staff() session {
	a.t.Helper()
	admin := a.login("admin", "root", "root-password")
	rec := a.do(call{method: http.MethodPost, path: "/v1/auth/register/staff", token: admin.Access.Token,
		body: map[string]string{"login": "cashier", "password": "staff-password"}})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(a.t, rec.Header().Get("ETag"))
	return a.login("staff", "cashier", "staff-password")
}

func (a *testAPI) createMovie(token string, m movieBody) (movieBody, string) {
	a.t.Helper()
	rec := a.do(call{method: http.MethodPost, path: "/v1/movies", token: token, body: m})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[movieBody](a.t, rec), rec.Header().Get("ETag")
}

func (a *testAPI) book(token, movieID string) *httptest.ResponseRecorder {
	return a.do(call{method: http.MethodPost, path: "/v1/tickets", token: token,
		body: map[string]string{"movie_id": movieID, "showing_time": "2026-11-01T20:00:00Z"}})
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterAndLoginPerKind(t *testing.T) {
	api := newTestAPI(t)
	s := api.registerClient("alice")
	assert.Equal(t, "CLIENT", s.Account.Role)
	assert.NotEmpty(t, s.Access.Token)
	assert.NotEmpty(t, s.Refresh.Token)

	api.login("client", "alice", "client-password")

	rec := api.do(call{method: http.MethodPost, path: "/v1/auth/login/staff", body: map[string]string{"login": "alice", "password": "client-password"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(call{method: http.MethodPost, path: "/v1/auth/register/client", body: map[string]string{"login": "alice", "password": "client-password"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(call{method: http.MethodPost, path: "/v1/auth/register/staff", body: map[string]string{"login": "bob", "password": "staff-password"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(call{method: http.MethodPost, path: "/v1/auth/register/staff", token: s.Access.Token, body: map[string]string{"login": "bob", "password": "staff-password"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIdentityRejectsBadToken(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(call{method: http.MethodGet, path: "/v1/me", token: "not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(call{method: http.MethodGet, path: "/v1/me"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s := api.registerClient("carol")
	rec = api.do(call{method: http.MethodGet, path: "/v1/me", token: s.Access.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), s.Account.ID)
}

func TestRefreshRotatesToken(t *testing.T) {
	api := newTestAPI(t)
	s := api.registerClient("dave")

	rec := api.do(call{method: http.MethodPost, path: "/v1/auth/refresh", body: map[string]string{"refresh_token": s.Refresh.Token}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	next := decode[session](t, rec)
	assert.NotEqual(t, s.Refresh.Token, next.Refresh.Token)

	rec = api.do(call{method: http.MethodPost, path: "/v1/auth/refresh", body: map[string]string{"refresh_token": s.Refresh.Token}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(call{method: http.MethodPost, path: "/v1/auth/refresh-access", body: map[string]string{"refresh_token": next.Refresh.Token}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(call{method: http.MethodPost, path: "/v1/auth/logout", body: map[string]string{"refresh_token": next.Refresh.Token}})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(call{method: http.MethodPost, path: "/v1/auth/refresh-access", body: map[string]string{"refresh_token": next.Refresh.Token}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMovieUpdateNeedsCurrentETag(t *testing.T) {
	api := newTestAPI(t)
	staff := api.staff()
	m, etag := api.createMovie(staff.Access.Token, movieBody{Title: "Alien", BasePrice: 12.5, ScreeningRoom: 3, AvailableSeats: 40})
	require.NotEmpty(t, etag)

	rec := api.do(call{method: http.MethodGet, path: "/v1/movies/" + m.ID, token: staff.Access.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, etag, rec.Header().Get("ETag"))

	change := movieBody{Title: "Alien", BasePrice: 15, ScreeningRoom: 3, AvailableSeats: 40}
	rec = api.do(call{method: http.MethodPut, path: "/v1/movies/" + m.ID, token: staff.Access.Token, body: change})
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec = api.do(call{method: http.MethodPut, path: "/v1/movies/" + m.ID, token: staff.Access.Token, ifMatch: etag, body: change})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fresh := rec.Header().Get("ETag")
	assert.NotEqual(t, etag, fresh)
	assert.Equal(t, 15.0, decode[movieBody](t, rec).BasePrice)

	// the first writer's token is now stale
	rec = api.do(call{method: http.MethodPut, path: "/v1/movies/" + m.ID, token: staff.Access.Token, ifMatch: etag, body: change})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = api.do(call{method: http.MethodPut, path: "/v1/movies/" + m.ID, token: staff.Access.Token, ifMatch: "W/" + fresh, body: change})
	assert.Equal(t, http.StatusOK, rec.Code)

	other := change
	other.ID = "6f1c2c1e-6a7c-4a43-9a55-0c7b7f0d0e11"
	rec = api.do(call{method: http.MethodPut, path: "/v1/movies/" + m.ID, token: staff.Access.Token, ifMatch: "garbage", body: other})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMovieAccessByRole(t *testing.T) {
	api := newTestAPI(t)
	staff := api.staff()
	client := api.registerClient("erin")
	m, _ := api.createMovie(staff.Access.Token, movieBody{Title: "Heat", BasePrice: 9, ScreeningRoom: 1, AvailableSeats: 10})

	rec := api.do(call{method: http.MethodGet, path: "/v1/movies"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(call{method: http.MethodGet, path: "/v1/movies", token: client.Access.Token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(call{method: http.MethodGet, path: "/v1/movies", token: staff.Access.Token})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), m.ID)

	rec = api.do(call{method: http.MethodGet, path: "/v1/movies/" + m.ID, token: client.Access.Token})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(call{method: http.MethodPost, path: "/v1/movies", token: client.Access.Token, body: movieBody{Title: "X", BasePrice: 1, ScreeningRoom: 1, AvailableSeats: 1}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(call{method: http.MethodPost, path: "/v1/movies", token: staff.Access.Token, body: movieBody{Title: "X", BasePrice: 101, ScreeningRoom: 1, AvailableSeats: 1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(call{method: http.MethodGet, path: "/v1/movies/not-a-uuid", token: staff.Access.Token})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingLifecycle(t *testing.T) {
	api := newTestAPI(t)
	staff := api.staff()
	client := api.registerClient("frank")
	m, etag := api.createMovie(staff.Access.Token, movieBody{Title: "Up", BasePrice: 7.5, ScreeningRoom: 2, AvailableSeats: 1})

	rec := api.book(client.Access.Token, m.ID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ticket := decode[ticketBody](t, rec)
	assert.Equal(t, 7.5, ticket.FinalPrice)
	assert.Equal(t, client.Account.ID, ticket.ClientID)

	rec = api.book(client.Access.Token, m.ID)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(call{method: http.MethodGet, path: "/v1/movies/" + m.ID + "/availability", token: client.Access.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"movie_id":"`+m.ID+`","available_seats":1,"reserved":1,"free":0}`, rec.Body.String())

	// later price changes leave sold tickets alone
	rec = api.do(call{method: http.MethodPut, path: "/v1/movies/" + m.ID, token: staff.Access.Token, ifMatch: etag,
		body: movieBody{Title: "Up", BasePrice: 20, ScreeningRoom: 2, AvailableSeats: 1}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(call{method: http.MethodGet, path: "/v1/tickets/" + ticket.ID, token: client.Access.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7.5, decode[ticketBody](t, rec).FinalPrice)
	ticketTag := rec.Header().Get("ETag")
	require.NotEmpty(t, ticketTag)

	rec = api.do(call{method: http.MethodGet, path: "/v1/clients/self/tickets", token: client.Access.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ticket.ID)

	rec = api.do(call{method: http.MethodDelete, path: "/v1/movies/" + m.ID, token: staff.Access.Token})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(call{method: http.MethodDelete, path: "/v1/tickets/" + ticket.ID, token: staff.Access.Token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(call{method: http.MethodDelete, path: "/v1/tickets/" + ticket.ID, token: client.Access.Token})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(call{method: http.MethodDelete, path: "/v1/movies/" + m.ID, token: staff.Access.Token})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(call{method: http.MethodGet, path: "/v1/movies/" + m.ID, token: staff.Access.Token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTicketUpdate(t *testing.T) {
	api := newTestAPI(t)
	staff := api.staff()
	client := api.registerClient("gina")
	m, _ := api.createMovie(staff.Access.Token, movieBody{Title: "Jaws", BasePrice: 10, ScreeningRoom: 4, AvailableSeats: 5})

	rec := api.book(client.Access.Token, m.ID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ticket := decode[ticketBody](t, rec)
	etag := rec.Header().Get("ETag")

	rec = api.do(call{method: http.MethodPut, path: "/v1/tickets/" + ticket.ID, token: client.Access.Token, ifMatch: etag,
		body: map[string]any{"showing_time": "2026-11-02T18:30:00Z", "final_price": 1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(call{method: http.MethodPut, path: "/v1/tickets/" + ticket.ID, token: client.Access.Token,
		body: map[string]any{"showing_time": "2026-11-02T18:30:00Z"}})
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec = api.do(call{method: http.MethodPut, path: "/v1/tickets/" + ticket.ID, token: client.Access.Token, ifMatch: etag,
		body: map[string]any{"showing_time": "2026-11-02T18:30:00Z", "movie_id": m.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2026-11-02T18:30:00Z", decode[ticketBody](t, rec).ShowingTime)
	assert.NotEqual(t, etag, rec.Header().Get("ETag"))

	rec = api.do(call{method: http.MethodPut, path: "/v1/tickets/" + ticket.ID, token: client.Access.Token, ifMatch: etag,
		body: map[string]any{"showing_time": "2026-11-03T18:30:00Z"}})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestAccountSelfUpdateAndAdminLimits(t *testing.T) {
	api := newTestAPI(t)
	client := api.registerClient("hank")

	rec := api.do(call{method: http.MethodGet, path: "/v1/clients/self", token: client.Access.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = api.do(call{method: http.MethodPut, path: "/v1/clients/" + client.Account.ID, token: client.Access.Token, ifMatch: etag,
		body: map[string]any{"role": "ADMIN"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(call{method: http.MethodPut, path: "/v1/clients/" + client.Account.ID, token: client.Access.Token, ifMatch: etag,
		body: map[string]any{"password": "a-new-password"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	api.login("client", "hank", "a-new-password")

	admin := api.login("admin", "root", "root-password")
	rec = api.do(call{method: http.MethodPost, path: "/v1/auth/register/admin", token: admin.Access.Token,
		body: map[string]string{"login": "root2", "password": "root2-password"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	other := decode[struct {
		ID string `json:"id"`
	}](t, rec)
	otherTag := rec.Header().Get("ETag")

	rec = api.do(call{method: http.MethodPut, path: "/v1/admins/" + other.ID, token: admin.Access.Token, ifMatch: otherTag,
		body: map[string]any{"password": "hijacked-password"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(call{method: http.MethodPost, path: "/v1/clients/" + client.Account.ID + "/deactivate", token: admin.Access.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"active":false`)

	rec = api.do(call{method: http.MethodPost, path: "/v1/auth/login/client", body: map[string]string{"login": "hank", "password": "a-new-password"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(call{method: http.MethodGet, path: "/v1/clients?login=han", token: admin.Access.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), client.Account.ID)
}

// Seat and validation problems are only reported to a writer holding the
// movie's current ETag.
func TestMovieUpdateTokenCheckedBeforeSeats(t *testing.T) {
	api := newTestAPI(t)
	staff := api.staff()
	m, etag := api.createMovie(staff.Access.Token, movieBody{Title: "Rocky", BasePrice: 8, ScreeningRoom: 5, AvailableSeats: 2})
	for _, login := range []string{"ivan", "judy"} {
		rec := api.book(api.registerClient(login).Access.Token, m.ID)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	shrink := movieBody{Title: "Rocky", BasePrice: 8, ScreeningRoom: 5, AvailableSeats: 1}
	rec := api.do(call{method: http.MethodPut, path: "/v1/movies/" + m.ID, token: staff.Access.Token, body: shrink})
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec = api.do(call{method: http.MethodPut, path: "/v1/movies/" + m.ID, token: staff.Access.Token, ifMatch: `"stale"`,
		body: movieBody{Title: "", BasePrice: 8, ScreeningRoom: 5, AvailableSeats: 2}})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = api.do(call{method: http.MethodPut, path: "/v1/movies/" + m.ID, token: staff.Access.Token, ifMatch: etag, body: shrink})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// A deactivated staff member's access token stays valid until it expires,
// yet it can no longer change the program.
func TestDeactivatedStaffTokenCannotWrite(t *testing.T) {
	api := newTestAPI(t)
	staff := api.staff()
	admin := api.login("admin", "root", "root-password")

	rec := api.do(call{method: http.MethodPost, path: "/v1/staff/" + staff.Account.ID + "/deactivate", token: admin.Access.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(call{method: http.MethodPost, path: "/v1/movies", token: staff.Access.Token,
		body: movieBody{Title: "Rocky", BasePrice: 8, ScreeningRoom: 5, AvailableSeats: 2}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

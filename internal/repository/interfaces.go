package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// AccountStore persists accounts.  Logins are unique across all roles.
type AccountStore interface {
	Create(ctx context.Context, a model.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (model.Account, error)
	GetByLogin(ctx context.Context, login string) (model.Account, error)
	// List returns the accounts of one role whose login contains loginLike
	// (all of them when loginLike is empty), ordered by login.
	List(ctx context.Context, role model.Role, loginLike string) ([]model.Account, error)
	Swap(ctx context.Context, old, next model.Account) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (model.Account, error)
}

// MovieStore persists movies.
type MovieStore interface {
	Create(ctx context.Context, m model.Movie) error
	GetByID(ctx context.Context, id uuid.UUID) (model.Movie, error)
	List(ctx context.Context) ([]model.Movie, error)
	Swap(ctx context.Context, old, next model.Movie) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TicketFilter narrows a ticket listing.  Zero ids match everything.
type TicketFilter struct {
	ClientID uuid.UUID
	MovieID  uuid.UUID
}

// TicketStore persists tickets.
type TicketStore interface {
	Create(ctx context.Context, t model.Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (model.Ticket, error)
	List(ctx context.Context, f TicketFilter) ([]model.Ticket, error)
	// CountByMovie returns how many tickets reference the movie, read
	// live from the store.
	CountByMovie(ctx context.Context, movieID uuid.UUID) (int, error)
	Swap(ctx context.Context, old, next model.Ticket) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, accountID uuid.UUID, tokenHash string, exp time.Time) error
	// ValidateRefresh returns the owner of a live token, or
	// apperr.ErrNotFound when the token is unknown, revoked or expired.
	ValidateRefresh(ctx context.Context, tokenHash string) (uuid.UUID, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForAccount(ctx context.Context, accountID uuid.UUID) error
}

// Stores groups one implementation of every store.
type Stores struct {
	Accounts AccountStore
	Movies   MovieStore
	Tickets  TicketStore
	Tokens   TokenStore
}

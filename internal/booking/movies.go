package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/authz"
	"github.com/iliyamo/cinema-ticketing/internal/guard"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// CreateMovie adds a movie to the program.
func (e *Engine) CreateMovie(ctx context.Context, actor authz.Actor, m model.Movie) (model.Movie, string, error) {
	if err := e.authorizeWrite(ctx, authz.Create, authz.Movie, actor, uuid.Nil); err != nil {
		return model.Movie{}, "", err
	}
	m = m.Normalize()
	if err := m.Validate(); err != nil {
		return model.Movie{}, "", err
	}
	m.ID = uuid.New()
	if err := e.movies.Create(ctx, m); err != nil {
		return model.Movie{}, "", err
	}
	tok, err := e.guard.Token(m)
	return m, tok, err
}

// GetMovie returns one movie with its version token.
func (e *Engine) GetMovie(ctx context.Context, actor authz.Actor, id uuid.UUID) (model.Movie, string, error) {
	if err := authz.Authorize(authz.ReadOne, authz.Movie, actor, uuid.Nil); err != nil {
		return model.Movie{}, "", err
	}
	m, err := e.movies.GetByID(ctx, id)
	if err != nil {
		return model.Movie{}, "", err
	}
	tok, err := e.guard.Token(m)
	return m, tok, err
}

// ListMovies returns the whole program.
func (e *Engine) ListMovies(ctx context.Context, actor authz.Actor) ([]model.Movie, error) {
	if err := authz.Authorize(authz.ReadAll, authz.Movie, actor, uuid.Nil); err != nil {
		return nil, err
	}
	return e.movies.List(ctx)
}

// UpdateMovie replaces the fields of a movie.  It shares the movie's lock
// with ticket creation, so the seat count cannot drop below the tickets
// already sold.  Existing tickets keep the price they were sold at.
func (e *Engine) UpdateMovie(ctx context.Context, actor authz.Actor, id uuid.UUID, in model.Movie, token string) (model.Movie, string, error) {
	if err := e.authorizeWrite(ctx, authz.Update, authz.Movie, actor, uuid.Nil); err != nil {
		return model.Movie{}, "", err
	}
	return guard.CheckAndApply[model.Movie](ctx, e.guard, e.movies, movieKind, id, token, guard.Change[model.Movie]{
		Immutable: func(m model.Movie) error {
			if in.ID != uuid.Nil && in.ID != m.ID {
				return fmt.Errorf("movie id: %w", apperr.ErrImmutableField)
			}
			return nil
		},
		Apply: func(m model.Movie) (model.Movie, error) {
			next := in
			next.ID = m.ID
			next = next.Normalize()
			if err := next.Validate(); err != nil {
				return m, err
			}
			if next.AvailableSeats < m.AvailableSeats {
				reserved, err := e.tickets.CountByMovie(ctx, m.ID)
				if err != nil {
					return m, err
				}
				if next.AvailableSeats < reserved {
					return m, fmt.Errorf("%d tickets sold: %w", reserved, apperr.ErrCapacityBelowReserved)
				}
			}
			return next, nil
		},
	})
}

// DeleteMovie removes a movie that has no tickets.
func (e *Engine) DeleteMovie(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := e.authorizeWrite(ctx, authz.Delete, authz.Movie, actor, uuid.Nil); err != nil {
		return err
	}

	unlock, err := e.guard.Lock(ctx, guard.Key(movieKind, id))
	if err != nil {
		return fmt.Errorf("lock movie: %w", err)
	}
	defer unlock()

	if _, err := e.movies.GetByID(ctx, id); err != nil {
		return err
	}
	reserved, err := e.tickets.CountByMovie(ctx, id)
	if err != nil {
		return err
	}
	if reserved > 0 {
		return fmt.Errorf("%d tickets: %w", reserved, apperr.ErrReferentialConflict)
	}
	return e.movies.Delete(ctx, id)
}

// Availability reports capacity, sold and free seats of a movie.
func (e *Engine) Availability(ctx context.Context, actor authz.Actor, id uuid.UUID) (Availability, error) {
	if err := authz.Authorize(authz.ReadOne, authz.Movie, actor, uuid.Nil); err != nil {
		return Availability{}, err
	}
	m, err := e.movies.GetByID(ctx, id)
	if err != nil {
		return Availability{}, err
	}
	reserved, err := e.tickets.CountByMovie(ctx, id)
	if err != nil {
		return Availability{}, err
	}
	free := m.AvailableSeats - reserved
	if free < 0 {
		free = 0
	}
	return Availability{MovieID: id, Available: m.AvailableSeats, Reserved: reserved, Free: free}, nil
}

// Package booking sells seats.  It owns the rule that a movie never has
// more tickets than available seats: every operation that can change
// either side of that comparison runs under the movie's lock and re-reads
// the live ticket count inside it.
package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/authz"
	"github.com/iliyamo/cinema-ticketing/internal/guard"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

const (
	movieKind  = "movie"
	ticketKind = "ticket"
)

// Publisher delivers ticket lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev queue.TicketEvent) error
}

// Engine implements ticket and movie operations on top of the stores.
type Engine struct {
	accounts repository.AccountStore
	movies   repository.MovieStore
	tickets  repository.TicketStore
	guard    *guard.Guard
	events   Publisher
	now      func() time.Time
}

// NewEngine returns an Engine.  events may be nil, in which case no events
// are published.
func NewEngine(stores repository.Stores, g *guard.Guard, events Publisher) *Engine {
	return &Engine{
		accounts: stores.Accounts,
		movies:   stores.Movies,
		tickets:  stores.Tickets,
		guard:    g,
		events:   events,
		now:      time.Now,
	}
}

// TicketInput carries the client-supplied fields of a ticket.  On update
// only ShowingTime may differ from the stored ticket; zero ids and a nil
// price mean "unchanged".
type TicketInput struct {
	ID          uuid.UUID
	ShowingTime time.Time
	ClientID    uuid.UUID
	MovieID     uuid.UUID
	FinalPrice  *float64
}

// Availability describes the seat situation of a movie at one instant.
type Availability struct {
	MovieID   uuid.UUID `json:"movie_id"`
	Available int       `json:"available_seats"`
	Reserved  int       `json:"reserved"`
	Free      int       `json:"free"`
}

// CreateTicket books one seat of in.MovieID for in.ClientID.  The ticket
// price is the movie's base price at this moment.
func (e *Engine) CreateTicket(ctx context.Context, actor authz.Actor, in TicketInput) (model.Ticket, string, error) {
	if err := authz.Authorize(authz.Create, authz.Ticket, actor, in.ClientID); err != nil {
		return model.Ticket{}, "", err
	}
	if in.ShowingTime.IsZero() {
		return model.Ticket{}, "", fmt.Errorf("%w: showing time is required", apperr.ErrInvalidInput)
	}
	if in.MovieID == uuid.Nil {
		return model.Ticket{}, "", fmt.Errorf("%w: movie id is required", apperr.ErrInvalidInput)
	}

	unlock, err := e.guard.Lock(ctx, guard.Key(movieKind, in.MovieID))
	if err != nil {
		return model.Ticket{}, "", fmt.Errorf("lock movie: %w", err)
	}
	defer unlock()

	movie, err := e.movies.GetByID(ctx, in.MovieID)
	if err != nil {
		return model.Ticket{}, "", fmt.Errorf("movie %s: %w", in.MovieID, err)
	}
	client, err := e.accounts.GetByID(ctx, in.ClientID)
	if err != nil {
		return model.Ticket{}, "", fmt.Errorf("client %s: %w", in.ClientID, err)
	}
	if client.Role != model.RoleClient {
		return model.Ticket{}, "", fmt.Errorf("client %s: %w", in.ClientID, apperr.ErrNotFound)
	}
	if !client.Active {
		return model.Ticket{}, "", fmt.Errorf("client %s: %w", in.ClientID, apperr.ErrAccountInactive)
	}

	reserved, err := e.tickets.CountByMovie(ctx, movie.ID)
	if err != nil {
		return model.Ticket{}, "", err
	}
	if reserved >= movie.AvailableSeats {
		return model.Ticket{}, "", apperr.ErrAllocationExhausted
	}

	t := model.Ticket{
		ID:          uuid.New(),
		ShowingTime: model.NormalizeTime(in.ShowingTime),
		FinalPrice:  movie.BasePrice,
		ClientID:    client.ID,
		MovieID:     movie.ID,
	}
	if err := e.tickets.Create(ctx, t); err != nil {
		return model.Ticket{}, "", err
	}
	e.publish(queue.TicketBooked, t, movie.Title)

	tok, err := e.guard.Token(t)
	return t, tok, err
}

// authorizeWrite is Authorize followed by RequireActive.
func (e *Engine) authorizeWrite(ctx context.Context, action authz.Action, kind authz.Kind, actor authz.Actor, owner uuid.UUID) error {
	if err := authz.Authorize(action, kind, actor, owner); err != nil {
		return err
	}
	return authz.RequireActive(ctx, e.accounts, actor)
}

// precheckTicket turns away actors that may not perform action on any
// ticket before the ticket is loaded, so they learn nothing about which
// ids exist.  A client can still tell a missing ticket from another
// client's.
func precheckTicket(action authz.Action, actor authz.Actor) error {
	return authz.Authorize(action, authz.Ticket, actor, actor.ID)
}

// GetTicket returns one ticket with its version token.
func (e *Engine) GetTicket(ctx context.Context, actor authz.Actor, id uuid.UUID) (model.Ticket, string, error) {
	if err := precheckTicket(authz.ReadOne, actor); err != nil {
		return model.Ticket{}, "", err
	}
	t, err := e.tickets.GetByID(ctx, id)
	if err != nil {
		return model.Ticket{}, "", err
	}
	if err := authz.Authorize(authz.ReadOne, authz.Ticket, actor, t.ClientID); err != nil {
		return model.Ticket{}, "", err
	}
	tok, err := e.guard.Token(t)
	return t, tok, err
}

// ListTickets lists tickets matching f.  A client may only list its own
// tickets, so f.ClientID must be the actor's id for clients.
func (e *Engine) ListTickets(ctx context.Context, actor authz.Actor, f repository.TicketFilter) ([]model.Ticket, error) {
	if err := authz.Authorize(authz.ReadAll, authz.Ticket, actor, f.ClientID); err != nil {
		return nil, err
	}
	if f.MovieID != uuid.Nil {
		if _, err := e.movies.GetByID(ctx, f.MovieID); err != nil {
			return nil, fmt.Errorf("movie %s: %w", f.MovieID, err)
		}
	}
	return e.tickets.List(ctx, f)
}

// UpdateTicket changes the showing time of a ticket.  Any attempt to move
// the ticket to another client or movie, or to change its price, fails
// with apperr.ErrImmutableField.
func (e *Engine) UpdateTicket(ctx context.Context, actor authz.Actor, id uuid.UUID, in TicketInput, token string) (model.Ticket, string, error) {
	if err := precheckTicket(authz.Update, actor); err != nil {
		return model.Ticket{}, "", err
	}
	current, err := e.tickets.GetByID(ctx, id)
	if err != nil {
		return model.Ticket{}, "", err
	}
	if err := e.authorizeWrite(ctx, authz.Update, authz.Ticket, actor, current.ClientID); err != nil {
		return model.Ticket{}, "", err
	}

	return guard.CheckAndApply[model.Ticket](ctx, e.guard, e.tickets, ticketKind, id, token, guard.Change[model.Ticket]{
		Immutable: func(t model.Ticket) error {
			switch {
			case in.ID != uuid.Nil && in.ID != t.ID:
				return fmt.Errorf("ticket id: %w", apperr.ErrImmutableField)
			case in.ClientID != uuid.Nil && in.ClientID != t.ClientID:
				return fmt.Errorf("client id: %w", apperr.ErrImmutableField)
			case in.MovieID != uuid.Nil && in.MovieID != t.MovieID:
				return fmt.Errorf("movie id: %w", apperr.ErrImmutableField)
			case in.FinalPrice != nil && model.RoundPrice(*in.FinalPrice) != t.FinalPrice:
				return fmt.Errorf("final price: %w", apperr.ErrImmutableField)
			}
			return nil
		},
		Apply: func(t model.Ticket) (model.Ticket, error) {
			if !in.ShowingTime.IsZero() {
				t.ShowingTime = model.NormalizeTime(in.ShowingTime)
			}
			return t, nil
		},
	})
}

// DeleteTicket cancels a ticket, which frees its seat.
func (e *Engine) DeleteTicket(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := precheckTicket(authz.Delete, actor); err != nil {
		return err
	}
	t, err := e.tickets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := e.authorizeWrite(ctx, authz.Delete, authz.Ticket, actor, t.ClientID); err != nil {
		return err
	}

	unlock, err := e.guard.Lock(ctx, guard.Key(movieKind, t.MovieID))
	if err != nil {
		return fmt.Errorf("lock movie: %w", err)
	}
	defer unlock()

	if err := e.tickets.Delete(ctx, id); err != nil {
		return err
	}
	e.publish(queue.TicketCancelled, t, "")
	return nil
}

// publish sends an event in the background.  Broker failures never fail
// the booking; they are logged here.
func (e *Engine) publish(kind string, t model.Ticket, title string) {
	if e.events == nil {
		return
	}
	ev := queue.TicketEvent{
		Type:        kind,
		TicketID:    t.ID.String(),
		ClientID:    t.ClientID.String(),
		MovieID:     t.MovieID.String(),
		MovieTitle:  title,
		ShowingTime: t.ShowingTime,
		FinalPrice:  t.FinalPrice,
		OccurredAt:  e.now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.events.Publish(ctx, ev); err != nil {
			log.Printf("booking: publish %s for ticket %s: %v", kind, ev.TicketID, err)
		}
	}()
}

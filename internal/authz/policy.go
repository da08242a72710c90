// Package authz decides whether an actor may perform an action on a kind
// of resource.  The policy is a flat decision table over the actor's role,
// the action, the resource kind and, for owned resources, the owner id.
// Allow performs no I/O: callers load whatever they need to know the owner
// before asking.  RequireActive is the one check that reads the account
// store.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// Action is an operation a caller wants to perform.
type Action int

const (
	Create Action = iota
	ReadOne
	ReadAll
	Update
	Activate
	Deactivate
	Delete
	Login
)

var actionNames = [...]string{"create", "read", "list", "update", "activate", "deactivate", "delete", "login"}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Kind is the kind of resource an action targets.
type Kind int

const (
	Client Kind = iota
	Staff
	Admin
	Movie
	Ticket
)

var kindNames = [...]string{"client", "staff", "admin", "movie", "ticket"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsAccount reports whether k is one of the account kinds.
func (k Kind) IsAccount() bool {
	return k == Client || k == Staff || k == Admin
}

// KindOf maps an account role to its resource kind.
func KindOf(r model.Role) Kind {
	switch r {
	case model.RoleStaff:
		return Staff
	case model.RoleAdmin:
		return Admin
	}
	return Client
}

// RoleOf maps an account kind back to the role it stores.
func RoleOf(k Kind) model.Role {
	switch k {
	case Staff:
		return model.RoleStaff
	case Admin:
		return model.RoleAdmin
	}
	return model.RoleClient
}

// Actor is the identity a request acts as.  The zero value is the
// anonymous actor.
type Actor struct {
	ID   uuid.UUID
	Role model.Role
}

// Anonymous is the actor of requests without credentials.
var Anonymous = Actor{}

// IsAnonymous reports whether a carries no identity.
func (a Actor) IsAnonymous() bool {
	return a.ID == uuid.Nil || !a.Role.Valid()
}

func (a Actor) is(r model.Role) bool {
	return !a.IsAnonymous() && a.Role == r
}

// Allow reports whether actor may perform action on a resource of the given
// kind.  owner is the account id of the resource owner: the account itself
// for account kinds, the ticket's client for tickets, and the client whose
// tickets are listed for ticket listings.  It is uuid.Nil when not
// applicable.  Rules are evaluated top to bottom and the first match wins;
// anything not matched is denied.
func Allow(action Action, kind Kind, actor Actor, owner uuid.UUID) bool {
	if action == Login && kind.IsAccount() {
		return true
	}

	if actor.IsAnonymous() {
		return action == Create && kind == Client
	}

	if kind.IsAccount() {
		self := owner != uuid.Nil && owner == actor.ID && KindOf(actor.Role) == kind
		if self && (action == ReadOne || action == Update) {
			return true
		}
		if action == Update {
			return false
		}
		if actor.is(model.RoleStaff) && kind == Client {
			return action == ReadOne || action == ReadAll
		}
		if actor.is(model.RoleAdmin) {
			switch action {
			case ReadOne, ReadAll, Activate, Deactivate, Create:
				return true
			}
		}
		return false
	}

	switch kind {
	case Movie:
		switch action {
		case Create, Update, Delete, ReadAll:
			return actor.is(model.RoleStaff)
		case ReadOne:
			return actor.is(model.RoleStaff) || actor.is(model.RoleClient)
		}
	case Ticket:
		owns := actor.is(model.RoleClient) && owner != uuid.Nil && owner == actor.ID
		switch action {
		case Create, Update, Delete:
			return owns
		case ReadOne, ReadAll:
			return owns || actor.is(model.RoleStaff)
		}
	}
	return false
}

// Authorize is Allow expressed as an error.  A denial is reported as
// apperr.ErrUnauthenticated for the anonymous actor and as
// apperr.ErrUnauthorized otherwise.
func Authorize(action Action, kind Kind, actor Actor, owner uuid.UUID) error {
	if Allow(action, kind, actor, owner) {
		return nil
	}
	if actor.IsAnonymous() {
		return fmt.Errorf("%s %s: %w", action, kind, apperr.ErrUnauthenticated)
	}
	return fmt.Errorf("%s %s: %w", action, kind, apperr.ErrUnauthorized)
}

// AccountLookup loads an account by id.
type AccountLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.Account, error)
}

// RequireActive fails with apperr.ErrUnauthorized when the actor's account
// was deactivated or removed after its access token was issued.  Access
// tokens outlive a deactivation, so writes check the stored flag.  The
// anonymous actor passes; Authorize decides about it.
func RequireActive(ctx context.Context, accounts AccountLookup, actor Actor) error {
	if actor.IsAnonymous() {
		return nil
	}
	a, err := accounts.GetByID(ctx, actor.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("account %s is gone: %w", actor.ID, apperr.ErrUnauthorized)
	}
	if err != nil {
		return err
	}
	if !a.Active || a.Role != actor.Role {
		return fmt.Errorf("account %s is not active: %w", actor.ID, apperr.ErrUnauthorized)
	}
	return nil
}

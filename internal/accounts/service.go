// Package accounts manages client, staff and admin accounts: registration,
// credential checks, self-service updates guarded by version tokens, and
// activation by admins.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/authz"
	"github.com/iliyamo/cinema-ticketing/internal/guard"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/utils"
)

const (
	accountKind       = "account"
	minPasswordLength = 8
	maxLoginLength    = 64
)

// Service implements account operations.
type Service struct {
	accounts   repository.AccountStore
	tokens     repository.TokenStore
	guard      *guard.Guard
	bcryptCost int
}

// NewService returns a Service hashing passwords with bcryptCost.
func NewService(stores repository.Stores, g *guard.Guard, bcryptCost int) *Service {
	return &Service{accounts: stores.Accounts, tokens: stores.Tokens, guard: g, bcryptCost: bcryptCost}
}

// Changes carries the fields of an account update.  Only the password may
// change; every other field, when present, must equal the stored value.
type Changes struct {
	ID       uuid.UUID
	Login    *string
	Password *string
	Role     model.Role
	Active   *bool
}

func validateCredentials(login, password string) error {
	switch {
	case login == "":
		return fmt.Errorf("%w: login is required", apperr.ErrInvalidInput)
	case len(login) > maxLoginLength:
		return fmt.Errorf("%w: login is longer than %d characters", apperr.ErrInvalidInput, maxLoginLength)
	case len(password) < minPasswordLength:
		return fmt.Errorf("%w: password must have at least %d characters", apperr.ErrInvalidInput, minPasswordLength)
	}
	return nil
}

// Register creates an active account of the given kind.
func (s *Service) Register(ctx context.Context, actor authz.Actor, kind authz.Kind, login, password string) (model.Account, string, error) {
	if !kind.IsAccount() {
		return model.Account{}, "", fmt.Errorf("%w: %s is not an account kind", apperr.ErrInvalidInput, kind)
	}
	if err := authz.Authorize(authz.Create, kind, actor, uuid.Nil); err != nil {
		return model.Account{}, "", err
	}
	if err := authz.RequireActive(ctx, s.accounts, actor); err != nil {
		return model.Account{}, "", err
	}
	login = model.NormalizeLogin(login)
	if err := validateCredentials(login, password); err != nil {
		return model.Account{}, "", err
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.Account{}, "", err
	}
	a := model.Account{
		ID:           uuid.New(),
		Login:        login,
		PasswordHash: hash,
		Role:         authz.RoleOf(kind),
		Active:       true,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return model.Account{}, "", err
	}
	tok, err := s.guard.Token(a)
	return a, tok, err
}

// Authenticate checks a login of the given kind.  Unknown logins, wrong
// passwords and logins of another kind all yield
// apperr.ErrInvalidCredentials; a deactivated account yields
// apperr.ErrAccountInactive.
func (s *Service) Authenticate(ctx context.Context, kind authz.Kind, login, password string) (model.Account, error) {
	if err := authz.Authorize(authz.Login, kind, authz.Anonymous, uuid.Nil); err != nil {
		return model.Account{}, err
	}
	a, err := s.accounts.GetByLogin(ctx, model.NormalizeLogin(login))
	if errors.Is(err, apperr.ErrNotFound) {
		return model.Account{}, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return model.Account{}, err
	}
	if authz.KindOf(a.Role) != kind || !utils.VerifyPassword(a.PasswordHash, password) {
		return model.Account{}, apperr.ErrInvalidCredentials
	}
	if !a.Active {
		return model.Account{}, apperr.ErrAccountInactive
	}
	return a, nil
}

// load fetches an account and hides accounts of another kind.
func (s *Service) load(ctx context.Context, kind authz.Kind, id uuid.UUID) (model.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	if authz.KindOf(a.Role) != kind {
		return model.Account{}, apperr.ErrNotFound
	}
	return a, nil
}

// Get returns one account with its version token.
func (s *Service) Get(ctx context.Context, actor authz.Actor, kind authz.Kind, id uuid.UUID) (model.Account, string, error) {
	if actor.IsAnonymous() {
		return model.Account{}, "", apperr.ErrUnauthenticated
	}
	a, err := s.load(ctx, kind, id)
	if err != nil {
		return model.Account{}, "", err
	}
	if err := authz.Authorize(authz.ReadOne, kind, actor, a.ID); err != nil {
		return model.Account{}, "", err
	}
	tok, err := s.guard.Token(a)
	return a, tok, err
}

// GetByLogin returns one account looked up by login.
func (s *Service) GetByLogin(ctx context.Context, actor authz.Actor, kind authz.Kind, login string) (model.Account, string, error) {
	if actor.IsAnonymous() {
		return model.Account{}, "", apperr.ErrUnauthenticated
	}
	a, err := s.accounts.GetByLogin(ctx, model.NormalizeLogin(login))
	if err != nil {
		return model.Account{}, "", err
	}
	if authz.KindOf(a.Role) != kind {
		return model.Account{}, "", apperr.ErrNotFound
	}
	if err := authz.Authorize(authz.ReadOne, kind, actor, a.ID); err != nil {
		return model.Account{}, "", err
	}
	tok, err := s.guard.Token(a)
	return a, tok, err
}

// List returns the accounts of one kind, optionally filtered by a login
// substring.
func (s *Service) List(ctx context.Context, actor authz.Actor, kind authz.Kind, loginLike string) ([]model.Account, error) {
	if err := authz.Authorize(authz.ReadAll, kind, actor, uuid.Nil); err != nil {
		return nil, err
	}
	return s.accounts.List(ctx, authz.RoleOf(kind), loginLike)
}

// Update changes the password of the actor's own account.  The new
// password is hashed before taking the account's lock.  Existing refresh tokens are revoked after a
// password change.
func (s *Service) Update(ctx context.Context, actor authz.Actor, kind authz.Kind, id uuid.UUID, in Changes, token string) (model.Account, string, error) {
	if actor.IsAnonymous() {
		return model.Account{}, "", apperr.ErrUnauthenticated
	}
	if _, err := s.load(ctx, kind, id); err != nil {
		return model.Account{}, "", err
	}
	if err := authz.Authorize(authz.Update, kind, actor, id); err != nil {
		return model.Account{}, "", err
	}

	if err := authz.RequireActive(ctx, s.accounts, actor); err != nil {
		return model.Account{}, "", err
	}

	// bcrypt stays outside the lock; a too short password is reported by
	// Apply so that it never hides a token problem.
	var hash string
	if in.Password != nil && len(*in.Password) >= minPasswordLength {
		h, err := utils.HashPassword(*in.Password, s.bcryptCost)
		if err != nil {
			return model.Account{}, "", err
		}
		hash = h
	}

	a, tok, err := guard.CheckAndApply[model.Account](ctx, s.guard, s.accounts, accountKind, id, token, guard.Change[model.Account]{
		Immutable: func(a model.Account) error {
			switch {
			case in.ID != uuid.Nil && in.ID != a.ID:
				return fmt.Errorf("id: %w", apperr.ErrImmutableField)
			case in.Login != nil && model.NormalizeLogin(*in.Login) != a.Login:
				return fmt.Errorf("login: %w", apperr.ErrImmutableField)
			case in.Role != "" && in.Role != a.Role:
				return fmt.Errorf("role: %w", apperr.ErrImmutableField)
			case in.Active != nil && *in.Active != a.Active:
				return fmt.Errorf("active: %w", apperr.ErrImmutableField)
			}
			return nil
		},
		Apply: func(a model.Account) (model.Account, error) {
			if in.Password != nil && hash == "" {
				return a, fmt.Errorf("%w: password must have at least %d characters", apperr.ErrInvalidInput, minPasswordLength)
			}
			if hash != "" {
				a.PasswordHash = hash
			}
			return a, nil
		},
	})
	if err != nil {
		return model.Account{}, "", err
	}
	if hash != "" {
		if err := s.tokens.RevokeAllForAccount(ctx, a.ID); err != nil {
			log.Printf("accounts: revoke refresh tokens of %s: %v", a.ID, err)
		}
	}
	return a, tok, nil
}

// SetActive activates or deactivates an account.  Deactivated accounts
// keep their data and tickets but cannot log in or refresh sessions.
func (s *Service) SetActive(ctx context.Context, actor authz.Actor, kind authz.Kind, id uuid.UUID, active bool) (model.Account, string, error) {
	action := authz.Deactivate
	if active {
		action = authz.Activate
	}
	if err := authz.Authorize(action, kind, actor, id); err != nil {
		return model.Account{}, "", err
	}
	if err := authz.RequireActive(ctx, s.accounts, actor); err != nil {
		return model.Account{}, "", err
	}
	unlock, err := s.guard.Lock(ctx, guard.Key(accountKind, id))
	if err != nil {
		return model.Account{}, "", fmt.Errorf("lock account: %w", err)
	}
	defer unlock()

	if _, err := s.load(ctx, kind, id); err != nil {
		return model.Account{}, "", err
	}
	a, err := s.accounts.SetActive(ctx, id, active)
	if err != nil {
		return model.Account{}, "", err
	}
	if !active {
		if err := s.tokens.RevokeAllForAccount(ctx, id); err != nil {
			log.Printf("accounts: revoke refresh tokens of %s: %v", id, err)
		}
	}
	tok, err := s.guard.Token(a)
	return a, tok, err
}

// SeedAdmin creates an admin account with the given credentials unless the
// login already exists.  It reports whether an account was created.
func (s *Service) SeedAdmin(ctx context.Context, login, password string) (bool, error) {
	login = model.NormalizeLogin(login)
	if _, err := s.accounts.GetByLogin(ctx, login); err == nil {
		return false, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}
	if err := validateCredentials(login, password); err != nil {
		return false, err
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return false, err
	}
	a := model.Account{ID: uuid.New(), Login: login, PasswordHash: hash, Role: model.RoleAdmin, Active: true}
	if err := s.accounts.Create(ctx, a); err != nil {
		if errors.Is(err, apperr.ErrLoginTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

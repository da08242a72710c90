// Package guard implements optimistic concurrency for entity updates.  An
// update presents the version token it last saw; the guard serializes
// updates per entity, recomputes the token from the stored state and only
// applies the change when both agree.  A stale writer gets
// apperr.ErrPreconditionFailed instead of overwriting a change it never
// saw.
package guard

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
)

// Repo is the slice of a store the guard needs.  Swap must replace old
// with new only if the stored row still equals old, and report
// apperr.ErrPreconditionFailed otherwise.
type Repo[T Versioned] interface {
	GetByID(ctx context.Context, id uuid.UUID) (T, error)
	Swap(ctx context.Context, old, new T) error
}

// Guard couples the token signer with the per-entity lock.
type Guard struct {
	signer *Signer
	locker Locker
}

// New returns a Guard.  A nil locker selects a LocalLocker.
func New(signer *Signer, locker Locker) *Guard {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Guard{signer: signer, locker: locker}
}

// Signer returns the token signer.
func (g *Guard) Signer() *Signer { return g.signer }

// Token returns the current version token of v.
func (g *Guard) Token(v Versioned) (string, error) { return g.signer.Token(v) }

// Lock acquires the lock for one entity key, e.g. "movie:<id>".
func (g *Guard) Lock(ctx context.Context, key string) (func(), error) {
	return g.locker.Lock(ctx, key)
}

// Key builds the lock key of an entity.
func Key(kind string, id uuid.UUID) string {
	return kind + ":" + id.String()
}

// Change describes one update of a T.  Immutable compares the request
// with the stored entity and may only report apperr.ErrImmutableField; it
// runs before the version check.  Apply builds the new state, including
// any validation or store checks that must hold at write time, and runs
// only for a writer that presented the current token.  Both run under the
// entity lock.  Immutable may be nil.
type Change[T any] struct {
	Immutable func(T) error
	Apply     func(T) (T, error)
}

// CheckAndApply loads entity id and, if presented is the entity's current
// version token, persists ch.Apply's result.  It returns the new state
// with its fresh token.
//
// Errors come in a fixed order: not found, immutable field, missing
// token, stale token, then whatever Apply reports.
func CheckAndApply[T Versioned](ctx context.Context, g *Guard, repo Repo[T], kind string, id uuid.UUID, presented string, ch Change[T]) (T, string, error) {
	var zero T

	unlock, err := g.locker.Lock(ctx, Key(kind, id))
	if err != nil {
		return zero, "", fmt.Errorf("lock %s: %w", kind, err)
	}
	defer unlock()

	current, err := repo.GetByID(ctx, id)
	if err != nil {
		return zero, "", err
	}

	if ch.Immutable != nil {
		if err := ch.Immutable(current); err != nil {
			return zero, "", err
		}
	}

	presented = Normalize(presented)
	if presented == "" {
		return zero, "", apperr.ErrPreconditionRequired
	}
	if !g.signer.Matches(current, presented) {
		return zero, "", apperr.ErrPreconditionFailed
	}

	next, err := ch.Apply(current)
	if err != nil {
		return zero, "", err
	}
	if err := repo.Swap(ctx, current, next); err != nil {
		return zero, "", err
	}
	tok, err := g.signer.Token(next)
	if err != nil {
		return zero, "", err
	}
	return next, tok, nil
}

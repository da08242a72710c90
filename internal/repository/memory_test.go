package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

func TestMemoryAccountLoginIsUniqueAcrossRoles(t *testing.T) {
	s := NewMemoryAccountStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, model.Account{ID: uuid.New(), Login: "neo", Role: model.RoleClient, Active: true}))

	err := s.Create(ctx, model.Account{ID: uuid.New(), Login: "neo", Role: model.RoleStaff, Active: true})
	assert.ErrorIs(t, err, apperr.ErrLoginTaken)
}

func TestMemoryAccountListFiltersByRoleAndLogin(t *testing.T) {
	s := NewMemoryAccountStore()
	ctx := context.Background()
	for _, a := range []model.Account{
		{ID: uuid.New(), Login: "bob", Role: model.RoleClient},
		{ID: uuid.New(), Login: "alice", Role: model.RoleClient},
		{ID: uuid.New(), Login: "bobby", Role: model.RoleStaff},
	} {
		require.NoError(t, s.Create(ctx, a))
	}

	all, err := s.List(ctx, model.RoleClient, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Login)

	bobs, err := s.List(ctx, model.RoleClient, "bo")
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, "bob", bobs[0].Login)
}

func TestMemoryAccountSwapDetectsConcurrentChange(t *testing.T) {
	s := NewMemoryAccountStore()
	ctx := context.Background()
	a := model.Account{ID: uuid.New(), Login: "neo", PasswordHash: "h1", Role: model.RoleClient, Active: true}
	require.NoError(t, s.Create(ctx, a))

	b := a
	b.PasswordHash = "h2"
	require.NoError(t, s.Swap(ctx, a, b))

	c := a
	c.PasswordHash = "h3"
	assert.ErrorIs(t, s.Swap(ctx, a, c), apperr.ErrPreconditionFailed)

	got, err := s.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)

	missing := a
	missing.ID = uuid.New()
	assert.ErrorIs(t, s.Swap(ctx, missing, missing), apperr.ErrNotFound)
}

func TestMemoryAccountSetActive(t *testing.T) {
	s := NewMemoryAccountStore()
	ctx := context.Background()
	a := model.Account{ID: uuid.New(), Login: "neo", Role: model.RoleClient, Active: true}
	require.NoError(t, s.Create(ctx, a))

	got, err := s.SetActive(ctx, a.ID, false)
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = s.SetActive(ctx, uuid.New(), true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryTicketListAndCount(t *testing.T) {
	s := NewMemoryTicketStore()
	ctx := context.Background()
	m1, m2 := uuid.New(), uuid.New()
	c1, c2 := uuid.New(), uuid.New()
	base := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	tickets := []model.Ticket{
		{ID: uuid.New(), ShowingTime: base.Add(2 * time.Hour), MovieID: m1, ClientID: c1},
		{ID: uuid.New(), ShowingTime: base, MovieID: m1, ClientID: c2},
		{ID: uuid.New(), ShowingTime: base, MovieID: m2, ClientID: c1},
	}
	for _, tk := range tickets {
		require.NoError(t, s.Create(ctx, tk))
	}

	n, err := s.CountByMovie(ctx, m1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	byMovie, err := s.List(ctx, TicketFilter{MovieID: m1})
	require.NoError(t, err)
	require.Len(t, byMovie, 2)
	assert.True(t, byMovie[0].ShowingTime.Before(byMovie[1].ShowingTime))

	byBoth, err := s.List(ctx, TicketFilter{MovieID: m1, ClientID: c1})
	require.NoError(t, err)
	assert.Len(t, byBoth, 1)

	all, err := s.List(ctx, TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.Delete(ctx, tickets[0].ID))
	assert.ErrorIs(t, s.Delete(ctx, tickets[0].ID), apperr.ErrNotFound)
	n, _ = s.CountByMovie(ctx, m1)
	assert.Equal(t, 1, n)
}

func TestMemoryTicketSwapComparesTimesByInstant(t *testing.T) {
	s := NewMemoryTicketStore()
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	tk := model.Ticket{ID: uuid.New(), ShowingTime: at, MovieID: uuid.New(), ClientID: uuid.New()}
	require.NoError(t, s.Create(ctx, tk))

	old := tk
	old.ShowingTime = at.In(time.FixedZone("X", 3600))
	next := tk
	next.ShowingTime = at.Add(time.Hour)
	require.NoError(t, s.Swap(ctx, old, next))
}

func TestMemoryTokenLifecycle(t *testing.T) {
	s := NewMemoryTokenStore()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.StoreRefresh(ctx, id, "h1", time.Now().Add(time.Hour)))
	require.NoError(t, s.StoreRefresh(ctx, id, "h2", time.Now().Add(time.Hour)))
	require.NoError(t, s.StoreRefresh(ctx, id, "old", time.Now().Add(-time.Hour)))

	got, err := s.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = s.ValidateRefresh(ctx, "old")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, s.RevokeByHash(ctx, "h1"))
	_, err = s.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, s.RevokeAllForAccount(ctx, id))
	_, err = s.ValidateRefresh(ctx, "h2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_a\\b`, escapeLike(`50%_a\b`))
}

package guard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

type movieRepo struct {
	mu sync.Mutex
	m  map[uuid.UUID]model.Movie
}

func (r *movieRepo) GetByID(_ context.Context, id uuid.UUID) (model.Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mv, ok := r.m[id]
	if !ok {
		return model.Movie{}, apperr.ErrNotFound
	}
	return mv, nil
}

func (r *movieRepo) Swap(_ context.Context, old, next model.Movie) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.m[old.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if cur != old {
		return apperr.ErrPreconditionFailed
	}
	r.m[old.ID] = next
	return nil
}

func newFixture(t *testing.T) (*Guard, *movieRepo, model.Movie) {
	t.Helper()
	mv := model.Movie{ID: uuid.New(), Title: "Pulp Fiction", BasePrice: 45.75, ScreeningRoom: 1, AvailableSeats: 100}
	repo := &movieRepo{m: map[uuid.UUID]model.Movie{mv.ID: mv}}
	return New(NewSigner("test-secret"), NewLocalLocker()), repo, mv
}

func retitle(title string) Change[model.Movie] {
	return Change[model.Movie]{Apply: func(m model.Movie) (model.Movie, error) {
		m.Title = title
		return m, nil
	}}
}

func TestTokenIsPureFunctionOfContent(t *testing.T) {
	s := NewSigner("k")
	a := model.Movie{ID: uuid.New(), Title: "Up", BasePrice: 10, ScreeningRoom: 2, AvailableSeats: 5}
	b := a

	ta, err := s.Token(a)
	require.NoError(t, err)
	tb, err := s.Token(b)
	require.NoError(t, err)
	assert.Equal(t, ta, tb)

	changes := []func(*model.Movie){
		func(m *model.Movie) { m.Title = "Down" },
		func(m *model.Movie) { m.BasePrice = 10.01 },
		func(m *model.Movie) { m.ScreeningRoom = 3 },
		func(m *model.Movie) { m.AvailableSeats = 6 },
		func(m *model.Movie) { m.ID = uuid.New() },
	}
	for i, change := range changes {
		c := a
		change(&c)
		tc, err := s.Token(c)
		require.NoError(t, err)
		assert.NotEqual(t, ta, tc, "change %d", i)
	}
}

func TestTokenDependsOnKey(t *testing.T) {
	mv := model.Movie{ID: uuid.New(), Title: "Up"}
	t1, _ := NewSigner("a").Token(mv)
	t2, _ := NewSigner("b").Token(mv)
	assert.NotEqual(t, t1, t2)
}

func TestMatchesAcceptsHeaderForms(t *testing.T) {
	s := NewSigner("k")
	mv := model.Movie{ID: uuid.New(), Title: "Up"}
	tok, err := s.Token(mv)
	require.NoError(t, err)

	assert.True(t, s.Matches(mv, tok))
	assert.True(t, s.Matches(mv, Quote(tok)))
	assert.True(t, s.Matches(mv, `W/"`+tok+`"`))
	assert.False(t, s.Matches(mv, "garbage!"))
	assert.False(t, s.Matches(mv, ""))
}

func TestCheckAndApplyUpdatesAndReturnsFreshToken(t *testing.T) {
	g, repo, mv := newFixture(t)
	tok, _ := g.Token(mv)

	got, newTok, err := CheckAndApply[model.Movie](context.Background(), g, repo, "movie", mv.ID, Quote(tok), retitle("Jackie Brown"))
	require.NoError(t, err)
	assert.Equal(t, "Jackie Brown", got.Title)
	assert.NotEqual(t, tok, newTok)

	stored, _ := repo.GetByID(context.Background(), mv.ID)
	assert.Equal(t, got, stored)
	want, _ := g.Token(stored)
	assert.Equal(t, want, newTok)
}

func TestCheckAndApplyMissingToken(t *testing.T) {
	g, repo, mv := newFixture(t)
	_, _, err := CheckAndApply[model.Movie](context.Background(), g, repo, "movie", mv.ID, "", retitle("x"))
	assert.ErrorIs(t, err, apperr.ErrPreconditionRequired)

	stored, _ := repo.GetByID(context.Background(), mv.ID)
	assert.Equal(t, mv, stored)
}

func TestCheckAndApplyStaleToken(t *testing.T) {
	g, repo, mv := newFixture(t)
	tok, _ := g.Token(mv)
	ctx := context.Background()

	_, _, err := CheckAndApply[model.Movie](ctx, g, repo, "movie", mv.ID, tok, retitle("first"))
	require.NoError(t, err)

	_, _, err = CheckAndApply[model.Movie](ctx, g, repo, "movie", mv.ID, tok, retitle("second"))
	assert.ErrorIs(t, err, apperr.ErrPreconditionFailed)

	stored, _ := repo.GetByID(ctx, mv.ID)
	assert.Equal(t, "first", stored.Title)
}

func TestCheckAndApplyImmutableWinsOverToken(t *testing.T) {
	g, repo, mv := newFixture(t)
	reject := retitle("x")
	reject.Immutable = func(model.Movie) error { return apperr.ErrImmutableField }
	_, _, err := CheckAndApply[model.Movie](context.Background(), g, repo, "movie", mv.ID, "", reject)
	assert.ErrorIs(t, err, apperr.ErrImmutableField)
	_, _, err = CheckAndApply[model.Movie](context.Background(), g, repo, "movie", mv.ID, "stale", reject)
	assert.ErrorIs(t, err, apperr.ErrImmutableField)
}

// Validation inside Apply must not leak to a writer without the current
// token: it sees 428 or 412 first.
func TestCheckAndApplyTokenCheckedBeforeApply(t *testing.T) {
	g, repo, mv := newFixture(t)
	applied := 0
	invalid := Change[model.Movie]{Apply: func(m model.Movie) (model.Movie, error) {
		applied++
		return m, apperr.ErrInvalidInput
	}}
	ctx := context.Background()

	_, _, err := CheckAndApply[model.Movie](ctx, g, repo, "movie", mv.ID, "", invalid)
	assert.ErrorIs(t, err, apperr.ErrPreconditionRequired)
	_, _, err = CheckAndApply[model.Movie](ctx, g, repo, "movie", mv.ID, "stale", invalid)
	assert.ErrorIs(t, err, apperr.ErrPreconditionFailed)
	assert.Equal(t, 0, applied)

	tok, _ := g.Token(mv)
	_, _, err = CheckAndApply[model.Movie](ctx, g, repo, "movie", mv.ID, tok, invalid)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Equal(t, 1, applied)
}

func TestCheckAndApplyNotFound(t *testing.T) {
	g, repo, _ := newFixture(t)
	_, _, err := CheckAndApply[model.Movie](context.Background(), g, repo, "movie", uuid.New(), "x", retitle("x"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// Concurrent writers holding the same token: exactly one wins.
func TestCheckAndApplyConcurrentWritersOneWins(t *testing.T) {
	g, repo, mv := newFixture(t)
	tok, _ := g.Token(mv)

	const n = 16
	var ok, stale int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := CheckAndApply[model.Movie](context.Background(), g, repo, "movie", mv.ID, tok, retitle(fmt.Sprintf("w%d", i)))
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case assert.ErrorIs(t, err, apperr.ErrPreconditionFailed):
				atomic.AddInt32(&stale, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, ok)
	assert.EqualValues(t, n-1, stale)
}

func TestLocalLockerExcludesSameKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "movie:1")
			if !assert.NoError(t, err) {
				return
			}
			v := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if v <= m || atomic.CompareAndSwapInt32(&maxInside, m, v) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, maxInside)
	assert.Equal(t, 0, l.held())
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	u1, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer u1()

	ctx2, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	u2, err := l.Lock(ctx2, "b")
	require.NoError(t, err)
	u2()
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, l.held())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "abc", Normalize(`"abc"`))
	assert.Equal(t, "abc", Normalize(` W/"abc" `))
	assert.Equal(t, "abc", Normalize("abc"))
	assert.Equal(t, "", Normalize(`""`))
}

package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// NewMemoryStores returns empty in-memory stores.  Data lives as long as
// the process.
func NewMemoryStores() Stores {
	return Stores{
		Accounts: NewMemoryAccountStore(),
		Movies:   NewMemoryMovieStore(),
		Tickets:  NewMemoryTicketStore(),
		Tokens:   NewMemoryTokenStore(),
	}
}

// MemoryAccountStore keeps accounts in a map guarded by a mutex.
type MemoryAccountStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]model.Account
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: map[uuid.UUID]model.Account{}}
}

func (s *MemoryAccountStore) loginTaken(login string, except uuid.UUID) bool {
	for id, a := range s.accounts {
		if id != except && a.Login == login {
			return true
		}
	}
	return false
}

func (s *MemoryAccountStore) Create(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loginTaken(a.Login, uuid.Nil) {
		return apperr.ErrLoginTaken
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *MemoryAccountStore) GetByID(_ context.Context, id uuid.UUID) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, apperr.ErrNotFound
	}
	return a, nil
}

func (s *MemoryAccountStore) GetByLogin(_ context.Context, login string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Login == login {
			return a, nil
		}
	}
	return model.Account{}, apperr.ErrNotFound
}

func (s *MemoryAccountStore) List(_ context.Context, role model.Role, loginLike string) ([]model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Account{}
	for _, a := range s.accounts {
		if a.Role == role && strings.Contains(a.Login, loginLike) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out, nil
}

func (s *MemoryAccountStore) Swap(_ context.Context, old, next model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.accounts[old.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if cur != old {
		return apperr.ErrPreconditionFailed
	}
	if s.loginTaken(next.Login, old.ID) {
		return apperr.ErrLoginTaken
	}
	s.accounts[old.ID] = next
	return nil
}

func (s *MemoryAccountStore) SetActive(_ context.Context, id uuid.UUID, active bool) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, apperr.ErrNotFound
	}
	a.Active = active
	s.accounts[id] = a
	return a, nil
}

// MemoryMovieStore keeps movies in a map guarded by a mutex.
type MemoryMovieStore struct {
	mu     sync.Mutex
	movies map[uuid.UUID]model.Movie
}

func NewMemoryMovieStore() *MemoryMovieStore {
	return &MemoryMovieStore{movies: map[uuid.UUID]model.Movie{}}
}

func (s *MemoryMovieStore) Create(_ context.Context, m model.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies[m.ID] = m
	return nil
}

func (s *MemoryMovieStore) GetByID(_ context.Context, id uuid.UUID) (model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[id]
	if !ok {
		return model.Movie{}, apperr.ErrNotFound
	}
	return m, nil
}

func (s *MemoryMovieStore) List(_ context.Context) ([]model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Movie, 0, len(s.movies))
	for _, m := range s.movies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *MemoryMovieStore) Swap(_ context.Context, old, next model.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.movies[old.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if cur != old {
		return apperr.ErrPreconditionFailed
	}
	s.movies[old.ID] = next
	return nil
}

func (s *MemoryMovieStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.movies, id)
	return nil
}

// MemoryTicketStore keeps tickets in a map guarded by a mutex.  Unlike the
// MySQL store it does not check that the referenced movie and client
// exist; the booking engine does that before every insert.
type MemoryTicketStore struct {
	mu      sync.Mutex
	tickets map[uuid.UUID]model.Ticket
}

func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{tickets: map[uuid.UUID]model.Ticket{}}
}

func (s *MemoryTicketStore) Create(_ context.Context, t model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t
	return nil
}

func (s *MemoryTicketStore) GetByID(_ context.Context, id uuid.UUID) (model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return model.Ticket{}, apperr.ErrNotFound
	}
	return t, nil
}

func (s *MemoryTicketStore) List(_ context.Context, f TicketFilter) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Ticket{}
	for _, t := range s.tickets {
		if f.ClientID != uuid.Nil && t.ClientID != f.ClientID {
			continue
		}
		if f.MovieID != uuid.Nil && t.MovieID != f.MovieID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ShowingTime.Equal(out[j].ShowingTime) {
			return out[i].ShowingTime.Before(out[j].ShowingTime)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *MemoryTicketStore) CountByMovie(_ context.Context, movieID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tickets {
		if t.MovieID == movieID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryTicketStore) Swap(_ context.Context, old, next model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tickets[old.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if !sameTicket(cur, old) {
		return apperr.ErrPreconditionFailed
	}
	s.tickets[old.ID] = next
	return nil
}

func (s *MemoryTicketStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.tickets, id)
	return nil
}

// sameTicket compares tickets field by field; time.Time must be compared
// with Equal.
func sameTicket(a, b model.Ticket) bool {
	return a.ID == b.ID && a.ShowingTime.Equal(b.ShowingTime) && a.FinalPrice == b.FinalPrice &&
		a.ClientID == b.ClientID && a.MovieID == b.MovieID
}

// MemoryTokenStore keeps refresh token hashes in a map guarded by a mutex.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryToken
}

type memoryToken struct {
	accountID uuid.UUID
	expiresAt time.Time
	revoked   bool
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]memoryToken{}}
}

func (s *MemoryTokenStore) StoreRefresh(_ context.Context, accountID uuid.UUID, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenHash] = memoryToken{accountID: accountID, expiresAt: exp}
	return nil
}

func (s *MemoryTokenStore) ValidateRefresh(_ context.Context, tokenHash string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.revoked || time.Now().UTC().After(t.expiresAt) {
		return uuid.Nil, apperr.ErrNotFound
	}
	return t.accountID, nil
}

func (s *MemoryTokenStore) RevokeByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[tokenHash]; ok {
		t.revoked = true
		s.tokens[tokenHash] = t
	}
	return nil
}

func (s *MemoryTokenStore) RevokeAllForAccount(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, t := range s.tokens {
		if t.accountID == accountID {
			t.revoked = true
			s.tokens[h] = t
		}
	}
	return nil
}

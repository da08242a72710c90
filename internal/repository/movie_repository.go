package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// MovieRepo is the MySQL MovieStore backed by the 'movies' table.  Prices
// are written as two-decimal strings so that the DECIMAL(5,2) column
// stores exactly the value the version token was computed from.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the given DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo {
	return &MovieRepo{db: db}
}

const movieColumns = "id, title, base_price, screening_room, available_seats"

func scanMovie(row interface{ Scan(...any) error }) (model.Movie, error) {
	var m model.Movie
	err := row.Scan(&m.ID, &m.Title, &m.BasePrice, &m.ScreeningRoom, &m.AvailableSeats)
	return m, err
}

// Create inserts a movie.
func (r *MovieRepo) Create(ctx context.Context, m model.Movie) error {
	const q = `INSERT INTO movies (id, title, base_price, screening_room, available_seats) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, m.ID, m.Title, model.FormatPrice(m.BasePrice), m.ScreeningRoom, m.AvailableSeats)
	return err
}

// GetByID retrieves a movie by its ID.  It returns apperr.ErrNotFound if
// there is no matching row.
func (r *MovieRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Movie, error) {
	m, err := scanMovie(r.db.QueryRowContext(ctx, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id))
	return m, notFound(err)
}

// List returns every movie ordered by title.
func (r *MovieRepo) List(ctx context.Context) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+movieColumns+` FROM movies ORDER BY title ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []model.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Swap replaces old with next only if the row still holds every value of
// old.
func (r *MovieRepo) Swap(ctx context.Context, old, next model.Movie) error {
	const q = `UPDATE movies
               SET title = ?, base_price = ?, screening_room = ?, available_seats = ?
               WHERE id = ? AND title = ? AND base_price = ? AND screening_room = ? AND available_seats = ?`
	res, err := r.db.ExecContext(ctx, q,
		next.Title, model.FormatPrice(next.BasePrice), next.ScreeningRoom, next.AvailableSeats,
		old.ID, old.Title, model.FormatPrice(old.BasePrice), old.ScreeningRoom, old.AvailableSeats)
	if err != nil {
		return err
	}
	return swapOutcome(ctx, r.db, res, "movies", old.ID)
}

// Delete removes a movie.  The tickets foreign key refuses the delete while
// tickets still reference the movie; that is reported as
// apperr.ErrReferentialConflict.
func (r *MovieRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id)
	if isReferenced(err) {
		return apperr.ErrReferentialConflict
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

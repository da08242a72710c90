package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// TicketRepo is the MySQL TicketStore backed by the 'tickets' table.
// showing_time is DATETIME(6) in UTC, matching model.NormalizeTime.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = "id, showing_time, final_price, client_id, movie_id"

func scanTicket(row interface{ Scan(...any) error }) (model.Ticket, error) {
	var t model.Ticket
	if err := row.Scan(&t.ID, &t.ShowingTime, &t.FinalPrice, &t.ClientID, &t.MovieID); err != nil {
		return model.Ticket{}, err
	}
	t.ShowingTime = model.NormalizeTime(t.ShowingTime)
	return t, nil
}

// Create inserts a ticket.  A missing client or movie row is reported as
// apperr.ErrNotFound.
func (r *TicketRepo) Create(ctx context.Context, t model.Ticket) error {
	const q = `INSERT INTO tickets (id, showing_time, final_price, client_id, movie_id) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, t.ID, model.NormalizeTime(t.ShowingTime), model.FormatPrice(t.FinalPrice), t.ClientID, t.MovieID)
	if isMissingReference(err) {
		return apperr.ErrNotFound
	}
	return err
}

// GetByID fetches a ticket by id.
func (r *TicketRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
	return t, notFound(err)
}

// List returns the tickets matching f ordered by showing time.
func (r *TicketRepo) List(ctx context.Context, f TicketFilter) ([]model.Ticket, error) {
	var (
		where []string
		args  []any
	)
	if f.ClientID != uuid.Nil {
		where = append(where, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.MovieID != uuid.Nil {
		where = append(where, "movie_id = ?")
		args = append(args, f.MovieID)
	}
	q := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY showing_time ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountByMovie counts the tickets of a movie.
func (r *TicketRepo) CountByMovie(ctx context.Context, movieID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE movie_id = ?`, movieID).Scan(&n)
	return n, err
}

// Swap replaces old with next only if the row still holds every value of
// old.
func (r *TicketRepo) Swap(ctx context.Context, old, next model.Ticket) error {
	const q = `UPDATE tickets
               SET showing_time = ?, final_price = ?, client_id = ?, movie_id = ?
               WHERE id = ? AND showing_time = ? AND final_price = ? AND client_id = ? AND movie_id = ?`
	res, err := r.db.ExecContext(ctx, q,
		model.NormalizeTime(next.ShowingTime), model.FormatPrice(next.FinalPrice), next.ClientID, next.MovieID,
		old.ID, model.NormalizeTime(old.ShowingTime), model.FormatPrice(old.FinalPrice), old.ClientID, old.MovieID)
	if err != nil {
		return err
	}
	return swapOutcome(ctx, r.db, res, "tickets", old.ID)
}

// Delete removes a ticket, which frees its seat.
func (r *TicketRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
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

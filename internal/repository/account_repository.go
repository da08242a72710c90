package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// AccountRepo is the MySQL AccountStore backed by the 'accounts' table.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountColumns = "id,login,password_hash,role,active"

func scanAccount(row interface{ Scan(...any) error }) (model.Account, error) {
	var (
		a    model.Account
		role string
	)
	if err := row.Scan(&a.ID, &a.Login, &a.PasswordHash, &role, &a.Active); err != nil {
		return model.Account{}, err
	}
	a.Role = model.Role(role)
	return a, nil
}

// Create inserts an account.  A duplicate login yields apperr.ErrLoginTaken.
func (r *AccountRepo) Create(ctx context.Context, a model.Account) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (id, login, password_hash, role, active) VALUES (?,?,?,?,?)",
		a.ID, a.Login, a.PasswordHash, string(a.Role), a.Active)
	if isDuplicate(err) {
		return apperr.ErrLoginTaken
	}
	return err
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	a, err := scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id))
	return a, notFound(err)
}

// GetByLogin fetches an account by its exact login.
func (r *AccountRepo) GetByLogin(ctx context.Context, login string) (model.Account, error) {
	a, err := scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE login=? LIMIT 1", login))
	return a, notFound(err)
}

// List returns the accounts of one role, optionally filtered by a login
// substring.
func (r *AccountRepo) List(ctx context.Context, role model.Role, loginLike string) ([]model.Account, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE role=? AND login LIKE ? ORDER BY login",
		string(role), "%"+escapeLike(loginLike)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Swap writes next over old when the stored row still holds every value of
// old.  The DSN enables clientFoundRows, so RowsAffected counts matched
// rows even when next equals old.
func (r *AccountRepo) Swap(ctx context.Context, old, next model.Account) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET login=?, password_hash=?, role=?, active=?
         WHERE id=? AND login=? AND password_hash=? AND role=? AND active=?`,
		next.Login, next.PasswordHash, string(next.Role), next.Active,
		old.ID, old.Login, old.PasswordHash, string(old.Role), old.Active)
	if isDuplicate(err) {
		return apperr.ErrLoginTaken
	}
	if err != nil {
		return err
	}
	return swapOutcome(ctx, r.DB, res, "accounts", old.ID)
}

// SetActive flips the active flag and returns the resulting account.
func (r *AccountRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (model.Account, error) {
	res, err := r.DB.ExecContext(ctx, "UPDATE accounts SET active=? WHERE id=?", active, id)
	if err != nil {
		return model.Account{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Account{}, apperr.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// swapOutcome interprets the result of a conditional UPDATE: no matched
// row means the row is either gone or was changed by someone else.
func swapOutcome(ctx context.Context, db *sql.DB, res sql.Result, table string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id=? LIMIT 1", table), id).Scan(&one)
	if err != nil {
		return notFound(err)
	}
	return apperr.ErrPreconditionFailed
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}

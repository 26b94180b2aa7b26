package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
)

// UserRepo persists accounts in the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,name,email,photo_url,password_hash,role,is_fraud,created_at,updated_at"

// CreateUser inserts u and fills its ID and timestamps.
func (r *UserRepo) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, photo_url, password_hash, role) VALUES (?,?,?,?,?)",
		u.Name, u.Email, u.PhotoURL, u.PasswordHash, u.Role.String())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetUserByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*u = *created
	return nil
}

// GetUserByEmail fetches a user by normalized email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return scanUser(row)
}

// GetUserByID fetches a user by id.
func (r *UserRepo) GetUserByID(ctx context.Context, id uint64) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// UpdateProfile changes the display name and avatar.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, name, photoURL string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, photo_url=? WHERE id=?", name, photoURL, id)
	if err != nil {
		return err
	}
	return expectRow(ctx, r.DB, res, "SELECT 1 FROM users WHERE id=?", id)
}

// ListUsers returns users newest first, optionally filtered.
func (r *UserRepo) ListUsers(ctx context.Context, role model.Role, query string) ([]model.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if role.Valid() {
		where = append(where, "role=?")
		args = append(args, role.String())
	}
	if q := strings.TrimSpace(query); q != "" {
		where = append(where, "(name LIKE ? OR email LIKE ?)")
		like := "%" + escapeLike(q) + "%"
		args = append(args, like, like)
	}
	sqlStr := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}
	sqlStr += " ORDER BY created_at DESC, id DESC"

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UserStats counts accounts per role.
func (r *UserRepo) UserStats(ctx context.Context) (model.UserStats, error) {
	var s model.UserStats
	err := r.DB.QueryRowContext(ctx, `SELECT
            COUNT(*),
            COALESCE(SUM(role='user'),0),
            COALESCE(SUM(role='vendor'),0),
            COALESCE(SUM(role='admin'),0),
            COALESCE(SUM(role='vendor' AND is_fraud=1),0)
        FROM users`).Scan(&s.Total, &s.Users, &s.Vendors, &s.Admins, &s.FraudVendors)
	return s, err
}

// SetRole changes the role of a user.
func (r *UserRepo) SetRole(ctx context.Context, id uint64, role model.Role) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", role.String(), id)
	if err != nil {
		return err
	}
	return expectRow(ctx, r.DB, res, "SELECT 1 FROM users WHERE id=?", id)
}

// SetFraud flags or clears the fraud marker.
func (r *UserRepo) SetFraud(ctx context.Context, id uint64, fraud bool) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET is_fraud=? WHERE id=?", fraud, id)
	if err != nil {
		return err
	}
	return expectRow(ctx, r.DB, res, "SELECT 1 FROM users WHERE id=?", id)
}

// DeleteUser removes the account.  Users with bookings are kept because
// booking history is append-only; ErrConflict is returned in that case.
func (r *UserRepo) DeleteUser(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PhotoURL, &u.PasswordHash, &role, &u.IsFraud, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if u.Role, err = model.ParseRole(role); err != nil {
		return nil, err
	}
	return &u, nil
}

// expectRow turns a zero-row UPDATE into ErrNotFound.  MySQL reports zero
// affected rows when values did not change, so existence is re-checked.
func expectRow(ctx context.Context, db *sql.DB, res sql.Result, existsQuery string, args ...interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	if err := db.QueryRowContext(ctx, existsQuery, args...).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

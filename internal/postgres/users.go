package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/users"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct{ DB *pgxpool.Pool }

const userColumns = `id, email, name, photo_url, role, created_at, last_login`

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		u    users.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PhotoURL, &role, &u.CreatedAt, &u.LastLogin); err != nil {
		return nil, err
	}
	u.Role = users.Role(role)
	return &u, nil
}

// Upsert inserts u, or stamps last_login when the email is already known.
// created reports which of the two happened.
func (r *UserRepo) Upsert(ctx context.Context, u *users.User, now time.Time) (created bool, err error) {
	u.Email = strings.TrimSpace(u.Email)
	if u.Email == "" {
		return false, users.ErrEmailRequired
	}
	if u.Role == "" {
		u.Role = users.RoleCustomer
	}
	if !u.Role.Valid() {
		return false, users.ErrInvalidRole
	}
	// xmax = 0 only for freshly inserted rows
	err = conn(ctx, r.DB).QueryRow(ctx, `
		INSERT INTO users(email, name, photo_url, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET last_login = $5
		RETURNING id, created_at, (xmax = 0)`,
		u.Email, u.Name, u.PhotoURL, string(u.Role), now,
	).Scan(&u.ID, &u.CreatedAt, &created)
	return created, err
}

func (r *UserRepo) List(ctx context.Context) ([]users.User, error) {
	rows, err := conn(ctx, r.DB).Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []users.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	u, err := scanUser(conn(ctx, r.DB).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email=$1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	return u, err
}

// UpdateRole sets the role. ErrNotFound and ErrRoleUnchanged are told apart.
func (r *UserRepo) UpdateRole(ctx context.Context, id string, role users.Role) error {
	if !role.Valid() {
		return users.ErrInvalidRole
	}
	if uuid.Validate(id) != nil {
		return users.ErrNotFound
	}
	var prev string
	err := conn(ctx, r.DB).QueryRow(ctx, `
		WITH old AS (SELECT id, role FROM users WHERE id=$1 FOR UPDATE)
		UPDATE users u SET role=$2 FROM old WHERE u.id = old.id
		RETURNING old.role`, id, string(role)).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return users.ErrNotFound
	}
	if err != nil {
		return err
	}
	if users.Role(prev) == role {
		return users.ErrRoleUnchanged
	}
	return nil
}

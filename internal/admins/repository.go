package admins

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// Repository provides admin lookups.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Admin, error)
	GetByEmail(ctx context.Context, email string) (Admin, error)
	ListActive(ctx context.Context) ([]Admin, error)
	Create(ctx context.Context, admin Admin) (Admin, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const adminColumns = `id, name, email, role, password_hash, is_active, created_at, updated_at`

func (r *repository) GetByID(ctx context.Context, id int64) (Admin, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id=$1`, id))
}

func (r *repository) GetByEmail(ctx context.Context, email string) (Admin, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE email=$1`, email))
}

func (r *repository) ListActive(ctx context.Context) ([]Admin, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+adminColumns+` FROM admins WHERE is_active ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Admin
	for rows.Next() {
		var a Admin
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.PasswordHash, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, admin Admin) (Admin, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO admins (name, email, role, password_hash, is_active)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		admin.Name, admin.Email, admin.Role, admin.PasswordHash, admin.IsActive)
	if err := row.Scan(&admin.ID, &admin.CreatedAt, &admin.UpdatedAt); err != nil {
		return Admin{}, err
	}
	return admin, nil
}

func (r *repository) scanOne(row pgx.Row) (Admin, error) {
	var a Admin
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.PasswordHash, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Admin{}, shared.ErrNotFound
		}
		return Admin{}, err
	}
	return a, nil
}

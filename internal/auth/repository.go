package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deliver-app/deliver/internal/rbac"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (Account, error)
	FindByHandle(ctx context.Context, handle uuid.UUID) (Account, error)
	FindByID(ctx context.Context, id int64) (Account, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectAccount = `
SELECT u.id, u.handle, u.username, u.password_hash, c.handle, u.fired_at IS NOT NULL,
       COALESCE(array_agg(ur.role_id ORDER BY ur.role_id) FILTER (WHERE ur.role_id IS NOT NULL), '{}')::bigint[]
FROM users u
JOIN companies c ON c.id = u.company_id
LEFT JOIN user_roles ur ON ur.user_id = u.id
`

// FindByUsername fetches an account by login name.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (Account, error) {
	return r.find(ctx, selectAccount+`WHERE u.username = $1 GROUP BY u.id, c.id`, username)
}

// FindByHandle fetches an account by its public handle.
func (r *PGRepository) FindByHandle(ctx context.Context, handle uuid.UUID) (Account, error) {
	return r.find(ctx, selectAccount+`WHERE u.handle = $1 GROUP BY u.id, c.id`, pgtype.UUID{Bytes: handle, Valid: true})
}

// FindByID fetches an account by internal id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (Account, error) {
	return r.find(ctx, selectAccount+`WHERE u.id = $1 GROUP BY u.id, c.id`, id)
}

func (r *PGRepository) find(ctx context.Context, query string, arg any) (Account, error) {
	var (
		a             Account
		handle        pgtype.UUID
		companyHandle pgtype.UUID
		roleIDs       []int64
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(&a.ID, &handle, &a.Username, &a.PasswordHash, &companyHandle, &a.Fired, &roleIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	a.Handle = uuid.UUID(handle.Bytes)
	a.CompanyHandle = uuid.UUID(companyHandle.Bytes)
	for _, id := range roleIDs {
		if role, err := rbac.RoleByID(id); err == nil {
			a.Roles = append(a.Roles, role)
		}
	}
	return a, nil
}

var _ Repository = (*PGRepository)(nil)

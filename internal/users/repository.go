package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deliver-app/deliver/internal/platform/db"
	"github.com/deliver-app/deliver/internal/rbac"
)

const usernameConstraint = "users_username_key"

const selectUser = `
SELECT u.id, u.handle, u.name, u.surname, u.username, u.email, u.phone, u.password_hash,
       u.fired_at, u.created_at, u.updated_at, c.id, c.handle, c.name,
       COALESCE(array_agg(ur.role_id ORDER BY ur.role_id) FILTER (WHERE ur.role_id IS NOT NULL), '{}')::bigint[]
FROM users u
JOIN companies c ON c.id = u.company_id
LEFT JOIN user_roles ur ON ur.user_id = u.id`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByHandle loads a user with company and roles.
func (r *Repository) FindByHandle(ctx context.Context, handle uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, selectUser+` WHERE u.handle = $1 GROUP BY u.id, c.id`, pgUUID(handle))
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// UsernameExists reports whether a login name is already taken.
func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// FindCompanyByHandle resolves a company reference.
func (r *Repository) FindCompanyByHandle(ctx context.Context, handle uuid.UUID) (CompanyRef, error) {
	var (
		ref CompanyRef
		h   pgtype.UUID
	)
	err := r.pool.QueryRow(ctx, `SELECT id, handle, name FROM companies WHERE handle = $1`, pgUUID(handle)).
		Scan(&ref.ID, &h, &ref.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return CompanyRef{}, ErrCompanyNotFound
	}
	if err != nil {
		return CompanyRef{}, err
	}
	ref.Handle = uuid.UUID(h.Bytes)
	return ref, nil
}

// CompanyOfUser returns the company the user currently belongs to.
func (r *Repository) CompanyOfUser(ctx context.Context, userID int64) (CompanyRef, error) {
	var (
		ref CompanyRef
		h   pgtype.UUID
	)
	err := r.pool.QueryRow(ctx, `
SELECT c.id, c.handle, c.name
FROM users u
JOIN companies c ON c.id = u.company_id
WHERE u.id = $1`, userID).Scan(&ref.ID, &h, &ref.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return CompanyRef{}, ErrCompanyNotFound
	}
	if err != nil {
		return CompanyRef{}, err
	}
	ref.Handle = uuid.UUID(h.Bytes)
	return ref, nil
}

// Insert stores a new user without roles.
func (r *Repository) Insert(ctx context.Context, u User) (User, error) {
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (handle, company_id, name, surname, username, email, phone, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at, updated_at`,
		pgUUID(u.Handle), u.Company.ID, u.Name, u.Surname, u.Username, u.Email, u.Phone, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, usernameConstraint) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	u.Roles = nil
	return u, nil
}

// Update persists profile fields and company membership.
func (r *Repository) Update(ctx context.Context, u User) (User, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET name = $2, surname = $3, username = $4, email = $5, phone = $6, company_id = $7, updated_at = NOW()
WHERE id = $1`,
		u.ID, u.Name, u.Surname, u.Username, u.Email, u.Phone, u.Company.ID)
	if err != nil {
		if db.IsUniqueViolation(err, usernameConstraint) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return User{}, ErrUserNotFound
	}
	return r.FindByHandle(ctx, u.Handle)
}

// SetPassword replaces the stored password hash.
func (r *Repository) SetPassword(ctx context.Context, userID int64, hash string) error {
	return r.execOne(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, hash)
}

// MarkFired records the moment the user was let go.
func (r *Repository) MarkFired(ctx context.Context, userID int64, at time.Time) error {
	return r.execOne(ctx, `UPDATE users SET fired_at = COALESCE(fired_at, $2), updated_at = NOW() WHERE id = $1`, userID, at)
}

// MoveToCompany reassigns the user to a company.
func (r *Repository) MoveToCompany(ctx context.Context, userID, companyID int64) error {
	return r.execOne(ctx, `UPDATE users SET company_id = $2, updated_at = NOW() WHERE id = $1`, userID, companyID)
}

// AddRoles grants roles atomically. Already held roles are left untouched.
func (r *Repository) AddRoles(ctx context.Context, userID int64, roles []rbac.Role) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, role := range roles {
			if _, err := tx.Exec(ctx, `
INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
ON CONFLICT (user_id, role_id) DO NOTHING`, userID, int64(role)); err != nil {
				return fmt.Errorf("grant role %s: %w", role, err)
			}
		}
		return nil
	})
}

// List returns a page of users and the total matching count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]User, int, error) {
	var (
		where []string
		args  []any
	)
	if filters.CompanyHandle != uuid.Nil {
		args = append(args, pgUUID(filters.CompanyHandle))
		where = append(where, fmt.Sprintf("c.handle = $%d", len(args)))
	}
	if filters.Search != "" {
		args = append(args, containsPattern(filters.Search))
		where = append(where, fmt.Sprintf(`(u.username ILIKE $%[1]d ESCAPE '\' OR u.name ILIKE $%[1]d ESCAPE '\' OR u.surname ILIKE $%[1]d ESCAPE '\' OR u.email ILIKE $%[1]d ESCAPE '\')`, len(args)))
	}
	if !filters.IncludeFired {
		where = append(where, "u.fired_at IS NULL")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users u JOIN companies c ON c.id = u.company_id`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	page := filters.Page
	args = append(args, page.PerPage, page.Offset())
	query := selectUser + clause + fmt.Sprintf(" GROUP BY u.id, c.id ORDER BY u.created_at DESC, u.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches term literally anywhere in a column.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func (r *Repository) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u             User
		handle        pgtype.UUID
		companyHandle pgtype.UUID
		roleIDs       []int64
	)
	err := row.Scan(&u.ID, &handle, &u.Name, &u.Surname, &u.Username, &u.Email, &u.Phone, &u.PasswordHash,
		&u.FiredAt, &u.CreatedAt, &u.UpdatedAt, &u.Company.ID, &companyHandle, &u.Company.Name, &roleIDs)
	if err != nil {
		return User{}, err
	}
	u.Handle = uuid.UUID(handle.Bytes)
	u.Company.Handle = uuid.UUID(companyHandle.Bytes)
	for _, id := range roleIDs {
		if role, err := rbac.RoleByID(id); err == nil {
			u.Roles = append(u.Roles, role)
		}
	}
	return u, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

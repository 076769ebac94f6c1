package companies

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deliver-app/deliver/internal/platform/db"
)

const nameConstraint = "companies_name_key"

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Company, int, error) {
	where := ""
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(filters.Search)+"%")
		where = ` WHERE name ILIKE $1 ESCAPE '\' OR email ILIKE $1 ESCAPE '\'`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM companies`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, handle, name, email, contact_number, created_at, updated_at FROM companies` + where + ` ORDER BY name`
	args = append(args, filters.Page.PerPage)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, filters.Page.Offset())
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *repository) FindByHandle(ctx context.Context, handle uuid.UUID) (Company, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, handle, name, email, contact_number, created_at, updated_at
FROM companies WHERE handle = $1`, pgtype.UUID{Bytes: handle, Valid: true})
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return c, err
}

func (r *repository) FindByUserID(ctx context.Context, userID int64) (Company, error) {
	row := r.pool.QueryRow(ctx, `SELECT c.id, c.handle, c.name, c.email, c.contact_number, c.created_at, c.updated_at
FROM companies c JOIN users u ON u.company_id = c.id WHERE u.id = $1`, userID)
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, company Company) (Company, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO companies (handle, name, email, contact_number)
VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		pgtype.UUID{Bytes: company.Handle, Valid: true}, company.Name, company.Email, company.ContactNumber,
	).Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, nameConstraint) {
			return Company{}, ErrDuplicate
		}
		return Company{}, fmt.Errorf("insert company: %w", err)
	}
	return company, nil
}

func scanCompany(row pgx.Row) (Company, error) {
	var (
		c      Company
		handle pgtype.UUID
	)
	if err := row.Scan(&c.ID, &handle, &c.Name, &c.Email, &c.ContactNumber, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Company{}, err
	}
	c.Handle = uuid.UUID(handle.Bytes)
	return c, nil
}

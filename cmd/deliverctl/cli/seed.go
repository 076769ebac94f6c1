package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/deliver-app/deliver/internal/platform/db"
	"github.com/deliver-app/deliver/internal/rbac"
	"github.com/deliver-app/deliver/internal/users"
)

// ErrAlreadySeeded is returned when the admin username is taken.
var ErrAlreadySeeded = errors.New("deliverctl: admin account already exists")

// AdminSeed describes the bootstrap company and administrator.
type AdminSeed struct {
	CompanyName  string
	CompanyEmail string
	Username     string
	Email        string
	Name         string
	Surname      string
}

// SeedStore persists the bootstrap records.
type SeedStore interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
	CreateAdmin(ctx context.Context, seed AdminSeed, passwordHash string) (uuid.UUID, error)
}

// Seeder creates the first administrator so the API can be used at all.
type Seeder struct {
	Store     SeedStore
	Generator users.PasswordGenerator
	Hasher    users.PasswordHasher
}

// SeedResult carries the generated credentials, shown once to the operator.
type SeedResult struct {
	CompanyHandle uuid.UUID
	Username      string
	Password      string
}

// Run validates seed and inserts the admin with a generated password.
func (s Seeder) Run(ctx context.Context, seed AdminSeed) (SeedResult, error) {
	seed.Username = strings.TrimSpace(seed.Username)
	seed.Email = strings.ToLower(strings.TrimSpace(seed.Email))
	seed.CompanyName = strings.TrimSpace(seed.CompanyName)
	if seed.Username == "" || seed.Email == "" || seed.CompanyName == "" {
		return SeedResult{}, errors.New("deliverctl: company, username and email are required")
	}
	exists, err := s.Store.UsernameExists(ctx, seed.Username)
	if err != nil {
		return SeedResult{}, err
	}
	if exists {
		return SeedResult{}, ErrAlreadySeeded
	}
	password, err := s.Generator.Generate()
	if err != nil {
		return SeedResult{}, err
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return SeedResult{}, err
	}
	handle, err := s.Store.CreateAdmin(ctx, seed, hash)
	if err != nil {
		return SeedResult{}, err
	}
	return SeedResult{CompanyHandle: handle, Username: seed.Username, Password: password}, nil
}

func printSeedResult(w io.Writer, res SeedResult) {
	fmt.Fprintf(w, "company handle: %s\n", res.CompanyHandle)
	fmt.Fprintf(w, "username:       %s\n", res.Username)
	fmt.Fprintf(w, "password:       %s\n", res.Password)
	fmt.Fprintln(w, "store the password now, it is not recoverable")
}

type pgSeedStore struct {
	pool *pgxpool.Pool
}

func (s pgSeedStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

func (s pgSeedStore) CreateAdmin(ctx context.Context, seed AdminSeed, passwordHash string) (uuid.UUID, error) {
	var handle pgtype.UUID
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var companyID int64
		err := tx.QueryRow(ctx, `
INSERT INTO companies (name, email) VALUES ($1, $2)
ON CONFLICT ON CONSTRAINT companies_name_key DO UPDATE SET updated_at = NOW()
RETURNING id, handle`, seed.CompanyName, seed.CompanyEmail).Scan(&companyID, &handle)
		if err != nil {
			return fmt.Errorf("upsert company: %w", err)
		}
		var userID int64
		err = tx.QueryRow(ctx, `
INSERT INTO users (company_id, name, surname, username, email, password_hash)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`, companyID, seed.Name, seed.Surname, seed.Username, seed.Email, passwordHash).Scan(&userID)
		if err != nil {
			if db.IsUniqueViolation(err, "users_username_key") {
				return ErrAlreadySeeded
			}
			return fmt.Errorf("insert admin: %w", err)
		}
		_, err = tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, int64(rbac.RoleAdmin))
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.UUID(handle.Bytes), nil
}

func newSeedCommand() *cobra.Command {
	seed := AdminSeed{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the bootstrap company and administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			pool, err := db.New(cmd.Context(), rt.cfg.PGDSN, dbOptions(rt.cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			seeder := Seeder{
				Store:     pgSeedStore{pool: pool},
				Generator: users.NewPasswordGenerator(),
				Hasher:    users.BcryptHasher{Cost: rt.cfg.BcryptCost},
			}
			res, err := seeder.Run(cmd.Context(), seed)
			if err != nil {
				return err
			}
			printSeedResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&seed.CompanyName, "company", "Deliver", "name of the operator company")
	cmd.Flags().StringVar(&seed.CompanyEmail, "company-email", "", "contact email of the operator company")
	cmd.Flags().StringVar(&seed.Username, "username", "admin", "administrator username")
	cmd.Flags().StringVar(&seed.Email, "email", "", "administrator email")
	cmd.Flags().StringVar(&seed.Name, "name", "System", "administrator first name")
	cmd.Flags().StringVar(&seed.Surname, "surname", "Administrator", "administrator surname")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

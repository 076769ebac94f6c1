// Package migrations applies the embedded PostgreSQL schema.
package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deliver-app/deliver/internal/platform/db"
)

//go:embed sql/*.sql
var embedded embed.FS

const defaultTable = "schema_migrations"

// ErrNothingApplied is returned by Down when no migration has run.
var ErrNothingApplied = errors.New("migrations: no migrations applied")

// DB is the subset of pgxpool.Pool used by Manager.
type DB interface {
	db.TxBeginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Manager executes versioned SQL files.
type Manager struct {
	db     DB
	files  fs.FS
	table  string
	logger *slog.Logger
}

// Option configures Manager.
type Option func(*Manager)

// WithTable overrides the bookkeeping table.
func WithTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.table = name
		}
	}
}

// WithFS replaces the embedded migration set.
func WithFS(files fs.FS) Option {
	return func(m *Manager) {
		if files != nil {
			m.files = files
		}
	}
}

// NewManager constructs a Manager over the embedded schema.
func NewManager(conn DB, logger *slog.Logger, opts ...Option) *Manager {
	sub, _ := fs.Sub(embedded, "sql")
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{db: conn, files: sub, table: defaultTable, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies pending migrations in name order and returns the names applied.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.history(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}
	files, err := Pending(m.files, done)
	if err != nil {
		return nil, err
	}
	var ran []string
	for _, name := range files {
		if err := m.apply(ctx, name, true); err != nil {
			return ran, fmt.Errorf("apply migration %s: %w", name, err)
		}
		m.logger.Info("migration applied", slog.String("name", name))
		ran = append(ran, name)
	}
	return ran, nil
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) (string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return "", err
	}
	applied, err := m.history(ctx)
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", ErrNothingApplied
	}
	last := applied[len(applied)-1]
	if err := m.apply(ctx, last, false); err != nil {
		return "", fmt.Errorf("rollback migration %s: %w", last, err)
	}
	m.logger.Info("migration rolled back", slog.String("name", last))
	return last, nil
}

// Status returns applied migrations in the order they ran.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	return m.history(ctx)
}

func (m *Manager) ensureTable(ctx context.Context) error {
	_, err := m.db.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, pgx.Identifier{m.table}.Sanitize()))
	return err
}

func (m *Manager) apply(ctx context.Context, name string, up bool) error {
	path := name
	if !up {
		path = strings.TrimSuffix(name, ".up.sql") + ".down.sql"
	}
	body, err := fs.ReadFile(m.files, path)
	if err != nil {
		return err
	}
	table := pgx.Identifier{m.table}.Sanitize()
	return db.WithTx(ctx, m.db, func(tx pgx.Tx) error {
		for _, stmt := range SplitStatements(string(body)) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		if up {
			_, err = tx.Exec(ctx, `INSERT INTO `+table+` (name) VALUES ($1)`, name)
		} else {
			_, err = tx.Exec(ctx, `DELETE FROM `+table+` WHERE name = $1`, name)
		}
		return err
	})
}

func (m *Manager) history(ctx context.Context) ([]string, error) {
	rows, err := m.db.Query(ctx, `SELECT name FROM `+pgx.Identifier{m.table}.Sanitize()+` ORDER BY applied_at, name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Pending lists *.up.sql files in files that are not in done, sorted by name.
func Pending(files fs.FS, done map[string]bool) ([]string, error) {
	matches, err := fs.Glob(files, "*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	pending := matches[:0]
	for _, name := range matches {
		if !done[name] {
			pending = append(pending, name)
		}
	}
	return pending, nil
}

// SplitStatements splits a script on semicolons outside single-quoted
// literals and drops empty statements.
func SplitStatements(script string) []string {
	var (
		stmts    []string
		current  strings.Builder
		inString bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}
	for _, r := range script {
		switch {
		case r == '\'':
			inString = !inString
			current.WriteRune(r)
		case r == ';' && !inString:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return stmts
}

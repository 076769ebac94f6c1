package users

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deliver-app/deliver/internal/rbac"
)

// CompanyRef is the slice of a company the user module works with.
type CompanyRef struct {
	ID     int64
	Handle uuid.UUID
	Name   string
}

// User represents a worker account hydrated with its company and roles.
type User struct {
	ID           int64
	Handle       uuid.UUID
	Name         string
	Surname      string
	Username     string
	Email        string
	Phone        string
	Company      CompanyRef
	PasswordHash string
	Roles        []rbac.Role
	FiredAt      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Fired reports whether the user was let go.
func (u User) Fired() bool {
	return u.FiredAt != nil
}

// HasRole reports whether the user holds role r.
func (u User) HasRole(r rbac.Role) bool {
	for _, held := range u.Roles {
		if held == r {
			return true
		}
	}
	return false
}

// View is the outward representation of a user. It never carries the
// password hash or any generated secret.
type View struct {
	Handle        uuid.UUID  `json:"handle"`
	Name          string     `json:"name"`
	Surname       string     `json:"surname"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	CompanyHandle uuid.UUID  `json:"company_handle"`
	CompanyName   string     `json:"company_name"`
	Roles         []string   `json:"roles"`
	Fired         bool       `json:"fired"`
	FiredAt       *time.Time `json:"fired_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewView projects a user into its outward representation.
func NewView(u User) View {
	return View{
		Handle:        u.Handle,
		Name:          u.Name,
		Surname:       u.Surname,
		Username:      u.Username,
		Email:         u.Email,
		Phone:         u.Phone,
		CompanyHandle: u.Company.Handle,
		CompanyName:   u.Company.Name,
		Roles:         rbac.Names(u.Roles),
		Fired:         u.Fired(),
		FiredAt:       u.FiredAt,
		CreatedAt:     u.CreatedAt,
	}
}

// WelcomeMessage carries what a new worker needs for the first login. The
// plaintext password exists only here, between generation and delivery.
type WelcomeMessage struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LogValue keeps the password out of structured logs.
func (m WelcomeMessage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", m.Email),
		slog.String("username", m.Username),
		slog.String("password", "[redacted]"),
	)
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deliver-app/deliver/internal/rbac"
	"github.com/deliver-app/deliver/internal/shared"
)

var (
	// ErrInvalidToken indicates an access or refresh token failed validation.
	ErrInvalidToken = fmt.Errorf("%w: token is invalid or expired", shared.ErrInvalidCredentials)
	// ErrAccountNotFound is returned by repositories when no account matches.
	ErrAccountNotFound = errors.New("account not found")
)

// Account is the login view of a user.
type Account struct {
	ID            int64
	Handle        uuid.UUID
	Username      string
	PasswordHash  string
	CompanyHandle uuid.UUID
	Roles         []rbac.Role
	Fired         bool
}

// Principal converts the account into the authorization identity.
func (a Account) Principal() rbac.Principal {
	return rbac.Principal{
		ID:            a.ID,
		Handle:        a.Handle,
		CompanyHandle: a.CompanyHandle,
		Roles:         append([]rbac.Role(nil), a.Roles...),
	}
}

// LoginRequest carries submitted credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

// TokenPair is issued on login and refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenResponse is the JSON body returned to clients. The refresh token
// travels only in its cookie.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/deliver-app/deliver/internal/rbac"
	"github.com/deliver-app/deliver/internal/shared"
)

// TokenStore persists refresh tokens.
type TokenStore interface {
	Issue(ctx context.Context, userID int64, ip string) (string, time.Time, error)
	Consume(ctx context.Context, token string) (int64, error)
	Revoke(ctx context.Context, token string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo      Repository
	tokens    *TokenIssuer
	refresh   TokenStore
	logger    *slog.Logger
	validator *validator.Validate
	// dummyHash is compared against when the username is unknown. It uses
	// the same cost as stored hashes so both paths take equally long.
	dummyHash []byte
}

// NewService constructs a new Service. hashCost must match the bcrypt cost
// used when storing passwords.
func NewService(repo Repository, tokens *TokenIssuer, refresh TokenStore, hashCost int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		hashCost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("deliver-dummy-password"), hashCost)
	if err != nil {
		logger.Warn("generate dummy hash", slog.Any("error", err))
	}
	return &Service{
		repo:      repo,
		tokens:    tokens,
		refresh:   refresh,
		logger:    logger,
		validator: validator.New(),
		dummyHash: dummy,
	}
}

// Login validates username/password credentials and issues a token pair.
// Unknown users, fired users and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, req LoginRequest, ip string) (TokenPair, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return TokenPair{}, shared.ErrInvalidCredentials
	}
	account, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			return TokenPair{}, fmt.Errorf("find account: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return TokenPair{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return TokenPair{}, shared.ErrInvalidCredentials
	}
	if account.Fired {
		s.logger.Info("login rejected for fired user", slog.String("user", account.Handle.String()))
		return TokenPair{}, shared.ErrInvalidCredentials
	}
	return s.issue(ctx, account, ip)
}

// Refresh rotates a refresh token. The presented token is consumed even if
// the account can no longer log in.
func (s *Service) Refresh(ctx context.Context, refreshToken, ip string) (TokenPair, error) {
	userID, err := s.refresh.Consume(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	account, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("find account: %w", err)
	}
	if account.Fired {
		return TokenPair{}, ErrInvalidToken
	}
	return s.issue(ctx, account, ip)
}

// Logout revokes the refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.refresh.Revoke(ctx, refreshToken)
}

// Authenticate resolves an access token into a Principal. Roles and company
// are loaded fresh so revocations apply before the token expires.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (rbac.Principal, error) {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return rbac.Principal{}, err
	}
	handle, err := uuid.Parse(claims.Subject)
	if err != nil {
		return rbac.Principal{}, ErrInvalidToken
	}
	account, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return rbac.Principal{}, ErrInvalidToken
		}
		return rbac.Principal{}, fmt.Errorf("find account: %w", err)
	}
	if account.Fired {
		return rbac.Principal{}, ErrInvalidToken
	}
	return account.Principal(), nil
}

func (s *Service) issue(ctx context.Context, account Account, ip string) (TokenPair, error) {
	access, accessExp, err := s.tokens.Issue(account)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.refresh.Issue(ctx, account.ID, ip)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

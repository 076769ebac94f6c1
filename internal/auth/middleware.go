package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/deliver-app/deliver/internal/platform/httpx"
	"github.com/deliver-app/deliver/internal/rbac"
)

// Authenticator resolves bearer tokens into principals.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (rbac.Principal, error)
}

// Middleware attaches the principal behind a bearer token to the request.
// Requests without a token pass through anonymously; route gates decide.
type Middleware struct {
	auth   Authenticator
	logger *slog.Logger
}

// NewMiddleware builds the bearer token middleware.
func NewMiddleware(auth Authenticator, logger *slog.Logger) *Middleware {
	return &Middleware{auth: auth, logger: logger}
}

// Handler returns the http middleware.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			if m.logger != nil {
				m.logger.Debug("bearer token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired access token")
			return
		}
		next.ServeHTTP(w, r.WithContext(rbac.ContextWithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

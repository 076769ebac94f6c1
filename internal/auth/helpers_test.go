package auth_test

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deliver-app/deliver/internal/auth"
)

func chiRouter(h *auth.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/auth", h.MountRoutes)
	return r
}

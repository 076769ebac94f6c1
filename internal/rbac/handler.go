package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deliver-app/deliver/internal/platform/httpx"
)

// RolesHandler exposes the role catalog to the front end.
type RolesHandler struct {
	rbac Middleware
}

// NewRolesHandler builds RolesHandler instance.
func NewRolesHandler(rbac Middleware) *RolesHandler {
	return &RolesHandler{rbac: rbac}
}

// MountRoutes registers role routes.
func (h *RolesHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/", h.listRoles)
	})
}

func (h *RolesHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": Catalog()})
}

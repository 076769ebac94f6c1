package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/deliver-app/deliver/internal/platform/httpx"
	"github.com/deliver-app/deliver/internal/rbac"
	"github.com/deliver-app/deliver/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/me", h.me)
		r.Get("/{handle}", h.getUser)
		r.Put("/{handle}", h.updateUser)
		r.Post("/{handle}/password", h.changePassword)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleAdmin, rbac.RoleCompanyOwner, rbac.RoleCompanyAdmin, rbac.RoleHR))
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Post("/{handle}/fire", h.fireUser)
		r.Post("/{handle}/roles", h.addRoles)
		r.Post("/{handle}/company", h.moveToCompany)
		r.Post("/{handle}/reset-password", h.resetPassword)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	filters := ListFilters{
		Search:       r.URL.Query().Get("q"),
		IncludeFired: r.URL.Query().Get("include_fired") == "true",
		Page:         shared.PageRequestFromQuery(r),
	}
	if raw := r.URL.Query().Get("company"); raw != "" {
		handle, err := uuid.Parse(raw)
		if err != nil {
			h.fail(w, r, ErrCompanyNotFound)
			return
		}
		filters.CompanyHandle = handle
	}
	resp, err := h.service.ListUsers(r.Context(), p, filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	var req CreateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.CreateUser(r.Context(), p, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	view, err := h.service.GetUser(r.Context(), p, p.Handle)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	handle, ok := h.handleParam(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetUser(r.Context(), p, handle)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	handle, ok := h.handleParam(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.UpdateUser(r.Context(), p, handle, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) fireUser(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	handle, ok := h.handleParam(w, r)
	if !ok {
		return
	}
	if err := h.service.FireUser(r.Context(), p, handle); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	handle, ok := h.handleParam(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), p, handle, req); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) addRoles(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	handle, ok := h.handleParam(w, r)
	if !ok {
		return
	}
	var req AddRolesRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.AddRolesToUser(r.Context(), p, handle, req); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) moveToCompany(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	handle, ok := h.handleParam(w, r)
	if !ok {
		return
	}
	var req MoveCompanyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.AddUserToCompany(r.Context(), p, handle, req); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	p, _ := rbac.PrincipalFromContext(r.Context())
	handle, ok := h.handleParam(w, r)
	if !ok {
		return
	}
	if err := h.service.ResetPassword(r.Context(), p, handle); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	handle, err := uuid.Parse(chi.URLParam(r, "handle"))
	if err != nil {
		h.fail(w, r, ErrUserNotFound)
		return uuid.Nil, false
	}
	return handle, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !isExpected(err) {
		h.logger.Error("user request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isExpected(err error) bool {
	return errors.Is(err, shared.ErrValidation) ||
		errors.Is(err, shared.ErrNotFound) ||
		errors.Is(err, shared.ErrConflict) ||
		errors.Is(err, shared.ErrForbidden) ||
		errors.Is(err, shared.ErrCredential)
}

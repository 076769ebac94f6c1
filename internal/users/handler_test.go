package users

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deliver-app/deliver/internal/platform/httpx"
	"github.com/deliver-app/deliver/internal/rbac"
)

func newTestRouter(f *fixture) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, f.service, rbac.Middleware{Logger: logger})
	r := chi.NewRouter()
	r.Route("/api/users", h.MountRoutes)
	return r
}

func doRequest(t *testing.T, router http.Handler, p *rbac.Principal, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if p != nil {
		req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), *p))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandlerCreateUser(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	body := `{"name":"Ivy","surname":"Road","username":"ivy","email":"ivy@example.com","company_handle":"` + f.acme.Handle.String() + `"}`
	rr := doRequest(t, router, &f.hr, http.MethodPost, "/api/users/", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var view View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, "ivy", view.Username)
	assert.Equal(t, f.acme.Handle, view.CompanyHandle)
	assert.NotContains(t, rr.Body.String(), "password")

	rr = doRequest(t, router, &f.hr, http.MethodPost, "/api/users/", body)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandlerCreateUserRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	rr := doRequest(t, router, &f.admin, http.MethodPost, "/api/users/", `{"username":"ivy","roles":[1]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerRoleGates(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, router, nil, http.MethodGet, "/api/users/me", "").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(t, router, &f.drv, http.MethodGet, "/api/users/", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(t, router, &f.drv, http.MethodGet, "/api/users/me", "").Code)
}

func TestHandlerGetUserErrors(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	outsider := f.repo.seed(User{Username: "outsider", Company: f.globex})

	rr := doRequest(t, router, &f.hr, http.MethodGet, "/api/users/"+outsider.Handle.String(), "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	rr = doRequest(t, router, &f.hr, http.MethodGet, "/api/users/not-a-handle", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerChangePasswordWrongOld(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	rr := doRequest(t, router, &f.drv, http.MethodPost, "/api/users/"+f.drv.Handle.String()+"/password",
		`{"old_password":"nope","new_password":"long enough"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Contains(t, problem.Detail, "current password is incorrect")
}

func TestHandlerFireAndList(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	rr := doRequest(t, router, &f.owner, http.MethodPost, "/api/users/"+f.drv.Handle.String()+"/fire", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(t, router, &f.owner, http.MethodGet, "/api/users/?per_page=10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp ListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Pagination.Total)
	assert.Equal(t, 10, resp.Pagination.PerPage)

	rr = doRequest(t, router, &f.owner, http.MethodGet, "/api/users/?include_fired=true", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Pagination.Total)
}

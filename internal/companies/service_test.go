package companies

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deliver-app/deliver/internal/rbac"
	"github.com/deliver-app/deliver/internal/shared"
)

type memoryRepo struct {
	companies map[uuid.UUID]Company
	members   map[int64]uuid.UUID
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{companies: map[uuid.UUID]Company{}, members: map[int64]uuid.UUID{}, nextID: 1}
}

func (m *memoryRepo) List(ctx context.Context, filters ListFilters) ([]Company, int, error) {
	var out []Company
	for _, c := range m.companies {
		if filters.Search == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(filters.Search)) {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) FindByHandle(ctx context.Context, handle uuid.UUID) (Company, error) {
	c, ok := m.companies[handle]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) FindByUserID(ctx context.Context, userID int64) (Company, error) {
	handle, ok := m.members[userID]
	if !ok {
		return Company{}, ErrNotFound
	}
	return m.FindByHandle(ctx, handle)
}

func (m *memoryRepo) Create(ctx context.Context, company Company) (Company, error) {
	for _, c := range m.companies {
		if c.Name == company.Name {
			return Company{}, ErrDuplicate
		}
	}
	company.ID = m.nextID
	m.nextID++
	company.CreatedAt = time.Now()
	company.UpdatedAt = company.CreatedAt
	m.companies[company.Handle] = company
	return company, nil
}

type recordedAudit struct{ entries []shared.AuditLog }

func (a *recordedAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

var (
	admin = rbac.Principal{ID: 1, Handle: uuid.New(), Roles: []rbac.Role{rbac.RoleAdmin}}
	hr    = rbac.Principal{ID: 2, Handle: uuid.New(), Roles: []rbac.Role{rbac.RoleHR}}
)

func TestCreateCompanyAdminOnly(t *testing.T) {
	audit := &recordedAudit{}
	svc := NewService(newMemoryRepo(), audit, nil)

	_, err := svc.Create(context.Background(), hr, CreateRequest{Name: "Acme", Email: "ops@acme.test"})
	assert.ErrorIs(t, err, ErrForbidden)

	company, err := svc.Create(context.Background(), admin, CreateRequest{Name: " Acme ", Email: "OPS@acme.test"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, company.Handle)
	assert.Equal(t, "Acme", company.Name)
	assert.Equal(t, "ops@acme.test", company.Email)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, shared.AuditCompanyCreated, audit.entries[0].Action)

	_, err = svc.Create(context.Background(), admin, CreateRequest{Name: "Acme", Email: "other@acme.test"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = svc.Create(context.Background(), admin, CreateRequest{Name: "NoMail"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestGetCompanyMembership(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	acme, err := svc.Create(context.Background(), admin, CreateRequest{Name: "Acme", Email: "ops@acme.test"})
	require.NoError(t, err)
	globex, err := svc.Create(context.Background(), admin, CreateRequest{Name: "Globex", Email: "ops@globex.test"})
	require.NoError(t, err)
	repo.members[hr.ID] = acme.Handle

	got, err := svc.Get(context.Background(), hr, acme.Handle)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)

	_, err = svc.Get(context.Background(), hr, globex.Handle)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), admin, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	resp, err := svc.List(context.Background(), hr, ListFilters{})
	require.NoError(t, err)
	require.Len(t, resp.Companies, 1)
	assert.Equal(t, acme.Handle, resp.Companies[0].Handle)

	resp, err = svc.List(context.Background(), admin, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, resp.Companies, 2)
}

func TestHandlerCreateRequiresAdmin(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(newMemoryRepo(), nil, logger), rbac.Middleware{})
	router := chi.NewRouter()
	router.Route("/api/companies", h.MountRoutes)

	post := func(p rbac.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/companies/", strings.NewReader(`{"name":"Initech","email":"hi@initech.test"}`))
		req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), p))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusForbidden, post(hr).Code)

	rr := post(admin)
	require.Equal(t, http.StatusCreated, rr.Code)
	var company Company
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &company))
	assert.Equal(t, "Initech", company.Name)
	assert.NotContains(t, rr.Body.String(), `"id"`)
}

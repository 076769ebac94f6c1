package companies

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/deliver-app/deliver/internal/rbac"
	"github.com/deliver-app/deliver/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Company, int, error)
	FindByHandle(ctx context.Context, handle uuid.UUID) (Company, error)
	FindByUserID(ctx context.Context, userID int64) (Company, error)
	Create(ctx context.Context, company Company) (Company, error)
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo   Repository
	audit  AuditRecorder
	logger *slog.Logger
}

func NewService(repo Repository, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Create registers a new company. Only administrators may create companies.
func (s *Service) Create(ctx context.Context, p rbac.Principal, req CreateRequest) (Company, error) {
	if !p.IsAdmin() {
		return Company{}, ErrForbidden
	}
	req.normalize()
	if err := req.validate(); err != nil {
		return Company{}, err
	}
	company, err := s.repo.Create(ctx, Company{
		Handle:        uuid.New(),
		Name:          req.Name,
		Email:         req.Email,
		ContactNumber: req.ContactNumber,
	})
	if err != nil {
		return Company{}, err
	}
	if s.audit != nil {
		entry := shared.AuditLog{
			ActorID:  p.ID,
			Action:   shared.AuditCompanyCreated,
			Entity:   "company",
			EntityID: company.Handle.String(),
			Meta:     map[string]any{"name": company.Name},
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Warn("record audit log", slog.String("action", entry.Action), slog.Any("error", err))
		}
	}
	return company, nil
}

// Get returns a company to administrators and to members of that company.
func (s *Service) Get(ctx context.Context, p rbac.Principal, handle uuid.UUID) (Company, error) {
	company, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		return Company{}, err
	}
	if p.IsAdmin() {
		return company, nil
	}
	own, err := s.ownCompany(ctx, p)
	if err != nil {
		return Company{}, err
	}
	if own.ID != company.ID {
		return Company{}, ErrForbidden
	}
	return company, nil
}

// List returns every company for administrators and the caller's own company
// for everyone else.
func (s *Service) List(ctx context.Context, p rbac.Principal, filters ListFilters) (ListResponse, error) {
	filters.Page = shared.NewPageRequest(filters.Page.Page, filters.Page.PerPage)
	if p.IsAdmin() {
		items, total, err := s.repo.List(ctx, filters)
		if err != nil {
			return ListResponse{}, err
		}
		if items == nil {
			items = []Company{}
		}
		return ListResponse{Companies: items, Pagination: shared.NewPagination(filters.Page, total)}, nil
	}
	own, err := s.ownCompany(ctx, p)
	if err != nil {
		return ListResponse{}, err
	}
	return ListResponse{Companies: []Company{own}, Pagination: shared.NewPagination(filters.Page, 1)}, nil
}

func (s *Service) ownCompany(ctx context.Context, p rbac.Principal) (Company, error) {
	own, err := s.repo.FindByUserID(ctx, p.ID)
	if errors.Is(err, ErrNotFound) {
		return Company{}, ErrForbidden
	}
	return own, err
}

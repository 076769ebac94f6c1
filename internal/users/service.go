package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/deliver-app/deliver/internal/rbac"
	"github.com/deliver-app/deliver/internal/shared"
)

// DefaultNotifyTimeout bounds how long a welcome notification may take.
const DefaultNotifyTimeout = 10 * time.Second

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	FindByHandle(ctx context.Context, handle uuid.UUID) (User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	FindCompanyByHandle(ctx context.Context, handle uuid.UUID) (CompanyRef, error)
	CompanyOfUser(ctx context.Context, userID int64) (CompanyRef, error)
	Insert(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) (User, error)
	SetPassword(ctx context.Context, userID int64, hash string) error
	MarkFired(ctx context.Context, userID int64, at time.Time) error
	AddRoles(ctx context.Context, userID int64, roles []rbac.Role) error
	MoveToCompany(ctx context.Context, userID, companyID int64) error
	List(ctx context.Context, filters ListFilters) ([]User, int, error)
}

// Notifier delivers onboarding messages. Failures are reported, never fatal.
type Notifier interface {
	SendWelcome(ctx context.Context, msg WelcomeMessage) error
}

// PasswordGenerator produces one-time initial passwords.
type PasswordGenerator interface {
	Generate() (string, error)
}

// PasswordHasher hashes and verifies secrets.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) bool
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Metrics counts provisioning outcomes.
type Metrics interface {
	UserProvisioned()
	WelcomeMailFailed()
}

// ServiceDeps groups collaborators for the user service.
type ServiceDeps struct {
	Repo          RepositoryPort
	Notifier      Notifier
	Generator     PasswordGenerator
	Hasher        PasswordHasher
	Audit         AuditRecorder
	Metrics       Metrics
	Logger        *slog.Logger
	NotifyTimeout time.Duration
	Now           func() time.Time
}

// Service handles user lifecycle business logic.
type Service struct {
	repo          RepositoryPort
	notifier      Notifier
	generator     PasswordGenerator
	hasher        PasswordHasher
	audit         AuditRecorder
	metrics       Metrics
	logger        *slog.Logger
	notifyTimeout time.Duration
	now           func() time.Time
}

// NewService builds Service instance.
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		repo:          deps.Repo,
		notifier:      deps.Notifier,
		generator:     deps.Generator,
		hasher:        deps.Hasher,
		audit:         deps.Audit,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		notifyTimeout: deps.NotifyTimeout,
		now:           deps.Now,
	}
	if s.generator == nil {
		s.generator = NewPasswordGenerator()
	}
	if s.hasher == nil {
		s.hasher = BcryptHasher{Cost: bcrypt.DefaultCost}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = DefaultNotifyTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateUser provisions a worker inside a company, persists a hashed one-time
// password and emails the plaintext to the new user.
func (s *Service) CreateUser(ctx context.Context, p rbac.Principal, req CreateRequest) (View, error) {
	req.normalize()
	if err := validateStruct(req); err != nil {
		return View{}, err
	}
	companyHandle, err := uuid.Parse(req.CompanyHandle)
	if err != nil {
		return View{}, fmt.Errorf("%w: company_handle must be a valid handle", ErrInvalidData)
	}

	exists, err := s.repo.UsernameExists(ctx, req.Username)
	if err != nil {
		return View{}, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return View{}, ErrUserExists
	}

	acting, err := s.actingCompany(ctx, p)
	if err != nil {
		return View{}, err
	}
	if !rbac.Evaluate(p, acting, companyHandle) {
		return View{}, ErrInvalidRole
	}

	company, err := s.repo.FindCompanyByHandle(ctx, companyHandle)
	if err != nil {
		return View{}, err
	}

	password, err := s.generator.Generate()
	if err != nil {
		return View{}, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return View{}, err
	}

	created, err := s.repo.Insert(ctx, User{
		Handle:       uuid.New(),
		Name:         req.Name,
		Surname:      req.Surname,
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		Company:      company,
		PasswordHash: hash,
	})
	if err != nil {
		return View{}, err
	}

	s.record(ctx, p, shared.AuditUserCreated, created, map[string]any{"company": company.Handle.String()})
	if s.metrics != nil {
		s.metrics.UserProvisioned()
	}
	s.logger.Info("user provisioned",
		slog.String("user", created.Handle.String()),
		slog.String("company", company.Handle.String()))

	s.sendWelcome(ctx, p, created, password)
	return NewView(created), nil
}

// UpdateUser applies a partial profile update. Moving the user to another
// company requires authority over both the current and the new company.
func (s *Service) UpdateUser(ctx context.Context, p rbac.Principal, handle uuid.UUID, req UpdateRequest) (View, error) {
	req.normalize()
	if err := validateStruct(req); err != nil {
		return View{}, err
	}

	target, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		return View{}, err
	}
	acting, err := s.actingCompany(ctx, p)
	if err != nil {
		return View{}, err
	}
	if !rbac.CanAccessUser(p, acting, target.ID, target.Company.Handle) {
		return View{}, ErrInvalidRole
	}

	updated := target
	if req.Name != nil {
		updated.Name = *req.Name
	}
	if req.Surname != nil {
		updated.Surname = *req.Surname
	}
	if req.Email != nil {
		updated.Email = *req.Email
	}
	if req.Phone != nil {
		updated.Phone = *req.Phone
	}
	if req.Username != nil && *req.Username != target.Username {
		exists, err := s.repo.UsernameExists(ctx, *req.Username)
		if err != nil {
			return View{}, fmt.Errorf("check username: %w", err)
		}
		if exists {
			return View{}, ErrUserExists
		}
		updated.Username = *req.Username
	}

	meta := map[string]any{}
	if req.CompanyHandle != nil {
		newHandle, err := uuid.Parse(*req.CompanyHandle)
		if err != nil {
			return View{}, fmt.Errorf("%w: company_handle must be a valid handle", ErrInvalidData)
		}
		if newHandle != target.Company.Handle {
			if !rbac.Evaluate(p, acting, target.Company.Handle) || !rbac.Evaluate(p, acting, newHandle) {
				return View{}, ErrInvalidRole
			}
			company, err := s.repo.FindCompanyByHandle(ctx, newHandle)
			if err != nil {
				return View{}, err
			}
			updated.Company = company
			meta["from_company"] = target.Company.Handle.String()
			meta["to_company"] = company.Handle.String()
		}
	}

	saved, err := s.repo.Update(ctx, updated)
	if err != nil {
		return View{}, err
	}
	s.record(ctx, p, shared.AuditUserUpdated, saved, meta)
	return NewView(saved), nil
}

// GetUser returns the user when the principal may see it.
func (s *Service) GetUser(ctx context.Context, p rbac.Principal, handle uuid.UUID) (View, error) {
	target, err := s.authorizeAccess(ctx, p, handle)
	if err != nil {
		return View{}, err
	}
	return NewView(target), nil
}

// FireUser marks the user as fired. Firing an already fired user is a no-op.
func (s *Service) FireUser(ctx context.Context, p rbac.Principal, handle uuid.UUID) error {
	target, err := s.authorizeAccess(ctx, p, handle)
	if err != nil {
		return err
	}
	if target.Fired() {
		return nil
	}
	if err := s.repo.MarkFired(ctx, target.ID, s.now().UTC()); err != nil {
		return err
	}
	s.record(ctx, p, shared.AuditUserFired, target, nil)
	return nil
}

// ChangePassword replaces the user's password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, p rbac.Principal, handle uuid.UUID, req ChangePasswordRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	target, err := s.authorizeAccess(ctx, p, handle)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(target.PasswordHash, req.OldPassword) {
		return ErrWrongOldPassword
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return ErrInvalidNewPassword
	}
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, target.ID, hash); err != nil {
		return err
	}
	s.record(ctx, p, shared.AuditUserPasswordChange, target, nil)
	return nil
}

// AddRolesToUser grants catalog roles. The principal needs authority over the
// user's company and may only grant roles at or below its own rank.
func (s *Service) AddRolesToUser(ctx context.Context, p rbac.Principal, handle uuid.UUID, req AddRolesRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	roles := make([]rbac.Role, 0, len(req.RoleIDs))
	for _, id := range req.RoleIDs {
		role, err := rbac.RoleByID(id)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		roles = append(roles, role)
	}

	target, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		return err
	}
	acting, err := s.actingCompany(ctx, p)
	if err != nil {
		return err
	}
	if !rbac.Evaluate(p, acting, target.Company.Handle) {
		return ErrInvalidRole
	}

	missing := make([]rbac.Role, 0, len(roles))
	for _, role := range roles {
		if !rbac.CanGrant(p, role) {
			return ErrInvalidRole
		}
		if !target.HasRole(role) && !containsRole(missing, role) {
			missing = append(missing, role)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if err := s.repo.AddRoles(ctx, target.ID, missing); err != nil {
		return err
	}
	s.record(ctx, p, shared.AuditUserRolesAdded, target, map[string]any{"roles": rbac.Names(missing)})
	return nil
}

// AddUserToCompany moves a user to another company.
func (s *Service) AddUserToCompany(ctx context.Context, p rbac.Principal, handle uuid.UUID, req MoveCompanyRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	companyHandle, err := uuid.Parse(req.CompanyHandle)
	if err != nil {
		return fmt.Errorf("%w: company_handle must be a valid handle", ErrInvalidData)
	}
	company, err := s.repo.FindCompanyByHandle(ctx, companyHandle)
	if err != nil {
		return err
	}
	target, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		return err
	}
	acting, err := s.actingCompany(ctx, p)
	if err != nil {
		return err
	}
	if !rbac.Evaluate(p, acting, target.Company.Handle) || !rbac.Evaluate(p, acting, company.Handle) {
		return ErrInvalidRole
	}
	if target.Company.ID == company.ID {
		return nil
	}
	if err := s.repo.MoveToCompany(ctx, target.ID, company.ID); err != nil {
		return err
	}
	s.record(ctx, p, shared.AuditUserMoved, target, map[string]any{
		"from_company": target.Company.Handle.String(),
		"to_company":   company.Handle.String(),
	})
	return nil
}

// ResetPassword issues a fresh one-time password and mails it to the user.
func (s *Service) ResetPassword(ctx context.Context, p rbac.Principal, handle uuid.UUID) error {
	target, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		return err
	}
	acting, err := s.actingCompany(ctx, p)
	if err != nil {
		return err
	}
	if !rbac.Evaluate(p, acting, target.Company.Handle) {
		return ErrInvalidRole
	}
	if target.Fired() {
		return fmt.Errorf("%w: user is fired", ErrInvalidData)
	}
	password, err := s.generator.Generate()
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, target.ID, hash); err != nil {
		return err
	}
	s.record(ctx, p, shared.AuditUserPasswordReset, target, nil)
	s.sendWelcome(ctx, p, target, password)
	return nil
}

// ListUsers returns users visible to the principal. Non-admins only ever see
// their own company.
func (s *Service) ListUsers(ctx context.Context, p rbac.Principal, filters ListFilters) (ListResponse, error) {
	switch {
	case p.IsAdmin():
	case p.HasElevatedRole():
		acting, err := s.actingCompany(ctx, p)
		if err != nil {
			return ListResponse{}, err
		}
		if acting == uuid.Nil {
			return ListResponse{}, ErrInvalidRole
		}
		if filters.CompanyHandle != uuid.Nil && filters.CompanyHandle != acting {
			return ListResponse{}, ErrInvalidRole
		}
		filters.CompanyHandle = acting
	default:
		return ListResponse{}, ErrInvalidRole
	}
	filters.Search = clean(filters.Search)
	filters.Page = shared.NewPageRequest(filters.Page.Page, filters.Page.PerPage)

	users, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return ListResponse{}, err
	}
	views := make([]View, 0, len(users))
	for _, u := range users {
		views = append(views, NewView(u))
	}
	return ListResponse{Users: views, Pagination: shared.NewPagination(filters.Page, total)}, nil
}

func (s *Service) authorizeAccess(ctx context.Context, p rbac.Principal, handle uuid.UUID) (User, error) {
	target, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		return User{}, err
	}
	acting, err := s.actingCompany(ctx, p)
	if err != nil {
		return User{}, err
	}
	if !rbac.CanAccessUser(p, acting, target.ID, target.Company.Handle) {
		return User{}, ErrInvalidRole
	}
	return target, nil
}

// actingCompany resolves the principal's current company from storage. A
// principal without a company acts on behalf of none.
func (s *Service) actingCompany(ctx context.Context, p rbac.Principal) (uuid.UUID, error) {
	if !p.Authenticated() {
		return uuid.Nil, nil
	}
	company, err := s.repo.CompanyOfUser(ctx, p.ID)
	if err != nil {
		if errors.Is(err, ErrCompanyNotFound) || errors.Is(err, ErrUserNotFound) {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("resolve acting company: %w", err)
	}
	return company.Handle, nil
}

func (s *Service) sendWelcome(ctx context.Context, p rbac.Principal, u User, password string) {
	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	msg := WelcomeMessage{
		Email:    u.Email,
		Name:     u.Name,
		Surname:  u.Surname,
		Username: u.Username,
		Password: password,
	}
	if err := s.notifier.SendWelcome(notifyCtx, msg); err != nil {
		s.logger.Warn("welcome notification failed",
			slog.String("user", u.Handle.String()),
			slog.Any("error", err))
		if s.metrics != nil {
			s.metrics.WelcomeMailFailed()
		}
		s.record(ctx, p, shared.AuditWelcomeMailFailed, u, map[string]any{"error": err.Error()})
	}
}

func (s *Service) record(ctx context.Context, p rbac.Principal, action string, u User, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  p.ID,
		Action:   action,
		Entity:   "user",
		EntityID: u.Handle.String(),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("record audit log", slog.String("action", action), slog.Any("error", err))
	}
}

func containsRole(roles []rbac.Role, r rbac.Role) bool {
	for _, held := range roles {
		if held == r {
			return true
		}
	}
	return false
}

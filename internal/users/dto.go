package users

import (
	"github.com/google/uuid"

	"github.com/deliver-app/deliver/internal/shared"
)

// CreateRequest represents request to provision a new worker.
type CreateRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	Surname       string `json:"surname" validate:"required,max=100"`
	Username      string `json:"username" validate:"required,min=3,max=50,username"`
	Email         string `json:"email" validate:"required,email,max=254"`
	Phone         string `json:"phone" validate:"omitempty,max=32"`
	CompanyHandle string `json:"company_handle" validate:"required,uuid"`
}

// UpdateRequest represents a partial profile update. Nil fields stay as they are.
type UpdateRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Surname       *string `json:"surname,omitempty" validate:"omitempty,min=1,max=100"`
	Username      *string `json:"username,omitempty" validate:"omitempty,min=3,max=50,username"`
	Email         *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	CompanyHandle *string `json:"company_handle,omitempty" validate:"omitempty,uuid"`
}

// ChangePasswordRequest carries the current and the desired password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// AddRolesRequest lists catalog role IDs to grant.
type AddRolesRequest struct {
	RoleIDs []int64 `json:"role_ids" validate:"required,min=1,dive,gt=0"`
}

// MoveCompanyRequest reassigns a user to another company.
type MoveCompanyRequest struct {
	CompanyHandle string `json:"company_handle" validate:"required,uuid"`
}

// ListFilters narrows user listings.
type ListFilters struct {
	CompanyHandle uuid.UUID
	Search        string
	IncludeFired  bool
	Page          shared.PageRequest
}

// ListResponse is the API payload for user listings.
type ListResponse struct {
	Users      []View            `json:"users"`
	Pagination shared.Pagination `json:"pagination"`
}

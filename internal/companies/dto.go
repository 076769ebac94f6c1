package companies

import "github.com/deliver-app/deliver/internal/shared"

type CreateRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	Email         string `json:"email" validate:"required,email,max=254"`
	ContactNumber string `json:"contact_number" validate:"omitempty,max=32"`
}

type ListFilters struct {
	Search string
	Page   shared.PageRequest
}

type ListResponse struct {
	Companies  []Company         `json:"companies"`
	Pagination shared.Pagination `json:"pagination"`
}

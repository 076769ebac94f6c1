package companies

import (
	"time"

	"github.com/google/uuid"
)

// Company is a tenant that owns workers.
type Company struct {
	ID            int64     `json:"-"`
	Handle        uuid.UUID `json:"handle"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	ContactNumber string    `json:"contact_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

package rbac

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownRole indicates a role outside the fixed catalog.
var ErrUnknownRole = errors.New("rbac: unknown role")

// Role is an entry of the closed role catalog. IDs are stable and stored in
// user_roles.role_id.
type Role int64

// Role catalog.
const (
	RoleAdmin Role = iota + 1
	RoleCompanyOwner
	RoleCompanyAdmin
	RoleHR
	RoleDriver
)

var roleNames = map[Role]string{
	RoleAdmin:        "admin",
	RoleCompanyOwner: "company_owner",
	RoleCompanyAdmin: "company_admin",
	RoleHR:           "hr",
	RoleDriver:       "driver",
}

var roleDescriptions = map[Role]string{
	RoleAdmin:        "System administrator with authority over every company",
	RoleCompanyOwner: "Owner of a company",
	RoleCompanyAdmin: "Administrator of a company",
	RoleHR:           "Manages workers of a company",
	RoleDriver:       "Company member without management authority",
}

// String returns the catalog name of the role.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int64(r))
}

// Valid reports whether r belongs to the catalog.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Elevated reports whether the role carries company-wide authority.
func (r Role) Elevated() bool {
	switch r {
	case RoleAdmin, RoleCompanyOwner, RoleCompanyAdmin, RoleHR:
		return true
	}
	return false
}

// RoleByID resolves a catalog role from its numeric ID.
func RoleByID(id int64) (Role, error) {
	r := Role(id)
	if !r.Valid() {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownRole, id)
	}
	return r, nil
}

// ParseRole resolves a catalog role from its name.
func ParseRole(name string) (Role, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	for r, n := range roleNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// RoleInfo describes a catalog entry for API consumers.
type RoleInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Catalog lists every role ordered by ID.
func Catalog() []RoleInfo {
	out := make([]RoleInfo, 0, len(roleNames))
	for r := RoleAdmin; r <= RoleDriver; r++ {
		out = append(out, RoleInfo{ID: int64(r), Name: r.String(), Description: roleDescriptions[r]})
	}
	return out
}

// Names renders roles as catalog names.
func Names(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.String())
	}
	return out
}

// Principal describes the authenticated actor for the duration of a request.
type Principal struct {
	ID            int64
	Handle        uuid.UUID
	CompanyHandle uuid.UUID
	Roles         []Role
}

// HasRole reports whether the principal holds role r.
func (p Principal) HasRole(r Role) bool {
	for _, held := range p.Roles {
		if held == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal holds the system-wide admin role.
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// HasElevatedRole reports whether the principal holds any management role.
func (p Principal) HasElevatedRole() bool {
	for _, held := range p.Roles {
		if held.Elevated() {
			return true
		}
	}
	return false
}

// Authenticated reports whether the principal was resolved from a login.
func (p Principal) Authenticated() bool {
	return p.ID > 0
}

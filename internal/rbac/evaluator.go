package rbac

import "github.com/google/uuid"

// Evaluate decides whether the principal may act on users of targetCompany.
// actingCompany is the principal's own company as resolved from the store;
// uuid.Nil means it could not be resolved.
//
// Admins are authorised everywhere. Company owners, company admins and HR are
// authorised only inside their own company. Everyone else is denied.
func Evaluate(p Principal, actingCompany, targetCompany uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	if actingCompany == uuid.Nil || targetCompany == uuid.Nil {
		return false
	}
	if !p.HasRole(RoleCompanyOwner) && !p.HasRole(RoleCompanyAdmin) && !p.HasRole(RoleHR) {
		return false
	}
	return actingCompany == targetCompany
}

// CanAccessUser applies the two-tier check used by user operations: the
// target is the principal itself, or Evaluate approves the target's company.
func CanAccessUser(p Principal, actingCompany uuid.UUID, targetUserID int64, targetCompany uuid.UUID) bool {
	if p.Authenticated() && targetUserID == p.ID {
		return true
	}
	return Evaluate(p, actingCompany, targetCompany)
}

// CanGrant reports whether the principal may hand out role r. A role can be
// granted only by someone holding a role of equal or higher authority, so
// only admins create further admins.
func CanGrant(p Principal, r Role) bool {
	if !r.Valid() || !p.HasElevatedRole() {
		return false
	}
	return authority(p) >= rank(r)
}

func rank(r Role) int {
	switch r {
	case RoleAdmin:
		return 4
	case RoleCompanyOwner:
		return 3
	case RoleCompanyAdmin:
		return 2
	case RoleHR:
		return 1
	}
	return 0
}

func authority(p Principal) int {
	highest := 0
	for _, r := range p.Roles {
		if v := rank(r); v > highest {
			highest = v
		}
	}
	return highest
}

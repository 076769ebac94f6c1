package users

import (
	"fmt"

	"github.com/deliver-app/deliver/internal/shared"
)

// Domain errors for user lifecycle operations.
var (
	ErrInvalidData        = fmt.Errorf("%w: invalid user data", shared.ErrValidation)
	ErrUserExists         = fmt.Errorf("%w: user already exists", shared.ErrConflict)
	ErrInvalidRole        = fmt.Errorf("%w: not permitted for this user or company", shared.ErrForbidden)
	ErrCompanyNotFound    = fmt.Errorf("%w: company does not exist", shared.ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("%w: user does not exist", shared.ErrNotFound)
	ErrWrongOldPassword   = fmt.Errorf("%w: current password is incorrect", shared.ErrCredential)
	ErrInvalidNewPassword = fmt.Errorf("%w: new password must be at least 8 characters, at most 72 bytes and differ from the current one", shared.ErrValidation)
)

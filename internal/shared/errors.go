package shared

import "errors"

// Error kinds shared by every module. Domain sentinels wrap one of these so
// the HTTP layer can map outcomes without knowing each module's errors.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates the caller is not allowed to perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrCredential indicates a submitted secret did not match the stored one.
	ErrCredential = errors.New("credential mismatch")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserSafeMessage returns a message that can be shown to API clients. Errors
// that do not carry a known kind collapse into a generic message.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrCredential):
		return err.Error()
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid username or password"
	default:
		return "unexpected error, please try again"
	}
}

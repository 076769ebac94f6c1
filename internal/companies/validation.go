package companies

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/deliver-app/deliver/internal/shared"
)

var (
	ErrNotFound  = fmt.Errorf("%w: company does not exist", shared.ErrNotFound)
	ErrDuplicate = fmt.Errorf("%w: company name already taken", shared.ErrConflict)
	ErrForbidden = fmt.Errorf("%w: not permitted for this company", shared.ErrForbidden)
	ErrInvalid   = fmt.Errorf("%w: invalid company data", shared.ErrValidation)
)

var validate = validator.New()

func (r *CreateRequest) normalize() {
	r.Name = norm.NFC.String(strings.TrimSpace(r.Name))
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.ContactNumber = strings.TrimSpace(r.ContactNumber)
}

func (r CreateRequest) validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return fmt.Errorf("%w: check %s", ErrInvalid, strings.Join(fields, ", "))
}

package users

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// maxSecretBytes is the longest input bcrypt accepts.
const maxSecretBytes = 72

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct runs tag validation and folds failures into ErrInvalidData.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Field()+" "+describeTag(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidData, strings.Join(msgs, "; "))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "uuid":
		return "must be a valid handle"
	case "username":
		return "may contain letters, digits, '.', '_' and '-'"
	case "min", "max":
		return fmt.Sprintf("violates %s=%s", fe.Tag(), fe.Param())
	default:
		return "is invalid"
	}
}

// clean trims and NFC-normalises free text so visually equal input compares equal.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func cleanPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := clean(*s)
	return &v
}

func (r *CreateRequest) normalize() {
	r.Name = clean(r.Name)
	r.Surname = clean(r.Surname)
	r.Username = clean(r.Username)
	r.Email = strings.ToLower(clean(r.Email))
	r.Phone = clean(r.Phone)
	r.CompanyHandle = strings.TrimSpace(r.CompanyHandle)
}

func (r *UpdateRequest) normalize() {
	r.Name = cleanPtr(r.Name)
	r.Surname = cleanPtr(r.Surname)
	r.Username = cleanPtr(r.Username)
	r.Phone = cleanPtr(r.Phone)
	r.CompanyHandle = cleanPtr(r.CompanyHandle)
	if r.Email != nil {
		email := strings.ToLower(clean(*r.Email))
		r.Email = &email
	}
}

func (r ChangePasswordRequest) validate() error {
	if err := validate.Struct(r); err != nil {
		return ErrInvalidNewPassword
	}
	if len(r.NewPassword) > maxSecretBytes || r.NewPassword == r.OldPassword {
		return ErrInvalidNewPassword
	}
	return nil
}

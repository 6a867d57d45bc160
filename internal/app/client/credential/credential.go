// Package credential checks registration and profile input before anything
// reaches the account store.
package credential

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/Miraines/yuzedo/client-service/internal/adapters/transport/http/dto"
	customErrors "github.com/Miraines/yuzedo/client-service/internal/domain/client/errors"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/model"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/repo"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

const (
	MsgRequired         = "this field is required"
	MsgPasswordMismatch = "passwords do not match"
	MsgINN              = "tax id must contain 10 or 12 digits"
	MsgPhone            = "phone must start with +"
	MsgUsernameTaken    = "a client with this username already exists"
	MsgEmailTaken       = "a client with this email already exists"
	MsgINNTaken         = "a client with this tax id already exists"
	MsgEmailAsUsername  = "email is too long to be used as username, choose a username"

	// MaxUsernameLen matches the clients.username column.
	MaxUsernameLen = 150
)

// NewValidate builds the struct validator with the domain tags registered:
// "inn" (10 or 12 digits), "phone" (leading "+") and "notblank". Field names
// in errors follow the json tags.
func NewValidate() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("inn", func(fl validator.FieldLevel) bool {
		return ValidINN(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return strings.HasPrefix(fl.Field().String(), "+")
	})
	return v
}

func ValidINN(inn string) bool {
	if len(inn) != 10 && len(inn) != 12 {
		return false
	}
	for _, r := range inn {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type Validator struct {
	v        *validator.Validate
	accounts repo.AccountRepo
}

func New(v *validator.Validate, accounts repo.AccountRepo) *Validator {
	return &Validator{v: v, accounts: accounts}
}

// Struct validates s and converts failures into a field-keyed ValidationError.
func (c *Validator) Struct(s any) error {
	fields := c.fieldErrors(s)
	if len(fields) > 0 {
		return customErrors.NewValidationError(fields)
	}
	return nil
}

// ValidateRegistration returns the account to be created (without password hash)
// or a ValidationError. The uniqueness lookups are a fast path only: the store's
// unique indexes decide concurrent races.
func (c *Validator) ValidateRegistration(ctx context.Context, in dto.RegisterDTO) (model.Account, error) {
	in = trimRegistration(in)

	fields := c.fieldErrors(in)
	if fields == nil {
		fields = map[string]string{}
	}
	if in.Password != "" && in.Password2 != "" && in.Password != in.Password2 {
		fields["password"] = MsgPasswordMismatch
	}

	account := model.Account{
		Username:        in.Username,
		Email:           in.Email,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		INN:             in.INN,
		KPP:             optional(in.KPP),
		CompanyName:     optional(in.CompanyName),
		LegalAddress:    in.LegalAddress,
		PhysicalAddress: optional(in.PhysicalAddress),
		Phone:           in.Phone,
		ClientType:      model.ClientType(in.ClientType),
	}
	derived := account.Username == ""
	account.Normalize()
	if len(account.Username) > MaxUsernameLen {
		if derived {
			fields["email"] = MsgEmailAsUsername
		} else {
			fields["username"] = fmt.Sprintf("ensure this field has no more than %d characters", MaxUsernameLen)
		}
	}

	duplicate := false
	checks := []struct {
		field, column, value, msg string
	}{
		{"username", repo.FieldUsername, account.Username, MsgUsernameTaken},
		{"email", repo.FieldEmail, account.Email, MsgEmailTaken},
		{"inn", repo.FieldINN, account.INN, MsgINNTaken},
	}
	for _, chk := range checks {
		if _, bad := fields[chk.field]; bad || chk.value == "" {
			continue
		}
		exists, err := c.accounts.Exists(ctx, chk.column, chk.value)
		if err != nil {
			return model.Account{}, customErrors.WrapInternal(err, fmt.Sprintf("check %s", chk.column))
		}
		if exists {
			fields[chk.field] = chk.msg
			duplicate = true
		}
	}

	if len(fields) > 0 {
		return model.Account{}, &customErrors.ValidationError{Fields: fields, Duplicate: duplicate}
	}
	return account, nil
}

func (c *Validator) fieldErrors(s any) map[string]string {
	err := c.v.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"non_field_errors": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return fields
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return MsgRequired
	case "email":
		return "enter a valid email address"
	case "inn":
		return MsgINN
	case "phone":
		return MsgPhone
	case "max":
		return fmt.Sprintf("ensure this field has no more than %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("ensure this field has at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return "invalid value"
	}
}

func trimRegistration(in dto.RegisterDTO) dto.RegisterDTO {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.INN = strings.TrimSpace(in.INN)
	in.KPP = strings.TrimSpace(in.KPP)
	in.Phone = strings.TrimSpace(in.Phone)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.LegalAddress = strings.TrimSpace(in.LegalAddress)
	return in
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

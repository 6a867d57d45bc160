package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Miraines/yuzedo/client-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/yuzedo/client-service/internal/app/client/credential"
	"github.com/Miraines/yuzedo/client-service/internal/app/client/token"
	customErrors "github.com/Miraines/yuzedo/client-service/internal/domain/client/errors"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/model"
	repo "github.com/Miraines/yuzedo/client-service/internal/domain/client/repo"
	"github.com/google/uuid"
)

// Login failure reasons. They are shown to the caller as-is.
var (
	ErrCredentialsRequired = fmt.Errorf("%w: username and password are required", customErrors.ErrInvalidCredentials)
	ErrAccountDisabled     = fmt.Errorf("%w: account is disabled", customErrors.ErrInvalidCredentials)
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

type clientService struct {
	accounts  repo.AccountRepo
	issuer    *token.Issuer
	validator *credential.Validator
	hasher    PasswordHasher
	now       func() time.Time
}

type Service interface {
	Register(context.Context, dto.RegisterDTO) (model.Session, error)
	Login(context.Context, dto.LoginDTO) (model.Session, error)
	Logout(context.Context, dto.LogoutDTO) error
	Refresh(context.Context, dto.RefreshDTO) (string, error)
	Authenticate(ctx context.Context, accessToken string) (model.Account, error)
	UpdateProfile(context.Context, model.Account, dto.UpdateProfileDTO) (model.Account, error)
	ListAccounts(ctx context.Context, caller model.Account) ([]model.Account, error)
}

func New(
	ar repo.AccountRepo,
	issuer *token.Issuer,
	v *credential.Validator,
	h PasswordHasher,
) Service {
	return &clientService{
		accounts: ar, issuer: issuer, validator: v, hasher: h, now: time.Now,
	}
}

func (s *clientService) Register(ctx context.Context, in dto.RegisterDTO) (model.Session, error) {
	account, err := s.validator.ValidateRegistration(ctx, in)
	if err != nil {
		return model.Session{}, err
	}

	account.PasswordHash, err = s.hasher.Hash(in.Password)
	if err != nil {
		return model.Session{}, customErrors.WrapInternal(err, "Register")
	}

	now := s.now()
	account.ID = uuid.New()
	account.Status = model.StatusPending
	account.IsActive = true
	account.RegistrationDate = now
	account.LastActivity = now

	if _, err = s.accounts.CreateAccount(ctx, account); err != nil {
		var dk *customErrors.DuplicateKeyError
		if errors.As(err, &dk) {
			return model.Session{}, duplicateToValidation(dk)
		}
		return model.Session{}, customErrors.WrapInternal(err, "Register")
	}

	pair, err := s.issuer.Mint(ctx, account)
	if err != nil {
		return model.Session{}, err
	}

	return model.Session{Account: account, Tokens: pair}, nil
}

func (s *clientService) Login(ctx context.Context, in dto.LoginDTO) (model.Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return model.Session{}, ErrCredentialsRequired
	}

	account, err := s.accounts.GetAccountByUsername(ctx, in.Username)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.Session{}, customErrors.ErrInvalidCredentials
	case err != nil:
		return model.Session{}, customErrors.WrapInternal(err, "Login")
	}

	ok, err := s.hasher.Verify(in.Password, account.PasswordHash)
	if err != nil {
		return model.Session{}, customErrors.WrapInternal(err, "Login")
	}
	if !ok {
		return model.Session{}, customErrors.ErrInvalidCredentials
	}
	if !account.IsActive {
		return model.Session{}, ErrAccountDisabled
	}

	now := s.now()
	if err = s.accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
		return model.Session{}, customErrors.WrapInternal(err, "Login")
	}
	account.LastLogin = &now
	account.LastActivity = now

	pair, err := s.issuer.Mint(ctx, account)
	if err != nil {
		return model.Session{}, err
	}

	return model.Session{Account: account, Tokens: pair}, nil
}

func (s *clientService) Logout(ctx context.Context, in dto.LogoutDTO) error {
	if strings.TrimSpace(in.RefreshToken) == "" {
		return customErrors.NewInvalidArgument("refresh token is required")
	}
	return s.issuer.Revoke(ctx, in.RefreshToken)
}

func (s *clientService) Refresh(ctx context.Context, in dto.RefreshDTO) (string, error) {
	if strings.TrimSpace(in.RefreshToken) == "" {
		return "", customErrors.ErrInvalidToken
	}
	access, _, err := s.issuer.Refresh(ctx, in.RefreshToken)
	return access, err
}

// Authenticate resolves a bearer access token to an enabled account and
// records the activity.
func (s *clientService) Authenticate(ctx context.Context, accessToken string) (model.Account, error) {
	claims, err := s.issuer.ParseAccess(accessToken)
	if err != nil {
		return model.Account{}, err
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Account{}, customErrors.ErrInvalidToken
	}
	account, err := s.accounts.GetAccountByID(ctx, uid)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.Account{}, customErrors.ErrInvalidToken
	case err != nil:
		return model.Account{}, customErrors.WrapInternal(err, "Authenticate")
	}
	if !account.IsActive {
		return model.Account{}, customErrors.ErrInvalidToken
	}

	now := s.now()
	if err = s.accounts.TouchLastActivity(ctx, account.ID, now); err != nil {
		return model.Account{}, customErrors.WrapInternal(err, "Authenticate")
	}
	account.LastActivity = now

	return account, nil
}

func (s *clientService) UpdateProfile(ctx context.Context, account model.Account, in dto.UpdateProfileDTO) (model.Account, error) {
	if err := s.validator.Struct(in); err != nil {
		return model.Account{}, err
	}

	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return model.Account{}, customErrors.WrapInternal(err, "UpdateProfile")
		}
		account.PasswordHash = hash
	}
	applyProfile(&account, in)
	account.UpdatedAt = s.now()

	if err := s.accounts.UpdateAccount(ctx, account); err != nil {
		var dk *customErrors.DuplicateKeyError
		if errors.As(err, &dk) {
			return model.Account{}, duplicateToValidation(dk)
		}
		return model.Account{}, customErrors.WrapInternal(err, "UpdateProfile")
	}

	// the store normalizes on write, mirror it for the response
	account.Normalize()
	return account, nil
}

func (s *clientService) ListAccounts(ctx context.Context, caller model.Account) ([]model.Account, error) {
	if !caller.IsStaff {
		return nil, customErrors.ErrPermissionDenied
	}
	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "ListAccounts")
	}
	return accounts, nil
}

func applyProfile(a *model.Account, in dto.UpdateProfileDTO) {
	if in.Email != nil {
		a.Email = strings.TrimSpace(*in.Email)
	}
	if in.FirstName != nil {
		a.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		a.LastName = *in.LastName
	}
	if in.KPP != nil {
		a.KPP = optional(*in.KPP)
	}
	if in.CompanyName != nil {
		a.CompanyName = optional(*in.CompanyName)
	}
	if in.LegalAddress != nil {
		a.LegalAddress = strings.TrimSpace(*in.LegalAddress)
	}
	if in.PhysicalAddress != nil {
		a.PhysicalAddress = optional(*in.PhysicalAddress)
	}
	if in.Phone != nil {
		a.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.ClientType != nil {
		a.ClientType = model.ClientType(*in.ClientType)
	}
}

func duplicateToValidation(dk *customErrors.DuplicateKeyError) error {
	field, msg := dk.Field, "a client with this value already exists"
	switch dk.Field {
	case repo.FieldUsername:
		msg = credential.MsgUsernameTaken
	case repo.FieldEmail:
		msg = credential.MsgEmailTaken
	case repo.FieldINN:
		msg = credential.MsgINNTaken
	case "":
		field = "non_field_errors"
	}
	return &customErrors.ValidationError{Fields: map[string]string{field: msg}, Duplicate: true}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

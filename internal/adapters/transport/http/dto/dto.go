package dto

import (
	"time"

	"github.com/Miraines/yuzedo/client-service/internal/domain/client/model"
)

type RegisterDTO struct {
	Username        string `json:"username"         validate:"omitempty,max=150"`
	Email           string `json:"email"            validate:"required,email,max=254"`
	Password        string `json:"password"         validate:"required"`
	Password2       string `json:"password2"        validate:"required"`
	FirstName       string `json:"first_name"       validate:"max=150"`
	LastName        string `json:"last_name"        validate:"max=150"`
	INN             string `json:"inn"              validate:"required,inn"`
	KPP             string `json:"kpp"              validate:"omitempty,max=9"`
	CompanyName     string `json:"company_name"     validate:"max=255"`
	LegalAddress    string `json:"legal_address"    validate:"required,max=500"`
	PhysicalAddress string `json:"physical_address" validate:"max=500"`
	Phone           string `json:"phone"            validate:"required,phone,max=20"`
	ClientType      string `json:"client_type"      validate:"omitempty,oneof=individual entrepreneur organization"`
}

type LoginDTO struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshDTO struct {
	RefreshToken string `json:"refresh" validate:"required"`
}

type LogoutDTO struct {
	RefreshToken string `json:"refresh" validate:"required"`
}

// UpdateProfileDTO is a partial update: nil fields are left untouched.
type UpdateProfileDTO struct {
	Email           *string `json:"email"            validate:"omitempty,email,max=254"`
	Password        *string `json:"password"         validate:"omitempty,min=1"`
	FirstName       *string `json:"first_name"       validate:"omitempty,max=150"`
	LastName        *string `json:"last_name"        validate:"omitempty,max=150"`
	KPP             *string `json:"kpp"              validate:"omitempty,max=9"`
	CompanyName     *string `json:"company_name"     validate:"omitempty,max=255"`
	LegalAddress    *string `json:"legal_address"    validate:"omitempty,notblank,max=500"`
	PhysicalAddress *string `json:"physical_address" validate:"omitempty,max=500"`
	Phone           *string `json:"phone"            validate:"omitempty,phone,max=20"`
	ClientType      *string `json:"client_type"      validate:"omitempty,oneof=individual entrepreneur organization"`
}

// AccountView is the public representation of an account. The password hash
// never leaves the service.
type AccountView struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	INN             string     `json:"inn"`
	KPP             *string    `json:"kpp"`
	CompanyName     *string    `json:"company_name"`
	LegalAddress    string     `json:"legal_address"`
	PhysicalAddress *string    `json:"physical_address"`
	Phone           string     `json:"phone"`
	ClientType      string     `json:"client_type"`
	Status          string     `json:"status"`
	IsVerified      bool       `json:"is_verified"`
	CanUseSystem    bool       `json:"can_use_system"`
	DateJoined      time.Time  `json:"date_joined"`
	LastLogin       *time.Time `json:"last_login"`
	LastActivity    time.Time  `json:"last_activity"`
}

func NewAccountView(a model.Account) AccountView {
	return AccountView{
		ID:              a.ID.String(),
		Username:        a.Username,
		Email:           a.Email,
		FirstName:       a.FirstName,
		LastName:        a.LastName,
		INN:             a.INN,
		KPP:             a.KPP,
		CompanyName:     a.CompanyName,
		LegalAddress:    a.LegalAddress,
		PhysicalAddress: a.PhysicalAddress,
		Phone:           a.Phone,
		ClientType:      string(a.ClientType),
		Status:          string(a.Status),
		IsVerified:      a.IsVerified(),
		CanUseSystem:    a.CanUseSystem(),
		DateJoined:      a.RegistrationDate,
		LastLogin:       a.LastLogin,
		LastActivity:    a.LastActivity,
	}
}

type TokensView struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

type SessionResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	User    AccountView `json:"user"`
	Tokens  TokensView  `json:"tokens"`
}

func NewSessionResponse(s model.Session, message string) SessionResponse {
	return SessionResponse{
		Success: true,
		Message: message,
		User:    NewAccountView(s.Account),
		Tokens: TokensView{
			Refresh: s.Tokens.RefreshToken,
			Access:  s.Tokens.AccessToken,
		},
	}
}

// TokenPairResponse is the flat shape returned by POST /token.
type TokenPairResponse struct {
	Refresh string      `json:"refresh"`
	Access  string      `json:"access"`
	User    AccountView `json:"user"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

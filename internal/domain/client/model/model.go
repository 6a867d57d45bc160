package model

import (
	"time"

	"github.com/google/uuid"
)

type ClientType string

const (
	ClientTypeIndividual   ClientType = "individual"
	ClientTypeEntrepreneur ClientType = "entrepreneur"
	ClientTypeOrganization ClientType = "organization"
)

func (c ClientType) Valid() bool {
	switch c {
	case ClientTypeIndividual, ClientTypeEntrepreneur, ClientTypeOrganization:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBlocked  Status = "blocked"
)

// Account is a registered client of the document-workflow system.
type Account struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Username         string     `gorm:"size:150;not null;uniqueIndex:idx_clients_username"`
	Email            string     `gorm:"size:254;not null;uniqueIndex:idx_clients_email"`
	PasswordHash     string     `gorm:"column:password_hash;not null"`
	FirstName        string     `gorm:"size:150"`
	LastName         string     `gorm:"size:150"`
	INN              string     `gorm:"column:inn;size:12;not null;uniqueIndex:idx_clients_inn"`
	KPP              *string    `gorm:"column:kpp;size:9"`
	CompanyName      *string    `gorm:"size:255"`
	LegalAddress     string     `gorm:"size:500;not null"`
	PhysicalAddress  *string    `gorm:"size:500"`
	Phone            string     `gorm:"size:20;not null"`
	ClientType       ClientType `gorm:"size:20;not null"`
	Status           Status     `gorm:"size:20;not null"`
	IsActive         bool       `gorm:"not null"`
	IsStaff          bool       `gorm:"not null"`
	RegistrationDate time.Time  `gorm:"autoCreateTime"`
	LastActivity     time.Time
	LastLogin        *time.Time
	UpdatedAt        time.Time
}

func (Account) TableName() string {
	return "clients"
}

// Normalize enforces the record invariants: username falls back to email,
// and kpp exists only for organizations.
func (a *Account) Normalize() {
	if a.Username == "" && a.Email != "" {
		a.Username = a.Email
	}
	if a.ClientType == "" {
		a.ClientType = ClientTypeOrganization
	}
	if a.ClientType != ClientTypeOrganization {
		a.KPP = nil
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
}

func (a Account) IsVerified() bool {
	return a.Status == StatusActive
}

func (a Account) CanUseSystem() bool {
	return (a.Status == StatusActive || a.Status == StatusPending) && a.IsActive
}

// Claims is the fixed set of account fields copied into every token at mint time.
type Claims struct {
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	INN         string     `json:"inn"`
	ClientType  ClientType `json:"client_type"`
	CompanyName string     `json:"company_name"`
}

func ClaimsFor(a Account) Claims {
	c := Claims{
		Username:   a.Username,
		Email:      a.Email,
		INN:        a.INN,
		ClientType: a.ClientType,
	}
	if a.CompanyName != nil {
		c.CompanyName = *a.CompanyName
	}
	return c
}

type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	UserId          uuid.UUID
	RefreshTokenJTI string
}

// Session is what register and login hand back: the account view plus tokens.
type Session struct {
	Account Account
	Tokens  TokenPair
}

type Stats struct {
	TotalUsers      int64
	ActiveUsers     int64
	PendingUsers    int64
	ActiveCompanies int64
	Individuals     int64
	Organizations   int64
}

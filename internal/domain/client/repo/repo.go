package repo

import (
	"context"
	"time"

	"github.com/Miraines/yuzedo/client-service/internal/domain/client/model"
	"github.com/google/uuid"
)

// Unique account columns that registration checks ahead of the insert.
const (
	FieldUsername = "username"
	FieldEmail    = "email"
	FieldINN      = "inn"
)

type AccountRepo interface {
	CreateAccount(ctx context.Context, a model.Account) (uuid.UUID, error)

	GetAccountByID(ctx context.Context, id uuid.UUID) (model.Account, error)

	GetAccountByUsername(ctx context.Context, username string) (model.Account, error)

	Exists(ctx context.Context, field, value string) (bool, error)

	UpdateAccount(ctx context.Context, a model.Account) error

	TouchLastActivity(ctx context.Context, id uuid.UUID, at time.Time) error

	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	ListAccounts(ctx context.Context) ([]model.Account, error)

	Stats(ctx context.Context) (model.Stats, error)
}

// TokenRepo tracks issued refresh tokens and their blacklist by jti.
type TokenRepo interface {
	Store(ctx context.Context, jti string, expiresAt time.Time) error

	// Revoke blacklists jti. It reports false when jti was already blacklisted.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error)

	IsRevoked(ctx context.Context, jti string) (bool, error)
}

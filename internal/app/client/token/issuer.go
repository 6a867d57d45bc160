// Package token mints, refreshes and revokes the JWT pairs handed to clients.
package token

import (
	"context"
	"errors"
	"time"

	customErrors "github.com/Miraines/yuzedo/client-service/internal/domain/client/errors"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/jwt"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/model"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/repo"
	"github.com/google/uuid"
)

type Issuer struct {
	jwtUtil   jwt.JWTUtil
	tokenRepo repo.TokenRepo
	accounts  repo.AccountRepo
	now       func() time.Time
}

func NewIssuer(jm jwt.JWTUtil, tr repo.TokenRepo, ar repo.AccountRepo) *Issuer {
	return &Issuer{jwtUtil: jm, tokenRepo: tr, accounts: ar, now: time.Now}
}

// Mint signs an access/refresh pair for a and records the refresh jti.
func (i *Issuer) Mint(ctx context.Context, a model.Account) (model.TokenPair, error) {
	claims := model.ClaimsFor(a)

	at, atExp, _, err := i.jwtUtil.GenerateAccessToken(a.ID, claims)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateAccessToken")
	}
	rt, rtExp, jti, err := i.jwtUtil.GenerateRefreshToken(a.ID, claims)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateRefreshToken")
	}

	if err = i.tokenRepo.Store(ctx, jti, rtExp); err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "StoreRefresh")
	}

	now := i.now()
	return model.TokenPair{
		AccessToken:     at,
		RefreshToken:    rt,
		AccessTTL:       atExp.Sub(now),
		RefreshTTL:      rtExp.Sub(now),
		UserId:          a.ID,
		RefreshTokenJTI: jti,
	}, nil
}

// Revoke blacklists a refresh token for the rest of its lifetime. A token that
// is already blacklisted is reported as invalid.
func (i *Issuer) Revoke(ctx context.Context, raw string) error {
	claims, err := i.jwtUtil.ValidateRefreshToken(raw)
	if err != nil {
		return customErrors.ErrInvalidToken
	}

	ok, err := i.tokenRepo.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return customErrors.WrapInternal(err, "Revoke")
	}
	if !ok {
		return customErrors.ErrInvalidToken
	}
	return nil
}

// Refresh returns a new access token carrying the claims of the refresh token.
// The refresh token itself is not rotated.
func (i *Issuer) Refresh(ctx context.Context, raw string) (string, time.Time, error) {
	claims, err := i.jwtUtil.ValidateRefreshToken(raw)
	if err != nil {
		return "", time.Time{}, customErrors.ErrInvalidToken
	}

	revoked, err := i.tokenRepo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "Refresh")
	}
	if revoked {
		return "", time.Time{}, customErrors.ErrInvalidToken
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", time.Time{}, customErrors.ErrInvalidToken
	}
	if _, err = i.accounts.GetAccountByID(ctx, uid); err != nil {
		if errors.Is(err, customErrors.ErrNotFound) {
			return "", time.Time{}, customErrors.ErrInvalidToken
		}
		return "", time.Time{}, customErrors.WrapInternal(err, "Refresh")
	}

	at, exp, _, err := i.jwtUtil.GenerateAccessToken(uid, claims.Claims)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "GenerateAccessToken")
	}
	return at, exp, nil
}

func (i *Issuer) ParseAccess(raw string) (jwt.Claims, error) {
	claims, err := i.jwtUtil.ValidateAccessToken(raw)
	if err != nil {
		return jwt.Claims{}, customErrors.ErrInvalidToken
	}
	return claims, nil
}

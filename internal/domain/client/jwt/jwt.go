package jwt

import (
	"time"

	"github.com/Miraines/yuzedo/client-service/internal/domain/client/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is shared by access and refresh tokens; TokenType tells them apart.
type Claims struct {
	jwt.RegisteredClaims
	model.Claims
	TokenType string `json:"token_type"`
}

type JWTUtil interface {
	GenerateAccessToken(userID uuid.UUID, claims model.Claims) (token string, exp time.Time, jti string, err error)
	GenerateRefreshToken(userID uuid.UUID, claims model.Claims) (token string, exp time.Time, jti string, err error)
	ValidateAccessToken(token string) (claims Claims, err error)
	ValidateRefreshToken(token string) (claims Claims, err error)
}

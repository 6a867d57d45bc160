package jwt

import (
	"crypto/rsa"
	"errors"
	"os"
	"slices"
	"time"

	customErrors "github.com/Miraines/yuzedo/client-service/internal/domain/client/errors"
	jwt2 "github.com/Miraines/yuzedo/client-service/internal/domain/client/jwt"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/model"
	"github.com/Miraines/yuzedo/client-service/internal/infra/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type JwtUtilImpl struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   string
	now        func() time.Time
}

func NewJWTUtil(cfg *config.Config) (*JwtUtilImpl, error) {
	privPem, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "read private key")
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privPem)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "parse private key")
	}

	pubPem, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "read public key")
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPem)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "parse public key")
	}

	return NewJWTUtilFromKeys(privKey, pubKey, cfg), nil
}

func NewJWTUtilFromKeys(priv *rsa.PrivateKey, pub *rsa.PublicKey, cfg *config.Config) *JwtUtilImpl {
	return &JwtUtilImpl{
		privateKey: priv,
		publicKey:  pub,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		now:        time.Now,
	}
}

func (j *JwtUtilImpl) GenerateAccessToken(userID uuid.UUID, c model.Claims) (string, time.Time, string, error) {
	return j.generate(userID, c, jwt2.TokenTypeAccess, j.accessTTL)
}

func (j *JwtUtilImpl) GenerateRefreshToken(userID uuid.UUID, c model.Claims) (string, time.Time, string, error) {
	return j.generate(userID, c, jwt2.TokenTypeRefresh, j.refreshTTL)
}

func (j *JwtUtilImpl) ValidateAccessToken(raw string) (jwt2.Claims, error) {
	return j.validate(raw, jwt2.TokenTypeAccess)
}

func (j *JwtUtilImpl) ValidateRefreshToken(raw string) (jwt2.Claims, error) {
	return j.validate(raw, jwt2.TokenTypeRefresh)
}

func (j *JwtUtilImpl) generate(userID uuid.UUID, c model.Claims, tokenType string, ttl time.Duration) (token string, exp time.Time, jti string, err error) {
	jti = uuid.NewString()
	now := j.now()

	claims := jwt2.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    j.issuer,
			Audience:  jwt.ClaimStrings{j.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
		Claims:    c,
		TokenType: tokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(j.privateKey)
	if err != nil {
		return "", time.Time{}, "", customErrors.WrapInternal(err, "sign "+tokenType+" token")
	}

	return signed, claims.ExpiresAt.Time, jti, nil
}

func (j *JwtUtilImpl) validate(raw, tokenType string) (jwt2.Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt2.Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, customErrors.ErrInvalidToken
		}
		return j.publicKey, nil
	}, jwt.WithIssuedAt(), jwt.WithExpirationRequired(), jwt.WithTimeFunc(j.now))

	if err != nil || !token.Valid {
		return jwt2.Claims{}, customErrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt2.Claims)
	if !ok {
		return jwt2.Claims{}, customErrors.WrapInternal(
			errors.New("unexpected claims type"), "validate "+tokenType+" token",
		)
	}

	if claims.TokenType != tokenType {
		return jwt2.Claims{}, customErrors.ErrInvalidToken
	}
	if j.issuer != "" && claims.Issuer != j.issuer {
		return jwt2.Claims{}, customErrors.ErrInvalidToken
	}
	if j.audience != "" && !slices.Contains(claims.Audience, j.audience) {
		return jwt2.Claims{}, customErrors.ErrInvalidToken
	}
	if claims.ID == "" {
		return jwt2.Claims{}, customErrors.ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return jwt2.Claims{}, customErrors.ErrInvalidToken
	}

	return *claims, nil
}

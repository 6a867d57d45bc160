package middleware

import (
	"context"
	"net/http"
	"strings"

	customErrors "github.com/Miraines/yuzedo/client-service/internal/domain/client/errors"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const accountKey = "account"

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (model.Account, error)
}

// BearerAuth rejects requests without a valid "Authorization: Bearer" access
// token and stores the resolved account in the context.
func BearerAuth(auth Authenticator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication credentials were not provided"})
			return
		}

		account, err := auth.Authenticate(c.Request.Context(), raw)
		if err != nil {
			if !customErrors.IsInvalidToken(err) {
				log.Error("bearer authentication", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(accountKey, account)
		c.Next()
	}
}

// Account returns the account stored by BearerAuth.
func Account(c *gin.Context) (model.Account, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return model.Account{}, false
	}
	a, ok := v.(model.Account)
	return a, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

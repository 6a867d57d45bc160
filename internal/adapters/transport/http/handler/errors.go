package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Miraines/yuzedo/client-service/internal/adapters/transport/http/dto"
	customErrors "github.com/Miraines/yuzedo/client-service/internal/domain/client/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case customErrors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "validation error", Details: details(err)})
	case customErrors.IsInvalidCredentials(err):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid credentials"})
	case customErrors.IsInvalidToken(err):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "token is invalid or expired"})
	case customErrors.IsPermissionDenied(err):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "you do not have permission to perform this action"})
	case customErrors.IsAlreadyExists(err):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	case customErrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not found"})
	default:
		_ = c.Error(err)
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
}

// loginError reports every authentication failure as 401 with the reason in
// details; only unexpected failures fall through to handleError.
func (h *Handler) loginError(c *gin.Context, err error) {
	if !customErrors.IsInvalidCredentials(err) {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error:   "authentication failed",
		Details: map[string]string{"non_field_errors": reason(err)},
	})
}

func details(err error) map[string]string {
	if fields := customErrors.FieldErrors(err); fields != nil {
		return fields
	}
	return map[string]string{"non_field_errors": reason(err)}
}

// reason strips the sentinel prefix from err's message.
func reason(err error) string {
	msg := err.Error()
	for _, s := range []error{customErrors.ErrInvalidArgument, customErrors.ErrInvalidCredentials} {
		if errors.Is(err, s) {
			msg = strings.TrimPrefix(msg, s.Error()+": ")
		}
	}
	return msg
}

package handler

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"

	"github.com/Miraines/yuzedo/client-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/yuzedo/client-service/internal/adapters/transport/http/middleware"
	"github.com/Miraines/yuzedo/client-service/internal/app/client/service"
	"github.com/Miraines/yuzedo/client-service/internal/app/health"
	customErrors "github.com/Miraines/yuzedo/client-service/internal/domain/client/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgRegistered = "registration successful"
	msgLoggedIn   = "login successful"
	msgLoggedOut  = "logged out successfully"
)

type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

type Handler struct {
	svc    service.Service
	health HealthChecker
	log    *zap.Logger
}

func New(svc service.Service, hc HealthChecker, log *zap.Logger) *Handler {
	return &Handler{svc: svc, health: hc, log: log}
}

func (h *Handler) Register(c *gin.Context) {
	var body dto.RegisterDTO
	if !h.bind(c, &body) {
		return
	}
	h.log.Info("/register", zap.String("user", digest(body.Email)))

	sess, err := h.svc.Register(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewSessionResponse(sess, msgRegistered))
}

func (h *Handler) Login(c *gin.Context) {
	var body dto.LoginDTO
	if !h.bind(c, &body) {
		return
	}
	h.log.Info("/login", zap.String("user", digest(body.Username)))

	sess, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		h.loginError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSessionResponse(sess, msgLoggedIn))
}

// ObtainPair is the plain token endpoint: same checks as Login, flat body.
func (h *Handler) ObtainPair(c *gin.Context) {
	var body dto.LoginDTO
	if !h.bind(c, &body) {
		return
	}

	sess, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		h.loginError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TokenPairResponse{
		Refresh: sess.Tokens.RefreshToken,
		Access:  sess.Tokens.AccessToken,
		User:    dto.NewAccountView(sess.Account),
	})
}

// Logout blacklists the supplied refresh token. Every failure is reported
// as a bad request.
func (h *Handler) Logout(c *gin.Context) {
	var body dto.LogoutDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid token"})
		return
	}

	if err := h.svc.Logout(c.Request.Context(), body); err != nil {
		if customErrors.IsInternal(err) {
			h.log.Error("/logout revoke failed", zap.Error(err))
		} else {
			h.log.Info("/logout rejected", zap.Error(err))
		}
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgLoggedOut})
}

func (h *Handler) Refresh(c *gin.Context) {
	var body dto.RefreshDTO
	if !h.bind(c, &body) {
		return
	}

	access, err := h.svc.Refresh(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": access})
}

func (h *Handler) Verify(c *gin.Context) {
	account, _ := middleware.Account(c)
	c.JSON(http.StatusOK, gin.H{"valid": true, "user": dto.NewAccountView(account)})
}

func (h *Handler) Profile(c *gin.Context) {
	account, _ := middleware.Account(c)
	c.JSON(http.StatusOK, dto.NewAccountView(account))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	account, _ := middleware.Account(c)

	var body dto.UpdateProfileDTO
	if !h.bind(c, &body) {
		return
	}

	updated, err := h.svc.UpdateProfile(c.Request.Context(), account, body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAccountView(updated))
}

func (h *Handler) ListAccounts(c *gin.Context) {
	account, _ := middleware.Account(c)

	accounts, err := h.svc.ListAccounts(c.Request.Context(), account)
	if err != nil {
		h.handleError(c, err)
		return
	}
	out := make([]dto.AccountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, dto.NewAccountView(a))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Check(c.Request.Context()))
}

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "malformed request body",
			Details: map[string]string{"non_field_errors": err.Error()},
		})
		return false
	}
	return true
}

// digest keeps identifiers out of the logs while still letting requests from
// the same user be correlated.
func digest(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
}

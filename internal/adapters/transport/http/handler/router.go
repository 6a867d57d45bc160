package handler

import (
	"net/http"
	"time"

	"github.com/Miraines/yuzedo/client-service/internal/adapters/transport/http/middleware"
	"github.com/Miraines/yuzedo/client-service/internal/infra/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Metrics interface {
	prometheus.Registerer
	prometheus.Gatherer
}

func NewRouter(h *Handler, auth middleware.Authenticator, cfg *config.Config, reg Metrics, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.NewMetrics(reg).Handler())
	router.Use(middleware.NewHTTPRateLimitPerIP(cfg.RateLimitRPS, cfg.RateLimitBurst, 10_000, time.Hour))
	router.Use(cors.New(corsConfig(cfg)))

	router.POST("/register", h.Register)
	router.POST("/login", h.Login)
	router.POST("/token", h.ObtainPair)
	router.POST("/token/refresh", h.Refresh)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	authed := router.Group("/", middleware.BearerAuth(auth, log))
	authed.POST("/logout", h.Logout)
	authed.GET("/verify", h.Verify)
	authed.GET("/profile", h.Profile)
	authed.PATCH("/profile", h.UpdateProfile)
	authed.GET("/users", h.ListAccounts)

	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			"Authorization",
			"X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = nil
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	}
	return c
}

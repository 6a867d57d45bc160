package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pgrepo "github.com/Miraines/yuzedo/client-service/internal/adapters/db/postgres"
	redisrepo "github.com/Miraines/yuzedo/client-service/internal/adapters/db/redis"
	"github.com/Miraines/yuzedo/client-service/internal/adapters/transport/http/handler"
	"github.com/Miraines/yuzedo/client-service/internal/app/client/credential"
	"github.com/Miraines/yuzedo/client-service/internal/app/client/hasher"
	"github.com/Miraines/yuzedo/client-service/internal/app/client/jwt"
	appsvc "github.com/Miraines/yuzedo/client-service/internal/app/client/service"
	"github.com/Miraines/yuzedo/client-service/internal/app/client/token"
	"github.com/Miraines/yuzedo/client-service/internal/app/health"
	"github.com/Miraines/yuzedo/client-service/internal/infra/config"
	lg "github.com/Miraines/yuzedo/client-service/internal/infra/log"
	"github.com/Miraines/yuzedo/client-service/internal/infra/migrate"
	"github.com/Miraines/yuzedo/client-service/internal/infra/server"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type promRegistry struct {
	prometheus.Registerer
	prometheus.Gatherer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := lg.Must("", "")
		bootLog.Fatal("failed to load config", zap.Error(err))
	}

	zapLog := lg.Must(cfg.LogLevel, cfg.Environment)
	defer zapLog.Sync()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		zapLog.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zapLog.Fatal("db handle", zap.Error(err))
	}
	defer sqlDB.Close()
	if err := migrate.Up(sqlDB); err != nil {
		zapLog.Fatal("run migrations", zap.Error(err))
	}

	redisCli := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisCli.Close()

	jwtUtil, err := jwt.NewJWTUtil(cfg)
	if err != nil {
		zapLog.Fatal("failed to init JWT util", zap.Error(err))
	}

	accountRepo := pgrepo.NewPostgresAccountRepo(db)
	tokenRepo := redisrepo.NewRedisTokenRepo(redisCli)
	issuer := token.NewIssuer(jwtUtil, tokenRepo, accountRepo)
	validator := credential.New(credential.NewValidate(), accountRepo)
	svc := appsvc.New(accountRepo, issuer, validator, hasher.New(cfg.PasswordPepper, nil))

	checker := health.NewChecker(accountRepo, redisrepo.NewProbe(redisCli), accountRepo, cfg.Environment, zapLog)
	reg := promRegistry{Registerer: prometheus.DefaultRegisterer, Gatherer: prometheus.DefaultGatherer}
	router := handler.NewRouter(handler.New(svc, checker, zapLog), svc, cfg, reg, zapLog)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	rootCtx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		return server.StartGRPCServer(ctx, cfg, checker, zapLog)
	})

	g.Go(func() error {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddress), zap.Bool("tls", cfg.TLSEnabled()))
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		zapLog.Info("shutdown signal received")
	case <-ctx.Done():
		zapLog.Warn("server exited early")
	}
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLog.Error("shutdown error", zap.Error(err))
	}
	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
	}
}

package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/Miraines/yuzedo/client-service/internal/adapters/transport/grpc/middleware"
	"github.com/Miraines/yuzedo/client-service/internal/app/health"
	"github.com/Miraines/yuzedo/client-service/internal/infra/config"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the grpc.health.v1 service name reported next to "".
const ServiceName = "client-service"

type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// NewGRPCServer builds the gRPC server with the interceptor chain and the
// health service registered.
func NewGRPCServer(cfg *config.Config, logger *zap.Logger) (*grpc.Server, *grpchealth.Server, error) {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(middleware.ChainUnaryServer(logger, cfg.RateLimitRPS, cfg.RateLimitBurst)),
	}
	if cfg.TLSEnabled() {
		creds, err := credentials.NewServerTLSFromFile(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	grpcServer := grpc.NewServer(opts...)
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	grpc_prometheus.Register(grpcServer)
	grpc_prometheus.EnableHandlingTimeHistogram()
	reflection.Register(grpcServer)

	return grpcServer, hs, nil
}

// WatchHealth copies the aggregate health into hs every interval until ctx
// is done.
func WatchHealth(ctx context.Context, hc HealthChecker, hs *grpchealth.Server, interval time.Duration, logger *zap.Logger) {
	update := func() {
		st := healthpb.HealthCheckResponse_SERVING
		if r := hc.Check(ctx); !r.Healthy() {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			logger.Warn("service unhealthy", zap.Any("services", r.Services))
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(ServiceName, st)
	}

	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			update()
		}
	}
}

// StartGRPCServer serves gRPC on cfg.GRPCAddress until ctx is cancelled, then
// stops gracefully with a 5 second limit.
func StartGRPCServer(ctx context.Context, cfg *config.Config, hc HealthChecker, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return err
	}

	grpcServer, hs, err := NewGRPCServer(cfg, logger)
	if err != nil {
		_ = lis.Close()
		return err
	}
	go WatchHealth(ctx, hc, hs, 10*time.Second, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddress))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("ctx cancelled, stopping gRPC server")

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-stopCtx.Done():
		grpcServer.Stop()
	case <-done:
	}
	logger.Info("gRPC server stopped")
	return nil
}

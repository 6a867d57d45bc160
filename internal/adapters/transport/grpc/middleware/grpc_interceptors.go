package middleware

import (
	"strings"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

// RecoveryInterceptor turns a handler panic into codes.Internal without
// exposing the panic value to the caller.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return grpc_recovery.UnaryServerInterceptor(
		grpc_recovery.WithRecoveryHandler(func(p any) error {
			logger.Error("grpc handler panic", zap.Any("panic", p))
			return status.Error(codes.Internal, "internal error")
		}),
	)
}

// LoggingInterceptor logs every call except successful health probes, which
// orchestrators fire every few seconds.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return grpc_zap.UnaryServerInterceptor(logger,
		grpc_zap.WithDecider(shouldLog),
		grpc_zap.WithLevels(grpc_zap.DefaultCodeToLevel),
	)
}

func shouldLog(fullMethod string, err error) bool {
	return err != nil || !strings.HasPrefix(fullMethod, healthServicePrefix)
}

func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return grpc_prometheus.UnaryServerInterceptor
}

// ChainUnaryServer order: recovery outermost so a panic in any later stage
// is still caught, rate limit innermost so rejected calls are logged and counted.
func ChainUnaryServer(logger *zap.Logger, limit, burst int) grpc.UnaryServerInterceptor {
	return grpc_middleware.ChainUnaryServer(
		RecoveryInterceptor(logger),
		LoggingInterceptor(logger.Named("grpc")),
		MetricsInterceptor(),
		NewRateLimitPerIP(limit, burst, 10_000, time.Hour),
	)
}

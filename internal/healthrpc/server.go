// Package healthrpc exposes the standard gRPC health service for the
// generation connector and probes it from the CLI.
package healthrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// Service is the health service name reported for the generation connector.
const Service = "growthdesk.generation"

// Checker probes a dependency. A nil error means healthy.
type Checker interface {
	Health(ctx context.Context) error
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Checker, when set, is polled every Interval to update the status.
	// Without it the service reports SERVING.
	Checker Checker
	// Interval defaults to 30s.
	Interval time.Duration
	Logger   *slog.Logger
}

// Server is a gRPC server carrying only the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	cfg    ServerConfig
	logger *slog.Logger
}

// NewServer creates a health server with the generation service SERVING.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}

	gs := grpc.NewServer(
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             time.Minute,
			PermitWithoutStream: false,
		}),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_SERVING)

	return &Server{grpc: gs, health: hs, cfg: cfg, logger: logger}
}

// SetServing updates the reported status of the generation service.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(Service, status)
}

// Serve accepts connections on lis until ctx is canceled, then stops
// gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	if s.cfg.Checker != nil {
		go s.watch(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(lis)
	}()

	s.logger.Info("gRPC health server started", "address", lis.Addr().String(), "service", Service)

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("grpc serve: %w", err)
	}
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	serving := true
	for {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.cfg.Checker.Health(probeCtx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if ok := err == nil; ok != serving {
			serving = ok
			s.SetServing(ok)
			if ok {
				s.logger.Info("Generation backend healthy again")
			} else {
				s.logger.Warn("Generation backend unhealthy", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Package api provides the gRPC server for stratbench, exposing strategy
// selection over stored bars together with the standard health service.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"stratbench/internal/api/pb"
)

// Server hosts the Selector and health services.
type Server struct {
	addr   string
	grpc   *grpc.Server
	health *health.Server
	log    *slog.Logger
}

// NewServer creates a Server listening on addr and serving svc.
func NewServer(addr string, svc pb.SelectorServer, log *slog.Logger) *Server {
	gs := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 5 * time.Minute,
			Time:              20 * time.Second,
			Timeout:           10 * time.Second,
		}),
	)
	pb.RegisterSelectorServer(gs, svc)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(pb.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		addr:   addr,
		grpc:   gs,
		health: hs,
		log:    log.With("component", "grpc"),
	}
}

// ListenAndServe listens on the configured address and blocks until ctx is
// cancelled or the server fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve accepts connections on lis until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.Shutdown(shutdownCtx)
		case <-done:
		}
	}()

	s.log.Info("grpc server listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown marks the services not serving, then waits for in-flight calls
// until ctx ends and stops hard.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
		s.log.Info("grpc server stopped")
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		return ctx.Err()
	}
}

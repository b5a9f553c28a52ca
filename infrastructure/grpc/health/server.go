package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RelayService is the service name reported while the relay is accepting connections.
const RelayService = "plan-chat.Relay"

// Server exposes grpc.health.v1 for orchestrator probes.
type Server struct {
	log      *slog.Logger
	listener net.Listener
	grpc     *grpc.Server
	health   *grpchealth.Server
}

func NewServer(address string, log *slog.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(sdkgrpc.UnaryLoggingInterceptor(log)))
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(RelayService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{log: log, listener: listener, grpc: s, health: hs}, nil
}

func (s *Server) Addr() string { return s.listener.Addr().String() }

// SetRelayServing flips the relay status, overall status stays SERVING.
func (s *Server) SetRelayServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(RelayService, status)
}

// Run serves until ctx is done, then reports NOT_SERVING and stops gracefully.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting gRPC health server", "address", s.Addr())
		if err := s.grpc.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC health server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

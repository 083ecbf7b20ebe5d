package grpc_control

import (
	"fmt"
	"net"

	"candle-aggregator/src/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check name of the aggregation pipeline
const ServiceName = "candles.Aggregator"

// -----------------------------------------------------------------------------

// ControlService exposes the standard gRPC health protocol. The aggregator
// reports NOT_SERVING until bootstrap has seeded the engine.
type ControlService struct {
	Server *grpc.Server
	Logger *logger.Logger
	health *health.Server
}

// NewControlService creates the gRPC server with health and reflection registered
func NewControlService(log *logger.Logger) *ControlService {
	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &ControlService{
		Server: grpc.NewServer(),
		Logger: log,
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.Server, s.health)
	reflection.Register(s.Server)

	s.SetServing(false)
	return s
}

// -----------------------------------------------------------------------------

// SetServing flips the overall and the aggregator health status
func (s *ControlService) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	s.Logger.Info("Health status: %s", status)
}

// -----------------------------------------------------------------------------

// Start listens on addr and serves until Stop
func (s *ControlService) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Serve blocks serving lis
func (s *ControlService) Serve(lis net.Listener) error {
	s.Logger.Info("gRPC control server listening on %s", lis.Addr())
	if err := s.Server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop marks every service NOT_SERVING and drains in-flight RPCs
func (s *ControlService) Stop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
	s.Logger.Info("gRPC control server stopped")
}

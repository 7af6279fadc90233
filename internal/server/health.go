package server

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/cory-johannsen/lasertag/internal/config"
)

// ServiceName is the health-check service name reported for the game server.
const ServiceName = "lasertag.GameServer"

// HealthServer is a gRPC server exposing the standard health-check and
// reflection services for operators and orchestrators.
type HealthServer struct {
	cfg    config.HealthConfig
	logger *zap.Logger
	grpc   *grpc.Server
	health *health.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewHealthServer creates a health server. Both the overall status and
// ServiceName start as NOT_SERVING.
//
// Precondition: logger must be non-nil.
func NewHealthServer(cfg config.HealthConfig, logger *zap.Logger) *HealthServer {
	h := &HealthServer{
		cfg:    cfg,
		logger: logger,
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(h.grpc, h.health)
	reflection.Register(h.grpc)
	h.SetServing(false)
	return h
}

// SetServing updates the reported status of the overall server and of ServiceName.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

// Start listens on the configured address and serves until Stop is called.
func (h *HealthServer) Start() error {
	lis, err := net.Listen("tcp", h.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.cfg.Addr(), err)
	}
	return h.Serve(lis)
}

// Serve serves on lis until Stop is called.
//
// Postcondition: Status is SERVING while Serve runs.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.mu.Lock()
	h.listener = lis
	h.mu.Unlock()

	h.SetServing(true)
	h.logger.Info("health server listening", zap.String("addr", lis.Addr().String()))
	if err := h.grpc.Serve(lis); err != nil {
		return fmt.Errorf("serving health: %w", err)
	}
	return nil
}

// Stop reports NOT_SERVING to watchers and stops the gRPC server.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (h *HealthServer) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return ""
}

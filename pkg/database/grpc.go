package database

import (
	"fmt"
	"net"
	"time"

	"social_network_service/pkg/logger"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer grpc health check server
type HealthServer struct {
	Server   *grpc.Server
	Health   *health.Server
	listener net.Listener
}

// NewHealthServer listen on addr and register grpc.health.v1
func NewHealthServer(addr string) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)

	return &HealthServer{Server: s, Health: h, listener: lis}, nil
}

// Addr listening address
func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// Serve blocking serve
func (h *HealthServer) Serve() error {
	logger.Log.Info("grpc health server listening", zap.String("addr", h.Addr()))
	return h.Server.Serve(h.listener)
}

// SetServing mark service serving / not serving
func (h *HealthServer) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.Health.SetServingStatus(service, status)
}

// Stop graceful stop
func (h *HealthServer) Stop() {
	h.Health.Shutdown()
	h.Server.GracefulStop()
}

// CreateGRPCClient create grpc client and wait until READY
func CreateGRPCClient(grpcIP string, timeout time.Duration) (*grpc.ClientConn, error) {
	client, err := grpc.NewClient(grpcIP, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", grpcIP, err)
	}
	client.Connect()

	deadline := time.After(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			client.Close()
			return nil, fmt.Errorf("connection did not become READY within %s", timeout)
		case <-ticker.C:
			state := client.GetState()
			logger.Log.Debug("grpc connection state", zap.String("addr", grpcIP), zap.String("state", state.String()))
			if state == connectivity.Ready {
				return client, nil
			}
			if state == connectivity.TransientFailure || state == connectivity.Idle {
				client.Connect()
			}
		}
	}
}

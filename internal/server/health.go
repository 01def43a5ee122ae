package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/snapnotify/internal/orchestrator"
	"github.com/GriffinCanCode/snapnotify/internal/trace"
)

// Health exposes the capture pipeline through the standard gRPC health service.
type Health struct {
	status   StatusProvider
	srv      *health.Server
	interval time.Duration
}

// NewHealth creates a health service. Every service starts NOT_SERVING until Refresh.
func NewHealth(status StatusProvider) *Health {
	h := &Health{status: status, srv: health.NewServer(), interval: HealthRefreshInterval}
	for _, svc := range []string{"", ServiceOverall, ServiceClipboard, ServiceFolder} {
		h.srv.SetServingStatus(svc, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return h
}

// Register adds the health service to a gRPC server.
func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// NewGRPCServer returns a gRPC server with tracing and the health service.
func (h *Health) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor()))
	s := grpc.NewServer(opts...)
	h.Register(s)
	return s
}

// Refresh recomputes serving states from the current status.
func (h *Health) Refresh() {
	st := h.status.Status()

	overall := servingIf(st.Active != "")
	h.srv.SetServingStatus("", overall)
	h.srv.SetServingStatus(ServiceOverall, overall)
	h.srv.SetServingStatus(ServiceClipboard, servingIf(st.Clipboard.State == orchestrator.StateActive))
	h.srv.SetServingStatus(ServiceFolder, servingIf(st.Folder.State == orchestrator.StateActive))
}

// Run refreshes on an interval until ctx ends, then marks everything NOT_SERVING.
func (h *Health) Run(ctx context.Context) {
	h.Refresh()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.Refresh()
		}
	}
}

func servingIf(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

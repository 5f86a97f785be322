// Package grpc implements the gRPC transport for saathi.
//
// This transport exposes the standard gRPC health service so devices and
// orchestrators can watch whether the assistant is usable, plus server
// reflection for debugging with grpcurl. The "saathi.Assistant" service
// reports NOT_SERVING while the assistant is in its error state.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/nadzzz/saathi/internal/message"
	"github.com/nadzzz/saathi/internal/transport"
)

// AssistantService is the health service name tracking the assistant.
const AssistantService = "saathi.Assistant"

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	health *health.Server
	logger *slog.Logger

	mu     sync.Mutex
	server *grpc.Server
}

// New creates a new gRPC transport on the given port.
func New(port int, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		port:   port,
		health: health.NewServer(),
		logger: logger.With("component", "grpc"),
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server.
func (t *Transport) Listen(ctx context.Context, ctrl transport.Controller) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return t.serve(ctx, lis, ctrl)
}

func (t *Transport) serve(ctx context.Context, lis net.Listener, ctrl transport.Controller) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, t.health)
	// Enable reflection for debugging (e.g. grpcurl)
	reflection.Register(srv)

	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	t.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	t.health.SetServingStatus(AssistantService, servingStatus(ctrl.State().State))

	t.logger.Info("grpc transport listening", "addr", lis.Addr().String())

	go func() {
		<-ctx.Done()
		t.logger.Info("grpc transport shutting down")
		_ = t.Close()
	}()

	return srv.Serve(lis)
}

// Publish updates the assistant health status from state events.
func (t *Transport) Publish(_ context.Context, evt message.Event) error {
	if evt.Type != message.EventState || evt.State == nil {
		return nil
	}
	t.health.SetServingStatus(AssistantService, servingStatus(evt.State.State))
	return nil
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	t.health.Shutdown()
	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()
	if srv != nil {
		srv.GracefulStop()
	}
	return nil
}

func servingStatus(state string) healthpb.HealthCheckResponse_ServingStatus {
	if state == "error" {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

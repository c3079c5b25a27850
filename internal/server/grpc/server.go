// Package grpcserver exposes the operational gRPC surface: health checking and,
// in dev mode, server reflection.
package grpcserver

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the bridge.
const ServiceName = "pto.Bridge"

// Server wraps a grpc.Server together with its health service.
type Server struct {
	GRPC   *grpc.Server
	health *health.Server
}

// New builds the ops server. Health starts NOT_SERVING until MarkServing.
func New(log *zap.Logger, reflect bool) *Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	if reflect {
		reflection.Register(gs)
	}
	s := &Server{GRPC: gs, health: hs}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// MarkServing reports the process and the bridge as healthy.
func (s *Server) MarkServing() { s.setStatus(healthpb.HealthCheckResponse_SERVING) }

// MarkNotServing is called at the start of shutdown.
func (s *Server) MarkNotServing() { s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING) }

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

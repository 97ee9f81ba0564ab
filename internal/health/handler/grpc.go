// Package handler reports readiness through the standard grpc.health.v1 service.
package handler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const pingTimeout = 2 * time.Second

// Pinger checks a backing dependency, e.g. the Postgres pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server tracks the serving status of the auth service. Overall status and the
// per-service status follow the result of the last ping.
type Server struct {
	health  *health.Server
	pinger  Pinger
	service string
	logger  *zap.Logger

	mu      sync.Mutex
	serving bool
}

// NewServer returns a health server for service. A nil pinger means always serving.
func NewServer(pinger Pinger, service string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{health: health.NewServer(), pinger: pinger, service: service, logger: logger, serving: true}
	s.set(healthpb.HealthCheckResponse_SERVING)
	return s
}

// Register adds grpc.health.v1.Health to r.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(r, s.health)
}

// Check pings the dependency once and updates the serving status.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	if s.pinger == nil {
		return healthpb.HealthCheckResponse_SERVING
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	err := s.pinger.Ping(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.serving {
			s.logger.Warn("health check failed", zap.Error(err))
		}
		s.serving = false
		s.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	if !s.serving {
		s.logger.Info("health check recovered")
	}
	s.serving = true
	s.set(healthpb.HealthCheckResponse_SERVING)
	return healthpb.HealthCheckResponse_SERVING
}

// Run checks every interval until ctx is done.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Shutdown marks everything NOT_SERVING so load balancers drain the instance.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(s.service, st)
}

package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "core-auth/internal/health/handler"
	identityhandler "core-auth/internal/identity/handler"
	identityservice "core-auth/internal/identity/service"
	"core-auth/internal/server/interceptors"
)

// Deps holds the service dependencies for the gRPC server.
type Deps struct {
	// Auth backs AuthService and bearer token validation. If nil, auth RPCs return Unimplemented
	// and protected RPCs are rejected.
	Auth *identityservice.AuthService
	// Health reports readiness over grpc.health.v1. If nil, a server without a pinger is used.
	Health *healthhandler.Server
	// Logger receives request logs. If nil, logging is disabled.
	Logger *zap.Logger
}

// publicMethods lists RPCs callable without a bearer token.
func publicMethods() map[string]bool {
	m := identityhandler.PublicMethods()
	m["/"+healthpb.Health_ServiceDesc.ServiceName+"/Check"] = true
	m["/"+healthpb.Health_ServiceDesc.ServiceName+"/Watch"] = true
	m["/"+healthpb.Health_ServiceDesc.ServiceName+"/List"] = true
	return m
}

// NewServer builds a gRPC server with tracing, request logging, client info and bearer
// authentication wired in, and registers all services.
func NewServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var validator interceptors.TokenValidator = rejectAll{}
	if deps.Auth != nil {
		validator = deps.Auth
	}
	healthSkip := map[string]bool{
		"/" + healthpb.Health_ServiceDesc.ServiceName + "/Check": true,
	}
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(logger, healthSkip),
			interceptors.RequestInfoUnary(),
			interceptors.AuthUnary(validator, publicMethods(), logger),
		),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers AuthService and grpc.health.v1.Health with the given server.
//
// Service → handler mapping:
//   - coreauth.v1.AuthService → internal/identity/handler
//   - grpc.health.v1.Health   → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	var auth identityhandler.Auth
	if deps.Auth != nil {
		auth = deps.Auth
	}
	identityhandler.RegisterAuthServiceServer(s, identityhandler.NewAuthServer(auth, deps.Logger))

	health := deps.Health
	if health == nil {
		health = healthhandler.NewServer(nil, identityhandler.ServiceName, deps.Logger)
	}
	health.Register(s)
}

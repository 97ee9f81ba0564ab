package interceptors

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoggingUnary(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	interceptor := LoggingUnary(zap.New(core), map[string]bool{"/grpc.health.v1.Health/Check": true})

	ok := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }
	denied := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	broken := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.Internal, "internal error")
	}

	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, ok)
	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/coreauth.v1.AuthService/Register"}, ok)
	if err != nil || resp != "ok" {
		t.Fatalf("interceptor = (%v, %v)", resp, err)
	}
	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/coreauth.v1.AuthService/Authenticate"}, denied)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("error must pass through, got %v", err)
	}
	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/coreauth.v1.AuthService/Refresh"}, broken)

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("logged %d entries, want 3 (health check skipped)", len(entries))
	}
	if entries[0].ContextMap()["code"] != "OK" || entries[0].Level != zapcore.InfoLevel {
		t.Errorf("entry 0 = %v %v", entries[0].Level, entries[0].ContextMap())
	}
	if entries[1].ContextMap()["code"] != "Unauthenticated" || entries[1].Level != zapcore.InfoLevel {
		t.Errorf("entry 1 = %v %v", entries[1].Level, entries[1].ContextMap())
	}
	if entries[2].Level != zapcore.ErrorLevel {
		t.Errorf("internal errors log at error level, got %v", entries[2].Level)
	}
}

package interceptors

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"core-auth/internal/autherr"
	sessiondomain "core-auth/internal/session/domain"
)

const bearerPrefix = "bearer "

// TokenValidator resolves an access token to its active session.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, accessToken string) (*sessiondomain.Session, error)
}

// AuthUnary returns a unary server interceptor that validates the Bearer access token
// from gRPC metadata and sets account_id and session_id in context for protected RPCs.
// publicMethods is the set of full method names that do not require a token; a token
// sent to a public method is ignored.
func AuthUnary(validator TokenValidator, publicMethods map[string]bool, logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		token := extractBearer(ctx)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, autherr.KindAuthenticationRequired.String())
		}
		sess, err := validator.ValidateAccessToken(ctx, token)
		if err != nil {
			if autherr.IsClient(err) {
				return nil, status.Error(codes.Unauthenticated, autherr.KindOf(err).String())
			}
			logger.Error("access token validation failed",
				zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Internal, autherr.PublicServerMessage)
		}
		ctx = WithIdentity(ctx, sess.AccountID, sess.ID)
		return handler(ctx, req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"core-auth/internal/autherr"
	"core-auth/internal/logging"
)

// kindCodes maps client error kinds to gRPC codes.
var kindCodes = map[autherr.Kind]codes.Code{
	autherr.KindInvalidCredentials:     codes.Unauthenticated,
	autherr.KindInvalidAccessToken:     codes.Unauthenticated,
	autherr.KindExpiredAccessToken:     codes.Unauthenticated,
	autherr.KindInvalidRefreshToken:    codes.Unauthenticated,
	autherr.KindExpiredRefreshToken:    codes.Unauthenticated,
	autherr.KindAuthenticationRequired: codes.Unauthenticated,
	autherr.KindSessionNotFound:        codes.Unauthenticated,
	autherr.KindAccountLocked:          codes.PermissionDenied,
	autherr.KindAccountNotFound:        codes.NotFound,
	autherr.KindAccountAlreadyExists:   codes.AlreadyExists,
	autherr.KindInvalidSessionID:       codes.InvalidArgument,
	autherr.KindInvalidAccountID:       codes.InvalidArgument,
}

// toStatus converts a service error into a gRPC status. Client errors carry their kind
// as the message; anything else is logged and reported as an opaque internal error.
func toStatus(ctx context.Context, logger *zap.Logger, err error) error {
	if err == nil {
		return nil
	}
	if kind := autherr.KindOf(err); kind != 0 {
		if code, ok := kindCodes[kind]; ok {
			return status.Error(code, kind.String())
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logging.WithTrace(ctx, logger).Error("request failed", zap.Error(err))
	return status.Error(codes.Internal, autherr.PublicServerMessage)
}

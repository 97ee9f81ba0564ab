// Package handler exposes the AuthService over gRPC. Messages are google.protobuf.Struct
// values so clients need no generated stubs; field names are listed on each method.
package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	accountdomain "core-auth/internal/account/domain"
	"core-auth/internal/server/interceptors"
	sessiondomain "core-auth/internal/session/domain"
	sessionservice "core-auth/internal/session/service"
)

// Auth is the service surface the handler drives. *identityservice.AuthService implements it.
type Auth interface {
	Register(ctx context.Context, username, password string, info sessiondomain.ClientInfo) (*sessionservice.Bundle, error)
	Authenticate(ctx context.Context, username, password string, info sessiondomain.ClientInfo) (*sessionservice.Bundle, error)
	Refresh(ctx context.Context, refreshSecret string, info sessiondomain.ClientInfo) (*sessionservice.Bundle, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutAll(ctx context.Context, accountID string) (int64, error)
	DeleteAccount(ctx context.Context, accountID string) error
	GetAccount(ctx context.Context, accountID string) (*accountdomain.Account, error)
	ChangeUsername(ctx context.Context, accountID, username string) error
	ChangePassword(ctx context.Context, accountID, currentSessionID, current, next string) error
	ListSessions(ctx context.Context, accountID string) ([]*sessiondomain.Session, error)
	RevokeSession(ctx context.Context, accountID, sessionID string) error
}

// AuthServer implements AuthServiceServer.
type AuthServer struct {
	auth   Auth
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthServer returns a new Auth gRPC server. A nil auth makes every RPC return Unimplemented.
func NewAuthServer(auth Auth, logger *zap.Logger) *AuthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthServer{auth: auth, logger: logger, now: time.Now}
}

var errNotConfigured = status.Error(codes.Unimplemented, "auth service not configured")

// Register creates an account. Request: username, password. Response: a session bundle.
func (s *AuthServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, errNotConfigured
	}
	b, err := s.auth.Register(ctx, str(req, "username"), str(req, "password"), sessiondomain.ClientInfoFrom(ctx))
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return bundleToStruct(b)
}

// Authenticate logs in. Request: username, password. Response: a session bundle.
func (s *AuthServer) Authenticate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, errNotConfigured
	}
	b, err := s.auth.Authenticate(ctx, str(req, "username"), str(req, "password"), sessiondomain.ClientInfoFrom(ctx))
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return bundleToStruct(b)
}

// Refresh rotates a session. Request: refresh_token. Response: a session bundle.
func (s *AuthServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, errNotConfigured
	}
	b, err := s.auth.Refresh(ctx, str(req, "refresh_token"), sessiondomain.ClientInfoFrom(ctx))
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return bundleToStruct(b)
}

// Logout revokes the calling session.
func (s *AuthServer) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, errNotConfigured
	}
	_, sessionID, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Logout(ctx, sessionID); err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return &structpb.Struct{}, nil
}

// LogoutAll revokes every session of the caller. Response: revoked.
func (s *AuthServer) LogoutAll(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, errNotConfigured
	}
	accountID, _, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.auth.LogoutAll(ctx, accountID)
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return structpb.NewStruct(map[string]interface{}{"revoked": n})
}

// DeleteAccount deletes the caller's account and all of its sessions.
func (s *AuthServer) DeleteAccount(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, errNotConfigured
	}
	accountID, _, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.DeleteAccount(ctx, accountID); err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return &structpb.Struct{}, nil
}

// GetAccount returns the caller's account. Response: account_id, username, created_at, updated_at.
func (s *AuthServer) GetAccount(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, errNotConfigured
	}
	accountID, _, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	acct, err := s.auth.GetAccount(ctx, accountID)
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"account_id": acct.ID,
		"username":   acct.Username,
		"created_at": timestamp(acct.CreatedAt),
		"updated_at": timestamp(acct.UpdatedAt),
	})
}

// ChangeUsername renames the caller's account. Request: username.
func (s *AuthServer) ChangeUsername(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, errNotConfigured
	}
	accountID, _, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.ChangeUsername(ctx, accountID, str(req, "username")); err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return &structpb.Struct{}, nil
}

// ChangePassword replaces the caller's password and revokes their other sessions.
// Request: current_password, new_password.
func (s *AuthServer) ChangePassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, errNotConfigured
	}
	accountID, sessionID, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	err = s.auth.ChangePassword(ctx, accountID, sessionID, str(req, "current_password"), str(req, "new_password"))
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return &structpb.Struct{}, nil
}

// ListSessions returns the caller's sessions. Response: sessions, each with session_id,
// state, created_at, expires_at, ip_address, user_agent and current.
func (s *AuthServer) ListSessions(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, errNotConfigured
	}
	accountID, sessionID, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.auth.ListSessions(ctx, accountID)
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	now := s.now()
	out := make([]interface{}, 0, len(list))
	for _, sess := range list {
		out = append(out, map[string]interface{}{
			"session_id": sess.ID,
			"state":      sess.StateAt(now).String(),
			"created_at": timestamp(sess.CreatedAt),
			"expires_at": timestamp(sess.ExpiresAt),
			"ip_address": sess.IPAddress,
			"user_agent": sess.UserAgent,
			"current":    sess.ID == sessionID,
		})
	}
	return structpb.NewStruct(map[string]interface{}{"sessions": out})
}

// RevokeSession revokes one of the caller's sessions. Request: session_id.
func (s *AuthServer) RevokeSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, errNotConfigured
	}
	accountID, _, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.RevokeSession(ctx, accountID, str(req, "session_id")); err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return &structpb.Struct{}, nil
}

// identity returns the account and session set by the auth interceptor.
func identity(ctx context.Context) (string, string, error) {
	accountID, ok := interceptors.GetAccountID(ctx)
	if !ok || accountID == "" {
		return "", "", status.Error(codes.Unauthenticated, "authentication required")
	}
	sessionID, _ := interceptors.GetSessionID(ctx)
	return accountID, sessionID, nil
}

func str(req *structpb.Struct, key string) string {
	if req == nil {
		return ""
	}
	return req.GetFields()[key].GetStringValue()
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func bundleToStruct(b *sessionservice.Bundle) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"account_id":               b.AccountID,
		"session_id":               b.SessionID,
		"access_token":             b.AccessToken,
		"access_token_expires_at":  timestamp(b.AccessTokenExpiresAt),
		"refresh_token":            b.RefreshToken,
		"refresh_token_expires_at": timestamp(b.RefreshTokenExpiresAt),
	})
}

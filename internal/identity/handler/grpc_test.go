package handler

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	accountrepo "core-auth/internal/account/repository"
	"core-auth/internal/autherr"
	identityservice "core-auth/internal/identity/service"
	"core-auth/internal/security"
	"core-auth/internal/server/interceptors"
	sessiondomain "core-auth/internal/session/domain"
	sessionrepo "core-auth/internal/session/repository"
	sessionservice "core-auth/internal/session/service"
)

func newTestServer(t *testing.T) *AuthServer {
	t.Helper()
	sessions := sessionservice.NewService(sessionrepo.NewMemoryRepository(), security.NewTestTokenIssuer(), 24*time.Hour)
	svc := identityservice.NewAuthService(accountrepo.NewMemoryRepository(), sessions, security.NewTestHasher(), "core-auth-test")
	return NewAuthServer(svc, nil)
}

func credentials(t *testing.T, username, password string) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(map[string]interface{}{"username": username, "password": password})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return req
}

func field(resp *structpb.Struct, key string) string {
	return resp.GetFields()[key].GetStringValue()
}

func register(t *testing.T, srv *AuthServer, username string) (context.Context, *structpb.Struct) {
	t.Helper()
	resp, err := srv.Register(context.Background(), credentials(t, username, "correct horse"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := interceptors.WithIdentity(context.Background(), field(resp, "account_id"), field(resp, "session_id"))
	return ctx, resp
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil error", want)
	}
	if got := status.Code(err); got != want {
		t.Fatalf("status code = %v, want %v (err=%v)", got, want, err)
	}
}

func TestNilAuthService_Unimplemented(t *testing.T) {
	srv := NewAuthServer(nil, nil)
	ctx := interceptors.WithIdentity(context.Background(), "acc_x", "ses_x")
	calls := map[string]func() error{
		"Register":     func() error { _, err := srv.Register(ctx, &structpb.Struct{}); return err },
		"Authenticate": func() error { _, err := srv.Authenticate(ctx, &structpb.Struct{}); return err },
		"Refresh":      func() error { _, err := srv.Refresh(ctx, &structpb.Struct{}); return err },
		"Logout":       func() error { _, err := srv.Logout(ctx, &structpb.Struct{}); return err },
		"GetAccount":   func() error { _, err := srv.GetAccount(ctx, &structpb.Struct{}); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assertCode(t, call(), codes.Unimplemented)
		})
	}
}

func TestRegister_ReturnsBundle(t *testing.T) {
	srv := newTestServer(t)
	_, resp := register(t, srv, "alice")

	for _, key := range []string{"account_id", "session_id", "access_token", "refresh_token", "access_token_expires_at", "refresh_token_expires_at"} {
		if field(resp, key) == "" {
			t.Errorf("response field %q is empty", key)
		}
	}
	if _, err := time.Parse(time.RFC3339, field(resp, "refresh_token_expires_at")); err != nil {
		t.Errorf("refresh_token_expires_at not RFC3339: %v", err)
	}
}

func TestRegister_DuplicateIsAlreadyExists(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "alice")
	_, err := srv.Register(context.Background(), credentials(t, "alice", "other"))
	assertCode(t, err, codes.AlreadyExists)
	if got := status.Convert(err).Message(); got != "account already exists" {
		t.Errorf("message = %q", got)
	}
}

func TestAuthenticate_WrongPasswordIsUnauthenticated(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "alice")
	_, err := srv.Authenticate(context.Background(), credentials(t, "alice", "wrong"))
	assertCode(t, err, codes.Unauthenticated)
}

func TestAuthenticate_UsesClientInfo(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "alice")
	ctx := sessiondomain.WithClientInfo(context.Background(), sessiondomain.ClientInfo{IPAddress: "198.51.100.4", UserAgent: "cli"})
	resp, err := srv.Authenticate(ctx, credentials(t, "alice", "correct horse"))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	authed := interceptors.WithIdentity(context.Background(), field(resp, "account_id"), field(resp, "session_id"))
	list, err := srv.ListSessions(authed, nil)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	var found bool
	for _, v := range list.GetFields()["sessions"].GetListValue().GetValues() {
		s := v.GetStructValue()
		if field(s, "session_id") == field(resp, "session_id") {
			found = true
			if field(s, "ip_address") != "198.51.100.4" || field(s, "user_agent") != "cli" {
				t.Errorf("client info not recorded: %v", s)
			}
			if !s.GetFields()["current"].GetBoolValue() {
				t.Error("calling session not marked current")
			}
			if field(s, "state") != sessiondomain.StateActive.String() {
				t.Errorf("state = %q", field(s, "state"))
			}
		}
	}
	if !found {
		t.Fatal("new session missing from list")
	}
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	srv := newTestServer(t)
	_, first := register(t, srv, "alice")
	req, _ := structpb.NewStruct(map[string]interface{}{"refresh_token": field(first, "refresh_token")})

	second, err := srv.Refresh(context.Background(), req)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if field(second, "refresh_token") == field(first, "refresh_token") {
		t.Error("refresh token not rotated")
	}
	_, err = srv.Refresh(context.Background(), req)
	assertCode(t, err, codes.Unauthenticated)
}

func TestAuthenticatedMethods_RequireIdentity(t *testing.T) {
	srv := newTestServer(t)
	_, err := srv.Logout(context.Background(), nil)
	assertCode(t, err, codes.Unauthenticated)
	_, err = srv.DeleteAccount(context.Background(), nil)
	assertCode(t, err, codes.Unauthenticated)
}

func TestGetAccount_OmitsPasswordHash(t *testing.T) {
	srv := newTestServer(t)
	ctx, reg := register(t, srv, "alice")
	resp, err := srv.GetAccount(ctx, nil)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if field(resp, "username") != "alice" || field(resp, "account_id") != field(reg, "account_id") {
		t.Errorf("unexpected account: %v", resp)
	}
	for key := range resp.GetFields() {
		if key == "password_hash" {
			t.Error("password hash exposed")
		}
	}
}

func TestLogoutAll_ReportsCount(t *testing.T) {
	srv := newTestServer(t)
	ctx, _ := register(t, srv, "alice")
	if _, err := srv.Authenticate(context.Background(), credentials(t, "alice", "correct horse")); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	resp, err := srv.LogoutAll(ctx, nil)
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if got := resp.GetFields()["revoked"].GetNumberValue(); got != 2 {
		t.Errorf("revoked = %v, want 2", got)
	}
}

func TestChangePasswordThenLogin(t *testing.T) {
	srv := newTestServer(t)
	ctx, _ := register(t, srv, "alice")
	req, _ := structpb.NewStruct(map[string]interface{}{"current_password": "correct horse", "new_password": "battery staple"})
	if _, err := srv.ChangePassword(ctx, req); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := srv.Authenticate(context.Background(), credentials(t, "alice", "battery staple")); err != nil {
		t.Fatalf("Authenticate with new password: %v", err)
	}
	_, err := srv.Authenticate(context.Background(), credentials(t, "alice", "correct horse"))
	assertCode(t, err, codes.Unauthenticated)
}

func TestRevokeSession_InvalidID(t *testing.T) {
	srv := newTestServer(t)
	ctx, _ := register(t, srv, "alice")
	req, _ := structpb.NewStruct(map[string]interface{}{"session_id": "not-a-session"})
	_, err := srv.RevokeSession(ctx, req)
	assertCode(t, err, codes.InvalidArgument)
}

func TestDeleteAccount_ThenGetIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	ctx, _ := register(t, srv, "alice")
	if _, err := srv.DeleteAccount(ctx, nil); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	_, err := srv.GetAccount(ctx, nil)
	assertCode(t, err, codes.NotFound)
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{autherr.ErrAccountLocked, codes.PermissionDenied, "account locked"},
		{autherr.ErrExpiredAccessToken, codes.Unauthenticated, "expired access token"},
		{autherr.ErrSessionNotFound, codes.Unauthenticated, "session not found"},
		{autherr.ErrInvalidAccountID, codes.InvalidArgument, "invalid account id"},
		{autherr.Server("op", errors.New("connection refused")), codes.Internal, "internal error"},
		{errors.New("unclassified"), codes.Internal, "internal error"},
	}
	for _, tt := range tests {
		st := status.Convert(toStatus(context.Background(), nil, tt.err))
		if st.Code() != tt.code || st.Message() != tt.msg {
			t.Errorf("toStatus(%v) = %v %q, want %v %q", tt.err, st.Code(), st.Message(), tt.code, tt.msg)
		}
	}
}

func TestServiceDesc_OverGRPC(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterAuthServiceServer(s, newTestServer(t))
	go func() { _ = s.Serve(lis) }()
	defer s.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()

	resp := new(structpb.Struct)
	if err := conn.Invoke(context.Background(), FullMethod("Register"), credentials(t, "alice", "correct horse"), resp); err != nil {
		t.Fatalf("Invoke Register: %v", err)
	}
	if field(resp, "access_token") == "" {
		t.Error("missing access_token over the wire")
	}
	err = conn.Invoke(context.Background(), FullMethod("Authenticate"), credentials(t, "alice", "nope"), new(structpb.Struct))
	assertCode(t, err, codes.Unauthenticated)
}

func TestPublicMethods(t *testing.T) {
	pub := PublicMethods()
	for _, m := range []string{"Register", "Authenticate", "Refresh"} {
		if !pub[FullMethod(m)] {
			t.Errorf("%s should be public", m)
		}
	}
	if pub[FullMethod("Logout")] {
		t.Error("Logout must require a token")
	}
}

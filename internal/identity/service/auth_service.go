// Package service implements account authentication on top of the session lifecycle.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	accountdomain "core-auth/internal/account/domain"
	accountrepo "core-auth/internal/account/repository"
	"core-auth/internal/audit"
	auditdomain "core-auth/internal/audit/domain"
	"core-auth/internal/autherr"
	"core-auth/internal/security"
	sessiondomain "core-auth/internal/session/domain"
	sessionservice "core-auth/internal/session/service"
)

// dummyPassword is hashed once and verified whenever a username is unknown, so
// unknown and existing usernames cost the same.
const dummyPassword = "core-auth-timing-equalizer"

var errNoStoredAccountID = errors.New("account insert returned no id")

// Lockout counts failed logins per username. *lockout.Limiter implements it.
type Lockout interface {
	RecordFailure(ctx context.Context, username string) (bool, error)
	Locked(ctx context.Context, username string) (bool, error)
	Reset(ctx context.Context, username string) error
}

// Option configures optional AuthService collaborators.
type Option func(*AuthService)

// WithLockout enables per-username login lockout.
func WithLockout(l Lockout) Option {
	return func(s *AuthService) { s.lockout = l }
}

// WithAudit sends an event for every operation to e.
func WithAudit(e audit.Emitter) Option {
	return func(s *AuthService) { s.audit = e }
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *AuthService) { s.logger = l }
}

// AuthService registers and authenticates accounts and manages their sessions.
// It is safe for concurrent use.
type AuthService struct {
	accounts    accountrepo.Repository
	sessions    *sessionservice.Service
	hasher      *security.Hasher
	serviceName string

	lockout Lockout
	audit   audit.Emitter
	logger  *zap.Logger

	tracer   trace.Tracer
	attempts metric.Int64Counter
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
	dummyErr  error
}

// NewAuthService returns an AuthService. serviceName is written as the issuer of every access token.
func NewAuthService(
	accounts accountrepo.Repository,
	sessions *sessionservice.Service,
	hasher *security.Hasher,
	serviceName string,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		accounts:    accounts,
		sessions:    sessions,
		hasher:      hasher,
		serviceName: serviceName,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer("core-auth/identity"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// The global meter returns a usable no-op instrument even when creation fails.
	s.attempts, _ = otel.Meter("core-auth/identity").Int64Counter(
		"core_auth.auth.operations",
		metric.WithDescription("Authentication operations by name and outcome"),
	)
	return s
}

// Register creates an account and logs it in.
func (s *AuthService) Register(ctx context.Context, username, password string, info sessiondomain.ClientInfo) (b *sessionservice.Bundle, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer func() { s.finish(ctx, span, auditdomain.ActionRegister, bundleAccount(b), bundleSession(b), info, err) }()

	if username == "" || password == "" {
		return nil, autherr.ErrInvalidCredentials
	}
	existing, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, autherr.Server("auth.register", err)
	}
	if existing != nil {
		return nil, autherr.ErrAccountAlreadyExists
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, autherr.Server("auth.register", err)
	}
	now := s.now().UTC()
	acct := &accountdomain.Account{
		ID:           accountdomain.NewID(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := acct.Validate(); err != nil {
		return nil, autherr.Server("auth.register", err)
	}
	id, err := s.accounts.Create(ctx, acct)
	if errors.Is(err, accountrepo.ErrUsernameTaken) {
		// Lost a race with a concurrent registration of the same name.
		return nil, autherr.ErrAccountAlreadyExists
	}
	if err != nil {
		return nil, autherr.Server("auth.register", err)
	}
	if id == "" {
		return nil, autherr.Server("auth.register", errNoStoredAccountID)
	}
	return s.sessions.Create(ctx, id, s.serviceName, info)
}

// Authenticate checks the credentials and opens a session. Unknown usernames and
// wrong passwords both yield InvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, username, password string, info sessiondomain.ClientInfo) (b *sessionservice.Bundle, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Authenticate")
	var accountID string
	defer func() { s.finish(ctx, span, auditdomain.ActionAuthenticate, accountID, bundleSession(b), info, err) }()

	if username == "" || password == "" {
		return nil, autherr.ErrInvalidCredentials
	}
	acct, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, autherr.Server("auth.authenticate", err)
	}

	hash := ""
	if acct != nil {
		accountID = acct.ID
		hash = acct.PasswordHash
	} else {
		if hash, err = s.dummy(); err != nil {
			return nil, autherr.Server("auth.authenticate", err)
		}
	}
	ok, err := s.hasher.Verify(hash, password)
	if err != nil {
		return nil, autherr.Server("auth.authenticate", err)
	}
	ok = ok && acct != nil

	if s.lockout != nil {
		var locked bool
		if ok {
			locked, err = s.lockout.Locked(ctx, username)
		} else {
			locked, err = s.lockout.RecordFailure(ctx, username)
		}
		if err != nil {
			return nil, autherr.Server("auth.authenticate", err)
		}
		if locked {
			return nil, autherr.ErrAccountLocked
		}
	}
	if !ok {
		return nil, autherr.ErrInvalidCredentials
	}

	if s.lockout != nil {
		if err := s.lockout.Reset(ctx, username); err != nil {
			s.logger.Warn("lockout reset failed", zap.String("account_id", acct.ID), zap.Error(err))
		}
	}
	if s.hasher.NeedsRehash(acct.PasswordHash) {
		s.rehash(ctx, acct.ID, password)
	}
	return s.sessions.Create(ctx, acct.ID, s.serviceName, info)
}

// Refresh exchanges a refresh secret for a new session.
func (s *AuthService) Refresh(ctx context.Context, refreshSecret string, info sessiondomain.ClientInfo) (b *sessionservice.Bundle, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer func() { s.finish(ctx, span, auditdomain.ActionRefresh, bundleAccount(b), bundleSession(b), info, err) }()

	return s.sessions.Refresh(ctx, refreshSecret, s.serviceName, info)
}

// Logout revokes exactly the given session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Logout")
	defer func() {
		s.finish(ctx, span, auditdomain.ActionLogout, "", sessionID, sessiondomain.ClientInfoFrom(ctx), err)
	}()

	return s.sessions.Revoke(ctx, sessionID)
}

// LogoutAll revokes every session of the account and returns how many were active.
func (s *AuthService) LogoutAll(ctx context.Context, accountID string) (n int64, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.LogoutAll")
	defer func() {
		s.finish(ctx, span, auditdomain.ActionLogoutAll, accountID, "", sessiondomain.ClientInfoFrom(ctx), err)
	}()

	return s.sessions.RevokeAllForAccount(ctx, accountID, "")
}

// DeleteAccount removes the account's sessions and then the account. A failure
// between the two steps leaves an account without sessions and is safe to retry.
func (s *AuthService) DeleteAccount(ctx context.Context, accountID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.DeleteAccount")
	defer func() {
		s.finish(ctx, span, auditdomain.ActionDeleteAccount, accountID, "", sessiondomain.ClientInfoFrom(ctx), err)
	}()

	if err := accountdomain.ValidateID(accountID); err != nil {
		return err
	}
	if _, err := s.sessions.DeleteAllForAccount(ctx, accountID); err != nil {
		return err
	}
	deleted, err := s.accounts.Delete(ctx, accountID)
	if err != nil {
		return autherr.Server("auth.delete_account", err)
	}
	if !deleted {
		return autherr.ErrAccountNotFound
	}
	return nil
}

// GetAccount returns the account. The password hash is left in place; transports must not expose it.
func (s *AuthService) GetAccount(ctx context.Context, accountID string) (*accountdomain.Account, error) {
	ctx, span := s.tracer.Start(ctx, "auth.GetAccount")
	defer span.End()

	acct, err := s.loadAccount(ctx, accountID, "auth.get_account")
	if err != nil {
		return nil, s.record(span, err)
	}
	return acct, nil
}

// ChangeUsername renames the account. Renaming to the current name is a no-op.
func (s *AuthService) ChangeUsername(ctx context.Context, accountID, username string) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.ChangeUsername")
	defer func() {
		s.finish(ctx, span, auditdomain.ActionChangeUsername, accountID, "", sessiondomain.ClientInfoFrom(ctx), err)
	}()

	if err := accountdomain.ValidateID(accountID); err != nil {
		return err
	}
	if username == "" {
		return autherr.ErrInvalidCredentials
	}
	other, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return autherr.Server("auth.change_username", err)
	}
	if other != nil {
		if other.ID == accountID {
			return nil
		}
		return autherr.ErrAccountAlreadyExists
	}
	updated, err := s.accounts.UpdateUsername(ctx, accountID, username, s.now().UTC())
	if errors.Is(err, accountrepo.ErrUsernameTaken) {
		return autherr.ErrAccountAlreadyExists
	}
	if err != nil {
		return autherr.Server("auth.change_username", err)
	}
	if !updated {
		return autherr.ErrAccountNotFound
	}
	return nil
}

// ChangePassword replaces the password after checking the current one and revokes
// every session of the account except currentSessionID.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentSessionID, current, next string) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.ChangePassword")
	defer func() {
		s.finish(ctx, span, auditdomain.ActionChangePassword, accountID, currentSessionID, sessiondomain.ClientInfoFrom(ctx), err)
	}()

	if next == "" {
		return autherr.ErrInvalidCredentials
	}
	acct, err := s.loadAccount(ctx, accountID, "auth.change_password")
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(acct.PasswordHash, current)
	if err != nil {
		return autherr.Server("auth.change_password", err)
	}
	if !ok {
		return autherr.ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return autherr.Server("auth.change_password", err)
	}
	updated, err := s.accounts.UpdatePasswordHash(ctx, accountID, hash, s.now().UTC())
	if err != nil {
		return autherr.Server("auth.change_password", err)
	}
	if !updated {
		return autherr.ErrAccountNotFound
	}
	_, err = s.sessions.RevokeAllForAccount(ctx, accountID, currentSessionID)
	return err
}

// ListSessions returns the account's sessions in every state, newest first.
func (s *AuthService) ListSessions(ctx context.Context, accountID string) ([]*sessiondomain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.ListSessions")
	defer span.End()

	list, err := s.sessions.ListForAccount(ctx, accountID)
	if err != nil {
		return nil, s.record(span, err)
	}
	return list, nil
}

// RevokeSession revokes one of the account's own sessions. Foreign and unknown
// session ids succeed silently.
func (s *AuthService) RevokeSession(ctx context.Context, accountID, sessionID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "auth.RevokeSession")
	defer func() {
		s.finish(ctx, span, auditdomain.ActionRevokeSession, accountID, sessionID, sessiondomain.ClientInfoFrom(ctx), err)
	}()

	return s.sessions.RevokeForAccount(ctx, accountID, sessionID)
}

// ValidateAccessToken resolves a bearer token to its active session.
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*sessiondomain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.ValidateAccessToken")
	defer span.End()

	sess, err := s.sessions.Authorize(ctx, accessToken)
	if err != nil {
		return nil, s.record(span, err)
	}
	return sess, nil
}

func (s *AuthService) loadAccount(ctx context.Context, accountID, op string) (*accountdomain.Account, error) {
	if err := accountdomain.ValidateID(accountID); err != nil {
		return nil, err
	}
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, autherr.Server(op, err)
	}
	if acct == nil {
		return nil, autherr.ErrAccountNotFound
	}
	return acct, nil
}

// rehash upgrades a legacy or weak stored hash. Failure only costs another rehash next login.
func (s *AuthService) rehash(ctx context.Context, accountID, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		_, err = s.accounts.UpdatePasswordHash(ctx, accountID, hash, s.now().UTC())
	}
	if err != nil {
		s.logger.Warn("password rehash failed", zap.String("account_id", accountID), zap.Error(err))
	}
}

func (s *AuthService) dummy() (string, error) {
	s.dummyOnce.Do(func() {
		s.dummyHash, s.dummyErr = s.hasher.Hash(dummyPassword)
	})
	return s.dummyHash, s.dummyErr
}

// record marks server faults on the span. err is already classified.
func (s *AuthService) record(span trace.Span, err error) error {
	if autherr.IsServer(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "server error")
	}
	return err
}

// finish ends the span, counts the outcome and emits the audit event. err is the
// already classified result of the operation.
func (s *AuthService) finish(ctx context.Context, span trace.Span, action auditdomain.Action, accountID, sessionID string, info sessiondomain.ClientInfo, err error) {
	defer span.End()

	outcome := "success"
	detail := ""
	switch {
	case err == nil:
	case autherr.IsServer(err):
		outcome = "error"
		detail = autherr.PublicServerMessage
		span.RecordError(err)
		span.SetStatus(codes.Error, string(action))
		s.logger.Error("auth operation failed", zap.String("action", string(action)), zap.Error(err))
	default:
		outcome = autherr.KindOf(err).String()
		detail = outcome
	}
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	s.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", string(action)),
		attribute.String("outcome", outcome),
	))

	if s.audit == nil {
		return
	}
	ev := auditdomain.NewEvent(action, err == nil, s.now())
	ev.AccountID = accountID
	ev.SessionID = sessionID
	ev.IPAddress = info.IPAddress
	ev.UserAgent = info.UserAgent
	ev.Detail = detail
	audit.EmitAsync(s.audit, s.logger, ev)
}

func bundleAccount(b *sessionservice.Bundle) string {
	if b == nil {
		return ""
	}
	return b.AccountID
}

func bundleSession(b *sessionservice.Bundle) string {
	if b == nil {
		return ""
	}
	return b.SessionID
}

// Package service implements the session lifecycle: creation, single-use refresh
// rotation, revocation and expiry housekeeping.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	accountdomain "core-auth/internal/account/domain"
	"core-auth/internal/autherr"
	"core-auth/internal/security"
	"core-auth/internal/session/domain"
	"core-auth/internal/session/repository"
)

var errNoStoredID = errors.New("session insert returned no id")

// Bundle is what a caller receives when a session is created or rotated. The
// refresh token is the raw secret; it is never stored and cannot be recovered.
type Bundle struct {
	AccountID             string
	SessionID             string
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// Service manages sessions. It is safe for concurrent use.
type Service struct {
	repo       repository.Repository
	tokens     *security.TokenIssuer
	refreshTTL time.Duration
	tracer     trace.Tracer
	now        func() time.Time
}

// NewService returns a session Service. refreshTTL is the lifetime of a session
// and of the refresh secret that names it.
func NewService(repo repository.Repository, tokens *security.TokenIssuer, refreshTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		tracer:     otel.Tracer("core-auth/session"),
		now:        time.Now,
	}
}

// Create persists a new active session for the account and issues its tokens.
// No token is issued unless the row was stored.
func (s *Service) Create(ctx context.Context, accountID, service string, info domain.ClientInfo) (*Bundle, error) {
	ctx, span := s.tracer.Start(ctx, "session.Create")
	defer span.End()

	if err := accountdomain.ValidateID(accountID); err != nil {
		return nil, err
	}
	secret, err := security.GenerateRefreshSecret()
	if err != nil {
		return nil, fail(span, "session.create", err)
	}
	now := s.now().UTC()
	sess := &domain.Session{
		ID:               domain.NewID(),
		AccountID:        accountID,
		RefreshTokenHash: security.HashRefreshSecret(secret),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.refreshTTL),
		IPAddress:        info.IPAddress,
		UserAgent:        info.UserAgent,
	}
	id, err := s.repo.Create(ctx, sess)
	if err != nil {
		return nil, fail(span, "session.create", err)
	}
	if id == "" {
		return nil, fail(span, "session.create", errNoStoredID)
	}
	sess.ID = id
	span.SetAttributes(attribute.String("session.id", sess.ID))

	b, err := s.bundle(sess, secret, service)
	if err != nil {
		// The row is unusable without its tokens.
		_, _ = s.repo.Revoke(ctx, sess.ID, now)
		return nil, fail(span, "session.create", err)
	}
	return b, nil
}

// Refresh exchanges a refresh secret for a new session. The presented secret is
// consumed: a second exchange of the same secret fails with SessionNotFound, as
// do unknown, malformed and revoked secrets.
func (s *Service) Refresh(ctx context.Context, refreshSecret, service string, info domain.ClientInfo) (*Bundle, error) {
	ctx, span := s.tracer.Start(ctx, "session.Refresh")
	defer span.End()

	if refreshSecret == "" {
		return nil, autherr.ErrSessionNotFound
	}
	hash := security.HashRefreshSecret(refreshSecret)
	old, err := s.repo.GetByRefreshTokenHash(ctx, hash)
	if err != nil {
		return nil, fail(span, "session.refresh", err)
	}
	if old == nil || old.IsRevoked() {
		return nil, autherr.ErrSessionNotFound
	}
	now := s.now().UTC()
	if old.IsExpiredAt(now) {
		return nil, autherr.ErrExpiredRefreshToken
	}

	secret, err := security.GenerateRefreshSecret()
	if err != nil {
		return nil, fail(span, "session.refresh", err)
	}
	next := &domain.Session{
		ID:               domain.NewID(),
		AccountID:        old.AccountID,
		RefreshTokenHash: security.HashRefreshSecret(secret),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.refreshTTL),
		IPAddress:        info.IPAddress,
		UserAgent:        info.UserAgent,
	}
	rotated, err := s.repo.Rotate(ctx, old.ID, hash, next)
	if err != nil {
		return nil, fail(span, "session.refresh", err)
	}
	if !rotated {
		// Lost a race with a concurrent refresh or revoke.
		return nil, autherr.ErrSessionNotFound
	}
	span.SetAttributes(
		attribute.String("session.previous_id", old.ID),
		attribute.String("session.id", next.ID),
	)

	b, err := s.bundle(next, secret, service)
	if err != nil {
		return nil, fail(span, "session.refresh", err)
	}
	return b, nil
}

// Revoke marks the session inactive. Revoking an absent or already revoked session is not an error.
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "session.Revoke")
	defer span.End()

	if err := domain.ValidateID(sessionID); err != nil {
		return err
	}
	if _, err := s.repo.Revoke(ctx, sessionID, s.now().UTC()); err != nil {
		return fail(span, "session.revoke", err)
	}
	return nil
}

// RevokeForAccount revokes the session only when the account owns it. Like
// Revoke it is idempotent, and it does not reveal whether a foreign session exists.
func (s *Service) RevokeForAccount(ctx context.Context, accountID, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "session.RevokeForAccount")
	defer span.End()

	if err := accountdomain.ValidateID(accountID); err != nil {
		return err
	}
	if err := domain.ValidateID(sessionID); err != nil {
		return err
	}
	if _, err := s.repo.RevokeForAccount(ctx, accountID, sessionID, s.now().UTC()); err != nil {
		return fail(span, "session.revoke_for_account", err)
	}
	return nil
}

// RevokeAllForAccount revokes every active session of the account except exceptSessionID
// (pass "" to revoke all). Returns the number of sessions revoked.
func (s *Service) RevokeAllForAccount(ctx context.Context, accountID, exceptSessionID string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "session.RevokeAllForAccount")
	defer span.End()

	if err := accountdomain.ValidateID(accountID); err != nil {
		return 0, err
	}
	n, err := s.repo.RevokeAllByAccount(ctx, accountID, exceptSessionID, s.now().UTC())
	if err != nil {
		return 0, fail(span, "session.revoke_all", err)
	}
	span.SetAttributes(attribute.Int64("session.revoked", n))
	return n, nil
}

// DeleteAllForAccount removes every session row of the account. Idempotent.
func (s *Service) DeleteAllForAccount(ctx context.Context, accountID string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "session.DeleteAllForAccount")
	defer span.End()

	if err := accountdomain.ValidateID(accountID); err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteAllByAccount(ctx, accountID)
	if err != nil {
		return 0, fail(span, "session.delete_all", err)
	}
	return n, nil
}

// ListForAccount returns the account's sessions, newest first, in every state.
func (s *Service) ListForAccount(ctx context.Context, accountID string) ([]*domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.ListForAccount")
	defer span.End()

	if err := accountdomain.ValidateID(accountID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fail(span, "session.list", err)
	}
	return list, nil
}

// GetByID returns the session or SessionNotFound.
func (s *Service) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.GetByID")
	defer span.End()

	if err := domain.ValidateID(sessionID); err != nil {
		return nil, err
	}
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fail(span, "session.get", err)
	}
	if sess == nil {
		return nil, autherr.ErrSessionNotFound
	}
	return sess, nil
}

// Authorize verifies an access token and checks that the session it names is
// still active, so a revoked session cannot be used even while its access token
// has not expired.
func (s *Service) Authorize(ctx context.Context, accessToken string) (*domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.Authorize")
	defer span.End()

	if accessToken == "" {
		return nil, autherr.ErrAuthenticationRequired
	}
	accountID, sessionID, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fail(span, "session.authorize", err)
	}
	if sess == nil {
		return nil, autherr.ErrSessionNotFound
	}
	switch sess.StateAt(s.now()) {
	case domain.StateRevoked:
		return nil, autherr.ErrSessionNotFound
	case domain.StateExpired:
		return nil, autherr.ErrExpiredRefreshToken
	}
	if sess.AccountID != accountID {
		return nil, autherr.ErrInvalidAccessToken
	}
	return sess, nil
}

// PurgeExpired deletes sessions whose refresh window has closed. Returns the number removed.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "session.PurgeExpired")
	defer span.End()

	n, err := s.repo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fail(span, "session.purge", err)
	}
	span.SetAttributes(attribute.Int64("session.purged", n))
	return n, nil
}

// RunJanitor calls PurgeExpired every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("session purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", zap.Int64("count", n))
			}
		}
	}
}

func (s *Service) bundle(sess *domain.Session, secret, service string) (*Bundle, error) {
	token, exp, err := s.tokens.IssueAccess(sess.AccountID, sess.ID, service)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		AccountID:             sess.AccountID,
		SessionID:             sess.ID,
		AccessToken:           token,
		AccessTokenExpiresAt:  exp,
		RefreshToken:          secret,
		RefreshTokenExpiresAt: sess.ExpiresAt,
	}, nil
}

// fail classifies err and records server faults on the span.
func fail(span trace.Span, op string, err error) error {
	err = autherr.Server(op, err)
	if autherr.IsServer(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, op)
	}
	return err
}

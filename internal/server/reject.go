package server

import (
	"context"

	"core-auth/internal/autherr"
	sessiondomain "core-auth/internal/session/domain"
)

// rejectAll refuses every token; used when no auth service is configured.
type rejectAll struct{}

func (rejectAll) ValidateAccessToken(context.Context, string) (*sessiondomain.Session, error) {
	return nil, autherr.ErrInvalidAccessToken
}

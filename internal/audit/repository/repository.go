package repository

import (
	"context"

	"core-auth/internal/audit/domain"
)

// Repository defines persistence for audit events.
type Repository interface {
	// Create stores the event. Storing an id that already exists is a no-op so redelivered
	// messages do not fail the consumer.
	Create(ctx context.Context, e *domain.Event) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*domain.Event, error)
}

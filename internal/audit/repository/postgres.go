package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"core-auth/internal/audit/domain"
	"core-auth/internal/db"
)

const auditColumns = `id, action, account_id, session_id, ip_address, user_agent, success, detail, created_at`

const insertAudit = `INSERT INTO audit_logs (` + auditColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (id) DO NOTHING`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an audit repository that uses the given pool for persistence.
func NewPostgresRepository(pool db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	_, err := r.db.Exec(ctx, insertAudit,
		e.ID, string(e.Action), e.AccountID, e.SessionID, e.IPAddress, e.UserAgent, e.Success, e.Detail, e.CreatedAt)
	if err != nil {
		return oops.Code("AUDIT_CREATE_FAILED").With("event_id", e.ID).With("action", e.Action).Wrap(err)
	}
	return nil
}

// ListByAccount returns the account's events, newest first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*domain.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, oops.Code("AUDIT_LIST_FAILED").With("account_id", accountID).Wrap(err)
	}
	defer rows.Close()

	out := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, oops.Code("AUDIT_SCAN_FAILED").With("account_id", accountID).Wrap(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("AUDIT_LIST_FAILED").With("account_id", accountID).Wrap(err)
	}
	return out, nil
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var (
		e      domain.Event
		action string
	)
	if err := row.Scan(&e.ID, &action, &e.AccountID, &e.SessionID, &e.IPAddress, &e.UserAgent,
		&e.Success, &e.Detail, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Action = domain.Action(action)
	return &e, nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Action names an audited operation.
type Action string

const (
	ActionRegister       Action = "account.register"
	ActionAuthenticate   Action = "account.authenticate"
	ActionRefresh        Action = "session.refresh"
	ActionLogout         Action = "session.logout"
	ActionLogoutAll      Action = "session.logout_all"
	ActionRevokeSession  Action = "session.revoke"
	ActionDeleteAccount  Action = "account.delete"
	ActionChangeUsername Action = "account.change_username"
	ActionChangePassword Action = "account.change_password"
)

// Event is one audit record. Secrets, hashes and tokens never appear in it.
type Event struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	AccountID string    `json:"account_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent returns an event with a fresh id stamped at now.
func NewEvent(action Action, success bool, now time.Time) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Action:    action,
		Success:   success,
		CreatedAt: now.UTC(),
	}
}

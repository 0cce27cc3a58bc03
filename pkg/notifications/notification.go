package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies what happened.
type Kind string

const (
	KindMeetingWarning     Kind = "meeting.warning"
	KindMeetingForceClosed Kind = "meeting.force_closed"
	KindQuotaExceeded      Kind = "usage.quota_exceeded"
	KindAIBudgetExhausted  Kind = "usage.ai_budget_exhausted"
	KindPlanChanged        Kind = "subscription.plan_changed"
)

// Type represents the notification severity.
type Type string

const (
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// Notification is one user-facing signal emitted by the engine.
type Notification struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Kind      Kind           `json:"kind"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Read      bool           `json:"read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

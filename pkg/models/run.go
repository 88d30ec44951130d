package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// AutomationRun is one invocation instance of a workflow, created when a
// trigger fires. TriggerMeta records what fired it (event id and type).
type AutomationRun struct {
	ID             uuid.UUID       `db:"id"              json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	WorkflowID     uuid.UUID       `db:"workflow_id"     json:"workflow_id"`
	Status         string          `db:"status"          json:"status"`
	TriggerMeta    json.RawMessage `db:"trigger_meta"    json:"trigger_meta,omitempty"`
	ErrorMessage   *string         `db:"error_message"   json:"error_message,omitempty"`
	CreatedAt      time.Time       `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"      json:"updated_at"`
}

// RunTrigger is the trigger metadata serialized into TriggerMeta.
type RunTrigger struct {
	EventID   *uuid.UUID `json:"event_id,omitempty"`
	EventType string     `json:"event_type"`
	Source    string     `json:"source,omitempty"`
}

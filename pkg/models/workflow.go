package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Workflow is an organization-scoped automation definition. It fires when an
// ingested event's type exactly equals TriggerEvent.
type Workflow struct {
	ID             uuid.UUID       `db:"id"              json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	Name           string          `db:"name"            json:"name"`
	Active         bool            `db:"active"          json:"active"`
	TriggerEvent   string          `db:"trigger_event"   json:"trigger_event"`
	TriggerConfig  json.RawMessage `db:"trigger_config"  json:"trigger_config,omitempty"`
	CreatedBy      *uuid.UUID      `db:"created_by"      json:"created_by,omitempty"`
	CreatedAt      time.Time       `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"      json:"updated_at"`

	// Actions are the ordered steps, loaded alongside the workflow.
	// Deleting a workflow cascades to them.
	Actions []WorkflowAction `db:"-" json:"actions,omitempty"`
}

// WorkflowAction is one ordered step within a workflow. DelaySeconds postpones
// the step's execution relative to when its job becomes due.
type WorkflowAction struct {
	ID           uuid.UUID       `db:"id"            json:"id"`
	WorkflowID   uuid.UUID       `db:"workflow_id"   json:"workflow_id"`
	Position     int             `db:"position"      json:"position"`
	Type         string          `db:"type"          json:"type"`
	Config       json.RawMessage `db:"config"        json:"config,omitempty"`
	DelaySeconds int             `db:"delay_seconds" json:"delay_seconds"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
}

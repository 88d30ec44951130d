package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"
)

// JobTypeExecuteWorkflow is the initial job created for every run.
const JobTypeExecuteWorkflow = "workflow.execute"

// Job is one schedulable unit of work belonging to a run. Jobs never leave a
// terminal status: a retry is a fresh pending row with Attempts incremented,
// so the audit trail of what actually executed stays honest.
type Job struct {
	ID             uuid.UUID       `db:"id"              json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	RunID          uuid.UUID       `db:"run_id"          json:"run_id"`
	Type           string          `db:"type"            json:"type"`
	Payload        json.RawMessage `db:"payload"         json:"payload,omitempty"`
	Status         string          `db:"status"          json:"status"`
	Attempts       int             `db:"attempts"        json:"attempts"`
	ErrorMessage   *string         `db:"error_message"   json:"error_message,omitempty"`
	RunAfter       time.Time       `db:"run_after"       json:"run_after"`
	StartedAt      *time.Time      `db:"started_at"      json:"started_at,omitempty"`
	CompletedAt    *time.Time      `db:"completed_at"    json:"completed_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"      json:"updated_at"`
}

// ExecutePayload is the payload carried by workflow.execute jobs.
// ActionIndex is the position of the next action to run; each completed
// action chains a fresh job for the one after it.
type ExecutePayload struct {
	WorkflowID  uuid.UUID  `json:"workflow_id"`
	RunID       uuid.UUID  `json:"run_id"`
	ActionIndex int        `json:"action_index"`
	Trigger     RunTrigger `json:"trigger"`
}

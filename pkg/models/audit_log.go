// Package models contains shared data models used across the flowhook codebase.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the pipeline and the admin surface.
const (
	AuditKeyCreated       = "api_key.created"
	AuditKeyRevoked       = "api_key.revoked"
	AuditEventIngested    = "webhook.ingested"
	AuditWorkflowCreated  = "workflow.created"
	AuditWorkflowUpdated  = "workflow.updated"
	AuditWorkflowDeleted  = "workflow.deleted"
	AuditWorkflowTriggered = "workflow.triggered"
)

// AuditLog is an append-only record of a security-relevant action, scoped to
// an organization and optionally attributed to a dashboard user.
type AuditLog struct {
	ID             uuid.UUID       `db:"id"              json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	UserID         *uuid.UUID      `db:"user_id"         json:"user_id,omitempty"`
	Action         string          `db:"action"          json:"action"`
	ResourceType   string          `db:"resource_type"   json:"resource_type"`
	ResourceID     string          `db:"resource_id"     json:"resource_id"`
	Metadata       json.RawMessage `db:"metadata"        json:"metadata,omitempty"`
	CreatedAt      time.Time       `db:"created_at"      json:"created_at"`
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventLog is an accepted inbound event. Rows are append-only: they are
// written once during ingestion and never mutated afterwards.
// Unvalidated marks events whose type is not in the catalog, so the payload
// was accepted without a schema check.
type EventLog struct {
	ID             uuid.UUID       `db:"id"              json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	EventType      string          `db:"event_type"      json:"event_type"`
	Payload        json.RawMessage `db:"payload"         json:"payload"`
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Source         *string         `db:"source"          json:"source,omitempty"`
	APIKeyID       *uuid.UUID      `db:"api_key_id"      json:"api_key_id,omitempty"`
	Unvalidated    bool            `db:"unvalidated"     json:"unvalidated"`
	CreatedAt      time.Time       `db:"created_at"      json:"created_at"`
}

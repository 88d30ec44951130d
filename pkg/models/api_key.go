package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is the credential external systems use to push events into one
// organization. Raw secrets are shown once at creation; only the bcrypt hash
// is stored. The prefix is non-secret and exists for candidate lookup only.
type APIKey struct {
	ID             uuid.UUID  `db:"id"              json:"id"`
	OrganizationID uuid.UUID  `db:"organization_id" json:"organization_id"`
	Name           string     `db:"name"            json:"name"`
	KeyHash        string     `db:"key_hash"        json:"-"`
	KeyPrefix      string     `db:"key_prefix"      json:"key_prefix"`
	CreatedBy      *uuid.UUID `db:"created_by"      json:"created_by,omitempty"`
	LastUsedAt     *time.Time `db:"last_used_at"    json:"last_used_at,omitempty"`
	RevokedAt      *time.Time `db:"revoked_at"      json:"revoked_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}

// Revoked reports whether the key has been revoked. Revocation is terminal.
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

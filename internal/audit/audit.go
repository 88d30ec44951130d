// Package audit appends security-relevant actions to the audit trail without
// ever failing or slowing the operation being audited.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/google/uuid"
)

const writeTimeout = 5 * time.Second

// Store is the subset of the data layer the audit logger needs.
type Store interface {
	AppendAuditLog(ctx context.Context, entry *models.AuditLog) error
}

type Logger struct {
	store Store
}

func NewLogger(store Store) *Logger {
	return &Logger{store: store}
}

// Record appends an audit entry asynchronously. It detaches from the caller's
// context so a cancelled request cannot lose the entry, and a failed write is
// logged but never surfaced.
func (l *Logger) Record(orgID uuid.UUID, userID *uuid.UUID, action, resourceType, resourceID string, metadata any) {
	var meta json.RawMessage
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			meta = b
		}
	}

	entry := &models.AuditLog{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         userID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Metadata:       meta,
		CreatedAt:      time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := l.store.AppendAuditLog(ctx, entry); err != nil {
			slog.Warn("audit write failed",
				"action", action,
				"organization_id", orgID,
				"error", err,
			)
		}
	}()
}

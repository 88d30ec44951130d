// Package ingest is the write path for inbound webhook events: structural
// checks, idempotency, catalog validation, persistence, and workflow fan-out.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flowhook/flowhook/internal/automation"
	"github.com/flowhook/flowhook/internal/catalog"
	"github.com/flowhook/flowhook/pkg/models"
	"github.com/google/uuid"
)

const (
	// MaxPayloadBytes is the ceiling on an event payload. The HTTP layer
	// enforces the same limit on the request body before JSON decoding.
	MaxPayloadBytes = 1 << 20

	maxEventTypeLen = 100

	// maxReportedMatches caps how many run references the ingest response
	// carries; the full set is always queued regardless.
	maxReportedMatches = 25
)

var (
	ErrEmptyEventType   = errors.New("event type is required")
	ErrEventTypeTooLong = errors.New("event type exceeds 100 characters")
	ErrPayloadTooLarge  = errors.New("payload exceeds 1 MiB")
)

// ValidationError carries the per-field catalog failures for a known event
// type whose payload did not conform.
type ValidationError struct {
	EventType string
	Fields    []catalog.FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("payload for %s failed validation (%d field errors)", e.EventType, len(e.Fields))
}

// Store is the subset of the data layer the ingest service needs.
type Store interface {
	CreateEventLog(ctx context.Context, event *models.EventLog) error
}

// Auditor records audit entries without blocking the write path.
type Auditor interface {
	Record(orgID uuid.UUID, userID *uuid.UUID, action, resourceType, resourceID string, metadata any)
}

// Matcher fans an accepted event out to the workflows it triggers.
type Matcher interface {
	Fire(ctx context.Context, orgID uuid.UUID, trigger models.RunTrigger) ([]automation.MatchResult, error)
}

// Service runs the ingestion pipeline for one event at a time.
type Service struct {
	store   Store
	catalog *catalog.Registry
	matcher Matcher
	audit   Auditor
	now     func() time.Time
}

func NewService(store Store, reg *catalog.Registry, matcher Matcher, auditor Auditor) *Service {
	return &Service{
		store:   store,
		catalog: reg,
		matcher: matcher,
		audit:   auditor,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Request is one inbound event, already authenticated and decoded.
type Request struct {
	EventType      string
	Payload        json.RawMessage
	IdempotencyKey string
	Source         string
	APIKeyID       *uuid.UUID
}

// RunRef points at one run queued for a matched workflow.
type RunRef struct {
	WorkflowID uuid.UUID `json:"workflow_id"`
	RunID      uuid.UUID `json:"run_id"`
	JobID      uuid.UUID `json:"job_id"`
}

// Result is the outcome of an accepted event.
type Result struct {
	Event *models.EventLog

	// Validated is false when the event type is not in the catalog and the
	// payload was stored unchecked.
	Validated bool

	// MatchedWorkflows counts every workflow the event triggered; Runs lists
	// at most maxReportedMatches of them.
	MatchedWorkflows int
	Runs             []RunRef
}

// Ingest runs the full pipeline. The event is durable once CreateEventLog
// returns; matching failures after that point degrade the result but never
// reject the event.
func (s *Service) Ingest(ctx context.Context, orgID uuid.UUID, req Request) (*Result, error) {
	eventType := strings.TrimSpace(req.EventType)
	if eventType == "" {
		return nil, ErrEmptyEventType
	}
	if len(eventType) > maxEventTypeLen {
		return nil, ErrEventTypeTooLong
	}
	if len(req.Payload) > MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}

	payload, check := s.catalog.Validate(eventType, req.Payload)
	if check.Known && !check.Valid {
		return nil, &ValidationError{EventType: eventType, Fields: check.Errors}
	}

	event := &models.EventLog{
		ID:             uuid.New(),
		OrganizationID: orgID,
		EventType:      eventType,
		Payload:        payload,
		APIKeyID:       req.APIKeyID,
		Unvalidated:    !check.Known,
		CreatedAt:      s.now(),
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		event.IdempotencyKey = &key
	}
	if src := strings.TrimSpace(req.Source); src != "" {
		event.Source = &src
	}

	// The unique index on (organization, idempotency key) is the idempotency
	// check; a collision surfaces as store.ErrDuplicateIdempotencyKey.
	if err := s.store.CreateEventLog(ctx, event); err != nil {
		return nil, err
	}

	result := &Result{Event: event, Validated: check.Known}

	matches, err := s.matcher.Fire(ctx, orgID, models.RunTrigger{
		EventID:   &event.ID,
		EventType: eventType,
		Source:    req.Source,
	})
	if err != nil {
		// The event is already stored; report it accepted with zero runs.
		slog.Error("workflow matching failed", "event_id", event.ID, "error", err)
	}
	for _, m := range matches {
		if m.Err != nil {
			slog.Error("workflow trigger failed",
				"event_id", event.ID,
				"workflow_id", m.WorkflowID,
				"error", m.Err,
			)
			continue
		}
		result.MatchedWorkflows++
		if len(result.Runs) < maxReportedMatches {
			result.Runs = append(result.Runs, RunRef{
				WorkflowID: m.WorkflowID,
				RunID:      m.RunID,
				JobID:      m.JobID,
			})
		}
	}

	s.audit.Record(orgID, nil, models.AuditEventIngested, "event", event.ID.String(), map[string]any{
		"event_type": eventType,
		"validated":  result.Validated,
		"workflows":  result.MatchedWorkflows,
	})

	return result, nil
}

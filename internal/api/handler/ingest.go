// Package handler contains the HTTP handlers for the public ingestion
// surface and the administrative API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flowhook/flowhook/internal/api/middleware"
	"github.com/flowhook/flowhook/internal/api/response"
	"github.com/flowhook/flowhook/internal/catalog"
	"github.com/flowhook/flowhook/internal/ingest"
	"github.com/flowhook/flowhook/internal/store"
	"github.com/google/uuid"
)

// Ingester runs the ingestion pipeline for one decoded event.
type Ingester interface {
	Ingest(ctx context.Context, orgID uuid.UUID, req ingest.Request) (*ingest.Result, error)
}

// ingestResponse uses the wire names external producers integrate against.
type ingestResponse struct {
	EventID   uuid.UUID   `json:"eventId"`
	EventType string      `json:"eventType"`
	Validated bool        `json:"validated"`
	Triggered int         `json:"triggered"`
	RunIDs    []uuid.UUID `json:"runIds"`
	JobIDs    []uuid.UUID `json:"jobIds"`
}

// NewIngestHandler returns the handler for POST /v1/events.
func NewIngestHandler(svc Ingester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := middleware.GetOrganizationID(r)
		if !ok {
			response.Unauthorized(w, "Missing organization")
			return
		}

		// A margin over the payload cap leaves room for the envelope fields.
		r.Body = http.MaxBytesReader(w, r.Body, ingest.MaxPayloadBytes+4096)

		var req struct {
			EventType      string          `json:"eventType"`
			Payload        json.RawMessage `json:"payload"`
			IdempotencyKey string          `json:"idempotencyKey"`
			Source         string          `json:"source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				response.Error(w, http.StatusRequestEntityTooLarge,
					response.CodePayloadTooLarge, "Request body exceeds 1 MiB", nil)
				return
			}
			response.BadRequest(w, "Invalid JSON body")
			return
		}

		apiKeyID, _ := middleware.GetAPIKeyID(r)
		var keyRef *uuid.UUID
		if apiKeyID != uuid.Nil {
			keyRef = &apiKeyID
		}

		result, err := svc.Ingest(r.Context(), orgID, ingest.Request{
			EventType:      req.EventType,
			Payload:        req.Payload,
			IdempotencyKey: req.IdempotencyKey,
			Source:         req.Source,
			APIKeyID:       keyRef,
		})
		if err != nil {
			writeIngestError(w, err)
			return
		}

		resp := ingestResponse{
			EventID:   result.Event.ID,
			EventType: result.Event.EventType,
			Validated: result.Validated,
			Triggered: result.MatchedWorkflows,
			RunIDs:    make([]uuid.UUID, 0, len(result.Runs)),
			JobIDs:    make([]uuid.UUID, 0, len(result.Runs)),
		}
		for _, run := range result.Runs {
			resp.RunIDs = append(resp.RunIDs, run.RunID)
			resp.JobIDs = append(resp.JobIDs, run.JobID)
		}
		response.Accepted(w, resp)
	}
}

func writeIngestError(w http.ResponseWriter, err error) {
	var verr *ingest.ValidationError
	switch {
	case errors.Is(err, ingest.ErrEmptyEventType),
		errors.Is(err, ingest.ErrEventTypeTooLong):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ingest.ErrPayloadTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge,
			response.CodePayloadTooLarge, err.Error(), nil)
	case errors.As(err, &verr):
		response.Error(w, http.StatusUnprocessableEntity,
			response.CodeValidationFailed, "Payload failed schema validation", validationDetails(verr.Fields))
	case errors.Is(err, store.ErrDuplicateIdempotencyKey):
		response.Error(w, http.StatusConflict,
			response.CodeDuplicateEvent, "An event with this idempotency key was already accepted", nil)
	default:
		response.Internal(w, "Failed to ingest event")
	}
}

func validationDetails(fields []catalog.FieldError) []map[string]string {
	details := make([]map[string]string, 0, len(fields))
	for _, f := range fields {
		details = append(details, map[string]string{
			"field":   f.Field,
			"message": f.Message,
		})
	}
	return details
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/flowhook/flowhook/internal/api/middleware"
	"github.com/flowhook/flowhook/internal/api/response"
	"github.com/flowhook/flowhook/internal/store"
	"github.com/flowhook/flowhook/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// WorkflowStore is the subset of the data layer the workflow handlers need.
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, wf *models.Workflow) error
	GetWorkflow(ctx context.Context, id uuid.UUID, orgID uuid.UUID) (*models.Workflow, error)
	ListWorkflows(ctx context.Context, orgID uuid.UUID) ([]*models.Workflow, error)
	UpdateWorkflow(ctx context.Context, wf *models.Workflow) error
	SetWorkflowActive(ctx context.Context, id uuid.UUID, orgID uuid.UUID, active bool) error
	DeleteWorkflow(ctx context.Context, id uuid.UUID, orgID uuid.UUID) error
}

// Triggerer manufactures a run and initial job for one workflow.
type Triggerer interface {
	Trigger(ctx context.Context, wf *models.Workflow, trigger models.RunTrigger) (uuid.UUID, uuid.UUID, error)
}

type workflowRequest struct {
	Name         string                  `json:"name"`
	TriggerEvent string                  `json:"trigger_event"`
	Active       *bool                   `json:"active"`
	Actions      []workflowActionRequest `json:"actions"`
}

type workflowActionRequest struct {
	Type         string          `json:"type"`
	Config       json.RawMessage `json:"config"`
	DelaySeconds int             `json:"delay_seconds"`
}

func (req *workflowRequest) validate() string {
	if req.Name == "" {
		return "name is required"
	}
	if req.TriggerEvent == "" {
		return "trigger_event is required"
	}
	if len(req.Actions) == 0 {
		return "at least one action is required"
	}
	for _, a := range req.Actions {
		if a.Type == "" {
			return "every action needs a type"
		}
		if a.DelaySeconds < 0 {
			return "delay_seconds cannot be negative"
		}
	}
	return ""
}

func (req *workflowRequest) toModel(orgID uuid.UUID) *models.Workflow {
	now := time.Now().UTC()
	wf := &models.Workflow{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           req.Name,
		TriggerEvent:   req.TriggerEvent,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Active != nil {
		wf.Active = *req.Active
	}
	for i, a := range req.Actions {
		wf.Actions = append(wf.Actions, models.WorkflowAction{
			ID:           uuid.New(),
			WorkflowID:   wf.ID,
			Position:     i,
			Type:         a.Type,
			Config:       a.Config,
			DelaySeconds: a.DelaySeconds,
			CreatedAt:    now,
		})
	}
	return wf
}

// NewCreateWorkflowHandler returns the handler for POST /v1/workflows.
func NewCreateWorkflowHandler(st WorkflowStore, auditor Auditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := middleware.GetOrganizationID(r)
		if !ok {
			response.Unauthorized(w, "Missing organization")
			return
		}

		var req workflowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid JSON body")
			return
		}
		if msg := req.validate(); msg != "" {
			response.BadRequest(w, msg)
			return
		}

		wf := req.toModel(orgID)
		if userID, ok := middleware.GetUserID(r); ok {
			wf.CreatedBy = &userID
		}

		if err := st.CreateWorkflow(r.Context(), wf); err != nil {
			response.Internal(w, "Failed to create workflow")
			return
		}

		auditor.Record(orgID, wf.CreatedBy, models.AuditWorkflowCreated, "workflow", wf.ID.String(),
			map[string]any{"name": wf.Name, "trigger_event": wf.TriggerEvent})
		response.Created(w, wf)
	}
}

// NewListWorkflowsHandler returns the handler for GET /v1/workflows.
func NewListWorkflowsHandler(st WorkflowStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := middleware.GetOrganizationID(r)
		if !ok {
			response.Unauthorized(w, "Missing organization")
			return
		}

		workflows, err := st.ListWorkflows(r.Context(), orgID)
		if err != nil {
			response.Internal(w, "Failed to list workflows")
			return
		}
		if workflows == nil {
			workflows = []*models.Workflow{}
		}
		response.JSON(w, workflows)
	}
}

// NewGetWorkflowHandler returns the handler for GET /v1/workflows/{workflowID}.
func NewGetWorkflowHandler(st WorkflowStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := loadWorkflow(w, r, st)
		if !ok {
			return
		}
		response.JSON(w, wf)
	}
}

// NewUpdateWorkflowHandler returns the handler for PUT /v1/workflows/{workflowID}.
// Updates replace the whole definition, actions included.
func NewUpdateWorkflowHandler(st WorkflowStore, auditor Auditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, ok := loadWorkflow(w, r, st)
		if !ok {
			return
		}

		var req workflowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid JSON body")
			return
		}
		if msg := req.validate(); msg != "" {
			response.BadRequest(w, msg)
			return
		}

		wf := req.toModel(existing.OrganizationID)
		wf.ID = existing.ID
		wf.CreatedBy = existing.CreatedBy
		wf.CreatedAt = existing.CreatedAt
		for i := range wf.Actions {
			wf.Actions[i].WorkflowID = existing.ID
		}

		if err := st.UpdateWorkflow(r.Context(), wf); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.NotFound(w, "Workflow not found")
				return
			}
			response.Internal(w, "Failed to update workflow")
			return
		}

		recordWorkflowAudit(r, auditor, models.AuditWorkflowUpdated, wf.OrganizationID, wf.ID)
		response.JSON(w, wf)
	}
}

// NewSetWorkflowActiveHandler returns the handler for
// PATCH /v1/workflows/{workflowID}/active.
func NewSetWorkflowActiveHandler(st WorkflowStore, auditor Auditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := middleware.GetOrganizationID(r)
		if !ok {
			response.Unauthorized(w, "Missing organization")
			return
		}

		workflowID, err := uuid.Parse(chi.URLParam(r, "workflowID"))
		if err != nil {
			response.BadRequest(w, "Invalid workflow id")
			return
		}

		var req struct {
			Active *bool `json:"active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
			response.BadRequest(w, "active is required")
			return
		}

		if err := st.SetWorkflowActive(r.Context(), workflowID, orgID, *req.Active); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.NotFound(w, "Workflow not found")
				return
			}
			response.Internal(w, "Failed to update workflow")
			return
		}

		recordWorkflowAudit(r, auditor, models.AuditWorkflowUpdated, orgID, workflowID)
		response.JSON(w, map[string]any{"id": workflowID, "active": *req.Active})
	}
}

// NewDeleteWorkflowHandler returns the handler for DELETE /v1/workflows/{workflowID}.
func NewDeleteWorkflowHandler(st WorkflowStore, auditor Auditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := middleware.GetOrganizationID(r)
		if !ok {
			response.Unauthorized(w, "Missing organization")
			return
		}

		workflowID, err := uuid.Parse(chi.URLParam(r, "workflowID"))
		if err != nil {
			response.BadRequest(w, "Invalid workflow id")
			return
		}

		if err := st.DeleteWorkflow(r.Context(), workflowID, orgID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.NotFound(w, "Workflow not found")
				return
			}
			response.Internal(w, "Failed to delete workflow")
			return
		}

		recordWorkflowAudit(r, auditor, models.AuditWorkflowDeleted, orgID, workflowID)
		response.NoContent(w)
	}
}

// NewTriggerWorkflowHandler returns the handler for
// POST /v1/workflows/{workflowID}/trigger. Manual triggers bypass ingestion
// entirely: no event log row is written, the run's trigger metadata records
// the synthetic source instead.
func NewTriggerWorkflowHandler(st WorkflowStore, triggerer Triggerer, auditor Auditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := loadWorkflow(w, r, st)
		if !ok {
			return
		}

		runID, jobID, err := triggerer.Trigger(r.Context(), wf, models.RunTrigger{
			EventType: wf.TriggerEvent,
			Source:    "manual",
		})
		if err != nil {
			response.Internal(w, "Failed to trigger workflow")
			return
		}

		recordWorkflowAudit(r, auditor, models.AuditWorkflowTriggered, wf.OrganizationID, wf.ID)
		response.Accepted(w, map[string]any{
			"workflow_id": wf.ID,
			"run_id":      runID,
			"job_id":      jobID,
		})
	}
}

func loadWorkflow(w http.ResponseWriter, r *http.Request, st WorkflowStore) (*models.Workflow, bool) {
	orgID, ok := middleware.GetOrganizationID(r)
	if !ok {
		response.Unauthorized(w, "Missing organization")
		return nil, false
	}

	workflowID, err := uuid.Parse(chi.URLParam(r, "workflowID"))
	if err != nil {
		response.BadRequest(w, "Invalid workflow id")
		return nil, false
	}

	wf, err := st.GetWorkflow(r.Context(), workflowID, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "Workflow not found")
			return nil, false
		}
		response.Internal(w, "Failed to load workflow")
		return nil, false
	}
	return wf, true
}

func recordWorkflowAudit(r *http.Request, auditor Auditor, action string, orgID, workflowID uuid.UUID) {
	var userID *uuid.UUID
	if id, ok := middleware.GetUserID(r); ok {
		userID = &id
	}
	auditor.Record(orgID, userID, action, "workflow", workflowID.String(), nil)
}

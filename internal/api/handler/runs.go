package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/flowhook/flowhook/internal/api/middleware"
	"github.com/flowhook/flowhook/internal/api/response"
	"github.com/flowhook/flowhook/internal/store"
	"github.com/flowhook/flowhook/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const defaultRunListLimit = 50

// RunStore is the subset of the data layer the run handlers need.
type RunStore interface {
	GetRun(ctx context.Context, id uuid.UUID, orgID uuid.UUID) (*models.AutomationRun, error)
	ListRunsByWorkflow(ctx context.Context, workflowID uuid.UUID, orgID uuid.UUID, limit int) ([]*models.AutomationRun, error)
	ListJobsByRun(ctx context.Context, runID uuid.UUID, orgID uuid.UUID) ([]*models.Job, error)
}

// NewListRunsHandler returns the handler for GET /v1/workflows/{workflowID}/runs.
func NewListRunsHandler(st RunStore) http.HandlerFunc {
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

		limit := defaultRunListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > 200 {
				response.BadRequest(w, "limit must be between 1 and 200")
				return
			}
			limit = n
		}

		runs, err := st.ListRunsByWorkflow(r.Context(), workflowID, orgID, limit)
		if err != nil {
			response.Internal(w, "Failed to list runs")
			return
		}
		if runs == nil {
			runs = []*models.AutomationRun{}
		}
		response.JSON(w, runs)
	}
}

// NewGetRunHandler returns the handler for GET /v1/runs/{runID}.
func NewGetRunHandler(st RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := middleware.GetOrganizationID(r)
		if !ok {
			response.Unauthorized(w, "Missing organization")
			return
		}

		runID, err := uuid.Parse(chi.URLParam(r, "runID"))
		if err != nil {
			response.BadRequest(w, "Invalid run id")
			return
		}

		run, err := st.GetRun(r.Context(), runID, orgID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.NotFound(w, "Run not found")
				return
			}
			response.Internal(w, "Failed to load run")
			return
		}
		response.JSON(w, run)
	}
}

// NewListRunJobsHandler returns the handler for GET /v1/runs/{runID}/jobs.
// Retries show up as separate rows, so the full execution history of a run
// is visible here.
func NewListRunJobsHandler(st RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := middleware.GetOrganizationID(r)
		if !ok {
			response.Unauthorized(w, "Missing organization")
			return
		}

		runID, err := uuid.Parse(chi.URLParam(r, "runID"))
		if err != nil {
			response.BadRequest(w, "Invalid run id")
			return
		}

		jobs, err := st.ListJobsByRun(r.Context(), runID, orgID)
		if err != nil {
			response.Internal(w, "Failed to list jobs")
			return
		}
		if jobs == nil {
			jobs = []*models.Job{}
		}
		response.JSON(w, jobs)
	}
}

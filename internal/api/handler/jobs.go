package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/flowhook/flowhook/internal/api/middleware"
	"github.com/flowhook/flowhook/internal/api/response"
	"github.com/flowhook/flowhook/internal/automation"
	"github.com/google/uuid"
)

const maxProcessBatch = 100

// BatchProcessor claims and executes a bounded batch of due jobs.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, orgID uuid.UUID, maxJobs int) ([]automation.JobResult, error)
}

// NewProcessJobsHandler returns the handler for POST /v1/jobs/process. The
// background scheduler is the usual caller; operators can also invoke it to
// drain a backlog by hand.
func NewProcessJobsHandler(processor BatchProcessor, defaultBatch int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := middleware.GetOrganizationID(r)
		if !ok {
			response.Unauthorized(w, "Missing organization")
			return
		}

		maxJobs := defaultBatch
		var req struct {
			MaxJobs int `json:"max_jobs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			response.BadRequest(w, "Invalid JSON body")
			return
		}
		if req.MaxJobs < 0 || req.MaxJobs > maxProcessBatch {
			response.BadRequest(w, "max_jobs must be between 0 and 100")
			return
		}
		if req.MaxJobs > 0 {
			maxJobs = req.MaxJobs
		}

		results, err := processor.ProcessBatch(r.Context(), orgID, maxJobs)
		if err != nil {
			response.Internal(w, "Failed to process jobs")
			return
		}
		if results == nil {
			results = []automation.JobResult{}
		}
		response.JSON(w, map[string]any{
			"processed": len(results),
			"jobs":      results,
		})
	}
}

package store

import (
	"context"
	"errors"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrDuplicateIdempotencyKey is returned when an event log insert collides
// with an existing (organization, idempotency key) pair. The uniqueness is
// per organization, never global.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error)

	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, orgID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, orgID uuid.UUID) error

	CreateEventLog(ctx context.Context, event *models.EventLog) error
	GetEventLog(ctx context.Context, id uuid.UUID, orgID uuid.UUID) (*models.EventLog, error)

	CreateWorkflow(ctx context.Context, wf *models.Workflow) error
	GetWorkflow(ctx context.Context, id uuid.UUID, orgID uuid.UUID) (*models.Workflow, error)
	ListWorkflows(ctx context.Context, orgID uuid.UUID) ([]*models.Workflow, error)
	ListActiveWorkflowsByTrigger(ctx context.Context, orgID uuid.UUID, eventType string) ([]*models.Workflow, error)
	UpdateWorkflow(ctx context.Context, wf *models.Workflow) error
	SetWorkflowActive(ctx context.Context, id uuid.UUID, orgID uuid.UUID, active bool) error
	DeleteWorkflow(ctx context.Context, id uuid.UUID, orgID uuid.UUID) error

	CreateRun(ctx context.Context, run *models.AutomationRun) error
	GetRun(ctx context.Context, id uuid.UUID, orgID uuid.UUID) (*models.AutomationRun, error)
	ListRunsByWorkflow(ctx context.Context, workflowID uuid.UUID, orgID uuid.UUID, limit int) ([]*models.AutomationRun, error)
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status string, opts ...RunUpdateOption) error

	CreateJob(ctx context.Context, job *models.Job) error
	ClaimPendingJobs(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
	ListJobsByRun(ctx context.Context, runID uuid.UUID, orgID uuid.UUID) ([]*models.Job, error)
	ListOrganizationsWithDueJobs(ctx context.Context) ([]uuid.UUID, error)

	AppendAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, int, error)
}

type runUpdateParams struct {
	ErrorMessage *string
}

type RunUpdateOption func(*runUpdateParams)

func RunWithErrorMessage(msg string) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.ErrorMessage = &msg
	}
}

type jobUpdateParams struct {
	ErrorMessage *string
}

type JobUpdateOption func(*jobUpdateParams)

func JobWithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

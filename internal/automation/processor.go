package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowhook/flowhook/internal/store"
	"github.com/flowhook/flowhook/pkg/models"
	"github.com/google/uuid"
)

// ProcessorStore is the subset of the data layer the processor needs.
type ProcessorStore interface {
	ClaimPendingJobs(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) error
	CreateJob(ctx context.Context, job *models.Job) error
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status string, opts ...store.RunUpdateOption) error
	GetWorkflow(ctx context.Context, id uuid.UUID, orgID uuid.UUID) (*models.Workflow, error)
}

// Options tune retry and timeout behavior.
type Options struct {
	MaxAttempts      int
	ExecutionTimeout time.Duration
	BackoffBase      time.Duration
}

// Processor claims batches of due jobs and executes them through the action
// executors. It is safe to run concurrently: claiming is atomic at the
// storage layer, so overlapping ticks never execute the same job twice.
type Processor struct {
	store     ProcessorStore
	executors *ExecutorRegistry
	opts      Options
	now       func() time.Time
}

func NewProcessor(st ProcessorStore, executors *ExecutorRegistry, opts Options) *Processor {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.ExecutionTimeout <= 0 {
		opts.ExecutionTimeout = 60 * time.Second
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 30 * time.Second
	}
	return &Processor{
		store:     st,
		executors: executors,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// JobResult is the per-job outcome of a batch.
type JobResult struct {
	JobID   uuid.UUID `json:"job_id"`
	RunID   uuid.UUID `json:"run_id"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	Retried bool      `json:"retried,omitempty"`
}

// ProcessBatch claims up to maxJobs due jobs for one organization, oldest
// first, and executes each. A job's failure is captured in its own result and
// never aborts the rest of the batch.
func (p *Processor) ProcessBatch(ctx context.Context, orgID uuid.UUID, maxJobs int) ([]JobResult, error) {
	jobs, err := p.store.ClaimPendingJobs(ctx, orgID, maxJobs)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}

	results := make([]JobResult, 0, len(jobs))
	for _, job := range jobs {
		results = append(results, p.processJob(ctx, job))
	}
	return results, nil
}

func (p *Processor) processJob(ctx context.Context, job *models.Job) JobResult {
	var payload models.ExecutePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return p.failPermanently(ctx, job, fmt.Sprintf("malformed job payload: %v", err))
	}

	wf, err := p.store.GetWorkflow(ctx, payload.WorkflowID, job.OrganizationID)
	if err != nil {
		// The workflow was deleted after the run was queued. Nothing to retry.
		return p.failPermanently(ctx, job, fmt.Sprintf("load workflow %s: %v", payload.WorkflowID, err))
	}

	if payload.ActionIndex >= len(wf.Actions) {
		return p.succeed(ctx, job, nil, payload)
	}

	action := wf.Actions[payload.ActionIndex]
	executor, ok := p.executors.Get(action.Type)
	if !ok {
		return p.failPermanently(ctx, job, fmt.Sprintf("no executor registered for action type %q", action.Type))
	}

	if err := p.execute(ctx, executor, action, payload.Trigger); err != nil {
		return p.fail(ctx, job, payload, err.Error())
	}

	return p.succeed(ctx, job, wf, payload)
}

// execute runs one action under the configured timeout, converting panics
// into errors so a misbehaving executor cannot take down the batch.
func (p *Processor) execute(ctx context.Context, executor Executor, action models.WorkflowAction, trigger models.RunTrigger) (err error) {
	execCtx, cancel := context.WithTimeout(ctx, p.opts.ExecutionTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in action executor", "action_type", action.Type, "error", r)
			err = fmt.Errorf("panic in executor %q: %v", action.Type, r)
		}
	}()

	return executor.Execute(execCtx, action, trigger)
}

// succeed completes the job and either chains the next action's job or marks
// the run finished when the last action is done.
func (p *Processor) succeed(ctx context.Context, job *models.Job, wf *models.Workflow, payload models.ExecutePayload) JobResult {
	if err := p.store.CompleteJob(ctx, job.ID, models.JobStatusSucceeded); err != nil {
		slog.Error("complete job", "job_id", job.ID, "error", err)
	}

	nextIndex := payload.ActionIndex + 1
	if wf == nil || nextIndex >= len(wf.Actions) {
		if err := p.store.UpdateRunStatus(ctx, job.RunID, models.RunStatusSucceeded); err != nil {
			slog.Error("mark run succeeded", "run_id", job.RunID, "error", err)
		}
		return JobResult{JobID: job.ID, RunID: job.RunID, Status: models.JobStatusSucceeded}
	}

	if err := p.chainNext(ctx, job, wf.Actions[nextIndex], payload, nextIndex); err != nil {
		slog.Error("chain next action job", "run_id", job.RunID, "error", err)
		msg := fmt.Sprintf("queue action %d: %v", nextIndex, err)
		if err := p.store.UpdateRunStatus(ctx, job.RunID, models.RunStatusFailed, store.RunWithErrorMessage(msg)); err != nil {
			slog.Error("mark run failed", "run_id", job.RunID, "error", err)
		}
		return JobResult{JobID: job.ID, RunID: job.RunID, Status: models.JobStatusSucceeded, Error: msg}
	}

	if err := p.store.UpdateRunStatus(ctx, job.RunID, models.RunStatusRunning); err != nil {
		slog.Error("mark run running", "run_id", job.RunID, "error", err)
	}
	return JobResult{JobID: job.ID, RunID: job.RunID, Status: models.JobStatusSucceeded}
}

func (p *Processor) chainNext(ctx context.Context, job *models.Job, next models.WorkflowAction, payload models.ExecutePayload, nextIndex int) error {
	now := p.now()

	payload.ActionIndex = nextIndex
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	runAfter := now
	if next.DelaySeconds > 0 {
		runAfter = now.Add(time.Duration(next.DelaySeconds) * time.Second)
	}

	return p.store.CreateJob(ctx, &models.Job{
		ID:             uuid.New(),
		OrganizationID: job.OrganizationID,
		RunID:          job.RunID,
		Type:           models.JobTypeExecuteWorkflow,
		Payload:        raw,
		Status:         models.JobStatusPending,
		Attempts:       1,
		RunAfter:       runAfter,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// fail completes the job as failed and, while attempts remain, queues a fresh
// retry job with exponential backoff. The failed job itself stays terminal;
// retries are new rows.
func (p *Processor) fail(ctx context.Context, job *models.Job, payload models.ExecutePayload, msg string) JobResult {
	if err := p.store.CompleteJob(ctx, job.ID, models.JobStatusFailed, store.JobWithErrorMessage(msg)); err != nil {
		slog.Error("complete job", "job_id", job.ID, "error", err)
	}

	if job.Attempts >= p.opts.MaxAttempts {
		if err := p.store.UpdateRunStatus(ctx, job.RunID, models.RunStatusFailed, store.RunWithErrorMessage(msg)); err != nil {
			slog.Error("mark run failed", "run_id", job.RunID, "error", err)
		}
		return JobResult{JobID: job.ID, RunID: job.RunID, Status: models.JobStatusFailed, Error: msg}
	}

	now := p.now()
	backoff := p.opts.BackoffBase << (job.Attempts - 1)

	retry := &models.Job{
		ID:             uuid.New(),
		OrganizationID: job.OrganizationID,
		RunID:          job.RunID,
		Type:           job.Type,
		Payload:        job.Payload,
		Status:         models.JobStatusPending,
		Attempts:       job.Attempts + 1,
		RunAfter:       now.Add(backoff),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.store.CreateJob(ctx, retry); err != nil {
		slog.Error("queue retry job", "run_id", job.RunID, "error", err)
		if err := p.store.UpdateRunStatus(ctx, job.RunID, models.RunStatusFailed, store.RunWithErrorMessage(msg)); err != nil {
			slog.Error("mark run failed", "run_id", job.RunID, "error", err)
		}
		return JobResult{JobID: job.ID, RunID: job.RunID, Status: models.JobStatusFailed, Error: msg}
	}

	return JobResult{JobID: job.ID, RunID: job.RunID, Status: models.JobStatusFailed, Error: msg, Retried: true}
}

// failPermanently is for unrecoverable conditions where retrying cannot help.
func (p *Processor) failPermanently(ctx context.Context, job *models.Job, msg string) JobResult {
	if err := p.store.CompleteJob(ctx, job.ID, models.JobStatusFailed, store.JobWithErrorMessage(msg)); err != nil {
		slog.Error("complete job", "job_id", job.ID, "error", err)
	}
	if err := p.store.UpdateRunStatus(ctx, job.RunID, models.RunStatusFailed, store.RunWithErrorMessage(msg)); err != nil {
		slog.Error("mark run failed", "run_id", job.RunID, "error", err)
	}
	return JobResult{JobID: job.ID, RunID: job.RunID, Status: models.JobStatusFailed, Error: msg}
}

package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/google/uuid"
)

// MatcherStore is the subset of the data layer the matcher needs.
type MatcherStore interface {
	ListActiveWorkflowsByTrigger(ctx context.Context, orgID uuid.UUID, eventType string) ([]*models.Workflow, error)
	CreateRun(ctx context.Context, run *models.AutomationRun) error
	CreateJob(ctx context.Context, job *models.Job) error
}

// Matcher finds active workflows triggered by an event type and manufactures
// one run plus one initial job per match.
type Matcher struct {
	store MatcherStore
	now   func() time.Time
}

func NewMatcher(store MatcherStore) *Matcher {
	return &Matcher{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// MatchResult is the outcome for one matched workflow. Err is set when run or
// job creation failed for that workflow alone.
type MatchResult struct {
	WorkflowID uuid.UUID
	RunID      uuid.UUID
	JobID      uuid.UUID
	Err        error
}

// Fire matches trigger.EventType against the organization's active workflows
// and creates a run and initial job for each. A failure for one workflow never
// blocks the others; partial results are returned alongside per-match errors.
func (m *Matcher) Fire(ctx context.Context, orgID uuid.UUID, trigger models.RunTrigger) ([]MatchResult, error) {
	workflows, err := m.store.ListActiveWorkflowsByTrigger(ctx, orgID, trigger.EventType)
	if err != nil {
		return nil, fmt.Errorf("match workflows: %w", err)
	}

	results := make([]MatchResult, 0, len(workflows))
	for _, wf := range workflows {
		runID, jobID, err := m.Trigger(ctx, wf, trigger)
		results = append(results, MatchResult{
			WorkflowID: wf.ID,
			RunID:      runID,
			JobID:      jobID,
			Err:        err,
		})
	}
	return results, nil
}

// Trigger creates one run and its initial job for a single workflow. The
// first action's delay pushes the job's run_after into the future; the run
// itself always starts pending.
func (m *Matcher) Trigger(ctx context.Context, wf *models.Workflow, trigger models.RunTrigger) (uuid.UUID, uuid.UUID, error) {
	now := m.now()

	meta, err := json.Marshal(trigger)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("marshal trigger meta: %w", err)
	}

	run := &models.AutomationRun{
		ID:             uuid.New(),
		OrganizationID: wf.OrganizationID,
		WorkflowID:     wf.ID,
		Status:         models.RunStatusPending,
		TriggerMeta:    meta,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.store.CreateRun(ctx, run); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("create run for workflow %s: %w", wf.ID, err)
	}

	payload, err := json.Marshal(models.ExecutePayload{
		WorkflowID:  wf.ID,
		RunID:       run.ID,
		ActionIndex: 0,
		Trigger:     trigger,
	})
	if err != nil {
		return run.ID, uuid.Nil, fmt.Errorf("marshal job payload: %w", err)
	}

	runAfter := now
	if len(wf.Actions) > 0 && wf.Actions[0].DelaySeconds > 0 {
		runAfter = now.Add(time.Duration(wf.Actions[0].DelaySeconds) * time.Second)
	}

	job := &models.Job{
		ID:             uuid.New(),
		OrganizationID: wf.OrganizationID,
		RunID:          run.ID,
		Type:           models.JobTypeExecuteWorkflow,
		Payload:        payload,
		Status:         models.JobStatusPending,
		Attempts:       1,
		RunAfter:       runAfter,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		return run.ID, uuid.Nil, fmt.Errorf("create job for run %s: %w", run.ID, err)
	}

	return run.ID, job.ID, nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Organizations ---

func (s *PostgresStore) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var o models.Organization
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, active, created_at, updated_at FROM organizations WHERE id = $1`, id,
	).Scan(&o.ID, &o.Name, &o.Slug, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &o, nil
}

func (s *PostgresStore) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var o models.Organization
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, active, created_at, updated_at FROM organizations WHERE slug = $1`, slug,
	).Scan(&o.ID, &o.Name, &o.Slug, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization by slug: %w", err)
	}
	return &o, nil
}

// --- API Keys ---

// GetAPIKeysByPrefix returns the non-revoked candidate set for a prefix.
// Revoked keys are excluded here so they can never re-validate.
func (s *PostgresStore) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, name, key_hash, key_prefix, created_by, last_used_at, revoked_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND revoked_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api keys by prefix: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, organization_id, name, key_hash, key_prefix, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.OrganizationID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedBy, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, orgID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, name, key_hash, key_prefix, created_by, last_used_at, revoked_at, created_at, updated_at
		 FROM api_keys WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

// RevokeAPIKey marks a key revoked. Revoking an already-revoked key keeps the
// original timestamp and is not an error.
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, orgID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET revoked_at = COALESCE(revoked_at, NOW()), updated_at = NOW()
		 WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OrganizationID, &k.Name, &k.KeyHash, &k.KeyPrefix,
			&k.CreatedBy, &k.LastUsedAt, &k.RevokedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// --- Event Logs ---

func (s *PostgresStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_logs (id, organization_id, event_type, payload, idempotency_key, source, api_key_id, unvalidated, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.OrganizationID, event.EventType, event.Payload,
		event.IdempotencyKey, event.Source, event.APIKeyID, event.Unvalidated, event.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("create event log: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEventLog(ctx context.Context, id uuid.UUID, orgID uuid.UUID) (*models.EventLog, error) {
	var e models.EventLog
	err := s.pool.QueryRow(ctx,
		`SELECT id, organization_id, event_type, payload, idempotency_key, source, api_key_id, unvalidated, created_at
		 FROM event_logs WHERE id = $1 AND organization_id = $2`, id, orgID,
	).Scan(&e.ID, &e.OrganizationID, &e.EventType, &e.Payload, &e.IdempotencyKey,
		&e.Source, &e.APIKeyID, &e.Unvalidated, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event log: %w", err)
	}
	return &e, nil
}

// --- Workflows ---

func (s *PostgresStore) CreateWorkflow(ctx context.Context, wf *models.Workflow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create workflow: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO workflows (id, organization_id, name, active, trigger_event, trigger_config, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		wf.ID, wf.OrganizationID, wf.Name, wf.Active, wf.TriggerEvent, wf.TriggerConfig,
		wf.CreatedBy, wf.CreatedAt, wf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}

	if err := insertActions(ctx, tx, wf); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, id uuid.UUID, orgID uuid.UUID) (*models.Workflow, error) {
	var wf models.Workflow
	err := s.pool.QueryRow(ctx,
		`SELECT id, organization_id, name, active, trigger_event, trigger_config, created_by, created_at, updated_at
		 FROM workflows WHERE id = $1 AND organization_id = $2`, id, orgID,
	).Scan(&wf.ID, &wf.OrganizationID, &wf.Name, &wf.Active, &wf.TriggerEvent,
		&wf.TriggerConfig, &wf.CreatedBy, &wf.CreatedAt, &wf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}

	if err := s.loadActions(ctx, []*models.Workflow{&wf}); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (s *PostgresStore) ListWorkflows(ctx context.Context, orgID uuid.UUID) ([]*models.Workflow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, name, active, trigger_event, trigger_config, created_by, created_at, updated_at
		 FROM workflows WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	wfs, err := scanWorkflows(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadActions(ctx, wfs); err != nil {
		return nil, err
	}
	return wfs, nil
}

func (s *PostgresStore) ListActiveWorkflowsByTrigger(ctx context.Context, orgID uuid.UUID, eventType string) ([]*models.Workflow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, name, active, trigger_event, trigger_config, created_by, created_at, updated_at
		 FROM workflows WHERE organization_id = $1 AND trigger_event = $2 AND active ORDER BY created_at`, orgID, eventType)
	if err != nil {
		return nil, fmt.Errorf("list active workflows by trigger: %w", err)
	}
	defer rows.Close()

	wfs, err := scanWorkflows(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadActions(ctx, wfs); err != nil {
		return nil, err
	}
	return wfs, nil
}

// UpdateWorkflow replaces the workflow row and its full action list in one
// transaction.
func (s *PostgresStore) UpdateWorkflow(ctx context.Context, wf *models.Workflow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update workflow: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE workflows SET name = $3, active = $4, trigger_event = $5, trigger_config = $6, updated_at = NOW()
		 WHERE id = $1 AND organization_id = $2`,
		wf.ID, wf.OrganizationID, wf.Name, wf.Active, wf.TriggerEvent, wf.TriggerConfig)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM workflow_actions WHERE workflow_id = $1`, wf.ID); err != nil {
		return fmt.Errorf("clear workflow actions: %w", err)
	}
	if err := insertActions(ctx, tx, wf); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) SetWorkflowActive(ctx context.Context, id uuid.UUID, orgID uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE workflows SET active = $3, updated_at = NOW() WHERE id = $1 AND organization_id = $2`,
		id, orgID, active)
	if err != nil {
		return fmt.Errorf("set workflow active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWorkflow removes a workflow; actions cascade at the schema level.
func (s *PostgresStore) DeleteWorkflow(ctx context.Context, id uuid.UUID, orgID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM workflows WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func insertActions(ctx context.Context, tx pgx.Tx, wf *models.Workflow) error {
	for i := range wf.Actions {
		a := &wf.Actions[i]
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		a.WorkflowID = wf.ID
		a.Position = i
		_, err := tx.Exec(ctx,
			`INSERT INTO workflow_actions (id, workflow_id, position, type, config, delay_seconds, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
			a.ID, a.WorkflowID, a.Position, a.Type, a.Config, a.DelaySeconds)
		if err != nil {
			return fmt.Errorf("insert workflow action: %w", err)
		}
	}
	return nil
}

func scanWorkflows(rows pgx.Rows) ([]*models.Workflow, error) {
	var wfs []*models.Workflow
	for rows.Next() {
		var wf models.Workflow
		if err := rows.Scan(&wf.ID, &wf.OrganizationID, &wf.Name, &wf.Active, &wf.TriggerEvent,
			&wf.TriggerConfig, &wf.CreatedBy, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		wfs = append(wfs, &wf)
	}
	return wfs, rows.Err()
}

func (s *PostgresStore) loadActions(ctx context.Context, wfs []*models.Workflow) error {
	if len(wfs) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(wfs))
	byID := make(map[uuid.UUID]*models.Workflow, len(wfs))
	for i, wf := range wfs {
		ids[i] = wf.ID
		byID[wf.ID] = wf
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, workflow_id, position, type, config, delay_seconds, created_at
		 FROM workflow_actions WHERE workflow_id = ANY($1) ORDER BY workflow_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load workflow actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.WorkflowAction
		if err := rows.Scan(&a.ID, &a.WorkflowID, &a.Position, &a.Type, &a.Config,
			&a.DelaySeconds, &a.CreatedAt); err != nil {
			return fmt.Errorf("scan workflow action: %w", err)
		}
		if wf, ok := byID[a.WorkflowID]; ok {
			wf.Actions = append(wf.Actions, a)
		}
	}
	return rows.Err()
}

// --- Automation Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.AutomationRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO automation_runs (id, organization_id, workflow_id, status, trigger_meta, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.OrganizationID, run.WorkflowID, run.Status, run.TriggerMeta,
		run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID, orgID uuid.UUID) (*models.AutomationRun, error) {
	var r models.AutomationRun
	err := s.pool.QueryRow(ctx,
		`SELECT id, organization_id, workflow_id, status, trigger_meta, error_message, created_at, updated_at
		 FROM automation_runs WHERE id = $1 AND organization_id = $2`, id, orgID,
	).Scan(&r.ID, &r.OrganizationID, &r.WorkflowID, &r.Status, &r.TriggerMeta,
		&r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListRunsByWorkflow(ctx context.Context, workflowID uuid.UUID, orgID uuid.UUID, limit int) ([]*models.AutomationRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, workflow_id, status, trigger_meta, error_message, created_at, updated_at
		 FROM automation_runs WHERE workflow_id = $1 AND organization_id = $2
		 ORDER BY created_at DESC LIMIT $3`, workflowID, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs by workflow: %w", err)
	}
	defer rows.Close()

	var runs []*models.AutomationRun
	for rows.Next() {
		var r models.AutomationRun
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.WorkflowID, &r.Status, &r.TriggerMeta,
			&r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, id uuid.UUID, status string, opts ...RunUpdateOption) error {
	params := &runUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	var err error
	if params.ErrorMessage != nil {
		_, err = s.pool.Exec(ctx,
			`UPDATE automation_runs SET status = $2, error_message = $3, updated_at = NOW() WHERE id = $1`,
			id, status, *params.ErrorMessage)
	} else {
		_, err = s.pool.Exec(ctx,
			`UPDATE automation_runs SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	}
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, organization_id, run_id, type, payload, status, attempts, run_after, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.OrganizationID, job.RunID, job.Type, job.Payload, job.Status,
		job.Attempts, job.RunAfter, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// ClaimPendingJobs atomically transitions up to limit due pending jobs to
// processing, oldest first. Concurrent claimers never receive the same job:
// the subselect locks candidate rows with SKIP LOCKED and the UPDATE is the
// only path from pending to processing.
func (s *PostgresStore) ClaimPendingJobs(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`UPDATE jobs SET status = 'processing', started_at = NOW(), updated_at = NOW()
		 WHERE id IN (
		     SELECT id FROM jobs
		     WHERE organization_id = $1 AND status = 'pending' AND run_after <= NOW()
		     ORDER BY created_at
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, organization_id, run_id, type, payload, status, attempts, error_message, run_after, started_at, completed_at, created_at, updated_at`,
		orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// CompleteJob moves a processing job to a terminal status. Jobs that are not
// in processing are left untouched; terminal jobs never resurrect.
func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	if status != models.JobStatusSucceeded && status != models.JobStatusFailed {
		return fmt.Errorf("complete job: %q is not a terminal status", status)
	}

	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	var tag pgconn.CommandTag
	var err error
	if params.ErrorMessage != nil {
		tag, err = s.pool.Exec(ctx,
			`UPDATE jobs SET status = $2, error_message = $3, completed_at = NOW(), updated_at = NOW()
			 WHERE id = $1 AND status = 'processing'`, id, status, *params.ErrorMessage)
	} else {
		tag, err = s.pool.Exec(ctx,
			`UPDATE jobs SET status = $2, completed_at = NOW(), updated_at = NOW()
			 WHERE id = $1 AND status = 'processing'`, id, status)
	}
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListJobsByRun(ctx context.Context, runID uuid.UUID, orgID uuid.UUID) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, run_id, type, payload, status, attempts, error_message, run_after, started_at, completed_at, created_at, updated_at
		 FROM jobs WHERE run_id = $1 AND organization_id = $2 ORDER BY created_at`, runID, orgID)
	if err != nil {
		return nil, fmt.Errorf("list jobs by run: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (s *PostgresStore) ListOrganizationsWithDueJobs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT organization_id FROM jobs WHERE status = 'pending' AND run_after <= NOW()`)
	if err != nil {
		return nil, fmt.Errorf("list organizations with due jobs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan organization id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanJobs(rows pgx.Rows) ([]*models.Job, error) {
	var jobs []*models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.OrganizationID, &j.RunID, &j.Type, &j.Payload, &j.Status,
			&j.Attempts, &j.ErrorMessage, &j.RunAfter, &j.StartedAt, &j.CompletedAt,
			&j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

// --- Audit Logs ---

func (s *PostgresStore) AppendAuditLog(ctx context.Context, entry *models.AuditLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.OrganizationID, entry.UserID, entry.Action, entry.ResourceType,
		entry.ResourceID, entry.Metadata, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditLogs(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE organization_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, user_id, action, resource_type, resource_id, metadata, created_at
		 FROM audit_logs WHERE organization_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.UserID, &e.Action, &e.ResourceType,
			&e.ResourceID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan audit log: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}

// isUniqueViolation checks if a pgx error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

package store_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/flowhook/flowhook/internal/store"
	"github.com/flowhook/flowhook/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("flowhook_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// defaultOrgID returns the UUID of the seeded default organization.
func defaultOrgID(t *testing.T, s store.Store) uuid.UUID {
	t.Helper()
	org, err := s.GetOrganizationBySlug(context.Background(), "default")
	require.NoError(t, err)
	return org.ID
}

func newWorkflow(orgID uuid.UUID, trigger string, active bool) *models.Workflow {
	now := time.Now().UTC()
	return &models.Workflow{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           "wf-" + trigger,
		Active:         active,
		TriggerEvent:   trigger,
		CreatedAt:      now,
		UpdatedAt:      now,
		Actions: []models.WorkflowAction{
			{Type: "log.message", Config: json.RawMessage(`{"message":"hi"}`)},
		},
	}
}

func newRun(t *testing.T, s store.Store, orgID uuid.UUID, wfID uuid.UUID) *models.AutomationRun {
	t.Helper()
	now := time.Now().UTC()
	run := &models.AutomationRun{
		ID:             uuid.New(),
		OrganizationID: orgID,
		WorkflowID:     wfID,
		Status:         models.RunStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.CreateRun(context.Background(), run))
	return run
}

func newJob(orgID, runID uuid.UUID, runAfter time.Time) *models.Job {
	now := time.Now().UTC()
	return &models.Job{
		ID:             uuid.New(),
		OrganizationID: orgID,
		RunID:          runID,
		Type:           models.JobTypeExecuteWorkflow,
		Payload:        json.RawMessage(`{}`),
		Status:         models.JobStatusPending,
		RunAfter:       runAfter,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// --- Organizations ---

func TestGetOrganizationBySlug(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	org, err := s.GetOrganizationBySlug(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "Default", org.Name)
	assert.True(t, org.Active)
	assert.NotEqual(t, uuid.Nil, org.ID)

	_, err = s.GetOrganizationBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- API Keys ---

func TestAPIKey_CreateGetRevoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	orgID := defaultOrgID(t, s)

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           "test-key",
		KeyHash:        "bcrypt-hash-here",
		KeyPrefix:      "fh_0123abcd",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	keys, err := s.GetAPIKeysByPrefix(ctx, "fh_0123abcd")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)

	// Revoke removes the key from the candidate set.
	require.NoError(t, s.RevokeAPIKey(ctx, key.ID, orgID))
	keys, err = s.GetAPIKeysByPrefix(ctx, "fh_0123abcd")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Second revoke is a no-op, not an error.
	require.NoError(t, s.RevokeAPIKey(ctx, key.ID, orgID))

	// Revoked keys still show in the admin list, flagged.
	all, err := s.ListAPIKeys(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotNil(t, all[0].RevokedAt)
}

func TestAPIKey_RevokeUnknown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.RevokeAPIKey(context.Background(), uuid.New(), defaultOrgID(t, s))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Event Logs ---

func TestEventLog_IdempotencyKeyPerOrganization(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	orgID := defaultOrgID(t, s)

	key := "order-42"
	now := time.Now().UTC()
	first := &models.EventLog{
		ID:             uuid.New(),
		OrganizationID: orgID,
		EventType:      "project.created",
		Payload:        json.RawMessage(`{"projectId":"p1"}`),
		IdempotencyKey: &key,
		CreatedAt:      now,
	}
	require.NoError(t, s.CreateEventLog(ctx, first))

	dup := &models.EventLog{
		ID:             uuid.New(),
		OrganizationID: orgID,
		EventType:      "project.created",
		Payload:        json.RawMessage(`{"projectId":"p1"}`),
		IdempotencyKey: &key,
		CreatedAt:      now,
	}
	err := s.CreateEventLog(ctx, dup)
	assert.ErrorIs(t, err, store.ErrDuplicateIdempotencyKey)

	// Events without a key never collide.
	for i := 0; i < 2; i++ {
		e := &models.EventLog{
			ID:             uuid.New(),
			OrganizationID: orgID,
			EventType:      "project.created",
			Payload:        json.RawMessage(`{}`),
			CreatedAt:      now,
		}
		require.NoError(t, s.CreateEventLog(ctx, e))
	}
}

// --- Workflows ---

func TestWorkflow_CreateListByTrigger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	orgID := defaultOrgID(t, s)

	active1 := newWorkflow(orgID, "user.registered", true)
	active2 := newWorkflow(orgID, "user.registered", true)
	inactive := newWorkflow(orgID, "user.registered", false)
	other := newWorkflow(orgID, "project.created", true)
	for _, wf := range []*models.Workflow{active1, active2, inactive, other} {
		require.NoError(t, s.CreateWorkflow(ctx, wf))
	}

	matches, err := s.ListActiveWorkflowsByTrigger(ctx, orgID, "user.registered")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, wf := range matches {
		assert.True(t, wf.Active)
		assert.Equal(t, "user.registered", wf.TriggerEvent)
		require.Len(t, wf.Actions, 1)
		assert.Equal(t, "log.message", wf.Actions[0].Type)
	}
}

func TestWorkflow_DeleteCascadesActions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	orgID := defaultOrgID(t, s)

	wf := newWorkflow(orgID, "client.created", true)
	require.NoError(t, s.CreateWorkflow(ctx, wf))
	require.NoError(t, s.DeleteWorkflow(ctx, wf.ID, orgID))

	var count int
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workflow_actions WHERE workflow_id = $1`, wf.ID).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = s.GetWorkflow(ctx, wf.ID, orgID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWorkflow_UpdateReplacesActions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	orgID := defaultOrgID(t, s)

	wf := newWorkflow(orgID, "invoice.paid", true)
	require.NoError(t, s.CreateWorkflow(ctx, wf))

	wf.Name = "renamed"
	wf.Actions = []models.WorkflowAction{
		{Type: "http.request", Config: json.RawMessage(`{"url":"https://example.com"}`)},
		{Type: "log.message", DelaySeconds: 60},
	}
	require.NoError(t, s.UpdateWorkflow(ctx, wf))

	got, err := s.GetWorkflow(ctx, wf.ID, orgID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	require.Len(t, got.Actions, 2)
	assert.Equal(t, "http.request", got.Actions[0].Type)
	assert.Equal(t, 0, got.Actions[0].Position)
	assert.Equal(t, 1, got.Actions[1].Position)
}

// --- Jobs ---

func TestJobs_ClaimIsExclusiveAndOldestFirst(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	orgID := defaultOrgID(t, s)

	wf := newWorkflow(orgID, "form.submitted", true)
	require.NoError(t, s.CreateWorkflow(ctx, wf))
	run := newRun(t, s, orgID, wf.ID)

	due := time.Now().UTC().Add(-time.Minute)
	var created []*models.Job
	for i := 0; i < 3; i++ {
		j := newJob(orgID, run.ID, due)
		j.CreatedAt = due.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.CreateJob(ctx, j))
		created = append(created, j)
	}
	// Not yet due; must not be claimed.
	future := newJob(orgID, run.ID, time.Now().UTC().Add(time.Hour))
	require.NoError(t, s.CreateJob(ctx, future))

	claimed, err := s.ClaimPendingJobs(ctx, orgID, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, created[0].ID, claimed[0].ID)
	assert.Equal(t, created[1].ID, claimed[1].ID)
	for _, j := range claimed {
		assert.Equal(t, models.JobStatusProcessing, j.Status)
		assert.NotNil(t, j.StartedAt)
	}

	// A second claim sees only the remaining due job.
	rest, err := s.ClaimPendingJobs(ctx, orgID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, created[2].ID, rest[0].ID)
}

func TestJobs_CompleteOnlyFromProcessing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	orgID := defaultOrgID(t, s)

	wf := newWorkflow(orgID, "content.published", true)
	require.NoError(t, s.CreateWorkflow(ctx, wf))
	run := newRun(t, s, orgID, wf.ID)

	job := newJob(orgID, run.ID, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, s.CreateJob(ctx, job))

	// Pending jobs cannot be completed directly.
	err := s.CompleteJob(ctx, job.ID, models.JobStatusSucceeded)
	assert.ErrorIs(t, err, store.ErrNotFound)

	claimed, err := s.ClaimPendingJobs(ctx, orgID, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, s.CompleteJob(ctx, job.ID, models.JobStatusFailed,
		store.JobWithErrorMessage("action exploded")))

	jobs, err := s.ListJobsByRun(ctx, run.ID, orgID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusFailed, jobs[0].Status)
	require.NotNil(t, jobs[0].ErrorMessage)
	assert.Equal(t, "action exploded", *jobs[0].ErrorMessage)
	assert.NotNil(t, jobs[0].CompletedAt)

	// Terminal jobs never resurrect.
	err = s.CompleteJob(ctx, job.ID, models.JobStatusSucceeded)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJobs_ListOrganizationsWithDueJobs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	orgID := defaultOrgID(t, s)

	ids, err := s.ListOrganizationsWithDueJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	wf := newWorkflow(orgID, "project.created", true)
	require.NoError(t, s.CreateWorkflow(ctx, wf))
	run := newRun(t, s, orgID, wf.ID)
	require.NoError(t, s.CreateJob(ctx, newJob(orgID, run.ID, time.Now().UTC().Add(-time.Second))))

	ids, err = s.ListOrganizationsWithDueJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{orgID}, ids)
}

// --- Audit Logs ---

func TestAuditLogs_AppendAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	orgID := defaultOrgID(t, s)

	for i := 0; i < 3; i++ {
		entry := &models.AuditLog{
			ID:             uuid.New(),
			OrganizationID: orgID,
			Action:         models.AuditEventIngested,
			ResourceType:   "event_log",
			ResourceID:     uuid.NewString(),
			Metadata:       json.RawMessage(`{"event_type":"project.created"}`),
			CreatedAt:      time.Now().UTC(),
		}
		require.NoError(t, s.AppendAuditLog(ctx, entry))
	}

	entries, total, err := s.ListAuditLogs(ctx, orgID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, entries, 2)
}

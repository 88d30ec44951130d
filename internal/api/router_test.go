package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flowhook/flowhook/internal/api"
	"github.com/flowhook/flowhook/internal/api/handler"
	mw "github.com/flowhook/flowhook/internal/api/middleware"
	"github.com/flowhook/flowhook/internal/audit"
	"github.com/flowhook/flowhook/internal/automation"
	"github.com/flowhook/flowhook/internal/catalog"
	"github.com/flowhook/flowhook/internal/ingest"
	"github.com/flowhook/flowhook/internal/session"
	"github.com/flowhook/flowhook/internal/store"
	"github.com/flowhook/flowhook/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memStore is an in-memory store.Store for wiring the full router without
// Postgres. Only the behavior the pipeline relies on is modeled.
type memStore struct {
	mu        sync.Mutex
	keys      []*models.APIKey
	events    map[uuid.UUID]*models.EventLog
	idemKeys  map[string]bool
	workflows map[uuid.UUID]*models.Workflow
	runs      map[uuid.UUID]*models.AutomationRun
	jobs      map[uuid.UUID]*models.Job
	auditLogs []*models.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		events:    make(map[uuid.UUID]*models.EventLog),
		idemKeys:  make(map[string]bool),
		workflows: make(map[uuid.UUID]*models.Workflow),
		runs:      make(map[uuid.UUID]*models.AutomationRun),
		jobs:      make(map[uuid.UUID]*models.Job),
	}
}

func (m *memStore) Ping(_ context.Context) error { return nil }

func (m *memStore) GetOrganization(_ context.Context, _ uuid.UUID) (*models.Organization, error) {
	return nil, store.ErrNotFound
}
func (m *memStore) GetOrganizationBySlug(_ context.Context, _ string) (*models.Organization, error) {
	return nil, store.ErrNotFound
}

func (m *memStore) GetAPIKeysByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.APIKey
	for _, k := range m.keys {
		if k.KeyPrefix == prefix && !k.Revoked() {
			out = append(out, k)
		}
	}
	return out, nil
}
func (m *memStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (m *memStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}
func (m *memStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.APIKey(nil), m.keys...), nil
}
func (m *memStore) RevokeAPIKey(_ context.Context, id uuid.UUID, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.ID == id {
			if k.RevokedAt == nil {
				now := time.Now()
				k.RevokedAt = &now
			}
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) CreateEventLog(_ context.Context, event *models.EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.IdempotencyKey != nil {
		idem := event.OrganizationID.String() + "/" + *event.IdempotencyKey
		if m.idemKeys[idem] {
			return store.ErrDuplicateIdempotencyKey
		}
		m.idemKeys[idem] = true
	}
	m.events[event.ID] = event
	return nil
}
func (m *memStore) GetEventLog(_ context.Context, id uuid.UUID, _ uuid.UUID) (*models.EventLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		return e, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateWorkflow(_ context.Context, wf *models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[wf.ID] = wf
	return nil
}
func (m *memStore) GetWorkflow(_ context.Context, id uuid.UUID, orgID uuid.UUID) (*models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wf, ok := m.workflows[id]; ok && wf.OrganizationID == orgID {
		return wf, nil
	}
	return nil, store.ErrNotFound
}
func (m *memStore) ListWorkflows(_ context.Context, orgID uuid.UUID) ([]*models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Workflow
	for _, wf := range m.workflows {
		if wf.OrganizationID == orgID {
			out = append(out, wf)
		}
	}
	return out, nil
}
func (m *memStore) ListActiveWorkflowsByTrigger(_ context.Context, orgID uuid.UUID, eventType string) ([]*models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Workflow
	for _, wf := range m.workflows {
		if wf.OrganizationID == orgID && wf.Active && wf.TriggerEvent == eventType {
			out = append(out, wf)
		}
	}
	return out, nil
}
func (m *memStore) UpdateWorkflow(_ context.Context, wf *models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[wf.ID]; !ok {
		return store.ErrNotFound
	}
	m.workflows[wf.ID] = wf
	return nil
}
func (m *memStore) SetWorkflowActive(_ context.Context, id uuid.UUID, _ uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[id]
	if !ok {
		return store.ErrNotFound
	}
	wf.Active = active
	return nil
}
func (m *memStore) DeleteWorkflow(_ context.Context, id uuid.UUID, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.workflows, id)
	return nil
}

func (m *memStore) CreateRun(_ context.Context, run *models.AutomationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}
func (m *memStore) GetRun(_ context.Context, id uuid.UUID, _ uuid.UUID) (*models.AutomationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[id]; ok {
		return run, nil
	}
	return nil, store.ErrNotFound
}
func (m *memStore) ListRunsByWorkflow(_ context.Context, workflowID uuid.UUID, _ uuid.UUID, _ int) ([]*models.AutomationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AutomationRun
	for _, run := range m.runs {
		if run.WorkflowID == workflowID {
			out = append(out, run)
		}
	}
	return out, nil
}
func (m *memStore) UpdateRunStatus(_ context.Context, id uuid.UUID, status string, _ ...store.RunUpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	run.Status = status
	return nil
}

func (m *memStore) CreateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}
func (m *memStore) ClaimPendingJobs(_ context.Context, orgID uuid.UUID, limit int) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []*models.Job
	for _, job := range m.jobs {
		if len(out) >= limit {
			break
		}
		if job.OrganizationID == orgID && job.Status == models.JobStatusPending && !job.RunAfter.After(now) {
			job.Status = models.JobStatusProcessing
			out = append(out, job)
		}
	}
	return out, nil
}
func (m *memStore) CompleteJob(_ context.Context, id uuid.UUID, status string, _ ...store.JobUpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != models.JobStatusProcessing {
		return store.ErrNotFound
	}
	job.Status = status
	return nil
}
func (m *memStore) ListJobsByRun(_ context.Context, runID uuid.UUID, _ uuid.UUID) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, job := range m.jobs {
		if job.RunID == runID {
			out = append(out, job)
		}
	}
	return out, nil
}
func (m *memStore) ListOrganizationsWithDueJobs(_ context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

func (m *memStore) AppendAuditLog(_ context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditLogs = append(m.auditLogs, entry)
	return nil
}
func (m *memStore) ListAuditLogs(_ context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditLog
	for _, e := range m.auditLogs {
		if e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

// fixedCounter is an in-process stand-in for the Redis counter.
type fixedCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *fixedCounter) Ping(_ context.Context) error { return nil }
func (c *fixedCounter) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int64)
	}
	c.counts[key]++
	return c.counts[key], nil
}

type env struct {
	router http.Handler
	store  *memStore
	orgID  uuid.UUID
	secret string
	tokens *session.TokenService
}

func newEnv(t *testing.T, requestsPerWindow int) *env {
	t.Helper()

	st := newMemStore()
	orgID := uuid.New()

	secret := "fh_9f8e7d6c5b4a39281706f5e4d3c2b1a0"
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, st.CreateAPIKey(context.Background(), &models.APIKey{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           "test key",
		KeyHash:        string(hash),
		KeyPrefix:      secret[:mw.KeyPrefixLen],
	}))

	auditor := audit.NewLogger(st)
	matcher := automation.NewMatcher(st)
	ingestSvc := ingest.NewService(st, catalog.Default(), matcher, auditor)
	processor := automation.NewProcessor(st,
		automation.NewExecutorRegistry(automation.DefaultExecutors()...),
		automation.Options{MaxAttempts: 3, ExecutionTimeout: time.Second, BackoffBase: time.Second})
	tokens := session.NewTokenService("router-test-secret", time.Hour)

	deps := api.Dependencies{
		Auth:      mw.NewAuth(st),
		Session:   mw.NewSession(tokens),
		RateLimit: mw.NewRateLimit(&fixedCounter{}, requestsPerWindow, time.Minute),

		HealthHandler: handler.NewHealthHandler(st, &fixedCounter{}),

		IngestHandler: handler.NewIngestHandler(ingestSvc),

		CatalogListHandler: handler.NewCatalogListHandler(catalog.Default()),
		CatalogGetHandler:  handler.NewCatalogGetHandler(catalog.Default()),

		CreateWorkflowHandler:    handler.NewCreateWorkflowHandler(st, auditor),
		ListWorkflowsHandler:     handler.NewListWorkflowsHandler(st),
		GetWorkflowHandler:       handler.NewGetWorkflowHandler(st),
		UpdateWorkflowHandler:    handler.NewUpdateWorkflowHandler(st, auditor),
		SetWorkflowActiveHandler: handler.NewSetWorkflowActiveHandler(st, auditor),
		DeleteWorkflowHandler:    handler.NewDeleteWorkflowHandler(st, auditor),
		TriggerWorkflowHandler:   handler.NewTriggerWorkflowHandler(st, matcher, auditor),

		ListRunsHandler:    handler.NewListRunsHandler(st),
		GetRunHandler:      handler.NewGetRunHandler(st),
		ListRunJobsHandler: handler.NewListRunJobsHandler(st),

		CreateKeyHandler: handler.NewCreateKeyHandler(st, auditor),
		ListKeysHandler:  handler.NewListKeysHandler(st),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(st, auditor),

		ProcessJobsHandler: handler.NewProcessJobsHandler(processor, 25),

		ListAuditLogsHandler: handler.NewListAuditLogsHandler(st),
	}

	return &env{
		router: api.NewRouter(deps),
		store:  st,
		orgID:  orgID,
		secret: secret,
		tokens: tokens,
	}
}

func (e *env) addWorkflow(t *testing.T, triggerEvent string) *models.Workflow {
	t.Helper()
	wf := &models.Workflow{
		ID:             uuid.New(),
		OrganizationID: e.orgID,
		Name:           "on " + triggerEvent,
		Active:         true,
		TriggerEvent:   triggerEvent,
		Actions: []models.WorkflowAction{
			{ID: uuid.New(), Position: 0, Type: "log.message", Config: json.RawMessage(`{"message":"hello"}`)},
		},
	}
	require.NoError(t, e.store.CreateWorkflow(context.Background(), wf))
	return wf
}

func (e *env) ingestRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer "+e.secret)
	return r
}

func (e *env) adminRequest(t *testing.T, method, path, body, role string) *http.Request {
	t.Helper()
	token, err := e.tokens.Issue(uuid.New(), e.orgID, role)
	require.NoError(t, err)
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func TestEndToEndIngestAndProcess(t *testing.T) {
	e := newEnv(t, 100)
	e.addWorkflow(t, "project.created")

	// Ingest a catalog-known event that matches one active workflow.
	w := httptest.NewRecorder()
	ownerID := uuid.New()
	e.router.ServeHTTP(w, e.ingestRequest(
		`{"eventType":"project.created","payload":{"projectId":"p1","name":"Demo","ownerId":"`+ownerID.String()+`"}}`))

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			EventID   uuid.UUID   `json:"eventId"`
			Validated bool        `json:"validated"`
			Triggered int         `json:"triggered"`
			RunIDs    []uuid.UUID `json:"runIds"`
			JobIDs    []uuid.UUID `json:"jobIds"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Validated)
	assert.Equal(t, 1, resp.Data.Triggered)
	require.Len(t, resp.Data.RunIDs, 1)
	require.Len(t, resp.Data.JobIDs, 1)

	event, err := e.store.GetEventLog(context.Background(), resp.Data.EventID, e.orgID)
	require.NoError(t, err)
	assert.False(t, event.Unvalidated)

	// Process the queued job as an admin; the log action succeeds and the
	// run reaches its terminal state.
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, e.adminRequest(t, http.MethodPost, "/api/v1/jobs/process", "", "admin"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	run, err := e.store.GetRun(context.Background(), resp.Data.RunIDs[0], e.orgID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, run.Status)

	jobs, err := e.store.ListJobsByRun(context.Background(), run.ID, e.orgID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusSucceeded, jobs[0].Status)
}

func TestEndToEndDuplicateIdempotencyKey(t *testing.T) {
	e := newEnv(t, 100)
	body := `{"eventType":"custom.sync","payload":{"n":1},"idempotencyKey":"evt-42"}`

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, e.ingestRequest(body))
	require.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, e.ingestRequest(body))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestEndToEndRejectsWithoutCredential(t *testing.T) {
	e := newEnv(t, 100)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/events",
		strings.NewReader(`{"eventType":"custom.x","payload":{}}`))
	e.router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEndToEndRateLimit(t *testing.T) {
	e := newEnv(t, 2)

	for range 2 {
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, e.ingestRequest(`{"eventType":"custom.x","payload":{}}`))
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, e.ingestRequest(`{"eventType":"custom.x","payload":{}}`))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestEndToEndRBACOnAdminSurface(t *testing.T) {
	e := newEnv(t, 100)
	body := `{"name":"wf","trigger_event":"custom.x","actions":[{"type":"log.message"}]}`

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, e.adminRequest(t, http.MethodPost, "/api/v1/workflows", body, "viewer"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, e.adminRequest(t, http.MethodPost, "/api/v1/workflows", body, "admin"))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestEndToEndHealthAndCatalogArePublic(t *testing.T) {
	e := newEnv(t, 100)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/project.created", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

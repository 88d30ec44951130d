package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/flowhook/flowhook/internal/automation"
	"github.com/flowhook/flowhook/internal/catalog"
	"github.com/flowhook/flowhook/internal/ingest"
	"github.com/flowhook/flowhook/internal/store"
	"github.com/flowhook/flowhook/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	events []*models.EventLog
	err    error
}

func (m *mockStore) CreateEventLog(_ context.Context, event *models.EventLog) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

type mockMatcher struct {
	results []automation.MatchResult
	err     error
	fired   []models.RunTrigger
}

func (m *mockMatcher) Fire(_ context.Context, _ uuid.UUID, trigger models.RunTrigger) ([]automation.MatchResult, error) {
	m.fired = append(m.fired, trigger)
	return m.results, m.err
}

type mockAuditor struct {
	actions []string
}

func (m *mockAuditor) Record(_ uuid.UUID, _ *uuid.UUID, action, _, _ string, _ any) {
	m.actions = append(m.actions, action)
}

func newService(ms *mockStore, matcher *mockMatcher, auditor *mockAuditor) *ingest.Service {
	return ingest.NewService(ms, catalog.Default(), matcher, auditor)
}

func TestIngestAcceptsKnownEvent(t *testing.T) {
	ms := &mockStore{}
	matcher := &mockMatcher{}
	auditor := &mockAuditor{}
	svc := newService(ms, matcher, auditor)

	orgID := uuid.New()
	res, err := svc.Ingest(context.Background(), orgID, ingest.Request{
		EventType: "invoice.paid",
		Payload:   json.RawMessage(`{"invoiceId":"inv_1001","amount":250.0,"currency":"USD"}`),
		Source:    "billing",
	})
	require.NoError(t, err)

	assert.True(t, res.Validated)
	assert.Zero(t, res.MatchedWorkflows)
	require.Len(t, ms.events, 1)
	assert.Equal(t, orgID, ms.events[0].OrganizationID)
	assert.False(t, ms.events[0].Unvalidated)
	assert.Nil(t, ms.events[0].IdempotencyKey)

	require.Len(t, matcher.fired, 1)
	assert.Equal(t, "invoice.paid", matcher.fired[0].EventType)
	require.NotNil(t, matcher.fired[0].EventID)
	assert.Equal(t, res.Event.ID, *matcher.fired[0].EventID)

	assert.Equal(t, []string{models.AuditEventIngested}, auditor.actions)
}

func TestIngestUnknownTypePassesThroughFlagged(t *testing.T) {
	ms := &mockStore{}
	svc := newService(ms, &mockMatcher{}, &mockAuditor{})

	res, err := svc.Ingest(context.Background(), uuid.New(), ingest.Request{
		EventType: "custom.thing_happened",
		Payload:   json.RawMessage(`{"anything":"goes"}`),
	})
	require.NoError(t, err)

	assert.False(t, res.Validated)
	require.Len(t, ms.events, 1)
	assert.True(t, ms.events[0].Unvalidated)
	assert.JSONEq(t, `{"anything":"goes"}`, string(ms.events[0].Payload))
}

func TestIngestKnownTypeSchemaRejection(t *testing.T) {
	ms := &mockStore{}
	svc := newService(ms, &mockMatcher{}, &mockAuditor{})

	_, err := svc.Ingest(context.Background(), uuid.New(), ingest.Request{
		EventType: "invoice.paid",
		Payload:   json.RawMessage(`{"amount":"not a number"}`),
	})

	var verr *ingest.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "invoice.paid", verr.EventType)
	assert.NotEmpty(t, verr.Fields)

	// A rejected event is never persisted and never matched.
	assert.Empty(t, ms.events)
}

func TestIngestStructuralChecks(t *testing.T) {
	svc := newService(&mockStore{}, &mockMatcher{}, &mockAuditor{})
	ctx := context.Background()
	orgID := uuid.New()

	_, err := svc.Ingest(ctx, orgID, ingest.Request{EventType: "  ", Payload: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ingest.ErrEmptyEventType)

	_, err = svc.Ingest(ctx, orgID, ingest.Request{
		EventType: strings.Repeat("x", 101),
		Payload:   json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, ingest.ErrEventTypeTooLong)

	_, err = svc.Ingest(ctx, orgID, ingest.Request{
		EventType: "custom.big",
		Payload:   json.RawMessage(`{"pad":"` + strings.Repeat("a", ingest.MaxPayloadBytes) + `"}`),
	})
	assert.ErrorIs(t, err, ingest.ErrPayloadTooLarge)
}

func TestIngestDuplicateIdempotencyKey(t *testing.T) {
	ms := &mockStore{err: store.ErrDuplicateIdempotencyKey}
	matcher := &mockMatcher{}
	svc := newService(ms, matcher, &mockAuditor{})

	_, err := svc.Ingest(context.Background(), uuid.New(), ingest.Request{
		EventType:      "custom.replay",
		Payload:        json.RawMessage(`{}`),
		IdempotencyKey: "evt-123",
	})
	assert.ErrorIs(t, err, store.ErrDuplicateIdempotencyKey)
	assert.Empty(t, matcher.fired)
}

func TestIngestReportsMatchedRuns(t *testing.T) {
	match := automation.MatchResult{WorkflowID: uuid.New(), RunID: uuid.New(), JobID: uuid.New()}
	failed := automation.MatchResult{WorkflowID: uuid.New(), Err: errors.New("insert failed")}

	svc := newService(&mockStore{}, &mockMatcher{results: []automation.MatchResult{match, failed}}, &mockAuditor{})
	res, err := svc.Ingest(context.Background(), uuid.New(), ingest.Request{
		EventType: "custom.deploy",
		Payload:   json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	// The failed workflow is dropped from the report, not the pipeline.
	assert.Equal(t, 1, res.MatchedWorkflows)
	require.Len(t, res.Runs, 1)
	assert.Equal(t, match.RunID, res.Runs[0].RunID)
	assert.Equal(t, match.JobID, res.Runs[0].JobID)
}

func TestIngestMatcherFailureDoesNotRejectEvent(t *testing.T) {
	ms := &mockStore{}
	svc := newService(ms, &mockMatcher{err: errors.New("db down")}, &mockAuditor{})

	res, err := svc.Ingest(context.Background(), uuid.New(), ingest.Request{
		EventType: "custom.deploy",
		Payload:   json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Zero(t, res.MatchedWorkflows)
	require.Len(t, ms.events, 1)
}

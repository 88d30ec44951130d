// Package automation matches ingested events to workflows, manufactures runs
// and jobs, and drives job execution through the action-executor contract.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/flowhook/flowhook/pkg/models"
)

// Executor runs one configured workflow action. Business-specific actions
// (send email, create task, post to an ad platform) live behind this contract;
// the pipeline only schedules and invokes them.
type Executor interface {
	Type() string
	Execute(ctx context.Context, action models.WorkflowAction, trigger models.RunTrigger) error
}

// ExecutorRegistry resolves an action type to its executor.
type ExecutorRegistry struct {
	byType map[string]Executor
}

func NewExecutorRegistry(executors ...Executor) *ExecutorRegistry {
	byType := make(map[string]Executor, len(executors))
	for _, e := range executors {
		byType[e.Type()] = e
	}
	return &ExecutorRegistry{byType: byType}
}

func (r *ExecutorRegistry) Get(actionType string) (Executor, bool) {
	e, ok := r.byType[actionType]
	return e, ok
}

// DefaultExecutors returns the executors shipped with the pipeline itself.
// Deployments register their business actions on top of these.
func DefaultExecutors() []Executor {
	return []Executor{
		&LogExecutor{},
		NewHTTPExecutor(&http.Client{Timeout: 30 * time.Second}),
	}
}

// LogExecutor writes a structured log line. Useful as a workflow smoke test.
type LogExecutor struct{}

func (e *LogExecutor) Type() string { return "log.message" }

func (e *LogExecutor) Execute(_ context.Context, action models.WorkflowAction, trigger models.RunTrigger) error {
	var cfg struct {
		Message string `json:"message"`
	}
	if len(action.Config) > 0 {
		if err := json.Unmarshal(action.Config, &cfg); err != nil {
			return fmt.Errorf("parse log.message config: %w", err)
		}
	}
	slog.Info("workflow log action",
		"message", cfg.Message,
		"event_type", trigger.EventType,
	)
	return nil
}

// HTTPExecutor posts the trigger metadata to a configured URL.
type HTTPExecutor struct {
	client *http.Client
}

func NewHTTPExecutor(client *http.Client) *HTTPExecutor {
	return &HTTPExecutor{client: client}
}

func (e *HTTPExecutor) Type() string { return "http.request" }

func (e *HTTPExecutor) Execute(ctx context.Context, action models.WorkflowAction, trigger models.RunTrigger) error {
	var cfg struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(action.Config, &cfg); err != nil {
		return fmt.Errorf("parse http.request config: %w", err)
	}
	if cfg.URL == "" {
		return fmt.Errorf("http.request action requires a url")
	}

	body, err := json.Marshal(trigger)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", cfg.URL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post to %s: unexpected status %d", cfg.URL, resp.StatusCode)
	}
	return nil
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/flowhook/flowhook/internal/api/middleware"
	"github.com/flowhook/flowhook/internal/rbac"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	Session   *mw.Session
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	IngestHandler http.HandlerFunc

	CatalogListHandler http.HandlerFunc
	CatalogGetHandler  http.HandlerFunc

	CreateWorkflowHandler    http.HandlerFunc
	ListWorkflowsHandler     http.HandlerFunc
	GetWorkflowHandler       http.HandlerFunc
	UpdateWorkflowHandler    http.HandlerFunc
	SetWorkflowActiveHandler http.HandlerFunc
	DeleteWorkflowHandler    http.HandlerFunc
	TriggerWorkflowHandler   http.HandlerFunc

	ListRunsHandler    http.HandlerFunc
	GetRunHandler      http.HandlerFunc
	ListRunJobsHandler http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc

	ProcessJobsHandler http.HandlerFunc

	ListAuditLogsHandler http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
// Three surfaces: public (health, catalog), ingestion (API-key auth, rate
// limited), and admin (session auth, permission gated).
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", deps.HealthHandler)
	r.Get("/api/v1/catalog", deps.CatalogListHandler)
	r.Get("/api/v1/catalog/{eventType}", deps.CatalogGetHandler)

	// Ingestion surface. Rate limiting sits after authentication because the
	// counter is keyed by API key prefix.
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/events", deps.IngestHandler)
	})

	// Admin surface.
	r.Group(func(r chi.Router) {
		r.Use(deps.Session.Authenticate)

		r.With(mw.RequirePermission(rbac.PermWorkflowsRead)).
			Get("/api/v1/workflows", deps.ListWorkflowsHandler)
		r.With(mw.RequirePermission(rbac.PermWorkflowsCreate)).
			Post("/api/v1/workflows", deps.CreateWorkflowHandler)
		r.With(mw.RequirePermission(rbac.PermWorkflowsRead)).
			Get("/api/v1/workflows/{workflowID}", deps.GetWorkflowHandler)
		r.With(mw.RequirePermission(rbac.PermWorkflowsUpdate)).
			Put("/api/v1/workflows/{workflowID}", deps.UpdateWorkflowHandler)
		r.With(mw.RequirePermission(rbac.PermWorkflowsUpdate)).
			Patch("/api/v1/workflows/{workflowID}/active", deps.SetWorkflowActiveHandler)
		r.With(mw.RequirePermission(rbac.PermWorkflowsDelete)).
			Delete("/api/v1/workflows/{workflowID}", deps.DeleteWorkflowHandler)
		r.With(mw.RequirePermission(rbac.PermWorkflowsTrigger)).
			Post("/api/v1/workflows/{workflowID}/trigger", deps.TriggerWorkflowHandler)
		r.With(mw.RequirePermission(rbac.PermWorkflowsRead)).
			Get("/api/v1/workflows/{workflowID}/runs", deps.ListRunsHandler)

		r.With(mw.RequirePermission(rbac.PermWorkflowsRead)).
			Get("/api/v1/runs/{runID}", deps.GetRunHandler)
		r.With(mw.RequirePermission(rbac.PermWorkflowsRead)).
			Get("/api/v1/runs/{runID}/jobs", deps.ListRunJobsHandler)

		r.With(mw.RequirePermission(rbac.PermCredentialsRead)).
			Get("/api/v1/keys", deps.ListKeysHandler)
		r.With(mw.RequirePermission(rbac.PermCredentialsWrite)).
			Post("/api/v1/keys", deps.CreateKeyHandler)
		r.With(mw.RequirePermission(rbac.PermCredentialsWrite)).
			Delete("/api/v1/keys/{keyID}", deps.RevokeKeyHandler)

		r.With(mw.RequirePermission(rbac.PermJobsProcess)).
			Post("/api/v1/jobs/process", deps.ProcessJobsHandler)

		r.With(mw.RequirePermission(rbac.PermAuditRead)).
			Get("/api/v1/audit", deps.ListAuditLogsHandler)
	})

	return r
}

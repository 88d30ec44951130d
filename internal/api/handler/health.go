package handler

import (
	"context"
	"net/http"

	"github.com/flowhook/flowhook/internal/api/response"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns the handler for GET /v1/health. It checks the
// database and the rate-limit counter store.
func NewHealthHandler(db, counter Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"counter":  "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := counter.Ping(r.Context()); err != nil {
			checks["counter"] = "degraded"
		}

		if checks["database"] != "ok" || checks["counter"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}

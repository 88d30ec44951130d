package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/flowhook/flowhook/internal/api/middleware"
	"github.com/flowhook/flowhook/internal/api/response"
	"github.com/flowhook/flowhook/pkg/models"
	"github.com/google/uuid"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditStore is the subset of the data layer the audit handler needs.
type AuditStore interface {
	ListAuditLogs(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, int, error)
}

// NewListAuditLogsHandler returns the handler for GET /v1/audit.
func NewListAuditLogsHandler(st AuditStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := middleware.GetOrganizationID(r)
		if !ok {
			response.Unauthorized(w, "Missing organization")
			return
		}

		limit, offset := defaultAuditLimit, 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > maxAuditLimit {
				response.BadRequest(w, "limit must be between 1 and 200")
				return
			}
			limit = n
		}
		if raw := r.URL.Query().Get("offset"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				response.BadRequest(w, "offset must be non-negative")
				return
			}
			offset = n
		}

		entries, total, err := st.ListAuditLogs(r.Context(), orgID, limit, offset)
		if err != nil {
			response.Internal(w, "Failed to list audit logs")
			return
		}
		if entries == nil {
			entries = []*models.AuditLog{}
		}

		response.Collection(w, entries, response.PaginationMeta{
			Limit:   limit,
			Offset:  offset,
			Total:   total,
			HasNext: offset+len(entries) < total,
		})
	}
}

package handler

import (
	"net/http"

	"github.com/flowhook/flowhook/internal/api/response"
	"github.com/flowhook/flowhook/internal/catalog"
	"github.com/go-chi/chi/v5"
)

// NewCatalogListHandler returns the handler for GET /v1/catalog. An optional
// ?category= filter narrows the listing.
func NewCatalogListHandler(reg *catalog.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if category := r.URL.Query().Get("category"); category != "" {
			response.JSON(w, reg.ByCategory(category))
			return
		}
		response.JSON(w, reg.All())
	}
}

// NewCatalogGetHandler returns the handler for GET /v1/catalog/{eventType}.
func NewCatalogGetHandler(reg *catalog.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventType := chi.URLParam(r, "eventType")
		entry, ok := reg.Lookup(eventType)
		if !ok {
			response.NotFound(w, "Unknown event type")
			return
		}
		response.JSON(w, entry)
	}
}

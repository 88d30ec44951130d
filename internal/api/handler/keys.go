package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flowhook/flowhook/internal/api/middleware"
	"github.com/flowhook/flowhook/internal/api/response"
	"github.com/flowhook/flowhook/internal/store"
	"github.com/flowhook/flowhook/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const secretRandomBytes = 24

// KeyStore is the subset of the data layer the credential handlers need.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, orgID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, orgID uuid.UUID) error
}

// Auditor records audit entries without blocking the handler.
type Auditor interface {
	Record(orgID uuid.UUID, userID *uuid.UUID, action, resourceType, resourceID string, metadata any)
}

// generateSecret builds a new API key secret. The "fh_" marker plus the
// leading hex characters form the plaintext lookup prefix.
func generateSecret() (secret, prefix string, err error) {
	buf := make([]byte, secretRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate key material: %w", err)
	}
	secret = "fh_" + hex.EncodeToString(buf)
	return secret, secret[:middleware.KeyPrefixLen], nil
}

// NewCreateKeyHandler returns the handler for POST /v1/keys. The plaintext
// secret appears in this response and nowhere else, ever.
func NewCreateKeyHandler(st KeyStore, auditor Auditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := middleware.GetOrganizationID(r)
		if !ok {
			response.Unauthorized(w, "Missing organization")
			return
		}

		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid JSON body")
			return
		}
		if req.Name == "" {
			response.BadRequest(w, "name is required")
			return
		}

		secret, prefix, err := generateSecret()
		if err != nil {
			response.Internal(w, "Failed to create API key")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			response.Internal(w, "Failed to create API key")
			return
		}

		now := time.Now().UTC()
		key := &models.APIKey{
			ID:             uuid.New(),
			OrganizationID: orgID,
			Name:           req.Name,
			KeyHash:        string(hash),
			KeyPrefix:      prefix,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if userID, ok := middleware.GetUserID(r); ok {
			key.CreatedBy = &userID
		}

		if err := st.CreateAPIKey(r.Context(), key); err != nil {
			response.Internal(w, "Failed to create API key")
			return
		}

		auditor.Record(orgID, key.CreatedBy, models.AuditKeyCreated, "api_key", key.ID.String(),
			map[string]string{"name": key.Name, "prefix": key.KeyPrefix})

		response.Created(w, struct {
			*models.APIKey
			Secret string `json:"secret"`
		}{APIKey: key, Secret: secret})
	}
}

// NewListKeysHandler returns the handler for GET /v1/keys. Hashes never
// leave the store layer; the model omits them from JSON.
func NewListKeysHandler(st KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := middleware.GetOrganizationID(r)
		if !ok {
			response.Unauthorized(w, "Missing organization")
			return
		}

		keys, err := st.ListAPIKeys(r.Context(), orgID)
		if err != nil {
			response.Internal(w, "Failed to list API keys")
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		response.JSON(w, keys)
	}
}

// NewRevokeKeyHandler returns the handler for DELETE /v1/keys/{keyID}.
// Revoking an already-revoked key succeeds quietly.
func NewRevokeKeyHandler(st KeyStore, auditor Auditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := middleware.GetOrganizationID(r)
		if !ok {
			response.Unauthorized(w, "Missing organization")
			return
		}

		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.BadRequest(w, "Invalid key id")
			return
		}

		if err := st.RevokeAPIKey(r.Context(), keyID, orgID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.NotFound(w, "API key not found")
				return
			}
			response.Internal(w, "Failed to revoke API key")
			return
		}

		var userID *uuid.UUID
		if id, ok := middleware.GetUserID(r); ok {
			userID = &id
		}
		auditor.Record(orgID, userID, models.AuditKeyRevoked, "api_key", keyID.String(), nil)

		response.NoContent(w)
	}
}

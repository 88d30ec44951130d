package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/flowhook/flowhook/internal/api/response"
	"github.com/flowhook/flowhook/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// KeyPrefixLen covers the "fh_" marker plus the first eight hex characters
// of the secret. The prefix is stored in plaintext for candidate lookup; the
// secret itself is only ever compared against its bcrypt hash.
const KeyPrefixLen = 11

// Auth authenticates ingestion requests with organization API keys.
type Auth struct {
	store store.Store
}

func NewAuth(s store.Store) *Auth {
	return &Auth{store: s}
}

// Authenticate validates the Bearer secret against the non-revoked keys
// sharing its prefix and sets the organization, key id, and key prefix in the
// request context. Every failure mode returns the same 401 so callers cannot
// probe which prefixes exist.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Unauthorized(w, "Missing or invalid Authorization header")
			return
		}

		if len(rawKey) < KeyPrefixLen || !strings.HasPrefix(rawKey, "fh_") {
			response.Unauthorized(w, "Invalid API key")
			return
		}

		prefix := rawKey[:KeyPrefixLen]

		keys, err := a.store.GetAPIKeysByPrefix(r.Context(), prefix)
		if err != nil {
			response.Internal(w, "Failed to validate API key")
			return
		}

		for _, key := range keys {
			if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) != nil {
				continue
			}

			ctx := SetOrganizationID(r.Context(), key.OrganizationID)
			ctx = SetKeyPrefix(ctx, prefix)
			ctx = setAPIKeyID(ctx, key.ID)

			// last_used_at is advisory; never block the request on it.
			go a.store.UpdateAPIKeyLastUsed(context.Background(), key.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		response.Unauthorized(w, "Invalid API key")
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

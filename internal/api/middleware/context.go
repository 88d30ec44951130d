package middleware

import (
	"context"
	"net/http"

	"github.com/flowhook/flowhook/internal/rbac"
	"github.com/google/uuid"
)

type contextKey string

const (
	orgIDKey     contextKey = "organization_id"
	keyPrefixKey contextKey = "key_prefix"
	apiKeyIDKey  contextKey = "api_key_id"
	userIDKey    contextKey = "user_id"
	roleKey      contextKey = "role"
)

func SetOrganizationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, orgIDKey, id)
}

func GetOrganizationID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(orgIDKey).(uuid.UUID)
	return id, ok
}

func SetKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

func setAPIKeyID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, apiKeyIDKey, id)
}

func GetAPIKeyID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(apiKeyIDKey).(uuid.UUID)
	return id, ok
}

func SetUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

func GetUserID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(userIDKey).(uuid.UUID)
	return id, ok
}

func SetRole(ctx context.Context, role rbac.Role) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

func GetRole(r *http.Request) (rbac.Role, bool) {
	role, ok := r.Context().Value(roleKey).(rbac.Role)
	return role, ok
}

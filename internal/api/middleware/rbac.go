package middleware

import (
	"net/http"

	"github.com/flowhook/flowhook/internal/api/response"
	"github.com/flowhook/flowhook/internal/rbac"
)

// RequirePermission gates a route on the role set by Session.Authenticate.
// A missing role fails closed.
func RequirePermission(perm rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetRole(r)
			if !ok {
				response.Error(w, http.StatusForbidden,
					response.CodeForbidden, "No role associated with this request", nil)
				return
			}
			if err := rbac.Check(role, perm); err != nil {
				response.Error(w, err.Status, err.Code, err.Message, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"

	"github.com/flowhook/flowhook/internal/api/response"
	"github.com/flowhook/flowhook/internal/rbac"
	"github.com/flowhook/flowhook/internal/session"
	"github.com/google/uuid"
)

// Session authenticates dashboard users on the admin surface.
type Session struct {
	tokens *session.TokenService
}

func NewSession(tokens *session.TokenService) *Session {
	return &Session{tokens: tokens}
}

// Authenticate verifies the Bearer session token and sets the user,
// organization, and role in the request context.
func (s *Session) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			response.Unauthorized(w, "Missing or invalid Authorization header")
			return
		}

		claims, err := s.tokens.Validate(token)
		if err != nil {
			response.Unauthorized(w, "Invalid session token")
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			response.Unauthorized(w, "Invalid session token")
			return
		}
		orgID, err := uuid.Parse(claims.OrganizationID)
		if err != nil {
			response.Unauthorized(w, "Invalid session token")
			return
		}
		role, ok := rbac.ParseRole(claims.Role)
		if !ok {
			response.Unauthorized(w, "Invalid session token")
			return
		}

		ctx := SetOrganizationID(r.Context(), orgID)
		ctx = SetUserID(ctx, userID)
		ctx = SetRole(ctx, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

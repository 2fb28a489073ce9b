package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/histocast/histocast/internal/api/models"
	"github.com/histocast/histocast/internal/auth"
)

// TokenValidator validates bearer tokens. *auth.JWTService implements it.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.JWTClaims, error)
}

type clientIDKey struct{}

// Auth validates the bearer token and requires scope when non-empty. The
// token subject is stored in the context as the client ID.
func Auth(validator TokenValidator, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])
			if tokenString == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			claims, err := validator.ValidateAccessToken(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrAccessTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				case errors.Is(err, auth.ErrInvalidAccessToken):
					writeUnauthorized(w, r, "invalid access token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			if scope != "" && !claims.HasScope(scope) {
				problem := models.NewForbidden(GetRequestID(r.Context()), "token lacks the "+scope+" scope")
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}

			ctx := context.WithValue(r.Context(), clientIDKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized is defined here rather than in the response package,
// which imports middleware.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetClientID returns the authenticated API client, or "" for anonymous requests.
func GetClientID(ctx context.Context) string {
	if id, ok := ctx.Value(clientIDKey{}).(string); ok {
		return id
	}
	return ""
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ActorType distinguishes the two caller roles the API serves.
type ActorType string

const (
	ActorPrincipal ActorType = "principal"
	ActorFiduciary ActorType = "fiduciary"
)

// Identity is the authenticated caller extracted from a bearer token.
// Domain services trust this identity without re-deriving it.
type Identity struct {
	ID    string
	Type  ActorType
	Name  string
	Email string
}

type identityKey struct{}

// GetIdentity retrieves the authenticated identity from the context.
func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying the given identity. Used by tests
// and by internal callers that act on behalf of an already-authenticated actor.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

type actorClaims struct {
	ActorType string `json:"typ"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// Auth validates a HS256 bearer token and stores the caller identity in the
// request context. Requests without a valid token receive 401.
func Auth(signingKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "missing bearer token")
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := &actorClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(signingKey), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				unauthorized(w, "invalid token")
				return
			}

			actorType := ActorType(claims.ActorType)
			if actorType != ActorPrincipal && actorType != ActorFiduciary {
				unauthorized(w, "unknown actor type")
				return
			}

			identity := Identity{
				ID:    claims.Subject,
				Type:  actorType,
				Name:  claims.Name,
				Email: claims.Email,
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}

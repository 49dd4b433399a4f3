package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "lodger/pkg/domain"
	"lodger/pkg/requestcontext"
)

// Role identifies the caller's position in the rental relationship.
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated caller, as established by the auth middleware.
type Actor struct {
	UserID id.UserID
	Role   Role
}

type actorKey struct{}

// GetActor retrieves the authenticated actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// WithActor stores an actor in the context. Exposed for handler tests.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func writeAuthError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":%q,"error_description":%q}`, errCode, errDesc))
}

// RequireAuth validates the Authorization bearer token and stores the actor
// in the request context. Token issuance lives outside this service; only
// HS256 tokens signed with the shared key are accepted.
func RequireAuth(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return []byte(signingKey), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			header := r.Header.Get("Authorization")
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found || raw == "" {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims := jwt.MapClaims{}
			if _, err := jwt.ParseWithClaims(raw, claims, keyFunc); err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			actor, err := actorFromClaims(claims)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed claims",
					"error", err,
					"request_id", requestID,
				)
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "invalid token claims")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(ctx, actor)))
		})
	}
}

func actorFromClaims(claims jwt.MapClaims) (Actor, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Actor{}, fmt.Errorf("missing sub claim")
	}
	userID, err := id.ParseUserID(sub)
	if err != nil {
		return Actor{}, fmt.Errorf("invalid sub claim: %w", err)
	}

	roleClaim, _ := claims["role"].(string)
	role := Role(roleClaim)
	switch role {
	case RoleTenant, RoleLandlord, RoleAdmin:
	default:
		return Actor{}, fmt.Errorf("unknown role %q", roleClaim)
	}

	return Actor{UserID: userID, Role: role}, nil
}

// RequireRole rejects authenticated requests whose actor lacks the given role.
// Admins pass every role gate.
func RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
				return
			}
			if actor.Role != role && actor.Role != RoleAdmin {
				writeAuthError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
	"github.com/riyakasaudhan20/sync-clip/pkg/logging"
)

type contextKey string

const principalKey contextKey = "principal"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Principal, error)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			principal, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				logging.FromContext(r.Context()).ErrorContext(r.Context(), "auth middleware - authenticate - failed", logging.Err(err))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			ctx := WithPrincipal(r.Context(), principal)
			ctx = logging.WithContext(ctx, logging.FromContext(ctx).With(
				logging.User(principal.UserID),
				logging.Device(principal.DeviceID),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

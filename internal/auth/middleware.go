package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/platform/httpx"
	"github.com/lyceum-platform/lyceum/internal/shared"
)

// Middleware authenticates requests and stores the principal in context.
type Middleware struct {
	Store  *TokenStore
	Logger *slog.Logger
}

// Authenticate rejects requests without a resolvable bearer token.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		principal, err := m.Store.Lookup(r.Context(), token)
		if err != nil {
			if m.Logger != nil && !authz.IsPermissionDenied(err) && err != authz.ErrUnauthenticated {
				m.Logger.Error("token lookup", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
)

// Identity is asserted by the gateway in front of this service.
const (
	HeaderUserID       = "X-User-ID"
	HeaderUserEmail    = "X-User-Email"
	HeaderPushEndpoint = "X-Push-Endpoint"
	HeaderUserRole     = "X-User-Role"
)

type customerKey struct{}

func customerFrom(ctx context.Context) (orders.Customer, bool) {
	c, ok := ctx.Value(customerKey{}).(orders.Customer)
	return c, ok
}

// requireUser rejects requests without a user id. A push endpoint sent with
// the request is remembered for later status notifications.
func requireUser(push orders.PushDirectory, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := orders.Customer{
				UserID:       strings.TrimSpace(r.Header.Get(HeaderUserID)),
				Email:        strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
				PushEndpoint: strings.TrimSpace(r.Header.Get(HeaderPushEndpoint)),
				Role:         strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))),
			}
			if c.UserID == "" {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing user identity")
				return
			}
			if c.PushEndpoint != "" && push != nil {
				if err := push.SetPushEndpoint(r.Context(), c.UserID, c.PushEndpoint); err != nil {
					log.WarnContext(r.Context(), "push endpoint not saved", "user_id", c.UserID, "error", err)
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), customerKey{}, c)))
		})
	}
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := customerFrom(r.Context())
		if !ok || !c.IsAdmin() {
			writeError(w, http.StatusForbidden, codeForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

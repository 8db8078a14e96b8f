package httpx

import (
	"context"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/events"
	"github.com/go-chi/chi/v5/middleware"
	"net/http"
	"strings"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

type identityKey struct{}

// Identity takes the caller from headers set by the upstream auth proxy and
// tags the request context with the request id for event tracing. Requests
// without a user id pass through anonymous; services reject them where a
// user is required.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, err := domain.ParseRole(r.Header.Get(HeaderRole))
		if err != nil {
			writeError(w, r, err)
			return
		}
		who := domain.Identity{UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)), Role: role}

		ctx := context.WithValue(r.Context(), identityKey{}, who)
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = events.WithTraceID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(r *http.Request) domain.Identity {
	who, _ := r.Context().Value(identityKey{}).(domain.Identity)
	return who
}

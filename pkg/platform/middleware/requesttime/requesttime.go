package requesttime

import (
	"net/http"
	"time"

	"trustgate/pkg/requestcontext"
)

// Middleware pins one timestamp per request so every store and service in
// the pipeline sees the same clock reading.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
